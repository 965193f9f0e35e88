package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"debatebench/internal/output"
	"debatebench/internal/storage"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [debate-id]",
		Short: "Print one debate record in full (turns, panel, verdict)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInspect,
	}
	cmd.Flags().String("debates", "results/debates.jsonl", "Debate record log")
	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	debatesPath, _ := cmd.Flags().GetString("debates")

	records, err := storage.NewRecordLog(debatesPath).Load()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no debate records in %s", debatesPath)
	}

	// No argument means the most recent record.
	if len(args) == 0 {
		output.PrintRecord(os.Stdout, records[len(records)-1])
		return nil
	}

	id := args[0]
	for _, rec := range records {
		if rec.Transcript.DebateID == id || strings.HasPrefix(rec.Transcript.DebateID, id) {
			output.PrintRecord(os.Stdout, rec)
			return nil
		}
	}
	return fmt.Errorf("no debate record with id %q", id)
}
