package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "debatebench",
		Short: "LLM debate benchmark: paired debates, judge panels, Elo ratings",
		Long:  "Runs structured debates between pairs of LLMs, scores the transcripts with a judge panel, and maintains Elo ratings replayed from the full record history.",
	}

	root.PersistentFlags().String("config", "configs/config.yaml", "Benchmark config file")
	root.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	root.PersistentFlags().Bool("no-color", false, "Disable ANSI colors in output")

	root.AddCommand(newRunCmd())
	root.AddCommand(newRateCmd())
	root.AddCommand(newLeaderboardCmd())
	root.AddCommand(newInspectCmd())
	root.AddCommand(newModelsCmd())
	root.AddCommand(newInitCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
