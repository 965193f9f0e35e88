package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"debatebench/internal/config"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write template config files (config, topics, models, judges)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInit,
	}
	cmd.Flags().Bool("force", false, "Overwrite existing config files")
	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	if err := config.WriteDefaults(root, force); err != nil {
		return err
	}
	fmt.Printf("Wrote config templates under %s/configs\n", root)
	return nil
}
