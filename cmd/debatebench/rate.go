package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"debatebench/internal/config"
	"debatebench/internal/output"
	"debatebench/internal/rating"
	"debatebench/internal/storage"
)

func newRateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Rebuild the Elo ratings table from the full record history",
		RunE:  runRate,
	}
	cmd.Flags().String("debates", "results/debates.jsonl", "Debate record log")
	cmd.Flags().String("out", "results/ratings.json", "Ratings output file")
	cmd.Flags().Int("top", 0, "Also print the top N leaderboard rows")
	return cmd
}

func runRate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	debatesPath, _ := cmd.Flags().GetString("debates")
	outPath, _ := cmd.Flags().GetString("out")
	top, _ := cmd.Flags().GetInt("top")

	cfg, err := config.LoadMainConfig(configPath)
	if err != nil {
		return err
	}
	records, err := storage.NewRecordLog(debatesPath).Load()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no debate records in %s", debatesPath)
	}

	ratings := rating.Recompute(records, cfg)
	if err := storage.WriteRatings(outPath, ratings); err != nil {
		return err
	}
	fmt.Printf("Rated %d debates across %d models. Wrote %s\n", len(records), len(ratings.Models), outPath)

	if top > 0 {
		fmt.Println()
		output.PrintLeaderboard(os.Stdout, ratings, top)
	}
	return nil
}
