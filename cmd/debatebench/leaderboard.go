package main

import (
	"os"

	"github.com/spf13/cobra"

	"debatebench/internal/output"
	"debatebench/internal/storage"
)

func newLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the ratings table ordered by Elo",
		RunE:  runLeaderboard,
	}
	cmd.Flags().String("ratings", "results/ratings.json", "Ratings file (produced by rate)")
	cmd.Flags().Int("limit", 0, "Show only the top N models")
	return cmd
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	ratingsPath, _ := cmd.Flags().GetString("ratings")
	limit, _ := cmd.Flags().GetInt("limit")

	ratings, err := storage.ReadRatings(ratingsPath)
	if err != nil {
		return err
	}
	output.PrintLeaderboard(os.Stdout, ratings, limit)
	return nil
}
