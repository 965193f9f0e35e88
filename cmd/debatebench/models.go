package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"debatebench/internal/models"
	"debatebench/internal/openrouter"
	"debatebench/internal/settings"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List text models available on OpenRouter",
		RunE:  runModels,
	}
	cmd.Flags().Bool("free", false, "Only free-tier models")
	cmd.Flags().Int("months", 0, "Only models released in the last N months")
	cmd.Flags().String("probe", "", "Send a 1-token request to this model id and report the result")
	return cmd
}

func runModels(cmd *cobra.Command, args []string) error {
	free, _ := cmd.Flags().GetBool("free")
	months, _ := cmd.Flags().GetInt("months")
	probe, _ := cmd.Flags().GetString("probe")

	env := settings.Load()
	if env.OpenRouterAPIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := openrouter.NewClient(env.OpenRouterAPIKey, openrouter.WithSite(env.SiteURL, env.SiteName))

	if probe != "" {
		if err := client.Probe(ctx, probe); err != nil {
			return fmt.Errorf("probe %s: %w", probe, err)
		}
		fmt.Printf("%s: ok\n", probe)
		return nil
	}

	catalog, err := client.ListModels(ctx)
	if err != nil {
		return err
	}

	registry := models.NewRegistry(catalog)
	list := registry.All()
	if months > 0 {
		list = registry.Recent(months, time.Now())
	}
	if free {
		freeIDs := map[string]bool{}
		for _, m := range registry.Free() {
			freeIDs[m.ID] = true
		}
		filtered := list[:0]
		for _, m := range list {
			if freeIDs[m.ID] {
				filtered = append(filtered, m)
			}
		}
		list = filtered
	}

	fmt.Printf("%-56s %-12s %-12s %s\n", "ID", "PROMPT", "COMPLETION", "RELEASED")
	for _, m := range list {
		prompt, completion := "-", "-"
		if m.Pricing != nil {
			prompt, completion = m.Pricing.Prompt, m.Pricing.Completion
		}
		fmt.Printf("%-56s %-12s %-12s %s\n",
			m.ID, prompt, completion, time.Unix(m.Created, 0).UTC().Format("2006-01-02"))
	}
	fmt.Printf("\n%d models\n", len(list))
	return nil
}
