package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"debatebench/internal/config"
	"debatebench/internal/debate"
	"debatebench/internal/events"
	"debatebench/internal/executor"
	"debatebench/internal/judge"
	"debatebench/internal/models"
	"debatebench/internal/output"
	"debatebench/internal/ratelimit"
	"debatebench/internal/schedule"
	"debatebench/internal/settings"
	"debatebench/internal/storage"
)

// freeModelRPM is the request rate imposed whenever any configured
// model is a free-tier one; free endpoints throttle hard above this.
const freeModelRPM = 20

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the planned debates and judge them",
		RunE:  runBenchmark,
	}
	cmd.Flags().String("topics", "configs/topics.yaml", "Topics file")
	cmd.Flags().String("models", "configs/models.yaml", "Debater models file")
	cmd.Flags().String("judges", "configs/judges.yaml", "Judge models file")
	cmd.Flags().String("debates", "results/debates.jsonl", "Debate record log (appended)")
	cmd.Flags().String("progress", "results/progress.json", "Progress snapshot file")
	cmd.Flags().String("run-tag", "default", "Run tag mixed into every debate seed")
	cmd.Flags().Int("debates-per-pair", 1, "Repetitions per (topic, pair)")
	cmd.Flags().Bool("balanced-sides", false, "Play every pair once per side")
	cmd.Flags().Bool("swap-sides", true, "Randomize sides per debate when not balanced")
	cmd.Flags().Bool("balanced-judges", false, "Spread judge assignments by usage counters")
	cmd.Flags().Bool("judges-from-selection", false, "Exclude a debate's own models from its panel")
	cmd.Flags().Bool("skip-on-empty", false, "Ban a model for the run after it returns empty responses")
	cmd.Flags().Bool("retry-failed", true, "Retry failed debates once with a perturbed seed")
	cmd.Flags().Bool("resume", true, "Skip debates already present in the record log")
	cmd.Flags().StringSlice("only-involving", nil, "Restrict the plan to pairs involving these model ids")
	cmd.Flags().String("log-failed-judges", "", "Append unparseable judge replies to this JSONL file")
	cmd.Flags().Int("rpm", 60, "Requests per minute per provider")
	cmd.Flags().Int("workers", 0, "Concurrent debates (0 = min(32, 4*CPUs))")
	return cmd
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	noColor, _ := cmd.Root().PersistentFlags().GetBool("no-color")
	topicsPath, _ := cmd.Flags().GetString("topics")
	modelsPath, _ := cmd.Flags().GetString("models")
	judgesPath, _ := cmd.Flags().GetString("judges")
	debatesPath, _ := cmd.Flags().GetString("debates")
	progressPath, _ := cmd.Flags().GetString("progress")
	runTag, _ := cmd.Flags().GetString("run-tag")
	debatesPerPair, _ := cmd.Flags().GetInt("debates-per-pair")
	balancedSides, _ := cmd.Flags().GetBool("balanced-sides")
	swapSides, _ := cmd.Flags().GetBool("swap-sides")
	balancedJudges, _ := cmd.Flags().GetBool("balanced-judges")
	judgesFromSelection, _ := cmd.Flags().GetBool("judges-from-selection")
	skipOnEmpty, _ := cmd.Flags().GetBool("skip-on-empty")
	retryFailed, _ := cmd.Flags().GetBool("retry-failed")
	resume, _ := cmd.Flags().GetBool("resume")
	onlyInvolving, _ := cmd.Flags().GetStringSlice("only-involving")
	failedJudgesPath, _ := cmd.Flags().GetString("log-failed-judges")
	rpm, _ := cmd.Flags().GetInt("rpm")
	workers, _ := cmd.Flags().GetInt("workers")

	logger := logrus.New()
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.LoadMainConfig(configPath)
	if err != nil {
		return err
	}
	topics, err := config.LoadTopics(topicsPath)
	if err != nil {
		return err
	}
	debaterCfgs, err := config.LoadDebaterModels(modelsPath)
	if err != nil {
		return err
	}
	judgeCfgs, err := config.LoadJudgeModels(judgesPath)
	if err != nil {
		return err
	}

	if models.UsesFreeModels(debaterCfgs, judgeCfgs) && rpm > freeModelRPM {
		logger.WithField("rpm", freeModelRPM).Info("free models configured, lowering request rate")
		rpm = freeModelRPM
	}

	env := settings.Load()
	limiters := ratelimit.NewRegistry(rpm)

	debaters := make(map[string]models.Debater, len(debaterCfgs))
	for _, dc := range debaterCfgs {
		d, err := models.NewDebater(dc, env, limiters)
		if err != nil {
			return err
		}
		debaters[dc.ID] = d
	}
	judgeAdapters := make(map[string]models.Judge, len(judgeCfgs))
	for _, jc := range judgeCfgs {
		j, err := models.NewJudge(jc, env, limiters)
		if err != nil {
			return err
		}
		judgeAdapters[jc.ID] = j
	}

	if err := os.MkdirAll(filepath.Dir(debatesPath), 0o755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}
	records := storage.NewRecordLog(debatesPath)

	completed := map[schedule.CompletedKey]int{}
	counters := judge.NewUsageCounters()
	if resume {
		prior, err := records.Load()
		if err != nil {
			return err
		}
		completed = schedule.CompletedCounts(prior)
		counters.Prime(prior)
	}

	plan, err := schedule.BuildPlan(topics, debaterCfgs, completed, schedule.Options{
		RunTag:         runTag,
		DebatesPerPair: debatesPerPair,
		BalancedSides:  balancedSides,
		SwapSides:      swapSides,
		OnlyInvolving:  onlyInvolving,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Planned: %d debates (%d already complete)\n", len(plan.Tasks), plan.ExistingCompleted)
	if len(plan.Tasks) == 0 {
		fmt.Println("Nothing to do.")
		return nil
	}

	var sink judge.FailureSink
	if failedJudgesPath != "" {
		sink = storage.NewFailedJudgeLog(failedJudgesPath)
	}

	bus := events.NewBus(256)
	consumer := output.NewConsumer(os.Stdout, !noColor)
	consumer.Start(bus)

	runner := debate.NewRunner(cfg, logger, bus)
	evaluator := judge.NewEvaluator(cfg, judgeAdapters, counters, logger, bus, sink)

	exec := executor.New(cfg, executor.Options{
		RunTag:              runTag,
		SkipOnEmpty:         skipOnEmpty,
		RetryFailed:         retryFailed,
		BalancedJudges:      balancedJudges,
		JudgesFromSelection: judgesFromSelection,
		MaxWorkers:          workers,
		ProgressPath:        progressPath,
	}, runner, evaluator, counters, judgeCfgs, debaters, records, logger, bus)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, runErr := exec.Run(ctx, plan)

	bus.Close()
	consumer.Wait()
	output.PrintSummary(os.Stdout, summary.Completed, summary.Failed, summary.Skipped, summary.BannedModels)
	return runErr
}
