package executor

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"debatebench/internal/debate"
	"debatebench/internal/judge"
	"debatebench/internal/models"
	"debatebench/internal/schedule"
	"debatebench/internal/schema"
	"debatebench/internal/storage"
)

type scriptedDebater struct {
	id string
	// failures is decremented on each call; while positive the reply
	// is empty, afterwards a valid argument.
	failures atomic.Int32
}

func (s *scriptedDebater) ID() string { return s.id }

func (s *scriptedDebater) Generate(ctx context.Context, prompt string, maxTokens int) (models.Reply, error) {
	if s.failures.Add(-1) >= 0 {
		return models.Reply{}, nil
	}
	return models.Reply{Content: "a solid argument " + debate.EndOfTurnMarker}, nil
}

type scriptedJudge struct{ id string }

func (s *scriptedJudge) ID() string { return s.id }

func (s *scriptedJudge) Judge(ctx context.Context, prompt string, structured bool, dims []string) (models.Reply, error) {
	return models.Reply{Content: `{"scores": {"pro": {"persuasion": 7}, "con": {"persuasion": 5}}}`}, nil
}

func testConfig() schema.MainConfig {
	return schema.MainConfig{
		BenchmarkVersion: "test",
		NumJudges:        1,
		Rounds: []schema.RoundConfig{
			{Speaker: schema.SidePro, Stage: "opening", TokenLimit: 128},
			{Speaker: schema.SideCon, Stage: "opening", TokenLimit: 128},
		},
		Scoring: schema.ScoringConfig{
			Dimensions: []schema.DimensionConfig{{ID: "persuasion"}},
			ScaleMin:   1,
			ScaleMax:   10,
		},
		Elo: schema.EloConfig{InitialRating: 400, KFactor: 32},
	}
}

type fixture struct {
	exec    *Executor
	records *storage.RecordLog
	plan    schedule.Plan
}

func newFixture(t *testing.T, opts Options, debaterFailures map[string]int32, debatesPerPair int) fixture {
	t.Helper()
	cfg := testConfig()
	dir := t.TempDir()
	if opts.ProgressPath == "" {
		opts.ProgressPath = filepath.Join(dir, "progress.json")
	}

	debaterCfgs := []schema.DebaterModelConfig{
		{ID: "model-a", Provider: "openrouter", Model: "model-a"},
		{ID: "model-b", Provider: "openrouter", Model: "model-b"},
	}
	debaters := map[string]models.Debater{}
	for _, dc := range debaterCfgs {
		d := &scriptedDebater{id: dc.ID}
		d.failures.Store(debaterFailures[dc.ID])
		debaters[dc.ID] = d
	}

	judgeCfgs := []schema.JudgeModelConfig{{ID: "j1", Provider: "openrouter", Model: "j1"}}
	judgeAdapters := map[string]models.Judge{"j1": &scriptedJudge{id: "j1"}}

	counters := judge.NewUsageCounters()
	records := storage.NewRecordLog(filepath.Join(dir, "debates.jsonl"))
	runner := debate.NewRunner(cfg, nil, nil)
	evaluator := judge.NewEvaluator(cfg, judgeAdapters, counters, nil, nil, nil)

	plan, err := schedule.BuildPlan(
		[]schema.Topic{{ID: "t1", Motion: "motion"}},
		debaterCfgs, nil,
		schedule.Options{RunTag: "test", DebatesPerPair: debatesPerPair},
	)
	require.NoError(t, err)

	exec := New(cfg, opts, runner, evaluator, counters, judgeCfgs, debaters, records, nil, nil)
	return fixture{exec: exec, records: records, plan: plan}
}

func TestRunCompletesAllTasks(t *testing.T) {
	f := newFixture(t, Options{RunTag: "test"}, nil, 3)

	summary, err := f.exec.Run(context.Background(), f.plan)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Completed)
	assert.Equal(t, 0, summary.Failed)
	assert.Empty(t, summary.BannedModels)

	records, err := f.records.Load()
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.True(t, rec.PanelComplete)
		assert.Equal(t, 1, rec.JudgesActual)
		assert.Equal(t, schema.SidePro, rec.Aggregate.Winner)
	}
}

func TestRunRetriesWithPerturbedSeed(t *testing.T) {
	// model-a is empty for its first task (3 turn attempts consume 3
	// calls), then recovers for the retry pass.
	f := newFixture(t, Options{RunTag: "test", RetryFailed: true, MaxWorkers: 1},
		map[string]int32{"model-a": 3}, 1)

	summary, err := f.exec.Run(context.Background(), f.plan)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, 1, summary.Failed)

	records, err := f.records.Load()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, f.plan.Tasks[0].Seed+schedule.RetrySeedOffset, records[0].DebateSeed)
}

func TestRunSkipOnEmptyBansModel(t *testing.T) {
	// model-a never produces content; with one worker the first task
	// bans it and the remaining tasks are skipped.
	f := newFixture(t, Options{RunTag: "test", SkipOnEmpty: true, MaxWorkers: 1},
		map[string]int32{"model-a": 1 << 20}, 3)

	summary, err := f.exec.Run(context.Background(), f.plan)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Completed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, []string{"model-a"}, summary.BannedModels)

	records, err := f.records.Load()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRunNoRetryWhenDisabled(t *testing.T) {
	f := newFixture(t, Options{RunTag: "test", RetryFailed: false, MaxWorkers: 1},
		map[string]int32{"model-a": 3}, 1)

	summary, err := f.exec.Run(context.Background(), f.plan)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Completed)
	assert.Equal(t, 1, summary.Failed)
}

func TestRunCancelledContext(t *testing.T) {
	f := newFixture(t, Options{RunTag: "test"}, nil, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.exec.Run(ctx, f.plan)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunWritesProgress(t *testing.T) {
	dir := t.TempDir()
	progress := filepath.Join(dir, "progress.json")
	f := newFixture(t, Options{RunTag: "test", ProgressPath: progress}, nil, 2)

	_, err := f.exec.Run(context.Background(), f.plan)
	require.NoError(t, err)

	assert.FileExists(t, progress)
}
