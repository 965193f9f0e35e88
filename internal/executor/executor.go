// Package executor runs the planned debate tasks to completion on a
// bounded worker pool, with per-task retry, model banning, durable
// record appends, and progress snapshots.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"debatebench/internal/debate"
	"debatebench/internal/events"
	"debatebench/internal/judge"
	"debatebench/internal/models"
	"debatebench/internal/schedule"
	"debatebench/internal/schema"
	"debatebench/internal/storage"
)

// maxWorkerCap bounds the pool regardless of available parallelism;
// the work is network-bound, not CPU-bound.
const maxWorkerCap = 32

// Options configures a run.
type Options struct {
	RunTag              string
	SkipOnEmpty         bool
	RetryFailed         bool
	BalancedJudges      bool
	JudgesFromSelection bool
	MaxWorkers          int // 0 means min(32, NumCPU*4)
	ProgressPath        string
}

// Summary is the user-visible outcome of a run.
type Summary struct {
	Completed    int
	Failed       int
	Skipped      int
	BannedModels []string
}

// Executor owns all in-flight task state for one run.
type Executor struct {
	cfg       schema.MainConfig
	opts      Options
	runner    *debate.Runner
	evaluator *judge.Evaluator
	counters  *judge.UsageCounters
	judgePool []schema.JudgeModelConfig
	debaters  map[string]models.Debater
	records   *storage.RecordLog
	logger    *logrus.Logger
	bus       *events.Bus

	mu                sync.Mutex
	banned            map[string]bool
	retryQueue        []schedule.DebateTask
	completedNew      int
	failedTotal       int
	skippedTotal      int
	totalRuns         int
	existingCompleted int
}

// New wires an Executor. The usage counters must be the same instance
// the evaluator writes to, so panel selection sees live fairness state.
func New(
	cfg schema.MainConfig,
	opts Options,
	runner *debate.Runner,
	evaluator *judge.Evaluator,
	counters *judge.UsageCounters,
	judgePool []schema.JudgeModelConfig,
	debaters map[string]models.Debater,
	records *storage.RecordLog,
	logger *logrus.Logger,
	bus *events.Bus,
) *Executor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Executor{
		cfg:       cfg,
		opts:      opts,
		runner:    runner,
		evaluator: evaluator,
		counters:  counters,
		judgePool: judgePool,
		debaters:  debaters,
		records:   records,
		logger:    logger,
		bus:       bus,
		banned:    make(map[string]bool),
	}
}

func (e *Executor) workerCount() int {
	if e.opts.MaxWorkers > 0 {
		return e.opts.MaxWorkers
	}
	n := runtime.NumCPU() * 4
	if n > maxWorkerCap {
		n = maxWorkerCap
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Run executes the plan: one main pass, then a single retry pass over
// queued failures with a perturbed seed. It returns the run summary;
// a partially-failed run is not an error, cancellation is.
func (e *Executor) Run(ctx context.Context, plan schedule.Plan) (Summary, error) {
	e.mu.Lock()
	e.totalRuns = plan.TotalRuns
	e.existingCompleted = plan.ExistingCompleted
	e.mu.Unlock()
	e.writeProgress()

	e.runPass(ctx, plan.Tasks, 0)

	if e.opts.RetryFailed && ctx.Err() == nil {
		e.mu.Lock()
		retry := e.retryQueue
		e.retryQueue = nil
		e.mu.Unlock()

		if len(retry) > 0 {
			e.logger.WithField("count", len(retry)).Info("retrying failed debates once")
			e.runPass(ctx, retry, schedule.RetrySeedOffset)
		}
	}

	e.writeProgress()
	summary := e.summary()
	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("executor: %w", err)
	}
	return summary, nil
}

func (e *Executor) summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	banned := make([]string, 0, len(e.banned))
	for id := range e.banned {
		banned = append(banned, id)
	}
	sort.Strings(banned)
	return Summary{
		Completed:    e.completedNew,
		Failed:       e.failedTotal,
		Skipped:      e.skippedTotal,
		BannedModels: banned,
	}
}

func (e *Executor) isBanned(task schedule.DebateTask) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.banned[task.Pro.ID] || e.banned[task.Con.ID]
}

// runPass pushes one task list through the bounded pool. Failures are
// recorded, never propagated: only cancellation stops a pass early.
func (e *Executor) runPass(ctx context.Context, tasks []schedule.DebateTask, seedOffset int64) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workerCount())

	for _, task := range tasks {
		if gctx.Err() != nil {
			break
		}
		if e.isBanned(task) {
			e.skip(task)
			continue
		}

		task := task
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// A ban may have landed after this task was submitted.
			if e.isBanned(task) {
				e.skip(task)
				return nil
			}
			rec, err := e.runTask(gctx, task, task.Seed+seedOffset)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.fail(task, err, seedOffset > 0)
				return nil
			}
			e.complete(task, rec)
			return nil
		})
	}
	_ = g.Wait()
}

// runTask is the full per-debate pipeline: transcript, panel
// selection, judging, aggregation. No side effects until the caller
// persists the returned record.
func (e *Executor) runTask(ctx context.Context, task schedule.DebateTask, attemptSeed int64) (schema.DebateRecord, error) {
	pro, ok := e.debaters[task.Pro.ID]
	if !ok {
		return schema.DebateRecord{}, fmt.Errorf("executor: no adapter for debater %s", task.Pro.ID)
	}
	con, ok := e.debaters[task.Con.ID]
	if !ok {
		return schema.DebateRecord{}, fmt.Errorf("executor: no adapter for debater %s", task.Con.ID)
	}

	transcript, err := e.runner.Run(ctx, task.TaskID, task.Topic, pro, con, attemptSeed)
	if err != nil {
		return schema.DebateRecord{}, err
	}

	var exclude map[string]bool
	if e.opts.JudgesFromSelection {
		exclude = map[string]bool{task.Pro.ID: true, task.Con.ID: true}
	}
	panel, leftovers, err := judge.SelectPanel(judge.SelectorInput{
		Pool:     e.judgePool,
		Exclude:  exclude,
		Expected: e.cfg.NumJudges,
		Seed:     attemptSeed,
		Balanced: e.opts.BalancedJudges,
		TopicID:  task.Topic.ID,
		PairKey:  task.PairKey,
	}, e.counters)
	if err != nil {
		return schema.DebateRecord{}, err
	}

	results, err := e.evaluator.EvaluatePanel(ctx, task.TaskID, transcript, panel, leftovers, task.PairKey)
	if err != nil {
		return schema.DebateRecord{}, err
	}

	panelLatency := 0.0
	for _, r := range results {
		panelLatency += r.LatencyMs
	}

	return schema.DebateRecord{
		Transcript:     transcript,
		Judges:         results,
		Aggregate:      judge.Aggregate(results),
		CreatedAt:      time.Now().UTC(),
		JudgesExpected: e.cfg.NumJudges,
		JudgesActual:   len(results),
		PanelComplete:  len(results) == e.cfg.NumJudges,
		PanelLatencyMs: panelLatency,
		DebateSeed:     attemptSeed,
		Elo:            e.cfg.Elo,
	}, nil
}

// complete persists the record immediately so partial runs stay
// durable, then refreshes the progress snapshot.
func (e *Executor) complete(task schedule.DebateTask, rec schema.DebateRecord) {
	if err := e.records.Append(rec); err != nil {
		e.logger.WithField("task", task.TaskID).WithError(err).Error("failed to persist debate record")
		e.mu.Lock()
		e.failedTotal++
		e.mu.Unlock()
		e.bus.Publish(events.TaskFinished{TaskID: task.TaskID, Status: "failed", Err: err.Error()})
		return
	}
	e.mu.Lock()
	e.completedNew++
	e.mu.Unlock()
	e.writeProgress()
	e.bus.Publish(events.TaskFinished{TaskID: task.TaskID, Status: "completed"})
}

// fail applies the failure policy: empty-response errors ban the
// offending model when skip-on-empty is set; everything else queues
// for the single retry pass (unless this already was the retry pass).
func (e *Executor) fail(task schedule.DebateTask, err error, isRetryPass bool) {
	e.mu.Lock()
	e.failedTotal++
	var empty *debate.EmptyResponseError
	banned := false
	if errors.As(err, &empty) && e.opts.SkipOnEmpty {
		e.banned[empty.ModelID] = true
		banned = true
	} else if !isRetryPass {
		e.retryQueue = append(e.retryQueue, task)
	}
	e.mu.Unlock()

	log := e.logger.WithFields(logrus.Fields{
		"task":  task.TaskID,
		"topic": task.Topic.ID,
		"pro":   task.Pro.ID,
		"con":   task.Con.ID,
	})
	log.WithError(err).Error("debate failed")
	if banned {
		log.WithField("model", empty.ModelID).Warn("banning model for remainder of run due to empty responses")
		e.writeProgress()
	}
	e.bus.Publish(events.TaskFinished{TaskID: task.TaskID, Status: "failed", Err: err.Error()})
}

func (e *Executor) skip(task schedule.DebateTask) {
	e.mu.Lock()
	e.skippedTotal++
	e.mu.Unlock()
	e.bus.Publish(events.TaskFinished{TaskID: task.TaskID, Status: "skipped"})
}

// writeProgress overwrites the point-in-time snapshot; failures here
// only log, they never interrupt the run.
func (e *Executor) writeProgress() {
	if e.opts.ProgressPath == "" {
		return
	}
	e.mu.Lock()
	banned := make([]string, 0, len(e.banned))
	for id := range e.banned {
		banned = append(banned, id)
	}
	p := storage.Progress{
		RunTag:                e.opts.RunTag,
		DebatesFile:           e.records.Path(),
		TotalPlannedRemaining: e.totalRuns,
		CompletedNew:          e.completedNew,
		CompletedPrior:        e.existingCompleted,
		CompletedTotal:        e.existingCompleted + e.completedNew,
		Timestamp:             time.Now().UTC(),
		BannedModels:          banned,
	}
	e.mu.Unlock()

	if err := storage.WriteProgress(e.opts.ProgressPath, p); err != nil {
		e.logger.WithError(err).Warn("failed to write progress snapshot")
	}
}
