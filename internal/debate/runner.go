// Package debate drives one debate to a full transcript: the per-round
// turn loop, prompt construction, and output validation.
package debate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"debatebench/internal/events"
	"debatebench/internal/models"
	"debatebench/internal/schema"
)

// maxTurnAttempts bounds the in-task retry loop for unusable turn content.
const maxTurnAttempts = 3

// EmptyResponseError signals that a model produced no usable content
// for a turn after all attempts. The executor uses it to ban or retry.
type EmptyResponseError struct {
	ModelID string
	Stage   string
	Speaker string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("debate: model %s returned empty content for %s turn (%s stage)",
		e.ModelID, e.Speaker, e.Stage)
}

// Runner produces transcripts by driving two debater adapters through
// the configured round sequence. It never persists anything itself.
type Runner struct {
	cfg    schema.MainConfig
	logger *logrus.Logger
	bus    *events.Bus
}

// NewRunner creates a Runner. A nil logger falls back to the default;
// a nil bus disables progress events.
func NewRunner(cfg schema.MainConfig, logger *logrus.Logger, bus *events.Bus) *Runner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Runner{cfg: cfg, logger: logger, bus: bus}
}

// Run executes every configured round in order and returns the
// completed transcript.
func (r *Runner) Run(ctx context.Context, taskID string, topic schema.Topic, pro, con models.Debater, seed int64) (schema.Transcript, error) {
	transcript := schema.Transcript{
		DebateID:         uuid.NewString(),
		BenchmarkVersion: r.cfg.BenchmarkVersion,
		RubricVersion:    r.cfg.RubricVersion,
		Topic:            topic,
		ProModelID:       pro.ID(),
		ConModelID:       con.ID(),
		Seed:             seed,
	}

	adapters := map[string]models.Debater{
		schema.SidePro: pro,
		schema.SideCon: con,
	}

	for idx, round := range r.cfg.Rounds {
		if err := ctx.Err(); err != nil {
			return schema.Transcript{}, fmt.Errorf("debate: %w", err)
		}
		r.bus.Publish(events.TurnStarted{
			TaskID:     taskID,
			RoundIndex: idx,
			Speaker:    round.Speaker,
			Stage:      round.Stage,
		})

		adapter := adapters[round.Speaker]
		prompt := buildTurnPrompt(r.cfg, topic, round, transcript.Turns)

		turn, err := r.runTurn(ctx, adapter, prompt, idx, round)
		if err != nil {
			return schema.Transcript{}, err
		}
		transcript.Turns = append(transcript.Turns, turn)
	}

	return transcript, nil
}

// runTurn calls the adapter and validates the content: empty replies
// fall back to the reasoning side channel, then retry up to the
// attempt cap; a missing end-of-turn marker is appended, never
// rejected; the marker is stripped before storage.
func (r *Runner) runTurn(ctx context.Context, adapter models.Debater, prompt string, idx int, round schema.RoundConfig) (schema.Turn, error) {
	start := time.Now()
	var reply models.Reply

	content := ""
	for attempt := 0; attempt < maxTurnAttempts; attempt++ {
		var err error
		reply, err = adapter.Generate(ctx, prompt, round.TokenLimit)
		if err != nil {
			return schema.Turn{}, fmt.Errorf("debate: %s turn (%s): %w", round.Speaker, round.Stage, err)
		}

		content = strings.TrimSpace(reply.Content)
		if content == "" {
			content = strings.TrimSpace(reply.Reasoning)
		}
		if content != "" {
			break
		}
		r.logger.WithFields(logrus.Fields{
			"model":   adapter.ID(),
			"stage":   round.Stage,
			"attempt": attempt + 1,
		}).Warn("empty turn content, retrying")
	}
	if content == "" {
		return schema.Turn{}, &EmptyResponseError{
			ModelID: adapter.ID(),
			Stage:   round.Stage,
			Speaker: round.Speaker,
		}
	}

	if !strings.Contains(content, EndOfTurnMarker) {
		content += "\n" + EndOfTurnMarker
	}
	content = stripMarker(content)
	if content == "" {
		// Marker-only reply carries no argument.
		return schema.Turn{}, &EmptyResponseError{
			ModelID: adapter.ID(),
			Stage:   round.Stage,
			Speaker: round.Speaker,
		}
	}

	return schema.Turn{
		Index:            idx,
		Speaker:          round.Speaker,
		Stage:            round.Stage,
		Content:          content,
		CreatedAt:        time.Now().UTC(),
		DurationMs:       float64(time.Since(start)) / float64(time.Millisecond),
		PromptTokens:     reply.Usage.PromptTokens,
		CompletionTokens: reply.Usage.CompletionTokens,
		TotalTokens:      reply.Usage.TotalTokens,
		Cost:             reply.Usage.Cost,
	}, nil
}

// stripMarker cuts the content at the first end-of-turn marker and
// removes any stray occurrences.
func stripMarker(content string) string {
	if i := strings.Index(content, EndOfTurnMarker); i >= 0 {
		content = content[:i]
	}
	content = strings.ReplaceAll(content, EndOfTurnMarker, "")
	return strings.TrimSpace(content)
}
