package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"debatebench/internal/events"
	"debatebench/internal/models"
	"debatebench/internal/schema"
)

// ErrPanelExhausted is returned when the candidate pool runs out before
// the required number of valid judge results is collected.
type ErrPanelExhausted struct {
	Expected  int
	Collected int
}

func (e *ErrPanelExhausted) Error() string {
	return fmt.Sprintf("judge: candidate pool exhausted with %d/%d valid results", e.Collected, e.Expected)
}

// FailedJudge is what gets sunk when a judge's response cannot be
// salvaged by any parsing strategy.
type FailedJudge struct {
	JudgeID     string    `json:"judge_id"`
	Reason      string    `json:"reason"`
	RawResponse string    `json:"raw_response,omitempty"`
	DebateID    string    `json:"debate_id"`
	TopicID     string    `json:"topic"`
	ProModelID  string    `json:"pro"`
	ConModelID  string    `json:"con"`
	CreatedAt   time.Time `json:"created_at"`
}

// FailureSink receives unsalvageable judge responses for later triage.
type FailureSink interface {
	SinkFailedJudge(f FailedJudge) error
}

// Evaluator collects valid per-dimension scores from enough judges to
// fill a panel, promoting alternates on failure.
type Evaluator struct {
	cfg      schema.MainConfig
	adapters map[string]models.Judge
	counters *UsageCounters
	logger   *logrus.Logger
	bus      *events.Bus
	sink     FailureSink
}

// NewEvaluator creates an Evaluator over the given judge adapters,
// keyed by judge id. A nil sink drops failed-judge payloads.
func NewEvaluator(cfg schema.MainConfig, adapters map[string]models.Judge, counters *UsageCounters, logger *logrus.Logger, bus *events.Bus, sink FailureSink) *Evaluator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Evaluator{
		cfg:      cfg,
		adapters: adapters,
		counters: counters,
		logger:   logger,
		bus:      bus,
		sink:     sink,
	}
}

// EvaluatePanel tries the selected panel in priority order, then the
// leftover candidates, until expected valid results are collected.
// Usage counters are incremented only for judges that contributed.
func (e *Evaluator) EvaluatePanel(ctx context.Context, taskID string, transcript schema.Transcript, panel, leftovers []schema.JudgeModelConfig, pairKey string) ([]schema.JudgeResult, error) {
	expected := e.cfg.NumJudges
	candidates := append(append([]schema.JudgeModelConfig{}, panel...), leftovers...)
	prompt := buildJudgePrompt(e.cfg, transcript)
	dims := e.cfg.Scoring.DimensionIDs()

	e.bus.Publish(events.JudgingStarted{TaskID: taskID})

	var results []schema.JudgeResult
	for _, candidate := range candidates {
		if len(results) == expected {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("judge: %w", err)
		}

		adapter, ok := e.adapters[candidate.ID]
		if !ok {
			e.logger.WithField("judge", candidate.ID).Warn("no adapter for judge, skipping")
			continue
		}

		result, err := e.evaluateOne(ctx, adapter, prompt, dims)
		if err != nil {
			e.logger.WithFields(logrus.Fields{
				"judge":  candidate.ID,
				"debate": transcript.DebateID,
			}).WithError(err).Warn("judge response unsalvageable, promoting alternate")
			if e.sink != nil {
				raw := ""
				var pe *parseError
				if errors.As(err, &pe) {
					raw = pe.raw
				}
				_ = e.sink.SinkFailedJudge(FailedJudge{
					JudgeID:     candidate.ID,
					Reason:      err.Error(),
					RawResponse: raw,
					DebateID:    transcript.DebateID,
					TopicID:     transcript.Topic.ID,
					ProModelID:  transcript.ProModelID,
					ConModelID:  transcript.ConModelID,
					CreatedAt:   time.Now().UTC(),
				})
			}
			continue
		}

		results = append(results, result)
		e.counters.Record(candidate.ID, transcript.Topic.ID, pairKey)
		e.bus.Publish(events.JudgeCompleted{
			TaskID:   taskID,
			JudgeID:  candidate.ID,
			Done:     len(results),
			Expected: expected,
		})
	}

	if len(results) != expected {
		return nil, &ErrPanelExhausted{Expected: expected, Collected: len(results)}
	}
	return results, nil
}

type parseError struct {
	reason string
	raw    string
}

func (e *parseError) Error() string { return e.reason }

// evaluateOne requests scores from a single judge: structured output
// first, one plain retry if the structured reply cannot be parsed.
func (e *Evaluator) evaluateOne(ctx context.Context, adapter models.Judge, prompt string, dims []string) (schema.JudgeResult, error) {
	start := time.Now()

	reply, err := adapter.Judge(ctx, prompt, true, dims)
	if err != nil {
		return schema.JudgeResult{}, fmt.Errorf("judge %s: %w", adapter.ID(), err)
	}
	result, perr := e.buildResult(adapter.ID(), reply, dims, start)
	if perr == nil {
		return result, nil
	}

	reply, err = adapter.Judge(ctx, prompt, false, dims)
	if err != nil {
		return schema.JudgeResult{}, fmt.Errorf("judge %s: %w", adapter.ID(), err)
	}
	return e.buildResult(adapter.ID(), reply, dims, start)
}

func (e *Evaluator) buildResult(judgeID string, reply models.Reply, dims []string, start time.Time) (schema.JudgeResult, error) {
	raw := reply.Content
	if strings.TrimSpace(raw) == "" {
		raw = reply.Reasoning
	}

	proRaw, conRaw, ok := parseScores(raw, dims)
	if !ok {
		return schema.JudgeResult{}, &parseError{reason: "no parsing strategy yielded scores for both sides", raw: raw}
	}
	pro, con, err := validateScores(proRaw, conRaw, e.cfg.Scoring)
	if err != nil {
		return schema.JudgeResult{}, &parseError{reason: err.Error(), raw: raw}
	}

	return schema.JudgeResult{
		JudgeID:          judgeID,
		Pro:              pro,
		Con:              con,
		Winner:           deriveWinner(pro, con),
		RawResponse:      raw,
		LatencyMs:        float64(time.Since(start)) / float64(time.Millisecond),
		PromptTokens:     reply.Usage.PromptTokens,
		CompletionTokens: reply.Usage.CompletionTokens,
		TotalTokens:      reply.Usage.TotalTokens,
		Cost:             reply.Usage.Cost,
	}, nil
}

// validateScores enforces the rubric contract: every configured
// dimension present on both sides, integer values clamped into the
// scale, and the all-scale-min degenerate case rejected (commonly a
// thinking-only reply that parsed to nothing useful).
func validateScores(proRaw, conRaw map[string]int, scoring schema.ScoringConfig) (schema.JudgeScores, schema.JudgeScores, error) {
	pro := schema.JudgeScores{Scores: make(map[string]int, len(scoring.Dimensions))}
	con := schema.JudgeScores{Scores: make(map[string]int, len(scoring.Dimensions))}

	allMin := true
	for _, dim := range scoring.Dimensions {
		p, ok := proRaw[dim.ID]
		if !ok {
			return schema.JudgeScores{}, schema.JudgeScores{}, fmt.Errorf("missing dimension %q for pro", dim.ID)
		}
		c, ok := conRaw[dim.ID]
		if !ok {
			return schema.JudgeScores{}, schema.JudgeScores{}, fmt.Errorf("missing dimension %q for con", dim.ID)
		}
		p = clamp(p, scoring.ScaleMin, scoring.ScaleMax)
		c = clamp(c, scoring.ScaleMin, scoring.ScaleMax)
		pro.Scores[dim.ID] = p
		con.Scores[dim.ID] = c
		if p != scoring.ScaleMin || c != scoring.ScaleMin {
			allMin = false
		}
	}
	if allMin {
		return schema.JudgeScores{}, schema.JudgeScores{}, fmt.Errorf("degenerate response: every score equals scale minimum")
	}
	return pro, con, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// deriveWinner compares the two sides' mean dimension scores. The
// judge is never asked to name a winner directly.
func deriveWinner(pro, con schema.JudgeScores) string {
	meanPro := mean(pro.Scores)
	meanCon := mean(con.Scores)
	switch {
	case meanPro > meanCon:
		return schema.SidePro
	case meanCon > meanPro:
		return schema.SideCon
	default:
		return schema.SideTie
	}
}

func mean(scores map[string]int) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, v := range scores {
		sum += v
	}
	return float64(sum) / float64(len(scores))
}

// buildJudgePrompt renders the adjudication request: system framing,
// motion, required dimensions with scale bounds, the JSON-only output
// instruction, and the full transcript.
func buildJudgePrompt(cfg schema.MainConfig, transcript schema.Transcript) string {
	var sb strings.Builder

	framing := cfg.JudgeSystemPrompt
	if framing == "" {
		framing = "You are an impartial debate adjudicator. Score both sides on each rubric dimension. Do not reward verbosity."
	}
	sb.WriteString(framing)
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Motion: %s\n", transcript.Topic.Motion)
	fmt.Fprintf(&sb, "Score each side on these dimensions (%s), integers from %d to %d.\n",
		strings.Join(cfg.Scoring.DimensionIDs(), ", "), cfg.Scoring.ScaleMin, cfg.Scoring.ScaleMax)
	sb.WriteString(`Return ONLY one JSON object shaped {"scores": {"pro": {...}, "con": {...}}} with one integer per dimension. No winner field, no prose.`)
	sb.WriteString("\n\nTranscript:\n")
	for _, t := range transcript.Turns {
		fmt.Fprintf(&sb, "%s (%s): %s\n", strings.ToUpper(t.Speaker), t.Stage, t.Content)
	}
	return sb.String()
}
