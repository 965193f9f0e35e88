package debate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"debatebench/internal/models"
	"debatebench/internal/schema"
)

// stubDebater replays canned replies and records the prompts it saw.
type stubDebater struct {
	id      string
	replies []models.Reply
	err     error
	calls   int
	prompts []string
}

func (s *stubDebater) ID() string { return s.id }

func (s *stubDebater) Generate(ctx context.Context, prompt string, maxTokens int) (models.Reply, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return models.Reply{}, s.err
	}
	i := s.calls
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	s.calls++
	return s.replies[i], nil
}

func contentReply(text string) models.Reply {
	return models.Reply{Content: text}
}

func runnerConfig() schema.MainConfig {
	return schema.MainConfig{
		BenchmarkVersion: "test",
		Rounds: []schema.RoundConfig{
			{Speaker: schema.SidePro, Stage: "opening", TokenLimit: 512},
			{Speaker: schema.SideCon, Stage: "opening", TokenLimit: 512},
			{Speaker: schema.SidePro, Stage: "closing", TokenLimit: 256},
			{Speaker: schema.SideCon, Stage: "closing", TokenLimit: 256},
		},
	}
}

var testTopic = schema.Topic{ID: "t1", Motion: "This house believes testing matters"}

func TestRunProducesFullTranscript(t *testing.T) {
	pro := &stubDebater{id: "model-a", replies: []models.Reply{contentReply("pro argument " + EndOfTurnMarker)}}
	con := &stubDebater{id: "model-b", replies: []models.Reply{contentReply("con argument " + EndOfTurnMarker)}}
	r := NewRunner(runnerConfig(), nil, nil)

	transcript, err := r.Run(context.Background(), "task", testTopic, pro, con, 42)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(transcript.Turns) != 4 {
		t.Fatalf("len(Turns) = %d, want 4", len(transcript.Turns))
	}
	if transcript.ProModelID != "model-a" || transcript.ConModelID != "model-b" {
		t.Errorf("model ids = %q/%q", transcript.ProModelID, transcript.ConModelID)
	}
	if transcript.Seed != 42 {
		t.Errorf("Seed = %d, want 42", transcript.Seed)
	}
	if transcript.DebateID == "" {
		t.Error("DebateID is empty")
	}
	for i, turn := range transcript.Turns {
		if strings.Contains(turn.Content, EndOfTurnMarker) {
			t.Errorf("turn %d content still contains marker: %q", i, turn.Content)
		}
		if turn.Content == "" {
			t.Errorf("turn %d content is empty", i)
		}
		if turn.Index != i {
			t.Errorf("turn %d has Index %d", i, turn.Index)
		}
	}
}

func TestRunAcceptsMissingMarker(t *testing.T) {
	pro := &stubDebater{id: "a", replies: []models.Reply{contentReply("argument without marker")}}
	con := &stubDebater{id: "b", replies: []models.Reply{contentReply("reply " + EndOfTurnMarker)}}
	r := NewRunner(runnerConfig(), nil, nil)

	transcript, err := r.Run(context.Background(), "task", testTopic, pro, con, 1)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := transcript.Turns[0].Content; got != "argument without marker" {
		t.Errorf("turn content = %q", got)
	}
}

func TestRunTruncatesAtMarker(t *testing.T) {
	pro := &stubDebater{id: "a", replies: []models.Reply{
		contentReply("the actual argument " + EndOfTurnMarker + " trailing babble"),
	}}
	con := &stubDebater{id: "b", replies: []models.Reply{contentReply("reply")}}
	r := NewRunner(runnerConfig(), nil, nil)

	transcript, err := r.Run(context.Background(), "task", testTopic, pro, con, 1)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := transcript.Turns[0].Content; got != "the actual argument" {
		t.Errorf("turn content = %q, want marker-truncated argument", got)
	}
}

func TestRunFallsBackToReasoning(t *testing.T) {
	pro := &stubDebater{id: "a", replies: []models.Reply{
		{Content: "", Reasoning: "reasoning-channel argument"},
	}}
	con := &stubDebater{id: "b", replies: []models.Reply{contentReply("reply")}}
	r := NewRunner(runnerConfig(), nil, nil)

	transcript, err := r.Run(context.Background(), "task", testTopic, pro, con, 1)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := transcript.Turns[0].Content; got != "reasoning-channel argument" {
		t.Errorf("turn content = %q", got)
	}
}

func TestRunEmptyResponseAfterRetries(t *testing.T) {
	pro := &stubDebater{id: "empty-model", replies: []models.Reply{contentReply("")}}
	con := &stubDebater{id: "b", replies: []models.Reply{contentReply("reply")}}
	r := NewRunner(runnerConfig(), nil, nil)

	_, err := r.Run(context.Background(), "task", testTopic, pro, con, 1)
	var empty *EmptyResponseError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyResponseError, got %v", err)
	}
	if empty.ModelID != "empty-model" {
		t.Errorf("ModelID = %q", empty.ModelID)
	}
	if len(pro.prompts) != maxTurnAttempts {
		t.Errorf("attempts = %d, want %d", len(pro.prompts), maxTurnAttempts)
	}
}

func TestRunMarkerOnlyReplyIsEmpty(t *testing.T) {
	pro := &stubDebater{id: "marker-only", replies: []models.Reply{contentReply(EndOfTurnMarker)}}
	con := &stubDebater{id: "b", replies: []models.Reply{contentReply("reply")}}
	r := NewRunner(runnerConfig(), nil, nil)

	_, err := r.Run(context.Background(), "task", testTopic, pro, con, 1)
	var empty *EmptyResponseError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyResponseError, got %v", err)
	}
}

func TestRunPropagatesAdapterError(t *testing.T) {
	pro := &stubDebater{id: "a", err: fmt.Errorf("connection refused")}
	con := &stubDebater{id: "b", replies: []models.Reply{contentReply("reply")}}
	r := NewRunner(runnerConfig(), nil, nil)

	if _, err := r.Run(context.Background(), "task", testTopic, pro, con, 1); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pro := &stubDebater{id: "a", replies: []models.Reply{contentReply("x")}}
	con := &stubDebater{id: "b", replies: []models.Reply{contentReply("y")}}
	r := NewRunner(runnerConfig(), nil, nil)

	if _, err := r.Run(ctx, "task", testTopic, pro, con, 1); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestBuildTurnPromptIncludesHistory(t *testing.T) {
	cfg := runnerConfig()
	turns := []schema.Turn{
		{Speaker: schema.SidePro, Stage: "opening", Content: "first argument"},
	}
	prompt := buildTurnPrompt(cfg, testTopic, cfg.Rounds[1], turns)

	for _, want := range []string{testTopic.Motion, "first argument", EndOfTurnMarker, "PRO (opening)"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildTurnPromptSideFramingOverride(t *testing.T) {
	cfg := runnerConfig()
	cfg.SystemPromptCon = "custom con framing"
	prompt := buildTurnPrompt(cfg, testTopic, cfg.Rounds[1], nil)
	if !strings.Contains(prompt, "custom con framing") {
		t.Error("prompt missing configured con framing")
	}
	if strings.Contains(prompt, "Debate so far") {
		t.Error("first turn prompt should not carry history")
	}
}
