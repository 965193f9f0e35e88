// Package models builds the provider adapters debaters and judges are
// called through, and filters the remote model catalog.
package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"debatebench/internal/openrouter"
	"debatebench/internal/ratelimit"
	"debatebench/internal/schema"
	"debatebench/internal/settings"
)

// Reply is one model response: main content, any reasoning side
// channel, and token usage.
type Reply struct {
	Content   string
	Reasoning string
	Usage     openrouter.Usage
}

// Debater is the capability a debate runner consumes.
type Debater interface {
	ID() string
	Generate(ctx context.Context, prompt string, maxTokens int) (Reply, error)
}

// Judge is the capability a judge evaluator consumes. When structured
// is set the adapter requests schema-constrained output listing exactly
// the given dimension ids; providers that ignore it still return text
// for the parsing pipeline.
type Judge interface {
	ID() string
	Judge(ctx context.Context, prompt string, structured bool, dims []string) (Reply, error)
}

// chatAdapter speaks the OpenAI-compatible chat schema for all
// supported providers.
type chatAdapter struct {
	id          string
	model       string
	client      *openrouter.Client
	temperature *float64
	tokenLimit  int
}

func (a *chatAdapter) ID() string { return a.id }

func (a *chatAdapter) Generate(ctx context.Context, prompt string, maxTokens int) (Reply, error) {
	if maxTokens <= 0 {
		maxTokens = a.tokenLimit
	}
	resp, err := a.client.ChatCompletion(ctx, openrouter.ChatRequest{
		Model:       a.model,
		Messages:    []openrouter.Message{{Role: "user", Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: a.temperature,
	})
	if err != nil {
		return Reply{}, err
	}
	return replyFrom(resp), nil
}

func (a *chatAdapter) Judge(ctx context.Context, prompt string, structured bool, dims []string) (Reply, error) {
	req := openrouter.ChatRequest{
		Model:       a.model,
		Messages:    []openrouter.Message{{Role: "user", Content: prompt}},
		MaxTokens:   a.tokenLimit,
		Temperature: a.temperature,
	}
	if structured {
		req.ResponseFormat = scoresResponseFormat(dims)
	}
	resp, err := a.client.ChatCompletion(ctx, req)
	if err != nil {
		return Reply{}, err
	}
	return replyFrom(resp), nil
}

func replyFrom(resp *openrouter.ChatResponse) Reply {
	r := Reply{Content: resp.Content(), Reasoning: resp.Reasoning()}
	if resp.Usage != nil {
		r.Usage = *resp.Usage
	}
	return r
}

// scoresResponseFormat builds the structured-output schema: one
// integer per required dimension for each side, no winner field.
func scoresResponseFormat(dims []string) *openrouter.ResponseFormat {
	sideProps := map[string]any{}
	for _, d := range dims {
		sideProps[d] = map[string]any{"type": "integer"}
	}
	side := func() map[string]any {
		return map[string]any{
			"type":                 "object",
			"properties":           sideProps,
			"required":             dims,
			"additionalProperties": false,
		}
	}
	return &openrouter.ResponseFormat{
		Type: "json_schema",
		JSONSchema: &openrouter.JSONSchema{
			Name:   "judge_scores",
			Strict: true,
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"scores": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"pro": side(),
							"con": side(),
						},
						"required":             []string{"pro", "con"},
						"additionalProperties": false,
					},
				},
				"required":             []string{"scores"},
				"additionalProperties": false,
			},
		},
	}
}

const openAIBaseURL = "https://api.openai.com/v1"

func parseTemperature(params map[string]string, fallback float64) *float64 {
	t := fallback
	if s, ok := params["temperature"]; ok {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			t = v
		}
	}
	return &t
}

func newClient(provider, endpoint string, s settings.Settings, limiters *ratelimit.Registry) (*openrouter.Client, error) {
	switch strings.ToLower(provider) {
	case "openrouter":
		if s.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("models: OPENROUTER_API_KEY is required for openrouter provider")
		}
		base := openrouter.DefaultBaseURL
		if endpoint != "" {
			base = endpoint
		}
		return openrouter.NewClient(s.OpenRouterAPIKey,
			openrouter.WithBaseURL(base),
			openrouter.WithLimiter(limiters.For("openrouter")),
			openrouter.WithSite(s.SiteURL, s.SiteName),
		), nil
	case "openai":
		if s.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("models: OPENAI_API_KEY is required for openai provider")
		}
		base := openAIBaseURL
		if endpoint != "" {
			base = endpoint
		}
		return openrouter.NewClient(s.OpenAIAPIKey,
			openrouter.WithBaseURL(base),
			openrouter.WithLimiter(limiters.For("openai")),
		), nil
	case "http":
		if endpoint == "" {
			return nil, fmt.Errorf("models: http provider requires an endpoint")
		}
		return openrouter.NewClient(s.HTTPBearerToken,
			openrouter.WithBaseURL(endpoint),
			openrouter.WithLimiter(limiters.For("http")),
		), nil
	default:
		return nil, fmt.Errorf("models: unknown provider %q", provider)
	}
}

// NewDebater constructs the adapter for one debater config.
func NewDebater(cfg schema.DebaterModelConfig, s settings.Settings, limiters *ratelimit.Registry) (Debater, error) {
	client, err := newClient(cfg.Provider, cfg.Endpoint, s, limiters)
	if err != nil {
		return nil, err
	}
	limit := cfg.TokenLimit
	if limit <= 0 {
		limit = 4096
	}
	return &chatAdapter{
		id:          cfg.ID,
		model:       cfg.Model,
		client:      client,
		temperature: parseTemperature(cfg.Parameters, 0.7),
		tokenLimit:  limit,
	}, nil
}

// NewJudge constructs the adapter for one judge config.
func NewJudge(cfg schema.JudgeModelConfig, s settings.Settings, limiters *ratelimit.Registry) (Judge, error) {
	client, err := newClient(cfg.Provider, cfg.Endpoint, s, limiters)
	if err != nil {
		return nil, err
	}
	limit := cfg.TokenLimit
	if limit <= 0 {
		limit = 4096
	}
	return &chatAdapter{
		id:          cfg.ID,
		model:       cfg.Model,
		client:      client,
		temperature: parseTemperature(cfg.Parameters, 0.0),
		tokenLimit:  limit,
	}, nil
}

// UsesFreeModels reports whether any configured model is an OpenRouter
// free-tier model, which shares a hard provider-wide request quota.
func UsesFreeModels(debaters []schema.DebaterModelConfig, judges []schema.JudgeModelConfig) bool {
	for _, m := range debaters {
		if strings.HasSuffix(m.Model, ":free") {
			return true
		}
	}
	for _, j := range judges {
		if strings.HasSuffix(j.Model, ":free") {
			return true
		}
	}
	return false
}
