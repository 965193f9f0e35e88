package models

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"debatebench/internal/openrouter"
	"debatebench/internal/ratelimit"
	"debatebench/internal/schema"
	"debatebench/internal/settings"
)

func testSettings() settings.Settings {
	return settings.Settings{
		OpenRouterAPIKey: "or-key",
		OpenAIAPIKey:     "oa-key",
		HTTPBearerToken:  "bearer",
	}
}

func TestNewClientProviders(t *testing.T) {
	limiters := ratelimit.NewRegistry(60)

	tests := []struct {
		name     string
		provider string
		endpoint string
		settings settings.Settings
		wantErr  bool
	}{
		{"openrouter", "openrouter", "", testSettings(), false},
		{"openai", "openai", "", testSettings(), false},
		{"http with endpoint", "http", "http://localhost:8080/v1", testSettings(), false},
		{"http without endpoint", "http", "", testSettings(), true},
		{"openrouter missing key", "openrouter", "", settings.Settings{}, true},
		{"openai missing key", "openai", "", settings.Settings{}, true},
		{"unknown provider", "vertex", "", testSettings(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newClient(tt.provider, tt.endpoint, tt.settings, limiters)
			if (err != nil) != tt.wantErr {
				t.Errorf("newClient() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDebaterGenerateRequest(t *testing.T) {
	var got openrouter.ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(openrouter.ChatResponse{
			Choices: []openrouter.Choice{{Message: openrouter.ResponseMessage{Content: "an argument"}}},
			Usage:   &openrouter.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		})
	}))
	defer server.Close()

	d, err := NewDebater(schema.DebaterModelConfig{
		ID:         "model-a",
		Provider:   "http",
		Model:      "vendor/model-a",
		Endpoint:   server.URL,
		TokenLimit: 2048,
		Parameters: map[string]string{"temperature": "0.3"},
	}, testSettings(), ratelimit.NewRegistry(600))
	if err != nil {
		t.Fatalf("NewDebater() error = %v", err)
	}

	reply, err := d.Generate(context.Background(), "argue", 512)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if reply.Content != "an argument" {
		t.Errorf("Content = %q", reply.Content)
	}
	if reply.Usage.TotalTokens != 30 {
		t.Errorf("TotalTokens = %d", reply.Usage.TotalTokens)
	}
	if got.Model != "vendor/model-a" {
		t.Errorf("request model = %q", got.Model)
	}
	if got.MaxTokens != 512 {
		t.Errorf("max_tokens = %d, want per-turn 512", got.MaxTokens)
	}
	if got.Temperature == nil || *got.Temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", got.Temperature)
	}
}

func TestDebaterGenerateDefaultsTokenLimit(t *testing.T) {
	var got openrouter.ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(openrouter.ChatResponse{
			Choices: []openrouter.Choice{{Message: openrouter.ResponseMessage{Content: "x"}}},
		})
	}))
	defer server.Close()

	d, err := NewDebater(schema.DebaterModelConfig{
		ID: "m", Provider: "http", Model: "m", Endpoint: server.URL, TokenLimit: 1024,
	}, testSettings(), ratelimit.NewRegistry(600))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Generate(context.Background(), "argue", 0); err != nil {
		t.Fatal(err)
	}
	if got.MaxTokens != 1024 {
		t.Errorf("max_tokens = %d, want model token limit", got.MaxTokens)
	}
}

func TestJudgeStructuredRequest(t *testing.T) {
	var got openrouter.ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = openrouter.ChatRequest{}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(openrouter.ChatResponse{
			Choices: []openrouter.Choice{{Message: openrouter.ResponseMessage{Content: "{}"}}},
		})
	}))
	defer server.Close()

	j, err := NewJudge(schema.JudgeModelConfig{
		ID: "j1", Provider: "http", Model: "judge-model", Endpoint: server.URL,
	}, testSettings(), ratelimit.NewRegistry(600))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := j.Judge(context.Background(), "score this", true, []string{"persuasion", "clarity"}); err != nil {
		t.Fatal(err)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_schema" {
		t.Fatalf("response_format = %+v", got.ResponseFormat)
	}
	if got.ResponseFormat.JSONSchema == nil || !got.ResponseFormat.JSONSchema.Strict {
		t.Error("expected strict json schema")
	}
	// Judges default to deterministic sampling.
	if got.Temperature == nil || *got.Temperature != 0.0 {
		t.Errorf("temperature = %v, want 0", got.Temperature)
	}

	if _, err := j.Judge(context.Background(), "score this", false, nil); err != nil {
		t.Fatal(err)
	}
	if got.ResponseFormat != nil {
		t.Error("plain retry must not request structured output")
	}
}

func TestScoresResponseFormatShape(t *testing.T) {
	rf := scoresResponseFormat([]string{"persuasion", "reasoning"})

	data, err := json.Marshal(rf)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	schemaObj := decoded["json_schema"].(map[string]any)["schema"].(map[string]any)
	scores := schemaObj["properties"].(map[string]any)["scores"].(map[string]any)
	for _, side := range []string{"pro", "con"} {
		sideObj, ok := scores["properties"].(map[string]any)[side].(map[string]any)
		if !ok {
			t.Fatalf("schema missing %s side", side)
		}
		props := sideObj["properties"].(map[string]any)
		if _, ok := props["persuasion"]; !ok {
			t.Errorf("%s side missing persuasion", side)
		}
		if _, ok := props["winner"]; ok {
			t.Errorf("%s side must not carry a winner field", side)
		}
	}
}

func TestUsesFreeModels(t *testing.T) {
	paid := []schema.DebaterModelConfig{{Model: "vendor/model-a"}}
	free := []schema.DebaterModelConfig{{Model: "vendor/model-a:free"}}
	judges := []schema.JudgeModelConfig{{Model: "vendor/judge"}}
	freeJudges := []schema.JudgeModelConfig{{Model: "vendor/judge:free"}}

	if UsesFreeModels(paid, judges) {
		t.Error("paid stack reported as free")
	}
	if !UsesFreeModels(free, judges) {
		t.Error("free debater not detected")
	}
	if !UsesFreeModels(paid, freeJudges) {
		t.Error("free judge not detected")
	}
}

func TestParseTemperature(t *testing.T) {
	if got := parseTemperature(nil, 0.7); got == nil || *got != 0.7 {
		t.Errorf("parseTemperature(nil) = %v", got)
	}
	if got := parseTemperature(map[string]string{"temperature": "0.2"}, 0.7); got == nil || *got != 0.2 {
		t.Errorf("parseTemperature(0.2) = %v", got)
	}
	if got := parseTemperature(map[string]string{"temperature": "bad"}, 0.7); got == nil || *got != 0.7 {
		t.Errorf("parseTemperature(bad) = %v", got)
	}
}
