package openrouter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func noBackoff(int) time.Duration { return 0 }

func okResponse(content string) ChatResponse {
	return ChatResponse{
		Choices: []Choice{
			{Message: ResponseMessage{Role: "assistant", Content: content}},
		},
	}
}

func TestChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected Authorization header 'Bearer test-key', got %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("HTTP-Referer") != "https://example.com" {
			t.Errorf("expected HTTP-Referer header, got %q", r.Header.Get("HTTP-Referer"))
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("failed to read body: %v", err)
		}
		var req ChatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("failed to unmarshal request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("expected model 'test-model', got %q", req.Model)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(okResponse("hi there"))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL), WithSite("https://example.com", "debatebench"))
	resp, err := client.ChatCompletion(context.Background(), ChatRequest{
		Model:    "test-model",
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := resp.Content(); got != "hi there" {
		t.Errorf("expected 'hi there', got %q", got)
	}
}

func TestChatCompletionRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("upstream exploded"))
			return
		}
		json.NewEncoder(w).Encode(okResponse("recovered"))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL), WithBackoff(noBackoff))
	resp, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content() != "recovered" {
		t.Errorf("expected 'recovered', got %q", resp.Content())
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("expected 3 requests, got %d", n)
	}
}

func TestChatCompletionGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL), WithBackoff(noBackoff))
	_, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "m"})
	if err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != maxRetries+1 {
		t.Errorf("expected %d requests, got %d", maxRetries+1, n)
	}
}

func TestChatCompletionNonRetryableFailsFast(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad request"))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL), WithBackoff(noBackoff))
	_, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "m"})
	if err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 request, got %d", n)
	}
}

func TestChatCompletionBudgetDownshift(t *testing.T) {
	var maxTokensSeen []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		maxTokensSeen = append(maxTokensSeen, req.MaxTokens)
		if len(maxTokensSeen) == 1 {
			w.WriteHeader(http.StatusPaymentRequired)
			w.Write([]byte("This request requires more credits. You can only afford 1500 tokens."))
			return
		}
		json.NewEncoder(w).Encode(okResponse("within budget"))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL), WithBackoff(noBackoff))
	resp, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "m", MaxTokens: 4000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content() != "within budget" {
		t.Errorf("expected success after downshift, got %q", resp.Content())
	}
	if len(maxTokensSeen) != 2 || maxTokensSeen[0] != 4000 || maxTokensSeen[1] != 1500 {
		t.Errorf("expected max_tokens [4000 1500], got %v", maxTokensSeen)
	}
}

func TestChatCompletionBudgetDownshiftOnlyOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte("can only afford 10 tokens"))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL), WithBackoff(noBackoff))
	_, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "m", MaxTokens: 100})
	if err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("expected 2 requests (original + one downshift), got %d", n)
	}
}

func TestChatCompletionRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(okResponse("after cooldown"))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL), WithBackoff(noBackoff))
	resp, err := client.ChatCompletion(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content() != "after cooldown" {
		t.Errorf("expected 'after cooldown', got %q", resp.Content())
	}
}

func TestAPIErrorAffordableTokens(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   int
	}{
		{"extracts budget", http.StatusPaymentRequired, "you can only afford 1234 tokens", 1234},
		{"no number", http.StatusPaymentRequired, "insufficient credits", 0},
		{"wrong status", http.StatusBadRequest, "can only afford 1234 tokens", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &APIError{StatusCode: tt.status, Body: tt.body}
			if got := err.AffordableTokens(); got != tt.want {
				t.Errorf("AffordableTokens() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/models" {
			t.Errorf("expected /models, got %s", r.URL.Path)
		}
		resp := ModelsResponse{
			Data: []Model{
				{ID: "model-1", Name: "Model One", Pricing: &Pricing{Prompt: "0", Completion: "0"}},
				{ID: "model-2", Name: "Model Two"},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].ID != "model-1" {
		t.Errorf("expected 'model-1', got %q", models[0].ID)
	}
}

func TestProbe(t *testing.T) {
	var body ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding probe body: %v", err)
		}
		json.NewEncoder(w).Encode(okResponse("pong"))
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	if err := client.Probe(context.Background(), "model-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Model != "model-1" {
		t.Errorf("probed model = %q, want %q", body.Model, "model-1")
	}
	if body.MaxTokens != 1 {
		t.Errorf("probe max_tokens = %d, want 1", body.MaxTokens)
	}
}

func TestProbeReturnsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such model", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient("test-key", WithBaseURL(server.URL))
	err := client.Probe(context.Background(), "missing")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
}
