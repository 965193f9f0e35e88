// Package openrouter is an HTTP client for OpenAI-compatible chat
// completion providers, with retry, rate limiting, and catalog access.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"debatebench/internal/ratelimit"
)

const maxRetries = 3

// DefaultBaseURL is the OpenRouter API root.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// APIError is a non-retryable provider error.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

var affordableRe = regexp.MustCompile(`afford\D*(\d+)`)

// AffordableTokens extracts the provider-reported affordable token
// budget from a 402 body. Returns 0 when the body carries none.
func (e *APIError) AffordableTokens() int {
	if e.StatusCode != http.StatusPaymentRequired {
		return 0
	}
	m := affordableRe.FindStringSubmatch(e.Body)
	if len(m) < 2 {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// Client is an OpenRouter-style API client.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	siteURL     string
	siteName    string
	limiter     *ratelimit.Limiter
	backoffFunc func(attempt int) time.Duration
}

func defaultBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a custom API root (also used by tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithLimiter attaches a shared request-rate limiter acquired before
// every outbound call.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithSite sets the optional attribution headers.
func WithSite(url, name string) Option {
	return func(c *Client) { c.siteURL, c.siteName = url, name }
}

// WithBackoff replaces the retry backoff schedule (used by tests).
func WithBackoff(f func(attempt int) time.Duration) Option {
	return func(c *Client) { c.backoffFunc = f }
}

// NewClient creates a new Client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		apiKey:      apiKey,
		baseURL:     DefaultBaseURL,
		backoffFunc: defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
}

// ChatCompletion sends a chat completion request. Transient failures
// (timeouts, 5xx, 429) are retried with backoff; a 402 budget error is
// retried once with the provider-reported affordable token budget.
func (c *Client) ChatCompletion(ctx context.Context, reqBody ChatRequest) (*ChatResponse, error) {
	resp, err := c.post(ctx, reqBody)
	if apiErr, ok := err.(*APIError); ok {
		if affordable := apiErr.AffordableTokens(); affordable > 0 && affordable < reqBody.MaxTokens {
			reqBody.MaxTokens = affordable
			resp, err = c.post(ctx, reqBody)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, reqBody ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.doWithRetry(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, err
	}
	return &chatResp, nil
}

func isRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

func (c *Client) doWithRetry(ctx context.Context, do func(context.Context) (*http.Response, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoffFunc(attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := do(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Connection errors and client timeouts get the same
			// backoff treatment as retryable statuses.
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if !isRetryable(resp.StatusCode) {
			return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		// Respect Retry-After header on 429 (additional wait on top of backoff)
		if resp.StatusCode == http.StatusTooManyRequests {
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, parseErr := strconv.Atoi(ra); parseErr == nil {
					raDelay := time.Duration(secs) * time.Second
					// Skip if backoffFunc signals zero delays (test mode)
					if raDelay > 0 && c.backoffFunc(0) > 0 {
						select {
						case <-ctx.Done():
							return nil, ctx.Err()
						case <-time.After(raDelay):
						}
					}
				}
			}
		}

		lastErr = &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil, lastErr
}

// ListModels retrieves the model catalog.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openrouter: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var modelsResp ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	return modelsResp.Data, nil
}

// Probe sends a minimal 1-token request to verify a model is usable.
// Returns nil on success; otherwise the provider's error for logging.
func (c *Client) Probe(ctx context.Context, modelID string) error {
	body, err := json.Marshal(ChatRequest{
		Model:     modelID,
		Messages:  []Message{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("openrouter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("openrouter: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openrouter: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	respBody, _ := io.ReadAll(resp.Body)
	return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
}
