package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/interviewd/internal/config"
	"github.com/hyperjump/interviewd/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultBaseBackoff = time.Second

// OpenAIClient calls an OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
	logger      *zap.Logger
}

// Option configures an OpenAIClient.
type Option func(*OpenAIClient)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *OpenAIClient) { c.logger = l }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *OpenAIClient) { c.httpClient = h }
}

// WithRetries retries rate-limited and server errors up to n times with exponential backoff.
// The default is no retry.
func WithRetries(n int, backoff time.Duration) Option {
	return func(c *OpenAIClient) {
		c.maxRetries = n
		if backoff > 0 {
			c.baseBackoff = backoff
		}
	}
}

// NewOpenAIClient creates a client for cfg.BaseURL.
func NewOpenAIClient(cfg config.LLMConfig, opts ...Option) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is not set (INTERVIEWD_LLM_API_KEY or OPENAI_API_KEY)")
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	c := &OpenAIClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{},
		limiter:     rate.NewLimiter(limit, burst),
		baseBackoff: defaultBaseBackoff,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// retryableError marks failures worth another attempt.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Complete sends messages with params and returns the first choice's content.
// The call is bounded by params.Timeout when set.
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, params Params) (string, error) {
	start := time.Now()
	if params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, params.Timeout)
		defer cancel()
	}

	out, err := c.complete(ctx, messages, params)
	metrics.ObserveCompletion(params.CallSite, start, err)
	if err != nil {
		c.logger.Warn("llm completion failed",
			zap.String("call_site", params.CallSite),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", err
	}
	c.logger.Debug("llm completion",
		zap.String("call_site", params.CallSite),
		zap.Int("messages", len(messages)),
		zap.Int("reply_chars", len(out)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

func (c *OpenAIClient) complete(ctx context.Context, messages []Message, params Params) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}
	req := chatRequest{
		Model:       params.Model,
		Messages:    messages,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		out, err := c.doRequest(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
	}
	if c.maxRetries == 0 {
		return "", lastErr
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *OpenAIClient) doRequest(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("completion request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &retryableError{err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return "", &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))}
	}
	if resp.StatusCode != http.StatusOK {
		var e apiError
		if err := json.Unmarshal(raw, &e); err == nil && e.Error.Message != "" {
			return "", fmt.Errorf("completion api error (%d): %s", resp.StatusCode, e.Error.Message)
		}
		return "", fmt.Errorf("completion api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

var _ Completer = (*OpenAIClient)(nil)
