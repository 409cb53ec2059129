package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/semaphore"
)

const (
	OpenRouterName    = "openrouter"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenRouterConfig configures the OpenRouter-compatible client. Any
// endpoint speaking the OpenAI chat-completions dialect works.
type OpenRouterConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration

	RPS           float64 // requests per second (default 5)
	MaxConcurrent int64   // simultaneous in-flight calls (default 5)
	MaxRetries    int     // attempts on retryable errors (default 3)
	RetryDelay    time.Duration

	// Pricing maps model -> USD per million tokens, used when the
	// provider response carries no cost field.
	Pricing map[string]ModelPricing
}

// ModelPricing is the per-million-token price of a model.
type ModelPricing struct {
	PromptUSD     float64 `mapstructure:"prompt_usd" json:"prompt_usd"`
	CompletionUSD float64 `mapstructure:"completion_usd" json:"completion_usd"`
}

// OpenRouterClient implements LLMClient against an OpenRouter-style API.
// All calls across the process share one concurrency permit pool and
// one token bucket, independent of which stage issues them.
type OpenRouterClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client

	sem        *semaphore.Weighted
	limiter    *RateLimiter
	maxRetries int
	retryDelay time.Duration
	pricing    map[string]ModelPricing
}

// NewOpenRouterClient creates the client with defaults filled in.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenRouterBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RPS == 0 {
		cfg.RPS = 5.0
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	return &OpenRouterClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		client:       &http.Client{Timeout: cfg.Timeout},
		sem:          semaphore.NewWeighted(cfg.MaxConcurrent),
		limiter:      NewRateLimiter(cfg.RPS),
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		pricing:      cfg.Pricing,
	}
}

// Name returns the client identifier.
func (c *OpenRouterClient) Name() string {
	return OpenRouterName
}

// Complete sends a completion request. It acquires a concurrency
// permit, waits on the token bucket, and retries rate-limit and server
// errors with exponential backoff (1s, 2s, 4s) before giving up.
func (c *OpenRouterClient) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		Usage:       &usageRequest{Include: true},
	}

	var resp *chatResponse
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			r, err := c.doRequest(ctx, "/chat/completions", &body)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	cost := resp.Usage.Cost
	if cost == 0 {
		cost = c.estimateCost(model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	return &Completion{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		Cost:             cost,
	}, nil
}

func (c *OpenRouterClient) doRequest(ctx context.Context, path string, body any) (*chatResponse, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("provider error (status %d): %s", httpResp.StatusCode, truncate(string(respBody), 300))
		if !retryableStatus(httpResp.StatusCode) {
			return nil, retry.Unrecoverable(apiErr)
		}
		return nil, apiErr
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("unmarshal response: %w", err))
	}
	return &parsed, nil
}

// retryableStatus classifies which HTTP statuses are worth retrying.
// Kept as its own predicate so provider-specific shapes can extend it
// without touching error construction.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func (c *OpenRouterClient) estimateCost(model string, promptTokens, completionTokens int) float64 {
	p, ok := c.pricing[model]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1e6*p.PromptUSD + float64(completionTokens)/1e6*p.CompletionUSD
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// OpenRouter wire types.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type usageRequest struct {
	Include bool `json:"include"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	Usage       *usageRequest `json:"usage,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int     `json:"prompt_tokens"`
		CompletionTokens int     `json:"completion_tokens"`
		TotalTokens      int     `json:"total_tokens"`
		Cost             float64 `json:"cost"`
	} `json:"usage"`
}

var _ LLMClient = (*OpenRouterClient)(nil)
