// Package providers holds the LLM client used by the factory stage: an
// OpenRouter-compatible HTTP client with a process-wide concurrency
// permit pool, token-bucket pacing, and bounded retry on rate limits.
package providers

import "context"

// CompletionRequest is one prompt sent to the model.
type CompletionRequest struct {
	Prompt       string
	Model        string
	Temperature  float64
	SystemPrompt string
}

// Completion is the response from a completion call.
type Completion struct {
	Content          string  `json:"content"`
	Model            string  `json:"model"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
}

// LLMClient is the completion interface the pipeline depends on.
// Implementations rate-limit and retry internally; callers may fan out
// freely and rely on the client's own concurrency cap.
type LLMClient interface {
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
	Name() string
}
