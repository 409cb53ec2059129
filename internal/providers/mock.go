package providers

import (
	"context"
	"sync"
)

// MockClient is a scripted LLMClient for tests.
type MockClient struct {
	mu sync.Mutex

	// Response returned for every call when Script is empty.
	Response *Completion
	// Script returns responses in order, then falls back to Response.
	Script []*Completion
	// Err, when set, is returned by every call.
	Err error

	calls []CompletionRequest
}

// NewMockClient returns a mock with a minimal default response.
func NewMockClient() *MockClient {
	return &MockClient{
		Response: &Completion{
			Content:          `[]`,
			Model:            "mock-model",
			PromptTokens:     10,
			CompletionTokens: 5,
			TotalTokens:      15,
			Cost:             0.001,
		},
	}
}

// Name returns the client identifier.
func (m *MockClient) Name() string { return "mock" }

// Complete records the request and replays the script.
func (m *MockClient) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, *req)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Script) > 0 {
		next := m.Script[0]
		m.Script = m.Script[1:]
		return next, nil
	}
	return m.Response, nil
}

// Calls returns a copy of all requests seen so far.
func (m *MockClient) Calls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

var _ LLMClient = (*MockClient)(nil)
