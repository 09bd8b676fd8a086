package agent

import (
	"context"
	"sync"

	"voxcrew/pkg/agent/llm"
)

// MockClient is a call-counting llm.Client test double. Tests queue canned
// responses or a fixed error and assert on recorded requests.
type MockClient struct {
	mu        sync.Mutex
	responses []llm.CompletionResponse
	err       error
	requests  []llm.CompletionRequest
}

// NewMockClient creates a mock that replays the given responses in order,
// repeating the last one when exhausted.
func NewMockClient(responses ...llm.CompletionResponse) *MockClient {
	return &MockClient{responses: responses}
}

// NewFailingMockClient creates a mock whose Complete always returns err.
func NewFailingMockClient(err error) *MockClient {
	return &MockClient{err: err}
}

// Complete implements llm.Client.
//
//nolint:gocritic // CompletionRequest passed by value for interface consistency
func (m *MockClient) Complete(_ context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, in)
	if m.err != nil {
		return llm.CompletionResponse{}, m.err
	}
	if len(m.responses) == 0 {
		return llm.CompletionResponse{Content: "mock response", StopReason: llm.StopEnd}, nil
	}

	idx := len(m.requests) - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

// ModelName implements llm.Client.
func (m *MockClient) ModelName(tier llm.Tier) string {
	return "mock-" + string(tier)
}

// CallCount returns the number of Complete invocations.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of all recorded requests.
func (m *MockClient) Requests() []llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request, or nil when none were made.
func (m *MockClient) LastRequest() *llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	req := m.requests[len(m.requests)-1]
	return &req
}
