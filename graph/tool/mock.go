package tool

import (
	"context"
	"sync"
)

// MockTool is a scripted Tool for tests.
//
// Responses are returned in order and the last one repeats. Handler, when
// set, computes the result from the input instead.
//
//	add := &tool.MockTool{
//	    ToolName:  "add_to_cart",
//	    Responses: []map[string]interface{}{{"text": "added"}},
//	}
type MockTool struct {
	// ToolName is returned by Name.
	ToolName string

	// Responses is the sequence of results to return.
	Responses []map[string]interface{}

	// Handler, if set, takes precedence over Responses.
	Handler CallFunc

	// Err, if set, is returned by every call.
	Err error

	// Calls records each invocation's input.
	Calls []MockToolCall

	mu        sync.Mutex
	callIndex int
}

// MockToolCall records a single invocation.
type MockToolCall struct {
	Input map[string]interface{}
}

// Name implements Tool.
func (m *MockTool) Name() string {
	return m.ToolName
}

// Call implements Tool.
func (m *MockTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockToolCall{Input: input})

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Handler != nil {
		return m.Handler(ctx, input)
	}
	if len(m.Responses) == 0 {
		return map[string]interface{}{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Reset clears recorded calls and rewinds the response sequence.
func (m *MockTool) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of invocations so far.
func (m *MockTool) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}
