package mock

import (
	"context"

	"github.com/poiesic/advisor/ai"
)

// DefaultReply is returned by MockCompleter when no CompleteFunc is set.
const DefaultReply = "- A mock recommendation."

// MockCompleter is a test double for ai.Completer.
type MockCompleter struct {
	// CompleteFunc is called by Complete if set.
	CompleteFunc func(ctx context.Context, system, user string) (string, error)

	// LastSystem and LastUser hold the prompts of the most recent call.
	LastSystem string
	LastUser   string

	callCount int
}

var _ ai.Completer = (*MockCompleter)(nil)

// NewMockCompleter creates a mock completer returning DefaultReply.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

// Complete records the prompts and returns the injected or default reply.
func (m *MockCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	m.callCount++
	m.LastSystem = system
	m.LastUser = user

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, system, user)
	}
	return DefaultReply, nil
}

// CallCount returns the number of Complete calls.
func (m *MockCompleter) CallCount() int {
	return m.callCount
}

// Reset clears recorded calls and injected behavior.
func (m *MockCompleter) Reset() {
	m.callCount = 0
	m.LastSystem = ""
	m.LastUser = ""
	m.CompleteFunc = nil
}
