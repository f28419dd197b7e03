package search

import "sync"

// State is a step of the query loop.
type State int

const (
	StateIdle State = iota
	StateAwaitingQuery
	StateEmbeddingQuery
	StateSearching
	StateSummarizing
	StatePresentingResult
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingQuery:
		return "awaiting-query"
	case StateEmbeddingQuery:
		return "embedding-query"
	case StateSearching:
		return "searching"
	case StateSummarizing:
		return "summarizing"
	case StatePresentingResult:
		return "presenting-result"
	default:
		return "unknown"
	}
}

// Monitor provides hooks to observe the query loop.
type Monitor interface {
	Transition(from, to State)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Transition(_, _ State) {}

// StateRecorder is a Monitor that remembers every state entered.
type StateRecorder struct {
	mu     sync.Mutex
	states []State
}

var _ Monitor = (*StateRecorder)(nil)

// Transition records the new state.
func (r *StateRecorder) Transition(_, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, to)
}

// States returns a copy of the recorded states.
func (r *StateRecorder) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

// Reset clears the recording.
func (r *StateRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = nil
}
