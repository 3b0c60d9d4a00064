package graph

import (
	"strings"

	"github.com/dshills/shopflow/graph/model"
)

// Turn is the result of one Start, Resume or Send call.
//
// Exactly one of Pending, Ended and Reset describes where the thread
// stands afterwards:
//
//	Pending != ""  suspended at that interrupt, waiting for input
//	Ended          reached End; the next message opens a new session
//	Reset          discarded after a failure or fault; Fault names the code
type Turn[W any] struct {
	ThreadID string `json:"thread_id"`

	// Replies holds the assistant messages added during this call.
	Replies []model.Message `json:"replies"`

	Pending  string `json:"pending,omitempty"`
	NextStep string `json:"next_step,omitempty"`
	Ended    bool   `json:"ended"`
	Reset    bool   `json:"reset"`
	Fault    string `json:"fault,omitempty"`

	// State is the thread's state when the call returned.
	State State[W] `json:"state"`

	// Cause is the step failure or fault behind this turn, if any. It is
	// not serialized.
	Cause error `json:"-"`
}

// Text joins the reply contents with blank lines.
func (t Turn[W]) Text() string {
	parts := make([]string, len(t.Replies))
	for i, m := range t.Replies {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n\n")
}

// Outcome labels the turn for metrics.
func (t Turn[W]) Outcome() string {
	switch {
	case t.Pending != "":
		return OutcomeSuspended
	case t.Ended:
		return OutcomeEnded
	case t.Fault != "":
		return OutcomeReset
	default:
		return OutcomeFailed
	}
}
