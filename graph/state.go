package graph

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/shopflow/graph/model"
)

// State is the conversation state of one thread.
//
// Messages only grow; Data holds the workflow's working data. RetryCount
// is raised by Failed updates and is zero in every new session.
//
// Type parameter W is the workflow's working data (must be
// JSON-serializable, since states are checkpointed).
type State[W any] struct {
	Messages     []model.Message `json:"messages"`
	Data         W               `json:"data"`
	ErrorMessage string          `json:"error_message,omitempty"`
	RetryCount   int             `json:"retry_count"`
	NextStep     string          `json:"next_step,omitempty"`
}

// Merge combines working data: fields set in delta win over prev. Each
// workflow supplies one.
type Merge[W any] func(prev, delta W) W

// NewState returns the state of a fresh session opened by input.
func NewState[W any](input string) State[W] {
	return State[W]{Messages: []model.Message{model.User(input)}}
}

// LastUserMessage returns the content of the most recent user message.
func (s State[W]) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == model.RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// LastAssistantMessage returns the content of the most recent assistant
// message.
func (s State[W]) LastAssistantMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == model.RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}

// deepCopy copies a state through a JSON round trip so the copy shares no
// slices, maps or pointers with the original. Unexported fields are lost.
func deepCopy[S any](state S) (S, error) {
	var zero S

	data, err := json.Marshal(state)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal state: %w", err)
	}

	var copied S
	if err := json.Unmarshal(data, &copied); err != nil {
		return zero, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return copied, nil
}
