// Package graph provides the resumable, interrupt-driven workflow engine.
package graph

import (
	"errors"

	"github.com/dshills/shopflow/graph/store"
)

// Fault codes carried by EngineError and Turn.Fault.
const (
	CodeNodeNotFound       = "NODE_NOT_FOUND"
	CodeInvalidRoute       = "INVALID_ROUTE"
	CodeMaxStepsExceeded   = "MAX_STEPS_EXCEEDED"
	CodeCheckpointNotFound = "CHECKPOINT_NOT_FOUND"
	CodeStoreError         = "STORE_ERROR"
	CodeInvalidGraph       = "INVALID_GRAPH"
	CodeLockFailed         = "LOCK_FAILED"
	CodeStepTimeout        = "STEP_TIMEOUT"
)

// ErrSessionReset matches, via errors.Is, every EngineError whose fault
// discarded the thread. The next message starts a fresh session.
var ErrSessionReset = errors.New("session reset")

// ErrListUnsupported is returned by Engine.Threads when the store cannot
// enumerate threads.
var ErrListUnsupported = store.ErrListUnsupported

// EngineError represents an error from Engine operations.
type EngineError struct {
	// Message is the human-readable description.
	Message string

	// Code is one of the Code* constants.
	Code string

	// ThreadID identifies the affected conversation, if any.
	ThreadID string

	// Cause is the underlying error.
	Cause error
}

func (e *EngineError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.ThreadID != "" {
		msg = "thread " + e.ThreadID + ": " + msg
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrSessionReset and this error reset the
// thread.
func (e *EngineError) Is(target error) bool {
	return target == ErrSessionReset && resetsSession(e.Code)
}

func resetsSession(code string) bool {
	switch code {
	case CodeNodeNotFound, CodeInvalidRoute, CodeMaxStepsExceeded, CodeCheckpointNotFound, CodeStoreError:
		return true
	}
	return false
}

// NodeError represents an error that occurred during step execution.
type NodeError struct {
	// Message is the human-readable error description.
	Message string

	// Code is a machine-readable error code for programmatic handling.
	Code string

	// NodeID identifies which step produced this error.
	NodeID string

	// Cause is the underlying error.
	Cause error
}

func (e *NodeError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause error for error wrapping support.
func (e *NodeError) Unwrap() error {
	return e.Cause
}
