// Package store persists suspended conversation threads.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a thread has no checkpoint.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("store is closed")

// ErrListUnsupported is returned when a store cannot enumerate threads.
var ErrListUnsupported = errors.New("store does not support listing threads")

// CheckpointStore persists at most one checkpoint per thread.
//
// A checkpoint is written right before a thread suspends at an interrupt
// and removed when the thread reaches its end. Implementations must be
// safe for concurrent use across distinct threads; the engine serializes
// calls for the same thread.
//
// Implementations:
//   - MemStore (tests, single process)
//   - SQLiteStore (single file, single process)
//   - MySQLStore (shared database)
//   - RedisStore (shared cache with optional TTL)
//
// Type parameter S is the persisted state type (must be JSON-serializable).
type CheckpointStore[S any] interface {
	// Save stores cp as the checkpoint for threadID, replacing any
	// previous one.
	Save(ctx context.Context, threadID string, cp Checkpoint[S]) error

	// Load returns the checkpoint for threadID or ErrNotFound.
	Load(ctx context.Context, threadID string) (Checkpoint[S], error)

	// Clear removes the checkpoint for threadID. Clearing a missing
	// thread is not an error.
	Clear(ctx context.Context, threadID string) error
}

// Lister is implemented by stores that can enumerate suspended threads.
type Lister interface {
	// List returns the ids of all threads with a checkpoint, sorted.
	List(ctx context.Context) ([]string, error)
}

// Checkpoint is the persisted snapshot of a suspended thread.
type Checkpoint[S any] struct {
	// ThreadID identifies the conversation.
	ThreadID string `json:"thread_id"`

	// State is the conversation state at the moment of suspension.
	State S `json:"state"`

	// PendingStep is the interrupt the thread is suspended at.
	PendingStep string `json:"pending_step"`

	// Step counts the steps executed since the session started.
	Step int `json:"step"`

	// SavedAt records when the checkpoint was written.
	SavedAt time.Time `json:"saved_at"`
}
