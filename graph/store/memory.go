package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory CheckpointStore.
//
// Checkpoints are stored in their JSON encoding, so values handed to Save
// and returned by Load never share memory with the stored copy. Data is
// lost when the process exits.
type MemStore[S any] struct {
	mu          sync.RWMutex
	checkpoints map[string][]byte // threadID -> encoded Checkpoint[S]
}

// NewMemStore creates an empty in-memory store.
//
// Example:
//
//	st := store.NewMemStore[graph.State[order.Data]]()
//	engine := graph.New(order.Merge, st)
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{
		checkpoints: make(map[string][]byte),
	}
}

// Save implements CheckpointStore.
func (m *MemStore[S]) Save(_ context.Context, threadID string, cp Checkpoint[S]) error {
	cp.ThreadID = threadID
	if cp.SavedAt.IsZero() {
		cp.SavedAt = time.Now()
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints[threadID] = data
	return nil
}

// Load implements CheckpointStore.
func (m *MemStore[S]) Load(_ context.Context, threadID string) (Checkpoint[S], error) {
	m.mu.RLock()
	data, ok := m.checkpoints[threadID]
	m.mu.RUnlock()

	if !ok {
		return Checkpoint[S]{}, ErrNotFound
	}

	var cp Checkpoint[S]
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint[S]{}, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return cp, nil
}

// Clear implements CheckpointStore.
func (m *MemStore[S]) Clear(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.checkpoints, threadID)
	return nil
}

// List implements Lister.
func (m *MemStore[S]) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.checkpoints))
	for id := range m.checkpoints {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Len returns the number of stored checkpoints.
func (m *MemStore[S]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.checkpoints)
}
