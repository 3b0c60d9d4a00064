package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// TestState is the checkpoint payload used across store tests.
type TestState struct {
	Messages []string          `json:"messages"`
	Fields   map[string]string `json:"fields,omitempty"`
	Retries  int               `json:"retries"`
}

type contractStore interface {
	CheckpointStore[TestState]
	Lister
}

// runCheckpointContract verifies the behavior every CheckpointStore shares.
func runCheckpointContract(t *testing.T, st contractStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("load missing thread", func(t *testing.T) {
		_, err := st.Load(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("save then load", func(t *testing.T) {
		cp := Checkpoint[TestState]{
			State:       TestState{Messages: []string{"find phones"}, Fields: map[string]string{"city": "Beijing"}, Retries: 1},
			PendingStep: "confirm_selection",
			Step:        2,
		}
		if err := st.Save(ctx, "thread-a", cp); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		got, err := st.Load(ctx, "thread-a")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got.ThreadID != "thread-a" {
			t.Errorf("expected thread id thread-a, got %q", got.ThreadID)
		}
		if got.PendingStep != "confirm_selection" || got.Step != 2 {
			t.Errorf("unexpected checkpoint header: %+v", got)
		}
		if len(got.State.Messages) != 1 || got.State.Fields["city"] != "Beijing" || got.State.Retries != 1 {
			t.Errorf("state not round-tripped: %+v", got.State)
		}
		if got.SavedAt.IsZero() {
			t.Errorf("expected SavedAt to be set")
		}
	})

	t.Run("save replaces", func(t *testing.T) {
		cp := Checkpoint[TestState]{State: TestState{Messages: []string{"a", "b"}}, PendingStep: "confirm_cart", Step: 5}
		if err := st.Save(ctx, "thread-a", cp); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		got, err := st.Load(ctx, "thread-a")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got.PendingStep != "confirm_cart" || len(got.State.Messages) != 2 {
			t.Errorf("expected replaced checkpoint, got %+v", got)
		}
	})

	t.Run("list", func(t *testing.T) {
		if err := st.Save(ctx, "thread-b", Checkpoint[TestState]{PendingStep: "confirm"}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		ids, err := st.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(ids) != 2 || ids[0] != "thread-a" || ids[1] != "thread-b" {
			t.Errorf("expected [thread-a thread-b], got %v", ids)
		}
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			if err := st.Clear(ctx, "thread-a"); err != nil {
				t.Fatalf("Clear #%d failed: %v", i+1, err)
			}
		}
		if _, err := st.Load(ctx, "thread-a"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound after clear, got %v", err)
		}
		ids, err := st.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(ids) != 1 || ids[0] != "thread-b" {
			t.Errorf("expected [thread-b], got %v", ids)
		}
	})

	t.Run("concurrent threads", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("concurrent-%02d", i)
				if err := st.Save(ctx, id, Checkpoint[TestState]{State: TestState{Retries: i}, PendingStep: "confirm"}); err != nil {
					errs <- err
					return
				}
				got, err := st.Load(ctx, id)
				if err != nil {
					errs <- err
					return
				}
				if got.State.Retries != i {
					errs <- fmt.Errorf("thread %s: expected retries %d, got %d", id, i, got.State.Retries)
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Error(err)
		}
	})
}
