package store

import (
	"context"
	"testing"
)

func TestMemStore_Contract(t *testing.T) {
	runCheckpointContract(t, NewMemStore[TestState]())
}

// TestMemStore_Isolation verifies callers cannot mutate stored checkpoints.
func TestMemStore_Isolation(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore[TestState]()

	state := TestState{Messages: []string{"hello"}, Fields: map[string]string{"name": "Zhang"}}
	if err := st.Save(ctx, "t1", Checkpoint[TestState]{State: state, PendingStep: "collect_address"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	state.Messages[0] = "mutated"
	state.Fields["name"] = "Li"

	got, err := st.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.State.Messages[0] != "hello" || got.State.Fields["name"] != "Zhang" {
		t.Fatalf("stored checkpoint was mutated through the caller's copy: %+v", got.State)
	}

	got.State.Messages[0] = "mutated again"
	again, _ := st.Load(ctx, "t1")
	if again.State.Messages[0] != "hello" {
		t.Fatalf("stored checkpoint was mutated through a loaded copy")
	}
	if st.Len() != 1 {
		t.Errorf("expected 1 checkpoint, got %d", st.Len())
	}
}
