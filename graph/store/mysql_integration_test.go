package store

import (
	"context"
	"os"
	"testing"
)

// TestMySQLStore_Contract runs against a real database.
//
// To run this test:
//
//	export TEST_MYSQL_DSN="user:password@tcp(localhost:3306)/shopflow_test"
//	go test -run TestMySQLStore ./graph/store
func TestMySQLStore_Contract(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("Skipping MySQL integration test: set TEST_MYSQL_DSN to run")
	}

	st, err := NewMySQLStore[TestState](dsn)
	if err != nil {
		t.Fatalf("NewMySQLStore failed: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if _, err := st.db.ExecContext(ctx, "DELETE FROM thread_checkpoints"); err != nil {
		t.Fatalf("failed to reset table: %v", err)
	}

	runCheckpointContract(t, st)

	if stats := st.Stats(); stats.MaxOpenConnections != 25 {
		t.Errorf("expected pool of 25 connections, got %d", stats.MaxOpenConnections)
	}
}

func TestNewMySQLStore_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}
	_, err := NewMySQLStore[TestState]("user:pass@tcp(127.0.0.1:1)/none?timeout=200ms")
	if err == nil {
		t.Fatal("expected error connecting to an unreachable server")
	}
}
