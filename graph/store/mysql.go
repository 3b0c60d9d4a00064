package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a CheckpointStore backed by MySQL or MariaDB.
//
// Use it when several server processes share conversation threads. Pair it
// with a distributed lock so two processes never advance the same thread.
//
// DSN format:
//
//	user:password@tcp(localhost:3306)/shopflow
//
// Never hardcode credentials; read the DSN from configuration or the
// SHOPFLOW_STORE_DSN environment variable.
type MySQLStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore connects, verifies the connection and creates the schema.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	m := &MySQLStore[S]{db: db}
	if err := m.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return m, nil
}

func (m *MySQLStore[S]) createTables(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS thread_checkpoints (
			thread_id VARCHAR(255) NOT NULL PRIMARY KEY,
			pending_step VARCHAR(255) NOT NULL,
			step INT NOT NULL,
			state JSON NOT NULL,
			saved_at BIGINT NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`)
	return err
}

func (m *MySQLStore[S]) checkOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Save implements CheckpointStore.
func (m *MySQLStore[S]) Save(ctx context.Context, threadID string, cp Checkpoint[S]) error {
	if err := m.checkOpen(); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	savedAt := cp.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO thread_checkpoints (thread_id, pending_step, step, state, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			pending_step = VALUES(pending_step),
			step = VALUES(step),
			state = VALUES(state),
			saved_at = VALUES(saved_at)
	`, threadID, cp.PendingStep, cp.Step, stateJSON, savedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load implements CheckpointStore.
func (m *MySQLStore[S]) Load(ctx context.Context, threadID string) (Checkpoint[S], error) {
	if err := m.checkOpen(); err != nil {
		return Checkpoint[S]{}, err
	}

	cp := Checkpoint[S]{ThreadID: threadID}
	var stateJSON []byte
	var savedAt int64
	err := m.db.QueryRowContext(ctx, `
		SELECT pending_step, step, state, saved_at
		FROM thread_checkpoints
		WHERE thread_id = ?
	`, threadID).Scan(&cp.PendingStep, &cp.Step, &stateJSON, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint[S]{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint[S]{}, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if err := json.Unmarshal(stateJSON, &cp.State); err != nil {
		return Checkpoint[S]{}, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	cp.SavedAt = time.UnixMilli(savedAt)
	return cp, nil
}

// Clear implements CheckpointStore.
func (m *MySQLStore[S]) Clear(ctx context.Context, threadID string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if _, err := m.db.ExecContext(ctx, `DELETE FROM thread_checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	return nil
}

// List implements Lister.
func (m *MySQLStore[S]) List(ctx context.Context) ([]string, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	return listIDs(ctx, m.db, `SELECT thread_id FROM thread_checkpoints ORDER BY thread_id`)
}

// Close closes the connection pool. Calling Close twice is a no-op.
func (m *MySQLStore[S]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// Ping verifies the database connection is alive.
func (m *MySQLStore[S]) Ping(ctx context.Context) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return m.db.PingContext(ctx)
}

// Stats returns connection pool statistics.
func (m *MySQLStore[S]) Stats() sql.DBStats {
	return m.db.Stats()
}
