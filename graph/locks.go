package graph

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DistributedLocker serializes a thread across processes. Lock blocks until
// the lock is held or ctx is done and returns the release function.
//
// store.RedisLocker implements it.
type DistributedLocker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// lockManager hands out one lock per thread. Entries are refcounted and
// dropped once nobody holds or waits for them, so idle threads cost
// nothing.
type lockManager struct {
	mu      sync.Mutex
	entries map[string]*lockEntry

	remote DistributedLocker
	ttl    time.Duration
	logger *slog.Logger
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func newLockManager(remote DistributedLocker, ttl time.Duration, logger *slog.Logger) *lockManager {
	return &lockManager{
		entries: make(map[string]*lockEntry),
		remote:  remote,
		ttl:     ttl,
		logger:  logger,
	}
}

// acquire blocks until threadID is held by the caller. The returned
// function releases it and must be called exactly once.
func (m *lockManager) acquire(ctx context.Context, threadID string) (func(), error) {
	m.mu.Lock()
	entry, ok := m.entries[threadID]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		m.entries[threadID] = entry
	}
	entry.refs++
	m.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		m.drop(threadID, entry)
		return nil, ctx.Err()
	}

	local := func() {
		<-entry.ch
		m.drop(threadID, entry)
	}

	if m.remote == nil {
		return local, nil
	}

	unlock, err := m.remote.Lock(ctx, threadID, m.ttl)
	if err != nil {
		local()
		return nil, err
	}

	return func() {
		// The turn's ctx may already be cancelled; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := unlock(releaseCtx); err != nil {
			m.logger.Warn("distributed unlock failed", "thread", threadID, "error", err)
		}
		local()
	}, nil
}

func (m *lockManager) drop(threadID string, entry *lockEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(m.entries, threadID)
	}
}

// size reports how many threads currently have lock entries.
func (m *lockManager) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
