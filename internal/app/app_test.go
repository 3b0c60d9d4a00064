package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/shopflow/agents/order"
	"github.com/dshills/shopflow/graph"
	"github.com/dshills/shopflow/internal/config"
)

func mockConfig() config.Config {
	cfg := config.Default()
	cfg.LLM.Provider = "mock"
	return cfg
}

func TestNew_MemoryStore(t *testing.T) {
	a, err := New(mockConfig(), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"listing", "order"}, a.Names())

	_, err = a.Runner("refunds")
	assert.ErrorIs(t, err, ErrUnknownWorkflow)

	r, err := a.Runner("order")
	require.NoError(t, err)
	res, err := r.Send(context.Background(), "t1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "(mock) hello", res.Text)
	assert.False(t, res.Ended)

	turn, ok := res.Turn.(graph.Turn[order.Data])
	require.True(t, ok)
	assert.Equal(t, "confirm_selection", turn.Pending)
}

func TestNew_SQLiteKeepsWorkflowsApart(t *testing.T) {
	cfg := mockConfig()
	cfg.Store.Driver = "sqlite"
	cfg.Store.DSN = filepath.Join(t.TempDir(), "shopflow.db")

	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	for _, name := range a.Names() {
		r, err := a.Runner(name)
		require.NoError(t, err)
		_, err = r.Send(ctx, "same-id", "hi")
		require.NoError(t, err)
	}

	orders, _ := a.Runner("order")
	ids, err := orders.Threads(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"same-id"}, ids)

	require.NoError(t, orders.Reset(ctx, "same-id"))
	ids, err = orders.Threads(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	listings, _ := a.Runner("listing")
	_, err = listings.Inspect(ctx, "same-id")
	assert.NoError(t, err)
}

func TestNew_RedisWithDistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := mockConfig()
	cfg.Store.Driver = "redis"
	cfg.Store.Redis.Addr = mr.Addr()
	cfg.Engine.DistributedLock = true

	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	r, err := a.Runner("listing")
	require.NoError(t, err)
	_, err = r.Send(context.Background(), "t1", "list a phone")
	require.NoError(t, err)

	assert.True(t, mr.Exists("shopflow:listing:thread:t1"))
	assert.False(t, mr.Exists("shopflow:listing:lock:t1"), "lock released after the turn")
}

func TestNewModel(t *testing.T) {
	for _, p := range config.Providers {
		m, err := NewModel(config.LLMConfig{Provider: p, Model: "m", APIKey: "k"})
		require.NoError(t, err, p)
		assert.NotNil(t, m, p)
	}
	_, err := NewModel(config.LLMConfig{Provider: "bard"})
	assert.Error(t, err)
}
