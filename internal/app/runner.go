// Package app assembles the shipped workflows from configuration and
// exposes them to the CLI and HTTP drivers.
package app

import (
	"context"

	"github.com/dshills/shopflow/graph"
)

// Result is a finished turn as the drivers see it.
type Result struct {
	Text  string
	Ended bool
	Reset bool

	// Turn is the underlying graph.Turn, kept for JSON responses.
	Turn any
}

// Runner drives one workflow without exposing its data type.
type Runner interface {
	Name() string
	Send(ctx context.Context, threadID, text string) (Result, error)
	Inspect(ctx context.Context, threadID string) (any, error)
	Reset(ctx context.Context, threadID string) error
	Threads(ctx context.Context) ([]string, error)
}

type runner[W any] struct {
	eng *graph.Engine[W]
}

// Wrap adapts an engine to Runner.
func Wrap[W any](eng *graph.Engine[W]) Runner {
	return runner[W]{eng: eng}
}

func (r runner[W]) Name() string { return r.eng.Name() }

func (r runner[W]) Send(ctx context.Context, threadID, text string) (Result, error) {
	turn, err := r.eng.Send(ctx, threadID, text)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: turn.Text(), Ended: turn.Ended, Reset: turn.Reset, Turn: turn}, nil
}

func (r runner[W]) Inspect(ctx context.Context, threadID string) (any, error) {
	return r.eng.Inspect(ctx, threadID)
}

func (r runner[W]) Reset(ctx context.Context, threadID string) error {
	return r.eng.Reset(ctx, threadID)
}

func (r runner[W]) Threads(ctx context.Context) ([]string, error) {
	return r.eng.Threads(ctx)
}
