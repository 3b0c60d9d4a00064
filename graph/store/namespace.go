package store

import (
	"context"
	"io"
	"strings"
)

// Namespaced keeps the threads of one workflow apart from others sharing
// the same backing store by prefixing every thread id with ns.
type Namespaced[S any] struct {
	inner CheckpointStore[S]
	ns    string
}

// WithNamespace wraps inner. The returned store lists only its own
// threads when inner implements Lister.
func WithNamespace[S any](inner CheckpointStore[S], ns string) *Namespaced[S] {
	return &Namespaced[S]{inner: inner, ns: ns}
}

func (n *Namespaced[S]) Save(ctx context.Context, threadID string, cp Checkpoint[S]) error {
	cp.ThreadID = n.ns + threadID
	return n.inner.Save(ctx, n.ns+threadID, cp)
}

func (n *Namespaced[S]) Load(ctx context.Context, threadID string) (Checkpoint[S], error) {
	cp, err := n.inner.Load(ctx, n.ns+threadID)
	if err != nil {
		return cp, err
	}
	cp.ThreadID = threadID
	return cp, nil
}

func (n *Namespaced[S]) Clear(ctx context.Context, threadID string) error {
	return n.inner.Clear(ctx, n.ns+threadID)
}

// List returns the unprefixed ids of this namespace's threads.
func (n *Namespaced[S]) List(ctx context.Context) ([]string, error) {
	lister, ok := n.inner.(Lister)
	if !ok {
		return nil, ErrListUnsupported
	}
	all, err := lister.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(all))
	for _, id := range all {
		if rest, ok := strings.CutPrefix(id, n.ns); ok {
			ids = append(ids, rest)
		}
	}
	return ids, nil
}

// Close closes inner when it holds resources.
func (n *Namespaced[S]) Close() error {
	if c, ok := n.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
