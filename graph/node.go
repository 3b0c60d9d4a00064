package graph

import "context"

// End is the reserved target that finishes a session.
const End = "end"

// Kind distinguishes the two step kinds.
type Kind int

const (
	// KindProcessing steps run code and produce an Update.
	KindProcessing Kind = iota

	// KindInterrupt steps suspend the thread until the next user message.
	KindInterrupt
)

func (k Kind) String() string {
	if k == KindInterrupt {
		return "interrupt"
	}
	return "processing"
}

// Node is a processing step.
//
// Nodes receive the current state by value and describe their effect as
// an Update; they never write the state themselves. A non-nil Err in the
// result is a step failure, handled by the engine.
type Node[W any] interface {
	Run(ctx context.Context, state State[W]) NodeResult[W]
}

// NodeResult is the outcome of one step.
type NodeResult[W any] struct {
	// Update describes the state change. Nil behaves like Relay.
	Update Update[W]

	// Err reports a step failure.
	Err error
}

// NodeFunc adapts a plain function to Node.
//
//	greet := graph.NodeFunc[Data](func(ctx context.Context, s graph.State[Data]) graph.NodeResult[Data] {
//	    return graph.Result[Data](graph.Say[Data]("Hi!", "confirm"))
//	})
type NodeFunc[W any] func(ctx context.Context, state State[W]) NodeResult[W]

// Run implements Node.
func (f NodeFunc[W]) Run(ctx context.Context, state State[W]) NodeResult[W] {
	return f(ctx, state)
}

// Result wraps an update in a NodeResult.
func Result[W any](u Update[W]) NodeResult[W] {
	return NodeResult[W]{Update: u}
}

// Fail wraps a step failure in a NodeResult.
func Fail[W any](err error) NodeResult[W] {
	return NodeResult[W]{Err: err}
}
