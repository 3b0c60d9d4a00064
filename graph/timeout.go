package graph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// runStep executes a processing step under the configured timeout. A panic
// inside the step is recovered into a NodeError so one bad step cannot
// take the process down.
func runStep[W any](ctx context.Context, node Node[W], stepID string, state State[W], timeout time.Duration) (result NodeResult[W]) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			result = NodeResult[W]{Err: &NodeError{
				Message: fmt.Sprintf("panic: %v", r),
				Code:    "PANIC",
				NodeID:  stepID,
			}}
		}
	}()

	result = node.Run(runCtx, state)

	// Only our own deadline counts as a timeout; a cancelled parent is
	// reported by the caller.
	if timeout > 0 && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		cause := result.Err
		if cause == nil {
			cause = context.DeadlineExceeded
		}
		result = NodeResult[W]{Err: &NodeError{
			Message: fmt.Sprintf("step exceeded timeout of %v", timeout),
			Code:    CodeStepTimeout,
			NodeID:  stepID,
			Cause:   cause,
		}}
	}
	return result
}
