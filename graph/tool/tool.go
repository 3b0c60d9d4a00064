// Package tool defines the tools a model can invoke during a workflow step.
package tool

import "context"

// Tool is an operation exposed to the model.
//
// Implementations should:
//   - Validate input parameters and fail with a clear message
//   - Respect context cancellation
//   - Return structured output as map[string]interface{}
//
// A result with a "text" key is rendered verbatim by Registry.InvokeText,
// which lets tools hand pre-formatted listings straight to the user.
//
// Example:
//
//	viewCart := tool.Func("view_cart", func(ctx context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
//	    cart, err := client.Cart(ctx)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return map[string]interface{}{"text": cart.String()}, nil
//	})
type Tool interface {
	// Name returns the identifier the model uses to call the tool.
	Name() string

	// Call executes the tool with decoded model arguments.
	Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}

// CallFunc is the signature of a tool body.
type CallFunc func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)

type funcTool struct {
	name string
	fn   CallFunc
}

// Func adapts a closure to Tool.
func Func(name string, fn CallFunc) Tool {
	return &funcTool{name: name, fn: fn}
}

func (f *funcTool) Name() string { return f.name }

func (f *funcTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return f.fn(ctx, input)
}
