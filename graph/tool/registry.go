package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/shopflow/graph/model"
)

// ErrUnknownTool is returned when invoking a name that was never registered.
var ErrUnknownTool = errors.New("unknown tool")

// Entry pairs a tool with the schema advertised to the model.
type Entry struct {
	Tool Tool
	Spec model.ToolSpec
}

// Registry holds the tools available to one workflow.
//
// Registries are built once at startup and passed to the workflow
// constructor; there is no package-level registry. Each step binds the
// subset it needs through Specs.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// NewRegistry creates a registry and registers entries in order. It panics
// on an invalid or duplicate entry, which is a programming error.
func NewRegistry(entries ...Entry) *Registry {
	r := &Registry{entries: make(map[string]Entry)}
	for _, e := range entries {
		if err := r.Register(e); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds an entry. An empty Spec.Name defaults to the tool name.
func (r *Registry) Register(e Entry) error {
	if e.Tool == nil {
		return errors.New("tool cannot be nil")
	}
	name := e.Tool.Name()
	if name == "" {
		return errors.New("tool name cannot be empty")
	}
	if e.Spec.Name == "" {
		e.Spec.Name = name
	}
	if e.Spec.Name != name {
		return fmt.Errorf("tool %q registered with spec name %q", name, e.Spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("duplicate tool: %s", name)
	}
	r.entries[name] = e
	r.order = append(r.order, name)
	return nil
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Specs returns the schemas for names, or for every tool when names is
// empty. Unknown names are skipped.
func (r *Registry) Specs(names ...string) []model.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 {
		names = r.order
	}
	specs := make([]model.ToolSpec, 0, len(names))
	for _, name := range names {
		if e, ok := r.entries[name]; ok {
			specs = append(specs, e.Spec)
		}
	}
	return specs
}

// Invoke calls the named tool.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return e.Tool.Call(ctx, args)
}

// InvokeText calls the named tool and renders its result as text for the
// model or the user.
func (r *Registry) InvokeText(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	out, err := r.Invoke(ctx, name, args)
	if err != nil {
		return "", err
	}
	return RenderResult(out), nil
}

// RenderResult turns a tool result into text. A "text" string is returned
// as is; anything else becomes indented JSON with sorted keys.
func RenderResult(out map[string]interface{}) string {
	if text, ok := out["text"].(string); ok {
		return text
	}
	if len(out) == 0 {
		return "{}"
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", out)
	}
	return string(data)
}
