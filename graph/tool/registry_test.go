package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/shopflow/graph/model"
)

func newTestRegistry() (*Registry, *MockTool, *MockTool) {
	search := &MockTool{ToolName: "search_products", Responses: []map[string]interface{}{{"text": "1. Redmi K70"}}}
	cart := &MockTool{ToolName: "view_cart", Responses: []map[string]interface{}{{"total": 1999.0, "items": []interface{}{"Redmi K70"}}}}
	r := NewRegistry(
		Entry{Tool: search, Spec: model.ToolSpec{Description: "search"}},
		Entry{Tool: cart, Spec: model.ToolSpec{Name: "view_cart", Description: "cart"}},
	)
	return r, search, cart
}

func TestRegistry_Register(t *testing.T) {
	r, _, _ := newTestRegistry()

	if got := r.Names(); strings.Join(got, ",") != "search_products,view_cart" {
		t.Errorf("unexpected names %v", got)
	}

	tests := []struct {
		name  string
		entry Entry
	}{
		{"nil tool", Entry{}},
		{"empty name", Entry{Tool: &MockTool{}}},
		{"duplicate", Entry{Tool: &MockTool{ToolName: "view_cart"}}},
		{"mismatched spec", Entry{Tool: &MockTool{ToolName: "x"}, Spec: model.ToolSpec{Name: "y"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Register(tt.entry); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRegistry_Specs(t *testing.T) {
	r, _, _ := newTestRegistry()

	all := r.Specs()
	if len(all) != 2 || all[0].Name != "search_products" {
		t.Fatalf("unexpected specs %+v", all)
	}

	subset := r.Specs("view_cart", "missing")
	if len(subset) != 1 || subset[0].Name != "view_cart" {
		t.Errorf("expected only view_cart, got %+v", subset)
	}
}

func TestRegistry_Invoke(t *testing.T) {
	r, search, _ := newTestRegistry()
	ctx := context.Background()

	out, err := r.Invoke(ctx, "search_products", map[string]interface{}{"keyword": "phone"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["text"] != "1. Redmi K70" {
		t.Errorf("unexpected output %v", out)
	}
	if search.CallCount() != 1 || search.Calls[0].Input["keyword"] != "phone" {
		t.Errorf("call not recorded: %+v", search.Calls)
	}

	if _, err := r.Invoke(ctx, "nope", nil); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
}

func TestRegistry_InvokeText(t *testing.T) {
	r, _, _ := newTestRegistry()
	ctx := context.Background()

	text, err := r.InvokeText(ctx, "search_products", nil)
	if err != nil || text != "1. Redmi K70" {
		t.Errorf("text result should be verbatim, got %q (%v)", text, err)
	}

	text, err = r.InvokeText(ctx, "view_cart", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, `"total": 1999`) || !strings.HasPrefix(text, "{\n") {
		t.Errorf("expected indented JSON, got %q", text)
	}
}

func TestFuncAndMockTool(t *testing.T) {
	echo := Func("echo", func(_ context.Context, in map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{"text": in["msg"]}, nil
	})
	if echo.Name() != "echo" {
		t.Errorf("unexpected name %q", echo.Name())
	}
	out, err := echo.Call(context.Background(), map[string]interface{}{"msg": "hi"})
	if err != nil || out["text"] != "hi" {
		t.Errorf("unexpected result %v (%v)", out, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := echo.Call(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	seq := &MockTool{ToolName: "seq", Responses: []map[string]interface{}{{"n": 1}, {"n": 2}}}
	for _, want := range []int{1, 2, 2} {
		out, _ := seq.Call(context.Background(), nil)
		if out["n"] != want {
			t.Errorf("expected %d, got %v", want, out["n"])
		}
	}
	seq.Reset()
	if seq.CallCount() != 0 {
		t.Errorf("Reset should clear calls")
	}

	failing := &MockTool{ToolName: "fail", Err: errors.New("boom")}
	if _, err := failing.Call(context.Background(), nil); err == nil {
		t.Error("expected error")
	}
}
