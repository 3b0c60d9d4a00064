package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/dshills/shopflow/graph/model"
)

type mockMessageClient struct {
	resp       *anthropic.Message
	err        error
	lastParams anthropic.MessageNewParams
	calls      int
}

func (m *mockMessageClient) createMessage(_ context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	m.calls++
	m.lastParams = params
	return m.resp, m.err
}

func decodeMessage(t *testing.T, raw string) *anthropic.Message {
	t.Helper()
	var msg anthropic.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return &msg
}

func TestChatModel_Chat(t *testing.T) {
	t.Run("text and tool_use blocks", func(t *testing.T) {
		client := &mockMessageClient{resp: decodeMessage(t, `{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude",
			"content": [
				{"type": "text", "text": "Let me check the cart."},
				{"type": "tool_use", "id": "toolu_1", "name": "view_cart", "input": {}}
			],
			"stop_reason": "tool_use"
		}`)}
		m := &ChatModel{modelName: "claude", maxTokens: 100, client: client}

		out, err := m.Chat(context.Background(), []model.Message{
			model.System("You are a shopping assistant."),
			model.User("show my cart"),
		}, []model.ToolSpec{{Name: "view_cart", Description: "show the cart"}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Text != "Let me check the cart." {
			t.Errorf("unexpected text %q", out.Text)
		}
		if len(out.ToolCalls) != 1 || out.ToolCalls[0].ID != "toolu_1" || out.ToolCalls[0].Name != "view_cart" {
			t.Fatalf("unexpected tool calls: %+v", out.ToolCalls)
		}

		if len(client.lastParams.System) != 1 {
			t.Errorf("system message should move to the system parameter")
		}
		if len(client.lastParams.Messages) != 1 {
			t.Errorf("expected 1 conversation turn, got %d", len(client.lastParams.Messages))
		}
		if len(client.lastParams.Tools) != 1 {
			t.Errorf("expected tools to be forwarded")
		}
	})

	t.Run("provider error", func(t *testing.T) {
		m := &ChatModel{client: &mockMessageClient{err: errors.New("overloaded")}}
		if _, err := m.Chat(context.Background(), []model.Message{model.User("x")}, nil); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("cancelled context skips the call", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		client := &mockMessageClient{}
		m := &ChatModel{client: client}
		if _, err := m.Chat(ctx, nil, nil); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if client.calls != 0 {
			t.Errorf("expected no API call")
		}
	})

	t.Run("missing API key", func(t *testing.T) {
		m := NewChatModel("", "")
		if _, err := m.Chat(context.Background(), []model.Message{model.User("x")}, nil); err == nil {
			t.Fatal("expected error for empty API key")
		}
	})
}

func TestBuildMessages(t *testing.T) {
	msgs := buildMessages([]model.Message{
		model.Assistant("Welcome"),
		model.User("find phones"),
		model.User("cheap ones"),
		model.Assistant("1. Redmi K70"),
	})
	// placeholder, welcome, folded user turn, reply
	if len(msgs) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(msgs))
	}
	if msgs[0].Role != anthropic.MessageParamRoleUser {
		t.Errorf("first turn must come from the user, got %s", msgs[0].Role)
	}
	if len(msgs[2].Content) != 2 {
		t.Errorf("consecutive user messages should fold, got %d blocks", len(msgs[2].Content))
	}
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolSpec{{
		Name:        "add_to_cart",
		Description: "add a sku",
		Schema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"sku_id": map[string]interface{}{"type": "integer"}},
			"required":   []interface{}{"sku_id"},
		},
	}})
	if len(tools) != 1 || tools[0].OfTool == nil {
		t.Fatalf("unexpected tools: %+v", tools)
	}
	if tools[0].OfTool.Name != "add_to_cart" {
		t.Errorf("unexpected name %q", tools[0].OfTool.Name)
	}
	if len(tools[0].OfTool.InputSchema.Required) != 1 {
		t.Errorf("required not forwarded")
	}
}

func TestConvertResponse_InvalidInput(t *testing.T) {
	resp := &anthropic.Message{Content: []anthropic.ContentBlockUnion{{
		Type:  "tool_use",
		Name:  "add_to_cart",
		Input: json.RawMessage(`[1,2]`),
	}}}
	if _, err := convertResponse(resp); err == nil {
		t.Fatal("expected error for non-object tool input")
	}
}
