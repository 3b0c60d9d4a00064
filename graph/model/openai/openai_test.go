package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshills/shopflow/graph/model"
	"github.com/openai/openai-go"
)

func TestNewChatModel_Defaults(t *testing.T) {
	m := NewChatModel("key", "")
	if m.modelName != DefaultModel {
		t.Errorf("expected default model %q, got %q", DefaultModel, m.modelName)
	}
	if m.maxRetries != 3 {
		t.Errorf("expected 3 retries, got %d", m.maxRetries)
	}
}

func TestChatModel_Chat(t *testing.T) {
	t.Run("returns text and tool calls", func(t *testing.T) {
		client := &mockCompletionClient{
			out: model.ChatOut{
				Text:      "searching",
				ToolCalls: []model.ToolCall{{ID: "call_1", Name: "search_products", Input: map[string]interface{}{"keyword": "phone"}}},
			},
		}
		m := &ChatModel{client: client, modelName: "gpt-4o"}

		out, err := m.Chat(context.Background(), []model.Message{model.User("find phones")}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Text != "searching" || len(out.ToolCalls) != 1 {
			t.Fatalf("unexpected output: %+v", out)
		}
		if client.calls != 1 {
			t.Errorf("expected 1 call, got %d", client.calls)
		}
	})

	t.Run("empty API key fails without retrying", func(t *testing.T) {
		m := NewChatModel("", "gpt-4o")
		if _, err := m.Chat(context.Background(), []model.Message{model.User("x")}, nil); err == nil {
			t.Fatal("expected error for empty API key")
		}
	})
}

func TestChatModel_Retry(t *testing.T) {
	t.Run("retries transient errors then succeeds", func(t *testing.T) {
		client := &mockCompletionClient{
			errs: []error{errors.New("connection reset by peer"), &rateLimitError{message: "slow down"}},
			out:  model.ChatOut{Text: "ok"},
		}
		m := &ChatModel{client: client, maxRetries: 3, retryDelay: time.Millisecond}

		out, err := m.Chat(context.Background(), nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Text != "ok" || client.calls != 3 {
			t.Errorf("expected success on third call, got %q after %d calls", out.Text, client.calls)
		}
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		client := &mockCompletionClient{errs: []error{errors.New("invalid request")}}
		m := &ChatModel{client: client, maxRetries: 3, retryDelay: time.Millisecond}

		if _, err := m.Chat(context.Background(), nil, nil); err == nil {
			t.Fatal("expected error")
		}
		if client.calls != 1 {
			t.Errorf("expected 1 call, got %d", client.calls)
		}
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		client := &mockCompletionClient{errs: []error{
			errors.New("timeout"), errors.New("timeout"), errors.New("timeout"),
		}}
		m := &ChatModel{client: client, maxRetries: 2, retryDelay: time.Millisecond}

		_, err := m.Chat(context.Background(), nil, nil)
		if err == nil {
			t.Fatal("expected error after retries")
		}
		if client.calls != 3 {
			t.Errorf("expected 3 calls, got %d", client.calls)
		}
	})
}

func TestConvertResponse(t *testing.T) {
	msg := openai.ChatCompletionMessage{
		Content: "",
		ToolCalls: []openai.ChatCompletionMessageToolCall{{
			ID: "call_7",
			Function: openai.ChatCompletionMessageToolCallFunction{
				Name:      "add_to_cart",
				Arguments: `{"sku_id": 42, "quantity": 1}`,
			},
		}},
	}

	out, err := convertResponse(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(out.ToolCalls))
	}
	call := out.ToolCalls[0]
	if call.ID != "call_7" || call.Name != "add_to_cart" {
		t.Errorf("unexpected call: %+v", call)
	}
	if call.Input["sku_id"] != float64(42) {
		t.Errorf("expected sku_id 42, got %v", call.Input["sku_id"])
	}

	msg.ToolCalls[0].Function.Arguments = "{not json"
	if _, err := convertResponse(msg); err == nil {
		t.Error("expected error for malformed arguments")
	}
}

func TestConvertMessagesAndTools(t *testing.T) {
	msgs := convertMessages([]model.Message{
		model.System("rules"), model.User("hi"), model.Assistant("hello"),
	})
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].OfSystem == nil || msgs[1].OfUser == nil || msgs[2].OfAssistant == nil {
		t.Errorf("roles not mapped: %+v", msgs)
	}

	tools := convertTools([]model.ToolSpec{{Name: "view_cart", Description: "show the cart"}})
	if len(tools) != 1 || tools[0].Function.Name != "view_cart" {
		t.Fatalf("unexpected tools: %+v", tools)
	}
	if tools[0].Function.Parameters["type"] != "object" {
		t.Errorf("expected default object schema, got %v", tools[0].Function.Parameters)
	}
}

type mockCompletionClient struct {
	out   model.ChatOut
	errs  []error
	calls int
}

func (m *mockCompletionClient) createChatCompletion(_ context.Context, _ []model.Message, _ []model.ToolSpec) (model.ChatOut, error) {
	m.calls++
	if m.calls <= len(m.errs) && m.errs[m.calls-1] != nil {
		return model.ChatOut{}, m.errs[m.calls-1]
	}
	return m.out, nil
}
