// Package model provides LLM integration adapters.
package model

import "context"

// ChatModel defines the interface for LLM chat providers.
//
// This interface abstracts the differences between providers (OpenAI,
// Anthropic, Google, OpenAI-compatible gateways) behind a single call:
// complete the conversation, optionally bound to a set of tools.
//
// Implementations should:
//   - Convert the standard Message format to the provider format
//   - Parse provider responses back into ChatOut
//   - Respect context cancellation
//   - Handle retries and rate limiting where the provider needs it
//
// Example with tools:
//
//	tools := []ToolSpec{{
//	    Name:        "search_products",
//	    Description: "Search the catalogue",
//	    Schema: map[string]interface{}{
//	        "type": "object",
//	        "properties": map[string]interface{}{
//	            "keyword": map[string]interface{}{"type": "string"},
//	        },
//	    },
//	}}
//
//	out, err := m.Chat(ctx, messages, tools)
//	if err != nil {
//	    return err
//	}
//	for _, call := range out.ToolCalls {
//	    fmt.Printf("tool=%s input=%v\n", call.Name, call.Input)
//	}
type ChatModel interface {
	// Chat sends messages to the LLM and returns the response.
	//
	// The LLM may respond with text only, tool calls only, or both.
	// A response with neither is valid; callers decide how to fall back.
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message represents a single turn of a conversation.
//
// Messages are persisted with conversation checkpoints, so the JSON
// layout is part of the stored format.
type Message struct {
	// Role identifies the author: RoleSystem, RoleUser or RoleAssistant.
	Role string `json:"role"`

	// Content is the text of the message.
	Content string `json:"content"`
}

// Standard message roles.
const (
	// RoleSystem carries step instructions for the model.
	RoleSystem = "system"

	// RoleUser carries human input.
	RoleUser = "user"

	// RoleAssistant carries model or workflow output shown to the user.
	RoleAssistant = "assistant"
)

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant returns an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// ToolSpec describes a tool the LLM may call.
//
// Schema is a JSON Schema object describing the tool input. Adapters
// translate it into the provider-specific declaration format.
type ToolSpec struct {
	// Name is the unique tool identifier (lowercase, underscores).
	Name string `json:"name"`

	// Description tells the model when to use the tool.
	Description string `json:"description"`

	// Schema is the JSON Schema of the tool input.
	Schema map[string]interface{} `json:"schema,omitempty"`
}

// ChatOut is the response of a single completion.
type ChatOut struct {
	// Text is the assistant text, possibly empty when only tools are called.
	Text string `json:"text"`

	// ToolCalls lists the tool invocations the model requested, in order.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// HasToolCalls reports whether the model requested any tool.
func (o ChatOut) HasToolCalls() bool {
	return len(o.ToolCalls) > 0
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	// ID is the provider call identifier, when the provider assigns one.
	ID string `json:"id,omitempty"`

	// Name is the requested tool name.
	Name string `json:"name"`

	// Input holds the decoded tool arguments.
	Input map[string]interface{} `json:"input,omitempty"`
}
