// Package anthropic adapts Anthropic's Messages API to model.ChatModel.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/dshills/shopflow/graph/model"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = anthropic.ModelClaude3_5Sonnet20241022

const defaultMaxTokens = 2048

// ChatModel implements model.ChatModel for Anthropic's Claude API.
//
// System messages are lifted into the separate system parameter, since the
// Messages API only accepts user and assistant turns.
//
//	m := anthropic.NewChatModel(os.Getenv("ANTHROPIC_API_KEY"), "")
//	out, err := m.Chat(ctx, messages, tools)
type ChatModel struct {
	modelName   string
	maxTokens   int64
	temperature float64
	client      messageClient
}

// messageClient performs one Messages round trip. Tests replace it.
type messageClient interface {
	createMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// NewChatModel creates a Claude-backed ChatModel. An empty modelName
// selects DefaultModel.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = string(DefaultModel)
	}
	return &ChatModel{
		modelName:   modelName,
		maxTokens:   defaultMaxTokens,
		temperature: 0.7,
		client:      &sdkClient{apiKey: apiKey, client: anthropic.NewClient(option.WithAPIKey(apiKey))},
	}
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(m.modelName),
		Messages:    buildMessages(messages),
		MaxTokens:   m.maxTokens,
		Temperature: anthropic.Float(m.temperature),
	}
	if system := extractSystem(messages); len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}

	resp, err := m.client.createMessage(ctx, params)
	if err != nil {
		return model.ChatOut{}, err
	}
	return convertResponse(resp)
}

type sdkClient struct {
	apiKey string
	client anthropic.Client
}

func (c *sdkClient) createMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	if c.apiKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}
	return resp, nil
}

// buildMessages converts the conversation, skipping system messages and
// folding consecutive same-role turns. The API requires the first turn to
// come from the user, so a leading assistant turn gets a placeholder.
func buildMessages(messages []model.Message) []anthropic.MessageParam {
	type turn struct {
		assistant bool
		texts     []string
	}
	var turns []turn
	for _, msg := range messages {
		if msg.Role == model.RoleSystem || msg.Content == "" {
			continue
		}
		isAssistant := msg.Role == model.RoleAssistant
		if n := len(turns); n > 0 && turns[n-1].assistant == isAssistant {
			turns[n-1].texts = append(turns[n-1].texts, msg.Content)
			continue
		}
		turns = append(turns, turn{assistant: isAssistant, texts: []string{msg.Content}})
	}
	if len(turns) == 0 || turns[0].assistant {
		turns = append([]turn{{texts: []string{"Continue."}}}, turns...)
	}

	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		blocks := make([]anthropic.ContentBlockParamUnion, len(t.texts))
		for i, text := range t.texts {
			blocks[i] = anthropic.NewTextBlock(text)
		}
		if t.assistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

func extractSystem(messages []model.Message) []anthropic.TextBlockParam {
	var parts []string
	for _, msg := range messages {
		if msg.Role == model.RoleSystem && msg.Content != "" {
			parts = append(parts, msg.Content)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return []anthropic.TextBlockParam{{Text: strings.Join(parts, "\n\n")}}
}

func buildTools(tools []model.ToolSpec) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if t.Schema != nil {
			if properties, ok := t.Schema["properties"]; ok {
				inputSchema.Properties = properties
			}
			switch required := t.Schema["required"].(type) {
			case []string:
				inputSchema.Required = required
			case []interface{}:
				for _, r := range required {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}

		out[i] = anthropic.ToolUnionParamOfTool(inputSchema, t.Name)
		if t.Description != "" && out[i].OfTool != nil {
			out[i].OfTool.Description = anthropic.String(t.Description)
		}
	}
	return out
}

func convertResponse(resp *anthropic.Message) (model.ChatOut, error) {
	out := model.ChatOut{}
	if resp == nil {
		return out, nil
	}

	var texts []string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				texts = append(texts, block.Text)
			}
		case "tool_use":
			input := map[string]interface{}{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &input); err != nil {
					return model.ChatOut{}, fmt.Errorf("tool %s: invalid input: %w", block.Name, err)
				}
			}
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}
	out.Text = strings.Join(texts, "\n")
	return out, nil
}
