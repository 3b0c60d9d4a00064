// Package openai adapts the OpenAI chat completions API (and compatible
// gateways such as DashScope or vLLM) to model.ChatModel.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/shopflow/graph/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gpt-4o-mini"

// ChatModel implements model.ChatModel for OpenAI's API.
//
// It provides tool calling, retries on transient failures with
// exponential backoff for rate limits, and context cancellation.
//
//	m := openai.NewChatModel(os.Getenv("OPENAI_API_KEY"), "gpt-4o-mini",
//	    openai.WithBaseURL(os.Getenv("OPENAI_BASE_URL")))
//	out, err := m.Chat(ctx, messages, tools)
type ChatModel struct {
	modelName  string
	client     completionClient
	maxRetries int
	retryDelay time.Duration
}

// completionClient performs one completion round trip. Tests replace it.
type completionClient interface {
	createChatCompletion(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error)
}

// Option configures a ChatModel.
type Option func(*config)

type config struct {
	baseURL     string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *config) { c.temperature = t }
}

// WithRetries sets the retry budget and base delay for transient errors.
func WithRetries(n int, delay time.Duration) Option {
	return func(c *config) {
		c.maxRetries = n
		c.retryDelay = delay
	}
}

// NewChatModel creates a ChatModel backed by the official openai-go SDK.
// An empty modelName selects DefaultModel.
func NewChatModel(apiKey, modelName string, opts ...Option) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}

	cfg := config{temperature: 0.7, maxRetries: 3, retryDelay: time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &ChatModel{
		modelName: modelName,
		client: &sdkClient{
			client:      openai.NewClient(reqOpts...),
			apiKey:      apiKey,
			modelName:   modelName,
			temperature: cfg.temperature,
		},
		maxRetries: cfg.maxRetries,
		retryDelay: cfg.retryDelay,
	}
}

// Chat implements model.ChatModel.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		out, err := m.client.createChatCompletion(ctx, messages, tools)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !isTransientError(err) {
			return model.ChatOut{}, err
		}
		if attempt >= m.maxRetries {
			break
		}

		delay := m.retryDelay
		if isRateLimitError(err) {
			delay = m.retryDelay * time.Duration(1<<attempt)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return model.ChatOut{}, ctx.Err()
		}
	}

	return model.ChatOut{}, fmt.Errorf("OpenAI API failed after %d retries: %w", m.maxRetries, lastErr)
}

// rateLimitError marks HTTP 429 responses.
type rateLimitError struct {
	message string
}

func (e *rateLimitError) Error() string {
	return "rate limit: " + e.message
}

// isTransientError determines if an error should trigger a retry.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if isRateLimitError(err) {
		return true
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}

	msgLower := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection reset", "connection refused", "temporary", "eof"} {
		if strings.Contains(msgLower, pattern) {
			return true
		}
	}
	return false
}

func isRateLimitError(err error) bool {
	var rateLimitErr *rateLimitError
	return errors.As(err, &rateLimitErr)
}

type sdkClient struct {
	client      openai.Client
	apiKey      string
	modelName   string
	temperature float64
}

func (c *sdkClient) createChatCompletion(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if c.apiKey == "" {
		return model.ChatOut{}, errors.New("OpenAI API key is required")
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.modelName),
		Messages:    convertMessages(messages),
		Temperature: openai.Float(c.temperature),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return model.ChatOut{}, &rateLimitError{message: apiErr.Error()}
		}
		return model.ChatOut{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.ChatOut{}, errors.New("openai api returned no choices")
	}

	return convertResponse(resp.Choices[0].Message)
}

func convertMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func convertTools(tools []model.ToolSpec) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, t := range tools {
		schema := t.Schema
		if schema == nil {
			schema = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		out[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  shared.FunctionParameters(schema),
			},
		}
	}
	return out
}

func convertResponse(msg openai.ChatCompletionMessage) (model.ChatOut, error) {
	out := model.ChatOut{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		input, err := decodeArguments(tc.Function.Arguments)
		if err != nil {
			return model.ChatOut{}, fmt.Errorf("tool %s: %w", tc.Function.Name, err)
		}
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}
	return out, nil
}

// decodeArguments parses the JSON argument string of a function call.
func decodeArguments(raw string) (map[string]interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]interface{}{}, nil
	}
	var input map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return input, nil
}
