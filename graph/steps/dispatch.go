// Package steps provides reusable building blocks for workflow steps:
// LLM tool dispatch, keyword classification, numeric selection and
// structured-output extraction.
package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/shopflow/graph/model"
	"github.com/dshills/shopflow/graph/tool"
)

// FallbackText is the reply used when the model answers with neither text
// nor tool calls.
const FallbackText = "Sorry, I could not work out how to help with that. Could you say it another way?"

// DefaultSummaryInstruction is used for the summary pass when the request
// does not provide one.
const DefaultSummaryInstruction = "Present the tool results below to the user in a clear, friendly way. Do not invent data that is not in the results."

// Dispatcher runs one tool-augmented completion: the model picks tools
// from the registry, the dispatcher executes them, and an optional second
// pass turns the raw results into a reply.
type Dispatcher struct {
	Model    model.ChatModel
	Registry *tool.Registry
}

// DispatchRequest describes one dispatch.
type DispatchRequest struct {
	// Instruction is sent as the system message ahead of History.
	Instruction string

	// History is the conversation so far.
	History []model.Message

	// Tools names the registry tools bound for this call. Empty binds none.
	Tools []string

	// Summarize asks for a second completion over the tool results.
	Summarize bool

	// SummaryInstruction overrides DefaultSummaryInstruction.
	SummaryInstruction string
}

// CallRecord is one executed tool call.
type CallRecord struct {
	Name   string
	Args   map[string]interface{}
	Output map[string]interface{}
	Text   string
	Err    error
}

// DispatchResult is the outcome of a dispatch.
type DispatchResult struct {
	// Text is the reply for the user.
	Text string

	// Calls lists executed tool calls in order.
	Calls []CallRecord

	// Fallback is set when the model produced neither text nor calls.
	Fallback bool
}

// Find returns the first successful call of the named tool.
func (r DispatchResult) Find(name string) (CallRecord, bool) {
	for _, c := range r.Calls {
		if c.Name == name && c.Err == nil {
			return c, true
		}
	}
	return CallRecord{}, false
}

// Dispatch runs req. Tool failures become text lines in the result and
// are never returned; only model errors are.
func (d Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error) {
	messages := withInstruction(req.Instruction, req.History)

	var specs []model.ToolSpec
	if d.Registry != nil && len(req.Tools) > 0 {
		specs = d.Registry.Specs(req.Tools...)
	}

	out, err := d.Model.Chat(ctx, messages, specs)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("model call: %w", err)
	}

	if !out.HasToolCalls() {
		if strings.TrimSpace(out.Text) == "" {
			return DispatchResult{Text: FallbackText, Fallback: true}, nil
		}
		return DispatchResult{Text: out.Text}, nil
	}

	calls := d.execute(ctx, out.ToolCalls)
	raw := joinResults(calls)
	if err := ctx.Err(); err != nil {
		return DispatchResult{}, err
	}

	if !req.Summarize {
		return DispatchResult{Text: raw, Calls: calls}, nil
	}

	instruction := req.SummaryInstruction
	if instruction == "" {
		instruction = DefaultSummaryInstruction
	}
	followUp := append(withInstruction(instruction, req.History), model.User("Tool results:\n"+raw))

	summary, err := d.Model.Chat(ctx, followUp, nil)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("summary call: %w", err)
	}
	text := summary.Text
	if strings.TrimSpace(text) == "" {
		text = raw
	}
	return DispatchResult{Text: text, Calls: calls}, nil
}

func (d Dispatcher) execute(ctx context.Context, requested []model.ToolCall) []CallRecord {
	calls := make([]CallRecord, 0, len(requested))
	for _, call := range requested {
		rec := CallRecord{Name: call.Name, Args: call.Input}
		if d.Registry == nil {
			rec.Err = fmt.Errorf("%w: %s", tool.ErrUnknownTool, call.Name)
		} else {
			rec.Output, rec.Err = d.Registry.Invoke(ctx, call.Name, call.Input)
		}
		if rec.Err != nil {
			rec.Text = fmt.Sprintf("%s failed: %v", call.Name, rec.Err)
		} else {
			rec.Text = tool.RenderResult(rec.Output)
		}
		calls = append(calls, rec)
	}
	return calls
}

func joinResults(calls []CallRecord) string {
	parts := make([]string, len(calls))
	for i, c := range calls {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n\n")
}

func withInstruction(instruction string, history []model.Message) []model.Message {
	out := make([]model.Message, 0, len(history)+1)
	if instruction != "" {
		out = append(out, model.System(instruction))
	}
	return append(out, history...)
}
