package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/shopflow/graph"
	"github.com/dshills/shopflow/graph/model"
	"github.com/dshills/shopflow/graph/steps"
	"github.com/dshills/shopflow/graph/tool"
)

// MaxAttempts is the number of failed creations after which the workflow
// gives up.
const MaxAttempts = 3

var approvalWords = []string{"是", "确认", "ok", "yes", "好", "可以", "没问题", "同意", "行", "confirm", "approve"}

// negatedWords contain an approval word but mean the opposite. They leave
// the decision to the model.
var negatedWords = []string{"不是", "不行", "不好", "不可以", "不同意", "不确认", "not ok", "not okay", "don't", "do not"}

var approvalIntents = graph.DecisionTable[string]{
	Rules: []graph.Rule[string]{
		{When: steps.ContainsAny(negatedWords...), To: StatusPending},
		{When: steps.ContainsAny(approvalWords...), To: StatusApproved},
	},
	Fallback: StatusPending,
}

type agent struct {
	llm      model.ChatModel
	tools    *tool.Registry
	dispatch steps.Dispatcher
	metrics  *graph.PrometheusMetrics
}

func say(text string) []model.Message {
	return []model.Message{model.Assistant(text)}
}

func (a *agent) completeInfo(ctx context.Context, s graph.State[Data]) graph.NodeResult[Data] {
	res, err := a.dispatch.Dispatch(ctx, steps.DispatchRequest{
		Instruction:        completeInfoInstruction,
		History:            s.Messages,
		Tools:              []string{ToolGetCategories, ToolGetBrands},
		Summarize:          true,
		SummaryInstruction: completeInfoInstruction,
	})
	if err != nil {
		return graph.Fail[Data](err)
	}

	delta := Data{ValidationStatus: StatusPending}
	if s.Data.UserInput == "" {
		delta.UserInput = s.LastUserMessage()
	}

	// An empty answer leaves nothing to parse or repair.
	if res.Fallback {
		return graph.Result[Data](graph.Patch[Data]{Messages: say(askMoreInfo), Data: delta, Next: StepConfirm})
	}

	draft, ok := parseDraft(res.Text)
	if !ok {
		history := append([]model.Message{model.System(completeInfoInstruction)}, s.Messages...)
		history = append(history, model.User(strictDirective))
		out, err := a.llm.Chat(ctx, history, nil)
		if err != nil {
			return graph.Fail[Data](fmt.Errorf("model call: %w", err))
		}
		draft, ok = parseDraft(out.Text)
	}
	if !ok {
		return graph.Result[Data](graph.Patch[Data]{Messages: say(askMoreInfo), Data: delta, Next: StepConfirm})
	}

	delta.ProductDraft = draft
	return graph.Result[Data](graph.Patch[Data]{
		Messages: say(FormatDraft(draft) + confirmHint),
		Data:     delta,
		Next:     StepConfirm,
	})
}

func (a *agent) validate(ctx context.Context, s graph.State[Data]) graph.NodeResult[Data] {
	input := s.LastUserMessage()
	if steps.Classify(input, approvalIntents) == StatusApproved {
		return graph.Result[Data](graph.Patch[Data]{
			Messages: say("Creating the product..."),
			Data:     Data{ValidationStatus: StatusApproved},
			Next:     StepCreate,
		})
	}

	current, _ := json.Marshal(s.Data.ProductDraft)
	out, err := a.llm.Chat(ctx, []model.Message{
		model.System(validateInstruction),
		model.System("Current product data:\n" + string(current)),
		model.User("Merchant reply: " + input),
	}, nil)
	if err != nil {
		return graph.Fail[Data](fmt.Errorf("model call: %w", err))
	}

	var verdict struct {
		Action string `json:"action"`
		Data   *Draft `json:"data"`
	}
	if err := steps.DecodeInto(out.Text, &verdict); err != nil {
		return graph.Result[Data](graph.Say[Data](clarifyReply, StepConfirm))
	}

	if verdict.Action == StatusApproved {
		return graph.Result[Data](graph.Patch[Data]{
			Messages: say("Creating the product..."),
			Data:     Data{ValidationStatus: StatusApproved},
			Next:     StepCreate,
		})
	}

	if verdict.Action == StatusRejected {
		return graph.Result[Data](graph.Patch[Data]{
			Messages: say(rejectReply),
			Data:     Data{ValidationStatus: StatusRejected},
			Next:     StepConfirm,
		})
	}

	draft := s.Data.ProductDraft
	if verdict.Data != nil {
		draft = verdict.Data
	}
	text := "Updated as requested.\n\n" + FormatDraft(draft) + confirmHint
	if draft == nil {
		text = askMoreInfo
	}
	return graph.Result[Data](graph.Patch[Data]{
		Messages: say(text),
		Data:     Data{ProductDraft: draft, ValidationStatus: StatusPending},
		Next:     StepConfirm,
	})
}

func (a *agent) create(ctx context.Context, s graph.State[Data]) graph.NodeResult[Data] {
	draft := s.Data.ProductDraft
	if draft == nil || (len(draft.Spu) == 0 && len(draft.Skus) == 0) {
		return graph.Result[Data](graph.Failed[Data]{
			Messages: say("Product data is empty, nothing to create."),
			Err:      emptyDraft,
			Next:     graph.End,
		})
	}

	out, err := a.tools.Invoke(ctx, ToolCreateProduct, draft.Args())
	if err != nil {
		return graph.Result[Data](graph.Failed[Data]{
			Messages: say(fmt.Sprintf("Creating the product failed: %v", err)),
			Err:      err.Error(),
			Next:     StepRetry,
		})
	}

	id := formatID(out["spu_id"])
	text := "Product created!\nSPU ID: " + id
	if msg, ok := out["message"].(string); ok && msg != "" {
		text += "\n" + msg
	}
	return graph.Result[Data](graph.Succeeded[Data]{
		Messages: say(text),
		Data:     Data{SpuID: id},
		Next:     graph.End,
	})
}

func (a *agent) retry(ctx context.Context, s graph.State[Data]) graph.NodeResult[Data] {
	if s.RetryCount >= MaxAttempts {
		a.metrics.IncrementRetries(Name, StepRetry, "exhausted")
		return graph.Result[Data](graph.Say[Data](fmt.Sprintf(
			"Product creation still failed after %d attempts. Please check the product data or contact an administrator.\nLast error: %s",
			MaxAttempts, s.ErrorMessage), graph.End))
	}

	current, _ := json.Marshal(s.Data.ProductDraft)
	out, err := a.llm.Chat(ctx, []model.Message{
		model.System(fmt.Sprintf(retryInstruction, s.ErrorMessage)),
		model.System("Current product data:\n" + string(current)),
		model.User("Return the corrected product JSON."),
	}, nil)
	if err != nil {
		return graph.Fail[Data](fmt.Errorf("model call: %w", err))
	}

	fixed, ok := parseDraft(out.Text)
	if !ok {
		a.metrics.IncrementRetries(Name, StepRetry, "unparseable")
		return graph.Result[Data](graph.Say[Data](
			"Could not fix the product data automatically. Last error: "+s.ErrorMessage, graph.End))
	}

	a.metrics.IncrementRetries(Name, StepCreate, "fixed")
	return graph.Result[Data](graph.Patch[Data]{
		Messages: say(fmt.Sprintf("Fixed the product data, retrying (attempt %d)...", s.RetryCount+1)),
		Data:     Data{ProductDraft: fixed},
		Next:     StepCreate,
	})
}

func parseDraft(text string) (*Draft, bool) {
	var d Draft
	if err := steps.DecodeInto(text, &d); err != nil {
		return nil, false
	}
	if !d.Complete() {
		return nil, false
	}
	return &d, true
}

// FormatDraft renders a draft for review: an SPU and SKU summary followed
// by the full JSON.
func FormatDraft(d *Draft) string {
	if d == nil {
		return "(no product data)"
	}
	var b strings.Builder
	b.WriteString("Product preview\n\nSPU:\n")
	for _, f := range []struct{ label, key string }{
		{"Name", "name"},
		{"Subtitle", "sub_title"},
		{"Brand ID", "brand_id"},
		{"Category ID", "category_id"},
	} {
		fmt.Fprintf(&b, "  - %s: %s\n", f.label, field(d.Spu, f.key))
	}

	fmt.Fprintf(&b, "\nSKUs (%d):\n", len(d.Skus))
	for i, sku := range d.Skus {
		fmt.Fprintf(&b, "  SKU #%d:\n", i+1)
		fmt.Fprintf(&b, "    - Code: %s\n", field(sku, "sku_code"))
		fmt.Fprintf(&b, "    - Name: %s\n", field(sku, "name"))
		fmt.Fprintf(&b, "    - Price: ¥%s\n", field(sku, "price"))
		fmt.Fprintf(&b, "    - Stock: %s\n", field(sku, "stock"))
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err == nil {
		b.WriteString("\nFull JSON:\n")
		b.WriteString(strings.TrimRight(buf.String(), "\n"))
	}
	return b.String()
}

func field(m map[string]interface{}, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return "N/A"
	}
	return formatID(v)
}
