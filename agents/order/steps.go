package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/shopflow/graph"
	"github.com/dshills/shopflow/graph/model"
	"github.com/dshills/shopflow/graph/steps"
	"github.com/dshills/shopflow/graph/tool"
)

// Keyword sets, Chinese and English.
var (
	viewCartWords     = []string{"查看购物车", "购物车", "查看", "cart"}
	checkoutWords     = []string{"去结算", "结算", "下单", "checkout", "check out"}
	keepShoppingWords = []string{"继续购物", "再看看", "continue shopping", "keep shopping"}
	cartContinueWords = []string{"继续购物", "再逛逛", "添加", "continue shopping", "keep shopping", "add more"}
	cartCheckoutWords = []string{"去结算", "结算", "确认", "下单", "checkout", "check out", "confirm", "place order"}
	orderConfirmWords = []string{"确认", "下单", "ok", "好", "confirm", "yes", "place order"}
	orderChangeWords  = []string{"修改", "不对", "change", "modify", "edit", "wrong"}
	orderAddressWords = []string{"地址", "address"}
)

// Intents that are not step names.
const (
	intentSelect   = "select"
	intentAsk      = "ask"
	intentCheckout = "checkout"
	intentConfirm  = "confirm"
	intentEdit     = "edit"
)

var selectionIntents = graph.DecisionTable[string]{
	Rules: []graph.Rule[string]{
		{When: steps.ContainsAny(viewCartWords...), To: StepViewCart},
		{When: steps.ContainsAny(checkoutWords...), To: StepViewCart},
		{When: steps.ContainsAny(keepShoppingWords...), To: StepSearch},
		{When: steps.IsNumber(), To: intentSelect},
	},
	Fallback: intentAsk,
}

var cartIntents = graph.DecisionTable[string]{
	Rules: []graph.Rule[string]{
		{When: steps.ContainsAny(cartContinueWords...), To: StepSearch},
		{When: steps.ContainsAny(cartCheckoutWords...), To: intentCheckout},
	},
	Fallback: intentAsk,
}

// orderIntents checks change requests before confirmation: "looks wrong,
// change it" must never place an order. A bare mention of the address
// only edits when nothing confirms.
var orderIntents = graph.DecisionTable[string]{
	Rules: []graph.Rule[string]{
		{When: steps.ContainsAny(orderChangeWords...), To: intentEdit},
		{When: steps.ContainsAny(orderConfirmWords...), To: intentConfirm},
		{When: steps.ContainsAny(orderAddressWords...), To: intentEdit},
	},
	Fallback: intentAsk,
}

type agent struct {
	llm      model.ChatModel
	tools    *tool.Registry
	dispatch steps.Dispatcher
}

func say(text string) []model.Message {
	return []model.Message{model.Assistant(text)}
}

func (a *agent) search(ctx context.Context, s graph.State[Data]) graph.NodeResult[Data] {
	res, err := a.dispatch.Dispatch(ctx, steps.DispatchRequest{
		Instruction:        searchInstruction,
		History:            s.Messages,
		Tools:              a.tools.Names(),
		Summarize:          true,
		SummaryInstruction: searchSummaryInstruction,
	})
	if err != nil {
		return graph.Fail[Data](err)
	}
	if res.Fallback {
		return graph.Result[Data](graph.Say[Data](res.Text, StepConfirmSelection))
	}

	var delta Data
	if call, ok := res.Find(ToolSearchProducts); ok {
		delta.SearchResults = productsFrom(call.Output["products"])
	}
	return graph.Result[Data](graph.Patch[Data]{
		Messages: say(res.Text),
		Data:     delta,
		Next:     StepConfirmSelection,
	})
}

func (a *agent) handleSelection(ctx context.Context, s graph.State[Data]) graph.NodeResult[Data] {
	input := strings.TrimSpace(s.LastUserMessage())

	switch intent := steps.Classify(input, selectionIntents); intent {
	case StepViewCart, StepSearch:
		return graph.Result[Data](graph.Reply[Data]{Next: intent})

	case intentSelect:
		results := s.Data.SearchResults
		sel := steps.Select(input, len(results))
		if !sel.InRange {
			if len(results) == 0 {
				return graph.Result[Data](graph.Say[Data]("There is nothing to choose from yet. Tell me what you are looking for.", StepConfirmSelection))
			}
			return graph.Result[Data](graph.Say[Data](
				fmt.Sprintf("Invalid choice, please enter a number between 1 and %d.", len(results)), StepConfirmSelection))
		}

		picked := results[sel.Index]
		out, err := a.tools.Invoke(ctx, ToolAddToCart, map[string]interface{}{"sku_id": picked.SkuID, "quantity": 1})
		if err != nil {
			return graph.Result[Data](graph.Say[Data](
				fmt.Sprintf("Could not add %s to the cart: %v", picked.SkuName, err), StepConfirmSelection))
		}
		return graph.Result[Data](graph.Patch[Data]{
			Messages: say(tool.RenderResult(out)),
			Data:     Data{SelectedItem: &picked},
			Next:     StepViewCart,
		})

	default:
		res, err := a.dispatch.Dispatch(ctx, steps.DispatchRequest{
			Instruction: selectionInstruction,
			History:     s.Messages,
			Tools:       a.tools.Names(),
		})
		if err != nil {
			return graph.Fail[Data](err)
		}
		return graph.Result[Data](graph.Say[Data](res.Text, StepConfirmSelection))
	}
}

func (a *agent) viewCart(ctx context.Context, s graph.State[Data]) graph.NodeResult[Data] {
	res, err := a.dispatch.Dispatch(ctx, steps.DispatchRequest{
		Instruction:        viewCartInstruction,
		History:            s.Messages,
		Tools:              a.tools.Names(),
		Summarize:          true,
		SummaryInstruction: cartSummaryInstruction,
	})
	if err != nil {
		return graph.Fail[Data](err)
	}
	if res.Fallback {
		return graph.Result[Data](graph.Say[Data](res.Text, StepConfirmCart))
	}

	var delta Data
	if call, ok := res.Find(ToolViewCart); ok {
		delta.Cart = cartFrom(call.Output["cart"])
	}
	return graph.Result[Data](graph.Patch[Data]{
		Messages: say(res.Text),
		Data:     delta,
		Next:     StepConfirmCart,
	})
}

func (a *agent) handleCart(_ context.Context, s graph.State[Data]) graph.NodeResult[Data] {
	switch steps.Classify(s.LastUserMessage(), cartIntents) {
	case StepSearch:
		return graph.Result[Data](graph.Reply[Data]{Next: StepSearch})
	case intentCheckout:
		return graph.Result[Data](graph.Say[Data](addressRequest, StepCollectAddress))
	default:
		return graph.Result[Data](graph.Say[Data](cartReprompt, StepConfirmCart))
	}
}

func (a *agent) handleAddress(ctx context.Context, s graph.State[Data]) graph.NodeResult[Data] {
	prompt := fmt.Sprintf(addressExtractPrompt, s.LastUserMessage())
	out, err := a.llm.Chat(ctx, []model.Message{model.User(prompt)}, nil)
	if err != nil {
		return graph.Fail[Data](fmt.Errorf("extract address: %w", err))
	}

	extracted, err := steps.ExtractJSON(out.Text)
	if err != nil {
		return graph.Result[Data](graph.Say[Data](addressFormatHint, StepCollectAddress))
	}

	fields := make(map[string]interface{}, len(addressFields))
	for _, f := range addressFields {
		if v, ok := extracted[f]; ok {
			fields[f] = v
		}
	}
	current := steps.MergeFields(s.Data.ShippingAddress, fields)

	if missing := steps.MissingFields(current, addressFields); len(missing) > 0 {
		return graph.Result[Data](graph.Patch[Data]{
			Messages: say(missingText(missing)),
			Data:     Data{ShippingAddress: current},
			Next:     StepCollectAddress,
		})
	}
	return graph.Result[Data](graph.Patch[Data]{
		Messages: say(addressSummary(current)),
		Data:     Data{ShippingAddress: current},
		Next:     StepConfirmOrder,
	})
}

func (a *agent) handleOrder(_ context.Context, s graph.State[Data]) graph.NodeResult[Data] {
	switch steps.Classify(s.LastUserMessage(), orderIntents) {
	case intentConfirm:
		return graph.Result[Data](graph.Reply[Data]{Next: StepPlaceOrder})
	case intentEdit:
		cleared := s.Data
		cleared.ShippingAddress = nil
		return graph.Result[Data](graph.Replace[Data]{
			Messages: say(addressAgain),
			Data:     cleared,
			Next:     StepCollectAddress,
		})
	default:
		return graph.Result[Data](graph.Say[Data](orderReprompt, StepConfirmOrder))
	}
}

// placeOrder has no retry path: a rejected order ends the session.
func (a *agent) placeOrder(ctx context.Context, s graph.State[Data]) graph.NodeResult[Data] {
	addr := s.Data.ShippingAddress
	if missing := steps.MissingFields(addr, addressFields); len(missing) > 0 {
		msg := "shipping address is missing " + strings.Join(missing, ", ")
		return graph.Result[Data](graph.Failed[Data]{
			Messages: say("Order failed: " + msg),
			Err:      msg,
			Next:     graph.End,
		})
	}

	args := make(map[string]interface{}, len(addr))
	for k, v := range addr {
		args[k] = v
	}
	out, err := a.tools.Invoke(ctx, ToolPlaceOrder, args)
	if err != nil {
		return graph.Result[Data](graph.Failed[Data]{
			Messages: say(fmt.Sprintf("Order failed: %v", err)),
			Err:      err.Error(),
			Next:     graph.End,
		})
	}

	id, _ := out["order_id"].(string)
	return graph.Result[Data](graph.Succeeded[Data]{
		Messages: say(tool.RenderResult(out)),
		Data:     Data{OrderID: id},
		Next:     graph.End,
	})
}

func missingText(missing []string) string {
	var b strings.Builder
	b.WriteString("I still need:\n")
	for _, f := range missing {
		b.WriteString("- ")
		b.WriteString(fieldLabels[f])
		b.WriteString("\n")
	}
	b.WriteString("\nYou can send everything in one message.")
	return b.String()
}

func addressSummary(addr map[string]interface{}) string {
	var b strings.Builder
	b.WriteString("Shipping information complete:\n\n")
	for _, f := range addressFields {
		fmt.Fprintf(&b, "%s: %v\n", fieldLabels[f], addr[f])
	}
	b.WriteString("\nIs this correct? Reply \"confirm\" (确认) to place the order, or tell me what to change.")
	return b.String()
}
