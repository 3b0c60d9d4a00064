package order

import (
	"errors"

	"github.com/dshills/shopflow/graph"
	"github.com/dshills/shopflow/graph/model"
	"github.com/dshills/shopflow/graph/steps"
	"github.com/dshills/shopflow/graph/store"
	"github.com/dshills/shopflow/graph/tool"
)

// Name labels the workflow in events, metrics and URLs.
const Name = "order"

// Steps. The confirm_* and collect_address steps are interrupts.
const (
	StepSearch           = "search"
	StepConfirmSelection = "confirm_selection"
	StepHandleSelection  = "handle_selection"
	StepViewCart         = "view_cart"
	StepConfirmCart      = "confirm_cart"
	StepHandleCart       = "handle_cart"
	StepCollectAddress   = "collect_address"
	StepHandleAddress    = "handle_address"
	StepConfirmOrder     = "confirm_order"
	StepHandleOrder      = "handle_order"
	StepPlaceOrder       = "place_order"
)

// New builds the order workflow:
//
//	search -> [confirm_selection] -> handle_selection -> {confirm_selection | view_cart | search}
//	view_cart -> [confirm_cart] -> handle_cart -> {confirm_cart | collect_address | search}
//	[collect_address] -> handle_address -> {collect_address | confirm_order}
//	[confirm_order] -> handle_order -> {confirm_order | place_order | collect_address}
//	place_order -> end
//
// tools must provide the tools of NewRegistry; tests may substitute
// their own implementations under the same names.
func New(llm model.ChatModel, tools *tool.Registry, st store.CheckpointStore[graph.State[Data]], opts ...graph.Option) (*graph.Engine[Data], error) {
	if llm == nil {
		return nil, errors.New("order workflow needs a chat model")
	}
	if tools == nil {
		return nil, errors.New("order workflow needs a tool registry")
	}

	eng, err := graph.New[Data](Merge, st, append([]graph.Option{graph.WithWorkflowName(Name)}, opts...)...)
	if err != nil {
		return nil, err
	}

	a := &agent{
		llm:      llm,
		tools:    tools,
		dispatch: steps.Dispatcher{Model: llm, Registry: tools},
	}

	b := graph.Build(eng)
	b.Add(StepSearch, a.search)
	b.Interrupt(StepConfirmSelection)
	b.Add(StepHandleSelection, a.handleSelection)
	b.Add(StepViewCart, a.viewCart)
	b.Interrupt(StepConfirmCart)
	b.Add(StepHandleCart, a.handleCart)
	b.Interrupt(StepCollectAddress)
	b.Add(StepHandleAddress, a.handleAddress)
	b.Interrupt(StepConfirmOrder)
	b.Add(StepHandleOrder, a.handleOrder)
	b.Add(StepPlaceOrder, a.placeOrder)

	b.Start(StepSearch)
	b.Connect(StepSearch, StepConfirmSelection)
	b.Connect(StepConfirmSelection, StepHandleSelection)
	b.Branch(StepHandleSelection, StepConfirmSelection, StepViewCart, StepSearch)
	b.Connect(StepViewCart, StepConfirmCart)
	b.Connect(StepConfirmCart, StepHandleCart)
	b.Branch(StepHandleCart, StepConfirmCart, StepCollectAddress, StepSearch)
	b.Connect(StepCollectAddress, StepHandleAddress)
	b.Branch(StepHandleAddress, StepCollectAddress, StepConfirmOrder)
	b.Connect(StepConfirmOrder, StepHandleOrder)
	b.Branch(StepHandleOrder, StepConfirmOrder, StepPlaceOrder, StepCollectAddress)
	b.Connect(StepPlaceOrder, graph.End)

	if err := b.Err(); err != nil {
		return nil, err
	}
	return eng, nil
}
