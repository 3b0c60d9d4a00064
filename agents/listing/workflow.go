package listing

import (
	"errors"

	"github.com/dshills/shopflow/graph"
	"github.com/dshills/shopflow/graph/model"
	"github.com/dshills/shopflow/graph/steps"
	"github.com/dshills/shopflow/graph/store"
	"github.com/dshills/shopflow/graph/tool"
)

// Name labels the workflow in events, metrics and URLs.
const Name = "listing"

// Steps. confirm is the only interrupt.
const (
	StepCompleteInfo = "complete_info"
	StepConfirm      = "confirm"
	StepValidate     = "validate"
	StepCreate       = "create"
	StepRetry        = "retry"
)

// New builds the product-listing workflow:
//
//	complete_info -> [confirm] -> validate -> {confirm | create}
//	create -> {end | retry}
//	retry -> {end | create}
func New(llm model.ChatModel, tools *tool.Registry, st store.CheckpointStore[graph.State[Data]], opts ...graph.Option) (*graph.Engine[Data], error) {
	if llm == nil {
		return nil, errors.New("listing workflow needs a chat model")
	}
	if tools == nil {
		return nil, errors.New("listing workflow needs a tool registry")
	}

	eng, err := graph.New[Data](Merge, st, append([]graph.Option{graph.WithWorkflowName(Name)}, opts...)...)
	if err != nil {
		return nil, err
	}

	a := &agent{
		llm:      llm,
		tools:    tools,
		dispatch: steps.Dispatcher{Model: llm, Registry: tools},
		metrics:  eng.Metrics(),
	}

	b := graph.Build(eng)
	b.Add(StepCompleteInfo, a.completeInfo)
	b.Interrupt(StepConfirm)
	b.Add(StepValidate, a.validate)
	b.Add(StepCreate, a.create)
	b.Add(StepRetry, a.retry)

	b.Start(StepCompleteInfo)
	b.Connect(StepCompleteInfo, StepConfirm)
	b.Connect(StepConfirm, StepValidate)
	b.Branch(StepValidate, StepConfirm, StepCreate)
	b.Branch(StepCreate, graph.End, StepRetry)
	b.Branch(StepRetry, graph.End, StepCreate)

	if err := b.Err(); err != nil {
		return nil, err
	}
	return eng, nil
}
