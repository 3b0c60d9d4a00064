package graph

// Builder wires a topology with fewer error checks: every call after the
// first failure is skipped and Err reports that failure.
//
//	b := graph.Build(eng)
//	b.Add("search", searchNode)
//	b.Interrupt("confirm")
//	b.Add("handle", handleNode)
//	b.Start("search")
//	b.Connect("search", "confirm")
//	b.Connect("confirm", "handle")
//	b.Branch("handle", "confirm", "search")
//	if err := b.Err(); err != nil { ... }
type Builder[W any] struct {
	eng *Engine[W]
	err error
}

// Build returns a Builder for eng.
func Build[W any](eng *Engine[W]) *Builder[W] {
	return &Builder[W]{eng: eng}
}

func (b *Builder[W]) Add(id string, node NodeFunc[W]) {
	if b.err == nil {
		b.err = b.eng.Add(id, node)
	}
}

func (b *Builder[W]) Interrupt(id string) {
	if b.err == nil {
		b.err = b.eng.AddInterrupt(id)
	}
}

func (b *Builder[W]) Start(id string) {
	if b.err == nil {
		b.err = b.eng.StartAt(id)
	}
}

func (b *Builder[W]) Connect(from, to string) {
	if b.err == nil {
		b.err = b.eng.Connect(from, to)
	}
}

// Branch routes from by NextStep over targets. The first target is the
// fallback for any other NextStep.
func (b *Builder[W]) Branch(from string, targets ...string) {
	if b.err != nil {
		return
	}
	if len(targets) == 0 {
		b.err = &EngineError{Message: "branch from " + from + " declares no targets", Code: CodeInvalidGraph}
		return
	}
	table := RouteByNextStep[W](targets[0], targets[1:]...)
	b.err = b.eng.Branch(from, table, table.Targets()...)
}

// Err returns the first error, then validates the finished topology.
func (b *Builder[W]) Err() error {
	if b.err != nil {
		return b.err
	}
	return b.eng.Validate()
}
