package graph

// Edge is an unconditional transition between two steps.
type Edge struct {
	From string
	To   string
}

// Predicate evaluates a state. Predicates used for routing should be pure
// and look only at NextStep.
type Predicate[W any] func(state State[W]) bool

// NextStepIs matches states whose NextStep equals step.
func NextStepIs[W any](step string) Predicate[W] {
	return func(s State[W]) bool {
		return s.NextStep == step
	}
}

// branch is a routed transition: the router picks one of targets.
type branch[W any] struct {
	router  Router[W]
	targets map[string]bool
}

func (b branch[W]) allows(target string) bool {
	return b.targets[target]
}
