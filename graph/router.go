package graph

// Router picks the step that follows a processing step.
type Router[W any] interface {
	Route(state State[W]) string
}

// RouterFunc adapts a plain function to Router.
type RouterFunc[W any] func(state State[W]) string

// Route implements Router.
func (f RouterFunc[W]) Route(state State[W]) string {
	return f(state)
}

// Rule sends the thread to To when When holds.
type Rule[W any] struct {
	When Predicate[W]
	To   string
}

// DecisionTable routes by the first matching rule, top to bottom, and to
// Fallback when none match.
type DecisionTable[W any] struct {
	Rules    []Rule[W]
	Fallback string
}

// Route implements Router.
func (d DecisionTable[W]) Route(state State[W]) string {
	for _, r := range d.Rules {
		if r.When != nil && r.When(state) {
			return r.To
		}
	}
	return d.Fallback
}

// Targets lists every step the table can return, fallback included.
func (d DecisionTable[W]) Targets() []string {
	seen := make(map[string]bool, len(d.Rules)+1)
	var out []string
	for _, r := range d.Rules {
		if !seen[r.To] {
			seen[r.To] = true
			out = append(out, r.To)
		}
	}
	if d.Fallback != "" && !seen[d.Fallback] {
		out = append(out, d.Fallback)
	}
	return out
}

// RouteByNextStep builds the standard table: go to NextStep when it is one
// of targets, otherwise to fallback.
func RouteByNextStep[W any](fallback string, targets ...string) DecisionTable[W] {
	rules := make([]Rule[W], len(targets))
	for i, t := range targets {
		rules[i] = Rule[W]{When: NextStepIs[W](t), To: t}
	}
	return DecisionTable[W]{Rules: rules, Fallback: fallback}
}
