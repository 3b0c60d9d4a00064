package graph

import "github.com/dshills/shopflow/graph/model"

// Update is the result a step hands back to the engine.
//
// The set of variants is closed; each one touches a fixed set of state
// fields:
//
//	Relay      nothing
//	Reply      Messages (append), NextStep (when set)
//	Patch      Messages (append), Data (merge), NextStep
//	Replace    Messages (append), Data (replace), NextStep
//	Succeeded  Messages (append), Data (merge), ErrorMessage (clear), NextStep
//	Failed     Messages (append), ErrorMessage (set), RetryCount (+1), NextStep
type Update[W any] interface {
	apply(s *State[W], merge Merge[W])
}

// Relay leaves the state unchanged.
type Relay[W any] struct{}

func (Relay[W]) apply(*State[W], Merge[W]) {}

// Reply appends messages and optionally moves NextStep.
type Reply[W any] struct {
	Messages []model.Message
	Next     string
}

func (u Reply[W]) apply(s *State[W], _ Merge[W]) {
	s.Messages = append(s.Messages, u.Messages...)
	if u.Next != "" {
		s.NextStep = u.Next
	}
}

// Patch appends messages and merges Data into the working data.
type Patch[W any] struct {
	Messages []model.Message
	Data     W
	Next     string
}

func (u Patch[W]) apply(s *State[W], merge Merge[W]) {
	s.Messages = append(s.Messages, u.Messages...)
	s.Data = merge(s.Data, u.Data)
	s.NextStep = u.Next
}

// Replace appends messages and substitutes the working data entirely,
// which is how fields are cleared.
type Replace[W any] struct {
	Messages []model.Message
	Data     W
	Next     string
}

func (u Replace[W]) apply(s *State[W], _ Merge[W]) {
	s.Messages = append(s.Messages, u.Messages...)
	s.Data = u.Data
	s.NextStep = u.Next
}

// Succeeded records a successful side effect: Data is merged and any
// previous error is cleared.
type Succeeded[W any] struct {
	Messages []model.Message
	Data     W
	Next     string
}

func (u Succeeded[W]) apply(s *State[W], merge Merge[W]) {
	s.Messages = append(s.Messages, u.Messages...)
	s.Data = merge(s.Data, u.Data)
	s.ErrorMessage = ""
	s.NextStep = u.Next
}

// Failed records a failed side effect and counts the attempt.
type Failed[W any] struct {
	Messages []model.Message
	Err      string
	Next     string
}

func (u Failed[W]) apply(s *State[W], _ Merge[W]) {
	s.Messages = append(s.Messages, u.Messages...)
	s.ErrorMessage = u.Err
	s.RetryCount++
	s.NextStep = u.Next
}

// Say is shorthand for a single assistant reply routed to next.
func Say[W any](text, next string) Reply[W] {
	return Reply[W]{Messages: []model.Message{model.Assistant(text)}, Next: next}
}
