package emit

import "time"

// Event messages emitted by the engine.
const (
	MsgTurnStart  = "turn_start"
	MsgStepStart  = "step_start"
	MsgStepEnd    = "step_end"
	MsgSuspend    = "suspend"
	MsgResume     = "resume"
	MsgEnd        = "end"
	MsgStepFailed = "step_failed"
	MsgFault      = "fault"
)

// Event is a single observation about a conversation thread.
type Event struct {
	// ThreadID identifies the conversation.
	ThreadID string

	// Step is the sequential step number within the current session.
	Step int

	// StepID is the workflow step the event concerns, if any.
	StepID string

	// Msg is one of the Msg* constants.
	Msg string

	// Time is when the event happened. Emitters fill it in when zero.
	Time time.Time

	// Meta carries event-specific details such as "duration_ms",
	// "workflow", "error" or "code".
	Meta map[string]interface{}
}

// WithMeta returns a copy of e with key set in Meta.
func (e Event) WithMeta(key string, value interface{}) Event {
	meta := make(map[string]interface{}, len(e.Meta)+1)
	for k, v := range e.Meta {
		meta[k] = v
	}
	meta[key] = value
	e.Meta = meta
	return e
}

func (e Event) timestamp() time.Time {
	if e.Time.IsZero() {
		return time.Now()
	}
	return e.Time
}
