package emit

import "sync"

// BufferedEmitter keeps every event in memory, grouped by thread.
//
// Tests use it to assert on the exact sequence of suspends, resumes and
// faults a conversation produced.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // threadID -> events
}

// HistoryFilter narrows GetHistoryWithFilter results. Zero fields match
// everything.
type HistoryFilter struct {
	StepID  string
	Msg     string
	MinStep *int
	MaxStep *int
}

// NewBufferedEmitter creates an empty buffer.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

// Emit implements Emitter.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.ThreadID] = append(b.events[event.ThreadID], event)
}

// GetHistory returns a copy of the events recorded for threadID.
func (b *BufferedEmitter) GetHistory(threadID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[threadID]
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// GetHistoryWithFilter returns the events for threadID matching filter.
func (b *BufferedEmitter) GetHistoryWithFilter(threadID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, e := range b.events[threadID] {
		if filter.StepID != "" && e.StepID != filter.StepID {
			continue
		}
		if filter.Msg != "" && e.Msg != filter.Msg {
			continue
		}
		if filter.MinStep != nil && e.Step < *filter.MinStep {
			continue
		}
		if filter.MaxStep != nil && e.Step > *filter.MaxStep {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Messages returns just the Msg of each event for threadID, in order.
func (b *BufferedEmitter) Messages(threadID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, len(b.events[threadID]))
	for i, e := range b.events[threadID] {
		out[i] = e.Msg
	}
	return out
}

// Clear drops the history of threadID, or of every thread when empty.
func (b *BufferedEmitter) Clear(threadID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if threadID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, threadID)
}
