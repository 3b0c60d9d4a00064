// Package emit delivers engine events to logs, tracers and tests.
package emit

// Emitter receives events as a thread moves through the workflow.
//
// Engines call Emit synchronously on the goroutine running the turn, so
// implementations must be quick and safe for concurrent use across threads.
//
// Implementations:
//   - LogEmitter: text or JSONL lines on an io.Writer
//   - SlogEmitter: structured records through log/slog
//   - OTelEmitter: one span per event
//   - BufferedEmitter: in-memory history for tests and inspection
//   - NullEmitter: discards everything
type Emitter interface {
	Emit(event Event)
}

// Multi fans a single event out to several emitters in order.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(event)
		}
	}
}
