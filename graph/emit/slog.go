package emit

import (
	"context"
	"log/slog"
	"sort"
)

// SlogEmitter forwards events to a structured logger.
//
// Failures and faults are logged at warn level, step timings at debug and
// everything else at info.
type SlogEmitter struct {
	logger *slog.Logger
}

// NewSlogEmitter wraps logger, falling back to slog.Default when nil.
func NewSlogEmitter(logger *slog.Logger) *SlogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEmitter{logger: logger}
}

// Emit implements Emitter.
func (s *SlogEmitter) Emit(event Event) {
	level := slog.LevelInfo
	switch event.Msg {
	case MsgStepFailed, MsgFault:
		level = slog.LevelWarn
	case MsgStepStart, MsgStepEnd:
		level = slog.LevelDebug
	}

	ctx := context.Background()
	if !s.logger.Enabled(ctx, level) {
		return
	}

	attrs := []slog.Attr{
		slog.String("thread", event.ThreadID),
		slog.Int("step", event.Step),
	}
	if event.StepID != "" {
		attrs = append(attrs, slog.String("step_id", event.StepID))
	}

	keys := make([]string, 0, len(event.Meta))
	for k := range event.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, event.Meta[k]))
	}

	s.logger.LogAttrs(ctx, level, event.Msg, attrs...)
}
