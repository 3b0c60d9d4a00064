package graph

import (
	"log/slog"
	"time"

	"github.com/dshills/shopflow/graph/emit"
)

// DefaultMaxSteps bounds the processing steps of one call.
const DefaultMaxSteps = 50

// Option is a functional option for configuring an Engine.
//
//	engine, err := graph.New(order.Merge, st,
//	    graph.WithWorkflowName("order"),
//	    graph.WithMaxSteps(100),
//	    graph.WithEmitter(emit.NewSlogEmitter(logger)),
//	)
type Option func(*engineConfig) error

type engineConfig struct {
	maxSteps    int
	workflow    string
	stepTimeout time.Duration
	emitter     emit.Emitter
	metrics     *PrometheusMetrics
	logger      *slog.Logger
	locker      DistributedLocker
	lockTTL     time.Duration
}

func defaultConfig() engineConfig {
	return engineConfig{
		maxSteps: DefaultMaxSteps,
		workflow: "workflow",
		emitter:  emit.NewNullEmitter(),
		logger:   slog.New(slog.DiscardHandler),
		lockTTL:  30 * time.Second,
	}
}

// WithMaxSteps limits the processing steps run by a single call. A loop
// that never reaches an interrupt faults with MAX_STEPS_EXCEEDED.
//
// Default: 50.
func WithMaxSteps(n int) Option {
	return func(cfg *engineConfig) error {
		if n <= 0 {
			return &EngineError{Message: "max steps must be positive", Code: CodeInvalidGraph}
		}
		cfg.maxSteps = n
		return nil
	}
}

// WithWorkflowName sets the workflow label used in events and metrics.
func WithWorkflowName(name string) Option {
	return func(cfg *engineConfig) error {
		if name != "" {
			cfg.workflow = name
		}
		return nil
	}
}

// WithStepTimeout bounds each processing step. Zero means unlimited.
func WithStepTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) error {
		if d < 0 {
			return &EngineError{Message: "step timeout cannot be negative", Code: CodeInvalidGraph}
		}
		cfg.stepTimeout = d
		return nil
	}
}

// WithEmitter sets the event sink. Nil keeps the null emitter.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *engineConfig) error {
		if e != nil {
			cfg.emitter = e
		}
		return nil
	}
}

// WithMetrics enables Prometheus metrics collection.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(cfg *engineConfig) error {
		cfg.metrics = m
		return nil
	}
}

// WithLogger sets the engine logger. Nil keeps the discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *engineConfig) error {
		if l != nil {
			cfg.logger = l
		}
		return nil
	}
}

// WithDistributedLocker serializes threads across processes in addition to
// the in-process lock. ttl bounds how long a crashed holder blocks a thread.
func WithDistributedLocker(locker DistributedLocker, ttl time.Duration) Option {
	return func(cfg *engineConfig) error {
		cfg.locker = locker
		if ttl > 0 {
			cfg.lockTTL = ttl
		}
		return nil
	}
}
