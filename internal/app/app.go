package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/dshills/shopflow/agents/listing"
	"github.com/dshills/shopflow/agents/order"
	"github.com/dshills/shopflow/graph"
	"github.com/dshills/shopflow/graph/emit"
	"github.com/dshills/shopflow/graph/model"
	"github.com/dshills/shopflow/graph/model/anthropic"
	"github.com/dshills/shopflow/graph/model/google"
	"github.com/dshills/shopflow/graph/model/openai"
	"github.com/dshills/shopflow/graph/store"
	"github.com/dshills/shopflow/internal/config"
	"github.com/dshills/shopflow/internal/pmall"
)

// ErrUnknownWorkflow is returned by Runner for names that are not shipped.
var ErrUnknownWorkflow = errors.New("unknown workflow")

// App holds the configured workflows and the resources behind them.
type App struct {
	Logger   *slog.Logger
	Registry *prometheus.Registry

	runners map[string]Runner
	closers []io.Closer
}

// Deps overrides collaborators normally built from configuration.
type Deps struct {
	Model model.ChatModel
	Mall  interface {
		order.Mall
		listing.Backend
	}
}

// New builds both workflows from cfg.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	return NewWithDeps(cfg, logger, Deps{})
}

// NewWithDeps is New with some collaborators supplied by the caller.
func NewWithDeps(cfg config.Config, logger *slog.Logger, deps Deps) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &App{
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		runners:  make(map[string]Runner),
	}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	llm := deps.Model
	if llm == nil {
		var err error
		if llm, err = NewModel(cfg.LLM); err != nil {
			return nil, err
		}
	}

	mall := deps.Mall
	if mall == nil {
		client, err := pmall.New(cfg.Pmall.BaseURL,
			pmall.WithCredentials(cfg.Pmall.Username, cfg.Pmall.Password),
			pmall.WithTimeout(cfg.Pmall.Timeout.Std()),
			pmall.WithLogger(logger.With("component", "pmall")),
		)
		if err != nil {
			return nil, err
		}
		mall = client
	}

	metrics := graph.NewPrometheusMetrics(a.Registry)

	orderStore, err := openStore[graph.State[order.Data]](a, cfg.Store, order.Name)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	orders, err := order.New(llm, order.NewRegistry(mall), orderStore, a.engineOptions(cfg, order.Name, metrics)...)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("build order workflow: %w", err)
	}

	listingStore, err := openStore[graph.State[listing.Data]](a, cfg.Store, listing.Name)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	listings, err := listing.New(llm, listing.NewRegistry(mall), listingStore, a.engineOptions(cfg, listing.Name, metrics)...)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("build listing workflow: %w", err)
	}

	a.runners[order.Name] = Wrap(orders)
	a.runners[listing.Name] = Wrap(listings)
	logger.Info("workflows ready", "provider", cfg.LLM.Provider, "store", cfg.Store.Driver)
	return a, nil
}

func (a *App) engineOptions(cfg config.Config, workflow string, metrics *graph.PrometheusMetrics) []graph.Option {
	opts := []graph.Option{
		graph.WithMaxSteps(cfg.Engine.MaxSteps),
		graph.WithStepTimeout(cfg.Engine.StepTimeout.Std()),
		graph.WithMetrics(metrics),
		graph.WithLogger(a.Logger),
		graph.WithEmitter(emit.Multi{
			emit.NewSlogEmitter(a.Logger.With("component", "engine")),
			emit.NewOTelEmitter(otel.Tracer("github.com/dshills/shopflow")),
		}),
	}

	if cfg.Engine.DistributedLock {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		a.closers = append(a.closers, client)
		locker := store.NewRedisLocker(client, cfg.Store.Redis.Prefix+workflow+":")
		opts = append(opts, graph.WithDistributedLocker(locker, cfg.Engine.LockTTL.Std()))
	}
	return opts
}

func openStore[S any](a *App, c config.StoreConfig, workflow string) (store.CheckpointStore[S], error) {
	ns := workflow + ":"
	switch c.Driver {
	case "memory", "":
		return store.NewMemStore[S](), nil
	case "sqlite":
		st, err := store.NewSQLiteStore[S](c.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		a.closers = append(a.closers, st)
		return store.WithNamespace[S](st, ns), nil
	case "mysql":
		st, err := store.NewMySQLStore[S](c.DSN)
		if err != nil {
			return nil, fmt.Errorf("open mysql store: %w", err)
		}
		a.closers = append(a.closers, st)
		return store.WithNamespace[S](st, ns), nil
	case "redis":
		st := store.NewRedisStore[S](c.Redis.Addr, c.Redis.Password, c.Redis.DB,
			store.WithPrefix(c.Redis.Prefix+ns),
			store.WithTTL(c.Redis.TTL.Std()),
		)
		a.closers = append(a.closers, st)
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", c.Driver)
	}
}

// NewModel returns the chat model for c.Provider.
func NewModel(c config.LLMConfig) (model.ChatModel, error) {
	switch c.Provider {
	case "openai":
		opts := []openai.Option{openai.WithTemperature(c.Temperature)}
		if c.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(c.BaseURL))
		}
		return openai.NewChatModel(c.APIKey, c.Model, opts...), nil
	case "anthropic":
		return anthropic.NewChatModel(c.APIKey, c.Model), nil
	case "google":
		return google.NewChatModel(c.APIKey, c.Model), nil
	case "mock":
		return &model.MockChatModel{Script: echo}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", c.Provider)
	}
}

// echo answers with the last user message. It lets the CLI and server run
// without credentials.
func echo(messages []model.Message, _ []model.ToolSpec) (model.ChatOut, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser {
			return model.ChatOut{Text: "(mock) " + messages[i].Content}, nil
		}
	}
	return model.ChatOut{Text: "(mock)"}, nil
}

// Runner returns the named workflow.
func (a *App) Runner(name string) (Runner, error) {
	r, ok := a.runners[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWorkflow, name)
	}
	return r, nil
}

// Names lists the workflows, sorted.
func (a *App) Names() []string {
	names := make([]string, 0, len(a.runners))
	for n := range a.runners {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close releases stores and connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
