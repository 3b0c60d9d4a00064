package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dshills/shopflow/graph/emit"
	"github.com/dshills/shopflow/graph/model"
	"github.com/dshills/shopflow/graph/store"
)

// StartOverMessage is the reply given when a fault discards a thread.
const StartOverMessage = "Sorry, this conversation ran into a problem and had to be reset. Please start over."

// Engine runs a workflow as a sequence of turns.
//
// A turn begins with a user message and runs processing steps until the
// thread reaches an interrupt (the state is checkpointed and the thread
// suspends) or End (the checkpoint is cleared). The next message resumes
// at the step after the pending interrupt.
//
// Type parameter W is the workflow's working data.
//
// Example:
//
//	eng, _ := graph.New(merge, store.NewMemStore[graph.State[Data]]())
//	_ = eng.Add("greet", greetNode)
//	_ = eng.AddInterrupt("confirm")
//	_ = eng.Add("handle", handleNode)
//	_ = eng.StartAt("greet")
//	_ = eng.Connect("greet", "confirm")
//	_ = eng.Connect("confirm", "handle")
//	_ = eng.Branch("handle", graph.RouteByNextStep[Data]("confirm", graph.End), "confirm", graph.End)
//
//	turn, err := eng.Send(ctx, "thread-1", "hello")
type Engine[W any] struct {
	mu sync.RWMutex

	merge Merge[W]

	nodes    map[string]Node[W]
	kinds    map[string]Kind
	edges    []Edge
	branches map[string]branch[W]
	entry    string

	// out is the unconditional successor of each step, built when the
	// topology freezes at the first run.
	out    map[string]string
	frozen bool

	store store.CheckpointStore[State[W]]
	locks *lockManager
	cfg   engineConfig
}

// New creates an engine over merge and st.
func New[W any](merge Merge[W], st store.CheckpointStore[State[W]], opts ...Option) (*Engine[W], error) {
	if merge == nil {
		return nil, &EngineError{Message: "merge function cannot be nil", Code: CodeInvalidGraph}
	}
	if st == nil {
		return nil, &EngineError{Message: "checkpoint store cannot be nil", Code: CodeInvalidGraph}
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	return &Engine[W]{
		merge:    merge,
		nodes:    make(map[string]Node[W]),
		kinds:    make(map[string]Kind),
		branches: make(map[string]branch[W]),
		store:    st,
		locks:    newLockManager(cfg.locker, cfg.lockTTL, cfg.logger),
		cfg:      cfg,
	}, nil
}

// Name returns the workflow label used in events and metrics.
func (e *Engine[W]) Name() string {
	return e.cfg.workflow
}

// Metrics returns the configured metrics, which may be nil. Steps use it
// to report workflow-specific counters.
func (e *Engine[W]) Metrics() *PrometheusMetrics {
	return e.cfg.metrics
}

// Add registers a processing step.
func (e *Engine[W]) Add(id string, node Node[W]) error {
	if node == nil {
		return &EngineError{Message: "node cannot be nil", Code: CodeInvalidGraph}
	}
	return e.register(id, KindProcessing, node)
}

// AddInterrupt registers a step that suspends the thread until the next
// user message.
func (e *Engine[W]) AddInterrupt(id string) error {
	return e.register(id, KindInterrupt, nil)
}

func (e *Engine[W]) register(id string, kind Kind, node Node[W]) error {
	if id == "" {
		return &EngineError{Message: "step ID cannot be empty", Code: CodeInvalidGraph}
	}
	if id == End {
		return &EngineError{Message: "step ID " + End + " is reserved", Code: CodeInvalidGraph}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.frozen {
		return errFrozen()
	}
	if _, exists := e.kinds[id]; exists {
		return &EngineError{Message: "duplicate step ID: " + id, Code: CodeInvalidGraph}
	}

	e.kinds[id] = kind
	if node != nil {
		e.nodes[id] = node
	}
	return nil
}

// StartAt sets the entry step of every new session.
func (e *Engine[W]) StartAt(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.frozen {
		return errFrozen()
	}
	if _, exists := e.kinds[id]; !exists {
		return &EngineError{Message: "start step does not exist: " + id, Code: CodeNodeNotFound}
	}
	e.entry = id
	return nil
}

// Connect adds an unconditional transition from one step to another (or
// to End).
func (e *Engine[W]) Connect(from, to string) error {
	if from == "" || to == "" {
		return &EngineError{Message: "edge endpoints cannot be empty", Code: CodeInvalidGraph}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.frozen {
		return errFrozen()
	}
	e.edges = append(e.edges, Edge{From: from, To: to})
	return nil
}

// Branch routes the step from through router. The router's answer must be
// one of targets; anything else faults the thread with INVALID_ROUTE.
func (e *Engine[W]) Branch(from string, router Router[W], targets ...string) error {
	if from == "" {
		return &EngineError{Message: "branch source cannot be empty", Code: CodeInvalidGraph}
	}
	if router == nil {
		return &EngineError{Message: "router cannot be nil", Code: CodeInvalidGraph}
	}
	if len(targets) == 0 {
		return &EngineError{Message: "branch from " + from + " declares no targets", Code: CodeInvalidGraph}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.frozen {
		return errFrozen()
	}
	if _, exists := e.branches[from]; exists {
		return &EngineError{Message: "duplicate branch from " + from, Code: CodeInvalidGraph}
	}

	allowed := make(map[string]bool, len(targets))
	for _, t := range targets {
		allowed[t] = true
	}
	e.branches[from] = branch[W]{router: router, targets: allowed}
	return nil
}

// Validate checks the topology:
//   - the entry step exists
//   - every transition ends at a registered step or End
//   - each interrupt has exactly one outgoing edge, to a processing step
//   - each processing step has exactly one edge or one branch
func (e *Engine[W]) Validate() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, err := e.validateLocked()
	return err
}

func (e *Engine[W]) validateLocked() (map[string]string, error) {
	var problems []string
	known := func(id string) bool {
		_, ok := e.kinds[id]
		return ok || id == End
	}

	if e.entry == "" {
		problems = append(problems, "no start step")
	}

	outs := make(map[string][]string)
	for _, edge := range e.edges {
		if _, ok := e.kinds[edge.From]; !ok {
			problems = append(problems, "edge from unknown step "+edge.From)
			continue
		}
		if !known(edge.To) {
			problems = append(problems, fmt.Sprintf("edge %s -> %s targets unknown step", edge.From, edge.To))
			continue
		}
		outs[edge.From] = append(outs[edge.From], edge.To)
	}

	for _, from := range sortedKeys(e.branches) {
		kind, ok := e.kinds[from]
		if !ok {
			problems = append(problems, "branch from unknown step "+from)
			continue
		}
		if kind == KindInterrupt {
			problems = append(problems, "interrupt "+from+" cannot branch")
		}
		for _, t := range sortedKeys(e.branches[from].targets) {
			if !known(t) {
				problems = append(problems, fmt.Sprintf("branch %s -> %s targets unknown step", from, t))
			}
		}
	}

	single := make(map[string]string)
	for _, id := range sortedKeys(e.kinds) {
		edges := outs[id]
		_, branched := e.branches[id]

		switch e.kinds[id] {
		case KindInterrupt:
			if len(edges) != 1 {
				problems = append(problems, fmt.Sprintf("interrupt %s needs exactly one outgoing edge, has %d", id, len(edges)))
				continue
			}
			if e.kinds[edges[0]] != KindProcessing || edges[0] == End {
				problems = append(problems, fmt.Sprintf("interrupt %s must lead to a processing step, not %s", id, edges[0]))
				continue
			}
		default:
			if branched && len(edges) > 0 {
				problems = append(problems, "step "+id+" has both an edge and a branch")
				continue
			}
			if !branched && len(edges) != 1 {
				problems = append(problems, fmt.Sprintf("step %s needs exactly one edge or a branch, has %d edges", id, len(edges)))
				continue
			}
		}
		if len(edges) == 1 {
			single[id] = edges[0]
		}
	}

	if len(problems) > 0 {
		return nil, &EngineError{
			Message: "invalid workflow: " + strings.Join(problems, "; "),
			Code:    CodeInvalidGraph,
		}
	}
	return single, nil
}

// freeze validates the topology once and locks it against changes.
func (e *Engine[W]) freeze() error {
	e.mu.RLock()
	frozen := e.frozen
	e.mu.RUnlock()
	if frozen {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.frozen {
		return nil
	}
	out, err := e.validateLocked()
	if err != nil {
		return err
	}
	e.out = out
	e.frozen = true
	return nil
}

// Start opens a fresh session on threadID, discarding any checkpoint.
func (e *Engine[W]) Start(ctx context.Context, threadID, text string) (Turn[W], error) {
	return e.call(ctx, threadID, func() (Turn[W], error) {
		return e.start(ctx, threadID, text, true)
	})
}

// Resume continues the suspended session on threadID with text. A thread
// without a checkpoint faults with CHECKPOINT_NOT_FOUND.
func (e *Engine[W]) Resume(ctx context.Context, threadID, text string) (Turn[W], error) {
	return e.call(ctx, threadID, func() (Turn[W], error) {
		cp, err := e.store.Load(ctx, threadID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return e.fault(ctx, threadID, State[W]{}, CodeCheckpointNotFound, "no suspended session", err)
			}
			return e.fault(ctx, threadID, State[W]{}, CodeStoreError, "load checkpoint", err)
		}
		return e.resume(ctx, threadID, text, cp)
	})
}

// Send resumes threadID when it is suspended and starts a new session
// otherwise.
func (e *Engine[W]) Send(ctx context.Context, threadID, text string) (Turn[W], error) {
	return e.call(ctx, threadID, func() (Turn[W], error) {
		cp, err := e.store.Load(ctx, threadID)
		switch {
		case err == nil:
			return e.resume(ctx, threadID, text, cp)
		case errors.Is(err, store.ErrNotFound):
			return e.start(ctx, threadID, text, false)
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Turn[W]{}, ctxErr
			}
			return e.fault(ctx, threadID, State[W]{}, CodeStoreError, "load checkpoint", err)
		}
	})
}

// Reset discards the checkpoint of threadID.
func (e *Engine[W]) Reset(ctx context.Context, threadID string) error {
	release, err := e.lock(ctx, threadID)
	if err != nil {
		return err
	}
	defer release()

	if err := e.store.Clear(ctx, threadID); err != nil {
		return &EngineError{Message: "clear checkpoint", Code: CodeStoreError, ThreadID: threadID, Cause: err}
	}
	return nil
}

// Inspect returns the checkpoint of a suspended thread. Errors wrap
// store.ErrNotFound for threads without one.
func (e *Engine[W]) Inspect(ctx context.Context, threadID string) (store.Checkpoint[State[W]], error) {
	cp, err := e.store.Load(ctx, threadID)
	if err != nil {
		return store.Checkpoint[State[W]]{}, fmt.Errorf("inspect thread %s: %w", threadID, err)
	}
	return cp, nil
}

// Threads lists suspended threads when the store supports it.
func (e *Engine[W]) Threads(ctx context.Context) ([]string, error) {
	lister, ok := e.store.(store.Lister)
	if !ok {
		return nil, ErrListUnsupported
	}
	return lister.List(ctx)
}

// call wraps one turn with validation, the thread lock and turn metrics.
func (e *Engine[W]) call(ctx context.Context, threadID string, run func() (Turn[W], error)) (Turn[W], error) {
	if threadID == "" {
		return Turn[W]{}, &EngineError{Message: "thread ID cannot be empty", Code: CodeInvalidGraph}
	}
	if err := e.freeze(); err != nil {
		return Turn[W]{}, err
	}

	release, err := e.lock(ctx, threadID)
	if err != nil {
		return Turn[W]{}, err
	}
	defer release()

	e.cfg.metrics.turnStarted()
	defer e.cfg.metrics.turnFinished()

	turn, err := run()
	if err != nil {
		return turn, err
	}
	turn.ThreadID = threadID
	e.cfg.metrics.IncrementTurns(e.cfg.workflow, turn.Outcome())
	return turn, nil
}

func (e *Engine[W]) lock(ctx context.Context, threadID string) (func(), error) {
	release, err := e.locks.acquire(ctx, threadID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &EngineError{Message: "acquire thread lock", Code: CodeLockFailed, ThreadID: threadID, Cause: err}
	}
	return release, nil
}

// resumePoint remembers where a resumed turn began, so a failing step can
// put the thread back at its interrupt.
type resumePoint[W any] struct {
	pending  string
	snapshot State[W]
}

func (e *Engine[W]) start(ctx context.Context, threadID, text string, discard bool) (Turn[W], error) {
	state := NewState[W](text)
	if discard {
		if err := e.store.Clear(ctx, threadID); err != nil {
			return e.fault(ctx, threadID, state, CodeStoreError, "discard checkpoint", err)
		}
	}
	e.emit(threadID, 0, e.entry, emit.MsgTurnStart, nil)
	return e.run(ctx, threadID, state, e.entry, 0, nil)
}

func (e *Engine[W]) resume(ctx context.Context, threadID, text string, cp store.Checkpoint[State[W]]) (Turn[W], error) {
	state := cp.State
	state.Messages = append(state.Messages, model.User(text))

	if e.kinds[cp.PendingStep] != KindInterrupt || e.out[cp.PendingStep] == "" {
		return e.fault(ctx, threadID, state, CodeNodeNotFound, "pending step "+cp.PendingStep+" is not an interrupt", nil)
	}

	snapshot, err := deepCopy(state)
	if err != nil {
		return e.fault(ctx, threadID, state, CodeStoreError, "snapshot state", err)
	}

	e.emit(threadID, cp.Step, cp.PendingStep, emit.MsgResume, nil)
	return e.run(ctx, threadID, state, e.out[cp.PendingStep], cp.Step, &resumePoint[W]{
		pending:  cp.PendingStep,
		snapshot: snapshot,
	})
}

// run executes steps from current until the thread suspends, ends or
// faults. step counts processing steps over the whole session.
func (e *Engine[W]) run(ctx context.Context, threadID string, state State[W], current string, step int, rp *resumePoint[W]) (Turn[W], error) {
	mark := len(state.Messages)
	ran := 0

	for {
		if err := ctx.Err(); err != nil {
			return Turn[W]{}, err
		}

		if current == End {
			if err := e.store.Clear(ctx, threadID); err != nil {
				return e.fault(ctx, threadID, state, CodeStoreError, "clear checkpoint", err)
			}
			e.emit(threadID, step, End, emit.MsgEnd, nil)
			e.cfg.logger.Debug("session ended", "workflow", e.cfg.workflow, "thread", threadID, "steps", step)
			return Turn[W]{
				Replies:  repliesSince(state, mark),
				NextStep: state.NextStep,
				Ended:    true,
				State:    state,
			}, nil
		}

		kind, ok := e.kinds[current]
		if !ok {
			return e.fault(ctx, threadID, state, CodeNodeNotFound, "unknown step "+current, nil)
		}

		if kind == KindInterrupt {
			cp := store.Checkpoint[State[W]]{State: state, PendingStep: current, Step: step}
			if err := e.store.Save(ctx, threadID, cp); err != nil {
				return e.fault(ctx, threadID, state, CodeStoreError, "save checkpoint", err)
			}
			e.emit(threadID, step, current, emit.MsgSuspend, nil)
			e.cfg.metrics.IncrementSuspends(e.cfg.workflow, current)
			return Turn[W]{
				Replies:  repliesSince(state, mark),
				Pending:  current,
				NextStep: state.NextStep,
				State:    state,
			}, nil
		}

		if ran >= e.cfg.maxSteps {
			return e.fault(ctx, threadID, state, CodeMaxStepsExceeded,
				fmt.Sprintf("exceeded %d steps without reaching an interrupt", e.cfg.maxSteps), nil)
		}
		ran++
		step++

		e.emit(threadID, step, current, emit.MsgStepStart, nil)
		began := time.Now()
		res := runStep(ctx, e.nodes[current], current, state, e.cfg.stepTimeout)
		elapsed := time.Since(began)

		if res.Err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Turn[W]{}, ctxErr
			}
			status := StatusError
			var nodeErr *NodeError
			if errors.As(res.Err, &nodeErr) && nodeErr.Code == CodeStepTimeout {
				status = StatusTimeout
			}
			e.cfg.metrics.RecordStepLatency(e.cfg.workflow, current, elapsed, status)
			e.emit(threadID, step, current, emit.MsgStepFailed, map[string]interface{}{
				"error":    res.Err.Error(),
				"duration": elapsed,
			})
			return e.stepFailed(ctx, threadID, state, current, step, res.Err, rp)
		}

		e.cfg.metrics.RecordStepLatency(e.cfg.workflow, current, elapsed, StatusSuccess)
		e.emit(threadID, step, current, emit.MsgStepEnd, map[string]interface{}{"duration": elapsed})

		if res.Update != nil {
			res.Update.apply(&state, e.merge)
		}

		next, err := e.route(current, state)
		if err != nil {
			return e.fault(ctx, threadID, state, CodeInvalidRoute, err.Error(), nil)
		}
		current = next
	}
}

// route picks the step after a processing step.
func (e *Engine[W]) route(from string, state State[W]) (string, error) {
	if br, ok := e.branches[from]; ok {
		target := br.router.Route(state)
		if !br.allows(target) {
			return "", fmt.Errorf("step %s routed to undeclared target %q", from, target)
		}
		return target, nil
	}
	return e.out[from], nil
}

// stepFailed handles a step error. A resumed thread goes back to its
// interrupt with the state it had on arrival; a fresh session is dropped.
func (e *Engine[W]) stepFailed(ctx context.Context, threadID string, state State[W], stepID string, step int, cause error, rp *resumePoint[W]) (Turn[W], error) {
	reply := model.Assistant(fmt.Sprintf("Sorry, something went wrong while %s: %s", stepID, failureText(cause)))
	e.cfg.logger.Warn("step failed",
		"workflow", e.cfg.workflow, "thread", threadID, "step", stepID, "error", cause)

	if rp != nil {
		restored := rp.snapshot
		restored.Messages = append(restored.Messages, reply)
		cp := store.Checkpoint[State[W]]{State: restored, PendingStep: rp.pending, Step: step}
		if err := e.store.Save(ctx, threadID, cp); err != nil {
			return e.fault(ctx, threadID, restored, CodeStoreError, "save checkpoint", err)
		}
		e.emit(threadID, step, rp.pending, emit.MsgSuspend, map[string]interface{}{"after_failure": stepID})
		e.cfg.metrics.IncrementSuspends(e.cfg.workflow, rp.pending)
		return Turn[W]{
			Replies:  []model.Message{reply},
			Pending:  rp.pending,
			NextStep: restored.NextStep,
			State:    restored,
			Cause:    cause,
		}, nil
	}

	if err := e.store.Clear(context.WithoutCancel(ctx), threadID); err != nil {
		e.cfg.logger.Warn("clear after failure", "thread", threadID, "error", err)
	}
	state.Messages = append(state.Messages, reply)
	return Turn[W]{
		Replies: []model.Message{reply},
		Reset:   true,
		State:   state,
		Cause:   cause,
	}, nil
}

// fault discards the thread and tells the user to start over.
func (e *Engine[W]) fault(ctx context.Context, threadID string, state State[W], code, msg string, cause error) (Turn[W], error) {
	ferr := &EngineError{Message: msg, Code: code, ThreadID: threadID, Cause: cause}

	e.cfg.logger.Warn("engine fault",
		"workflow", e.cfg.workflow, "thread", threadID, "code", code, "error", ferr)
	e.emit(threadID, 0, "", emit.MsgFault, map[string]interface{}{"code": code, "error": ferr.Error()})
	e.cfg.metrics.IncrementFaults(e.cfg.workflow, code)

	if err := e.store.Clear(context.WithoutCancel(ctx), threadID); err != nil {
		e.cfg.logger.Warn("clear after fault", "thread", threadID, "error", err)
	}

	reply := model.Assistant(StartOverMessage)
	state.Messages = append(state.Messages, reply)
	return Turn[W]{
		Replies: []model.Message{reply},
		Reset:   true,
		Fault:   code,
		State:   state,
		Cause:   ferr,
	}, nil
}

func (e *Engine[W]) emit(threadID string, step int, stepID, msg string, meta map[string]interface{}) {
	e.cfg.emitter.Emit(emit.Event{
		ThreadID: threadID,
		Step:     step,
		StepID:   stepID,
		Msg:      msg,
		Time:     time.Now(),
		Meta:     withWorkflow(meta, e.cfg.workflow),
	})
}

func withWorkflow(meta map[string]interface{}, workflow string) map[string]interface{} {
	if meta == nil {
		meta = make(map[string]interface{}, 1)
	}
	meta["workflow"] = workflow
	return meta
}

func repliesSince[W any](state State[W], mark int) []model.Message {
	var out []model.Message
	for _, m := range state.Messages[mark:] {
		if m.Role == model.RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}

// failureText prefers the innermost step message over the wrapped chain.
func failureText(err error) string {
	var nodeErr *NodeError
	if errors.As(err, &nodeErr) && nodeErr.Message != "" {
		return nodeErr.Message
	}
	return err.Error()
}

func errFrozen() error {
	return &EngineError{Message: "workflow topology cannot change after the first run", Code: CodeInvalidGraph}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
