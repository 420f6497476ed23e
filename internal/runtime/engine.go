package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/beamline/internal/logging"
	"github.com/aretw0/beamline/pkg/dispatch"
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/plan"
	"github.com/google/uuid"
)

// Engine interprets plans against devices, one run at a time.
type Engine struct {
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	clock      Clock
	hooks      domain.LifecycleHooks
	newUID     func() string

	mu     sync.Mutex
	active *activeRun
}

type activeRun struct {
	uid    string
	plan   string
	cancel context.CancelCauseFunc
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithDispatcher shares a dispatcher holding persistent subscriptions.
func WithDispatcher(d *dispatch.Dispatcher) Option {
	return func(e *Engine) {
		e.dispatcher = d
	}
}

// WithUIDGenerator replaces the generator of run and document identifiers.
func WithUIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newUID = fn
	}
}

// NewEngine creates an engine with its own dispatcher unless one is given.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger: logging.NewNop(),
		clock:  SystemClock(),
		newUID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.dispatcher == nil {
		e.dispatcher = dispatch.New()
	}
	return e
}

// Dispatcher returns the dispatcher used for persistent subscriptions.
func (e *Engine) Dispatcher() *dispatch.Dispatcher {
	return e.dispatcher
}

// Busy reports whether a run is in progress, and which one.
func (e *Engine) Busy() (runUID string, busy bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return "", false
	}
	return e.active.uid, true
}

// Abort cancels the active run, if any. The run still executes its post-run
// hook and finishes with status aborted. It reports whether a run was active.
func (e *Engine) Abort(reason string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return false
	}
	if reason == "" {
		reason = "abort requested"
	}
	e.logger.Warn("Aborting run", "run_uid", e.active.uid, "reason", reason)
	e.active.cancel(fmt.Errorf("%w: %s", domain.ErrCancelled, reason))
	return true
}

// RunOption tweaks a single run.
type RunOption func(*runConfig)

type runConfig struct {
	metadata map[string]any
}

// WithMetadata attaches metadata to the run start document.
func WithMetadata(md map[string]any) RunOption {
	return func(c *runConfig) {
		c.metadata = md
	}
}

// Run executes p to completion. subs are subscribed for this run only, on top
// of the dispatcher's persistent subscriptions.
//
// Plan parameters are validated before anything happens: a validation error is
// returned with a nil result and no document is published. Otherwise the result
// is always non-nil; the error is nil for completed and stopped runs, wraps
// domain.ErrCancelled for aborted runs and holds the failure for failed ones.
func (e *Engine) Run(ctx context.Context, p plan.Plan, subs dispatch.Subscriptions, opts ...RunOption) (*domain.RunResult, error) {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	gens, err := generateAll(p)
	if err != nil {
		return nil, err
	}
	defer gens.close()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	name := plan.NameOf(p)
	r := &run{
		engine: e,
		uid:    e.newUID(),
		plan:   name,
		logger: e.logger,
	}
	if err := e.acquire(r, cancel); err != nil {
		return nil, err
	}
	defer e.release()

	unsubscribe := e.dispatcher.SubscribeAll(subs)
	defer unsubscribe()

	return r.execute(runCtx, gens, cfg)
}

func (e *Engine) acquire(r *run, cancel context.CancelCauseFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active != nil {
		return fmt.Errorf("%w: %s", domain.ErrRunInProgress, e.active.uid)
	}
	e.active = &activeRun{uid: r.uid, plan: r.plan, cancel: cancel}
	return nil
}

func (e *Engine) release() {
	e.mu.Lock()
	e.active = nil
	e.mu.Unlock()
}

type generators struct {
	pre, main, post plan.Generator
}

// generateAll validates the main plan and its hooks up front.
func generateAll(p plan.Plan) (*generators, error) {
	gens := &generators{}
	var err error
	if gens.main, err = p.Generate(); err != nil {
		return nil, err
	}
	if h, ok := p.(plan.Hooked); ok {
		pre, post := h.Hooks()
		if pre != nil {
			if gens.pre, err = pre.Generate(); err != nil {
				gens.close()
				return nil, fmt.Errorf("pre-run: %w", err)
			}
		}
		if post != nil {
			if gens.post, err = post.Generate(); err != nil {
				gens.close()
				return nil, fmt.Errorf("post-run: %w", err)
			}
		}
	}
	return gens, nil
}

func (g *generators) close() {
	for _, gen := range []plan.Generator{g.pre, g.main, g.post} {
		if gen != nil {
			gen.Close()
		}
	}
}

// classify maps the outcome of a run to its terminal status.
func classify(runCtx context.Context, err error) (domain.RunStatus, error) {
	switch {
	case runCtx.Err() != nil:
		cause := context.Cause(runCtx)
		if errors.Is(cause, domain.ErrCancelled) {
			return domain.StatusAborted, cause
		}
		return domain.StatusAborted, fmt.Errorf("%w: %w", domain.ErrCancelled, cause)
	case err == nil:
		return domain.StatusCompleted, nil
	case errors.Is(err, domain.ErrStop):
		return domain.StatusStopped, nil
	default:
		return domain.StatusFailed, err
	}
}
