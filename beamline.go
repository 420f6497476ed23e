package beamline

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/aretw0/beamline/internal/logging"
	"github.com/aretw0/beamline/internal/runtime"
	"github.com/aretw0/beamline/pkg/config"
	"github.com/aretw0/beamline/pkg/dispatch"
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/plan"
	"github.com/aretw0/beamline/pkg/registry"
)

// Clock is the engine's time source.
type Clock = runtime.Clock

// Engine is the high-level entry point for the library. It binds an
// experiment (devices and named plans) to the plan interpreter.
type Engine struct {
	runtime    *runtime.Engine
	devices    *registry.Registry
	experiment *config.Experiment
	plans      map[string]plan.Settable
	dispatcher *dispatch.Dispatcher
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	clock      Clock
	Name       string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithRegistry injects a device registry, bypassing the experiment's device list.
func WithRegistry(r *registry.Registry) Option {
	return func(e *Engine) {
		e.devices = r
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithDispatcher shares a dispatcher holding persistent subscriptions.
func WithDispatcher(d *dispatch.Dispatcher) Option {
	return func(e *Engine) {
		e.dispatcher = d
	}
}

// New loads the experiment file at path and builds its devices and plans.
func New(path string, opts ...Option) (*Engine, error) {
	exp, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return NewFromExperiment(exp, opts...)
}

// NewFromExperiment builds an engine from an already loaded experiment.
// A nil experiment yields an engine without named plans, which is useful with WithRegistry.
func NewFromExperiment(exp *config.Experiment, opts ...Option) (*Engine, error) {
	if exp == nil {
		exp = &config.Experiment{}
	}
	eng := &Engine{experiment: exp, Name: exp.Name}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.devices == nil {
		reg, err := registry.FromConfig(exp.Devices)
		if err != nil {
			return nil, err
		}
		eng.devices = reg
	}

	eng.plans = make(map[string]plan.Settable, len(exp.Plans))
	for name, spec := range exp.Plans {
		p, err := plan.Build(spec, eng.devices)
		if err != nil {
			return nil, fmt.Errorf("plan %q: %w", name, err)
		}
		eng.plans[name] = p
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("experiment", eng.Name)
	}

	runtimeOpts := []runtime.Option{
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	if eng.clock != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithClock(eng.clock))
	}
	if eng.dispatcher != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithDispatcher(eng.dispatcher))
	}
	eng.runtime = runtime.NewEngine(runtimeOpts...)
	eng.dispatcher = eng.runtime.Dispatcher()
	return eng, nil
}

// Run executes p with the per-run subscriptions subs.
// See the runtime documentation for the result and error contract.
func (e *Engine) Run(ctx context.Context, p plan.Plan, subs dispatch.Subscriptions) (*domain.RunResult, error) {
	md := maps.Clone(e.experiment.Metadata)
	if md == nil {
		md = make(map[string]any)
	}
	if e.Name != "" {
		md["experiment"] = e.Name
	}
	return e.runtime.Run(ctx, p, subs, runtime.WithMetadata(md))
}

// RunNamed executes one of the experiment's plans. overrides apply to this run only.
func (e *Engine) RunNamed(ctx context.Context, name string, overrides map[string]any, subs dispatch.Subscriptions) (*domain.RunResult, error) {
	p, err := e.Plan(name)
	if err != nil {
		return nil, err
	}
	var run plan.Plan = p
	if len(overrides) > 0 {
		if run, err = p.With(overrides); err != nil {
			return nil, err
		}
	}
	return e.Run(ctx, run, subs)
}

// RunSpec builds an ad-hoc plan and executes it.
func (e *Engine) RunSpec(ctx context.Context, spec plan.Spec, subs dispatch.Subscriptions) (*domain.RunResult, error) {
	p, err := plan.Build(spec, e.devices)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, p, subs)
}

// Plan returns a named plan. Changing its parameters with Set affects later runs.
func (e *Engine) Plan(name string) (plan.Settable, error) {
	p, ok := e.plans[name]
	if !ok {
		return nil, domain.Invalid("plan", "unknown plan %q", name)
	}
	return p, nil
}

// PlanNames lists the experiment's plans.
func (e *Engine) PlanNames() []string {
	return e.experiment.PlanNames()
}

// Devices returns the device registry.
func (e *Engine) Devices() *registry.Registry {
	return e.devices
}

// Experiment returns the loaded experiment.
func (e *Engine) Experiment() *config.Experiment {
	return e.experiment
}

// Dispatcher returns the dispatcher for persistent subscriptions.
func (e *Engine) Dispatcher() *dispatch.Dispatcher {
	return e.dispatcher
}

// Abort cancels the active run. It reports whether a run was active.
func (e *Engine) Abort(reason string) bool {
	return e.runtime.Abort(reason)
}

// Busy reports the active run, if any.
func (e *Engine) Busy() (string, bool) {
	return e.runtime.Busy()
}

// Logger returns the engine logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}
