package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/beamline"
	"github.com/aretw0/beamline/internal/logging"
	"github.com/aretw0/beamline/pkg/dispatch"
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/plan"
	"github.com/aretw0/beamline/pkg/ports"
)

// Runner wraps an Engine with the host concerns of a run: recording documents,
// holding the beamline lock, printing progress and reacting to interrupts.
type Runner struct {
	Engine *beamline.Engine

	// Store receives every published document. If nil, nothing is recorded.
	Store ports.DocumentStore

	// Locker, when set, serializes runs across processes sharing LockKey.
	Locker  ports.DistributedLocker
	LockKey string
	LockTTL time.Duration

	// Logger is used for internal logging. If nil, a no-op logger is used.
	Logger *slog.Logger

	// Output receives a live table of Fields when non-nil.
	Output io.Writer
	Fields []string

	// Signals aborts the active run on OS interrupts.
	Signals bool

	interrupts <-chan struct{}
	extra      dispatch.Subscriptions
}

// NewRunner creates a Runner for engine.
func NewRunner(engine *beamline.Engine, opts ...Option) *Runner {
	r := &Runner{
		Engine:  engine,
		LockTTL: DefaultLockTTL,
		Logger:  logging.NewNop(),
		extra:   dispatch.Subscriptions{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.LockKey == "" {
		r.LockKey = engine.Name
	}
	return r
}

// Run executes p.
func (r *Runner) Run(ctx context.Context, p plan.Plan) (*domain.RunResult, error) {
	return r.execute(ctx, func(ctx context.Context, subs dispatch.Subscriptions) (*domain.RunResult, error) {
		return r.Engine.Run(ctx, p, subs)
	})
}

// RunNamed executes one of the experiment's plans with one-shot overrides.
func (r *Runner) RunNamed(ctx context.Context, name string, overrides map[string]any) (*domain.RunResult, error) {
	return r.execute(ctx, func(ctx context.Context, subs dispatch.Subscriptions) (*domain.RunResult, error) {
		return r.Engine.RunNamed(ctx, name, overrides, subs)
	})
}

// RunSpec builds and executes an ad-hoc plan.
func (r *Runner) RunSpec(ctx context.Context, spec plan.Spec) (*domain.RunResult, error) {
	return r.execute(ctx, func(ctx context.Context, subs dispatch.Subscriptions) (*domain.RunResult, error) {
		return r.Engine.RunSpec(ctx, spec, subs)
	})
}

type runFunc func(ctx context.Context, subs dispatch.Subscriptions) (*domain.RunResult, error)

func (r *Runner) execute(ctx context.Context, fn runFunc) (*domain.RunResult, error) {
	if r.Locker != nil {
		r.Logger.Debug("Acquiring run lock", "key", r.LockKey)
		unlock, err := r.Locker.Lock(ctx, r.LockKey, r.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to lock %q: %w", r.LockKey, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				r.Logger.Warn("Failed to release run lock", "key", r.LockKey, "err", err)
			}
		}()
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	if r.Signals {
		signals := NewSignalManager()
		defer signals.Stop()
		wg.Add(1)
		go func() {
			defer wg.Done()
			signals.AbortOnSignal(done, func(reason string) { r.abort(done, reason) })
		}()
	}
	defer func() {
		close(done)
		wg.Wait()
	}()
	if r.interrupts != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case <-r.interrupts:
				r.abort(done, "interrupt requested")
			case <-done:
			}
		}()
	}

	return fn(ctx, r.subscriptions())
}

// abort keeps requesting an abort until the run registers with the engine,
// so an interrupt raised before Engine.Run starts is not lost.
func (r *Runner) abort(done <-chan struct{}, reason string) {
	ticker := time.NewTicker(abortRetryInterval)
	defer ticker.Stop()
	for !r.Engine.Abort(reason) {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
	r.Logger.Info("Run abort requested", "reason", reason)
}

func (r *Runner) subscriptions() dispatch.Subscriptions {
	subs := dispatch.Subscriptions{}
	for t, cbs := range r.extra {
		subs[t] = append(subs[t], cbs...)
	}
	if r.Store != nil {
		subs[domain.DocAll] = append(subs[domain.DocAll], Record(r.Store))
	}
	if r.Output != nil {
		fields := r.Fields
		if len(fields) == 0 {
			fields = r.Engine.Devices().Names()
		}
		subs[domain.DocAll] = append(subs[domain.DocAll], dispatch.Table(r.Output, fields...))
	}
	return subs
}

// Record returns a callback appending every document to store under its run UID.
func Record(store ports.DocumentStore) dispatch.Callback {
	return func(ctx context.Context, doc domain.Document) error {
		var runUID string
		switch d := doc.(type) {
		case domain.RunStart:
			runUID = d.UID
		case domain.Event:
			runUID = d.RunUID
		case domain.RunStop:
			runUID = d.RunUID
		default:
			return nil
		}
		if err := store.Append(ctx, runUID, doc); err != nil {
			return fmt.Errorf("failed to record %s document: %w", doc.DocType(), err)
		}
		return nil
	}
}
