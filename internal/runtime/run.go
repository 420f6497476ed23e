package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/plan"
	"golang.org/x/sync/errgroup"
)

// run is the state of one plan execution.
type run struct {
	engine *Engine
	uid    string
	plan   string
	logger *slog.Logger

	groups map[string]*errgroup.Group
	bundle *bundle
	seq    int
}

// bundle collects the readings between a create and its save.
type bundle struct {
	data       map[string]any
	timestamps map[string]time.Time
}

func (r *run) execute(runCtx context.Context, gens *generators, cfg runConfig) (*domain.RunResult, error) {
	e := r.engine
	r.logger = e.logger.With("run_uid", r.uid, "plan", r.plan)
	result := &domain.RunResult{UID: r.uid, PlanName: r.plan, Started: e.clock.Now()}

	r.logger.Info("Run started")
	if e.hooks.OnRunStart != nil {
		e.hooks.OnRunStart(runCtx, &domain.RunEvent{RunUID: r.uid, PlanName: r.plan})
	}

	// Outstanding grouped operations of the body are cancelled with bodyCtx
	// once the body has ended badly.
	bodyCtx, cancelBody := context.WithCancel(runCtx)
	err := r.publish(bodyCtx, domain.RunStart{UID: r.uid, Time: result.Started, PlanName: r.plan, Metadata: cfg.metadata})
	if err == nil && gens.pre != nil {
		err = r.drain(bodyCtx, gens.pre)
	}
	if err == nil {
		err = r.drain(bodyCtx, gens.main)
	}
	status, err := classify(runCtx, err)
	if status != domain.StatusCompleted && status != domain.StatusStopped {
		cancelBody()
	}
	if waitErr := r.settleGroups(); status == domain.StatusCompleted && waitErr != nil {
		status, err = domain.StatusFailed, waitErr
	}
	cancelBody()
	r.bundle = nil

	// Cleanup runs whatever happened to the body, including after an abort.
	cleanupCtx := context.WithoutCancel(runCtx)
	if gens.post != nil {
		postCtx, cancelPost := context.WithCancel(cleanupCtx)
		postErr := r.drain(postCtx, gens.post)
		if postErr != nil {
			cancelPost()
		}
		if waitErr := r.settleGroups(); postErr == nil {
			postErr = waitErr
		}
		cancelPost()
		if postErr != nil && !errors.Is(postErr, domain.ErrStop) {
			r.logger.Error("Post-run hook failed", "err", postErr)
			if status == domain.StatusCompleted || status == domain.StatusStopped {
				status, err = domain.StatusFailed, fmt.Errorf("post-run: %w", postErr)
			}
		}
	}

	result.Status = status
	result.NumEvents = r.seq
	result.Finished = e.clock.Now()
	if err != nil {
		result.Reason = err.Error()
	}

	stop := domain.RunStop{
		UID:        e.newUID(),
		RunUID:     r.uid,
		Time:       result.Finished,
		ExitStatus: status,
		Reason:     result.Reason,
		NumEvents:  r.seq,
	}
	if pubErr := r.publish(cleanupCtx, stop); pubErr != nil && err == nil {
		result.Status, err = domain.StatusFailed, pubErr
		result.Reason = err.Error()
	}

	switch result.Status {
	case domain.StatusFailed:
		r.logger.Error("Run failed", "err", err, "events", result.NumEvents)
	case domain.StatusAborted:
		r.logger.Warn("Run aborted", "reason", result.Reason, "events", result.NumEvents)
	default:
		r.logger.Info("Run finished", "status", result.Status, "events", result.NumEvents, "duration", result.Duration())
	}
	if e.hooks.OnRunEnd != nil {
		e.hooks.OnRunEnd(cleanupCtx, &domain.RunEvent{RunUID: r.uid, PlanName: r.plan, Result: result})
	}
	return result, err
}

// drain feeds every message of gen through dispatch, handing each result back.
func (r *run) drain(ctx context.Context, gen plan.Generator) error {
	var result any
	for {
		msg, ok, err := gen.Next(ctx, result)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if result, err = r.step(ctx, msg); err != nil {
			return err
		}
	}
}

func (r *run) step(ctx context.Context, msg domain.Msg) (any, error) {
	start := r.engine.clock.Now()
	result, err := r.dispatch(ctx, msg)
	elapsed := r.engine.clock.Now().Sub(start)

	r.logger.Debug("Message dispatched", "command", msg.Command, "target", msg.TargetName(), "duration", elapsed, "err", err)
	if h := r.engine.hooks.OnMessage; h != nil {
		h(ctx, &domain.MessageEvent{
			RunUID:   r.uid,
			Command:  msg.Command,
			Target:   msg.TargetName(),
			Duration: elapsed,
			Err:      err,
		})
	}
	return result, err
}

// settleGroups waits for grouped operations nobody waited on.
func (r *run) settleGroups() error {
	var errs []error
	for label, g := range r.groups {
		if err := g.Wait(); err != nil {
			errs = append(errs, fmt.Errorf("group %q: %w", label, err))
		}
	}
	r.groups = nil
	return errors.Join(errs...)
}

func (r *run) publish(ctx context.Context, doc domain.Document) error {
	if err := r.engine.dispatcher.Publish(ctx, doc); err != nil {
		return err
	}
	if h := r.engine.hooks.OnDocument; h != nil {
		h(ctx, doc)
	}
	return nil
}
