package plan

import (
	"context"
	"errors"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/ports"
)

// Responder supplies the result the engine would have produced for msg.
type Responder func(msg domain.Msg) (any, error)

// Collect expands p into the messages it emits, pre-run and post-run hooks
// included, feeding every message's result back through respond (nil results
// when respond is nil). It is meant for dry runs: nothing is dispatched.
func Collect(ctx context.Context, p Plan, respond Responder) ([]domain.Msg, error) {
	var pre, post Plan
	if h, ok := p.(Hooked); ok {
		pre, post = h.Hooks()
	}

	var out []domain.Msg
	for _, part := range []Plan{pre, p, post} {
		if part == nil {
			continue
		}
		msgs, err := drain(ctx, part, respond)
		out = append(out, msgs...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func drain(ctx context.Context, p Plan, respond Responder) ([]domain.Msg, error) {
	gen, err := p.Generate()
	if err != nil {
		return nil, err
	}
	defer gen.Close()

	var (
		out    []domain.Msg
		result any
	)
	for {
		msg, ok, err := gen.Next(ctx, result)
		if errors.Is(err, domain.ErrStop) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, msg)
		result = nil
		if respond != nil {
			if result, err = respond(msg); err != nil {
				return out, err
			}
		}
	}
}

// Simulate answers messages the way the engine would, synchronously: moves
// and acquisitions are awaited and reads return the device's readings.
// Grouping is ignored.
func Simulate(ctx context.Context) Responder {
	return func(msg domain.Msg) (any, error) {
		switch msg.Command {
		case domain.CmdSet:
			dev, ok := msg.Target.(ports.Movable)
			if !ok {
				return nil, domain.Invalid("target", "%s is not movable", msg.TargetName())
			}
			return await(dev.Set(ctx, msg.Arg(0)))
		case domain.CmdTrigger:
			dev, ok := msg.Target.(ports.Triggerable)
			if !ok {
				return nil, domain.Invalid("target", "%s is not triggerable", msg.TargetName())
			}
			return await(dev.Trigger(ctx))
		case domain.CmdRead:
			dev, ok := msg.Target.(ports.Readable)
			if !ok {
				return nil, domain.Invalid("target", "%s is not readable", msg.TargetName())
			}
			return dev.Read(ctx)
		}
		return nil, nil
	}
}

func await(st ports.Status, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	<-st.Done()
	return st, st.Err()
}
