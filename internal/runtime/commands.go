package runtime

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/ports"
	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"
)

// dispatch executes one message and returns the value handed back to the plan.
func (r *run) dispatch(ctx context.Context, msg domain.Msg) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch msg.Command {
	case domain.CmdSet:
		return r.set(ctx, msg)
	case domain.CmdTrigger:
		return r.trigger(ctx, msg)
	case domain.CmdRead:
		return r.read(ctx, msg)
	case domain.CmdCreate:
		return nil, r.create()
	case domain.CmdSave:
		return r.save(ctx)
	case domain.CmdSleep:
		return nil, r.sleep(ctx, msg)
	case domain.CmdWaitFor:
		return nil, r.waitFor(ctx, msg.Arg(0))
	case domain.CmdWait:
		return nil, r.wait(msg)
	case domain.CmdNull:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, msg.Command)
}

func deviceErr(msg domain.Msg, err error) error {
	return &domain.DeviceError{Device: msg.TargetName(), Op: msg.Command, Err: err}
}

func (r *run) set(ctx context.Context, msg domain.Msg) (any, error) {
	mv, ok := msg.Target.(ports.Movable)
	if !ok {
		return nil, deviceErr(msg, fmt.Errorf("target cannot be set"))
	}
	if len(msg.Args) == 0 {
		return nil, deviceErr(msg, fmt.Errorf("no value to set"))
	}
	st, err := mv.Set(ctx, msg.Arg(0))
	if err != nil {
		return nil, deviceErr(msg, err)
	}
	return st, r.complete(ctx, msg, st)
}

func (r *run) trigger(ctx context.Context, msg domain.Msg) (any, error) {
	tr, ok := msg.Target.(ports.Triggerable)
	if !ok {
		return nil, deviceErr(msg, fmt.Errorf("target cannot be triggered"))
	}
	st, err := tr.Trigger(ctx)
	if err != nil {
		return nil, deviceErr(msg, err)
	}
	return st, r.complete(ctx, msg, st)
}

// complete awaits st inline, or hands it to the message's group for a later wait.
func (r *run) complete(ctx context.Context, msg domain.Msg, st ports.Status) error {
	label, grouped := msg.Group()
	if !grouped {
		return r.await(ctx, msg, st)
	}
	if r.groups == nil {
		r.groups = make(map[string]*errgroup.Group)
	}
	g, ok := r.groups[label]
	if !ok {
		g = &errgroup.Group{}
		r.groups[label] = g
	}
	g.Go(func() error { return r.await(ctx, msg, st) })
	return nil
}

// await blocks until st is done, then lets the device settle.
func (r *run) await(ctx context.Context, msg domain.Msg, st ports.Status) error {
	if st != nil {
		select {
		case <-st.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := st.Err(); err != nil {
			return deviceErr(msg, err)
		}
	}
	if s, ok := msg.Target.(ports.Settler); ok {
		if err := s.Settle(ctx); err != nil {
			return deviceErr(msg, err)
		}
	}
	return nil
}

func (r *run) wait(msg domain.Msg) error {
	label, _ := msg.Arg(0).(string)
	g, ok := r.groups[label]
	if !ok {
		return nil
	}
	delete(r.groups, label)
	return g.Wait()
}

func (r *run) read(ctx context.Context, msg domain.Msg) (any, error) {
	rd, ok := msg.Target.(ports.Readable)
	if !ok {
		return nil, deviceErr(msg, fmt.Errorf("target cannot be read"))
	}
	readings, err := rd.Read(ctx)
	if err != nil {
		return nil, deviceErr(msg, err)
	}
	if b := r.bundle; b != nil {
		for k, v := range readings {
			b.data[k] = v.Value
			b.timestamps[k] = v.Timestamp
		}
	}
	return readings, nil
}

func (r *run) create() error {
	if r.bundle != nil {
		return fmt.Errorf("%w: create while an event is already open", domain.ErrIllegalSequence)
	}
	r.bundle = &bundle{data: make(map[string]any), timestamps: make(map[string]time.Time)}
	return nil
}

func (r *run) save(ctx context.Context) (any, error) {
	b := r.bundle
	if b == nil {
		return nil, fmt.Errorf("%w: save without create", domain.ErrIllegalSequence)
	}
	r.bundle = nil
	r.seq++
	ev := domain.Event{
		UID:        r.engine.newUID(),
		RunUID:     r.uid,
		Seq:        r.seq,
		Time:       r.engine.clock.Now(),
		Data:       b.data,
		Timestamps: b.timestamps,
	}
	if err := r.publish(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func (r *run) sleep(ctx context.Context, msg domain.Msg) error {
	d, err := toDuration(msg.Arg(0))
	if err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-r.engine.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// toDuration accepts a time.Duration, a duration string or seconds as a number.
func toDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, fmt.Errorf("sleep: %w", err)
		}
		return parsed, nil
	}
	secs, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("sleep: unsupported duration %v", v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// waitFor blocks until the awaitable resolves. Supported awaitables are
// channels (resolved on receive or close), ports.Status, func(context.Context) error,
// func() error and slices of any of these.
func (r *run) waitFor(ctx context.Context, awaitable any) error {
	switch a := awaitable.(type) {
	case nil:
		return nil
	case ports.Status:
		select {
		case <-a.Done():
			return a.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	case func(context.Context) error:
		return a(ctx)
	case func() error:
		done := make(chan error, 1)
		go func() { done <- a() }()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case []any:
		for _, each := range a {
			if err := r.waitFor(ctx, each); err != nil {
				return err
			}
		}
		return nil
	}

	v := reflect.ValueOf(awaitable)
	if v.Kind() == reflect.Chan && v.Type().ChanDir()&reflect.RecvDir != 0 {
		chosen, _, _ := reflect.Select([]reflect.SelectCase{
			{Dir: reflect.SelectRecv, Chan: v},
			{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
		})
		if chosen == 1 {
			return ctx.Err()
		}
		return nil
	}
	return fmt.Errorf("wait_for: unsupported awaitable %T", awaitable)
}
