package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/beamline/internal/runtime"
	"github.com/aretw0/beamline/pkg/devices"
	"github.com/aretw0/beamline/pkg/dispatch"
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_WaitFor(t *testing.T) {
	engine := runtime.NewEngine()
	signal := make(chan struct{})
	const delay = 50 * time.Millisecond
	time.AfterFunc(delay, func() { close(signal) })

	start := time.Now()
	res, err := engine.Run(context.Background(), plan.Messages(domain.WaitFor(signal)), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.GreaterOrEqual(t, time.Since(start), delay)
}

func TestEngine_WaitForAwaitables(t *testing.T) {
	engine := runtime.NewEngine()
	called := false
	awaitables := []any{
		devices.Finished(nil),
		func(ctx context.Context) error { called = true; return nil },
		[]any{devices.Finished(nil), nil},
	}
	for _, a := range awaitables {
		_, err := engine.Run(context.Background(), plan.Messages(domain.WaitFor(a)), nil)
		require.NoError(t, err)
	}
	assert.True(t, called)

	_, err := engine.Run(context.Background(), plan.Messages(domain.WaitFor(42)), nil)
	assert.Error(t, err)

	_, err = engine.Run(context.Background(), plan.Messages(domain.WaitFor(devices.Finished(errors.New("timeout")))), nil)
	assert.Error(t, err)
}

func TestEngine_GroupedSets(t *testing.T) {
	engine := runtime.NewEngine()
	const move = 100 * time.Millisecond
	a := devices.NewMotor("a", devices.WithMoveTime(move))
	b := devices.NewMotor("b", devices.WithMoveTime(move))

	p := plan.Messages(
		domain.Set(a, 1).With(domain.KeyGroup, "g"),
		domain.Set(b, 2).With(domain.KeyGroup, "g"),
		domain.Wait("g"),
	)
	start := time.Now()
	_, err := engine.Run(context.Background(), p, nil)
	require.NoError(t, err)
	elapsed := time.Since(start)

	assert.Equal(t, 1.0, a.Position())
	assert.Equal(t, 2.0, b.Position())
	assert.GreaterOrEqual(t, elapsed, move)
	assert.Less(t, elapsed, 2*move, "grouped moves should overlap")

	t.Run("Ungrouped Sets Block", func(t *testing.T) {
		p := plan.Messages(domain.Set(a, 3), domain.Set(b, 4))
		start := time.Now()
		_, err := engine.Run(context.Background(), p, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 2*move)
	})

	t.Run("Unwaited Group Settles Before Stop", func(t *testing.T) {
		p := plan.Messages(domain.Set(a, 5).With(domain.KeyGroup, "late"))
		_, err := engine.Run(context.Background(), p, nil)
		require.NoError(t, err)
		assert.Equal(t, 5.0, a.Position())
	})
}

func TestEngine_Stop(t *testing.T) {
	engine := runtime.NewEngine()
	rec := &dispatch.Recorder{}
	det := devices.NewConstant("det", 1)
	p := plan.Func("stopper", func(_ context.Context, yield plan.Yield) error {
		for _, m := range []domain.Msg{domain.Create(), domain.Read(det), domain.Save()} {
			if _, err := yield(m); err != nil {
				return err
			}
		}
		return domain.ErrStop
	})

	res, err := engine.Run(context.Background(), p, dispatch.Subscriptions{domain.DocAll: {rec.Callback()}})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStopped, res.Status)
	assert.Equal(t, 1, res.NumEvents)
	stop := rec.Documents()[2].(domain.RunStop)
	assert.Equal(t, domain.StatusStopped, stop.ExitStatus)
}

func TestEngine_Abort(t *testing.T) {
	engine := runtime.NewEngine()
	cleaned := make(chan struct{})
	p := &hookedPlan{Plan: plan.Messages(domain.Sleep(time.Hour))}
	p.PostRun = plan.Func("cleanup", func(ctx context.Context, yield plan.Yield) error {
		// Cleanup still dispatches messages after the abort.
		if _, err := yield(domain.NewMsg(domain.CmdNull, nil)); err != nil {
			return err
		}
		close(cleaned)
		return nil
	})

	go func() {
		assert.Eventually(t, func() bool {
			_, busy := engine.Busy()
			return busy
		}, time.Second, time.Millisecond)
		assert.True(t, engine.Abort("operator"))
	}()

	res, err := engine.Run(context.Background(), p, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Equal(t, domain.StatusAborted, res.Status)
	assert.Contains(t, res.Reason, "operator")

	select {
	case <-cleaned:
	default:
		t.Fatal("post-run hook did not complete")
	}
	assert.False(t, engine.Abort("again"))
}

func TestEngine_ContextCancel(t *testing.T) {
	engine := runtime.NewEngine()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	never := make(chan struct{})
	res, err := engine.Run(ctx, plan.Messages(domain.WaitFor(never)), nil)
	assert.ErrorIs(t, err, domain.ErrCancelled)
	require.NotNil(t, res)
	assert.Equal(t, domain.StatusAborted, res.Status)
}

func TestEngine_SingleRun(t *testing.T) {
	engine := runtime.NewEngine()
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := engine.Run(context.Background(), plan.Messages(domain.WaitFor(release)), nil)
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		_, busy := engine.Busy()
		return busy
	}, time.Second, time.Millisecond)

	_, err := engine.Run(context.Background(), plan.Messages(), nil)
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	close(release)
	wg.Wait()

	_, err = engine.Run(context.Background(), plan.Messages(), nil)
	assert.NoError(t, err)
}

func TestEngine_HooksAndOrdering(t *testing.T) {
	var (
		mu       sync.Mutex
		commands []domain.Command
		starts   int
		ends     []*domain.RunResult
	)
	engine := runtime.NewEngine(runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnRunStart: func(context.Context, *domain.RunEvent) { starts++ },
		OnRunEnd:   func(_ context.Context, ev *domain.RunEvent) { ends = append(ends, ev.Result) },
		OnMessage: func(_ context.Context, ev *domain.MessageEvent) {
			mu.Lock()
			commands = append(commands, ev.Command)
			mu.Unlock()
		},
	}))

	s := plan.NewCount(dets(devices.NewConstant("det", 1)), plan.CountParams{Num: 1})
	s.PreRun = plan.Messages(domain.NewMsg(domain.CmdNull, nil))
	s.PostRun = plan.Messages(domain.Sleep(0))

	_, err := engine.Run(context.Background(), s, nil, runtime.WithMetadata(map[string]any{"sample": "Si"}))
	require.NoError(t, err)

	assert.Equal(t, 1, starts)
	require.Len(t, ends, 1)
	assert.Equal(t, domain.StatusCompleted, ends[0].Status)
	assert.Equal(t, []domain.Command{
		domain.CmdNull,
		domain.CmdCreate, domain.CmdRead, domain.CmdSave,
		domain.CmdSleep,
	}, commands)
}

func TestEngine_Metadata(t *testing.T) {
	engine := runtime.NewEngine(runtime.WithUIDGenerator(func() string { return "fixed" }))
	rec := &dispatch.Recorder{}
	res, err := engine.Run(context.Background(), plan.Messages(), dispatch.Subscriptions{domain.DocStart: {rec.Callback()}},
		runtime.WithMetadata(map[string]any{"sample": "Si"}))
	require.NoError(t, err)
	assert.Equal(t, "fixed", res.UID)

	start := rec.Documents()[0].(domain.RunStart)
	assert.Equal(t, "Si", start.Metadata["sample"])
	assert.Equal(t, "messages", start.PlanName)
}

func TestEngine_AbortBlockingAwaitable(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	tests := []struct {
		name      string
		awaitable any
	}{
		{"Plain Func", func() error { <-release; return nil }},
		{"Channel", (<-chan struct{})(release)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := runtime.NewEngine()
			go func() {
				assert.Eventually(t, func() bool {
					_, busy := engine.Busy()
					return busy
				}, time.Second, time.Millisecond)
				assert.True(t, engine.Abort("operator"))
			}()

			start := time.Now()
			res, err := engine.Run(context.Background(), plan.Messages(domain.WaitFor(tt.awaitable)), nil)
			assert.ErrorIs(t, err, domain.ErrCancelled)
			require.NotNil(t, res)
			assert.Equal(t, domain.StatusAborted, res.Status)
			assert.Less(t, time.Since(start), time.Second)
		})
	}
}

func TestEngine_MessageDurationUsesClock(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var (
		mu        sync.Mutex
		durations = map[domain.Command]time.Duration{}
	)
	engine := runtime.NewEngine(runtime.WithClock(clock), runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnMessage: func(_ context.Context, ev *domain.MessageEvent) {
			mu.Lock()
			durations[ev.Command] += ev.Duration
			mu.Unlock()
		},
	}))

	_, err := engine.Run(context.Background(), plan.Messages(domain.Sleep(time.Hour), domain.NewMsg(domain.CmdNull, nil)), nil)
	require.NoError(t, err)

	assert.Equal(t, time.Hour, durations[domain.CmdSleep])
	assert.Zero(t, durations[domain.CmdNull])
}
