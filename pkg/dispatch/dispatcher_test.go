package dispatch_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/beamline/pkg/dispatch"
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_Order(t *testing.T) {
	ctx := context.Background()
	d := dispatch.New()

	var calls []string
	record := func(name string) dispatch.Callback {
		return func(context.Context, domain.Document) error {
			calls = append(calls, name)
			return nil
		}
	}
	d.Subscribe(domain.DocEvent, record("first"))
	d.Subscribe(domain.DocAll, record("all"))
	d.Subscribe(domain.DocEvent, record("second"))
	d.Subscribe(domain.DocStop, record("stop"))

	require.NoError(t, d.Publish(ctx, domain.Event{Seq: 1}))
	assert.Equal(t, []string{"first", "all", "second"}, calls)

	calls = nil
	require.NoError(t, d.Publish(ctx, domain.RunStop{}))
	assert.Equal(t, []string{"all", "stop"}, calls)
}

func TestDispatcher_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	d := dispatch.New()
	n := 0
	tok := d.Subscribe(domain.DocEvent, func(context.Context, domain.Document) error {
		n++
		return nil
	})
	require.NoError(t, d.Publish(ctx, domain.Event{}))
	d.Unsubscribe(tok)
	d.Unsubscribe(tok)
	require.NoError(t, d.Publish(ctx, domain.Event{}))
	assert.Equal(t, 1, n)
	assert.Zero(t, d.Len())
}

func TestDispatcher_FailureStopsBatch(t *testing.T) {
	ctx := context.Background()
	d := dispatch.New()
	boom := errors.New("boom")

	var calls []string
	d.Subscribe(domain.DocEvent, func(context.Context, domain.Document) error {
		calls = append(calls, "ok")
		return nil
	})
	d.Subscribe(domain.DocEvent, func(context.Context, domain.Document) error {
		calls = append(calls, "bad")
		return boom
	})
	d.Subscribe(domain.DocEvent, func(context.Context, domain.Document) error {
		calls = append(calls, "never")
		return nil
	})

	err := d.Publish(ctx, domain.Event{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCallbackFailure)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrDeviceFailure)

	var cbErr *domain.CallbackError
	require.True(t, errors.As(err, &cbErr))
	assert.Equal(t, 1, cbErr.Index)
	assert.Equal(t, domain.DocEvent, cbErr.DocType)
	assert.Equal(t, []string{"ok", "bad"}, calls)
}

func TestDispatcher_SubscribeAll(t *testing.T) {
	ctx := context.Background()
	d := dispatch.New()
	persistent := &dispatch.Recorder{}
	d.Subscribe(domain.DocAll, persistent.Callback())

	once := &dispatch.Recorder{}
	teardown := d.SubscribeAll(dispatch.Subscriptions{
		domain.DocEvent: {once.Callback()},
		domain.DocStop:  {once.Callback()},
	})
	assert.Equal(t, 3, d.Len())

	require.NoError(t, d.Publish(ctx, domain.RunStart{UID: "r"}))
	require.NoError(t, d.Publish(ctx, domain.Event{Seq: 1, Data: map[string]any{"det": 1.0}}))
	require.NoError(t, d.Publish(ctx, domain.RunStop{RunUID: "r"}))
	teardown()

	assert.Equal(t, 1, d.Len())
	assert.Equal(t, []domain.DocType{domain.DocEvent, domain.DocStop}, once.Types())
	assert.Equal(t, []any{1.0}, persistent.Column("det"))
	assert.Len(t, persistent.Documents(), 3)
}

func TestDispatcher_ConcurrentSubscribe(t *testing.T) {
	ctx := context.Background()
	d := dispatch.New()

	var wg sync.WaitGroup
	d.Subscribe(domain.DocEvent, func(context.Context, domain.Document) error {
		// Subscribing from inside a publish must not deadlock or affect this batch.
		d.Subscribe(domain.DocEvent, func(context.Context, domain.Document) error { return nil })
		return nil
	})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, d.Publish(ctx, domain.Event{}))
		}()
	}
	wg.Wait()
	assert.Equal(t, 9, d.Len())
}

func TestTable(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	cb := dispatch.Table(&buf, "motor", "det")

	require.NoError(t, cb(ctx, domain.RunStart{UID: "0123456789"}))
	require.NoError(t, cb(ctx, domain.Event{Seq: 1, Data: map[string]any{"motor": 0.5, "det": 1}}))
	require.NoError(t, cb(ctx, domain.RunStop{RunUID: "0123456789", ExitStatus: domain.StatusCompleted, NumEvents: 1}))

	out := buf.String()
	assert.Contains(t, out, "motor")
	assert.Contains(t, out, "0.5")
	assert.Contains(t, out, "run 01234567 completed after 1 events")
}
