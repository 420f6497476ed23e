package runner_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/beamline"
	"github.com/aretw0/beamline/pkg/adapters/memory"
	redisadapter "github.com/aretw0/beamline/pkg/adapters/redis"
	"github.com/aretw0/beamline/pkg/config"
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/plan"
	"github.com/aretw0/beamline/pkg/runner"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const experiment = `
name: bench
devices:
  - {name: motor, kind: motor}
  - {name: det, kind: gauss, params: {motor: motor}}
plans:
  peak:
    kind: scan
    detectors: [det]
    args: {motor: motor, start: 0, stop: 2, num: 3}
`

func newEngine(t *testing.T) *beamline.Engine {
	t.Helper()
	exp, err := config.Parse([]byte(experiment))
	require.NoError(t, err)
	eng, err := beamline.NewFromExperiment(exp)
	require.NoError(t, err)
	return eng
}

func TestRunner_RecordsDocuments(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	r := runner.NewRunner(newEngine(t), runner.WithStore(store))

	res, err := r.RunNamed(ctx, "peak", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Status)

	uids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{res.UID}, uids)

	records, err := store.Load(ctx, res.UID)
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, domain.DocStart, records[0].Type)
	assert.Equal(t, domain.DocStop, records[4].Type)

	doc, err := records[4].Decode()
	require.NoError(t, err)
	assert.Equal(t, 3, doc.(domain.RunStop).NumEvents)
}

func TestRunner_Table(t *testing.T) {
	var out bytes.Buffer
	r := runner.NewRunner(newEngine(t), runner.WithTable(&out, "motor"))

	_, err := r.RunSpec(context.Background(), plan.Spec{
		Kind:      "count",
		Detectors: []string{"det"},
		Args:      map[string]any{"num": 2},
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "motor")
}

func TestRunner_Interrupt(t *testing.T) {
	interrupts := make(chan struct{})
	eng := newEngine(t)
	r := runner.NewRunner(eng, runner.WithInterruptSource(interrupts))

	slow := plan.Func("slow", func(ctx context.Context, yield plan.Yield) error {
		_, err := yield(domain.Sleep(10 * time.Second))
		return err
	})

	go func() {
		for {
			if _, busy := eng.Busy(); busy {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		close(interrupts)
	}()

	res, err := r.Run(context.Background(), slow)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCancelled)
	require.NotNil(t, res)
	assert.Equal(t, domain.StatusAborted, res.Status)
}

func TestRunner_InterruptBeforeRun(t *testing.T) {
	interrupts := make(chan struct{})
	close(interrupts)
	eng := newEngine(t)
	r := runner.NewRunner(eng, runner.WithInterruptSource(interrupts))

	slow := plan.Func("slow", func(ctx context.Context, yield plan.Yield) error {
		_, err := yield(domain.Sleep(10 * time.Second))
		return err
	})

	start := time.Now()
	res, err := r.Run(context.Background(), slow)
	assert.ErrorIs(t, err, domain.ErrCancelled)
	require.NotNil(t, res)
	assert.Equal(t, domain.StatusAborted, res.Status)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunner_Lock(t *testing.T) {
	s := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := redisadapter.NewLocker(client, "beamline:")

	ctx := context.Background()
	r := runner.NewRunner(newEngine(t), runner.WithLocker(locker, "", time.Minute))
	assert.Equal(t, "bench", r.LockKey)

	_, err := r.RunNamed(ctx, "peak", nil)
	require.NoError(t, err)
	assert.Empty(t, s.Keys(), "lock must be released after the run")

	t.Run("Held Elsewhere", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, "bench", time.Minute)
		require.NoError(t, err)
		defer func() { _ = unlock(ctx) }()

		short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		_, err = r.RunNamed(short, "peak", nil)
		assert.ErrorIs(t, err, redisadapter.ErrLockAcquire)
	})
}
