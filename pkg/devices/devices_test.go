package devices_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/aretw0/beamline/pkg/devices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMotor_Set(t *testing.T) {
	ctx := context.Background()

	t.Run("Immediate", func(t *testing.T) {
		m := devices.NewMotor("m")
		st, err := m.Set(ctx, 2)
		require.NoError(t, err)
		<-st.Done()
		assert.NoError(t, st.Err())
		assert.Equal(t, 2.0, m.Position())

		readings, err := m.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2.0, readings["m"].Value)
	})

	t.Run("Move Time", func(t *testing.T) {
		m := devices.NewMotor("m", devices.WithMoveTime(20*time.Millisecond))
		st, err := m.Set(ctx, "1.5")
		require.NoError(t, err)
		assert.Equal(t, 0.0, m.Position())

		select {
		case <-st.Done():
		case <-time.After(time.Second):
			t.Fatal("move never completed")
		}
		assert.Equal(t, 1.5, m.Position())
	})

	t.Run("Limits", func(t *testing.T) {
		m := devices.NewMotor("m", devices.WithLimits(-1, 1))
		_, err := m.Set(ctx, 3)
		assert.Error(t, err)
		assert.Equal(t, 0.0, m.Position())
	})

	t.Run("Bad Setpoint", func(t *testing.T) {
		_, err := devices.NewMotor("m").Set(ctx, "far")
		assert.Error(t, err)
	})
}

func TestSynGauss(t *testing.T) {
	ctx := context.Background()
	m := devices.NewMotor("m")
	det := devices.NewSynGauss("det", m, 0, 1, 1)

	readings, err := det.Read(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, readings["det"].Value, 1e-12)

	_, err = m.Set(ctx, 1)
	require.NoError(t, err)

	// Read reports the last acquisition until the next trigger.
	readings, err = det.Read(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, readings["det"].Value, 1e-12)

	st, err := det.Trigger(ctx)
	require.NoError(t, err)
	<-st.Done()
	readings, err = det.Read(ctx)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(-0.5), readings["det"].Value, 1e-12)
}

func TestStatus_FinishOnce(t *testing.T) {
	st := devices.NewStatus()
	assert.NoError(t, st.Err())
	st.Finish(assert.AnError)
	st.Finish(nil)
	<-st.Done()
	assert.ErrorIs(t, st.Err(), assert.AnError)
}
