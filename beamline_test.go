package beamline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/beamline"
	"github.com/aretw0/beamline/pkg/config"
	"github.com/aretw0/beamline/pkg/devices"
	"github.com/aretw0/beamline/pkg/dispatch"
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/plan"
	"github.com/aretw0/beamline/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const experiment = `
name: demo
metadata: {operator: ada}
devices:
  - {name: motor, kind: motor}
  - {name: det, kind: gauss, params: {motor: motor}}
plans:
  peak:
    kind: scan
    detectors: [det]
    args: {motor: motor, start: -1, stop: 1, num: 5}
  dark:
    kind: count
    detectors: [det]
    args: {num: 2}
`

func newEngine(t *testing.T) *beamline.Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(experiment), 0o644))
	eng, err := beamline.New(path)
	require.NoError(t, err)
	return eng
}

func TestEngine_RunNamed(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t)
	assert.Equal(t, []string{"dark", "peak"}, eng.PlanNames())

	rec := &dispatch.Recorder{}
	res, err := eng.RunNamed(ctx, "peak", nil, dispatch.Subscriptions{domain.DocAll: {rec.Callback()}})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, res.Status)
	assert.Equal(t, 5, res.NumEvents)
	assert.Equal(t, []any{-1.0, -0.5, 0.0, 0.5, 1.0}, rec.Column("motor"))

	start := rec.Documents()[0].(domain.RunStart)
	assert.Equal(t, "ada", start.Metadata["operator"])
	assert.Equal(t, "demo", start.Metadata["experiment"])

	t.Run("Overrides", func(t *testing.T) {
		res, err := eng.RunNamed(ctx, "dark", map[string]any{"num": 4}, nil)
		require.NoError(t, err)
		assert.Equal(t, 4, res.NumEvents)

		p, err := eng.Plan("dark")
		require.NoError(t, err)
		assert.Equal(t, 2, p.(*plan.Count).Params().Num)
	})

	t.Run("Unknown Plan", func(t *testing.T) {
		_, err := eng.RunNamed(ctx, "nope", nil, nil)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestEngine_RunSpec(t *testing.T) {
	eng := newEngine(t)
	res, err := eng.RunSpec(context.Background(), plan.Spec{
		Kind:      "delta_list_scan",
		Detectors: []string{"det"},
		Args:      map[string]any{"motor": "motor", "points": []any{1, 2}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.NumEvents)
}

func TestEngine_WithRegistry(t *testing.T) {
	reg := registry.NewRegistry()
	m := devices.NewMotor("m")
	require.NoError(t, reg.Register(m))

	eng, err := beamline.NewFromExperiment(nil, beamline.WithRegistry(reg))
	require.NoError(t, err)
	_, err = eng.Run(context.Background(), plan.Messages(domain.Set(m, 3)), nil)
	require.NoError(t, err)
	assert.Equal(t, 3.0, m.Position())
}

func TestNew_InvalidPlan(t *testing.T) {
	exp := &config.Experiment{
		Devices: []devices.Config{{Name: "m", Kind: devices.KindMotor}},
		Plans:   map[string]plan.Spec{"bad": {Kind: "scan", Args: map[string]any{"motor": "m"}}},
	}
	_, err := beamline.NewFromExperiment(exp)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
