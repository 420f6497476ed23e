package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnRunStart(ctx, &domain.RunEvent{RunUID: "r"})
	hooks.OnMessage(ctx, &domain.MessageEvent{Command: domain.CmdSet, Duration: time.Millisecond})
	hooks.OnMessage(ctx, &domain.MessageEvent{Command: domain.CmdSet, Err: errors.New("stuck")})
	hooks.OnDocument(ctx, domain.Event{})
	hooks.OnRunEnd(ctx, &domain.RunEvent{RunUID: "r", Result: &domain.RunResult{Status: domain.StatusFailed}})

	count, err := testutil.GatherAndCount(reg, "beamline_messages_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	families, err := reg.Gather()
	require.NoError(t, err)
	byName := map[string]bool{}
	for _, f := range families {
		byName[f.GetName()] = true
	}
	assert.True(t, byName["beamline_runs_total"])
	assert.True(t, byName["beamline_documents_total"])

	_, err = observability.NewMetrics(reg)
	assert.Error(t, err, "registering twice must fail")
}

func TestCombine(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{OnRunStart: func(context.Context, *domain.RunEvent) { calls = append(calls, "a") }}
	b := domain.LifecycleHooks{
		OnRunStart: func(context.Context, *domain.RunEvent) { calls = append(calls, "b") },
		OnRunEnd:   func(context.Context, *domain.RunEvent) { calls = append(calls, "end") },
	}
	h := observability.Combine(a, domain.LifecycleHooks{}, b)
	h.OnRunStart(context.Background(), &domain.RunEvent{})
	h.OnRunEnd(context.Background(), &domain.RunEvent{})
	assert.Nil(t, h.OnMessage)
	assert.Equal(t, []string{"a", "b", "end"}, calls)
}
