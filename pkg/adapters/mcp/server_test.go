package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aretw0/beamline"
	"github.com/aretw0/beamline/pkg/adapters/memory"
	"github.com/aretw0/beamline/pkg/config"
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/registry"
	"github.com/aretw0/beamline/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
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

func newServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	exp, err := config.Parse([]byte(experiment))
	require.NoError(t, err)
	eng, err := beamline.NewFromExperiment(exp)
	require.NoError(t, err)
	store := memory.NewStore()
	return NewServer(eng, runner.NewRunner(eng, runner.WithStore(store)), WithStore(store)), store
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestServer_Devices(t *testing.T) {
	s, _ := newServer(t)
	ctx := context.Background()

	res, err := s.handleListDevices(ctx, mcp.CallToolRequest{})
	require.NoError(t, err)
	var infos []registry.Info
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "motor", infos[1].Name)

	read, err := s.handleReadDevice(ctx, mcp.CallToolRequest{}, map[string]any{"name": "motor"})
	require.NoError(t, err)
	assert.Equal(t, "motor", read.Device)
	assert.Contains(t, read.Readings, "motor")

	_, err = s.handleReadDevice(ctx, mcp.CallToolRequest{}, map[string]any{"name": "nope"})
	assert.ErrorIs(t, err, domain.ErrDeviceNotFound)
}

func TestServer_RunPlan(t *testing.T) {
	s, store := newServer(t)
	ctx := context.Background()

	resp, err := s.handleRunPlan(ctx, mcp.CallToolRequest{}, map[string]any{
		"plan":      "peak",
		"overrides": `{"num": 2}`,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Result)
	assert.Equal(t, domain.StatusCompleted, resp.Result.Status)
	assert.Equal(t, 2, resp.Result.NumEvents)

	records, err := store.Load(ctx, resp.Result.UID)
	require.NoError(t, err)
	assert.Len(t, records, 4)

	t.Run("Invalid Overrides", func(t *testing.T) {
		_, err := s.handleRunPlan(ctx, mcp.CallToolRequest{}, map[string]any{"plan": "peak", "overrides": "{"})
		assert.Error(t, err)
	})

	t.Run("Unknown Plan", func(t *testing.T) {
		_, err := s.handleRunPlan(ctx, mcp.CallToolRequest{}, map[string]any{"plan": "nope"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestServer_RunSpec(t *testing.T) {
	s, _ := newServer(t)
	resp, err := s.handleRunSpec(context.Background(), mcp.CallToolRequest{}, map[string]any{
		"kind":      "list_scan",
		"detectors": `["det"]`,
		"args":      `{"motor": "motor", "points": [1, 4, 9]}`,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Result)
	assert.Equal(t, 3, resp.Result.NumEvents)
	assert.Equal(t, "list_scan", resp.Result.PlanName)
}

func TestServer_AbortIdle(t *testing.T) {
	s, _ := newServer(t)
	res, err := s.handleAbort(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.Equal(t, "no run in progress", textOf(t, res))
}

func TestServer_GetRun(t *testing.T) {
	s, _ := newServer(t)
	ctx := context.Background()

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"uid": "missing"}
	res, err := s.handleGetRun(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
