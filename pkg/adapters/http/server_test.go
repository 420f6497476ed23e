package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/beamline"
	"github.com/aretw0/beamline/pkg/adapters/memory"
	"github.com/aretw0/beamline/pkg/config"
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/observability"
	"github.com/aretw0/beamline/pkg/registry"
	"github.com/aretw0/beamline/pkg/runner"
	"github.com/prometheus/client_golang/prometheus"
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

type fixture struct {
	server *Server
	store  *memory.Store
	ts     *httptest.Server
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	exp, err := config.Parse([]byte(experiment))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	eng, err := beamline.NewFromExperiment(exp, beamline.WithLifecycleHooks(metrics.Hooks()))
	require.NoError(t, err)

	store := memory.NewStore()
	r := runner.NewRunner(eng, runner.WithStore(store))
	opts = append([]Option{WithStore(store), WithMetrics(reg)}, opts...)
	srv := NewServer(eng, r, opts...)
	ts := httptest.NewServer(enableCORS(srv))
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return &fixture{server: srv, store: store, ts: ts}
}

func (f *fixture) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.ts.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestServer_Introspection(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	info := decode[map[string]string](t, f.get(t, "/info"))
	assert.Equal(t, beamline.Version, info["version"])

	devices := decode[[]registry.Info](t, f.get(t, "/devices"))
	require.Len(t, devices, 2)
	assert.Equal(t, "det", devices[0].Name)
	assert.Contains(t, devices[1].Capabilities, "set")

	reading := decode[map[string]domain.Reading](t, f.get(t, "/devices/motor"))
	assert.Contains(t, reading, "motor")

	assert.Equal(t, http.StatusNotFound, f.get(t, "/devices/nope").StatusCode)

	plans := decode[map[string][]string](t, f.get(t, "/plans"))
	assert.Equal(t, []string{"peak"}, plans["plans"])
	assert.Contains(t, plans["kinds"], "adaptive")
}

func TestServer_Runs(t *testing.T) {
	f := newFixture(t)

	resp := f.post(t, "/runs", RunRequest{Plan: "peak", Overrides: map[string]any{"num": 4}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	run := decode[RunResponse](t, resp)
	require.NotNil(t, run.Result)
	assert.Equal(t, domain.StatusCompleted, run.Result.Status)
	assert.Equal(t, 4, run.Result.NumEvents)
	assert.Empty(t, run.Error)

	uids := decode[[]string](t, f.get(t, "/runs"))
	assert.Equal(t, []string{run.Result.UID}, uids)

	records := decode[[]domain.Record](t, f.get(t, "/runs/"+run.Result.UID))
	assert.Len(t, records, 6)

	req, err := http.NewRequest(http.MethodDelete, f.ts.URL+"/runs/"+run.Result.UID, nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/runs/"+run.Result.UID).StatusCode)

	metrics := f.get(t, "/metrics")
	body := new(bytes.Buffer)
	_, err = body.ReadFrom(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), `beamline_runs_total{status="completed"} 1`)
}

func TestServer_RunErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"Neither", RunRequest{}, http.StatusBadRequest},
		{"Unknown Plan", RunRequest{Plan: "nope"}, http.StatusBadRequest},
		{"Invalid Override", RunRequest{Plan: "peak", Overrides: map[string]any{"num": 0}}, http.StatusBadRequest},
		{"Unknown Kind", map[string]any{"spec": map[string]any{"kind": "spiral"}}, http.StatusBadRequest},
		{"Malformed", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.post(t, "/runs", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestServer_Abort(t *testing.T) {
	f := newFixture(t)
	resp := f.post(t, "/abort", nil)
	assert.Equal(t, map[string]bool{"aborted": false}, decode[map[string]bool](t, resp))

	active := decode[map[string]any](t, f.get(t, "/runs/active"))
	assert.Equal(t, false, active["busy"])
}

func TestServer_NoStore(t *testing.T) {
	f := newFixture(t, WithStore(nil))
	assert.Equal(t, http.StatusNotImplemented, f.get(t, "/runs").StatusCode)
}

func TestSubscribeEvents(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.ts.URL+"/events?types=stop", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: ping", lines.Text())

	require.Eventually(t, func() bool { return f.server.Streams.Len() == 1 }, time.Second, 10*time.Millisecond)
	f.post(t, "/runs", RunRequest{Plan: "peak"})

	var got []string
	for lines.Scan() {
		line := lines.Text()
		if strings.HasPrefix(line, "event: ") {
			got = append(got, strings.TrimPrefix(line, "event: "))
		}
		if strings.HasPrefix(line, "data: {") {
			var rec domain.Record
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &rec))
			assert.Equal(t, domain.DocStop, rec.Type)
			break
		}
	}
	assert.Equal(t, []string{"stop"}, got)
}
