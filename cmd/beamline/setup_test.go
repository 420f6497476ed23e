package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

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

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{"num=5", "points=[1, 2.5]", "snake=true", "name=x=y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"num":    5,
		"points": []any{1, 2.5},
		"snake":  true,
		"name":   "x=y",
	}, got)

	_, err = parseAssignments([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseAssignments([]string{"=1"})
	assert.Error(t, err)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(experiment), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", path))
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, `Experiment "bench" is valid!`)
	assert.Contains(t, out, "(2 devices, 1 plans)")
}

func TestDevicesCommand(t *testing.T) {
	out, err := execute(t, "devices")
	require.NoError(t, err)
	assert.Contains(t, out, "det")
	assert.Contains(t, out, "read,set")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "beamline version")
}
