package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/db47h/hwsched"
	"github.com/db47h/hwsched/internal/sysdesc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const console = `
name: console
frames: 2
normalize: true
units:
  - name: cpu
    kind: cpu
    frequency: 4MHz
    program: [2, 1, 3]
    irq: ppu
    sync: [ppu]
  - name: ppu
    kind: video
    frequency: 8MHz
    cycle: 114
    lines: 20
    sync: [cpu]
`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, log bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&log)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), log.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	name = filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(name, []byte(content), 0o644))
	return name
}

func TestRun(t *testing.T) {
	cfg := writeFile(t, "console.yaml", console)
	snap := filepath.Join(t.TempDir(), "console.snap")

	out, log, err := execute(t, "run", "-c", cfg, "--save", snap, "--metrics", "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, out, "frame 2\n")
	assert.Contains(t, out, "UNIT")
	assert.Contains(t, out, "8MHz")
	assert.Contains(t, out, "hwsched_switches_total")
	assert.Contains(t, log, "snapshot saved")
	assert.Contains(t, log, "thread created")

	out, _, err = execute(t, "run", "-c", cfg, "--load", snap, "-n", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "frame 5\n")
	assert.NotContains(t, out, "hwsched_switches_total")
}

func TestRun_errors(t *testing.T) {
	cfg := writeFile(t, "console.yaml", console)
	junk := writeFile(t, "junk.snap", "not a snapshot at all")

	_, _, err := execute(t, "run", "-c", cfg, "--load", junk)
	assert.ErrorIs(t, err, errNotSnapshot)

	_, _, err = execute(t, "run", "-c", cfg, "--log-level", "loud")
	assert.ErrorContains(t, err, "invalid log level")

	_, _, err = execute(t, "run")
	assert.Error(t, err, "missing --config")
}

func TestValidate(t *testing.T) {
	cfg := writeFile(t, "console.yaml", console)
	out, _, err := execute(t, "validate", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "2 units, 2 frames")

	bad := writeFile(t, "bad.yaml", "units:\n  - name: cpu\n    kind: gpu\n")
	_, _, err = execute(t, "validate", "-c", bad)
	assert.ErrorContains(t, err, `unknown kind "gpu"`)
	assert.ErrorContains(t, err, "no video unit")
}

func powerOn(t *testing.T, d *sysdesc.Description) *sysdesc.System {
	t.Helper()
	sys, err := sysdesc.Build(d, hwsched.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	t.Cleanup(sys.Shutdown)
	sys.Power()
	return sys
}

func TestLoadSnapshot_truncated(t *testing.T) {
	d, err := sysdesc.Parse([]byte(console))
	require.NoError(t, err)
	snap := filepath.Join(t.TempDir(), "console.snap")

	sys1 := powerOn(t, d)
	require.NoError(t, sys1.RunFrame())
	require.NoError(t, saveSnapshot(snap, sys1))
	fi, err := os.Stat(snap)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(snap, fi.Size()-10))

	sys2 := powerOn(t, d)
	for i := 0; i < 2; i++ {
		require.NoError(t, sys2.RunFrame())
	}
	sys2.Scheduler().Quiesce()
	st := sys2.Status()

	assert.Error(t, loadSnapshot(snap, sys2))
	assert.Equal(t, st, sys2.Status())
	assert.Equal(t, uint64(2), sys2.Frames())

	// the rolled back system still runs.
	require.NoError(t, sys2.RunFrame())
	assert.Equal(t, uint64(3), sys2.Frames())
}
