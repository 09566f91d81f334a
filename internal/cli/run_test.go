package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTextOutput(t *testing.T) {
	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), "fixture:grid", "-n", "3", "--step", "16", "--session", "s1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Session s1", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "program "))
	assert.True(t, strings.HasPrefix(lines[2], "frame     1  t=      0.00ms  ops=1  elements=4  "))
	assert.True(t, strings.HasPrefix(lines[4], "frame     3  t=     32.00ms  ops=1  elements=4  "))
}

func TestRunJSONIsDeterministic(t *testing.T) {
	run := func() RunResult {
		out, err := execute(NewRunCommand(&RootOptions{Format: "json"}), "fixture:orbit", "-n", "25", "--step", "100", "--session", "orbit")
		require.NoError(t, err)
		var r RunResult
		resp := decodeResponse(t, out, &r)
		assert.Equal(t, "orbit", resp.SessionID)
		return r
	}
	a, b := run(), run()

	require.Len(t, a.Frames, 25)
	assert.Equal(t, a.Frames, b.Frames)
	assert.Equal(t, []float64{2}, a.State["laps"], "wraps at 1000ms and 2000ms")
	for _, f := range a.Frames {
		assert.Len(t, f.Digest, 64)
		assert.Equal(t, 6, f.Elements)
	}
}

func TestRunInputs(t *testing.T) {
	out, err := execute(NewRunCommand(&RootOptions{Format: "json"}), pulsePatch, "-n", "2", "--input", "level=0.3")
	require.NoError(t, err)
	var r RunResult
	decodeResponse(t, out, &r)
	assert.Equal(t, []float64{2}, r.State["ticks"])
}

func TestRunSwap(t *testing.T) {
	out, err := execute(NewRunCommand(&RootOptions{Format: "json"}), "fixture:grid", "-n", "4", "--swap", "3:fixture:grid9")
	require.NoError(t, err)
	var r RunResult
	decodeResponse(t, out, &r)

	require.Len(t, r.Frames, 4)
	assert.Equal(t, 4, r.Frames[1].Elements)
	assert.Equal(t, 9, r.Frames[2].Elements)
	assert.NotEqual(t, r.Frames[1].Program, r.Frames[2].Program)
	assert.Equal(t, uint64(3), r.Frames[2].Frame)
}

func TestRunRecordsTrace(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trace.db")
	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), "fixture:grid", "-n", "5", "--trace", db, "--session", "traced")
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded 5 frame(s) to "+db)
}

func TestRunFlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero frames", []string{"fixture:grid", "-n", "0"}, "frames must be at least 1"},
		{"bad input", []string{"fixture:grid", "--input", "level"}, "invalid --input"},
		{"bad input value", []string{"fixture:grid", "--input", "level=x"}, "invalid --input"},
		{"swap on first frame", []string{"fixture:grid", "-n", "3", "--swap", "1:fixture:grid9"}, "outside 2..3"},
		{"bad swap", []string{"fixture:grid", "--swap", "grid9"}, "invalid --swap"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(NewRunCommand(&RootOptions{Format: "text"}), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunCompileError(t *testing.T) {
	out, err := execute(NewRunCommand(&RootOptions{Format: "text"}), badRefPatch)
	require.Error(t, err)
	assert.Contains(t, out, "✗ Compilation failed")
}

func TestParseInputs(t *testing.T) {
	in, err := parseInputs([]string{"level=0.5", "pos=1, 2"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]float64{"level": {0.5}, "pos": {1, 2}}, in)
}

func TestParseSwaps(t *testing.T) {
	swaps, err := parseSwaps([]string{"2:a.cue", "5:fixture:grid9"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []swapAt{{frame: 2, patch: "a.cue"}, {frame: 5, patch: "fixture:grid9"}}, swaps)

	_, err = parseSwaps([]string{"6:a.cue"}, 5)
	require.Error(t, err)
}
