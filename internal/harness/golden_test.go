package harness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGridGolden(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/grid_basic.yaml")
	require.NoError(t, err)
	require.NoError(t, RunWithGolden(t, s))
}

func TestFrameSnapshotOmitsDigests(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/grid_basic.yaml")
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)

	snap := FrameSnapshot{ScenarioName: s.Name, Frames: result.Frames}
	m := snap.toCanonicalMap()
	frames := m["frames"].([]any)
	require.Len(t, frames, 2)
	frame := frames[0].(map[string]any)
	require.NotContains(t, frame, "program")
	op := frame["ops"].([]any)[0].(map[string]any)
	require.Equal(t, "circle", op["topology"])
	require.NotContains(t, op, "params")
}
