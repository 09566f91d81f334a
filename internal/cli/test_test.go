package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommandRunsScenarios(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), scenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ grid_basic (2 frames)")
	assert.Contains(t, out, "✓ orbit_laps (41 frames)")
	assert.Contains(t, out, "Test Summary: 4 passed, 0 failed, 4 total")
}

func TestTestCommandFilterJSON(t *testing.T) {
	out, err := execute(NewTestCommand(&RootOptions{Format: "json"}), scenarios, "--filter", "grid*")
	require.NoError(t, err)

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, result.Total)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "grid_basic", result.Scenarios[0].Name)
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	golden := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(golden, "grid_basic.golden"), []byte("{}"), 0o644))

	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), scenarios, "--filter", "grid_basic", "--golden", golden)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "do not match golden file")
}

func TestTestCommandUpdate(t *testing.T) {
	golden := filepath.Join(t.TempDir(), "golden")

	_, err := execute(NewTestCommand(&RootOptions{Format: "text"}), scenarios, "--filter", "grid_basic", "--golden", golden, "--update")
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(golden, "grid_basic.golden"))
	require.NoError(t, err)
	committed, err := os.ReadFile("../harness/testdata/golden/grid_basic.golden")
	require.NoError(t, err)
	assert.Equal(t, string(committed), string(written))

	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), scenarios, "--filter", "grid_basic", "--golden", golden)
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fail.yaml"), []byte(`
name: fail
fixture: grid
frames:
  count: 1
assertions:
  - type: element_count
    count: 7
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("name: [\n"), 0o644))

	out, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ fail")
	assert.Contains(t, out, "✗ broken.yml")
	assert.Contains(t, out, "0 passed, 2 failed, 2 total")
}

func TestTestCommandMissingDirectory(t *testing.T) {
	_, err := execute(NewTestCommand(&RootOptions{Format: "text"}), "no/such/dir")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFindScenarioFilesFilter(t *testing.T) {
	files, err := findScenarioFiles(scenarios, "*_grid")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(scenarios, "hot_swap_grid.yaml")}, files)
}
