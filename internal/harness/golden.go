package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/framegraph/internal/engine"
	"github.com/roach88/framegraph/internal/ir"
)

// FrameSnapshot captures the visible output of a scenario run. Digests and
// program hashes are left out so a golden file only changes when what is
// drawn changes.
type FrameSnapshot struct {
	ScenarioName string
	Frames       []FrameSummary
}

func (s *FrameSnapshot) toCanonicalMap() map[string]any {
	frames := make([]any, len(s.Frames))
	for i, f := range s.Frames {
		ops := make([]any, len(f.Ops))
		for j, op := range f.Ops {
			ops[j] = opSnapshot(op)
		}
		frames[i] = map[string]any{
			"frame":   int64(f.Frame),
			"time_ms": f.TimeMs,
			"ops":     ops,
		}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"frames":        frames,
	}
}

func opSnapshot(op engine.DrawOp) map[string]any {
	m := map[string]any{
		"block":    op.Block,
		"instance": op.Instance,
		"count":    op.Count,
		"position": op.Position,
		"color":    op.Color,
		"scale":    op.Scale,
	}
	if op.Shape.Topology != "" {
		m["topology"] = op.Shape.Topology
	}
	if len(op.Shape.PerElement) > 0 {
		m["per_element"] = op.Shape.PerElement
	}
	if len(op.Size) > 0 {
		m["size"] = op.Size
	}
	return m
}

// RunWithGolden executes a scenario and compares its frames against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// Snapshot returns the canonical JSON golden files hold for result.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := FrameSnapshot{ScenarioName: scenarioName, Frames: result.Frames}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// AssertGolden compares an existing result's frames against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
