package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/framegraph/internal/testutil"
)

// Scenario drives a patch through a fixed sequence of frames and checks the
// frames it produces.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Patch is a CUE patch file or directory, relative to the scenario file.
	// Exactly one of Patch and Fixture is set.
	Patch string `yaml:"patch,omitempty"`

	// Fixture names a built-in patch (see testutil.FixtureNames).
	Fixture string `yaml:"fixture,omitempty"`

	// SessionID fixes the session identifier for deterministic traces.
	// Defaults to DefaultSessionID.
	SessionID string `yaml:"session_id,omitempty"`

	// Frames says when frames are executed.
	Frames FrameSpec `yaml:"frames"`

	// Inputs set external channels before a given frame executes.
	Inputs []InputStep `yaml:"inputs,omitempty"`

	// Swaps hot-swap the session onto another patch before a given frame.
	Swaps []SwapStep `yaml:"swaps,omitempty"`

	// Assertions validate the executed frames and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// DefaultSessionID is the session id of scenarios that do not set one.
const DefaultSessionID = "scenario-session"

// FrameSpec lists frame times, either explicitly or as Count evenly spaced
// frames from StartMs.
type FrameSpec struct {
	Times   []float64 `yaml:"times,omitempty"`
	StartMs float64   `yaml:"start_ms,omitempty"`
	StepMs  float64   `yaml:"step_ms,omitempty"`
	Count   int       `yaml:"count,omitempty"`
}

// InputStep sets an external channel before Frame executes. Frames count
// from 1.
type InputStep struct {
	Frame   int       `yaml:"frame"`
	Channel string    `yaml:"channel"`
	Value   []float64 `yaml:"value"`
}

// SwapStep hot-swaps to another patch before Frame executes.
type SwapStep struct {
	Frame   int    `yaml:"frame"`
	Patch   string `yaml:"patch,omitempty"`
	Fixture string `yaml:"fixture,omitempty"`
}

// Assertion validates one aspect of the run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Frame selects the frame (from 1). 0 means the last frame.
	Frame int `yaml:"frame,omitempty"`

	// Op indexes the draw op within the frame.
	Op int `yaml:"op,omitempty"`

	// Element indexes the element within the op.
	Element int `yaml:"element,omitempty"`

	// Count is the expected number (op_count, element_count).
	Count *int `yaml:"count,omitempty"`

	// Expect holds expected values (position, color, scale, state).
	Expect []float64 `yaml:"expect,omitempty"`

	// Tolerance is the allowed absolute error for float comparisons.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// State names a persistent state id (state).
	State string `yaml:"state,omitempty"`

	// MaxStep bounds how far any element may move between consecutive
	// frames (continuous).
	MaxStep float64 `yaml:"max_step,omitempty"`
}

// Assertion type constants.
const (
	AssertOpCount       = "op_count"
	AssertElementCount  = "element_count"
	AssertPosition      = "position"
	AssertColor         = "color"
	AssertScale         = "scale"
	AssertState         = "state"
	AssertContinuous    = "continuous"
	AssertDeterministic = "deterministic"
)

// PatchNotFoundError is returned when a scenario references a patch file that
// does not exist.
type PatchNotFoundError struct {
	Scenario     string
	PatchPath    string
	ResolvedPath string
}

func (e *PatchNotFoundError) Error() string {
	return fmt.Sprintf("scenario %q references patch %q which does not exist (resolved to: %s)",
		e.Scenario, e.PatchPath, e.ResolvedPath)
}

// LoadScenario reads and parses a scenario YAML file. Patch paths are
// resolved relative to the file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses scenario YAML, resolving patch paths against baseDir.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	scenario.Patch = resolve(baseDir, scenario.Patch)
	for i := range scenario.Swaps {
		scenario.Swaps[i].Patch = resolve(baseDir, scenario.Swaps[i].Patch)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Times returns the frame times the scenario executes.
func (s *Scenario) Times() []float64 {
	if len(s.Frames.Times) > 0 {
		return s.Frames.Times
	}
	clock := testutil.NewFrameClock(s.Frames.StartMs, s.Frames.StepMs)
	times := make([]float64, s.Frames.Count)
	for i := range times {
		times[i] = clock.Next()
	}
	return times
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if err := validateSource(s.Name, "", s.Patch, s.Fixture); err != nil {
		return err
	}
	if len(s.Frames.Times) > 0 && s.Frames.Count > 0 {
		return fmt.Errorf("frames: set either times or count, not both")
	}
	n := len(s.Frames.Times) + s.Frames.Count
	if n == 0 {
		return fmt.Errorf("frames: at least one frame is required")
	}
	if s.Frames.StepMs < 0 {
		return fmt.Errorf("frames: step_ms must be non-negative")
	}
	for i, in := range s.Inputs {
		if in.Frame < 1 || in.Frame > n {
			return fmt.Errorf("inputs[%d]: frame %d outside 1..%d", i, in.Frame, n)
		}
		if in.Channel == "" {
			return fmt.Errorf("inputs[%d]: channel is required", i)
		}
	}
	for i, sw := range s.Swaps {
		if sw.Frame < 2 || sw.Frame > n {
			return fmt.Errorf("swaps[%d]: frame %d outside 2..%d", i, sw.Frame, n)
		}
		if err := validateSource(s.Name, fmt.Sprintf("swaps[%d]: ", i), sw.Patch, sw.Fixture); err != nil {
			return err
		}
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("at least one assertion is required")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, n); err != nil {
			return err
		}
	}
	return nil
}

func validateSource(scenario, prefix, patch, fixture string) error {
	switch {
	case patch == "" && fixture == "":
		return fmt.Errorf("%seither patch or fixture is required", prefix)
	case patch != "" && fixture != "":
		return fmt.Errorf("%sset either patch or fixture, not both", prefix)
	case fixture != "":
		if _, _, ok := testutil.Fixture(fixture); !ok {
			return fmt.Errorf("%sunknown fixture %q (known: %v)", prefix, fixture, testutil.FixtureNames())
		}
	default:
		if _, err := os.Stat(patch); os.IsNotExist(err) {
			return &PatchNotFoundError{Scenario: scenario, PatchPath: filepath.Base(patch), ResolvedPath: patch}
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion, frames int) error {
	if a.Frame < 0 || a.Frame > frames {
		return fmt.Errorf("assertions[%d]: frame %d outside 0..%d", index, a.Frame, frames)
	}
	switch a.Type {
	case AssertOpCount, AssertElementCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
	case AssertPosition, AssertColor, AssertScale:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
	case AssertState:
		if a.State == "" || len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: state and expect are required for state", index)
		}
	case AssertContinuous:
		if a.MaxStep <= 0 {
			return fmt.Errorf("assertions[%d]: max_step must be positive for continuous", index)
		}
	case AssertDeterministic:
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
