// Package harness runs patches through scripted frame sequences and checks
// what they draw.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: grid_basic
//	description: "2x2 grid renders four red circles"
//	patch: ../patches/grid.cue     # or fixture: grid
//	frames:
//	  count: 60
//	  step_ms: 16
//	inputs:
//	  - frame: 10
//	    channel: level
//	    value: [0.5]
//	swaps:
//	  - frame: 30
//	    fixture: grid9
//	assertions:
//	  - type: element_count
//	    count: 4
//	  - type: position
//	    frame: 1
//	    element: 3
//	    expect: [1, 1]
//	  - type: deterministic
//
// Frames count from 1. An assertion frame of 0 selects the last frame.
//
// # Assertion Types
//
//   - op_count: number of draw ops in a frame
//   - element_count: element count of one op
//   - position, color, scale: values of one op element, within tolerance
//   - state: persistent state after the last frame
//   - continuous: bounded per-frame movement across hot-swaps
//   - deterministic: a replay records identical frame digests
//
// # Determinism
//
// Every run uses a fixed session id and an in-memory trace store, and frame
// times come from the scenario, never the wall clock. Identical scenarios
// therefore record identical traces, which is what golden files and the
// deterministic assertion rely on.
package harness
