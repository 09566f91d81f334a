package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framegraph/internal/engine"
)

func intp(n int) *int { return &n }

func dotOp(x, y float32) engine.DrawOp {
	return engine.DrawOp{
		Block:          "render",
		Instance:       "dots",
		Count:          2,
		Position:       []float32{x, y, x + 1, y},
		PositionStride: 2,
		Color:          []uint8{10, 20, 30, 255, 0, 0, 0, 255},
		Scale:          1.5,
	}
}

func syntheticResult(positions ...[2]float32) *Result {
	r := NewResult()
	for i, p := range positions {
		r.Frames = append(r.Frames, FrameSummary{
			Frame:  uint64(i + 1),
			TimeMs: float64(i) * 16,
			Ops:    []engine.DrawOp{dotOp(p[0], p[1])},
		})
	}
	r.State["count"] = []float64{3}
	return r
}

func TestEvaluateAssertionsPassing(t *testing.T) {
	r := syntheticResult([2]float32{0, 0}, [2]float32{0.1, 0}, [2]float32{0.2, 0})
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertOpCount, Count: intp(1)},
		{Type: AssertElementCount, Frame: 2, Count: intp(2)},
		{Type: AssertPosition, Frame: 1, Element: 1, Expect: []float64{1, 0}},
		{Type: AssertPosition, Element: 0, Expect: []float64{0.2, 0}, Tolerance: 1e-6},
		{Type: AssertColor, Element: 0, Expect: []float64{10, 20, 30, 255}},
		{Type: AssertScale, Expect: []float64{1.5}},
		{Type: AssertState, State: "count", Expect: []float64{3}},
		{Type: AssertContinuous, MaxStep: 0.11},
	}, nil)
	assert.Empty(t, errs)
}

func TestEvaluateAssertionsFailing(t *testing.T) {
	r := syntheticResult([2]float32{0, 0}, [2]float32{2, 0})

	tests := []struct {
		name string
		a    Assertion
		want string
	}{
		{"op count", Assertion{Type: AssertOpCount, Count: intp(2)}, "Expected: 2 ops"},
		{"element count", Assertion{Type: AssertElementCount, Count: intp(3)}, "Actual: 2 elements"},
		{"position", Assertion{Type: AssertPosition, Frame: 1, Element: 0, Expect: []float64{1, 1}}, "Assertion failed: position (frame 1)"},
		{"position arity", Assertion{Type: AssertPosition, Element: 0, Expect: []float64{2}}, "position"},
		{"element range", Assertion{Type: AssertPosition, Element: 5, Expect: []float64{0, 0}}, "element 5 of 2"},
		{"op range", Assertion{Type: AssertScale, Op: 3, Expect: []float64{1}}, "op 3"},
		{"frame range", Assertion{Type: AssertScale, Frame: 9, Expect: []float64{1}}, "2 frames executed"},
		{"color", Assertion{Type: AssertColor, Element: 1, Expect: []float64{255, 0, 0, 255}}, "[0 0 0 255]"},
		{"scale", Assertion{Type: AssertScale, Expect: []float64{1}}, "Actual: 1.5"},
		{"state value", Assertion{Type: AssertState, State: "count", Expect: []float64{4}}, "[3]"},
		{"state missing", Assertion{Type: AssertState, State: "nope", Expect: []float64{1}}, "state not found"},
		{"continuous", Assertion{Type: AssertContinuous, MaxStep: 0.5}, "moved 2"},
		{"deterministic without store", Assertion{Type: AssertDeterministic}, "a trace store"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(r, []Assertion{tt.a}, nil)
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
		})
	}
}

func TestContinuousComparesCommonPrefix(t *testing.T) {
	r := syntheticResult([2]float32{0, 0}, [2]float32{0, 0})
	grown := r.Frames[1].Ops[0]
	grown.Count = 3
	grown.Position = append(grown.Position, 50, 50)
	r.Frames[1].Ops[0] = grown

	errs := EvaluateAssertions(r, []Assertion{{Type: AssertContinuous, MaxStep: 0.01}}, nil)
	assert.Empty(t, errs)
}

func TestAssertionErrorFormat(t *testing.T) {
	err := &AssertionError{Type: AssertScale, Frame: 4, Expected: "[1]", Actual: "2"}
	assert.Equal(t, "Assertion failed: scale (frame 4)\n  Expected: [1]\n  Actual: 2\n", err.Error())

	err = &AssertionError{Type: AssertState, Expected: "x", Actual: "y"}
	assert.Equal(t, "Assertion failed: state\n  Expected: x\n  Actual: y\n", err.Error())
}
