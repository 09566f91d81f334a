package harness

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/framegraph/internal/engine"
	"github.com/roach88/framegraph/internal/store"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // assertion type
	Frame    uint64 // frame the assertion looked at, 0 if none
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Frame > 0 {
		fmt.Fprintf(&buf, " (frame %d)", e.Frame)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s\n", e.Expected, e.Actual)
	return buf.String()
}

// AssertionContext carries what assertions beyond the frames need.
type AssertionContext struct {
	Ctx       context.Context
	Store     *store.Store
	Scenario  *Scenario
	SessionID string
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertState:
		return assertState(result, a)
	case AssertContinuous:
		return assertContinuous(result, a)
	case AssertDeterministic:
		return assertDeterministic(result, actx)
	}

	f, ok := result.frame(a.Frame)
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("frame %d", a.Frame), Actual: fmt.Sprintf("%d frames executed", len(result.Frames))}
	}
	if a.Type == AssertOpCount {
		if len(f.Ops) != *a.Count {
			return &AssertionError{Type: a.Type, Frame: f.Frame, Expected: fmt.Sprintf("%d ops", *a.Count), Actual: fmt.Sprintf("%d ops", len(f.Ops))}
		}
		return nil
	}
	if a.Op < 0 || a.Op >= len(f.Ops) {
		return &AssertionError{Type: a.Type, Frame: f.Frame, Expected: fmt.Sprintf("op %d", a.Op), Actual: fmt.Sprintf("%d ops", len(f.Ops))}
	}
	op := f.Ops[a.Op]

	switch a.Type {
	case AssertElementCount:
		if op.Count != *a.Count {
			return &AssertionError{Type: a.Type, Frame: f.Frame, Expected: fmt.Sprintf("%d elements", *a.Count), Actual: fmt.Sprintf("%d elements", op.Count)}
		}
	case AssertPosition:
		got, err := element(op.Position, op.PositionStride, a.Element, op.Count)
		if err != nil {
			return &AssertionError{Type: a.Type, Frame: f.Frame, Expected: fmt.Sprint(a.Expect), Actual: err.Error()}
		}
		if !closeTo(got, a.Expect, a.Tolerance) {
			return &AssertionError{Type: a.Type, Frame: f.Frame, Expected: fmt.Sprint(a.Expect), Actual: fmt.Sprint(got)}
		}
	case AssertColor:
		if a.Element < 0 || a.Element >= op.Count {
			return &AssertionError{Type: a.Type, Frame: f.Frame, Expected: fmt.Sprintf("element %d", a.Element), Actual: fmt.Sprintf("%d elements", op.Count)}
		}
		rgba := op.Color[a.Element*4 : a.Element*4+4]
		got := make([]float64, 4)
		for i, c := range rgba {
			got[i] = float64(c)
		}
		if !closeTo(got, a.Expect, a.Tolerance) {
			return &AssertionError{Type: a.Type, Frame: f.Frame, Expected: fmt.Sprint(a.Expect), Actual: fmt.Sprint(got)}
		}
	case AssertScale:
		if !closeTo([]float64{op.Scale}, a.Expect, a.Tolerance) {
			return &AssertionError{Type: a.Type, Frame: f.Frame, Expected: fmt.Sprint(a.Expect), Actual: fmt.Sprint(op.Scale)}
		}
	}
	return nil
}

// element returns element i of a strided buffer as float64.
func element(buf []float32, stride, i, count int) ([]float64, error) {
	if i < 0 || i >= count {
		return nil, fmt.Errorf("element %d of %d", i, count)
	}
	out := make([]float64, stride)
	for c := range stride {
		out[c] = float64(buf[i*stride+c])
	}
	return out, nil
}

func closeTo(got, want []float64, tol float64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			return false
		}
	}
	return true
}

func assertState(result *Result, a Assertion) error {
	got, ok := result.State[a.State]
	if !ok {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("state %q = %v", a.State, a.Expect), Actual: "state not found"}
	}
	if !closeTo(got, a.Expect, a.Tolerance) {
		return &AssertionError{Type: a.Type, Expected: fmt.Sprintf("state %q = %v", a.State, a.Expect), Actual: fmt.Sprint(got)}
	}
	return nil
}

// assertContinuous checks that no element of op a.Op moves further than
// MaxStep between consecutive frames. Elements are matched by index; frames
// where the element count changes compare the common prefix.
func assertContinuous(result *Result, a Assertion) error {
	var prev *engine.DrawOp
	for _, f := range result.Frames {
		if a.Op >= len(f.Ops) {
			prev = nil
			continue
		}
		op := f.Ops[a.Op]
		if prev != nil && prev.PositionStride == op.PositionStride {
			n := min(prev.Count, op.Count)
			for i := range n {
				d := 0.0
				for c := range op.PositionStride {
					delta := float64(op.Position[i*op.PositionStride+c] - prev.Position[i*prev.PositionStride+c])
					d += delta * delta
				}
				if d = math.Sqrt(d); d > a.MaxStep {
					return &AssertionError{
						Type:     a.Type,
						Frame:    f.Frame,
						Expected: fmt.Sprintf("element %d moves at most %g", i, a.MaxStep),
						Actual:   fmt.Sprintf("moved %g", d),
					}
				}
			}
		}
		prev = &op
	}
	return nil
}

// assertDeterministic replays the scenario under a second session id and
// compares frame digests in the trace store.
func assertDeterministic(result *Result, actx *AssertionContext) error {
	if actx == nil || actx.Store == nil || actx.Scenario == nil {
		return &AssertionError{Type: AssertDeterministic, Expected: "a trace store", Actual: "none"}
	}
	replayID := actx.SessionID + "/replay"
	if _, err := play(actx.Ctx, actx.Scenario, actx.Store, replayID); err != nil {
		return &AssertionError{Type: AssertDeterministic, Expected: "replay succeeds", Actual: err.Error()}
	}
	c, err := actx.Store.Compare(actx.Ctx, actx.SessionID, replayID)
	if err != nil {
		return &AssertionError{Type: AssertDeterministic, Expected: "comparable traces", Actual: err.Error()}
	}
	if !c.Identical() {
		return &AssertionError{
			Type:     AssertDeterministic,
			Frame:    c.FirstDivergence,
			Expected: fmt.Sprintf("%d identical frames", len(result.Frames)),
			Actual:   fmt.Sprintf("%d divergent, %d/%d unmatched", c.Divergent, c.OnlyA, c.OnlyB),
		}
	}
	return nil
}
