package continuity

import (
	"math"

	"github.com/roach88/framegraph/internal/ir"
)

// Target is the session-owned state of one continuity-managed buffer.
type Target struct {
	Key    string
	Role   ir.Role
	Policy ir.ContinuityPolicy
	Stride int
	Count  int

	// Output is the last stabilized buffer (Count*Stride values).
	Output []float32
	// Offset is the gauge buffer; allocated only when HasGauge(Policy).
	Offset []float32
	// Snapshot and ElapsedMs drive crossfades.
	Snapshot  []float32
	ElapsedMs float64

	initialized bool
}

// NewTarget creates an empty target. The first Apply adopts the base buffer.
func NewTarget(key string, role ir.Role, policy ir.ContinuityPolicy, stride int) *Target {
	return &Target{Key: key, Role: role, Policy: policy, Stride: stride}
}

// Initialized reports whether the target has produced at least one frame.
func (t *Target) Initialized() bool {
	return t.initialized
}

// Retarget adopts a new policy or stride after a recompile. A stride change
// drops history since old values cannot be interpreted. A policy change keeps
// the stabilized output and sizes the gauge buffer for the new policy.
func (t *Target) Retarget(role ir.Role, policy ir.ContinuityPolicy, stride int) {
	t.Role = role
	t.Policy = policy
	if stride != t.Stride {
		t.Stride = stride
		t.initialized = false
		return
	}
	switch {
	case !HasGauge(policy):
		t.Offset = nil
	case len(t.Offset) != len(t.Output):
		t.Offset = make([]float32, len(t.Output))
	}
}

// Apply stabilizes base (count elements of Stride values) and returns the new
// stabilized buffer, which is owned by the target and reused next frame.
//
// A discontinuity is a changed mapping, a count change, or force (the first
// frame after a hot-swap). dtMs is the frame delta.
func (t *Target) Apply(base []float32, count int, m Mapping, force bool, dtMs float64) []float32 {
	n := count * t.Stride
	base = base[:n]

	if !t.initialized {
		t.reset(n)
		copy(t.Output, base)
		t.Count = count
		t.ElapsedMs = t.Policy.WindowMs
		t.initialized = true
		return t.Output
	}

	discontinuity := force || m.Changed || t.Count != count
	prev := t.Output
	prevCount := t.Count

	var prevMapped []float32
	if discontinuity {
		src := m.Src
		if src == nil || len(src) != count {
			src = identitySrc(prevCount, count)
		}
		prevMapped = t.remap(prev, prevCount, base, count, src)
		if len(t.Output) != n {
			t.reset(n)
		}
	}

	out := t.Output
	switch t.Policy.Kind {
	case ir.PolicyNone:
		copy(out, base)

	case ir.PolicyPreserve:
		if discontinuity {
			for i := range n {
				t.Offset[i] = prevMapped[i] - base[i]
			}
		}
		for i := range n {
			out[i] = base[i] + t.Offset[i]
		}

	case ir.PolicySlew:
		from := prev
		if discontinuity {
			from = prevMapped
		}
		keep := float32(decay(dtMs, t.Policy.TauMs))
		if t.Policy.Gauge == ir.GaugeAdd {
			for i := range n {
				t.Offset[i] = (from[i] - base[i]) * keep
				out[i] = base[i] + t.Offset[i]
			}
		} else {
			for i := range n {
				out[i] = base[i] + (from[i]-base[i])*keep
			}
		}

	case ir.PolicyProject:
		if discontinuity {
			for i := range n {
				t.Offset[i] = prevMapped[i] - base[i]
			}
		} else if t.Policy.Post == ir.PostSlew {
			keep := float32(decay(dtMs, t.Policy.TauMs))
			for i := range n {
				t.Offset[i] *= keep
			}
		}
		for i := range n {
			out[i] = base[i] + t.Offset[i]
		}

	case ir.PolicyCrossfade:
		if discontinuity {
			t.Snapshot = append(t.Snapshot[:0], prevMapped...)
			t.ElapsedMs = 0
		} else {
			t.ElapsedMs += dtMs
		}
		w := 1.0
		if t.Policy.WindowMs > 0 {
			w = shape(t.Policy.Curve, t.ElapsedMs/t.Policy.WindowMs)
		}
		if w >= 1 || len(t.Snapshot) != n {
			copy(out, base)
		} else {
			wf := float32(w)
			for i := range n {
				out[i] = t.Snapshot[i] + (base[i]-t.Snapshot[i])*wf
			}
		}
	}

	t.Count = count
	return out
}

func (t *Target) reset(n int) {
	t.Output = make([]float32, n)
	if HasGauge(t.Policy) {
		t.Offset = make([]float32, n)
	} else {
		t.Offset = nil
	}
}

// remap carries the previous output over to the new population. Elements
// without a predecessor take their base value, or with the nearest projector
// the value of the closest previous element.
func (t *Target) remap(prev []float32, prevCount int, base []float32, count int, src []int32) []float32 {
	s := t.Stride
	out := make([]float32, count*s)
	nearest := t.Policy.Kind == ir.PolicyProject && t.Policy.Projector == ir.ProjectNearest
	for i := range count {
		dst := out[i*s : (i+1)*s]
		j := int(src[i])
		switch {
		case j >= 0 && j < prevCount:
			copy(dst, prev[j*s:(j+1)*s])
		case nearest && prevCount > 0:
			k := nearestElement(prev, prevCount, s, base[i*s:(i+1)*s])
			copy(dst, prev[k*s:(k+1)*s])
		default:
			copy(dst, base[i*s:(i+1)*s])
		}
	}
	return out
}

func nearestElement(prev []float32, count, stride int, p []float32) int {
	best, bestD := 0, math.Inf(1)
	for k := range count {
		d := 0.0
		for c := range stride {
			diff := float64(prev[k*stride+c] - p[c])
			d += diff * diff
		}
		if d < bestD {
			best, bestD = k, d
		}
	}
	return best
}

// decay returns exp(-dt/tau), the fraction of a deviation that survives one
// frame. A non-positive tau snaps immediately.
func decay(dtMs, tauMs float64) float64 {
	if tauMs <= 0 {
		return 0
	}
	if dtMs <= 0 {
		return 1
	}
	return math.Exp(-dtMs / tauMs)
}

func shape(c ir.Curve, x float64) float64 {
	switch {
	case x <= 0:
		return 0
	case x >= 1:
		return 1
	}
	if c == ir.CurveSmoothstep {
		return x * x * (3 - 2*x)
	}
	return x
}
