package state

import (
	"log/slog"

	"github.com/roach88/framegraph/internal/ir"
)

// ReconcileHotSwap moves session from oldModel to newModel at tMs. Phase
// offsets are adjusted so both phases read the same value at tMs under the new
// periods as they did under the old ones, and the next frame is flagged as a
// discontinuity for every continuity target. Call once per swap, before the
// first frame of the new program.
func ReconcileHotSwap(session *SessionState, oldModel, newModel ir.TimeModel, tMs float64) {
	a := phase(tMs, oldModel.PeriodA(), session.PhaseOffsetA)
	b := phase(tMs, oldModel.PeriodB(), session.PhaseOffsetB)

	session.PhaseOffsetA = offsetFor(a, tMs, newModel.PeriodA())
	session.PhaseOffsetB = offsetFor(b, tMs, newModel.PeriodB())
	session.Model = newModel
	session.PrevPhaseA = a
	session.pendingSwap = true

	slog.Info("hot swap reconciled",
		"session", session.ID,
		"t_ms", tMs,
		"phase_a", a,
		"phase_b", b,
	)
}

// offsetFor returns the offset o in [0, 1) with fract(tMs/period + o) == want.
func offsetFor(want, tMs, period float64) float64 {
	if period <= 0 {
		return want
	}
	o := fract(want - tMs/period)
	if 1-o < 1e-12 {
		o = 0
	}
	return o
}
