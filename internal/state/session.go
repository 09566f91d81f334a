package state

import (
	"log/slog"
	"math"

	"github.com/roach88/framegraph/internal/continuity"
	"github.com/roach88/framegraph/internal/ir"
)

// SessionState is the part of the runtime that outlives a compiled program.
type SessionState struct {
	ID    string
	Model ir.TimeModel

	// PrevTimeMs is the time of the last executed frame; valid when Frames > 0.
	PrevTimeMs float64
	// PrevPhaseA is phase A of the last executed frame, for wrap detection.
	PrevPhaseA float64
	// Phase offsets keep the effective phase continuous across swaps that
	// change a period.
	PhaseOffsetA float64
	PhaseOffsetB float64
	Frames       uint64

	// Targets holds continuity buffers by stable key (role + source).
	Targets map[string]*continuity.Target
	// DomainCounts holds the last seen element count per instance key.
	DomainCounts map[string]int
	// StateValues holds persistent state by stateID.
	StateValues map[string][]float64
	// Inputs holds host-supplied external channel values.
	Inputs map[string][]float64

	pendingSwap bool
}

// NewSessionState starts a session under model.
func NewSessionState(model ir.TimeModel, ids IDGenerator) *SessionState {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	s := &SessionState{
		ID:           ids.Generate(),
		Model:        model,
		Targets:      make(map[string]*continuity.Target),
		DomainCounts: make(map[string]int),
		StateValues:  make(map[string][]float64),
		Inputs:       make(map[string][]float64),
	}
	slog.Info("session started", "session", s.ID)
	return s
}

// Advance records a frame at tMs and returns its delta. The first frame and
// frames that go back in time have a zero delta.
func (s *SessionState) Advance(tMs float64) float64 {
	dt := 0.0
	if s.Frames > 0 && tMs > s.PrevTimeMs {
		dt = tMs - s.PrevTimeMs
	}
	s.PrevTimeMs = tMs
	s.Frames++
	return dt
}

// PhaseA returns the effective phase A in [0, 1) at tMs.
func (s *SessionState) PhaseA(tMs float64) float64 {
	return phase(tMs, s.Model.PeriodA(), s.PhaseOffsetA)
}

// PhaseB returns the effective phase B in [0, 1) at tMs.
func (s *SessionState) PhaseB(tMs float64) float64 {
	return phase(tMs, s.Model.PeriodB(), s.PhaseOffsetB)
}

// Progress returns the fraction of a finite model elapsed at tMs, clamped to
// [0, 1]. Infinite models report phase A.
func (s *SessionState) Progress(tMs float64) float64 {
	if s.Model.Kind != ir.TimeFinite {
		return s.PhaseA(tMs)
	}
	if s.Model.DurationMs <= 0 {
		return 1
	}
	return math.Min(1, math.Max(0, tMs/s.Model.DurationMs))
}

// Target returns the continuity target for key, creating it on first use and
// adopting a changed policy or stride otherwise.
func (s *SessionState) Target(key string, role ir.Role, p ir.ContinuityPolicy, stride int) *continuity.Target {
	t, ok := s.Targets[key]
	if !ok {
		t = continuity.NewTarget(key, role, p, stride)
		s.Targets[key] = t
		return t
	}
	if t.Policy != p || t.Stride != stride || t.Role != role {
		t.Retarget(role, p, stride)
	}
	return t
}

// DomainCount returns the last count recorded for an instance key, or -1.
func (s *SessionState) DomainCount(key string) int {
	if n, ok := s.DomainCounts[key]; ok {
		return n
	}
	return -1
}

// SetInput publishes the value of an external channel. Channels never set
// read as zero.
func (s *SessionState) SetInput(channel string, v ...float64) {
	s.Inputs[channel] = append(s.Inputs[channel][:0], v...)
}

// SwapPending reports whether the next frame is the first after a hot-swap.
func (s *SessionState) SwapPending() bool {
	return s.pendingSwap
}

// ClearSwap marks the post-swap frame as done.
func (s *SessionState) ClearSwap() {
	s.pendingSwap = false
}

func phase(tMs, period, offset float64) float64 {
	if period <= 0 {
		return fract(offset)
	}
	return fract(tMs/period + offset)
}

func fract(x float64) float64 {
	f := x - math.Floor(x)
	if f >= 1 {
		return 0
	}
	return f
}
