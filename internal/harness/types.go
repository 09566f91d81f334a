package harness

import "github.com/roach88/framegraph/internal/engine"

// FrameSummary is one executed frame as the harness saw it.
type FrameSummary struct {
	Frame   uint64          `json:"frame"`
	TimeMs  float64         `json:"time_ms"`
	Program string          `json:"program"`
	Ops     []engine.DrawOp `json:"ops"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// SessionID is the session the frames were recorded under.
	SessionID string `json:"session_id"`

	// Frames holds every executed frame in order.
	Frames []FrameSummary `json:"frames"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the session's persistent state after the last frame, by
	// state id.
	State map[string][]float64 `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Frames: []FrameSummary{},
		Errors: []string{},
		State:  make(map[string][]float64),
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddFrame appends an executed frame.
func (r *Result) AddFrame(f *engine.RenderFrame, program string) {
	r.Frames = append(r.Frames, FrameSummary{
		Frame:   f.Frame,
		TimeMs:  f.TimeMs,
		Program: program,
		Ops:     f.Ops,
	})
}

// frame returns the n-th frame (from 1), or the last for n == 0.
func (r *Result) frame(n int) (FrameSummary, bool) {
	if len(r.Frames) == 0 {
		return FrameSummary{}, false
	}
	if n == 0 {
		return r.Frames[len(r.Frames)-1], true
	}
	if n < 1 || n > len(r.Frames) {
		return FrameSummary{}, false
	}
	return r.Frames[n-1], true
}
