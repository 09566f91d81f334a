package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/roach88/framegraph/internal/continuity"
	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/state"
)

// wrapEpsilon absorbs rounding when a hot-swap re-derives the phase.
const wrapEpsilon = 1e-9

// frame carries everything one ExecuteFrame call needs.
type frame struct {
	p     *Program
	rt    *state.RuntimeState
	ps    *state.ProgramState
	arena *state.Arena

	id       uint64
	tMs      float64
	dtMs     float64
	phaseA   float64
	phaseB   float64
	progress float64
	wrapped  bool

	scratch []float64
}

// ExecuteFrame runs every step of p once at timeMs and returns the assembled
// render frame. The arena is used for per-frame field buffers; the caller
// resets it between frames. A failed step rewinds the session clock, so the
// frame neither counts nor shortens the next frame's dt.
func ExecuteFrame(p *Program, rt *state.RuntimeState, arena *state.Arena, timeMs float64) (*RenderFrame, error) {
	session := rt.Session
	ps := rt.Program

	prevPhaseA := session.PrevPhaseA
	prevTimeMs, frames := session.PrevTimeMs, session.Frames
	dt := session.Advance(timeMs)
	f := &frame{
		p:        p,
		rt:       rt,
		ps:       ps,
		arena:    arena,
		id:       ps.Cache.BeginFrame(),
		tMs:      timeMs,
		dtMs:     dt,
		phaseA:   session.PhaseA(timeMs),
		phaseB:   session.PhaseB(timeMs),
		progress: session.Progress(timeMs),
		scratch:  make([]float64, max(p.maxArity, 1)),
	}
	f.wrapped = session.Frames > 1 && f.phaseA < prevPhaseA-wrapEpsilon
	ps.ClearEvents()

	out := &RenderFrame{Version: FrameVersion, Frame: session.Frames, TimeMs: timeMs}
	for i, st := range p.Schedule.Steps {
		if err := f.step(st, out); err != nil {
			session.PrevTimeMs, session.Frames = prevTimeMs, frames
			return nil, stepError(i, err)
		}
	}

	session.PrevPhaseA = f.phaseA
	session.ClearSwap()
	return out, nil
}

func stepError(i int, err error) error {
	var ee *ExecError
	if errors.As(err, &ee) {
		ee.Step = i
		return ee
	}
	return &ExecError{Code: ErrCodeBadSlot, Message: err.Error(), Step: i, Expr: -1}
}

func (f *frame) step(st ir.Step, out *RenderFrame) error {
	switch s := st.(type) {
	case *ir.EvalValue:
		return f.evalValue(s)
	case *ir.SlotWriteStrided:
		return f.writeStrided(s)
	case *ir.ContinuityMapBuild:
		return f.mapBuild(s)
	case *ir.Materialize:
		return f.materialize(s)
	case *ir.ContinuityApply:
		return f.continuityApply(s)
	case *ir.Render:
		op, err := f.render(s)
		if err != nil {
			return err
		}
		out.Ops = append(out.Ops, op)
		return nil
	case *ir.StateWrite:
		return f.stateWrite(s)
	default:
		return fmt.Errorf("unknown step %T", st)
	}
}

func (f *frame) evalValue(s *ir.EvalValue) error {
	switch s.Strategy {
	case ir.ContinuousScalar:
		v, err := f.signal(s.Expr)
		if err != nil {
			return err
		}
		if s.Target == ir.NoSlot {
			return nil
		}
		return f.ps.WriteSignal(s.Target, v)
	case ir.ContinuousField:
		buf, _, err := f.field(s.Expr)
		if err != nil {
			return err
		}
		if s.Target == ir.NoSlot {
			return nil
		}
		return f.ps.SetBuffer(s.Target, buf)
	default:
		fired, err := f.event(s.Expr)
		if err != nil {
			return err
		}
		if fired {
			f.ps.Events[s.EventTarget] = 1
		}
		return nil
	}
}

func (f *frame) writeStrided(s *ir.SlotWriteStrided) error {
	v := make([]float64, len(s.Inputs))
	for i, in := range s.Inputs {
		c, err := f.signal(in)
		if err != nil {
			return err
		}
		v[i] = c[0]
	}
	return f.ps.WriteSignal(s.Target, v)
}

func (f *frame) mapBuild(s *ir.ContinuityMapBuild) error {
	n, ok := f.p.count(s.Instance)
	if !ok {
		return exprError(ErrCodeMissingInstance, -1, "instance %d not in program", s.Instance)
	}
	session := f.rt.Session
	m := continuity.BuildMapping(session.DomainCount(s.Key), n)
	session.DomainCounts[s.Key] = n
	f.ps.Mappings[s.Instance] = m
	return nil
}

func (f *frame) materialize(s *ir.Materialize) error {
	buf, _, err := f.field(s.Field)
	if err != nil {
		return err
	}
	return f.ps.SetBuffer(s.Target, buf)
}

func (f *frame) continuityApply(s *ir.ContinuityApply) error {
	n, ok := f.p.count(s.Instance)
	if !ok {
		return exprError(ErrCodeMissingInstance, -1, "instance %d not in program", s.Instance)
	}
	base, err := f.ps.Buffer(s.Base)
	if err != nil {
		return err
	}
	if len(base) < n*s.Stride {
		return fmt.Errorf("continuity %q: base holds %d values, need %d", s.Key, len(base), n*s.Stride)
	}
	t := f.rt.Session.Target(s.Key, s.Role, s.Policy, s.Stride)
	stable := t.Apply(base, n, f.ps.Mappings[s.Instance], f.rt.Session.SwapPending(), f.dtMs)
	return f.ps.SetBuffer(s.Output, stable)
}

func (f *frame) render(s *ir.Render) (DrawOp, error) {
	inst, ok := f.p.instances[s.Instance]
	if !ok {
		return DrawOp{}, exprError(ErrCodeMissingInstance, -1, "render %s: instance %d not in program", s.Block, s.Instance)
	}
	n := inst.Count
	op := DrawOp{
		Block:          string(s.Block),
		Instance:       inst.Key,
		Count:          n,
		PositionStride: s.PositionStride,
		Scale:          1,
	}

	pos, err := f.ps.Buffer(s.Position)
	if err != nil {
		return op, err
	}
	op.Position = append([]float32(nil), pos[:n*s.PositionStride]...)

	color, err := f.ps.Buffer(s.Color)
	if err != nil {
		return op, err
	}
	var opacity []float32
	if s.Opacity != ir.NoSlot {
		if opacity, err = f.ps.Buffer(s.Opacity); err != nil {
			return op, err
		}
	}
	op.Color = make([]uint8, 4*n)
	for i := range n {
		for c := range 4 {
			v := color[i*4+c]
			if c == 3 && opacity != nil {
				v *= opacity[i]
			}
			op.Color[i*4+c] = toByte(v)
		}
	}

	if s.Size != ir.NoSlot {
		size, err := f.ps.Buffer(s.Size)
		if err != nil {
			return op, err
		}
		op.Size = append([]float32(nil), size[:n]...)
	}
	if s.Scale.Valid() {
		v, err := f.signal(s.Scale)
		if err != nil {
			return op, err
		}
		op.Scale = v[0]
	}

	op.Shape, err = f.geometry(s.Shape, n)
	return op, err
}

func (f *frame) geometry(d ir.ShapeDescriptor, n int) (Geometry, error) {
	var g Geometry
	if d.PerElement != ir.NoSlot {
		buf, err := f.ps.Buffer(d.PerElement)
		if err != nil {
			return g, err
		}
		g.PerElement = make([]int32, n)
		for i := range n {
			g.PerElement[i] = int32(buf[i])
		}
	} else {
		g.Topology = ir.TopologyName(d.Topology)
		names := ir.TopologyParams(d.Topology)
		if len(names) > 0 {
			g.Params = make(map[string]float64, len(names))
		}
		for i, name := range names {
			if i >= len(d.Params) {
				break
			}
			v, err := f.signal(d.Params[i])
			if err != nil {
				return g, err
			}
			g.Params[name] = v[0]
		}
	}
	if d.ControlPoints != ir.NoSlot {
		buf, err := f.ps.Buffer(d.ControlPoints)
		if err != nil {
			return g, err
		}
		g.ControlPoints = append([]float32(nil), buf...)
	}
	return g, nil
}

func (f *frame) stateWrite(s *ir.StateWrite) error {
	d, ok := f.p.states[s.Slot]
	if !ok {
		return fmt.Errorf("state slot %d (%s) not declared", s.Slot, s.StateID)
	}
	v, err := f.signal(s.Value)
	if err != nil {
		return err
	}
	dst := f.ps.State[d.Offset : d.Offset+d.Stride]
	for i := range dst {
		if i < len(v) {
			dst[i] = v[i]
		}
	}
	f.rt.SaveState(d)
	return nil
}

// toByte quantizes a unit-interval color channel.
func toByte(v float32) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= 1:
		return 255
	}
	return uint8(math.Round(float64(v) * 255))
}
