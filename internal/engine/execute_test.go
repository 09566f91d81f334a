package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framegraph/internal/compiler"
	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/kernel"
	"github.com/roach88/framegraph/internal/state"
	"github.com/roach88/framegraph/internal/testutil"
)

func load(t *testing.T, g *ir.BlockGraph, b *ir.LoweredBundle) *Program {
	t.Helper()
	reg := kernel.NewBuiltinRegistry()
	res, err := compiler.Compile(g, b, reg, compiler.Options{})
	require.NoError(t, err)
	p, err := Load(res.Program, reg)
	require.NoError(t, err)
	return p
}

func newRuntime(p *Program, id string) *state.RuntimeState {
	return state.NewRuntimeStateWithIDs(p.CompiledProgram, state.NewFixedGenerator(id))
}

func run(t *testing.T, p *Program, rt *state.RuntimeState, arena *state.Arena, tMs float64) *RenderFrame {
	t.Helper()
	arena.Reset()
	f, err := ExecuteFrame(p, rt, arena, tMs)
	require.NoError(t, err)
	return f
}

func TestGridEndToEnd(t *testing.T) {
	graph, bundle := testutil.GridPatch()
	p := load(t, graph, bundle)
	rt := newRuntime(p, "s")
	f := run(t, p, rt, state.NewArena(0), 0)

	assert.Equal(t, FrameVersion, f.Version)
	assert.Equal(t, uint64(1), f.Frame)
	require.Len(t, f.Ops, 1)
	op := f.Ops[0]

	assert.Equal(t, "render", op.Block)
	assert.Equal(t, "grid", op.Instance)
	assert.Equal(t, 4, op.Count)
	assert.Equal(t, 2, op.PositionStride)
	assert.Equal(t, []float32{0, 0, 1, 0, 0, 1, 1, 1}, op.Position)
	assert.Equal(t, []uint8{
		255, 0, 0, 255,
		255, 0, 0, 255,
		255, 0, 0, 255,
		255, 0, 0, 255,
	}, op.Color)
	assert.Nil(t, op.Size)
	assert.Equal(t, 1.0, op.Scale)
	assert.Equal(t, "circle", op.Shape.Topology)
	assert.Equal(t, map[string]float64{"radius": 0.4}, op.Shape.Params)
	assert.Equal(t, 4, f.Elements())
}

func TestFramesAreIndependentCopies(t *testing.T) {
	graph, bundle := testutil.GridPatch()
	p := load(t, graph, bundle)
	rt := newRuntime(p, "s")
	arena := state.NewArena(0)

	first := run(t, p, rt, arena, 0)
	snapshot := append([]float32(nil), first.Ops[0].Position...)
	run(t, p, rt, arena, 16)
	assert.Equal(t, snapshot, first.Ops[0].Position)
}

func TestDeterminism(t *testing.T) {
	times := []float64{0, 16, 33, 50, 400, 999, 1001, 1500, 2600}

	digests := func() []string {
		graph, bundle := testutil.OrbitPatch()
		p := load(t, graph, bundle)
		rt := newRuntime(p, "s")
		arena := state.NewArena(64)
		var out []string
		for _, tm := range times {
			d, err := run(t, p, rt, arena, tm).Digest()
			require.NoError(t, err)
			out = append(out, d)
		}
		return out
	}

	a, b := digests(), digests()
	assert.Equal(t, a, b)
	assert.NotEqual(t, a[0], a[1], "frames differ over time")
}

func TestOrbitLapsAndScale(t *testing.T) {
	graph, bundle := testutil.OrbitPatch()
	p := load(t, graph, bundle)
	rt := newRuntime(p, "s")
	arena := state.NewArena(0)

	var f *RenderFrame
	for _, tm := range []float64{0, 500, 999, 1001, 1500, 2100} {
		f = run(t, p, rt, arena, tm)
	}
	assert.Equal(t, []float64{2}, rt.Session.StateValues["laps"])
	assert.InDelta(t, 1.1, f.Ops[0].Scale, 1e-9)
	assert.Equal(t, 6, f.Ops[0].Count)

	// Every dot sits on the unit circle.
	pos := f.Ops[0].Position
	for i := range 6 {
		r := math.Hypot(float64(pos[2*i]), float64(pos[2*i+1]))
		assert.InDelta(t, 1, r, 0.05, "dot %d", i)
	}
}

func TestThresholdEvent(t *testing.T) {
	p := testutil.NewPatchBuilder(ir.InfiniteTime(1000, 1000))
	p.Block("trig", "Threshold", ir.CapabilityNone)
	sig := ir.SignalType(ir.PayloadFloat)
	phase := p.Expr("trig", &ir.Time{Typed: ir.Typed{T: sig}, Read: ir.TimePhaseA})
	ev := p.Expr("trig", &ir.Event{Typed: ir.Typed{T: ir.EventType()}, Kind: ir.EventThreshold, Source: phase, Threshold: 0.5})
	p.Event("trig", ev)
	read := p.Expr("trig", &ir.EventRead{Typed: ir.Typed{T: sig}, Event: ev})
	slot := p.Signal("trig", read)

	graph, bundle := p.Build()
	prog := load(t, graph, bundle)
	rt := newRuntime(prog, "s")
	arena := state.NewArena(0)

	var fired []float64
	for _, tm := range []float64{0, 400, 600, 700, 1100, 1600} {
		run(t, prog, rt, arena, tm)
		v, err := rt.Program.ReadSignal(nil, slot)
		require.NoError(t, err)
		fired = append(fired, v[0])
	}
	assert.Equal(t, []float64{0, 0, 1, 0, 0, 1}, fired)
}

func TestPulseAndExternalInput(t *testing.T) {
	p := testutil.NewPatchBuilder(ir.InfiniteTime(1000, 1000))
	p.Block("in", "Pointer", ir.CapabilityNone)
	vec := p.Expr("in", &ir.External{Typed: ir.Typed{T: ir.SignalType(ir.PayloadVec2)}, Channel: "pointer"})
	slot := p.Signal("in", vec)
	pulse := p.Expr("in", &ir.Event{Typed: ir.Typed{T: ir.EventType()}, Kind: ir.EventPulse, Source: ir.NoExpr})
	evSlot := p.Event("in", pulse)

	graph, bundle := p.Build()
	prog := load(t, graph, bundle)
	rt := newRuntime(prog, "s")
	arena := state.NewArena(0)

	run(t, prog, rt, arena, 0)
	v, err := rt.Program.ReadSignal(nil, slot)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, v, "unset channels read as zero")
	assert.Equal(t, byte(1), rt.Program.Events[evSlot])

	rt.Session.SetInput("pointer", 3, 4)
	run(t, prog, rt, arena, 16)
	v, err = rt.Program.ReadSignal(nil, slot)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, v)
}

func TestHotSwapKeepsPositionsContinuous(t *testing.T) {
	graph, bundle := testutil.GridPatch()
	before := load(t, graph, bundle)
	rt := newRuntime(before, "s")
	arena := state.NewArena(0)
	for _, tm := range []float64{0, 16, 32} {
		run(t, before, rt, arena, tm)
	}
	old := run(t, before, rt, arena, 48).Ops[0].Position

	graph, bundle = testutil.GridPatchN(6, 3)
	after := load(t, graph, bundle)
	state.ReconcileHotSwap(rt.Session, before.Schedule.Time, after.Schedule.Time, 48)
	rt = state.NewRuntimeStateFromSession(rt.Session, after.CompiledProgram)

	f := run(t, after, rt, arena, 64)
	pos := f.Ops[0].Position
	require.Len(t, pos, 12)
	assert.Equal(t, old, pos[:8], "surviving elements start where they were")
	assert.Equal(t, []float32{1, 1, 2, 1}, pos[8:], "new elements start at their base")
	assert.False(t, rt.Session.SwapPending())

	// Element 2 moved from (0,1) in the old layout to (2,0) in the new one and
	// converges monotonically.
	dist := func(p []float32) float64 { return math.Hypot(float64(p[4]-2), float64(p[5])) }
	prev := dist(pos)
	for i := 1; i <= 100; i++ {
		pos = run(t, after, rt, arena, 64+float64(i)*16).Ops[0].Position
		d := dist(pos)
		require.Less(t, d, prev)
		prev = d
	}
	assert.Less(t, prev, 0.1)
}

func TestPersistentStateSurvivesSwap(t *testing.T) {
	graph, bundle := testutil.OrbitPatch()
	first := load(t, graph, bundle)
	rt := newRuntime(first, "s")
	arena := state.NewArena(0)
	for _, tm := range []float64{0, 900, 1100} {
		run(t, first, rt, arena, tm)
	}
	require.Equal(t, []float64{1}, rt.Session.StateValues["laps"])

	graph, bundle = testutil.OrbitPatch()
	second := load(t, graph, bundle)
	state.ReconcileHotSwap(rt.Session, first.Schedule.Time, second.Schedule.Time, 1100)
	rt = state.NewRuntimeStateFromSession(rt.Session, second.CompiledProgram)
	for _, tm := range []float64{1900, 2100} {
		run(t, second, rt, arena, tm)
	}
	assert.Equal(t, []float64{2}, rt.Session.StateValues["laps"])
}

func TestLoadRejectsBadHandle(t *testing.T) {
	tbl := ir.NewExprTable()
	one := tbl.Append(testutil.Scalar(1))
	k := testutil.Kernel(ir.SignalType(ir.PayloadFloat), ir.OpMap, "abs", []ir.ExprID{one})
	k.Fn.Handle, k.Fn.ABI = 999, ir.ABIScalar
	tbl.Append(k)

	_, err := Load(&ir.CompiledProgram{Exprs: tbl}, kernel.NewBuiltinRegistry())
	require.Error(t, err)
	assert.True(t, IsExecError(err, ErrCodeUnresolvedKernel))

	_, err = Load(nil, kernel.NewBuiltinRegistry())
	assert.Error(t, err)
}

func TestUnresolvedKernelAtRuntime(t *testing.T) {
	tbl := ir.NewExprTable()
	one := tbl.Append(testutil.Scalar(1))
	k := tbl.Append(testutil.Kernel(ir.SignalType(ir.PayloadFloat), ir.OpMap, "abs", []ir.ExprID{one}))
	alloc := ir.NewSlotAllocator()
	slot := alloc.AllocSignal(ir.SignalType(ir.PayloadFloat))
	prog := &ir.CompiledProgram{
		Exprs: tbl,
		Schedule: ir.ScheduleIR{
			Time:  ir.InfiniteTime(1000, 1000),
			Steps: []ir.Step{&ir.EvalValue{Expr: k, Target: slot, EventTarget: -1}},
		},
		Slots:     alloc.Metas(),
		BankSizes: alloc.BankSizes(),
	}
	p, err := Load(prog, kernel.NewBuiltinRegistry())
	require.NoError(t, err)

	rt := newRuntime(p, "s")
	rt.Session.Frames, rt.Session.PrevTimeMs = 2, 100
	_, err = ExecuteFrame(p, rt, state.NewArena(0), 200)
	require.Error(t, err)
	assert.True(t, IsExecError(err, ErrCodeUnresolvedKernel))
	var ee *ExecError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, 0, ee.Step)

	assert.Equal(t, uint64(2), rt.Session.Frames, "a failed frame does not count")
	assert.Equal(t, 100.0, rt.Session.PrevTimeMs)
}
