package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/kernel"
	"github.com/roach88/framegraph/internal/testutil"
)

func compileErr(t *testing.T, g *ir.BlockGraph, b *ir.LoweredBundle) CompileErrors {
	t.Helper()
	res, err := Compile(g, b, kernel.NewBuiltinRegistry(), Options{})
	require.Error(t, err)
	assert.Nil(t, res, "never a partial program")
	var es CompileErrors
	require.ErrorAs(t, err, &es)
	return es
}

func TestSkipNonFieldPosition(t *testing.T) {
	g, b := testutil.GridPatch()
	// Replace the layout output with a signal.
	sig := b.Exprs.Append(testutil.Const(ir.PayloadVec2, 1, 1))
	b.Outputs["layout"]["out"] = sig

	res := compile(t, g, b)
	require.Len(t, res.Warnings, 1)
	w := res.Warnings[0]
	assert.Equal(t, WarnSkippedRender, w.Code)
	assert.Equal(t, SeverityWarning, w.Severity)
	assert.Equal(t, ir.BlockID("render"), w.Block)
	assert.Empty(t, res.Program.Schedule.Steps)
}

func TestSkipDisconnectedColor(t *testing.T) {
	g, b := testutil.GridPatch()
	g.Edges = g.Edges[:1]

	res := compile(t, g, b)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnSkippedRender, res.Warnings[0].Code)
}

func TestInstanceMissingIsFatal(t *testing.T) {
	p := testutil.NewPatchBuilder(ir.InfiniteTime(1000, 1000))
	p.Block("src", "Layout", ir.CapabilityNone).
		Block("render", "Render", ir.CapabilityRender).
		Edge("src", "pos", "render", "pos").
		Edge("src", "color", "render", "color")
	ghost := ir.InstanceID(7)
	pos := p.Expr("src", &ir.Intrinsic{Typed: ir.Typed{T: ir.FieldType(ir.PayloadVec2, ghost)}, Kind: ir.IntrinsicIndex})
	red := p.Expr("src", testutil.Const(ir.PayloadColor, 1, 0, 0, 1))
	color := p.Expr("src", &ir.Kernel{Typed: ir.Typed{T: ir.FieldType(ir.PayloadColor, ghost)}, Op: ir.OpBroadcast, Args: []ir.ExprID{red}})
	p.Output("src", "pos", pos)
	p.Output("src", "color", color)

	graph, bundle := p.Build()
	es := compileErr(t, graph, bundle)
	require.Len(t, es, 1)
	assert.Equal(t, ErrInstanceMissing, es[0].Code)
	assert.Equal(t, ghost, es[0].Instance)
	assert.Contains(t, es[0].Error(), "instance=7")
}

func TestInstanceWithoutShapeIsFatal(t *testing.T) {
	g, b := testutil.GridPatch()
	inst, _ := b.Instances.Get(0)
	inst.ShapeField = ir.NoExpr
	reg := ir.NewInstanceRegistry()
	require.NoError(t, reg.Add(inst))
	b.Instances = reg

	es := compileErr(t, g, b)
	assert.True(t, IsCompileError(es, ErrInstanceNoShape))
}

func TestMultipleCameras(t *testing.T) {
	g, b := testutil.GridPatch()
	g.Blocks = append(g.Blocks,
		ir.Block{ID: "cam1", Type: "Camera", Capability: ir.CapabilityCamera},
		ir.Block{ID: "cam2", Type: "Camera", Capability: ir.CapabilityCamera},
	)
	es := compileErr(t, g, b)
	assert.True(t, IsCompileError(es, ErrMultipleCamera))
}

func TestCycleInBlockGraph(t *testing.T) {
	g, b := testutil.GridPatch()
	g.Blocks = append(g.Blocks,
		ir.Block{ID: "a", Type: "Add"},
		ir.Block{ID: "b", Type: "Add"},
	)
	g.Edges = append(g.Edges,
		ir.Edge{From: ir.PortRef{Block: "a", Port: "out"}, To: ir.PortRef{Block: "b", Port: "in"}},
		ir.Edge{From: ir.PortRef{Block: "b", Port: "out"}, To: ir.PortRef{Block: "a", Port: "in"}},
		ir.Edge{From: ir.PortRef{Block: "a", Port: "out"}, To: ir.PortRef{Block: "layout", Port: "cols"}},
	)
	es := compileErr(t, g, b)
	require.True(t, IsCompileError(es, ErrCycle))
	assert.Contains(t, es.Error(), "->")
}

func TestSelfLoop(t *testing.T) {
	g, b := testutil.GridPatch()
	g.Edges = append(g.Edges, ir.Edge{
		From: ir.PortRef{Block: "layout", Port: "out"},
		To:   ir.PortRef{Block: "layout", Port: "in"},
	})
	es := compileErr(t, g, b)
	assert.True(t, IsCompileError(es, ErrCycle))
}

func TestUnknownBlockInEdge(t *testing.T) {
	g, b := testutil.GridPatch()
	g.Edges = append(g.Edges, ir.Edge{
		From: ir.PortRef{Block: "nowhere", Port: "out"},
		To:   ir.PortRef{Block: "render", Port: "opacity"},
	})
	es := compileErr(t, g, b)
	assert.True(t, IsCompileError(es, ErrUnknownBlock))
}

func TestUninstantiatedAxis(t *testing.T) {
	g, b := testutil.GridPatch()
	t0 := ir.SignalType(ir.PayloadFloat)
	t0.Extent.Perspective = ir.Var[ir.Perspective](3)
	b.ExprBlocks[b.Exprs.Append(&ir.Const{Typed: ir.Typed{T: t0}, Value: []float64{1}})] = "layout"

	es := compileErr(t, g, b)
	require.Len(t, es, 1)
	assert.Equal(t, ErrUninstantiatedAxis, es[0].Code)
	assert.Equal(t, ir.BlockID("layout"), es[0].Block)
}

func TestMixedZip(t *testing.T) {
	g, b := testutil.GridPatch()
	index := ir.ExprID(2)
	sig := b.Exprs.Append(testutil.Scalar(3))
	zip := b.Exprs.Append(testutil.Kernel(ir.FieldType(ir.PayloadFloat, 0), ir.OpZip, "add", []ir.ExprID{index, sig}))
	b.ExprBlocks[zip] = "layout"

	es := compileErr(t, g, b)
	require.True(t, IsCompileError(es, ErrCardinalityMismatch))
}

func TestForwardOperand(t *testing.T) {
	g, b := testutil.GridPatch()
	bad := b.Exprs.Append(testutil.Kernel(ir.SignalType(ir.PayloadFloat), ir.OpMap, "abs", []ir.ExprID{99}))
	b.ExprBlocks[bad] = "layout"
	es := compileErr(t, g, b)
	assert.True(t, IsCompileError(es, ErrInvalidOperand))
}

func TestKernelErrorsCollected(t *testing.T) {
	g, b := testutil.GridPatch()
	one := b.Exprs.Append(testutil.Scalar(1))
	b.ExprBlocks[one] = "layout"
	b.ExprBlocks[b.Exprs.Append(testutil.Kernel(ir.SignalType(ir.PayloadFloat), ir.OpMap, "nope", []ir.ExprID{one}))] = "layout"
	b.ExprBlocks[b.Exprs.Append(testutil.Kernel(ir.SignalType(ir.PayloadFloat), ir.OpZip, "lerp", []ir.ExprID{one, one}))] = "layout"

	es := compileErr(t, g, b)
	assert.True(t, IsCompileError(es, ErrKernelNotFound))
	assert.True(t, IsCompileError(es, ErrKernelArity))
	assert.Len(t, es, 2, "all errors reported, not just the first")
}

func TestDisconnectedErrorsAreIsolated(t *testing.T) {
	g, b := testutil.GridPatch()
	g.Blocks = append(g.Blocks, ir.Block{ID: "stray", Type: "Oscillator"})
	one := b.Exprs.Append(testutil.Scalar(1))
	bad := b.Exprs.Append(testutil.Kernel(ir.SignalType(ir.PayloadFloat), ir.OpMap, "nope", []ir.ExprID{one}))
	b.ExprBlocks[one] = "stray"
	b.ExprBlocks[bad] = "stray"
	slot := b.Slots.AllocSignal(ir.SignalType(ir.PayloadFloat))
	b.Signals = append(b.Signals, ir.SignalDecl{Slot: slot, Expr: bad, Block: "stray"})

	res := compile(t, g, b)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, ErrKernelNotFound, res.Warnings[0].Code)
	assert.Equal(t, SeverityWarning, res.Warnings[0].Severity)
	assert.Equal(t, []ir.BlockID{"stray"}, res.Isolated)

	for _, s := range res.Program.Schedule.Steps {
		if ev, ok := s.(*ir.EvalValue); ok {
			assert.NotEqual(t, bad, ev.Expr, "isolated signal must not be scheduled")
		}
	}
	assert.Len(t, res.Program.Schedule.Steps, 6)
}

func TestIsolatedExpressionReadByRenderIsFatal(t *testing.T) {
	g, b := testutil.GridPatch()
	g.Blocks = append(g.Blocks, ir.Block{ID: "stray", Type: "Tint"})
	tint := b.Exprs.Append(testutil.Const(ir.PayloadColor, 0, 1, 0, 1))
	bad := b.Exprs.Append(testutil.Kernel(ir.SignalType(ir.PayloadColor), ir.OpMap, "nope", []ir.ExprID{tint}))
	b.ExprBlocks[tint] = "stray"
	b.ExprBlocks[bad] = "stray"

	// The reachable color block broadcasts the stray block's output.
	orig := b.Exprs.Get(b.Outputs["color"]["out"]).(*ir.Kernel)
	colors := b.Exprs.Append(&ir.Kernel{Typed: orig.Typed, Op: ir.OpBroadcast, Args: []ir.ExprID{bad}})
	b.ExprBlocks[colors] = "color"
	b.Outputs["color"]["out"] = colors

	es := compileErr(t, g, b)
	require.Len(t, es, 1)
	assert.Equal(t, ErrKernelNotFound, es[0].Code)
	assert.Equal(t, SeverityError, es[0].Severity)
	assert.Equal(t, ir.BlockID("stray"), es[0].Block)
	assert.Equal(t, bad, es[0].Expr)
}

func TestHealthyDisconnectedSignalsStillRun(t *testing.T) {
	g, b := testutil.GridPatch()
	g.Blocks = append(g.Blocks, ir.Block{ID: "idle", Type: "Oscillator"})
	osc := b.Exprs.Append(&ir.Time{Typed: ir.Typed{T: ir.SignalType(ir.PayloadFloat)}, Read: ir.TimePhaseA})
	b.ExprBlocks[osc] = "idle"
	slot := b.Slots.AllocSignal(ir.SignalType(ir.PayloadFloat))
	b.Signals = append(b.Signals, ir.SignalDecl{Slot: slot, Expr: osc, Block: "idle"})

	res := compile(t, g, b)
	assert.Empty(t, res.Warnings)
	first := res.Program.Schedule.Steps[0].(*ir.EvalValue)
	assert.Equal(t, osc, first.Expr)
	assert.Equal(t, ir.BlockID("idle"), res.Program.Debug.SlotBlocks[slot])
}

func TestCompileErrorFormatting(t *testing.T) {
	d := diag(ErrCycle, "cycle in block graph: a -> b -> a")
	assert.Equal(t, "[E301] cycle in block graph: a -> b -> a", d.Error())

	d.Block = "a"
	d.Expr = 4
	assert.Equal(t, "[E301] cycle in block graph: a -> b -> a (block=a, expr=4)", d.Error())

	es := CompileErrors{d, diag(ErrMultipleCamera, "two cameras")}
	assert.Contains(t, es.Error(), "2 compile errors")
	assert.False(t, IsCompileError(es, ErrKernelStride))
}
