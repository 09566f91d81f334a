package testutil

import (
	"sort"

	"github.com/roach88/framegraph/internal/ir"
)

// GridPatch is a 2x2 grid of red circles with unit spacing:
//
//	grid (Array, 4 elements, circle r=0.4)
//	layout.out = grid2d(index, cols=2, spacing=1)  -> render.pos
//	color.out  = broadcast(rgba 1,0,0,1)            -> render.color
//
// Positions come out as (0,0) (1,0) (0,1) (1,1).
func GridPatch() (*ir.BlockGraph, *ir.LoweredBundle) {
	return GridPatchN(4, 2)
}

// GridPatchN is GridPatch with count elements laid out in cols columns.
func GridPatchN(count int, cols float64) (*ir.BlockGraph, *ir.LoweredBundle) {
	p := NewPatchBuilder(ir.InfiniteTime(1000, 4000))
	p.Block("grid", "Array", ir.CapabilityNone).
		Block("layout", "GridLayout", ir.CapabilityNone).
		Block("color", "Color", ir.CapabilityNone).
		Block("render", "RenderCircles", ir.CapabilityRender).
		Edge("layout", "out", "render", "pos").
		Edge("color", "out", "render", "color")

	inst := p.Instance("grid", count)
	radius := p.Expr("grid", Scalar(0.4))
	shape := p.Expr("grid", &ir.ShapeRef{
		Typed:         ir.Typed{T: ir.SignalType(ir.PayloadShape)},
		Topology:      ir.TopologyCircle,
		Params:        []ir.ExprID{radius},
		ControlPoints: ir.NoExpr,
	})
	p.Shape(inst, shape)

	index := p.Expr("layout", &ir.Intrinsic{Typed: ir.Typed{T: ir.FieldType(ir.PayloadFloat, inst)}, Kind: ir.IntrinsicIndex})
	colsExpr := p.Expr("layout", Scalar(cols))
	spacing := p.Expr("layout", Scalar(1))
	layout := p.Expr("layout", Kernel(ir.FieldType(ir.PayloadVec2, inst), ir.OpZipSig, "grid2d",
		[]ir.ExprID{index}, colsExpr, spacing))
	p.Output("layout", "out", layout)

	red := p.Expr("color", Const(ir.PayloadColor, 1, 0, 0, 1))
	colors := p.Expr("color", &ir.Kernel{
		Typed: ir.Typed{T: ir.FieldType(ir.PayloadColor, inst)},
		Op:    ir.OpBroadcast,
		Args:  []ir.ExprID{red},
	})
	p.Output("color", "out", colors)

	return p.Build()
}

// OrbitPatch is a ring of six dots orbiting with phase A, colored along the
// hue wheel, with a wrap counter kept in persistent state:
//
//	ring (Array, 6 elements, circle r=0.1)
//	orbit.out  = polar2d(normalizedIndex*2pi + phaseA*2pi, 1)  -> render.pos
//	hue.out    = hsv2rgb(normalizedIndex, 1, 1)                  -> render.color
//	size.out   = 1 + phaseA                                      -> render.scale
//	laps       = state "laps" += wrap event
func OrbitPatch() (*ir.BlockGraph, *ir.LoweredBundle) {
	p := NewPatchBuilder(ir.InfiniteTime(1000, 2000))
	p.Block("ring", "Array", ir.CapabilityNone).
		Block("orbit", "Orbit", ir.CapabilityNone).
		Block("hue", "HueWheel", ir.CapabilityNone).
		Block("size", "Pulse", ir.CapabilityNone).
		Block("laps", "Counter", ir.CapabilityNone).
		Block("render", "RenderCircles", ir.CapabilityRender).
		Edge("orbit", "out", "render", "pos").
		Edge("hue", "out", "render", "color").
		Edge("size", "out", "render", "scale").
		Edge("laps", "count", "render", "label")

	inst := p.Instance("ring", 6)
	radius := p.Expr("ring", Scalar(0.1))
	shape := p.Expr("ring", &ir.ShapeRef{
		Typed:         ir.Typed{T: ir.SignalType(ir.PayloadShape)},
		Topology:      ir.TopologyCircle,
		Params:        []ir.ExprID{radius},
		ControlPoints: ir.NoExpr,
	})
	p.Shape(inst, shape)

	field := ir.FieldType(ir.PayloadFloat, inst)
	sig := ir.SignalType(ir.PayloadFloat)

	norm := p.Expr("orbit", &ir.Intrinsic{Typed: ir.Typed{T: field}, Kind: ir.IntrinsicNormalizedIndex})
	phase := p.Expr("orbit", &ir.Time{Typed: ir.Typed{T: sig.WithUnit(ir.UnitPhase01)}, Read: ir.TimePhaseA})
	tau := p.Expr("orbit", Scalar(6.283185307179586))
	base := p.Expr("orbit", Kernel(field, ir.OpZipSig, "mul", []ir.ExprID{norm}, tau))
	spin := p.Expr("orbit", Kernel(sig, ir.OpZip, "mul", []ir.ExprID{phase, tau}))
	angle := p.Expr("orbit", Kernel(field, ir.OpZipSig, "add", []ir.ExprID{base}, spin))
	one := p.Expr("orbit", Scalar(1))
	pos := p.Expr("orbit", Kernel(ir.FieldType(ir.PayloadVec2, inst), ir.OpZipSig, "polar2d", []ir.ExprID{angle}, one))
	p.Output("orbit", "out", pos)

	hue := p.Expr("hue", Kernel(ir.FieldType(ir.PayloadColor, inst), ir.OpZipSig, "hsv2rgb", []ir.ExprID{norm}, one, one))
	p.Output("hue", "out", hue)

	size := p.Expr("size", Kernel(sig, ir.OpZip, "add", []ir.ExprID{one, phase}))
	p.Output("size", "out", size)
	p.Signal("size", size)
	p.Signal("orbit", spin)

	wrap := p.Expr("laps", &ir.Event{Typed: ir.Typed{T: ir.EventType()}, Kind: ir.EventWrap, Source: ir.NoExpr})
	p.Event("laps", wrap)
	lapsSlot := p.State("laps", "laps", 0)
	prev := p.Expr("laps", &ir.State{Typed: ir.Typed{T: sig}, StateID: "laps", Slot: lapsSlot})
	fired := p.Expr("laps", &ir.EventRead{Typed: ir.Typed{T: sig}, Event: wrap})
	next := p.Expr("laps", Kernel(sig, ir.OpZip, "add", []ir.ExprID{prev, fired}))
	p.StateValue(lapsSlot, next)
	p.Signal("laps", next)
	p.Output("laps", "count", next)

	return p.Build()
}

// fixtures maps the names scenarios and the CLI use to patch builders.
var fixtures = map[string]func() (*ir.BlockGraph, *ir.LoweredBundle){
	"grid":  GridPatch,
	"grid9": func() (*ir.BlockGraph, *ir.LoweredBundle) { return GridPatchN(9, 3) },
	"orbit": OrbitPatch,
}

// Fixture builds the named patch. Every call returns a fresh graph and
// bundle, since compiling resolves kernels in place.
func Fixture(name string) (*ir.BlockGraph, *ir.LoweredBundle, bool) {
	build, ok := fixtures[name]
	if !ok {
		return nil, nil, false
	}
	g, b := build()
	return g, b, true
}

// FixtureNames returns the known fixture names, sorted.
func FixtureNames() []string {
	names := make([]string, 0, len(fixtures))
	for n := range fixtures {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
