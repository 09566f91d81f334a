package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framegraph/internal/continuity"
	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/kernel"
	"github.com/roach88/framegraph/internal/testutil"
)

func compile(t *testing.T, g *ir.BlockGraph, b *ir.LoweredBundle) *Result {
	t.Helper()
	res, err := Compile(g, b, kernel.NewBuiltinRegistry(), Options{})
	require.NoError(t, err)
	return res
}

func kinds(steps []ir.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Kind().String()
	}
	return out
}

// phaseRank orders steps by the schedule phase they belong to.
func phaseRank(s ir.Step) int {
	switch v := s.(type) {
	case *ir.EvalValue:
		switch {
		case v.Strategy == ir.DiscreteScalar || v.Strategy == ir.DiscreteField:
			return 4
		case v.PostEvent:
			return 5
		}
		return 0
	case *ir.SlotWriteStrided:
		return 0
	case *ir.ContinuityMapBuild:
		return 1
	case *ir.Materialize:
		return 2
	case *ir.ContinuityApply:
		return 3
	case *ir.Render:
		return 6
	case *ir.StateWrite:
		return 7
	}
	return -1
}

func TestCompileGrid(t *testing.T) {
	graph, bundle := testutil.GridPatch()
	res := compile(t, graph, bundle)
	prog := res.Program

	assert.Empty(t, res.Warnings)
	assert.Equal(t, []string{
		"continuityMapBuild",
		"materialize", "materialize",
		"continuityApply", "continuityApply",
		"render",
	}, kinds(prog.Schedule.Steps))

	render := prog.Schedule.Steps[5].(*ir.Render)
	assert.Equal(t, ir.BlockID("render"), render.Block)
	assert.Equal(t, 2, render.PositionStride)
	assert.Equal(t, ir.TopologyCircle, render.Shape.Topology)
	assert.Len(t, render.Shape.Params, 1)
	assert.Equal(t, ir.NoSlot, render.Size)
	assert.Equal(t, ir.NoSlot, render.Opacity)
	assert.False(t, render.Scale.Valid())

	pos := prog.Schedule.Steps[3].(*ir.ContinuityApply)
	assert.Equal(t, "position#layout.out", pos.Key)
	assert.Equal(t, continuity.PolicyForSemantic(ir.RolePosition), pos.Policy)
	assert.Equal(t, 2, pos.Stride)
	assert.Equal(t, render.Position, pos.Output)

	color := prog.Schedule.Steps[4].(*ir.ContinuityApply)
	assert.Equal(t, "color#color.out", color.Key)
	assert.Equal(t, 4, color.Stride)

	assert.NotEmpty(t, prog.Hash)
	require.Len(t, prog.Debug.StepBlocks, len(prog.Schedule.Steps))
	assert.Equal(t, ir.BlockID("render"), prog.Debug.StepBlocks[5])
}

func TestOrderingInvariant(t *testing.T) {
	graph, bundle := testutil.OrbitPatch()
	res := compile(t, graph, bundle)
	steps := res.Program.Schedule.Steps

	assert.Equal(t, []string{
		"evalValue", "evalValue",
		"continuityMapBuild",
		"materialize", "materialize",
		"continuityApply", "continuityApply",
		"evalValue",
		"evalValue",
		"render",
		"stateWrite",
	}, kinds(steps))

	last := -1
	for i, s := range steps {
		r := phaseRank(s)
		require.GreaterOrEqual(t, r, last, "step %d (%s) out of phase order", i, s.Kind())
		last = r
	}

	post := steps[8].(*ir.EvalValue)
	assert.True(t, post.PostEvent, "the lap counter reads the wrap event")
	ev := steps[7].(*ir.EvalValue)
	assert.Equal(t, ir.DiscreteScalar, ev.Strategy)
	assert.Equal(t, ir.NoSlot, ev.Target)

	render := steps[9].(*ir.Render)
	assert.True(t, render.Scale.Valid(), "signal scale is a uniform scale")
}

func TestSlotLayoutSound(t *testing.T) {
	for name, patch := range map[string]func() (*ir.BlockGraph, *ir.LoweredBundle){
		"grid":  testutil.GridPatch,
		"orbit": testutil.OrbitPatch,
	} {
		t.Run(name, func(t *testing.T) {
			graph, bundle := patch()
			prog := compile(t, graph, bundle).Program
			next := [ir.NumBanks]int{}
			for i, m := range prog.Slots {
				require.Equal(t, ir.ValueSlot(i), m.Slot)
				require.Equal(t, next[m.Bank], m.Offset, "slot %d offset in %s", i, m.Bank)
				require.Positive(t, m.Stride)
				next[m.Bank] += m.Stride
			}
			assert.Equal(t, next, prog.BankSizes)
		})
	}
}

func TestCompileDeterministicHash(t *testing.T) {
	graph, bundle := testutil.GridPatch()
	a := compile(t, graph, bundle).Program.Hash
	graph, bundle = testutil.GridPatch()
	b := compile(t, graph, bundle).Program.Hash
	assert.Equal(t, a, b)

	graph, bundle = testutil.GridPatchN(9, 3)
	c := compile(t, graph, bundle).Program.Hash
	assert.NotEqual(t, a, c)
}

func TestPolicyOverrides(t *testing.T) {
	tbl, err := continuity.DefaultTable().WithOverrides(map[string]continuity.RoleConfig{
		"position": {Policy: "none"},
	})
	require.NoError(t, err)

	g, b := testutil.GridPatch()
	res, err := Compile(g, b, kernel.NewBuiltinRegistry(), Options{Policies: tbl})
	require.NoError(t, err)
	pos := res.Program.Schedule.Steps[3].(*ir.ContinuityApply)
	assert.Equal(t, ir.NoPolicy(), pos.Policy)
}

func TestSharedFieldMaterializedOnce(t *testing.T) {
	g, b := testutil.GridPatch()
	// Route the layout into a second render block as well.
	g.Blocks = append(g.Blocks, ir.Block{ID: "render2", Type: "RenderCircles", Capability: ir.CapabilityRender})
	g.Edges = append(g.Edges,
		ir.Edge{From: ir.PortRef{Block: "layout", Port: "out"}, To: ir.PortRef{Block: "render2", Port: "pos"}},
		ir.Edge{From: ir.PortRef{Block: "color", Port: "out"}, To: ir.PortRef{Block: "render2", Port: "color"}},
	)
	res := compile(t, g, b)
	assert.Equal(t, []string{
		"continuityMapBuild",
		"materialize", "materialize",
		"continuityApply", "continuityApply",
		"render", "render",
	}, kinds(res.Program.Schedule.Steps))
}
