package loader

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framegraph/internal/compiler"
	"github.com/roach88/framegraph/internal/engine"
	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/kernel"
	"github.com/roach88/framegraph/internal/state"
	"github.com/roach88/framegraph/internal/testutil"
)

func compile(t *testing.T, g *ir.BlockGraph, b *ir.LoweredBundle) (*compiler.Result, *engine.Program) {
	t.Helper()
	reg := kernel.NewBuiltinRegistry()
	res, err := compiler.Compile(g, b, reg, compiler.Options{})
	require.NoError(t, err)
	p, err := engine.Load(res.Program, reg)
	require.NoError(t, err)
	return res, p
}

func TestLoadGrid(t *testing.T) {
	patch, err := LoadPatch("testdata/grid.cue")
	require.NoError(t, err)

	assert.Equal(t, "testdata/grid.cue", patch.Source)
	assert.Len(t, patch.Graph.Blocks, 4)
	assert.Len(t, patch.Graph.Edges, 2)
	assert.Equal(t, ir.InfiniteTime(1000, 4000), patch.Graph.Time)
	assert.Equal(t, 8, patch.Bundle.Exprs.Len())

	render, ok := patch.Graph.Block("render")
	require.True(t, ok)
	assert.Equal(t, ir.CapabilityRender, render.Capability)

	out, ok := patch.Bundle.Output(ir.PortRef{Block: "layout", Port: "out"})
	require.True(t, ok)
	assert.Equal(t, ir.ExprID(5), out)
	assert.Equal(t, ir.BlockID("color"), patch.Bundle.ExprBlocks[7])

	inst, ok := patch.Bundle.Instances.Get(0)
	require.True(t, ok)
	assert.Equal(t, "grid", inst.Key)
	assert.Equal(t, 4, inst.Count)
	assert.Equal(t, ir.ExprID(1), inst.ShapeField)

	k, ok := patch.Bundle.Exprs.Get(5).(*ir.Kernel)
	require.True(t, ok)
	assert.Equal(t, ir.OpZipSig, k.Op)
	assert.Equal(t, "grid2d", k.Fn.Name)
	assert.Equal(t, []ir.ExprID{2}, k.Args)
	assert.Equal(t, []ir.ExprID{3, 4}, k.Signals)
	assert.Equal(t, ir.FieldType(ir.PayloadVec2, 0), k.Type())
}

func TestLoadedGridMatchesBuiltGrid(t *testing.T) {
	patch, err := LoadPatch("testdata/grid.cue")
	require.NoError(t, err)
	loaded, p := compile(t, patch.Graph, patch.Bundle)
	graph, bundle := testutil.GridPatch()
	built, _ := compile(t, graph, bundle)

	assert.Equal(t, built.Program.Hash, loaded.Program.Hash)

	rt := state.NewRuntimeStateWithIDs(p.CompiledProgram, state.NewFixedGenerator("s"))
	f, err := engine.ExecuteFrame(p, rt, state.NewArena(0), 0)
	require.NoError(t, err)
	require.Len(t, f.Ops, 1)
	assert.Equal(t, []float32{0, 0, 1, 0, 0, 1, 1, 1}, f.Ops[0].Position)
}

func TestLoadPulseRuns(t *testing.T) {
	patch, err := LoadPatch("testdata/pulse.cue")
	require.NoError(t, err)
	assert.Equal(t, ir.FiniteTime(2000), patch.Graph.Time)
	require.Len(t, patch.Bundle.States, 1)
	assert.Equal(t, "ticks", patch.Bundle.States[0].ID)
	assert.Equal(t, ir.ExprID(9), patch.Bundle.States[0].Value)
	require.Len(t, patch.Bundle.Events, 1)
	require.Len(t, patch.Bundle.Signals, 1)

	_, p := compile(t, patch.Graph, patch.Bundle)
	rt := state.NewRuntimeStateWithIDs(p.CompiledProgram, state.NewFixedGenerator("s"))
	arena := state.NewArena(0)
	rt.Session.SetInput("level", 0.25)

	var f *engine.RenderFrame
	for i := 0; i < 3; i++ {
		arena.Reset()
		f, err = engine.ExecuteFrame(p, rt, arena, float64(i)*16)
		require.NoError(t, err)
	}
	assert.Equal(t, []float64{3}, rt.Program.State)
	require.Len(t, f.Ops, 1)
	assert.Equal(t, "circle", f.Ops[0].Shape.Topology)
	assert.Equal(t, 0.25, f.Ops[0].Shape.Params["radius"])
	assert.Equal(t, []float32{0.5, 0.5}, f.Ops[0].Position)
}

func TestLoadDirectory(t *testing.T) {
	patch, err := LoadPatch("testdata/split")
	require.NoError(t, err)
	assert.Len(t, patch.Graph.Blocks, 3)
	assert.Equal(t, 8, patch.Bundle.Exprs.Len())

	_, p := compile(t, patch.Graph, patch.Bundle)
	rt := state.NewRuntimeStateWithIDs(p.CompiledProgram, state.NewFixedGenerator("s"))
	f, err := engine.ExecuteFrame(p, rt, state.NewArena(0), 0)
	require.NoError(t, err)
	require.Len(t, f.Ops, 1)
	assert.Equal(t, 3, f.Ops[0].Count)
	assert.Equal(t, []uint8{0, 0, 255, 255}, f.Ops[0].Color[:4])
}

func TestLoadCollectsReferenceErrors(t *testing.T) {
	_, err := LoadPatch("testdata/bad_ref.cue")
	require.Error(t, err)

	var errs LoadErrors
	require.ErrorAs(t, err, &errs)
	assert.Len(t, errs, 4)
	assert.True(t, IsLoadError(err, ErrCodeDuplicate))
	assert.True(t, IsLoadError(err, ErrCodeReference))
	assert.False(t, IsLoadError(err, ErrCodeSchema))

	for _, e := range errs {
		require.True(t, e.Pos.IsValid(), e.Message)
		assert.Equal(t, "bad_ref.cue", filepath.Base(e.Pos.Filename()))
	}
	assert.Contains(t, err.Error(), "expression 7 out of range")
	assert.Contains(t, err.Error(), `unknown state "missing"`)
}

func TestLoadSchemaErrors(t *testing.T) {
	_, err := LoadPatch("testdata/bad_schema.cue")
	require.Error(t, err)
	assert.True(t, IsLoadError(err, ErrCodeSchema))
}

func TestLoadPatchSource(t *testing.T) {
	src := []byte(`
time: {kind: "finite", durationMs: 500}
blocks: [{id: "a", type: "Const"}]
exprs: [{kind: "time", block: "a", read: "progress"}]
signals: [{expr: 0, block: "a"}]
`)
	patch, err := LoadPatchSource("inline.cue", src)
	require.NoError(t, err)
	assert.Equal(t, "inline.cue", patch.Source)

	tm, ok := patch.Bundle.Exprs.Get(0).(*ir.Time)
	require.True(t, ok)
	assert.Equal(t, ir.TimeProgress, tm.Read)
	assert.Equal(t, ir.UnitPhase01, tm.Type().Unit)
	require.Len(t, patch.Bundle.Signals, 1)
	assert.Equal(t, ir.BlockID("a"), patch.Bundle.Signals[0].Block)
}

func TestLoadSourceSyntaxError(t *testing.T) {
	_, err := LoadPatchSource("broken.cue", []byte("time: {kind: "))
	require.Error(t, err)
	assert.True(t, IsLoadError(err, ErrCodeLoadFailed))
}

func TestLoadMissingPaths(t *testing.T) {
	_, err := LoadPatch("testdata/nope.cue")
	assert.True(t, IsLoadError(err, ErrCodeNotFound))

	_, err = LoadPatch(t.TempDir())
	assert.True(t, IsLoadError(err, ErrCodeNoFiles))
}
