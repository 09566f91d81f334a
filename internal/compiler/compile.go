package compiler

import (
	"log/slog"

	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/kernel"
)

// Result is a successful compilation.
type Result struct {
	Program  *ir.CompiledProgram
	Warnings []CompileError
	// Isolated lists blocks left out of the schedule because their errors
	// could not reach a render sink.
	Isolated []ir.BlockID
}

// Compile validates, resolves and schedules a lowered block graph.
//
// Pass one collects every diagnostic: graph structure, expression typing and
// kernel resolution. Pass two computes which blocks feed a render sink;
// errors attributed to any other block become warnings and that block's
// signals, events, states and strided writes are dropped. Remaining errors
// fail the compile with CompileErrors.
//
// Kernel references in b.Exprs are resolved in place against reg.
func Compile(g *ir.BlockGraph, b *ir.LoweredBundle, reg *kernel.Registry, opts Options) (*Result, error) {
	if b.Exprs == nil {
		b.Exprs = ir.NewExprTable()
	}
	if b.Instances == nil {
		b.Instances = ir.NewInstanceRegistry()
	}

	// Pass one.
	var diags []CompileError
	diags = append(diags, checkEdges(g)...)
	diags = append(diags, findCycles(buildBlockGraph(g))...)
	diags = append(diags, checkCameras(g)...)
	diags = append(diags, ValidateExprs(b.Exprs, b.ExprBlocks)...)
	diags = append(diags, resolveKernels(b.Exprs, reg, b.ExprBlocks)...)

	// Pass two.
	reachable := reachableFromSinks(g)
	var (
		fatal    CompileErrors
		warnings []CompileError
		isolated = make(map[ir.BlockID]bool)
	)
	for _, d := range diags {
		if d.Block != "" && !reachable[d.Block] && !d.fatal() {
			d.Severity = SeverityWarning
			warnings = append(warnings, d)
			isolated[d.Block] = true
			continue
		}
		fatal = append(fatal, d)
	}
	if len(fatal) > 0 {
		slog.Debug("compile failed", "errors", len(fatal), "warnings", len(warnings))
		return nil, fatal
	}

	bundle := b
	if len(isolated) > 0 {
		bundle = isolate(b, isolated)
	}
	build, err := BuildSchedule(g, bundle, opts)
	if err != nil {
		return nil, err
	}
	if len(warnings) > 0 {
		// A healthy block may still read an isolated block's expression.
		reads := scheduledExprs(&build.Schedule, b.Exprs)
		for _, w := range warnings {
			if w.Expr >= 0 && reads[w.Expr] {
				w.Severity = SeverityError
				fatal = append(fatal, w)
			}
		}
		if len(fatal) > 0 {
			slog.Debug("compile failed", "errors", len(fatal), "reason", "isolated expression is scheduled")
			return nil, fatal
		}
	}
	warnings = append(warnings, build.Warnings...)

	hash, err := ir.ProgramHash(&build.Schedule)
	if err != nil {
		return nil, err
	}
	prog := &ir.CompiledProgram{
		Exprs:     b.Exprs,
		Schedule:  build.Schedule,
		Slots:     bundle.Slots.Metas(),
		BankSizes: bundle.Slots.BankSizes(),
		Debug:     build.Debug,
		Hash:      hash,
	}

	res := &Result{Program: prog, Warnings: warnings}
	for _, blk := range g.Blocks {
		if isolated[blk.ID] {
			res.Isolated = append(res.Isolated, blk.ID)
		}
	}
	slog.Info("program compiled",
		"program", hash,
		"steps", len(prog.Schedule.Steps),
		"instances", len(prog.Schedule.Instances),
		"warnings", len(warnings),
		"isolated", len(res.Isolated),
	)
	return res, nil
}

// isolate returns a shallow copy of b without the declarations of dropped
// blocks. The expression table and slot allocator are shared.
func isolate(b *ir.LoweredBundle, dropped map[ir.BlockID]bool) *ir.LoweredBundle {
	out := *b
	out.Signals = nil
	for _, s := range b.Signals {
		if !dropped[s.Block] {
			out.Signals = append(out.Signals, s)
		}
	}
	out.Events = nil
	for _, e := range b.Events {
		if !dropped[e.Block] {
			out.Events = append(out.Events, e)
		}
	}
	out.States = nil
	for _, s := range b.States {
		if !dropped[s.Block] {
			out.States = append(out.States, s)
		}
	}
	out.Strided = nil
	for _, s := range b.Strided {
		if !dropped[s.Block] {
			out.Strided = append(out.Strided, s)
		}
	}
	return &out
}

// scheduledExprs returns every expression the schedule evaluates, directly or
// through operands.
func scheduledExprs(sched *ir.ScheduleIR, tbl *ir.ExprTable) map[ir.ExprID]bool {
	seen := make(map[ir.ExprID]bool)
	var stack []ir.ExprID
	push := func(ids ...ir.ExprID) {
		for _, id := range ids {
			if id < 0 || int(id) >= tbl.Len() || seen[id] {
				continue
			}
			seen[id] = true
			stack = append(stack, id)
		}
	}
	for _, inst := range sched.Instances {
		push(inst.ShapeField)
	}
	for _, step := range sched.Steps {
		switch s := step.(type) {
		case *ir.EvalValue:
			push(s.Expr)
		case *ir.SlotWriteStrided:
			push(s.Inputs...)
		case *ir.Materialize:
			push(s.Field)
		case *ir.Render:
			push(s.Scale)
			push(s.Shape.Params...)
		case *ir.StateWrite:
			push(s.Value)
		}
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		push(tbl.Get(id).Operands()...)
	}
	return seen
}
