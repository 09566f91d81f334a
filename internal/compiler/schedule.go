package compiler

import (
	"fmt"
	"log/slog"

	"github.com/roach88/framegraph/internal/continuity"
	"github.com/roach88/framegraph/internal/ir"
)

// Options tune the schedule builder.
type Options struct {
	// Policies supplies continuity policies per role. Nil uses the defaults.
	Policies *continuity.Table
}

// Build is the output of BuildSchedule.
type Build struct {
	Schedule ir.ScheduleIR
	Debug    ir.DebugIndex
	Warnings []CompileError
}

// renderTarget is one render block whose inputs traced to field expressions.
type renderTarget struct {
	block    ir.BlockID
	instance ir.Instance
	pos      ir.ExprID
	posSrc   ir.PortRef
	color    ir.ExprID
	colorSrc ir.PortRef
	scale    ir.ExprID
	scaleSrc ir.PortRef
	opacity  ir.ExprID
	opSrc    ir.PortRef
}

type pipelineKey struct {
	inst ir.InstanceID
	role ir.Role
	expr ir.ExprID
}

// builder accumulates the step partitions of one schedule.
type builder struct {
	g        *ir.BlockGraph
	b        *ir.LoweredBundle
	tbl      *ir.ExprTable
	slots    *ir.SlotAllocator
	policies *continuity.Table

	instMemo  map[ir.ExprID]ir.InstanceID
	events    *eventReach
	mapBuilt  map[ir.InstanceID]bool
	matSlots  map[ir.ExprID]ir.ValueSlot
	pipelines map[pipelineKey]ir.ValueSlot

	pre, mapBuilds, materializes, applies  []stepAt
	eventSteps, post, renders, stateWrites []stepAt

	slotBlocks map[ir.ValueSlot]ir.BlockID
	errs       []CompileError
	warnings   []CompileError
}

// stepAt pairs a step with the block it is attributed to.
type stepAt struct {
	step  ir.Step
	block ir.BlockID
}

// BuildSchedule orders the lowered bundle into a schedule. The bundle's slot
// allocator is continued for field buffers, so BuildSchedule runs once per
// bundle.
//
// Render targets whose position or color is not a field are skipped with a
// warning. A target whose instance is missing or has no shape is an internal
// error and fails the build.
func BuildSchedule(g *ir.BlockGraph, b *ir.LoweredBundle, opts Options) (*Build, error) {
	if b.Slots == nil {
		b.Slots = ir.NewSlotAllocator()
	}
	bl := &builder{
		g:          g,
		b:          b,
		tbl:        b.Exprs,
		slots:      b.Slots,
		policies:   opts.Policies,
		instMemo:   make(map[ir.ExprID]ir.InstanceID),
		events:     newEventReach(b.Exprs),
		mapBuilt:   make(map[ir.InstanceID]bool),
		matSlots:   make(map[ir.ExprID]ir.ValueSlot),
		pipelines:  make(map[pipelineKey]ir.ValueSlot),
		slotBlocks: make(map[ir.ValueSlot]ir.BlockID),
	}
	if bl.policies == nil {
		bl.policies = continuity.DefaultTable()
	}

	for _, t := range bl.collectTargets() {
		bl.scheduleTarget(t)
	}
	if len(bl.errs) > 0 {
		return nil, CompileErrors(bl.errs)
	}
	bl.scheduleScalars()
	bl.scheduleEvents()
	bl.scheduleStates()

	var (
		steps []ir.Step
		debug = ir.DebugIndex{SlotBlocks: bl.slotBlocks}
	)
	for _, part := range [][]stepAt{
		bl.pre, bl.mapBuilds, bl.materializes, bl.applies,
		bl.eventSteps, bl.post, bl.renders, bl.stateWrites,
	} {
		for _, s := range part {
			steps = append(steps, s.step)
			debug.StepBlocks = append(debug.StepBlocks, s.block)
		}
	}

	stateSlots, stateSize := b.Slots.StateCount()
	eventExprs := 0
	for i := range b.Exprs.Len() {
		if _, ok := b.Exprs.Get(ir.ExprID(i)).(*ir.Event); ok {
			eventExprs++
		}
	}

	slog.Debug("schedule built",
		"steps", len(steps),
		"renders", len(bl.renders),
		"continuity", len(bl.applies),
		"warnings", len(bl.warnings),
	)
	return &Build{
		Schedule: ir.ScheduleIR{
			Time:           g.Time,
			Instances:      b.Instances.All(),
			Steps:          steps,
			States:         b.States,
			StateSlotCount: stateSlots,
			StateSize:      stateSize,
			EventSlotCount: b.Slots.EventCount(),
			EventExprCount: eventExprs,
		},
		Debug:    debug,
		Warnings: bl.warnings,
	}, nil
}

// trace follows the edge into block.port back to the producing expression.
func (bl *builder) trace(block ir.BlockID, port string) (ir.ExprID, ir.PortRef, bool) {
	e, ok := bl.g.InputEdge(block, port)
	if !ok {
		return ir.NoExpr, ir.PortRef{}, false
	}
	id, ok := bl.b.Output(e.From)
	if !ok || !bl.tbl.Has(id) {
		return ir.NoExpr, e.From, false
	}
	return id, e.From, true
}

func (bl *builder) skip(block ir.BlockID, format string, args ...any) {
	w := warning(WarnSkippedRender, block, format, args...)
	slog.Debug("render target skipped", "block", block, "reason", w.Message)
	bl.warnings = append(bl.warnings, w)
}

func (bl *builder) collectTargets() []renderTarget {
	var targets []renderTarget
	for _, blk := range bl.g.BlocksWith(ir.CapabilityRender) {
		pos, posSrc, ok := bl.trace(blk.ID, "pos")
		if !ok {
			bl.skip(blk.ID, "render %s: pos is not connected to an expression", blk.ID)
			continue
		}
		color, colorSrc, ok := bl.trace(blk.ID, "color")
		if !ok {
			bl.skip(blk.ID, "render %s: color is not connected to an expression", blk.ID)
			continue
		}
		posT, colorT := bl.tbl.Type(pos), bl.tbl.Type(color)
		if !posT.IsField() || !colorT.IsField() {
			bl.skip(blk.ID, "render %s: pos (%s) and color (%s) must be fields", blk.ID, posT, colorT)
			continue
		}
		if posT.Payload != ir.PayloadVec2 && posT.Payload != ir.PayloadVec3 {
			bl.skip(blk.ID, "render %s: pos must be vec2 or vec3, got %s", blk.ID, posT.Payload)
			continue
		}
		if colorT.Payload != ir.PayloadColor {
			bl.skip(blk.ID, "render %s: color must be color, got %s", blk.ID, colorT.Payload)
			continue
		}

		instID, ok := InferInstance(bl.tbl, pos, bl.instMemo)
		if !ok {
			bl.skip(blk.ID, "render %s: cannot infer the instance of pos", blk.ID)
			continue
		}
		if colorInst, _ := InferInstance(bl.tbl, color, bl.instMemo); colorInst != instID {
			bl.skip(blk.ID, "render %s: color ranges over instance %d, pos over %d", blk.ID, colorInst, instID)
			continue
		}
		inst, ok := bl.b.Instances.Get(instID)
		if !ok {
			d := diag(ErrInstanceMissing, "render %s: instance %d is not registered (render targets must reference a registered instance)", blk.ID, instID)
			d.Block, d.Instance, d.Expr = blk.ID, instID, pos
			bl.errs = append(bl.errs, d)
			continue
		}
		if !inst.ShapeField.Valid() || !bl.tbl.Has(inst.ShapeField) {
			d := diag(ErrInstanceNoShape, "render %s: instance %d (%s) has no shape (every rendered instance carries a shape)", blk.ID, instID, inst.Key)
			d.Block, d.Instance = blk.ID, instID
			bl.errs = append(bl.errs, d)
			continue
		}

		t := renderTarget{
			block: blk.ID, instance: inst,
			pos: pos, posSrc: posSrc,
			color: color, colorSrc: colorSrc,
			scale: ir.NoExpr, opacity: ir.NoExpr,
		}
		if id, src, ok := bl.trace(blk.ID, "scale"); ok {
			t.scale, t.scaleSrc = id, src
		}
		if id, src, ok := bl.trace(blk.ID, "opacity"); ok {
			if i, isField := bl.tbl.Type(id).InstanceOf(); isField && i == instID {
				t.opacity, t.opSrc = id, src
			} else {
				bl.skip(blk.ID, "render %s: opacity must be a field of instance %d; ignored", blk.ID, instID)
			}
		}
		targets = append(targets, t)
	}
	return targets
}

func (bl *builder) scheduleTarget(t renderTarget) {
	inst := t.instance
	r := &ir.Render{
		Block:          t.block,
		Instance:       inst.ID,
		PositionStride: bl.tbl.Type(t.pos).Components(),
		Size:           ir.NoSlot,
		Opacity:        ir.NoSlot,
		Scale:          ir.NoExpr,
	}
	r.Position = bl.pipeline(t.block, inst, ir.RolePosition, t.pos, t.posSrc)
	r.Color = bl.pipeline(t.block, inst, ir.RoleColor, t.color, t.colorSrc)

	if t.scale.Valid() {
		st := bl.tbl.Type(t.scale)
		if i, isField := st.InstanceOf(); isField {
			if i == inst.ID && st.Components() == 1 {
				r.Size = bl.pipeline(t.block, inst, ir.RoleRadius, t.scale, t.scaleSrc)
			} else {
				bl.skip(t.block, "render %s: scale field must be a float field of instance %d; ignored", t.block, inst.ID)
			}
		} else {
			r.Scale = t.scale
		}
	}
	if t.opacity.Valid() {
		r.Opacity = bl.pipeline(t.block, inst, ir.RoleOpacity, t.opacity, t.opSrc)
	}
	r.Shape = bl.shape(t.block, inst)

	bl.renders = append(bl.renders, stepAt{r, t.block})
}

// pipeline schedules map-build, materialize and continuity-apply for one
// (instance, role, expression) and returns the stabilized buffer slot.
func (bl *builder) pipeline(block ir.BlockID, inst ir.Instance, role ir.Role, expr ir.ExprID, src ir.PortRef) ir.ValueSlot {
	key := pipelineKey{inst.ID, role, expr}
	if slot, ok := bl.pipelines[key]; ok {
		return slot
	}
	if !bl.mapBuilt[inst.ID] {
		bl.mapBuilt[inst.ID] = true
		bl.mapBuilds = append(bl.mapBuilds, stepAt{&ir.ContinuityMapBuild{Instance: inst.ID, Key: inst.Key}, block})
	}
	base := bl.materialize(block, inst, expr)
	t := bl.tbl.Type(expr)
	out := bl.slots.AllocObject(t)
	bl.slotBlocks[out] = block
	bl.applies = append(bl.applies, stepAt{&ir.ContinuityApply{
		Key:      fmt.Sprintf("%s#%s", role, src),
		Role:     role,
		Policy:   bl.policies.PolicyFor(role),
		Instance: inst.ID,
		Base:     base,
		Output:   out,
		Stride:   t.Components(),
	}, block})
	bl.pipelines[key] = out
	return out
}

// materialize schedules one field evaluation into a buffer slot, once per
// expression.
func (bl *builder) materialize(block ir.BlockID, inst ir.Instance, expr ir.ExprID) ir.ValueSlot {
	if slot, ok := bl.matSlots[expr]; ok {
		return slot
	}
	slot := bl.slots.AllocObject(bl.tbl.Type(expr))
	bl.slotBlocks[slot] = block
	bl.materializes = append(bl.materializes, stepAt{&ir.Materialize{Field: expr, Instance: inst.ID, Target: slot}, block})
	bl.matSlots[expr] = slot
	return slot
}

// shape resolves the geometry of an instance. Homogeneous populations carry a
// ShapeRef signal; heterogeneous ones a field of topology ids.
func (bl *builder) shape(block ir.BlockID, inst ir.Instance) ir.ShapeDescriptor {
	d := ir.ShapeDescriptor{PerElement: ir.NoSlot, ControlPoints: ir.NoSlot}
	if bl.tbl.Type(inst.ShapeField).IsField() {
		d.PerElement = bl.materialize(block, inst, inst.ShapeField)
		return d
	}
	ref, ok := bl.tbl.Get(inst.ShapeField).(*ir.ShapeRef)
	if !ok {
		d.Topology = ir.TopologyCircle
		return d
	}
	d.Topology = ref.Topology
	d.Params = ref.Params
	if ref.ControlPoints.Valid() {
		d.ControlPoints = bl.materialize(block, inst, ref.ControlPoints)
	}
	return d
}

// scheduleScalars emits one evaluation per registered signal, split on
// whether the signal reads an event this frame.
func (bl *builder) scheduleScalars() {
	strided := make(map[ir.ValueSlot]bool, len(bl.b.Strided))
	for _, s := range bl.b.Strided {
		strided[s.Target] = true
	}
	for _, s := range bl.b.Signals {
		if strided[s.Slot] {
			continue
		}
		bl.slotBlocks[s.Slot] = s.Block
		post := bl.events.reads(s.Expr)
		step := &ir.EvalValue{
			Expr:        s.Expr,
			Target:      s.Slot,
			EventTarget: -1,
			Strategy:    ir.StrategyFor(bl.tbl.Type(s.Expr)),
			PostEvent:   post,
		}
		if post {
			bl.post = append(bl.post, stepAt{step, s.Block})
		} else {
			bl.pre = append(bl.pre, stepAt{step, s.Block})
		}
	}
	for _, s := range bl.b.Strided {
		bl.slotBlocks[s.Target] = s.Block
		bl.pre = append(bl.pre, stepAt{&ir.SlotWriteStrided{Target: s.Target, Inputs: s.Inputs}, s.Block})
	}
}

func (bl *builder) scheduleEvents() {
	for _, e := range bl.b.Events {
		bl.eventSteps = append(bl.eventSteps, stepAt{&ir.EvalValue{
			Expr:        e.Expr,
			Target:      ir.NoSlot,
			EventTarget: e.Slot,
			Strategy:    ir.StrategyFor(bl.tbl.Type(e.Expr)),
		}, e.Block})
	}
}

func (bl *builder) scheduleStates() {
	for _, s := range bl.b.States {
		bl.stateWrites = append(bl.stateWrites, stepAt{&ir.StateWrite{
			Slot:    s.Slot,
			StateID: s.ID,
			Value:   s.Value,
		}, s.Block})
	}
}
