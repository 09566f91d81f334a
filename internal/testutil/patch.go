package testutil

import (
	"fmt"

	"github.com/roach88/framegraph/internal/ir"
)

// PatchBuilder assembles a block graph and its lowered bundle the way
// upstream lowering would, for tests and demos.
type PatchBuilder struct {
	graph     *ir.BlockGraph
	bundle    *ir.LoweredBundle
	instances []ir.Instance
}

// NewPatchBuilder starts an empty patch under model.
func NewPatchBuilder(model ir.TimeModel) *PatchBuilder {
	return &PatchBuilder{
		graph: &ir.BlockGraph{Time: model},
		bundle: &ir.LoweredBundle{
			Exprs:      ir.NewExprTable(),
			Outputs:    make(map[ir.BlockID]map[string]ir.ExprID),
			Instances:  ir.NewInstanceRegistry(),
			Slots:      ir.NewSlotAllocator(),
			ExprBlocks: make(map[ir.ExprID]ir.BlockID),
		},
	}
}

// Block declares a block.
func (p *PatchBuilder) Block(id, typ string, c ir.Capability) *PatchBuilder {
	p.graph.Blocks = append(p.graph.Blocks, ir.Block{ID: ir.BlockID(id), Type: typ, Capability: c})
	return p
}

// Edge wires from.fromPort to to.toPort.
func (p *PatchBuilder) Edge(from, fromPort, to, toPort string) *PatchBuilder {
	p.graph.Edges = append(p.graph.Edges, ir.Edge{
		From: ir.PortRef{Block: ir.BlockID(from), Port: fromPort},
		To:   ir.PortRef{Block: ir.BlockID(to), Port: toPort},
	})
	return p
}

// Expr appends e, attributed to block.
func (p *PatchBuilder) Expr(block string, e ir.Expr) ir.ExprID {
	id := p.bundle.Exprs.Append(e)
	p.bundle.ExprBlocks[id] = ir.BlockID(block)
	return id
}

// Output publishes id as block.port.
func (p *PatchBuilder) Output(block, port string, id ir.ExprID) {
	b := ir.BlockID(block)
	if p.bundle.Outputs[b] == nil {
		p.bundle.Outputs[b] = make(map[string]ir.ExprID)
	}
	p.bundle.Outputs[b][port] = id
}

// Instance declares an instance; its shape is set with Shape.
func (p *PatchBuilder) Instance(key string, count int) ir.InstanceID {
	id := ir.InstanceID(len(p.instances))
	p.instances = append(p.instances, ir.Instance{ID: id, Key: key, Count: count, ShapeField: ir.NoExpr})
	return id
}

// Shape sets the shape expression of an instance.
func (p *PatchBuilder) Shape(id ir.InstanceID, shape ir.ExprID) {
	p.instances[id].ShapeField = shape
}

// Signal registers id as a signal evaluated every frame.
func (p *PatchBuilder) Signal(block string, id ir.ExprID) ir.ValueSlot {
	slot := p.bundle.Slots.AllocSignal(p.bundle.Exprs.Type(id))
	p.bundle.Signals = append(p.bundle.Signals, ir.SignalDecl{Slot: slot, Expr: id, Block: ir.BlockID(block)})
	return slot
}

// Event registers id as an event evaluated every frame.
func (p *PatchBuilder) Event(block string, id ir.ExprID) ir.EventSlot {
	slot := p.bundle.Slots.AllocEvent()
	p.bundle.Events = append(p.bundle.Events, ir.EventDecl{Slot: slot, Expr: id, Block: ir.BlockID(block)})
	return slot
}

// State declares persistent state. The returned slot is read with an
// ir.State node; the value expression is bound with StateValue.
func (p *PatchBuilder) State(block, stateID string, initial ...float64) ir.StateSlot {
	slot, off := p.bundle.Slots.AllocState(len(initial))
	p.bundle.States = append(p.bundle.States, ir.StateDecl{
		ID:      stateID,
		Slot:    slot,
		Offset:  off,
		Stride:  len(initial),
		Initial: initial,
		Value:   ir.NoExpr,
		Block:   ir.BlockID(block),
	})
	return slot
}

// StateValue sets the expression written back to a state slot every frame.
func (p *PatchBuilder) StateValue(slot ir.StateSlot, value ir.ExprID) {
	p.bundle.States[slot].Value = value
}

// Strided registers a strided write of scalar inputs into a new slot of
// type t.
func (p *PatchBuilder) Strided(block string, t ir.CanonicalType, inputs ...ir.ExprID) ir.ValueSlot {
	slot := p.bundle.Slots.AllocSignal(t)
	p.bundle.Strided = append(p.bundle.Strided, ir.StridedDecl{Target: slot, Inputs: inputs, Block: ir.BlockID(block)})
	return slot
}

// Build registers the instances and returns the graph and bundle.
func (p *PatchBuilder) Build() (*ir.BlockGraph, *ir.LoweredBundle) {
	for _, inst := range p.instances {
		if err := p.bundle.Instances.Add(inst); err != nil {
			panic(fmt.Sprintf("testutil: %v", err))
		}
	}
	return p.graph, p.bundle
}

// Helpers for common nodes.

// Const returns a constant node of payload p.
func Const(p ir.PayloadKind, v ...float64) *ir.Const {
	return &ir.Const{Typed: ir.Typed{T: ir.ConstType(p)}, Value: v}
}

// Scalar returns a float constant.
func Scalar(v float64) *ir.Const {
	return Const(ir.PayloadFloat, v)
}

// Kernel returns a kernel node of type t applying fn.
func Kernel(t ir.CanonicalType, op ir.KernelOp, fn string, args []ir.ExprID, signals ...ir.ExprID) *ir.Kernel {
	return &ir.Kernel{Typed: ir.Typed{T: t}, Op: op, Args: args, Signals: signals, Fn: ir.FnRef{Name: fn}}
}
