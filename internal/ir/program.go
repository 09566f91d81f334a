package ir

// SignalDecl registers a signal slot produced by lowering.
type SignalDecl struct {
	Slot  ValueSlot
	Expr  ExprID
	Block BlockID
}

// EventDecl registers an event slot produced by lowering.
type EventDecl struct {
	Slot  EventSlot
	Expr  ExprID
	Block BlockID
}

// StridedDecl is a bulk strided write emitted by block lowering.
type StridedDecl struct {
	Target ValueSlot
	Inputs []ExprID
	Block  BlockID
}

// StateDecl declares one persistent-state slot. Value is the expression
// written back at the end of every frame; State nodes read the slot.
type StateDecl struct {
	ID      string    `json:"id"`
	Slot    StateSlot `json:"slot"`
	Offset  int       `json:"offset"`
	Stride  int       `json:"stride"`
	Initial []float64 `json:"initial"`
	Value   ExprID    `json:"value"`
	Block   BlockID   `json:"block,omitempty"`
}

// LoweredBundle is everything upstream lowering hands to the schedule builder.
type LoweredBundle struct {
	Exprs *ExprTable
	// Outputs maps block -> output port -> expression.
	Outputs   map[BlockID]map[string]ExprID
	Instances *InstanceRegistry
	Strided   []StridedDecl
	Signals   []SignalDecl
	Events    []EventDecl
	States    []StateDecl
	Slots     *SlotAllocator
	// ExprBlocks attributes expressions to the block that lowered them.
	// Best effort; used for error isolation and debugging.
	ExprBlocks map[ExprID]BlockID
}

// Output resolves a block output port to its expression.
func (b *LoweredBundle) Output(p PortRef) (ExprID, bool) {
	ports, ok := b.Outputs[p.Block]
	if !ok {
		return NoExpr, false
	}
	id, ok := ports[p.Port]
	return id, ok
}

// ScheduleIR is the ordered execution plan of one compiled program.
type ScheduleIR struct {
	Time      TimeModel
	Instances []Instance
	Steps     []Step
	States    []StateDecl
	// StateSlotCount and StateSize describe the flat persistent-state array.
	StateSlotCount int
	StateSize      int
	EventSlotCount int
	EventExprCount int
}

// DebugIndex maps steps and slots back to source blocks. Best effort.
type DebugIndex struct {
	StepBlocks []BlockID
	SlotBlocks map[ValueSlot]BlockID
}

// CompiledProgram is the executable output of the compiler.
type CompiledProgram struct {
	Exprs     *ExprTable
	Schedule  ScheduleIR
	Slots     []SlotMeta
	BankSizes [NumBanks]int
	Debug     DebugIndex
	// Hash is the content hash of the schedule; see ProgramHash.
	Hash string
}

// Instance returns the instance with the given id.
func (p *CompiledProgram) Instance(id InstanceID) (Instance, bool) {
	for _, inst := range p.Schedule.Instances {
		if inst.ID == id {
			return inst, true
		}
	}
	return Instance{}, false
}
