package state

import (
	"fmt"

	"github.com/roach88/framegraph/internal/continuity"
	"github.com/roach88/framegraph/internal/ir"
)

// ProgramState is the runtime storage of one compiled program.
type ProgramState struct {
	Slots []ir.SlotMeta

	F64     []float64
	F32     []float32
	I32     []int32
	U32     []uint32
	Objects [][]float32

	// State is the flat persistent-state array laid out by the schedule.
	State []float64
	// Events holds one flag per event slot, cleared at the start of a frame.
	Events []byte

	Cache *FrameCache

	// Mappings holds this frame's element mapping per instance.
	Mappings map[ir.InstanceID]continuity.Mapping
	// EventPrev holds the previous source value of threshold events.
	EventPrev map[ir.ExprID]float64
}

// NewProgramState sizes storage from prog's slot metadata and initializes
// persistent state from declared initial values.
func NewProgramState(prog *ir.CompiledProgram) *ProgramState {
	ps := &ProgramState{
		Slots:     prog.Slots,
		F64:       make([]float64, prog.BankSizes[ir.BankF64]),
		F32:       make([]float32, prog.BankSizes[ir.BankF32]),
		I32:       make([]int32, prog.BankSizes[ir.BankI32]),
		U32:       make([]uint32, prog.BankSizes[ir.BankU32]),
		Objects:   make([][]float32, prog.BankSizes[ir.BankObject]),
		State:     make([]float64, prog.Schedule.StateSize),
		Events:    make([]byte, prog.Schedule.EventSlotCount),
		Cache:     NewFrameCache(prog.Exprs.Len()),
		Mappings:  make(map[ir.InstanceID]continuity.Mapping),
		EventPrev: make(map[ir.ExprID]float64),
	}
	for _, d := range prog.Schedule.States {
		copy(ps.State[d.Offset:d.Offset+d.Stride], d.Initial)
	}
	return ps
}

// Meta returns the metadata of slot.
func (ps *ProgramState) Meta(slot ir.ValueSlot) (ir.SlotMeta, error) {
	if slot < 0 || int(slot) >= len(ps.Slots) {
		return ir.SlotMeta{}, fmt.Errorf("slot %d out of range (%d slots)", slot, len(ps.Slots))
	}
	return ps.Slots[slot], nil
}

// WriteSignal stores v into a scalar bank slot. Values narrower than the
// slot stride leave the remaining components untouched.
func (ps *ProgramState) WriteSignal(slot ir.ValueSlot, v []float64) error {
	m, err := ps.Meta(slot)
	if err != nil {
		return err
	}
	n := min(len(v), m.Stride)
	switch m.Bank {
	case ir.BankF64:
		copy(ps.F64[m.Offset:m.Offset+n], v)
	case ir.BankF32:
		for i := range n {
			ps.F32[m.Offset+i] = float32(v[i])
		}
	case ir.BankI32:
		for i := range n {
			ps.I32[m.Offset+i] = int32(v[i])
		}
	case ir.BankU32:
		for i := range n {
			ps.U32[m.Offset+i] = uint32(v[i])
		}
	default:
		return fmt.Errorf("slot %d: bank %s holds no scalars", slot, m.Bank)
	}
	return nil
}

// ReadSignal appends the components of a scalar bank slot to dst.
func (ps *ProgramState) ReadSignal(dst []float64, slot ir.ValueSlot) ([]float64, error) {
	m, err := ps.Meta(slot)
	if err != nil {
		return dst, err
	}
	for i := range m.Stride {
		switch m.Bank {
		case ir.BankF64:
			dst = append(dst, ps.F64[m.Offset+i])
		case ir.BankF32:
			dst = append(dst, float64(ps.F32[m.Offset+i]))
		case ir.BankI32:
			dst = append(dst, float64(ps.I32[m.Offset+i]))
		case ir.BankU32:
			dst = append(dst, float64(ps.U32[m.Offset+i]))
		default:
			return dst, fmt.Errorf("slot %d: bank %s holds no scalars", slot, m.Bank)
		}
	}
	return dst, nil
}

// SetBuffer stores a field buffer in an object slot.
func (ps *ProgramState) SetBuffer(slot ir.ValueSlot, buf []float32) error {
	m, err := ps.Meta(slot)
	if err != nil {
		return err
	}
	if m.Bank != ir.BankObject {
		return fmt.Errorf("slot %d: bank %s holds no buffers", slot, m.Bank)
	}
	ps.Objects[m.Offset] = buf
	return nil
}

// Buffer returns the field buffer stored in an object slot.
func (ps *ProgramState) Buffer(slot ir.ValueSlot) ([]float32, error) {
	m, err := ps.Meta(slot)
	if err != nil {
		return nil, err
	}
	if m.Bank != ir.BankObject {
		return nil, fmt.Errorf("slot %d: bank %s holds no buffers", slot, m.Bank)
	}
	return ps.Objects[m.Offset], nil
}

// ClearEvents resets every event flag.
func (ps *ProgramState) ClearEvents() {
	clear(ps.Events)
}
