package ir

import "fmt"

// StorageBank is a typed storage array of the runtime.
type StorageBank uint8

const (
	BankF64 StorageBank = iota // wide float
	BankF32                    // narrow float
	BankI32
	BankU32
	BankObject
	NumBanks
)

var bankNames = [...]string{"f64", "f32", "i32", "u32", "object"}

func (b StorageBank) String() string {
	if int(b) < len(bankNames) {
		return bankNames[b]
	}
	return fmt.Sprintf("bank(%d)", b)
}

// BankFor returns the bank a signal of payload p is stored in.
func BankFor(p PayloadKind) StorageBank {
	switch p {
	case PayloadInt, PayloadBool, PayloadShape:
		return BankI32
	case PayloadColor:
		return BankF32
	default:
		return BankF64
	}
}

// ValueSlot indexes the slot metadata table.
type ValueSlot int32

// NoSlot marks an absent optional slot.
const NoSlot ValueSlot = -1

// EventSlot indexes the per-frame event flag bytes.
type EventSlot int32

// StateSlot indexes persistent-state declarations.
type StateSlot int32

// SlotMeta locates one value slot inside its bank.
type SlotMeta struct {
	Slot   ValueSlot     `json:"slot"`
	Bank   StorageBank   `json:"bank"`
	Offset int           `json:"offset"`
	Stride int           `json:"stride"`
	Type   CanonicalType `json:"-"`
}

// SlotAllocator hands out slots with monotonically increasing, non-overlapping
// offsets per bank. Lowering allocates signal slots first; the schedule builder
// continues with the same allocator.
type SlotAllocator struct {
	metas     []SlotMeta
	bankSize  [NumBanks]int
	events    int
	states    int
	stateSize int
}

// NewSlotAllocator creates an empty allocator.
func NewSlotAllocator() *SlotAllocator {
	return &SlotAllocator{}
}

// Alloc reserves a slot of t's component count in bank.
func (a *SlotAllocator) Alloc(t CanonicalType, bank StorageBank) ValueSlot {
	stride := t.Components()
	if bank == BankObject {
		stride = 1
	}
	slot := ValueSlot(len(a.metas))
	a.metas = append(a.metas, SlotMeta{
		Slot:   slot,
		Bank:   bank,
		Offset: a.bankSize[bank],
		Stride: stride,
		Type:   t,
	})
	a.bankSize[bank] += stride
	return slot
}

// AllocSignal reserves a slot in the bank BankFor chooses for t.
func (a *SlotAllocator) AllocSignal(t CanonicalType) ValueSlot {
	return a.Alloc(t, BankFor(t.Payload))
}

// AllocObject reserves an object slot, used for field buffers.
func (a *SlotAllocator) AllocObject(t CanonicalType) ValueSlot {
	return a.Alloc(t, BankObject)
}

// AllocEvent reserves one event flag.
func (a *SlotAllocator) AllocEvent() EventSlot {
	s := EventSlot(a.events)
	a.events++
	return s
}

// AllocState reserves a persistent-state slot of the given stride and returns
// the slot and its offset in the flat state array.
func (a *SlotAllocator) AllocState(stride int) (StateSlot, int) {
	s := StateSlot(a.states)
	off := a.stateSize
	a.states++
	a.stateSize += stride
	return s, off
}

// Meta returns the metadata of slot.
func (a *SlotAllocator) Meta(slot ValueSlot) (SlotMeta, bool) {
	if slot < 0 || int(slot) >= len(a.metas) {
		return SlotMeta{}, false
	}
	return a.metas[slot], true
}

// Metas returns a copy of the slot metadata table.
func (a *SlotAllocator) Metas() []SlotMeta {
	return append([]SlotMeta(nil), a.metas...)
}

// BankSizes returns the number of entries each bank needs.
func (a *SlotAllocator) BankSizes() [NumBanks]int {
	return a.bankSize
}

// EventCount returns the number of event flags allocated.
func (a *SlotAllocator) EventCount() int {
	return a.events
}

// StateCount returns the number of persistent-state slots and their total size.
func (a *SlotAllocator) StateCount() (slots, size int) {
	return a.states, a.stateSize
}
