package ir

import "fmt"

// ExprID indexes an expression in an ExprTable.
type ExprID int32

// NoExpr marks an absent optional expression reference.
const NoExpr ExprID = -1

// Valid reports whether id refers to an expression (it may still be out of range).
func (id ExprID) Valid() bool {
	return id >= 0
}

// Expr is one node of the typed expression table.
//
// The set of variants is closed; the unexported marker method keeps other
// packages from adding new ones.
type Expr interface {
	// Type returns the node's canonical type.
	Type() CanonicalType
	// Operands returns the IDs of every node this node reads.
	Operands() []ExprID
	isExpr()
}

// Typed is embedded by every expression variant.
type Typed struct {
	T CanonicalType
}

// Type implements Expr.
func (t Typed) Type() CanonicalType { return t.T }

// Const is a literal value; Value holds Payload.Components() numbers.
type Const struct {
	Typed
	Value []float64
}

// TimeRead selects which time quantity a Time node reads.
type TimeRead uint8

const (
	TimeAbsMs TimeRead = iota
	TimeDeltaMs
	TimePhaseA
	TimePhaseB
	TimeProgress
)

var timeReadNames = [...]string{"ms", "dt", "phaseA", "phaseB", "progress"}

func (r TimeRead) String() string {
	if int(r) < len(timeReadNames) {
		return timeReadNames[r]
	}
	return fmt.Sprintf("time(%d)", r)
}

// ParseTimeRead converts a time read name.
func ParseTimeRead(s string) (TimeRead, bool) {
	for i, n := range timeReadNames {
		if n == s {
			return TimeRead(i), true
		}
	}
	return 0, false
}

// Time reads the frame clock.
type Time struct {
	Typed
	Read TimeRead
}

// External reads a host-supplied input channel (pointer, audio level, ...).
type External struct {
	Typed
	Channel string
}

// State reads a persistent-state slot as it was left by the previous frame's
// StateWrite step.
type State struct {
	Typed
	StateID string
	Slot    StateSlot
}

// ShapeRef describes the geometry of every element of an instance.
type ShapeRef struct {
	Typed
	Topology      TopologyID
	Params        []ExprID // signal scalars, one per Topology parameter
	ControlPoints ExprID   // optional vec2 field for path topologies
}

// EventRead exposes an event's fired flag as a 0/1 float signal.
type EventRead struct {
	Typed
	Event ExprID
}

// EventKind selects the firing rule of an Event node.
type EventKind uint8

const (
	EventPulse EventKind = iota
	EventWrap
	EventThreshold
)

var eventKindNames = [...]string{"pulse", "wrap", "threshold"}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return fmt.Sprintf("event(%d)", k)
}

// ParseEventKind converts an event kind name.
func ParseEventKind(s string) (EventKind, bool) {
	for i, n := range eventKindNames {
		if n == s {
			return EventKind(i), true
		}
	}
	return 0, false
}

// Event defines a discrete event.
//   - pulse fires every frame
//   - wrap fires when phase A wraps around
//   - threshold fires on the frame Source rises to or above Threshold
type Event struct {
	Typed
	Kind      EventKind
	Source    ExprID
	Threshold float64
}

// IntrinsicKind selects a per-element built-in field.
type IntrinsicKind uint8

const (
	IntrinsicIndex IntrinsicKind = iota
	IntrinsicNormalizedIndex
	IntrinsicRandom
)

var intrinsicNames = [...]string{"index", "normalizedIndex", "random"}

func (k IntrinsicKind) String() string {
	if int(k) < len(intrinsicNames) {
		return intrinsicNames[k]
	}
	return fmt.Sprintf("intrinsic(%d)", k)
}

// ParseIntrinsic converts an intrinsic name.
func ParseIntrinsic(s string) (IntrinsicKind, bool) {
	for i, n := range intrinsicNames {
		if n == s {
			return IntrinsicKind(i), true
		}
	}
	return 0, false
}

// Intrinsic is a per-element built-in field of its type's instance.
type Intrinsic struct {
	Typed
	Kind IntrinsicKind
}

// KernelOp is the combinator shape of a Kernel node.
type KernelOp uint8

const (
	OpMap KernelOp = iota
	OpZip
	OpZipSig
	OpBroadcast
	OpReduce
	OpPathDerivative
)

var kernelOpNames = [...]string{"map", "zip", "zipSig", "broadcast", "reduce", "pathDerivative"}

func (op KernelOp) String() string {
	if int(op) < len(kernelOpNames) {
		return kernelOpNames[op]
	}
	return fmt.Sprintf("op(%d)", op)
}

// ParseKernelOp converts a combinator name.
func ParseKernelOp(s string) (KernelOp, bool) {
	for i, n := range kernelOpNames {
		if n == s {
			return KernelOp(i), true
		}
	}
	return 0, false
}

// HasFn reports whether nodes with this op carry a function reference.
func (op KernelOp) HasFn() bool {
	return op == OpMap || op == OpZip || op == OpZipSig
}

// Reducer folds a field into a signal.
type Reducer uint8

const (
	ReduceSum Reducer = iota
	ReduceMin
	ReduceMax
	ReduceMean
)

var reducerNames = [...]string{"sum", "min", "max", "mean"}

func (r Reducer) String() string {
	if int(r) < len(reducerNames) {
		return reducerNames[r]
	}
	return fmt.Sprintf("reduce(%d)", r)
}

// ParseReducer converts a reducer name.
func ParseReducer(s string) (Reducer, bool) {
	for i, n := range reducerNames {
		if n == s {
			return Reducer(i), true
		}
	}
	return 0, false
}

// KernelABI is the calling convention of a resolved kernel.
type KernelABI uint8

const (
	ABIUnresolved KernelABI = iota
	ABIScalar
	ABILane
)

// KernelHandle indexes a kernel within its ABI's dispatch array.
type KernelHandle int32

// FnRef names the function applied by a Kernel node. Upstream fills Name;
// kernel resolution fills Handle and ABI exactly once.
type FnRef struct {
	Name   string
	Handle KernelHandle
	ABI    KernelABI
}

// Resolved reports whether the reference has been bound to a handle.
func (f FnRef) Resolved() bool {
	return f.ABI != ABIUnresolved
}

// Kernel combines operands with a pure function.
//   - map:            Args[0] -> out, Fn applied per component or per lane
//   - zip:            Args... (all same cardinality) -> out
//   - zipSig:         Args (fields) + Signals (signals) -> field
//   - broadcast:      Args[0] signal -> field of T's instance
//   - reduce:         Args[0] field -> signal, folded with Reducer
//   - pathDerivative: Args[0] vec2 field of a closed loop -> tangent field
type Kernel struct {
	Typed
	Op      KernelOp
	Args    []ExprID
	Signals []ExprID
	Fn      FnRef
	Reducer Reducer
}

// Operands implementations.

func (*Const) Operands() []ExprID     { return nil }
func (*Time) Operands() []ExprID      { return nil }
func (*External) Operands() []ExprID  { return nil }
func (*State) Operands() []ExprID     { return nil }
func (*Intrinsic) Operands() []ExprID { return nil }

func (e *ShapeRef) Operands() []ExprID {
	ops := append([]ExprID(nil), e.Params...)
	if e.ControlPoints.Valid() {
		ops = append(ops, e.ControlPoints)
	}
	return ops
}

func (e *EventRead) Operands() []ExprID { return []ExprID{e.Event} }

func (e *Event) Operands() []ExprID {
	if e.Source.Valid() {
		return []ExprID{e.Source}
	}
	return nil
}

func (e *Kernel) Operands() []ExprID {
	ops := make([]ExprID, 0, len(e.Args)+len(e.Signals))
	ops = append(ops, e.Args...)
	return append(ops, e.Signals...)
}

func (*Const) isExpr()     {}
func (*Time) isExpr()      {}
func (*External) isExpr()  {}
func (*State) isExpr()     {}
func (*ShapeRef) isExpr()  {}
func (*EventRead) isExpr() {}
func (*Event) isExpr()     {}
func (*Intrinsic) isExpr() {}
func (*Kernel) isExpr()    {}

// ExprTable is the dense, append-only expression array.
type ExprTable struct {
	nodes []Expr
}

// NewExprTable creates an empty table.
func NewExprTable() *ExprTable {
	return &ExprTable{}
}

// Append places e and returns its ID.
func (t *ExprTable) Append(e Expr) ExprID {
	t.nodes = append(t.nodes, e)
	return ExprID(len(t.nodes) - 1)
}

// Len returns the number of nodes.
func (t *ExprTable) Len() int {
	return len(t.nodes)
}

// Get returns the node at id, or nil when id is out of range.
func (t *ExprTable) Get(id ExprID) Expr {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Has reports whether id is in range.
func (t *ExprTable) Has(id ExprID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// Type returns the canonical type of id. Callers must check Has first.
func (t *ExprTable) Type(id ExprID) CanonicalType {
	return t.nodes[id].Type()
}

// ResolveFn performs the one permitted mutation: binding a kernel node's
// symbolic FnRef to a resolved handle.
func (t *ExprTable) ResolveFn(id ExprID, handle KernelHandle, abi KernelABI) error {
	k, ok := t.Get(id).(*Kernel)
	if !ok {
		return fmt.Errorf("expr %d is not a kernel node", id)
	}
	if k.Fn.Resolved() {
		return fmt.Errorf("expr %d: kernel %q already resolved", id, k.Fn.Name)
	}
	if abi == ABIUnresolved {
		return fmt.Errorf("expr %d: cannot resolve %q to an unresolved ABI", id, k.Fn.Name)
	}
	k.Fn.Handle = handle
	k.Fn.ABI = abi
	return nil
}
