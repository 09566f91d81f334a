package ir

import "fmt"

// Step is one entry of a schedule. The variant set is closed.
type Step interface {
	Kind() StepKind
	isStep()
}

// StepKind tags step variants for reporting. The executor dispatches with a
// type switch, not on this tag.
type StepKind uint8

const (
	StepEvalValue StepKind = iota
	StepSlotWriteStrided
	StepContinuityMapBuild
	StepMaterialize
	StepContinuityApply
	StepRender
	StepStateWrite
)

var stepKindNames = [...]string{
	"evalValue", "slotWriteStrided", "continuityMapBuild", "materialize",
	"continuityApply", "render", "stateWrite",
}

func (k StepKind) String() string {
	if int(k) < len(stepKindNames) {
		return stepKindNames[k]
	}
	return fmt.Sprintf("step(%d)", k)
}

// EvalStrategy is fixed at compile time from the evaluated node's type so the
// executor never re-inspects type tags.
type EvalStrategy uint8

const (
	ContinuousScalar EvalStrategy = iota
	ContinuousField
	DiscreteScalar
	DiscreteField
)

// StrategyFor derives the strategy of t.
func StrategyFor(t CanonicalType) EvalStrategy {
	switch {
	case t.IsEvent() && t.IsField():
		return DiscreteField
	case t.IsEvent():
		return DiscreteScalar
	case t.IsField():
		return ContinuousField
	default:
		return ContinuousScalar
	}
}

// EvalValue evaluates one expression. Continuous strategies write Target;
// discrete strategies write EventTarget.
type EvalValue struct {
	Expr        ExprID
	Target      ValueSlot
	EventTarget EventSlot
	Strategy    EvalStrategy
	// PostEvent is true when the expression transitively reads an event.
	PostEvent bool
}

// SlotWriteStrided writes one scalar expression per component of Target.
type SlotWriteStrided struct {
	Target ValueSlot
	Inputs []ExprID
}

// ContinuityMapBuild detects population changes of Instance and publishes the
// element mapping for this frame.
type ContinuityMapBuild struct {
	Instance InstanceID
	Key      string // stable instance key
}

// Materialize evaluates Field over every element of Instance into Target.
type Materialize struct {
	Field    ExprID
	Instance InstanceID
	Target   ValueSlot
}

// ContinuityApply reads the materialized Base buffer and last frame's
// stabilized buffer, and writes the new stabilized buffer to Output.
type ContinuityApply struct {
	// Key is the stable identity of this target across recompiles.
	Key      string
	Role     Role
	Policy   ContinuityPolicy
	Instance InstanceID
	Base     ValueSlot
	Output   ValueSlot
	Stride   int
}

// ShapeDescriptor is the resolved geometry of a render target.
type ShapeDescriptor struct {
	Topology TopologyID
	Params   []ExprID
	// PerElement is set for heterogeneous populations: a buffer of one
	// topology id per element.
	PerElement    ValueSlot
	ControlPoints ValueSlot
}

// Render assembles one draw operation.
type Render struct {
	Block          BlockID
	Instance       InstanceID
	Position       ValueSlot
	PositionStride int
	Color          ValueSlot
	Size           ValueSlot // optional per-element size buffer
	Opacity        ValueSlot // optional per-element opacity multiplier
	Scale          ExprID    // optional uniform scale signal
	Shape          ShapeDescriptor
}

// StateWrite copies the current value of Value into a persistent-state slot.
type StateWrite struct {
	Slot    StateSlot
	StateID string
	Value   ExprID
}

func (*EvalValue) Kind() StepKind          { return StepEvalValue }
func (*SlotWriteStrided) Kind() StepKind   { return StepSlotWriteStrided }
func (*ContinuityMapBuild) Kind() StepKind { return StepContinuityMapBuild }
func (*Materialize) Kind() StepKind        { return StepMaterialize }
func (*ContinuityApply) Kind() StepKind    { return StepContinuityApply }
func (*Render) Kind() StepKind             { return StepRender }
func (*StateWrite) Kind() StepKind         { return StepStateWrite }

func (*EvalValue) isStep()          {}
func (*SlotWriteStrided) isStep()   {}
func (*ContinuityMapBuild) isStep() {}
func (*Materialize) isStep()        {}
func (*ContinuityApply) isStep()    {}
func (*Render) isStep()             {}
func (*StateWrite) isStep()         {}

// TopologyID identifies a shape topology.
type TopologyID int32

const (
	TopologyCircle TopologyID = iota
	TopologyRect
	TopologyPath
)

var topologies = []struct {
	name   string
	params []string
}{
	{"circle", []string{"radius"}},
	{"rect", []string{"width", "height"}},
	{"path", nil},
}

// TopologyName returns the topology's name.
func TopologyName(id TopologyID) string {
	if id < 0 || int(id) >= len(topologies) {
		return fmt.Sprintf("topology(%d)", id)
	}
	return topologies[id].name
}

// TopologyParams returns the ordered parameter names of a topology.
func TopologyParams(id TopologyID) []string {
	if id < 0 || int(id) >= len(topologies) {
		return nil
	}
	return topologies[id].params
}

// ParseTopology converts a topology name.
func ParseTopology(s string) (TopologyID, bool) {
	for i, t := range topologies {
		if t.name == s {
			return TopologyID(i), true
		}
	}
	return 0, false
}
