package ir

import "fmt"

// PayloadKind is the value kind carried by an expression.
type PayloadKind uint8

const (
	PayloadFloat PayloadKind = iota
	PayloadInt
	PayloadBool
	PayloadVec2
	PayloadVec3
	PayloadColor
	PayloadShape
)

var payloadNames = [...]string{"float", "int", "bool", "vec2", "vec3", "color", "shape"}

func (p PayloadKind) String() string {
	if int(p) < len(payloadNames) {
		return payloadNames[p]
	}
	return fmt.Sprintf("payload(%d)", p)
}

// Components returns the number of float components one value of this payload
// occupies in a buffer.
func (p PayloadKind) Components() int {
	switch p {
	case PayloadVec2:
		return 2
	case PayloadVec3:
		return 3
	case PayloadColor:
		return 4
	default:
		return 1
	}
}

// ParsePayload converts a payload name to a PayloadKind.
func ParsePayload(s string) (PayloadKind, bool) {
	for i, n := range payloadNames {
		if n == s {
			return PayloadKind(i), true
		}
	}
	return 0, false
}

// Unit annotates a payload with its physical interpretation.
type Unit string

const (
	UnitNone    Unit = ""
	UnitPhase01 Unit = "phase01"
	UnitRadians Unit = "radians"
	UnitDegrees Unit = "degrees"
	UnitMs      Unit = "ms"
	UnitNorm01  Unit = "norm01"
	UnitPx      Unit = "px"
)

// ValidUnits defines allowed unit names.
var ValidUnits = map[Unit]bool{
	UnitNone:    true,
	UnitPhase01: true,
	UnitRadians: true,
	UnitDegrees: true,
	UnitMs:      true,
	UnitNorm01:  true,
	UnitPx:      true,
}

// Axis is one extent axis: either an instantiated value or an unresolved
// inference variable. Only the frontend ever produces variables.
type Axis[T comparable] struct {
	value T
	varID int // 0 means instantiated
}

// Inst returns an instantiated axis.
func Inst[T comparable](v T) Axis[T] {
	return Axis[T]{value: v}
}

// Var returns an unresolved axis variable. id must be positive.
func Var[T comparable](id int) Axis[T] {
	return Axis[T]{varID: id}
}

// Instantiated reports whether the axis carries a concrete value.
func (a Axis[T]) Instantiated() bool {
	return a.varID == 0
}

// Value returns the concrete value. It panics on an unresolved variable.
func (a Axis[T]) Value() T {
	if a.varID != 0 {
		panic(fmt.Sprintf("ir: read of unresolved axis variable ?%d", a.varID))
	}
	return a.value
}

// Is reports whether the axis is instantiated to v.
func (a Axis[T]) Is(v T) bool {
	return a.varID == 0 && a.value == v
}

// CardinalityKind is zero (compile-time constant), one (signal) or many (field).
type CardinalityKind uint8

const (
	CardZero CardinalityKind = iota
	CardOne
	CardMany
)

// Cardinality is a cardinality with the owning instance for CardMany.
type Cardinality struct {
	Kind     CardinalityKind
	Instance InstanceID
}

// Temporality is continuous (sampled every frame) or discrete (events).
type Temporality uint8

const (
	Continuous Temporality = iota
	Discrete
)

// Perspective distinguishes world-global values from locally framed ones.
type Perspective uint8

const (
	PerspectiveGlobal Perspective = iota
	PerspectiveLocal
)

// Branch distinguishes the main timeline from preview evaluation.
type Branch uint8

const (
	BranchMain Branch = iota
	BranchPreview
)

// Binding describes how strongly a value is tied to element identity.
type Binding uint8

const (
	BindingUnbound Binding = iota
	BindingWeak
	BindingStrong
	BindingIdentity
)

// Extent is the five-axis classification of a value.
type Extent struct {
	Cardinality Axis[Cardinality]
	Temporality Axis[Temporality]
	Perspective Axis[Perspective]
	Branch      Axis[Branch]
	Binding     Axis[Binding]
}

// Instantiated reports whether all five axes carry concrete values.
func (e Extent) Instantiated() bool {
	return e.Cardinality.Instantiated() &&
		e.Temporality.Instantiated() &&
		e.Perspective.Instantiated() &&
		e.Branch.Instantiated() &&
		e.Binding.Instantiated()
}

// CanonicalType is a value's full static descriptor.
type CanonicalType struct {
	Payload PayloadKind
	Unit    Unit
	Extent  Extent
}

func baseExtent(card Cardinality, temp Temporality) Extent {
	return Extent{
		Cardinality: Inst(card),
		Temporality: Inst(temp),
		Perspective: Inst(PerspectiveGlobal),
		Branch:      Inst(BranchMain),
		Binding:     Inst(BindingUnbound),
	}
}

// ConstType returns the type of a compile-time constant.
func ConstType(p PayloadKind) CanonicalType {
	return CanonicalType{Payload: p, Extent: baseExtent(Cardinality{Kind: CardZero}, Continuous)}
}

// SignalType returns the type of a continuous single value.
func SignalType(p PayloadKind) CanonicalType {
	return CanonicalType{Payload: p, Extent: baseExtent(Cardinality{Kind: CardOne}, Continuous)}
}

// FieldType returns the type of a continuous per-element value owned by inst.
func FieldType(p PayloadKind, inst InstanceID) CanonicalType {
	ext := baseExtent(Cardinality{Kind: CardMany, Instance: inst}, Continuous)
	ext.Binding = Inst(BindingIdentity)
	return CanonicalType{Payload: p, Extent: ext}
}

// EventType returns the type of a discrete single-valued event.
func EventType() CanonicalType {
	return CanonicalType{Payload: PayloadBool, Extent: baseExtent(Cardinality{Kind: CardOne}, Discrete)}
}

// WithUnit returns a copy of t annotated with u.
func (t CanonicalType) WithUnit(u Unit) CanonicalType {
	t.Unit = u
	return t
}

// Components is a shorthand for t.Payload.Components().
func (t CanonicalType) Components() int {
	return t.Payload.Components()
}

// cardinality returns the instantiated cardinality, or CardZero when unresolved.
func (t CanonicalType) cardinality() Cardinality {
	if !t.Extent.Cardinality.Instantiated() {
		return Cardinality{}
	}
	return t.Extent.Cardinality.Value()
}

// IsField reports whether t is a per-element (cardinality many) value.
func (t CanonicalType) IsField() bool {
	return t.cardinality().Kind == CardMany
}

// IsEvent reports whether t is discrete.
func (t CanonicalType) IsEvent() bool {
	return t.Extent.Temporality.Is(Discrete)
}

// InstanceOf returns the owning instance of a field type.
func (t CanonicalType) InstanceOf() (InstanceID, bool) {
	c := t.cardinality()
	if c.Kind != CardMany {
		return 0, false
	}
	return c.Instance, true
}

func (t CanonicalType) String() string {
	c := t.cardinality()
	kind := "signal"
	switch c.Kind {
	case CardZero:
		kind = "const"
	case CardMany:
		kind = fmt.Sprintf("field<%d>", c.Instance)
	}
	if t.IsEvent() {
		kind = "event:" + kind
	}
	if t.Unit != UnitNone {
		return fmt.Sprintf("%s %s[%s]", kind, t.Payload, t.Unit)
	}
	return fmt.Sprintf("%s %s", kind, t.Payload)
}
