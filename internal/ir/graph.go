package ir

import "fmt"

// BlockID identifies a block in the user graph. Block IDs are stable across
// recompiles of the same patch.
type BlockID string

// Capability marks blocks the schedule builder treats specially.
type Capability string

const (
	CapabilityNone   Capability = ""
	CapabilityRender Capability = "render"
	CapabilityCamera Capability = "camera"
)

// Block is one node of the validated block graph.
type Block struct {
	ID         BlockID           `json:"id"`
	Type       string            `json:"type"`
	Capability Capability        `json:"capability,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

// PortRef names one port of one block.
type PortRef struct {
	Block BlockID `json:"block"`
	Port  string  `json:"port"`
}

func (p PortRef) String() string {
	return fmt.Sprintf("%s.%s", p.Block, p.Port)
}

// Edge connects an output port to an input port.
type Edge struct {
	From PortRef `json:"from"`
	To   PortRef `json:"to"`
}

// TimeModelKind selects finite or looping time.
type TimeModelKind uint8

const (
	TimeFinite TimeModelKind = iota
	TimeInfinite
)

// TimeModel is the patch-level clock description.
type TimeModel struct {
	Kind       TimeModelKind `json:"kind"`
	DurationMs float64       `json:"duration_ms,omitempty"`
	PeriodAMs  float64       `json:"period_a_ms,omitempty"`
	PeriodBMs  float64       `json:"period_b_ms,omitempty"`
}

// FiniteTime returns a finite time model of the given length.
func FiniteTime(durationMs float64) TimeModel {
	return TimeModel{Kind: TimeFinite, DurationMs: durationMs}
}

// InfiniteTime returns a looping time model with two phase periods.
func InfiniteTime(periodAMs, periodBMs float64) TimeModel {
	return TimeModel{Kind: TimeInfinite, PeriodAMs: periodAMs, PeriodBMs: periodBMs}
}

// PeriodA returns the period driving phase A. Finite models use their
// duration as the period.
func (m TimeModel) PeriodA() float64 {
	if m.Kind == TimeFinite {
		return m.DurationMs
	}
	return m.PeriodAMs
}

// PeriodB returns the period driving phase B.
func (m TimeModel) PeriodB() float64 {
	if m.Kind == TimeFinite {
		return m.DurationMs
	}
	return m.PeriodBMs
}

// BlockGraph is the validated, acyclic user graph.
type BlockGraph struct {
	Blocks []Block   `json:"blocks"`
	Edges  []Edge    `json:"edges"`
	Time   TimeModel `json:"time"`
}

// Block returns the block with the given id.
func (g *BlockGraph) Block(id BlockID) (Block, bool) {
	for _, b := range g.Blocks {
		if b.ID == id {
			return b, true
		}
	}
	return Block{}, false
}

// InputEdge returns the edge feeding the given input port.
func (g *BlockGraph) InputEdge(block BlockID, port string) (Edge, bool) {
	for _, e := range g.Edges {
		if e.To.Block == block && e.To.Port == port {
			return e, true
		}
	}
	return Edge{}, false
}

// BlocksWith returns the blocks carrying capability c, in declaration order.
func (g *BlockGraph) BlocksWith(c Capability) []Block {
	var out []Block
	for _, b := range g.Blocks {
		if b.Capability == c {
			out = append(out, b)
		}
	}
	return out
}
