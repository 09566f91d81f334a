package engine

import (
	"github.com/roach88/framegraph/internal/ir"
)

// FrameVersion is the version of the RenderFrame layout.
const FrameVersion = 1

// RenderFrame is the output of one executed frame.
type RenderFrame struct {
	Version int      `json:"version"`
	Frame   uint64   `json:"frame"`
	TimeMs  float64  `json:"time_ms"`
	Ops     []DrawOp `json:"ops"`
}

// DrawOp draws every element of one instance.
//
// Buffers are copies owned by the frame. Position holds Count*PositionStride
// values; Color holds 4 bytes (RGBA) per element. Size is nil when the op has
// no per-element size, in which case Scale applies uniformly.
type DrawOp struct {
	Block          string    `json:"block"`
	Instance       string    `json:"instance"`
	Count          int       `json:"count"`
	Position       []float32 `json:"position"`
	PositionStride int       `json:"position_stride"`
	Color          []uint8   `json:"color"`
	Size           []float32 `json:"size,omitempty"`
	Scale          float64   `json:"scale"`
	Shape          Geometry  `json:"shape"`
}

// Geometry describes the shape drawn for each element. Either Topology with
// Params applies to all elements, or PerElement lists one topology id each.
type Geometry struct {
	Topology      string             `json:"topology,omitempty"`
	Params        map[string]float64 `json:"params,omitempty"`
	PerElement    []int32            `json:"per_element,omitempty"`
	ControlPoints []float32          `json:"control_points,omitempty"`
}

// Digest returns the content hash of the frame. Identical frames have
// identical digests; the frame number and time take part.
func (f *RenderFrame) Digest() (string, error) {
	ops := make([]any, len(f.Ops))
	for i, op := range f.Ops {
		params := make(map[string]any, len(op.Shape.Params))
		for k, v := range op.Shape.Params {
			params[k] = v
		}
		ops[i] = map[string]any{
			"block":           op.Block,
			"instance":        op.Instance,
			"count":           op.Count,
			"position":        op.Position,
			"position_stride": op.PositionStride,
			"color":           []byte(op.Color),
			"size":            op.Size,
			"scale":           op.Scale,
			"shape": map[string]any{
				"topology":       op.Shape.Topology,
				"params":         params,
				"per_element":    op.Shape.PerElement,
				"control_points": op.Shape.ControlPoints,
			},
		}
	}
	return ir.HashCanonical(ir.DomainFrame, map[string]any{
		"version": f.Version,
		"frame":   int64(f.Frame),
		"time_ms": f.TimeMs,
		"ops":     ops,
	})
}

// Elements returns the total element count across ops.
func (f *RenderFrame) Elements() int {
	n := 0
	for _, op := range f.Ops {
		n += op.Count
	}
	return n
}
