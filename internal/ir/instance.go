package ir

import (
	"fmt"
	"sort"
)

// InstanceID identifies an instance within one compiled program.
type InstanceID int32

// Instance is a named population of rendered elements.
type Instance struct {
	ID InstanceID `json:"id"`
	// Key is the stable identity of the population (usually the producing
	// block). Unlike ID it survives recompiles.
	Key   string `json:"key"`
	Count int    `json:"count"`
	// ShapeField references the shape-producing expression: a ShapeRef signal
	// for homogeneous populations, or a shape-payload field for heterogeneous
	// ones. NoExpr means the instance was built without a shape.
	ShapeField ExprID `json:"shape_field"`
}

// InstanceRegistry owns the instances of one compiled program.
type InstanceRegistry struct {
	byID map[InstanceID]*Instance
}

// NewInstanceRegistry creates an empty registry.
func NewInstanceRegistry() *InstanceRegistry {
	return &InstanceRegistry{byID: make(map[InstanceID]*Instance)}
}

// Add registers inst. IDs must be unique and counts non-negative.
func (r *InstanceRegistry) Add(inst Instance) error {
	if _, exists := r.byID[inst.ID]; exists {
		return fmt.Errorf("duplicate instance id %d", inst.ID)
	}
	if inst.Count < 0 {
		return fmt.Errorf("instance %d: negative element count %d", inst.ID, inst.Count)
	}
	cp := inst
	r.byID[inst.ID] = &cp
	return nil
}

// Get returns the instance with the given id.
func (r *InstanceRegistry) Get(id InstanceID) (Instance, bool) {
	inst, ok := r.byID[id]
	if !ok {
		return Instance{}, false
	}
	return *inst, true
}

// Len returns the number of registered instances.
func (r *InstanceRegistry) Len() int {
	return len(r.byID)
}

// All returns every instance ordered by ID.
func (r *InstanceRegistry) All() []Instance {
	out := make([]Instance, 0, len(r.byID))
	for _, inst := range r.byID {
		out = append(out, *inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
