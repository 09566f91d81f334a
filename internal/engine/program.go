package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/kernel"
)

// Program is a compiled program bound to its kernel call sites.
type Program struct {
	*ir.CompiledProgram

	sites      []kernel.CallSite
	maxArity   int
	instances  map[ir.InstanceID]ir.Instance
	states     map[ir.StateSlot]ir.StateDecl
	eventSlots map[ir.ExprID]ir.EventSlot
}

// Load binds every resolved kernel node to its call site in reg. The
// program's kernel references must have been resolved against the same
// registry.
func Load(prog *ir.CompiledProgram, reg *kernel.Registry) (*Program, error) {
	if prog == nil || prog.Exprs == nil {
		return nil, fmt.Errorf("load program: no expressions")
	}
	p := &Program{
		CompiledProgram: prog,
		sites:           make([]kernel.CallSite, prog.Exprs.Len()),
		instances:       make(map[ir.InstanceID]ir.Instance, len(prog.Schedule.Instances)),
		states:          make(map[ir.StateSlot]ir.StateDecl, len(prog.Schedule.States)),
		eventSlots:      make(map[ir.ExprID]ir.EventSlot),
	}

	for i := range prog.Exprs.Len() {
		id := ir.ExprID(i)
		k, ok := prog.Exprs.Get(id).(*ir.Kernel)
		if !ok || !k.Op.HasFn() || !k.Fn.Resolved() {
			// Unresolved nodes belong to isolated blocks; the compiler
			// rejects programs whose schedule reads one.
			continue
		}
		site, err := reg.Site(k.Fn)
		if err != nil {
			return nil, &ExecError{
				Code:    ErrCodeUnresolvedKernel,
				Message: err.Error(),
				Step:    -1,
				Expr:    int32(id),
			}
		}
		p.sites[id] = site
		p.maxArity = max(p.maxArity, site.Arity)
	}

	for _, inst := range prog.Schedule.Instances {
		p.instances[inst.ID] = inst
	}
	for _, d := range prog.Schedule.States {
		p.states[d.Slot] = d
	}
	for _, st := range prog.Schedule.Steps {
		if ev, ok := st.(*ir.EvalValue); ok && (ev.Strategy == ir.DiscreteScalar || ev.Strategy == ir.DiscreteField) {
			p.eventSlots[ev.Expr] = ev.EventTarget
		}
	}

	slog.Debug("program loaded",
		"program", prog.Hash,
		"steps", len(prog.Schedule.Steps),
		"exprs", prog.Exprs.Len(),
	)
	return p, nil
}

// count returns the element count of an instance.
func (p *Program) count(id ir.InstanceID) (int, bool) {
	inst, ok := p.instances[id]
	return inst.Count, ok
}
