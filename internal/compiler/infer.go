package compiler

import "github.com/roach88/framegraph/internal/ir"

// InferInstance returns the instance an expression ranges over. Field types
// carry their instance; otherwise the first operand that ranges over an
// instance decides. Results are memoized in memo, which may be shared across
// calls on the same table.
func InferInstance(tbl *ir.ExprTable, id ir.ExprID, memo map[ir.ExprID]ir.InstanceID) (ir.InstanceID, bool) {
	if inst, ok := memo[id]; ok {
		return inst, inst >= 0
	}
	inst := ir.InstanceID(-1)
	if e := tbl.Get(id); e != nil {
		if i, ok := e.Type().InstanceOf(); ok {
			inst = i
		} else if k, ok := e.(*ir.Kernel); ok && k.Op != ir.OpReduce {
			for _, op := range k.Args {
				if op >= id {
					continue
				}
				if i, ok := InferInstance(tbl, op, memo); ok {
					inst = i
					break
				}
			}
		}
	}
	memo[id] = inst
	return inst, inst >= 0
}

// eventReach memoizes whether an expression transitively reads an event's
// fired value. Only EventRead counts; an Event node is not a value read and
// its predicate source is evaluated before events fire.
type eventReach struct {
	tbl  *ir.ExprTable
	memo map[ir.ExprID]bool
}

func newEventReach(tbl *ir.ExprTable) *eventReach {
	return &eventReach{tbl: tbl, memo: make(map[ir.ExprID]bool)}
}

func (r *eventReach) reads(id ir.ExprID) bool {
	if v, ok := r.memo[id]; ok {
		return v
	}
	var v bool
	switch e := r.tbl.Get(id).(type) {
	case nil, *ir.Event:
	case *ir.EventRead:
		v = true
	default:
		for _, op := range e.Operands() {
			if op < id && r.reads(op) {
				v = true
				break
			}
		}
	}
	r.memo[id] = v
	return v
}
