package engine

import (
	"hash/fnv"
	"math"

	"github.com/roach88/framegraph/internal/ir"
)

// signal evaluates a one-valued expression and returns its components. The
// result is cached for the rest of the frame.
func (f *frame) signal(id ir.ExprID) ([]float64, error) {
	cache := f.ps.Cache
	if v, ok := cache.Signal(id); ok {
		return v, nil
	}
	e := f.p.Exprs.Get(id)
	if e == nil {
		return nil, exprError(ErrCodeBadExpr, int32(id), "expression out of range")
	}
	t := e.Type()
	if t.IsField() {
		return nil, exprError(ErrCodeBadExpr, int32(id), "field %s evaluated as a signal", t)
	}
	out := cache.SignalBuffer(id, t.Components())
	clear(out)

	switch n := e.(type) {
	case *ir.Const:
		copy(out, n.Value)
	case *ir.Time:
		out[0] = f.timeValue(n.Read)
	case *ir.External:
		copy(out, f.rt.Session.Inputs[n.Channel])
	case *ir.State:
		d, ok := f.p.states[n.Slot]
		if !ok {
			return nil, exprError(ErrCodeBadExpr, int32(id), "state %q not declared", n.StateID)
		}
		copy(out, f.ps.State[d.Offset:d.Offset+d.Stride])
	case *ir.ShapeRef:
		out[0] = float64(n.Topology)
	case *ir.EventRead:
		slot, ok := f.p.eventSlots[n.Event]
		if !ok {
			return nil, exprError(ErrCodeBadExpr, int32(id), "event %d has no slot", n.Event)
		}
		out[0] = float64(f.ps.Events[slot])
	case *ir.Event:
		if _, err := f.event(id); err != nil {
			return nil, err
		}
		v, _ := cache.Signal(id)
		return v, nil
	case *ir.Kernel:
		if err := f.signalKernel(id, n, out); err != nil {
			return nil, err
		}
	default:
		return nil, exprError(ErrCodeBadExpr, int32(id), "%T has no signal form", e)
	}
	cache.StoreSignal(id, out)
	return out, nil
}

func (f *frame) timeValue(r ir.TimeRead) float64 {
	switch r {
	case ir.TimeDeltaMs:
		return f.dtMs
	case ir.TimePhaseA:
		return f.phaseA
	case ir.TimePhaseB:
		return f.phaseB
	case ir.TimeProgress:
		return f.progress
	default:
		return f.tMs
	}
}

func (f *frame) signalKernel(id ir.ExprID, k *ir.Kernel, out []float64) error {
	switch k.Op {
	case ir.OpMap, ir.OpZip, ir.OpZipSig:
		ops := k.Operands()
		args := make([][]float64, len(ops))
		for i, op := range ops {
			v, err := f.signal(op)
			if err != nil {
				return err
			}
			args[i] = v
		}
		site := &f.p.sites[id]
		if site.ABI == ir.ABIUnresolved {
			return exprError(ErrCodeUnresolvedKernel, int32(id), "kernel %q has no call site", k.Fn.Name)
		}
		site.Call(out, args, f.scratch)
		return nil
	case ir.OpReduce:
		buf, n, err := f.field(k.Args[0])
		if err != nil {
			return err
		}
		reduce(out, buf, n, k.Reducer)
		return nil
	default:
		return exprError(ErrCodeBadExpr, int32(id), "%s has no signal form", k.Op)
	}
}

// reduce folds n elements of len(out) components each.
func reduce(out []float64, buf []float32, n int, r ir.Reducer) {
	c := len(out)
	if n == 0 {
		clear(out)
		return
	}
	for j := range c {
		acc := float64(buf[j])
		for i := 1; i < n; i++ {
			v := float64(buf[i*c+j])
			switch r {
			case ir.ReduceMin:
				acc = math.Min(acc, v)
			case ir.ReduceMax:
				acc = math.Max(acc, v)
			default:
				acc += v
			}
		}
		if r == ir.ReduceMean {
			acc /= float64(n)
		}
		out[j] = acc
	}
}

// field evaluates a many-valued expression over its instance and returns the
// arena-backed buffer and element count.
func (f *frame) field(id ir.ExprID) ([]float32, int, error) {
	cache := f.ps.Cache
	if buf, n, ok := cache.Field(id); ok {
		return buf, n, nil
	}
	e := f.p.Exprs.Get(id)
	if e == nil {
		return nil, 0, exprError(ErrCodeBadExpr, int32(id), "expression out of range")
	}
	t := e.Type()
	inst, ok := t.InstanceOf()
	if !ok {
		return nil, 0, exprError(ErrCodeBadExpr, int32(id), "signal %s evaluated as a field", t)
	}
	n, ok := f.p.count(inst)
	if !ok {
		return nil, 0, exprError(ErrCodeMissingInstance, int32(id), "instance %d not in program", inst)
	}
	c := t.Components()
	buf := f.arena.Alloc(n * c)

	var err error
	switch x := e.(type) {
	case *ir.Const:
		fill(buf, n, c, x.Value)
	case *ir.Intrinsic:
		f.intrinsic(buf, n, x.Kind, inst)
	case *ir.ShapeRef:
		fill(buf, n, c, []float64{float64(x.Topology)})
	case *ir.Kernel:
		err = f.fieldKernel(id, x, buf, n, c)
	default:
		err = exprError(ErrCodeBadExpr, int32(id), "%T has no field form", e)
	}
	if err != nil {
		return nil, 0, err
	}
	cache.StoreField(id, buf, n)
	return buf, n, nil
}

func fill(buf []float32, n, c int, v []float64) {
	for i := range n {
		for j := range c {
			if j < len(v) {
				buf[i*c+j] = float32(v[j])
			} else if len(v) == 1 {
				buf[i*c+j] = float32(v[0])
			}
		}
	}
}

func (f *frame) intrinsic(buf []float32, n int, kind ir.IntrinsicKind, inst ir.InstanceID) {
	switch kind {
	case ir.IntrinsicIndex:
		for i := range n {
			buf[i] = float32(i)
		}
	case ir.IntrinsicNormalizedIndex:
		den := float32(max(n-1, 1))
		for i := range n {
			buf[i] = float32(i) / den
		}
	case ir.IntrinsicRandom:
		seed := keySeed(f.p.instances[inst].Key)
		for i := range n {
			buf[i] = unitHash(seed, uint64(i))
		}
	}
}

// keySeed derives the random seed of an instance from its stable key, so
// values survive recompiles.
func keySeed(key string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return h.Sum64()
}

// unitHash maps (seed, i) to [0, 1) with a splitmix64 finalizer.
func unitHash(seed, i uint64) float32 {
	z := seed + (i+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return float32(z>>40) / float32(1<<24)
}

func (f *frame) fieldKernel(id ir.ExprID, k *ir.Kernel, buf []float32, n, c int) error {
	switch k.Op {
	case ir.OpBroadcast:
		v, err := f.signal(k.Args[0])
		if err != nil {
			return err
		}
		fill(buf, n, c, v)
		return nil

	case ir.OpPathDerivative:
		src, m, err := f.field(k.Args[0])
		if err != nil {
			return err
		}
		pathDerivative(buf, src, min(n, m), c)
		return nil

	case ir.OpMap, ir.OpZip, ir.OpZipSig:
		type operand struct {
			field  []float32
			comps  int
			signal []float64
		}
		ops := make([]operand, 0, len(k.Args)+len(k.Signals))
		for _, a := range k.Args {
			at := f.p.Exprs.Type(a)
			if !at.IsField() {
				v, err := f.signal(a)
				if err != nil {
					return err
				}
				ops = append(ops, operand{signal: v})
				continue
			}
			fb, m, err := f.field(a)
			if err != nil {
				return err
			}
			if m != n {
				return exprError(ErrCodeBadExpr, int32(id), "operand %d has %d elements, want %d", a, m, n)
			}
			ops = append(ops, operand{field: fb, comps: at.Components()})
		}
		for _, s := range k.Signals {
			v, err := f.signal(s)
			if err != nil {
				return err
			}
			ops = append(ops, operand{signal: v})
		}

		args := make([][]float64, len(ops))
		for j, op := range ops {
			if op.field != nil {
				args[j] = make([]float64, op.comps)
			} else {
				args[j] = op.signal
			}
		}
		out := make([]float64, c)
		site := &f.p.sites[id]
		if site.ABI == ir.ABIUnresolved {
			return exprError(ErrCodeUnresolvedKernel, int32(id), "kernel %q has no call site", k.Fn.Name)
		}
		for i := range n {
			for j, op := range ops {
				if op.field == nil {
					continue
				}
				for q := range op.comps {
					args[j][q] = float64(op.field[i*op.comps+q])
				}
			}
			site.Call(out, args, f.scratch)
			for q := range c {
				buf[i*c+q] = float32(out[q])
			}
		}
		return nil

	default:
		return exprError(ErrCodeBadExpr, int32(id), "%s has no field form", k.Op)
	}
}

// pathDerivative writes the central-difference tangent of a closed loop of n
// points with c components each.
func pathDerivative(out, pts []float32, n, c int) {
	if n < 2 {
		return
	}
	for i := range n {
		next := (i + 1) % n
		prev := (i - 1 + n) % n
		for q := range c {
			out[i*c+q] = (pts[next*c+q] - pts[prev*c+q]) / 2
		}
	}
}

// event evaluates an event node once per frame and reports whether it fired.
func (f *frame) event(id ir.ExprID) (bool, error) {
	cache := f.ps.Cache
	if v, ok := cache.Signal(id); ok {
		return v[0] != 0, nil
	}
	ev, ok := f.p.Exprs.Get(id).(*ir.Event)
	if !ok {
		return false, exprError(ErrCodeBadExpr, int32(id), "not an event node")
	}

	var fired bool
	switch ev.Kind {
	case ir.EventPulse:
		fired = true
	case ir.EventWrap:
		fired = f.wrapped
	case ir.EventThreshold:
		v, err := f.signal(ev.Source)
		if err != nil {
			return false, err
		}
		prev, seen := f.ps.EventPrev[id]
		fired = seen && prev < ev.Threshold && v[0] >= ev.Threshold
		f.ps.EventPrev[id] = v[0]
	}

	out := cache.SignalBuffer(id, 1)
	out[0] = 0
	if fired {
		out[0] = 1
	}
	cache.StoreSignal(id, out)
	return fired, nil
}
