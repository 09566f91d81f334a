package loader

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/framegraph/internal/ir"
)

// lowerer converts a decoded document into IR, collecting every reference
// error instead of stopping at the first.
type lowerer struct {
	root      cue.Value
	errs      LoadErrors
	instances map[string]ir.InstanceID
	states    map[string]ir.StateSlot
	nexprs    int
}

func newLowerer(root cue.Value) *lowerer {
	return &lowerer{
		root:      root,
		instances: make(map[string]ir.InstanceID),
		states:    make(map[string]ir.StateSlot),
	}
}

func (l *lowerer) pos(sels ...cue.Selector) token.Pos {
	return l.root.LookupPath(cue.MakePath(sels...)).Pos()
}

func (l *lowerer) errorf(code string, pos token.Pos, format string, args ...any) {
	l.errs = append(l.errs, &LoadError{Code: code, Message: fmt.Sprintf(format, args...), Pos: pos})
}

// ref checks that id names an expression of the document.
func (l *lowerer) ref(id int32, pos token.Pos, what string) ir.ExprID {
	if int(id) >= l.nexprs {
		l.errorf(ErrCodeReference, pos, "%s: expression %d out of range (%d expressions)", what, id, l.nexprs)
		return ir.NoExpr
	}
	return ir.ExprID(id)
}

func (l *lowerer) optRef(id *int32, pos token.Pos, what string) ir.ExprID {
	if id == nil {
		return ir.NoExpr
	}
	return l.ref(*id, pos, what)
}

func (l *lowerer) refs(ids []int32, pos token.Pos, what string) []ir.ExprID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]ir.ExprID, len(ids))
	for i, id := range ids {
		out[i] = l.ref(id, pos, what)
	}
	return out
}

func (l *lowerer) lower(doc *document) (*ir.BlockGraph, *ir.LoweredBundle) {
	g := &ir.BlockGraph{Time: timeModel(doc.Time)}
	b := &ir.LoweredBundle{
		Exprs:      ir.NewExprTable(),
		Outputs:    make(map[ir.BlockID]map[string]ir.ExprID),
		Instances:  ir.NewInstanceRegistry(),
		Slots:      ir.NewSlotAllocator(),
		ExprBlocks: make(map[ir.ExprID]ir.BlockID),
	}

	l.blocks(doc, g)
	for _, e := range doc.Edges {
		g.Edges = append(g.Edges, ir.Edge{
			From: ir.PortRef{Block: ir.BlockID(e.From.Block), Port: e.From.Port},
			To:   ir.PortRef{Block: ir.BlockID(e.To.Block), Port: e.To.Port},
		})
	}

	// Instance ids and state slots are fixed before the expressions that
	// name them are lowered.
	for i, inst := range doc.Instances {
		if _, dup := l.instances[inst.Key]; dup {
			l.errorf(ErrCodeDuplicate, l.pos(cue.Str("instances"), cue.Index(i)), "duplicate instance key %q", inst.Key)
			continue
		}
		l.instances[inst.Key] = ir.InstanceID(i)
	}
	stateDecls := make([]ir.StateDecl, len(doc.States))
	for i, s := range doc.States {
		if _, dup := l.states[s.ID]; dup {
			l.errorf(ErrCodeDuplicate, l.pos(cue.Str("states"), cue.Index(i)), "duplicate state id %q", s.ID)
		}
		slot, off := b.Slots.AllocState(len(s.Initial))
		l.states[s.ID] = slot
		stateDecls[i] = ir.StateDecl{
			ID:      s.ID,
			Slot:    slot,
			Offset:  off,
			Stride:  len(s.Initial),
			Initial: s.Initial,
			Value:   ir.NoExpr,
			Block:   ir.BlockID(s.Block),
		}
	}

	l.nexprs = len(doc.Exprs)
	for i := range doc.Exprs {
		e := &doc.Exprs[i]
		id := b.Exprs.Append(l.expr(e, l.pos(cue.Str("exprs"), cue.Index(i))))
		if e.Block != "" {
			b.ExprBlocks[id] = ir.BlockID(e.Block)
		}
	}

	for i, inst := range doc.Instances {
		pos := l.pos(cue.Str("instances"), cue.Index(i))
		shape := l.optRef(inst.Shape, pos, "instance shape")
		if err := b.Instances.Add(ir.Instance{ID: ir.InstanceID(i), Key: inst.Key, Count: inst.Count, ShapeField: shape}); err != nil {
			l.errorf(ErrCodeDuplicate, pos, "%v", err)
		}
	}

	for block, ports := range doc.Outputs {
		pos := l.pos(cue.Str("outputs"), cue.Str(block))
		m := make(map[string]ir.ExprID, len(ports))
		for port, id := range ports {
			m[port] = l.ref(id, pos, fmt.Sprintf("output %s.%s", block, port))
		}
		b.Outputs[ir.BlockID(block)] = m
	}

	for i, s := range doc.States {
		stateDecls[i].Value = l.optRef(s.Expr, l.pos(cue.Str("states"), cue.Index(i)), "state value")
	}
	b.States = stateDecls

	for i, s := range doc.Signals {
		id := l.ref(s.Expr, l.pos(cue.Str("signals"), cue.Index(i)), "signal")
		if !id.Valid() {
			continue
		}
		slot := b.Slots.AllocSignal(b.Exprs.Type(id))
		b.Signals = append(b.Signals, ir.SignalDecl{Slot: slot, Expr: id, Block: ir.BlockID(s.Block)})
	}

	for i, s := range doc.Strided {
		pos := l.pos(cue.Str("strided"), cue.Index(i))
		inputs := l.refs(s.Exprs, pos, "strided input")
		var t ir.CanonicalType
		if s.Type != nil {
			t = l.typ(s.Type, "one", pos)
		} else {
			t = ir.SignalType(payloadForWidth(len(s.Exprs)))
		}
		slot := b.Slots.AllocSignal(t)
		b.Strided = append(b.Strided, ir.StridedDecl{Target: slot, Inputs: inputs, Block: ir.BlockID(s.Block)})
	}

	for i, s := range doc.Events {
		id := l.ref(s.Expr, l.pos(cue.Str("events"), cue.Index(i)), "event")
		if !id.Valid() {
			continue
		}
		slot := b.Slots.AllocEvent()
		b.Events = append(b.Events, ir.EventDecl{Slot: slot, Expr: id, Block: ir.BlockID(s.Block)})
	}

	return g, b
}

func (l *lowerer) blocks(doc *document, g *ir.BlockGraph) {
	seen := make(map[string]bool, len(doc.Blocks))
	for i, bd := range doc.Blocks {
		if seen[bd.ID] {
			l.errorf(ErrCodeDuplicate, l.pos(cue.Str("blocks"), cue.Index(i)), "duplicate block id %q", bd.ID)
			continue
		}
		seen[bd.ID] = true
		c := ir.Capability(bd.Capability)
		if bd.Capability == "none" {
			c = ir.CapabilityNone
		}
		g.Blocks = append(g.Blocks, ir.Block{ID: ir.BlockID(bd.ID), Type: bd.Type, Capability: c, Params: bd.Params})
	}
}

func timeModel(t timeDoc) ir.TimeModel {
	if t.Kind == "finite" {
		return ir.FiniteTime(t.DurationMs)
	}
	return ir.InfiniteTime(t.PeriodAMs, t.PeriodBMs)
}

func payloadForWidth(n int) ir.PayloadKind {
	switch n {
	case 2:
		return ir.PayloadVec2
	case 3:
		return ir.PayloadVec3
	case 4:
		return ir.PayloadColor
	default:
		return ir.PayloadFloat
	}
}

// typ converts a type document. card is used when the document leaves the
// cardinality out.
func (l *lowerer) typ(t *typeDoc, card string, pos token.Pos) ir.CanonicalType {
	payload, _ := ir.ParsePayload(t.Payload)
	if t.Cardinality != "" {
		card = t.Cardinality
	}
	var ct ir.CanonicalType
	switch card {
	case "zero":
		ct = ir.ConstType(payload)
	case "many":
		inst, ok := l.instances[t.Instance]
		if !ok {
			l.errorf(ErrCodeReference, pos, "unknown instance %q", t.Instance)
		}
		ct = ir.FieldType(payload, inst)
	default:
		ct = ir.SignalType(payload)
	}
	if t.Temporality == "discrete" {
		ct.Extent.Temporality = ir.Inst(ir.Discrete)
	}
	return ct.WithUnit(ir.Unit(t.Unit))
}

// typeOr returns the document's type, or def when the expression has none.
func (l *lowerer) typeOr(e *exprDoc, def ir.CanonicalType, pos token.Pos) ir.CanonicalType {
	if e.Type == nil {
		return def
	}
	return l.typ(e.Type, "one", pos)
}

func (l *lowerer) required(e *exprDoc, pos token.Pos, field, value string) bool {
	if value == "" {
		l.errorf(ErrCodeSchema, pos, "%s expression needs %q", e.Kind, field)
		return false
	}
	return true
}

func (l *lowerer) expr(e *exprDoc, pos token.Pos) ir.Expr {
	signal := ir.SignalType(ir.PayloadFloat)
	switch e.Kind {
	case "const":
		if e.Type == nil {
			l.errorf(ErrCodeSchema, pos, "const expression needs a type")
			return &ir.Const{}
		}
		return &ir.Const{Typed: ir.Typed{T: l.typ(e.Type, "zero", pos)}, Value: e.Value}

	case "time":
		if !l.required(e, pos, "read", e.Read) {
			return &ir.Const{}
		}
		read, _ := ir.ParseTimeRead(e.Read)
		def := signal.WithUnit(ir.UnitMs)
		if read == ir.TimePhaseA || read == ir.TimePhaseB || read == ir.TimeProgress {
			def = signal.WithUnit(ir.UnitPhase01)
		}
		return &ir.Time{Typed: ir.Typed{T: l.typeOr(e, def, pos)}, Read: read}

	case "external":
		if !l.required(e, pos, "channel", e.Channel) {
			return &ir.Const{}
		}
		return &ir.External{Typed: ir.Typed{T: l.typeOr(e, signal, pos)}, Channel: e.Channel}

	case "state":
		if !l.required(e, pos, "state", e.State) {
			return &ir.Const{}
		}
		slot, ok := l.states[e.State]
		if !ok {
			l.errorf(ErrCodeReference, pos, "unknown state %q", e.State)
		}
		return &ir.State{Typed: ir.Typed{T: l.typeOr(e, signal, pos)}, StateID: e.State, Slot: slot}

	case "shapeRef":
		if !l.required(e, pos, "topology", e.Topology) {
			return &ir.Const{}
		}
		topo, _ := ir.ParseTopology(e.Topology)
		return &ir.ShapeRef{
			Typed:         ir.Typed{T: l.typeOr(e, ir.SignalType(ir.PayloadShape), pos)},
			Topology:      topo,
			Params:        l.refs(e.Params, pos, "shape param"),
			ControlPoints: l.optRef(e.ControlPoints, pos, "control points"),
		}

	case "eventRead":
		if e.Event == nil {
			l.errorf(ErrCodeSchema, pos, "eventRead expression needs \"event\"")
			return &ir.Const{}
		}
		return &ir.EventRead{Typed: ir.Typed{T: l.typeOr(e, signal, pos)}, Event: l.ref(*e.Event, pos, "event")}

	case "event":
		if !l.required(e, pos, "trigger", e.Trigger) {
			return &ir.Const{}
		}
		kind, _ := ir.ParseEventKind(e.Trigger)
		return &ir.Event{
			Typed:     ir.Typed{T: l.typeOr(e, ir.EventType(), pos)},
			Kind:      kind,
			Source:    l.optRef(e.Source, pos, "event source"),
			Threshold: e.Threshold,
		}

	case "intrinsic":
		if !l.required(e, pos, "intrinsic", e.Intrinsic) {
			return &ir.Const{}
		}
		if e.Type == nil {
			l.errorf(ErrCodeSchema, pos, "intrinsic expression needs a field type")
			return &ir.Const{}
		}
		kind, _ := ir.ParseIntrinsic(e.Intrinsic)
		return &ir.Intrinsic{Typed: ir.Typed{T: l.typ(e.Type, "many", pos)}, Kind: kind}

	case "kernel":
		if !l.required(e, pos, "op", e.Op) {
			return &ir.Const{}
		}
		if e.Type == nil {
			l.errorf(ErrCodeSchema, pos, "kernel expression needs a type")
			return &ir.Const{}
		}
		op, _ := ir.ParseKernelOp(e.Op)
		k := &ir.Kernel{
			Typed:   ir.Typed{T: l.typ(e.Type, "one", pos)},
			Op:      op,
			Args:    l.refs(e.Args, pos, "kernel arg"),
			Signals: l.refs(e.Signals, pos, "kernel signal"),
			Fn:      ir.FnRef{Name: e.Fn},
		}
		if e.Reducer != "" {
			k.Reducer, _ = ir.ParseReducer(e.Reducer)
		}
		if op.HasFn() && e.Fn == "" {
			l.errorf(ErrCodeSchema, pos, "%s kernel needs \"fn\"", e.Op)
		}
		return k
	}
	l.errorf(ErrCodeSchema, pos, "unknown expression kind %q", e.Kind)
	return &ir.Const{}
}
