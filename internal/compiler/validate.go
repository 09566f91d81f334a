package compiler

import (
	"fmt"

	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/kernel"
)

// ValidateExprs checks every node of tbl and returns all problems found
// (does not fail-fast). Problems are attributed through blocks when known.
//
// Operands must reference earlier nodes, which keeps the table acyclic.
func ValidateExprs(tbl *ir.ExprTable, blocks map[ir.ExprID]ir.BlockID) []CompileError {
	var errs []CompileError
	add := func(id ir.ExprID, code, format string, args ...any) {
		d := diag(code, format, args...)
		d.Expr = id
		d.Block = blocks[id]
		errs = append(errs, d)
	}

	for i := range tbl.Len() {
		id := ir.ExprID(i)
		e := tbl.Get(id)
		t := e.Type()

		if !t.Extent.Instantiated() {
			add(id, ErrUninstantiatedAxis, "type %s has an uninstantiated extent axis", t)
		}

		operandsOK := true
		for _, op := range e.Operands() {
			if !tbl.Has(op) || op >= id {
				add(id, ErrInvalidOperand, "operand %d is not an earlier node", op)
				operandsOK = false
			}
		}
		if !operandsOK {
			continue
		}

		switch n := e.(type) {
		case *ir.Kernel:
			if msg := checkKernel(tbl, t, n); msg != "" {
				add(id, ErrCardinalityMismatch, "%s: %s", n.Op, msg)
			}
		case *ir.Intrinsic:
			if !t.IsField() {
				add(id, ErrCardinalityMismatch, "intrinsic %s must be a field, got %s", n.Kind, t)
			}
		case *ir.Event:
			if n.Kind == ir.EventThreshold && (!n.Source.Valid() || tbl.Type(n.Source).IsField()) {
				add(id, ErrInvalidEvent, "threshold event needs a signal source")
			}
		}
	}
	return errs
}

// checkKernel returns a description of a cardinality violation, or "".
func checkKernel(tbl *ir.ExprTable, out ir.CanonicalType, k *ir.Kernel) string {
	outInst, outField := out.InstanceOf()
	same := func(a ir.ExprID) bool {
		inst, field := tbl.Type(a).InstanceOf()
		return field == outField && (!field || inst == outInst)
	}

	switch k.Op {
	case ir.OpMap:
		if len(k.Args) != 1 || len(k.Signals) != 0 {
			return "takes exactly one operand"
		}
		if !same(k.Args[0]) {
			return fmt.Sprintf("operand %s does not match result %s", tbl.Type(k.Args[0]), out)
		}
	case ir.OpZip:
		if len(k.Args) == 0 || len(k.Signals) != 0 {
			return "takes one or more operands and no signals"
		}
		for _, a := range k.Args {
			if !same(a) {
				return fmt.Sprintf("mixed cardinality: operand %d is %s, result is %s", a, tbl.Type(a), out)
			}
		}
	case ir.OpZipSig:
		if !outField {
			return "result must be a field"
		}
		for _, a := range k.Args {
			if !same(a) {
				return fmt.Sprintf("field operand %d is %s, result is %s", a, tbl.Type(a), out)
			}
		}
		for _, s := range k.Signals {
			if tbl.Type(s).IsField() {
				return fmt.Sprintf("signal operand %d is a field", s)
			}
		}
	case ir.OpBroadcast:
		if len(k.Args) != 1 || !outField || tbl.Type(k.Args[0]).IsField() {
			return "broadcasts one signal into a field"
		}
	case ir.OpReduce:
		if len(k.Args) != 1 || outField || !tbl.Type(k.Args[0]).IsField() {
			return "reduces one field into a signal"
		}
	case ir.OpPathDerivative:
		if len(k.Args) != 1 || !outField || !same(k.Args[0]) {
			return "derives a field of the same instance"
		}
		if p := tbl.Type(k.Args[0]).Payload; p != ir.PayloadVec2 && p != ir.PayloadVec3 {
			return fmt.Sprintf("control points must be vec2 or vec3, got %s", p)
		}
	}
	return ""
}

// resolveKernels binds kernel references and converts failures into
// diagnostics.
func resolveKernels(tbl *ir.ExprTable, reg *kernel.Registry, blocks map[ir.ExprID]ir.BlockID) []CompileError {
	var errs []CompileError
	for _, re := range kernel.Resolve(tbl, reg) {
		code := ErrKernelNotFound
		switch re.Code {
		case kernel.KernelArityMismatch:
			code = ErrKernelArity
		case kernel.KernelStrideMismatch:
			code = ErrKernelStride
		}
		d := diag(code, "%s", re.Error())
		d.Expr = re.Expr
		d.Block = blocks[re.Expr]
		errs = append(errs, d)
	}
	return errs
}
