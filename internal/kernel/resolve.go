package kernel

import (
	"errors"
	"fmt"

	"github.com/roach88/framegraph/internal/ir"
)

// ErrorCode categorizes kernel resolution failures. All are compile-time fatal.
type ErrorCode string

const (
	// KernelNotImplemented indicates the referenced name is not registered.
	KernelNotImplemented ErrorCode = "KernelNotImplemented"

	// KernelArityMismatch indicates the node's operand count differs from the
	// registered argument count.
	KernelArityMismatch ErrorCode = "KernelArityMismatch"

	// KernelStrideMismatch indicates a lane kernel's output stride differs from
	// the node's payload component count, or an operand's component count does
	// not fit the kernel.
	KernelStrideMismatch ErrorCode = "KernelStrideMismatch"
)

// ResolveError reports one kernel node that could not be resolved.
type ResolveError struct {
	Code    ErrorCode
	Expr    ir.ExprID
	Name    string
	Message string
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s: expr %d (%q): %s", e.Code, e.Expr, e.Name, e.Message)
}

// IsResolveError reports whether err is a ResolveError with the given code.
func IsResolveError(err error, code ErrorCode) bool {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// Resolve walks every kernel-kind node of tbl and rewrites its symbolic
// function reference to a resolved handle.
//
// Every node is checked; the returned slice holds all failures (not
// fail-fast). Nodes that fail are left unresolved. Nodes already resolved are
// skipped, so Resolve is idempotent.
func Resolve(tbl *ir.ExprTable, reg *Registry) []*ResolveError {
	var errs []*ResolveError
	for i := 0; i < tbl.Len(); i++ {
		id := ir.ExprID(i)
		k, ok := tbl.Get(id).(*ir.Kernel)
		if !ok || !k.Op.HasFn() || k.Fn.Resolved() {
			continue
		}
		if err := resolveNode(tbl, reg, id, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func resolveNode(tbl *ir.ExprTable, reg *Registry, id ir.ExprID, k *ir.Kernel) *ResolveError {
	sig, ok := reg.Lookup(k.Fn.Name)
	if !ok {
		return &ResolveError{
			Code:    KernelNotImplemented,
			Expr:    id,
			Name:    k.Fn.Name,
			Message: "no kernel registered under this name",
		}
	}

	operands := len(k.Args) + len(k.Signals)
	if sig.Arity != operands {
		return &ResolveError{
			Code:    KernelArityMismatch,
			Expr:    id,
			Name:    k.Fn.Name,
			Message: fmt.Sprintf("kernel takes %d argument(s), node has %d operand(s)", sig.Arity, operands),
		}
	}

	if sig.ABI == ir.ABILane {
		want := k.T.Components()
		if sig.OutStride != want {
			return &ResolveError{
				Code:    KernelStrideMismatch,
				Expr:    id,
				Name:    k.Fn.Name,
				Message: fmt.Sprintf("kernel writes %d component(s), node payload %s has %d", sig.OutStride, k.T.Payload, want),
			}
		}
	}

	if msg := checkWidths(tbl, k, sig); msg != "" {
		return &ResolveError{Code: KernelStrideMismatch, Expr: id, Name: k.Fn.Name, Message: msg}
	}

	if err := tbl.ResolveFn(id, sig.Handle, sig.ABI); err != nil {
		return &ResolveError{Code: KernelNotImplemented, Expr: id, Name: k.Fn.Name, Message: err.Error()}
	}
	return nil
}

// checkWidths compares operand component counts with what the kernel reads.
// Lane operands must match the registered widths exactly; scalar operands
// have one component or as many as the result. Operands that are not in the
// table are left to expression validation.
func checkWidths(tbl *ir.ExprTable, k *ir.Kernel, sig Signature) string {
	ops := k.Operands()
	for _, op := range ops {
		if !tbl.Has(op) {
			return ""
		}
	}
	out := k.T.Components()
	for j, op := range ops {
		got := tbl.Type(op).Components()
		if sig.ABI == ir.ABILane {
			if got != sig.InStrides[j] {
				return fmt.Sprintf("operand %d has %d component(s), kernel reads %d", j, got, sig.InStrides[j])
			}
			continue
		}
		if got != 1 && got != out {
			return fmt.Sprintf("operand %d has %d component(s), result has %d", j, got, out)
		}
	}
	return ""
}
