package engine

import (
	"errors"
	"fmt"
)

// ExecErrorCode categorizes executor failures. Every code indicates a program
// the compiler should have rejected.
type ExecErrorCode string

const (
	// ErrCodeBadSlot indicates a step addressed a slot of the wrong bank or
	// one that does not exist.
	ErrCodeBadSlot ExecErrorCode = "BAD_SLOT"

	// ErrCodeBadExpr indicates an expression the executor cannot evaluate in
	// the requested form.
	ErrCodeBadExpr ExecErrorCode = "BAD_EXPR"

	// ErrCodeUnresolvedKernel indicates a kernel node without a call site.
	ErrCodeUnresolvedKernel ExecErrorCode = "UNRESOLVED_KERNEL"

	// ErrCodeMissingInstance indicates a reference to an unknown instance.
	ErrCodeMissingInstance ExecErrorCode = "MISSING_INSTANCE"
)

// ExecError is a defect hit while loading or executing a program.
type ExecError struct {
	Code    ExecErrorCode
	Message string
	// Step is the schedule index, or -1 outside the step loop.
	Step int
	// Expr is the expression involved, or -1.
	Expr int32
}

func (e *ExecError) Error() string {
	switch {
	case e.Step >= 0 && e.Expr >= 0:
		return fmt.Sprintf("%s: %s (step=%d, expr=%d)", e.Code, e.Message, e.Step, e.Expr)
	case e.Step >= 0:
		return fmt.Sprintf("%s: %s (step=%d)", e.Code, e.Message, e.Step)
	case e.Expr >= 0:
		return fmt.Sprintf("%s: %s (expr=%d)", e.Code, e.Message, e.Expr)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsExecError reports whether err is an ExecError with the given code.
// Uses errors.As to handle wrapped errors.
func IsExecError(err error, code ExecErrorCode) bool {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

func exprError(code ExecErrorCode, id int32, format string, args ...any) *ExecError {
	return &ExecError{Code: code, Message: fmt.Sprintf(format, args...), Step: -1, Expr: id}
}
