package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/framegraph/internal/ir"
)

// Compile error codes. E2xx are expression errors, E3xx graph errors, E4xx
// internal-consistency errors, Wxxx warnings.
const (
	ErrUninstantiatedAxis  = "E201" // extent axis left as a variable
	ErrCardinalityMismatch = "E202" // mixed zip or inconsistent map/reduce/broadcast
	ErrInvalidOperand      = "E203" // operand out of range or not an earlier node
	ErrInvalidEvent        = "E204" // threshold event without a source signal
	ErrKernelNotFound      = "E211" // kernel name not registered
	ErrKernelArity         = "E212" // operand count differs from kernel arity
	ErrKernelStride        = "E213" // lane stride differs from payload components

	ErrCycle          = "E301" // cycle in the block graph
	ErrUnknownBlock   = "E302" // edge references an undeclared block
	ErrMultipleCamera = "E310" // more than one camera-like global

	ErrInstanceMissing = "E401" // render target's instance not registered
	ErrInstanceNoShape = "E402" // render target's instance has no shape

	WarnSkippedRender = "W301" // render target without field pos/color
)

// Severity of a compile diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// CompileError is one diagnostic. Block, Expr and Instance are set when the
// problem can be attributed; Expr and Instance are -1 otherwise.
type CompileError struct {
	Code     string        `json:"code"`
	Severity Severity      `json:"severity"`
	Message  string        `json:"message"`
	Block    ir.BlockID    `json:"block,omitempty"`
	Expr     ir.ExprID     `json:"expr"`
	Instance ir.InstanceID `json:"instance"`
}

// Error implements the error interface.
func (e CompileError) Error() string {
	var where []string
	if e.Block != "" {
		where = append(where, "block="+string(e.Block))
	}
	if e.Expr >= 0 {
		where = append(where, fmt.Sprintf("expr=%d", e.Expr))
	}
	if e.Instance >= 0 {
		where = append(where, fmt.Sprintf("instance=%d", e.Instance))
	}
	if len(where) == 0 {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s (%s)", e.Code, e.Message, strings.Join(where, ", "))
}

// fatal reports whether isolation may never demote the diagnostic.
func (e CompileError) fatal() bool {
	switch e.Code {
	case ErrInstanceMissing, ErrInstanceNoShape, ErrMultipleCamera:
		return true
	}
	return false
}

// CompileErrors is the error returned when compilation fails. It lists every
// fatal diagnostic in discovery order.
type CompileErrors []CompileError

func (es CompileErrors) Error() string {
	switch len(es) {
	case 0:
		return "compile failed"
	case 1:
		return es[0].Error()
	}
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d compile errors:\n  %s", len(es), strings.Join(msgs, "\n  "))
}

// IsCompileError reports whether err carries a diagnostic with code.
// Uses errors.As to handle wrapped errors.
func IsCompileError(err error, code string) bool {
	var es CompileErrors
	if errors.As(err, &es) {
		for _, e := range es {
			if e.Code == code {
				return true
			}
		}
	}
	return false
}

// diag builds an unattributed error diagnostic.
func diag(code, format string, args ...any) CompileError {
	return CompileError{
		Code:     code,
		Severity: SeverityError,
		Message:  fmt.Sprintf(format, args...),
		Expr:     ir.NoExpr,
		Instance: -1,
	}
}

func warning(code string, block ir.BlockID, format string, args ...any) CompileError {
	d := diag(code, format, args...)
	d.Severity = SeverityWarning
	d.Block = block
	return d
}
