package kernel

import (
	"fmt"
	"slices"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/framegraph/internal/ir"
)

// ScalarFn is a scalar-ABI kernel.
type ScalarFn func(args []float64) float64

// LaneFn is a lane-ABI kernel. out has the registered OutStride components;
// args[j] holds every component of operand j.
type LaneFn func(out []float64, args [][]float64)

type scalarEntry struct {
	name  string
	arity int
	fn    ScalarFn
}

type laneEntry struct {
	name      string
	inStrides []int
	outStride int
	fn        LaneFn
}

type nameRef struct {
	abi    ir.KernelABI
	handle ir.KernelHandle
}

// Registry is a two-array (scalar, lane) kernel table with a name index used
// only while resolving programs.
type Registry struct {
	names   map[string]nameRef
	scalars []scalarEntry
	lanes   []laneEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]nameRef)}
}

// NewBuiltinRegistry creates a registry pre-populated with the built-in kernels.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	registerBuiltins(r)
	return r
}

func canonicalName(name string) string {
	return norm.NFC.String(name)
}

// RegisterScalar adds a scalar-ABI kernel.
func (r *Registry) RegisterScalar(name string, arity int, fn ScalarFn) (ir.KernelHandle, error) {
	name = canonicalName(name)
	if _, exists := r.names[name]; exists {
		return 0, fmt.Errorf("kernel %q already registered", name)
	}
	if arity < 1 {
		return 0, fmt.Errorf("kernel %q: arity must be positive, got %d", name, arity)
	}
	h := ir.KernelHandle(len(r.scalars))
	r.scalars = append(r.scalars, scalarEntry{name: name, arity: arity, fn: fn})
	r.names[name] = nameRef{abi: ir.ABIScalar, handle: h}
	return h, nil
}

// RegisterLane adds a lane-ABI kernel. in lists the component count of each
// operand; the kernel produces outStride components.
func (r *Registry) RegisterLane(name string, in []int, outStride int, fn LaneFn) (ir.KernelHandle, error) {
	name = canonicalName(name)
	if _, exists := r.names[name]; exists {
		return 0, fmt.Errorf("kernel %q already registered", name)
	}
	if len(in) < 1 || outStride < 1 {
		return 0, fmt.Errorf("kernel %q: arity and stride must be positive (arity=%d, stride=%d)", name, len(in), outStride)
	}
	for j, w := range in {
		if w < 1 {
			return 0, fmt.Errorf("kernel %q: operand %d width must be positive, got %d", name, j, w)
		}
	}
	h := ir.KernelHandle(len(r.lanes))
	r.lanes = append(r.lanes, laneEntry{name: name, inStrides: slices.Clone(in), outStride: outStride, fn: fn})
	r.names[name] = nameRef{abi: ir.ABILane, handle: h}
	return h, nil
}

// Signature describes a registered kernel.
type Signature struct {
	Name      string
	ABI       ir.KernelABI
	Handle    ir.KernelHandle
	Arity     int
	InStrides []int // lane kernels only
	OutStride int   // lane kernels only
}

// Lookup finds a kernel by name. Load time only.
func (r *Registry) Lookup(name string) (Signature, bool) {
	ref, ok := r.names[canonicalName(name)]
	if !ok {
		return Signature{}, false
	}
	return r.signature(ref.abi, ref.handle), true
}

func (r *Registry) signature(abi ir.KernelABI, h ir.KernelHandle) Signature {
	if abi == ir.ABILane {
		e := r.lanes[h]
		return Signature{Name: e.name, ABI: abi, Handle: h, Arity: len(e.inStrides), InStrides: e.inStrides, OutStride: e.outStride}
	}
	e := r.scalars[h]
	return Signature{Name: e.name, ABI: abi, Handle: h, Arity: e.arity}
}

// Len returns the number of scalar and lane kernels.
func (r *Registry) Len() (scalars, lanes int) {
	return len(r.scalars), len(r.lanes)
}

// CallSite is a resolved, directly dispatchable kernel reference.
type CallSite struct {
	ABI    ir.KernelABI
	Arity  int
	scalar ScalarFn
	lane   LaneFn
}

// Site builds the call site of a resolved reference.
func (r *Registry) Site(ref ir.FnRef) (CallSite, error) {
	switch ref.ABI {
	case ir.ABIScalar:
		if int(ref.Handle) >= len(r.scalars) || ref.Handle < 0 {
			return CallSite{}, fmt.Errorf("scalar handle %d out of range", ref.Handle)
		}
		e := r.scalars[ref.Handle]
		return CallSite{ABI: ir.ABIScalar, Arity: e.arity, scalar: e.fn}, nil
	case ir.ABILane:
		if int(ref.Handle) >= len(r.lanes) || ref.Handle < 0 {
			return CallSite{}, fmt.Errorf("lane handle %d out of range", ref.Handle)
		}
		e := r.lanes[ref.Handle]
		return CallSite{ABI: ir.ABILane, Arity: len(e.inStrides), lane: e.fn}, nil
	default:
		return CallSite{}, fmt.Errorf("kernel %q is unresolved", ref.Name)
	}
}

// Call applies the kernel to one value. For scalar kernels each output
// component c reads component c of every operand, or component 0 of
// single-component operands. scratch must hold at least Arity entries.
func (s *CallSite) Call(out []float64, args [][]float64, scratch []float64) {
	if s.ABI == ir.ABILane {
		s.lane(out, args)
		return
	}
	buf := scratch[:s.Arity]
	for c := range out {
		for j := range buf {
			a := args[j]
			if len(a) == 1 {
				buf[j] = a[0]
			} else {
				buf[j] = a[c]
			}
		}
		out[c] = s.scalar(buf)
	}
}
