// Package kernel holds the registry of pure scalar and lane functions that
// expression kernels dispatch to.
//
// Functions are registered by name, but names are only consulted at load
// time: Resolve rewrites every kernel node's symbolic FnRef into a dense
// handle, and the executor builds a CallSite per node from those handles. The
// per-frame interpreter never performs string or map lookups.
//
// Two calling conventions exist:
//   - Scalar ABI: func(args []float64) float64, applied component-wise with
//     single-component operands broadcast across components.
//   - Lane ABI: func(out []float64, args [][]float64), called once per value
//     with every operand's full component slice; operand widths and
//     OutStride are declared at registration and checked against the node's
//     operand and result payloads.
package kernel
