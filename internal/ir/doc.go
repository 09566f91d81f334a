// Package ir provides the intermediate representation shared by the framegraph
// compiler and runtime.
//
// This package contains type definitions and the append-only expression table.
// All other internal packages import ir; ir imports nothing internal. This keeps
// IR the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Every expression carries a fully instantiated CanonicalType once it reaches
//     the compiler. Unresolved axis variables are an upstream defect.
//   - Expression nodes are immutable once placed, except for the one-time
//     rewrite of a kernel FnRef from a symbolic name to a resolved handle.
//   - Steps carry no dependency edges. Their order in ScheduleIR.Steps is the
//     only ordering contract.
//   - Slot indices, instance IDs and expression IDs are only meaningful within
//     one CompiledProgram. Anything carried across a recompile is keyed by a
//     stable string identity instead.
package ir
