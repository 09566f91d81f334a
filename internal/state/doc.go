// Package state holds the runtime state of a running patch.
//
// State is split in two. SessionState survives hot-swaps: the time
// accumulators and phase offsets, continuity targets keyed by stable
// identity, domain counts keyed by instance key, and persistent state values
// keyed by stateID. ProgramState is rebuilt for every compiled program: the
// slot banks, the flat persistent-state array, event flags, the frame cache
// and this frame's domain mappings.
//
// Nothing in this package is safe for concurrent use. A session is driven by
// one caller, one frame at a time.
package state
