// Package engine replays a compiled schedule once per frame.
//
// The executor is single-threaded and never suspends. Each frame walks the
// schedule's steps in order with a direct type switch:
//
//  1. Pre-event signal evaluations and strided slot writes
//  2. Continuity map builds, field materialization, continuity application
//  3. Event evaluation, then post-event signals
//  4. Render assembly
//  5. Persistent-state write-back
//
// Step order alone encodes dependency: every slot read during step N was
// written by an earlier step of the same frame, or carried over by a state
// write. ContinuityApply is the only step that reads last frame's data.
//
// Determinism: the same program, session history and frame times produce
// byte-identical render frames. There is no wall clock, no map iteration on
// the hot path and no randomness beyond the hashed random intrinsic.
//
// Kernel call sites are resolved once by Load. The frame loop never looks a
// kernel up by name.
package engine
