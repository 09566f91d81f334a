// Package continuity maps semantic roles to smoothing policies and applies
// them to field buffers from frame to frame.
//
// The policy table is data: defaults ship as an embedded TOML document and
// can be overridden per role. The schedule builder consults the table when it
// emits ContinuityApply steps; the executor calls Target.Apply.
//
// A Target is the session-owned state of one continuity-managed buffer. It is
// keyed by a stable identity (role + producing port), never by slot number,
// so it survives program hot-swaps.
package continuity
