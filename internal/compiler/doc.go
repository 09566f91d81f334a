// Package compiler turns a lowered block graph into an executable schedule.
//
// Compilation runs in two passes. The first collects every problem it can
// find without stopping: graph structure, expression typing, kernel
// resolution and render-target wiring. Reachability from the render sinks
// then decides what each problem means. Errors attributed to blocks that
// cannot reach a sink are demoted to warnings and those blocks are left out
// of the schedule; anything else is fatal. The result is either a complete
// program or the full list of errors, never a partial program.
//
// Schedule order:
//
//	pre-event signals + strided writes
//	continuity map builds
//	materializations
//	continuity applications
//	events
//	post-event signals
//	renders
//	state write-backs
package compiler
