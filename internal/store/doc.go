// Package store records frame traces in SQLite.
//
// A trace is an append-only log of one or more sessions:
//   - Sessions: one row per runtime session, keyed by session id
//   - Programs: every program a session ran, in swap order
//   - Frames: one row per executed frame with the frame's content digest
//
// # Ordering
//
// Rows are ordered by logical sequence (session seq, program seq, frame
// number), never by wall time, so two recordings of the same run read back
// identically. Writes are idempotent: re-recording a frame that already
// exists is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Digests are computed by engine.RenderFrame.Digest using canonical JSON and
// SHA-256 with domain separation.
package store
