package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/framegraph/internal/engine"
	"github.com/roach88/framegraph/internal/ir"
)

// Recorder writes the trace of one running session. Frames are buffered and
// written in batches; Flush writes whatever is pending.
type Recorder struct {
	store     *Store
	sessionID string
	seq       int64
	hash      string
	batch     int
	pending   []FrameRecord
}

// DefaultBatch is the number of frames a Recorder buffers before writing.
const DefaultBatch = 64

// NewRecorder registers the session and its first program.
func (s *Store) NewRecorder(ctx context.Context, sessionID string, model ir.TimeModel, source string, prog *ir.CompiledProgram) (*Recorder, error) {
	if err := s.WriteSession(ctx, NewSessionRecord(sessionID, model, source)); err != nil {
		return nil, err
	}
	if err := s.WriteProgram(ctx, NewProgramRecord(sessionID, 0, prog, 1)); err != nil {
		return nil, err
	}
	slog.Info("trace started", "session", sessionID, "program", prog.Hash)
	return &Recorder{store: s, sessionID: sessionID, hash: prog.Hash, batch: DefaultBatch}, nil
}

// Swap records that prog replaces the current program starting at
// firstFrame.
func (r *Recorder) Swap(ctx context.Context, prog *ir.CompiledProgram, firstFrame uint64) error {
	if err := r.Flush(ctx); err != nil {
		return err
	}
	r.seq++
	r.hash = prog.Hash
	return r.store.WriteProgram(ctx, NewProgramRecord(r.sessionID, r.seq, prog, firstFrame))
}

// Frame digests and buffers f.
func (r *Recorder) Frame(ctx context.Context, f *engine.RenderFrame) error {
	rec, err := NewFrameRecord(r.sessionID, r.hash, f)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}
	r.pending = append(r.pending, rec)
	if len(r.pending) >= r.batch {
		return r.Flush(ctx)
	}
	return nil
}

// Flush writes buffered frames.
func (r *Recorder) Flush(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}
	if err := r.store.WriteFrames(ctx, r.pending); err != nil {
		return err
	}
	slog.Debug("trace flushed", "session", r.sessionID, "frames", len(r.pending))
	r.pending = r.pending[:0]
	return nil
}

// SessionID returns the id of the recorded session.
func (r *Recorder) SessionID() string {
	return r.sessionID
}
