package store

import (
	"context"
	"fmt"
)

// WriteSession inserts a session and assigns it the next session seq.
// Uses ON CONFLICT(id) DO NOTHING: writing an existing session is a no-op.
func (s *Store) WriteSession(ctx context.Context, rec SessionRecord) error {
	model, err := marshalTimeModel(rec.Time)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, seq, time_model, source, engine_version, ir_version)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM sessions), ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		model,
		rec.Source,
		rec.EngineVersion,
		rec.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteProgram records a program of a session.
// The session must exist (foreign key constraint). Rewriting the same
// (session, seq) pair is a no-op.
func (s *Store) WriteProgram(ctx context.Context, rec ProgramRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO programs
		(session_id, seq, hash, steps, slots, first_frame)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		rec.SessionID,
		rec.Seq,
		rec.Hash,
		rec.Steps,
		rec.Slots,
		int64(rec.FirstFrame),
	)
	if err != nil {
		return fmt.Errorf("write program: %w", err)
	}
	return nil
}

// WriteFrame records one frame. The session must exist; rewriting a frame
// number is a no-op.
func (s *Store) WriteFrame(ctx context.Context, rec FrameRecord) error {
	return s.WriteFrames(ctx, []FrameRecord{rec})
}

// WriteFrames records frames in one transaction.
func (s *Store) WriteFrames(ctx context.Context, recs []FrameRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write frames: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO frames
		(session_id, frame, time_ms, program_hash, digest, ops, elements)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, frame) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write frames: prepare: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx,
			rec.SessionID,
			int64(rec.Frame),
			rec.TimeMs,
			rec.ProgramHash,
			rec.Digest,
			rec.Ops,
			rec.Elements,
		); err != nil {
			return fmt.Errorf("write frame %d: %w", rec.Frame, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write frames: commit: %w", err)
	}
	return nil
}
