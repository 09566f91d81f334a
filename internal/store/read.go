package store

import (
	"context"
	"database/sql"
	"fmt"
)

type scanner interface {
	Scan(dest ...any) error
}

// ReadSessions returns every recorded session ordered by seq.
// Returns an empty slice (not nil) for an empty trace.
func (s *Store) ReadSessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, time_model, source, engine_version, ir_version
		FROM sessions
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionRecord{}
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadSession retrieves one session by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSession(ctx context.Context, id string) (SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, time_model, source, engine_version, ir_version
		FROM sessions
		WHERE id = ?
	`, id)
	return scanSession(row)
}

func scanSession(sc scanner) (SessionRecord, error) {
	var rec SessionRecord
	var model string
	if err := sc.Scan(&rec.ID, &rec.Seq, &model, &rec.Source, &rec.EngineVersion, &rec.IRVersion); err != nil {
		if err == sql.ErrNoRows {
			return rec, err
		}
		return rec, fmt.Errorf("scan session: %w", err)
	}
	m, err := unmarshalTimeModel(model)
	if err != nil {
		return rec, fmt.Errorf("session %s: %w", rec.ID, err)
	}
	rec.Time = m
	return rec, nil
}

// ReadPrograms returns the programs of a session in swap order.
func (s *Store) ReadPrograms(ctx context.Context, sessionID string) ([]ProgramRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, hash, steps, slots, first_frame
		FROM programs
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query programs: %w", err)
	}
	defer rows.Close()

	programs := []ProgramRecord{}
	for rows.Next() {
		var rec ProgramRecord
		var first int64
		if err := rows.Scan(&rec.SessionID, &rec.Seq, &rec.Hash, &rec.Steps, &rec.Slots, &first); err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		rec.FirstFrame = uint64(first)
		programs = append(programs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate programs: %w", err)
	}
	return programs, nil
}

// ReadFrames returns the frames of a session ordered by frame number.
func (s *Store) ReadFrames(ctx context.Context, sessionID string) ([]FrameRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, frame, time_ms, program_hash, digest, ops, elements
		FROM frames
		WHERE session_id = ?
		ORDER BY frame ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	frames := []FrameRecord{}
	for rows.Next() {
		rec, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		frames = append(frames, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frames: %w", err)
	}
	return frames, nil
}

// ReadFrame retrieves one frame of a session.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadFrame(ctx context.Context, sessionID string, frame uint64) (FrameRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, frame, time_ms, program_hash, digest, ops, elements
		FROM frames
		WHERE session_id = ? AND frame = ?
	`, sessionID, int64(frame))
	return scanFrame(row)
}

func scanFrame(sc scanner) (FrameRecord, error) {
	var rec FrameRecord
	var frame int64
	if err := sc.Scan(&rec.SessionID, &frame, &rec.TimeMs, &rec.ProgramHash, &rec.Digest, &rec.Ops, &rec.Elements); err != nil {
		if err == sql.ErrNoRows {
			return rec, err
		}
		return rec, fmt.Errorf("scan frame: %w", err)
	}
	rec.Frame = uint64(frame)
	return rec, nil
}
