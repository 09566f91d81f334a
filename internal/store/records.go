package store

import (
	"fmt"

	"github.com/roach88/framegraph/internal/engine"
	"github.com/roach88/framegraph/internal/ir"
)

// SessionRecord is one recorded runtime session.
type SessionRecord struct {
	ID  string
	Seq int64 // assigned on write
	// Time is the time model the session started with.
	Time          ir.TimeModel
	Source        string
	EngineVersion string
	IRVersion     string
}

// ProgramRecord is one program a session ran. Seq 0 is the program the
// session started with; each hot-swap adds one.
type ProgramRecord struct {
	SessionID  string
	Seq        int64
	Hash       string
	Steps      int
	Slots      int
	FirstFrame uint64
}

// FrameRecord summarizes one executed frame.
type FrameRecord struct {
	SessionID   string
	Frame       uint64
	TimeMs      float64
	ProgramHash string
	Digest      string
	Ops         int
	Elements    int
}

// NewSessionRecord describes a session that starts under model.
func NewSessionRecord(id string, model ir.TimeModel, source string) SessionRecord {
	return SessionRecord{
		ID:            id,
		Time:          model,
		Source:        source,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
}

// NewProgramRecord describes prog as the seq-th program of a session, first
// run at firstFrame.
func NewProgramRecord(sessionID string, seq int64, prog *ir.CompiledProgram, firstFrame uint64) ProgramRecord {
	return ProgramRecord{
		SessionID:  sessionID,
		Seq:        seq,
		Hash:       prog.Hash,
		Steps:      len(prog.Schedule.Steps),
		Slots:      len(prog.Slots),
		FirstFrame: firstFrame,
	}
}

// NewFrameRecord digests f.
func NewFrameRecord(sessionID, programHash string, f *engine.RenderFrame) (FrameRecord, error) {
	digest, err := f.Digest()
	if err != nil {
		return FrameRecord{}, fmt.Errorf("frame %d: %w", f.Frame, err)
	}
	return FrameRecord{
		SessionID:   sessionID,
		Frame:       f.Frame,
		TimeMs:      f.TimeMs,
		ProgramHash: programHash,
		Digest:      digest,
		Ops:         len(f.Ops),
		Elements:    f.Elements(),
	}, nil
}
