package state

import (
	"log/slog"

	"github.com/roach88/framegraph/internal/ir"
)

// RuntimeState pairs a session with the storage of the program it runs.
type RuntimeState struct {
	Session *SessionState
	Program *ProgramState
}

// NewRuntimeState starts a fresh session for prog.
func NewRuntimeState(prog *ir.CompiledProgram) *RuntimeState {
	return NewRuntimeStateWithIDs(prog, UUIDv7Generator{})
}

// NewRuntimeStateWithIDs is NewRuntimeState with an explicit id source.
func NewRuntimeStateWithIDs(prog *ir.CompiledProgram, ids IDGenerator) *RuntimeState {
	return NewRuntimeStateFromSession(NewSessionState(prog.Schedule.Time, ids), prog)
}

// NewRuntimeStateFromSession builds program storage for prog inside an
// existing session. Persistent state whose stateID and stride match carries
// over; everything else starts from its declared initial value. Continuity
// targets the new program no longer uses are dropped.
func NewRuntimeStateFromSession(session *SessionState, prog *ir.CompiledProgram) *RuntimeState {
	ps := NewProgramState(prog)

	migrated := 0
	for _, d := range prog.Schedule.States {
		v, ok := session.StateValues[d.ID]
		if !ok || len(v) != d.Stride {
			continue
		}
		copy(ps.State[d.Offset:d.Offset+d.Stride], v)
		migrated++
	}

	live := make(map[string]bool)
	for _, st := range prog.Schedule.Steps {
		if ca, ok := st.(*ir.ContinuityApply); ok {
			live[ca.Key] = true
		}
	}
	dropped := 0
	for key := range session.Targets {
		if !live[key] {
			delete(session.Targets, key)
			dropped++
		}
	}

	slog.Debug("program state attached",
		"session", session.ID,
		"program", prog.Hash,
		"states_migrated", migrated,
		"targets_dropped", dropped,
	)
	return &RuntimeState{Session: session, Program: ps}
}

// SaveState records a persistent-state value under its stateID so it can
// migrate to the next program.
func (rt *RuntimeState) SaveState(d ir.StateDecl) {
	v := rt.Session.StateValues[d.ID]
	if len(v) != d.Stride {
		v = make([]float64, d.Stride)
		rt.Session.StateValues[d.ID] = v
	}
	copy(v, rt.Program.State[d.Offset:d.Offset+d.Stride])
}
