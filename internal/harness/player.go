package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/framegraph/internal/compiler"
	"github.com/roach88/framegraph/internal/continuity"
	"github.com/roach88/framegraph/internal/engine"
	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/kernel"
	"github.com/roach88/framegraph/internal/state"
	"github.com/roach88/framegraph/internal/store"
)

// PlayerOptions configures a Player.
type PlayerOptions struct {
	// Policies overrides the default continuity table.
	Policies *continuity.Table
	// ArenaSize is the arena chunk size; 0 uses the default.
	ArenaSize int
	// IDs generates the session id; nil uses UUIDv7.
	IDs state.IDGenerator
	// Source names the patch in trace records.
	Source string
}

// Player drives one session: it compiles patches, executes frames, applies
// hot-swaps and optionally records a trace.
type Player struct {
	reg    *kernel.Registry
	opts   PlayerOptions
	arena  *state.Arena
	prog   *engine.Program
	rt     *state.RuntimeState
	rec    *store.Recorder
	frames uint64
}

// NewPlayer compiles the patch and starts a session on it.
func NewPlayer(g *ir.BlockGraph, b *ir.LoweredBundle, opts PlayerOptions) (*Player, *compiler.Result, error) {
	p := &Player{
		reg:   kernel.NewBuiltinRegistry(),
		opts:  opts,
		arena: state.NewArena(opts.ArenaSize),
	}
	res, prog, err := p.compile(g, b)
	if err != nil {
		return nil, res, err
	}
	p.prog = prog
	p.rt = state.NewRuntimeStateWithIDs(prog.CompiledProgram, opts.IDs)
	return p, res, nil
}

func (p *Player) compile(g *ir.BlockGraph, b *ir.LoweredBundle) (*compiler.Result, *engine.Program, error) {
	res, err := compiler.Compile(g, b, p.reg, compiler.Options{Policies: p.opts.Policies})
	if err != nil {
		return res, nil, err
	}
	for _, w := range res.Warnings {
		slog.Warn("compile warning", "code", w.Code, "block", w.Block, "message", w.Message)
	}
	prog, err := engine.Load(res.Program, p.reg)
	if err != nil {
		return res, nil, err
	}
	return res, prog, nil
}

// Record starts writing the session's trace to st.
func (p *Player) Record(ctx context.Context, st *store.Store) error {
	rec, err := st.NewRecorder(ctx, p.rt.Session.ID, p.rt.Session.Model, p.opts.Source, p.prog.CompiledProgram)
	if err != nil {
		return fmt.Errorf("start trace: %w", err)
	}
	p.rec = rec
	return nil
}

// Step executes one frame at tMs.
func (p *Player) Step(ctx context.Context, tMs float64) (*engine.RenderFrame, error) {
	p.arena.Reset()
	f, err := engine.ExecuteFrame(p.prog, p.rt, p.arena, tMs)
	if err != nil {
		return nil, err
	}
	p.frames = f.Frame
	if p.rec != nil {
		if err := p.rec.Frame(ctx, f); err != nil {
			return f, err
		}
	}
	return f, nil
}

// Swap compiles a new patch and hot-swaps the session onto it. tMs is the
// time of the last executed frame. On a compile error the session keeps
// running the current program.
func (p *Player) Swap(ctx context.Context, g *ir.BlockGraph, b *ir.LoweredBundle, tMs float64) (*compiler.Result, error) {
	res, prog, err := p.compile(g, b)
	if err != nil {
		return res, err
	}
	state.ReconcileHotSwap(p.rt.Session, p.prog.Schedule.Time, prog.Schedule.Time, tMs)
	p.rt = state.NewRuntimeStateFromSession(p.rt.Session, prog.CompiledProgram)
	p.prog = prog
	if p.rec != nil {
		if err := p.rec.Swap(ctx, prog.CompiledProgram, p.frames+1); err != nil {
			return res, err
		}
	}
	return res, nil
}

// SetInput sets an external input channel for the following frames.
func (p *Player) SetInput(channel string, v ...float64) {
	p.rt.Session.SetInput(channel, v...)
}

// Close flushes the trace, if one is being recorded.
func (p *Player) Close(ctx context.Context) error {
	if p.rec == nil {
		return nil
	}
	return p.rec.Flush(ctx)
}

// Runtime returns the current runtime state.
func (p *Player) Runtime() *state.RuntimeState { return p.rt }

// Program returns the program currently running.
func (p *Player) Program() *engine.Program { return p.prog }

// SessionID returns the session identifier.
func (p *Player) SessionID() string { return p.rt.Session.ID }
