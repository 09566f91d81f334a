package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/loader"
	"github.com/roach88/framegraph/internal/state"
	"github.com/roach88/framegraph/internal/store"
	"github.com/roach88/framegraph/internal/testutil"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory trace store with a fixed session
// id, so identical scenarios produce identical traces.
//
// Execution flow:
//  1. Open an in-memory trace store
//  2. Load and compile the patch, start a recorded session
//  3. Execute every frame, applying inputs and hot-swaps before their frame
//  4. Evaluate assertions against the frames, final state and trace
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context for store access.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	sessionID := scenario.SessionID
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	result, err := play(ctx, scenario, st, sessionID)
	if err != nil {
		return nil, err
	}

	actx := &AssertionContext{
		Ctx:       ctx,
		Store:     st,
		Scenario:  scenario,
		SessionID: sessionID,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	slog.Debug("scenario finished", "scenario", scenario.Name, "frames", len(result.Frames), "pass", result.Pass)
	return result, nil
}

// play runs the scenario's frames once, recording them under sessionID.
func play(ctx context.Context, scenario *Scenario, st *store.Store, sessionID string) (*Result, error) {
	g, b, err := patchFor(scenario.Patch, scenario.Fixture)
	if err != nil {
		return nil, err
	}
	source := scenario.Patch
	if source == "" {
		source = "fixture:" + scenario.Fixture
	}
	p, _, err := NewPlayer(g, b, PlayerOptions{
		IDs:    state.NewFixedGenerator(sessionID),
		Source: source,
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", source, err)
	}
	if err := p.Record(ctx, st); err != nil {
		return nil, err
	}

	result := NewResult()
	result.SessionID = sessionID
	prevMs := 0.0
	for i, tMs := range scenario.Times() {
		frame := i + 1
		for _, sw := range scenario.Swaps {
			if sw.Frame != frame {
				continue
			}
			g, b, err := patchFor(sw.Patch, sw.Fixture)
			if err != nil {
				return nil, err
			}
			if _, err := p.Swap(ctx, g, b, prevMs); err != nil {
				return nil, fmt.Errorf("swap before frame %d: %w", frame, err)
			}
		}
		for _, in := range scenario.Inputs {
			if in.Frame == frame {
				p.SetInput(in.Channel, in.Value...)
			}
		}

		f, err := p.Step(ctx, tMs)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", frame, err)
		}
		result.AddFrame(f, p.Program().Hash)
		prevMs = tMs
	}
	if err := p.Close(ctx); err != nil {
		return nil, err
	}

	for id, v := range p.Runtime().Session.StateValues {
		result.State[id] = append([]float64(nil), v...)
	}
	return result, nil
}

// patchFor loads a patch file or builds a fixture.
func patchFor(path, fixture string) (*ir.BlockGraph, *ir.LoweredBundle, error) {
	if fixture != "" {
		g, b, ok := testutil.Fixture(fixture)
		if !ok {
			return nil, nil, fmt.Errorf("unknown fixture %q", fixture)
		}
		return g, b, nil
	}
	patch, err := loader.LoadPatch(path)
	if err != nil {
		return nil, nil, err
	}
	return patch.Graph, patch.Bundle, nil
}
