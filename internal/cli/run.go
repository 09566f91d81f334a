package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/framegraph/internal/harness"
	"github.com/roach88/framegraph/internal/state"
	"github.com/roach88/framegraph/internal/store"
	"github.com/roach88/framegraph/internal/testutil"
)

// RunOptions holds flags for the run command. Zero-valued flags fall back to
// the config file.
type RunOptions struct {
	*RootOptions
	Frames  int
	StartMs float64
	StepMs  float64
	Trace   string   // sqlite path; empty disables recording
	Session string   // fixed session id; empty generates one
	Inputs  []string // channel=v1,v2,...
	Swaps   []string // frame:patch
}

// FrameLine is the per-frame summary the run command prints.
type FrameLine struct {
	Frame    uint64  `json:"frame"`
	TimeMs   float64 `json:"time_ms"`
	Program  string  `json:"program"`
	Ops      int     `json:"ops"`
	Elements int     `json:"elements"`
	Digest   string  `json:"digest"`
}

// RunResult is the output of the run command.
type RunResult struct {
	SessionID string               `json:"session_id"`
	Trace     string               `json:"trace,omitempty"`
	Frames    []FrameLine          `json:"frames"`
	State     map[string][]float64 `json:"state,omitempty"`
}

type swapAt struct {
	frame int
	patch string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <patch>",
		Short: "Execute frames of a patch",
		Long: `Compile a patch and execute a fixed number of frames, printing one
summary line per frame with its content digest.

Inputs set external channels before the first frame. Swaps hot-swap the
session onto another patch before the given frame (counted from 1).

Example:
  framegraph run patch.cue --frames 120
  framegraph run fixture:orbit --trace ./trace.db --session demo
  framegraph run fixture:grid --swap 30:fixture:grid9 --format json
  framegraph run pulse.cue --input level=0.5`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFrames(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Frames, "frames", "n", 0, "number of frames (default from config)")
	cmd.Flags().Float64Var(&opts.StartMs, "start", 0, "time of the first frame in ms")
	cmd.Flags().Float64Var(&opts.StepMs, "step", 0, "ms between frames (default from config)")
	cmd.Flags().StringVar(&opts.Trace, "trace", "", "record frame digests to this SQLite database")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id (default: generated UUIDv7)")
	cmd.Flags().StringArrayVar(&opts.Inputs, "input", nil, "set an external channel: name=v1,v2")
	cmd.Flags().StringArrayVar(&opts.Swaps, "swap", nil, "hot-swap before a frame: frame:patch")

	return cmd
}

func runFrames(opts *RunOptions, patch string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	cfg := opts.Settings()

	frames := cfg.Run.Frames
	if cmd.Flags().Changed("frames") {
		frames = opts.Frames
	}
	startMs := cfg.Run.StartMs
	if cmd.Flags().Changed("start") {
		startMs = opts.StartMs
	}
	stepMs := cfg.Run.StepMs
	if cmd.Flags().Changed("step") {
		stepMs = opts.StepMs
	}
	tracePath := cfg.Trace.DB
	if cmd.Flags().Changed("trace") {
		tracePath = opts.Trace
	}
	if frames < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("frames must be at least 1, got %d", frames))
	}

	inputs, err := parseInputs(opts.Inputs)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --input", err)
	}
	swaps, err := parseSwaps(opts.Swaps, frames)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --swap", err)
	}
	policies, err := cfg.Policies()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid continuity config", err)
	}

	g, b, err := loadPatch(patch)
	if err != nil {
		return outputCompileErrors(formatter, diagnostics(err))
	}
	playerOpts := harness.PlayerOptions{
		Policies:  policies,
		ArenaSize: cfg.Run.ArenaSize,
		Source:    patch,
	}
	if opts.Session != "" {
		playerOpts.IDs = state.NewFixedGenerator(opts.Session)
	}
	p, _, err := harness.NewPlayer(g, b, playerOpts)
	if err != nil {
		return outputCompileErrors(formatter, diagnostics(err))
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if tracePath != "" {
		st, err := store.Open(tracePath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open trace database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing trace database", "error", closeErr)
			}
		}()
		if err := p.Record(ctx, st); err != nil {
			return WrapExitError(ExitCommandError, "failed to start trace", err)
		}
	}

	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p.SetInput(name, inputs[name]...)
	}

	slog.Info("session started", "session", p.SessionID(), "source", patch, "frames", frames)
	result := RunResult{SessionID: p.SessionID(), Trace: tracePath, Frames: make([]FrameLine, 0, frames)}
	clock := testutil.NewFrameClock(startMs, stepMs)
	prevMs := startMs
	for i := 1; i <= frames; i++ {
		if ctx.Err() != nil {
			slog.Info("interrupted, stopping", "frame", i)
			break
		}
		for _, sw := range swaps {
			if sw.frame != i {
				continue
			}
			sg, sb, err := loadPatch(sw.patch)
			if err != nil {
				return outputCompileErrors(formatter, diagnostics(err))
			}
			if _, err := p.Swap(ctx, sg, sb, prevMs); err != nil {
				return outputCompileErrors(formatter, diagnostics(err))
			}
			formatter.VerboseLog("Swapped to %s before frame %d", sw.patch, i)
		}

		tMs := clock.Next()
		f, err := p.Step(ctx, tMs)
		if err != nil {
			_ = formatter.Error(ErrCodeExec, err.Error(), nil)
			return WrapExitError(ExitFailure, fmt.Sprintf("frame %d failed", i), err)
		}
		digest, err := f.Digest()
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("frame %d digest", i), err)
		}
		result.Frames = append(result.Frames, FrameLine{
			Frame:    f.Frame,
			TimeMs:   f.TimeMs,
			Program:  p.Program().Hash,
			Ops:      len(f.Ops),
			Elements: f.Elements(),
			Digest:   digest,
		})
		prevMs = tMs
	}
	if err := p.Close(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to flush trace", err)
	}
	if values := p.Runtime().Session.StateValues; len(values) > 0 {
		result.State = values
	}

	if formatter.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result, SessionID: result.SessionID})
	}
	return outputRunText(formatter, result)
}

func outputRunText(formatter *OutputFormatter, r RunResult) error {
	w := formatter.Writer
	fmt.Fprintf(w, "Session %s\n", r.SessionID)
	program := ""
	for _, f := range r.Frames {
		if f.Program != program {
			fmt.Fprintf(w, "program %s\n", short(f.Program))
			program = f.Program
		}
		fmt.Fprintf(w, "frame %5d  t=%10.2fms  ops=%d  elements=%d  %s\n",
			f.Frame, f.TimeMs, f.Ops, f.Elements, short(f.Digest))
	}
	if len(r.State) > 0 {
		ids := make([]string, 0, len(r.State))
		for id := range r.State {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Fprintln(w, "State:")
		for _, id := range ids {
			fmt.Fprintf(w, "  %s = %v\n", id, r.State[id])
		}
	}
	if r.Trace != "" {
		fmt.Fprintf(w, "Recorded %d frame(s) to %s\n", len(r.Frames), r.Trace)
	}
	return nil
}

// short abbreviates a hex hash for text output.
func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// parseInputs parses name=v1,v2 flags.
func parseInputs(flags []string) (map[string][]float64, error) {
	inputs := make(map[string][]float64, len(flags))
	for _, f := range flags {
		name, values, ok := strings.Cut(f, "=")
		if !ok || name == "" || values == "" {
			return nil, fmt.Errorf("%q: want name=v1,v2", f)
		}
		parts := strings.Split(values, ",")
		v := make([]float64, len(parts))
		for i, s := range parts {
			x, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", f, err)
			}
			v[i] = x
		}
		inputs[name] = v
	}
	return inputs, nil
}

// parseSwaps parses frame:patch flags. Frames must be in 2..frames.
func parseSwaps(flags []string, frames int) ([]swapAt, error) {
	swaps := make([]swapAt, 0, len(flags))
	for _, f := range flags {
		n, patch, ok := strings.Cut(f, ":")
		if !ok || patch == "" {
			return nil, fmt.Errorf("%q: want frame:patch", f)
		}
		frame, err := strconv.Atoi(n)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", f, err)
		}
		if frame < 2 || frame > frames {
			return nil, fmt.Errorf("%q: frame %d outside 2..%d", f, frame, frames)
		}
		swaps = append(swaps, swapAt{frame: frame, patch: patch})
	}
	return swaps, nil
}
