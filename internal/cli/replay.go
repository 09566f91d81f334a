package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/framegraph/internal/harness"
	"github.com/roach88/framegraph/internal/state"
	"github.com/roach88/framegraph/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// ReplaySessionResult is the replay outcome of one session.
type ReplaySessionResult struct {
	SessionID     string `json:"session_id"`
	Source        string `json:"source"`
	Frames        int    `json:"frames"`
	Deterministic bool   `json:"deterministic"`
	// FirstDivergence is the first frame whose digest differs, 0 if none.
	FirstDivergence uint64 `json:"first_divergence,omitempty"`
	// Skipped explains why a session could not be replayed.
	Skipped string `json:"skipped,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute recorded sessions and verify determinism",
		Long: `Reload each recorded session's patch, re-execute its frames at the
recorded times and compare the frame digests with the recorded ones.

Sessions that hot-swapped programs are skipped: the trace keeps program
hashes, not the patches swapped in. Inputs given to "run --input" are not
recorded, so sessions that used them will diverge.

Exit codes:
  0 - All replayed sessions are deterministic
  1 - A session diverged
  2 - Command error (database not found, etc.)

Examples:
  framegraph replay --db ./trace.db
  framegraph replay --db ./trace.db --session demo --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openTrace(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var sessions []store.SessionRecord
	if opts.Session != "" {
		rec, err := st.ReadSession(ctx, opts.Session)
		if errors.Is(err, sql.ErrNoRows) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no session %q", opts.Session), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("session not found: %s", opts.Session))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read session", err)
		}
		sessions = []store.SessionRecord{rec}
	} else if sessions, err = st.ReadSessions(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	result := ReplayResult{
		Sessions:         make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions:    len(sessions),
		AllDeterministic: true,
	}
	cfg := opts.Settings()
	policies, err := cfg.Policies()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid continuity config", err)
	}
	for _, rec := range sessions {
		r, err := replaySession(ctx, st, rec, harness.PlayerOptions{Policies: policies, ArenaSize: cfg.Run.ArenaSize})
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", rec.ID), err)
		}
		formatter.VerboseLog("Replayed %s: %d frame(s)", rec.ID, r.Frames)
		if !r.Deterministic && r.Skipped == "" {
			result.AllDeterministic = false
		}
		result.Sessions = append(result.Sessions, r)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// replaySession re-executes one session without recording it.
func replaySession(ctx context.Context, st *store.Store, rec store.SessionRecord, playerOpts harness.PlayerOptions) (ReplaySessionResult, error) {
	r := ReplaySessionResult{SessionID: rec.ID, Source: rec.Source}

	programs, err := st.ReadPrograms(ctx, rec.ID)
	if err != nil {
		return r, err
	}
	frames, err := st.ReadFrames(ctx, rec.ID)
	if err != nil {
		return r, err
	}
	r.Frames = len(frames)
	if len(programs) != 1 {
		r.Skipped = fmt.Sprintf("session ran %d programs", len(programs))
		return r, nil
	}

	g, b, err := loadPatch(rec.Source)
	if err != nil {
		r.Skipped = fmt.Sprintf("patch unavailable: %v", err)
		return r, nil
	}
	playerOpts.IDs = state.NewFixedGenerator(rec.ID)
	playerOpts.Source = rec.Source
	p, _, err := harness.NewPlayer(g, b, playerOpts)
	if err != nil {
		r.Skipped = fmt.Sprintf("patch no longer compiles: %v", err)
		return r, nil
	}
	if p.Program().Hash != programs[0].Hash {
		r.FirstDivergence = programs[0].FirstFrame
		return r, nil
	}

	r.Deterministic = true
	for _, want := range frames {
		f, err := p.Step(ctx, want.TimeMs)
		if err != nil {
			return r, fmt.Errorf("frame %d: %w", want.Frame, err)
		}
		digest, err := f.Digest()
		if err != nil {
			return r, err
		}
		if f.Frame != want.Frame || digest != want.Digest {
			r.Deterministic = false
			r.FirstDivergence = want.Frame
			break
		}
	}
	return r, nil
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) {
	w := formatter.Writer
	if result.TotalSessions == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return
	}
	for _, s := range result.Sessions {
		switch {
		case s.Skipped != "":
			fmt.Fprintf(w, "- %s skipped: %s\n", s.SessionID, s.Skipped)
		case s.Deterministic:
			fmt.Fprintf(w, "✓ %s: %d frame(s) reproduced\n", s.SessionID, s.Frames)
		default:
			fmt.Fprintf(w, "✗ %s: diverges at frame %d\n", s.SessionID, s.FirstDivergence)
		}
	}
	if result.AllDeterministic {
		fmt.Fprintln(w, "\n✓ All sessions are deterministic")
	} else {
		fmt.Fprintln(w, "\n✗ Determinism verification failed")
	}
}
