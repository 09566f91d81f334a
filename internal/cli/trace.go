package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/store"
)

// TraceOptions holds flags shared by the trace subcommands.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
}

// SessionSummary is one recorded session.
type SessionSummary struct {
	ID       string            `json:"id"`
	Source   string            `json:"source"`
	Time     string            `json:"time"`
	Programs []ProgramLine     `json:"programs,omitempty"`
	Frames   int               `json:"frames"`
	Records  []FrameLine       `json:"records,omitempty"`
	Versions map[string]string `json:"versions"`
}

// ProgramLine is one program a session ran.
type ProgramLine struct {
	Seq        int64  `json:"seq"`
	Hash       string `json:"hash"`
	Steps      int    `json:"steps"`
	Slots      int    `json:"slots"`
	FirstFrame uint64 `json:"first_frame"`
}

// NewTraceCommand creates the trace command and its subcommands.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded frame traces",
		Long: `Read sessions recorded with "run --trace" back from the SQLite trace
database.

Examples:
  framegraph trace sessions --db ./trace.db
  framegraph trace frames --db ./trace.db --session demo
  framegraph trace compare --db ./trace.db demo demo-2`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	sessions := &cobra.Command{
		Use:           "sessions",
		Short:         "List recorded sessions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceSessions(opts, cmd)
		},
	}

	frames := &cobra.Command{
		Use:           "frames",
		Short:         "Show the programs and frames of one session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceFrames(opts, cmd)
		},
	}
	frames.Flags().StringVar(&opts.Session, "session", "", "session id (required)")
	_ = frames.MarkFlagRequired("session")

	compare := &cobra.Command{
		Use:   "compare <session-a> <session-b>",
		Short: "Compare frame digests of two sessions",
		Long: `Compare two sessions frame by frame.

Exit codes:
  0 - Both sessions recorded identical frames
  1 - The sessions diverge
  2 - Command error (database not found, etc.)`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceCompare(opts, args[0], args[1], cmd)
		},
	}

	cmd.AddCommand(sessions, frames, compare)
	return cmd
}

// openTrace opens an existing trace database. Unlike store.Open it refuses
// to create a new file.
func openTrace(path string) (*store.Store, error) {
	if path != store.MemoryPath {
		if _, err := os.Stat(path); err != nil {
			return nil, WrapExitError(ExitCommandError, "trace database not found", err)
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open trace database", err)
	}
	return st, nil
}

func describeTime(m ir.TimeModel) string {
	if m.Kind == ir.TimeFinite {
		return fmt.Sprintf("finite %gms", m.DurationMs)
	}
	return fmt.Sprintf("infinite A=%gms B=%gms", m.PeriodAMs, m.PeriodBMs)
}

func sessionSummary(rec store.SessionRecord) SessionSummary {
	return SessionSummary{
		ID:     rec.ID,
		Source: rec.Source,
		Time:   describeTime(rec.Time),
		Versions: map[string]string{
			"engine": rec.EngineVersion,
			"ir":     rec.IRVersion,
		},
	}
}

func runTraceSessions(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openTrace(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := st.ReadSessions(ctx)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read sessions", err)
	}
	summaries := make([]SessionSummary, 0, len(recs))
	for _, rec := range recs {
		s := sessionSummary(rec)
		frames, err := st.ReadFrames(ctx, rec.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read frames", err)
		}
		s.Frames = len(frames)
		summaries = append(summaries, s)
	}

	if formatter.Format == "json" {
		return formatter.Success(summaries)
	}
	w := formatter.Writer
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "%s  %d frame(s)  %s  %s\n", s.ID, s.Frames, s.Time, s.Source)
	}
	return nil
}

func runTraceFrames(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openTrace(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.ReadSession(ctx, opts.Session)
	if errors.Is(err, sql.ErrNoRows) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no session %q", opts.Session), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("session not found: %s", opts.Session))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}
	s := sessionSummary(rec)

	programs, err := st.ReadPrograms(ctx, rec.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read programs", err)
	}
	for _, p := range programs {
		s.Programs = append(s.Programs, ProgramLine{Seq: p.Seq, Hash: p.Hash, Steps: p.Steps, Slots: p.Slots, FirstFrame: p.FirstFrame})
	}
	frames, err := st.ReadFrames(ctx, rec.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read frames", err)
	}
	s.Frames = len(frames)
	for _, f := range frames {
		s.Records = append(s.Records, FrameLine{
			Frame:    f.Frame,
			TimeMs:   f.TimeMs,
			Program:  f.ProgramHash,
			Ops:      f.Ops,
			Elements: f.Elements,
			Digest:   f.Digest,
		})
	}

	if formatter.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: s, SessionID: s.ID})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Session %s (%s)\n", s.ID, s.Time)
	fmt.Fprintf(w, "Source: %s\n", s.Source)
	fmt.Fprintln(w, "Programs:")
	for _, p := range s.Programs {
		fmt.Fprintf(w, "  #%d %s  steps=%d slots=%d  from frame %d\n", p.Seq, short(p.Hash), p.Steps, p.Slots, p.FirstFrame)
	}
	fmt.Fprintf(w, "Frames (%d):\n", s.Frames)
	for _, f := range s.Records {
		fmt.Fprintf(w, "  frame %5d  t=%10.2fms  ops=%d  elements=%d  %s\n",
			f.Frame, f.TimeMs, f.Ops, f.Elements, short(f.Digest))
	}
	return nil
}

func runTraceCompare(opts *TraceOptions, a, b string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openTrace(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	for _, id := range []string{a, b} {
		if _, err := st.ReadSession(ctx, id); errors.Is(err, sql.ErrNoRows) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no session %q", id), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("session not found: %s", id))
		} else if err != nil {
			return WrapExitError(ExitCommandError, "failed to read session", err)
		}
	}

	c, err := st.Compare(ctx, a, b)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compare sessions", err)
	}
	if err := outputComparison(formatter, c); err != nil {
		return err
	}
	if !c.Identical() {
		return NewExitError(ExitFailure, fmt.Sprintf("sessions %s and %s diverge", a, b))
	}
	return nil
}

func outputComparison(formatter *OutputFormatter, c store.Comparison) error {
	if formatter.Format == "json" {
		status := "ok"
		if !c.Identical() {
			status = "error"
		}
		return formatter.JSON(CLIResponse{Status: status, Data: map[string]any{
			"a":                c.A,
			"b":                c.B,
			"compared":         c.Compared,
			"divergent":        c.Divergent,
			"first_divergence": c.FirstDivergence,
			"only_a":           c.OnlyA,
			"only_b":           c.OnlyB,
			"identical":        c.Identical(),
		}})
	}
	w := formatter.Writer
	if c.Identical() {
		fmt.Fprintf(w, "✓ %s and %s are identical (%d frame(s))\n", c.A, c.B, c.Compared)
		return nil
	}
	fmt.Fprintf(w, "✗ %s and %s diverge\n", c.A, c.B)
	fmt.Fprintf(w, "  compared: %d, divergent: %d\n", c.Compared, c.Divergent)
	if c.FirstDivergence > 0 {
		fmt.Fprintf(w, "  first divergence at frame %d\n", c.FirstDivergence)
	}
	if c.OnlyA > 0 || c.OnlyB > 0 {
		fmt.Fprintf(w, "  unmatched frames: %d only in %s, %d only in %s\n", c.OnlyA, c.A, c.OnlyB, c.B)
	}
	return nil
}
