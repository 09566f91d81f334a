package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framegraph/internal/ir"
	"github.com/roach88/framegraph/internal/store"
)

func TestReplayMissingDatabaseFlag(t *testing.T) {
	_, err := execute(NewReplayCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayEmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trace.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No sessions found in database.\n", out)
}

func TestReplayDeterministic(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trace.db")
	recordSessions(t, db, map[string][]string{
		"grid":    {gridPatch, "-n", "5"},
		"orbit":   {"fixture:orbit", "-n", "30", "--step", "100"},
		"swapped": {"fixture:grid", "-n", "4", "--swap", "2:fixture:grid9"},
	})

	out, err := execute(NewReplayCommand(&RootOptions{Format: "json"}), "--db", db)
	require.NoError(t, err)
	var result ReplayResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.AllDeterministic)
	assert.Equal(t, 3, result.TotalSessions)

	byID := map[string]ReplaySessionResult{}
	for _, s := range result.Sessions {
		byID[s.SessionID] = s
	}
	assert.True(t, byID["grid"].Deterministic)
	assert.Equal(t, 5, byID["grid"].Frames)
	assert.True(t, byID["orbit"].Deterministic)
	assert.Equal(t, "session ran 2 programs", byID["swapped"].Skipped)
}

func TestReplaySpecificSessionText(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trace.db")
	recordSessions(t, db, map[string][]string{
		"one": {"fixture:grid", "-n", "2"},
		"two": {"fixture:grid", "-n", "2"},
	})

	out, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), "--db", db, "--session", "two")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ two: 2 frame(s) reproduced")
	assert.NotContains(t, out, "one")
	assert.Contains(t, out, "All sessions are deterministic")
}

func TestReplayDetectsDivergence(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "trace.db")
	recordSessions(t, db, map[string][]string{"s": {"fixture:grid", "-n", "2"}})

	st, err := store.Open(db)
	require.NoError(t, err)
	frames, err := st.ReadFrames(ctx, "s")
	require.NoError(t, err)
	// Copy the session with frame 2's digest corrupted.
	require.NoError(t, st.WriteSession(ctx, store.NewSessionRecord("tampered", ir.InfiniteTime(1000, 4000), "fixture:grid")))
	require.NoError(t, st.WriteProgram(ctx, store.ProgramRecord{SessionID: "tampered", Hash: frames[0].ProgramHash, FirstFrame: 1}))
	for _, f := range frames {
		f.SessionID = "tampered"
		if f.Frame == 2 {
			f.Digest = "0000"
		}
		require.NoError(t, st.WriteFrame(ctx, f))
	}
	require.NoError(t, st.Close())

	out, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), "--db", db, "--session", "tampered")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ tampered: diverges at frame 2")
}

func TestReplayMissingSession(t *testing.T) {
	db := filepath.Join(t.TempDir(), "trace.db")
	recordSessions(t, db, map[string][]string{"s": {"fixture:grid", "-n", "1"}})

	_, err := execute(NewReplayCommand(&RootOptions{Format: "text"}), "--db", db, "--session", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
