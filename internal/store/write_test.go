package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/framegraph/internal/ir"
)

func TestWriteSession_AssignsSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteSession(ctx, testSession("b")))
	require.NoError(t, s.WriteSession(ctx, testSession("a")))
	require.NoError(t, s.WriteSession(ctx, testSession("b")), "rewrite is a no-op")

	sessions, err := s.ReadSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "b", sessions[0].ID)
	assert.Equal(t, int64(1), sessions[0].Seq)
	assert.Equal(t, "a", sessions[1].ID)
	assert.Equal(t, int64(2), sessions[1].Seq)
}

func TestReadSession_RoundTripsTimeModel(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rec := NewSessionRecord("s", ir.FiniteTime(2500), "clip.cue")
	require.NoError(t, s.WriteSession(ctx, rec))

	got, err := s.ReadSession(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, ir.FiniteTime(2500), got.Time)
	assert.Equal(t, "clip.cue", got.Source)
	assert.Equal(t, ir.EngineVersion, got.EngineVersion)
	assert.Equal(t, ir.IRVersion, got.IRVersion)

	_, err = s.ReadSession(ctx, "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestWriteProgram_RequiresSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.WriteProgram(ctx, ProgramRecord{SessionID: "ghost", Hash: "h"})
	assert.Error(t, err, "foreign key must reject programs of unknown sessions")
}

func TestWriteProgram_SwapOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteSession(ctx, testSession("s")))

	require.NoError(t, s.WriteProgram(ctx, ProgramRecord{SessionID: "s", Seq: 1, Hash: "second", FirstFrame: 31}))
	require.NoError(t, s.WriteProgram(ctx, ProgramRecord{SessionID: "s", Seq: 0, Hash: "first", FirstFrame: 1}))
	require.NoError(t, s.WriteProgram(ctx, ProgramRecord{SessionID: "s", Seq: 0, Hash: "dup", FirstFrame: 1}))

	programs, err := s.ReadPrograms(ctx, "s")
	require.NoError(t, err)
	require.Len(t, programs, 2)
	assert.Equal(t, "first", programs[0].Hash)
	assert.Equal(t, "second", programs[1].Hash)
	assert.Equal(t, uint64(31), programs[1].FirstFrame)
}

func TestWriteFrames_IdempotentAndOrdered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteSession(ctx, testSession("s")))

	require.NoError(t, s.WriteFrames(ctx, []FrameRecord{
		createTestFrame("s", 3, "c"),
		createTestFrame("s", 1, "a"),
		createTestFrame("s", 2, "b"),
	}))
	require.NoError(t, s.WriteFrame(ctx, createTestFrame("s", 2, "other")))

	frames, err := s.ReadFrames(ctx, "s")
	require.NoError(t, err)
	require.Len(t, frames, 3)
	for i, f := range frames {
		assert.Equal(t, uint64(i+1), f.Frame)
	}
	assert.Equal(t, "digest-b", frames[1].Digest, "first write wins")

	f, err := s.ReadFrame(ctx, "s", 3)
	require.NoError(t, err)
	assert.Equal(t, 32.0, f.TimeMs)

	_, err = s.ReadFrame(ctx, "s", 9)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestWriteFrames_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteSession(ctx, testSession("s")))

	err := s.WriteFrames(ctx, []FrameRecord{
		createTestFrame("s", 1, "a"),
		createTestFrame("ghost", 2, "b"),
	})
	require.Error(t, err)

	frames, err := s.ReadFrames(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestReadFrames_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)
	frames, err := s.ReadFrames(context.Background(), "none")
	require.NoError(t, err)
	assert.NotNil(t, frames)
	assert.Empty(t, frames)
}
