package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/framegraph/internal/ir"
)

// createTestStore opens a fresh file-backed store for one test.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestFrame creates a frame record with a digest derived from tag.
func createTestFrame(sessionID string, frame uint64, tag string) FrameRecord {
	return FrameRecord{
		SessionID:   sessionID,
		Frame:       frame,
		TimeMs:      float64(frame-1) * 16,
		ProgramHash: "prog-hash",
		Digest:      "digest-" + tag,
		Ops:         1,
		Elements:    4,
	}
}

func testSession(id string) SessionRecord {
	return NewSessionRecord(id, ir.InfiniteTime(1000, 4000), "grid.cue")
}
