package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRun(t *testing.T, s *Store, id string, tags ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.WriteSession(ctx, testSession(id)))
	recs := make([]FrameRecord, len(tags))
	for i, tag := range tags {
		recs[i] = createTestFrame(id, uint64(i+1), tag)
	}
	require.NoError(t, s.WriteFrames(ctx, recs))
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name      string
		a, b      []string
		identical bool
		first     uint64
		divergent int
		onlyA     int
		onlyB     int
	}{
		{"identical", []string{"x", "y", "z"}, []string{"x", "y", "z"}, true, 0, 0, 0, 0},
		{"diverges", []string{"x", "y", "z"}, []string{"x", "q", "r"}, false, 2, 2, 0, 0},
		{"shorter b", []string{"x", "y", "z"}, []string{"x"}, false, 0, 0, 2, 0},
		{"longer b", []string{"x"}, []string{"x", "y"}, false, 0, 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestStore(t)
			writeRun(t, s, "a", tt.a...)
			writeRun(t, s, "b", tt.b...)

			c, err := s.Compare(context.Background(), "a", "b")
			require.NoError(t, err)
			assert.Equal(t, tt.identical, c.Identical())
			assert.Equal(t, tt.first, c.FirstDivergence)
			assert.Equal(t, tt.divergent, c.Divergent)
			assert.Equal(t, tt.onlyA, c.OnlyA)
			assert.Equal(t, tt.onlyB, c.OnlyB)
		})
	}
}
