package store

import (
	"context"
	"fmt"
)

// Comparison is the result of comparing two recorded sessions frame by frame.
type Comparison struct {
	A, B string
	// Compared is the number of frame numbers present in both sessions.
	Compared int
	// FirstDivergence is the first frame whose digests differ, or 0 when
	// every compared frame matches. Frame numbers start at 1.
	FirstDivergence uint64
	// Divergent counts compared frames with different digests.
	Divergent int
	// OnlyA and OnlyB count frames recorded in one session but not the other.
	OnlyA, OnlyB int
}

// Identical reports whether both sessions recorded the same frames with the
// same digests.
func (c Comparison) Identical() bool {
	return c.Divergent == 0 && c.OnlyA == 0 && c.OnlyB == 0
}

// Compare checks two sessions for determinism: identical programs run over
// identical times must produce identical frame digests.
func (s *Store) Compare(ctx context.Context, a, b string) (Comparison, error) {
	c := Comparison{A: a, B: b}

	fa, err := s.ReadFrames(ctx, a)
	if err != nil {
		return c, fmt.Errorf("compare: %w", err)
	}
	fb, err := s.ReadFrames(ctx, b)
	if err != nil {
		return c, fmt.Errorf("compare: %w", err)
	}

	// Both lists are sorted by frame number.
	i, j := 0, 0
	for i < len(fa) && j < len(fb) {
		switch {
		case fa[i].Frame < fb[j].Frame:
			c.OnlyA++
			i++
		case fa[i].Frame > fb[j].Frame:
			c.OnlyB++
			j++
		default:
			c.Compared++
			if fa[i].Digest != fb[j].Digest {
				c.Divergent++
				if c.FirstDivergence == 0 {
					c.FirstDivergence = fa[i].Frame
				}
			}
			i++
			j++
		}
	}
	c.OnlyA += len(fa) - i
	c.OnlyB += len(fb) - j
	return c, nil
}
