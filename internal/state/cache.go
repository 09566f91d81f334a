package state

import "github.com/roach88/framegraph/internal/ir"

// FrameCache memoizes expression results within one frame. Entries carry the
// stamp of the frame that wrote them: a matching stamp is a hit, anything else
// is stale and gets recomputed. Starting a frame never clears the cache.
type FrameCache struct {
	frame uint64

	sigStamp []uint64
	sigVal   [][]float64

	fieldStamp []uint64
	fieldBuf   [][]float32
	fieldCount []int
}

// NewFrameCache sizes a cache for n expressions.
func NewFrameCache(n int) *FrameCache {
	return &FrameCache{
		sigStamp:   make([]uint64, n),
		sigVal:     make([][]float64, n),
		fieldStamp: make([]uint64, n),
		fieldBuf:   make([][]float32, n),
		fieldCount: make([]int, n),
	}
}

// BeginFrame advances to the next frame id and returns it. Ids start at 1;
// a zero stamp marks an entry never written and is never a hit.
func (c *FrameCache) BeginFrame() uint64 {
	c.frame++
	return c.frame
}

// Frame returns the current frame id.
func (c *FrameCache) Frame() uint64 {
	return c.frame
}

// Signal returns the cached components of a signal expression.
func (c *FrameCache) Signal(id ir.ExprID) ([]float64, bool) {
	if int(id) >= len(c.sigStamp) || c.sigStamp[id] == 0 || c.sigStamp[id] != c.frame {
		return nil, false
	}
	return c.sigVal[id], true
}

// SignalBuffer returns a reusable buffer of n components for id. The buffer
// persists across frames; its content is only meaningful after StoreSignal.
func (c *FrameCache) SignalBuffer(id ir.ExprID, n int) []float64 {
	if cap(c.sigVal[id]) < n {
		c.sigVal[id] = make([]float64, n)
	}
	return c.sigVal[id][:n]
}

// StoreSignal stamps v as id's value for this frame. v should come from
// SignalBuffer.
func (c *FrameCache) StoreSignal(id ir.ExprID, v []float64) {
	c.sigVal[id] = v
	c.sigStamp[id] = c.frame
}

// Field returns the cached buffer and element count of a field expression.
func (c *FrameCache) Field(id ir.ExprID) ([]float32, int, bool) {
	if int(id) >= len(c.fieldStamp) || c.fieldStamp[id] == 0 || c.fieldStamp[id] != c.frame {
		return nil, 0, false
	}
	return c.fieldBuf[id], c.fieldCount[id], true
}

// StoreField stamps buf (count elements) as id's value for this frame. The
// buffer usually lives in the frame arena and must not be read after the
// frame.
func (c *FrameCache) StoreField(id ir.ExprID, buf []float32, count int) {
	c.fieldBuf[id] = buf
	c.fieldCount[id] = count
	c.fieldStamp[id] = c.frame
}
