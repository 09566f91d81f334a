package state

// DefaultArenaChunk is the chunk size, in float32 values, of an arena created
// with a non-positive capacity.
const DefaultArenaChunk = 1 << 16

// Arena is a scratch pool for per-frame field buffers. Buffers handed out stay
// valid until Reset; growing never moves them. The owner resets the arena once
// per frame.
type Arena struct {
	chunkSize int
	chunks    [][]float32
	cur       int
	off       int
}

// NewArena creates an arena whose first chunk holds capacity values.
func NewArena(capacity int) *Arena {
	if capacity <= 0 {
		capacity = DefaultArenaChunk
	}
	return &Arena{
		chunkSize: capacity,
		chunks:    [][]float32{make([]float32, capacity)},
	}
}

// Alloc returns a zeroed buffer of n values.
func (a *Arena) Alloc(n int) []float32 {
	if n <= 0 {
		return nil
	}
	for a.cur < len(a.chunks) {
		c := a.chunks[a.cur]
		if a.off+n <= len(c) {
			buf := c[a.off : a.off+n : a.off+n]
			a.off += n
			clear(buf)
			return buf
		}
		a.cur++
		a.off = 0
	}
	size := max(n, a.chunkSize)
	a.chunks = append(a.chunks, make([]float32, size))
	a.off = n
	return a.chunks[a.cur][:n:n]
}

// Reset releases every buffer handed out since the last Reset.
func (a *Arena) Reset() {
	a.cur = 0
	a.off = 0
}

// Used returns the number of values consumed since the last Reset, including
// chunk tails skipped by allocations that did not fit.
func (a *Arena) Used() int {
	n := a.off
	for i := 0; i < a.cur && i < len(a.chunks); i++ {
		n += len(a.chunks[i])
	}
	return n
}

// Capacity returns the total number of values the arena holds.
func (a *Arena) Capacity() int {
	n := 0
	for _, c := range a.chunks {
		n += len(c)
	}
	return n
}
