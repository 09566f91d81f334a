package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameClock_Sequence(t *testing.T) {
	clock := NewFrameClock(100, 16)
	assert.Equal(t, 100.0, clock.Next())
	assert.Equal(t, 116.0, clock.Next())
	assert.Equal(t, 132.0, clock.Next())
	assert.Equal(t, 3, clock.Frames())
}

func TestFrameClock_Reset(t *testing.T) {
	clock := NewFrameClock(0, 10)
	clock.Next()
	clock.Next()
	clock.Reset()
	assert.Equal(t, 0, clock.Frames())
	assert.Equal(t, 0.0, clock.Next())
}

func TestFrameClock_ThreadSafe(t *testing.T) {
	clock := NewFrameClock(0, 1)
	const workers = 50
	const calls = 20

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[float64]bool)
	)
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for range calls {
				v := clock.Next()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*calls, "every frame time handed out once")
	assert.Equal(t, workers*calls, clock.Frames())
}
