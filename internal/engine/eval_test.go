package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/framegraph/internal/ir"
)

func TestReduce(t *testing.T) {
	buf := []float32{1, 10, 3, 30, 2, 20}
	out := make([]float64, 2)

	reduce(out, buf, 3, ir.ReduceSum)
	assert.Equal(t, []float64{6, 60}, out)
	reduce(out, buf, 3, ir.ReduceMin)
	assert.Equal(t, []float64{1, 10}, out)
	reduce(out, buf, 3, ir.ReduceMax)
	assert.Equal(t, []float64{3, 30}, out)
	reduce(out, buf, 3, ir.ReduceMean)
	assert.Equal(t, []float64{2, 20}, out)
	reduce(out, nil, 0, ir.ReduceMean)
	assert.Equal(t, []float64{0, 0}, out)
}

func TestPathDerivativeSquare(t *testing.T) {
	pts := []float32{0, 0, 1, 0, 1, 1, 0, 1}
	out := make([]float32, 8)
	pathDerivative(out, pts, 4, 2)
	assert.Equal(t, []float32{0.5, -0.5, 0.5, 0.5, -0.5, 0.5, -0.5, -0.5}, out)
}

func TestUnitHash(t *testing.T) {
	seed := keySeed("grid")
	assert.Equal(t, seed, keySeed("grid"))
	assert.NotEqual(t, seed, keySeed("ring"))

	seen := map[float32]bool{}
	for i := range uint64(256) {
		v := unitHash(seed, i)
		assert.GreaterOrEqual(t, v, float32(0))
		assert.Less(t, v, float32(1))
		seen[v] = true
	}
	assert.Greater(t, len(seen), 250)
}

func TestToByte(t *testing.T) {
	assert.Equal(t, uint8(0), toByte(-1))
	assert.Equal(t, uint8(128), toByte(0.5))
	assert.Equal(t, uint8(255), toByte(2))
	assert.Equal(t, uint8(0), toByte(float32NaN()))
}

func float32NaN() float32 {
	var zero float32
	return zero / zero
}

func TestFrameDigest(t *testing.T) {
	f := &RenderFrame{Version: FrameVersion, Frame: 1, TimeMs: 0, Ops: []DrawOp{{
		Block: "render", Instance: "grid", Count: 1,
		Position: []float32{1, 2}, PositionStride: 2,
		Color: []uint8{255, 0, 0, 255}, Scale: 1,
		Shape: Geometry{Topology: "circle", Params: map[string]float64{"radius": 0.4}},
	}}}
	a, err := f.Digest()
	assert.NoError(t, err)
	assert.Len(t, a, 64)

	f.Ops[0].Position[0] = 1.5
	b, err := f.Digest()
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}
