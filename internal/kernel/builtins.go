package kernel

import "math"

func mustScalar(r *Registry, name string, arity int, fn ScalarFn) {
	if _, err := r.RegisterScalar(name, arity, fn); err != nil {
		panic(err)
	}
}

func mustLane(r *Registry, name string, in []int, stride int, fn LaneFn) {
	if _, err := r.RegisterLane(name, in, stride, fn); err != nil {
		panic(err)
	}
}

func registerBuiltins(r *Registry) {
	mustScalar(r, "add", 2, func(a []float64) float64 { return a[0] + a[1] })
	mustScalar(r, "sub", 2, func(a []float64) float64 { return a[0] - a[1] })
	mustScalar(r, "mul", 2, func(a []float64) float64 { return a[0] * a[1] })
	mustScalar(r, "div", 2, func(a []float64) float64 {
		if a[1] == 0 {
			return 0
		}
		return a[0] / a[1]
	})
	mustScalar(r, "min", 2, func(a []float64) float64 { return math.Min(a[0], a[1]) })
	mustScalar(r, "max", 2, func(a []float64) float64 { return math.Max(a[0], a[1]) })
	mustScalar(r, "pow", 2, func(a []float64) float64 { return math.Pow(a[0], a[1]) })
	mustScalar(r, "mod", 2, func(a []float64) float64 { return floorMod(a[0], a[1]) })
	mustScalar(r, "sin", 1, func(a []float64) float64 { return math.Sin(a[0]) })
	mustScalar(r, "cos", 1, func(a []float64) float64 { return math.Cos(a[0]) })
	mustScalar(r, "abs", 1, func(a []float64) float64 { return math.Abs(a[0]) })
	mustScalar(r, "negate", 1, func(a []float64) float64 { return -a[0] })
	mustScalar(r, "sqrt", 1, func(a []float64) float64 { return math.Sqrt(math.Max(a[0], 0)) })
	mustScalar(r, "fract", 1, func(a []float64) float64 { return a[0] - math.Floor(a[0]) })
	mustScalar(r, "clamp01", 1, func(a []float64) float64 { return clamp01(a[0]) })
	mustScalar(r, "lerp", 3, func(a []float64) float64 { return a[0] + (a[1]-a[0])*a[2] })

	// grid2d(index, columns, spacing) -> vec2
	mustLane(r, "grid2d", []int{1, 1, 1}, 2, func(out []float64, a [][]float64) {
		i, cols, sp := a[0][0], math.Max(1, math.Floor(a[1][0])), a[2][0]
		out[0] = floorMod(i, cols) * sp
		out[1] = math.Floor(i/cols) * sp
	})
	// polar2d(angle, radius) -> vec2
	mustLane(r, "polar2d", []int{1, 1}, 2, func(out []float64, a [][]float64) {
		out[0] = math.Cos(a[0][0]) * a[1][0]
		out[1] = math.Sin(a[0][0]) * a[1][0]
	})
	// rotate2d(vec2, angle) -> vec2
	mustLane(r, "rotate2d", []int{2, 1}, 2, func(out []float64, a [][]float64) {
		x, y := a[0][0], a[0][1]
		s, c := math.Sincos(a[1][0])
		out[0] = x*c - y*s
		out[1] = x*s + y*c
	})
	// vec2len(vec2) -> float
	mustLane(r, "vec2len", []int{2}, 1, func(out []float64, a [][]float64) {
		out[0] = math.Hypot(a[0][0], a[0][1])
	})
	// hsv2rgb(h, s, v) -> color, alpha 1
	mustLane(r, "hsv2rgb", []int{1, 1, 1}, 4, func(out []float64, a [][]float64) {
		out[0], out[1], out[2] = hsvToRGB(a[0][0], clamp01(a[1][0]), clamp01(a[2][0]))
		out[3] = 1
	})
	// rgba(r, g, b, a) -> color
	mustLane(r, "rgba", []int{1, 1, 1, 1}, 4, func(out []float64, a [][]float64) {
		for c := range 4 {
			out[c] = clamp01(a[c][0])
		}
	})
}

func floorMod(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a - b*math.Floor(a/b)
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}

func hsvToRGB(h, s, v float64) (r, g, b float64) {
	h = floorMod(h, 1) * 6
	i := math.Floor(h)
	f := h - i
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))
	switch int(i) {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}
