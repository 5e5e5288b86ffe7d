package resonator

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// madScale converts a median absolute deviation into a Gaussian sigma.
const madScale = 1.4826

func median(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	return stat.Quantile(0.5, stat.Empirical, s, nil)
}

// robustSpread returns the median of x and the MAD-based sigma around it.
func robustSpread(x []float64) (center, sigma float64) {
	center = median(x)
	dev := make([]float64, len(x))
	for i, v := range x {
		dev[i] = math.Abs(v - center)
	}
	return center, madScale * median(dev)
}

// unwrap removes 2*pi jumps between consecutive phases.
func unwrap(phase []float64) []float64 {
	out := make([]float64, len(phase))
	if len(phase) == 0 {
		return out
	}
	out[0] = phase[0]
	offset := 0.0
	for i := 1; i < len(phase); i++ {
		d := phase[i] - phase[i-1]
		switch {
		case d > math.Pi:
			offset -= 2 * math.Pi * math.Ceil((d-math.Pi)/(2*math.Pi))
		case d < -math.Pi:
			offset += 2 * math.Pi * math.Ceil((-d-math.Pi)/(2*math.Pi))
		}
		out[i] = phase[i] + offset
	}
	return out
}

// anglesAbout returns the unwrapped angles of points about center.
func anglesAbout(points []complex128, center complex128) []float64 {
	raw := make([]float64, len(points))
	for i, p := range points {
		raw[i] = cmplx.Phase(p - center)
	}
	return unwrap(raw)
}

// interpolate evaluates the piecewise-linear curve (x, y) at v. x must be
// increasing; ok is false outside [x[0], x[n-1]].
func interpolate(x, y []float64, v float64) (float64, bool) {
	n := len(x)
	if n == 0 || v < x[0] || v > x[n-1] {
		return 0, false
	}
	i := sort.SearchFloat64s(x, v)
	if i < n && x[i] == v {
		return y[i], true
	}
	if i == 0 {
		return y[0], true
	}
	t := (v - x[i-1]) / (x[i] - x[i-1])
	return y[i-1] + t*(y[i]-y[i-1]), true
}
