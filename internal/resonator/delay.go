package resonator

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// invPhi is the golden-section reduction ratio.
var invPhi = (math.Sqrt(5) - 1) / 2

// DelayCorrection describes the phase trend removed from a trace.
type DelayCorrection struct {
	Applied      bool
	Slope        float64 // removed phase slope, rad/Hz
	Delay        float64 // equivalent electrical delay, s
	RefFrequency float64 // frequency of zero applied rotation
	OffResonant  int     // off-resonant points used for the seed estimate
	Reason       string  // why the correction was skipped
	// Source is DelayFromReflection when the slope was taken from the
	// reflection ports instead of being searched on this trace.
	Source string
}

// DelayFromReflection marks a transmission delay derived from S11 and S22.
const DelayFromReflection = "reflection"

// ApplyDelay removes a known phase slope from tr.
func ApplyDelay(tr Trace, slope float64, source string) (Trace, DelayCorrection) {
	corr := DelayCorrection{Source: source}
	if tr.Len() == 0 {
		corr.Reason = "empty trace"
		return tr, corr
	}
	corr.RefFrequency = (tr.Freq[0] + tr.Freq[len(tr.Freq)-1]) / 2
	corr.Applied = true
	corr.Slope = slope
	corr.Delay = -slope / (2 * math.Pi)
	return Trace{Port: tr.Port, Freq: tr.Freq, Data: derotate(tr.Freq, tr.Data, slope, corr.RefFrequency)}, corr
}

// CorrectDelay cancels the linear phase rotation added by cables and
// connectors. The trend is seeded from the off-resonant tails and refined by
// a bounded search for the slope that makes the de-rotated trace most
// circular. Every point counts in the circularity score through a Cauchy
// loss, so the resonance points that carry the delay information cannot be
// discarded by the search while isolated outliers stay bounded. When the
// tails are too short the trace is returned unchanged and the reason is
// reported.
func CorrectDelay(tr Trace, opts Options) (Trace, DelayCorrection) {
	opts = opts.withDefaults()

	var idx []int
	for i := range tr.Freq {
		if tr.finite(i) {
			idx = append(idx, i)
		}
	}
	if len(idx) < opts.MinFitPoints {
		return tr, DelayCorrection{Reason: "too few finite points"}
	}

	freq := make([]float64, len(idx))
	data := make([]complex128, len(idx))
	mags := make([]float64, len(idx))
	for j, i := range idx {
		freq[j] = tr.Freq[i]
		data[j] = tr.Data[i]
		mags[j] = cmplx.Abs(tr.Data[i])
	}
	ref := (freq[0] + freq[len(freq)-1]) / 2

	off, peak := offResonant(mags, opts)
	corr := DelayCorrection{RefFrequency: ref, OffResonant: len(off)}
	if len(off) < 2 {
		corr.Reason = "fewer than two off-resonant points"
		return tr, corr
	}

	seed := tailSlope(freq, data, off, peak, ref)
	span := freq[len(freq)-1] - freq[0]
	half := math.Abs(seed) + math.Pi/span

	scale := residualScale(derotate(freq, data, seed, ref), opts)
	score := func(slope float64) float64 {
		return circularity(derotate(freq, data, slope, ref), opts.DelayTrimFraction, scale)
	}

	// Coarse grid, then golden-section refinement inside the best cell.
	step := 2 * half / float64(opts.DelayGridSteps)
	best, bestScore := seed, math.Inf(1)
	for i := 0; i <= opts.DelayGridSteps; i++ {
		s := seed - half + float64(i)*step
		if v := score(s); v < bestScore {
			best, bestScore = s, v
		}
	}
	if math.IsInf(bestScore, 1) {
		corr.Reason = "circle fit failed for every candidate slope"
		return tr, corr
	}

	lo, hi := best-step, best+step
	c := hi - invPhi*(hi-lo)
	d := lo + invPhi*(hi-lo)
	fc, fd := score(c), score(d)
	for i := 0; i < opts.DelayRefineIterations; i++ {
		if hi-lo <= 1e-15*math.Max(math.Abs(hi), math.Abs(lo)) {
			break
		}
		if fc < fd {
			hi, d, fd = d, c, fc
			c = hi - invPhi*(hi-lo)
			fc = score(c)
		} else {
			lo, c, fc = c, d, fd
			d = lo + invPhi*(hi-lo)
			fd = score(d)
		}
	}
	if fc < bestScore {
		best, bestScore = c, fc
	}
	if fd < bestScore {
		best = d
	}

	out := Trace{Port: tr.Port, Freq: tr.Freq, Data: derotate(tr.Freq, tr.Data, best, ref)}
	corr.Applied = true
	corr.Slope = best
	corr.Delay = -best / (2 * math.Pi)
	return out, corr
}

// offResonant returns the indices of samples whose magnitude is close to the
// off-resonant asymptote, and the index of the resonance extremum.
func offResonant(mags []float64, opts Options) ([]int, int) {
	n := len(mags)
	edge := int(opts.EdgeFraction * float64(n))
	if edge < 1 {
		edge = 1
	}
	if 2*edge > n {
		edge = n / 2
	}
	ends := append(append([]float64(nil), mags[:edge]...), mags[n-edge:]...)
	asymptote := median(ends)

	peak, depth := 0, 0.0
	for i, m := range mags {
		if d := math.Abs(m - asymptote); d > depth {
			peak, depth = i, d
		}
	}

	var off []int
	for i, m := range mags {
		if i != peak && math.Abs(m-asymptote) <= opts.OffResonantTolerance*depth {
			off = append(off, i)
		}
	}
	return off, peak
}

// tailSlope regresses the unwrapped phase on each side of the resonance and
// returns the count-weighted mean slope of the usable sides.
func tailSlope(freq []float64, data []complex128, off []int, peak int, ref float64) float64 {
	var left, right []int
	for _, i := range off {
		if i < peak {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	var sum, weight float64
	for _, side := range [][]int{left, right} {
		if len(side) < 2 {
			continue
		}
		x := make([]float64, len(side))
		phase := make([]float64, len(side))
		for j, i := range side {
			x[j] = freq[i] - ref
			phase[j] = cmplx.Phase(data[i])
		}
		_, slope := stat.LinearRegression(x, unwrap(phase), nil, false)
		if math.IsNaN(slope) || math.IsInf(slope, 0) {
			continue
		}
		sum += slope * float64(len(side))
		weight += float64(len(side))
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

func derotate(freq []float64, data []complex128, slope, ref float64) []complex128 {
	out := make([]complex128, len(data))
	for i, v := range data {
		out[i] = v * cmplx.Rect(1, -slope*(freq[i]-ref))
	}
	return out
}

// trimmedFit fits a circle, keeps the best fitting share of the points and
// refits on them, so a handful of outliers cannot pull the circle.
func trimmedFit(points []complex128, keep float64) (CircleFit, error) {
	fit, err := FitCircle(points)
	if err != nil {
		return CircleFit{}, err
	}
	type scored struct {
		dist float64
		p    complex128
	}
	s := make([]scored, len(points))
	for i, p := range points {
		s[i] = scored{dist: math.Abs(fit.Distance(p)), p: p}
	}
	sort.SliceStable(s, func(i, j int) bool { return s[i].dist < s[j].dist })

	k := int(math.Ceil(keep * float64(len(points))))
	if k < 3 {
		k = 3
	}
	if k > len(s) {
		k = len(s)
	}
	best := make([]complex128, k)
	for i := range best {
		best[i] = s[i].p
	}
	return FitCircle(best)
}

// residualScale is the robust spread of the radial residuals of points about
// their trimmed circle, floored relative to the radius for noise-free data.
func residualScale(points []complex128, opts Options) float64 {
	fit, err := trimmedFit(points, opts.DelayTrimFraction)
	if err != nil {
		return math.Inf(1)
	}
	dist := make([]float64, len(points))
	for i, p := range points {
		dist[i] = fit.Distance(p)
	}
	_, sigma := robustSpread(dist)
	return math.Max(sigma, opts.ResidualFloor*fit.Radius)
}

// circularity scores how well all points lie on their trimmed circle:
// sum of log(1 + (d/scale)^2) over the radial residuals d.
func circularity(points []complex128, keep, scale float64) float64 {
	fit, err := trimmedFit(points, keep)
	if err != nil || !(scale > 0) || math.IsInf(scale, 1) {
		return math.Inf(1)
	}
	var sum float64
	for _, p := range points {
		u := fit.Distance(p) / scale
		sum += math.Log1p(u * u)
	}
	return sum
}
