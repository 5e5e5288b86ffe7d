package resonator

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/optimize"
)

// Resonance locates a resonance on a fitted circle. Angles are measured about
// the circle center and unwrapped along frequency.
type Resonance struct {
	Frequency float64 // resonant frequency, Hz
	Angle     float64 // angle of the resonance point about the center
	Direction float64 // sign of the angle change with increasing frequency

	// Half-power frequencies and the resulting loaded Q. LoadedQ is NaN when
	// no crossing was found.
	Lower, Upper float64
	LoadedQ      float64

	Warnings []error
}

// Point returns the resonance point on the circle.
func (r Resonance) Point(fit CircleFit) complex128 {
	return fit.At(r.Angle)
}

// Bandwidth returns the half-power bandwidth, NaN when unknown.
func (r Resonance) Bandwidth() float64 {
	if math.IsNaN(r.LoadedQ) {
		return math.NaN()
	}
	return r.Upper - r.Lower
}

const (
	// phaseWindow bounds the points of the phase fit to |t| <= phaseWindow,
	// t = 2*QL*(f-f0)/f0, an angle of about 143 degrees either side.
	phaseWindow = 3
	// minPhasePoints is the smallest window the phase fit accepts.
	minPhasePoints = 5
)

// LocateResonance estimates the resonant frequency, the loaded Q and the
// resonance angle together by a least-squares fit of the Lorentzian phase law
//
//	theta(f) = theta0 + dir*2*atan(2*QL*(f-f0)/f0)
//
// to the angles of the retained points about the circle center. The fit is
// seeded from the steepest angular slope and the +-90 degree crossings, which
// are the half-power points. No crossing at all is recorded in the result
// (LoadedQ NaN plus an ErrNoHalfPower FitError) instead of failing the call.
func LocateResonance(ft FilteredTrace, fit CircleFit) (Resonance, error) {
	freq, pts := ft.RetainedPoints()
	if len(freq) < 3 {
		return Resonance{}, &FitError{Port: ft.Port, Err: ErrTooFewPoints}
	}
	theta := anglesAbout(pts, fit.Center)

	res := Resonance{LoadedQ: math.NaN(), Lower: math.NaN(), Upper: math.NaN()}
	f0, dir, warn := steepestSlope(freq, theta)
	if warn != "" {
		res.Warnings = append(res.Warnings, &ConvergenceWarning{Port: ft.Port, Stage: "resonant frequency refinement", Detail: warn})
	}
	res.Frequency = f0
	res.Direction = dir
	res.Angle, _ = interpolate(freq, theta, f0)

	lower, lowerOK := crossing(freq, theta, f0, res.Angle, dir, -1)
	upper, upperOK := crossing(freq, theta, f0, res.Angle, dir, +1)
	switch {
	case lowerOK && upperOK:
	case upperOK:
		lower = 2*f0 - upper
	case lowerOK:
		upper = 2*f0 - lower
	default:
		return res, &FitError{Port: ft.Port, Err: ErrNoHalfPower}
	}
	if !(upper > lower) {
		return res, &FitError{Port: ft.Port, Err: fmt.Errorf("%w: empty bandwidth", ErrNoHalfPower)}
	}

	seed := phaseModel{f0: f0, ql: f0 / (upper - lower), theta0: res.Angle, dir: dir}
	m, err := fitPhase(freq, theta, seed)
	if err != nil {
		res.Warnings = append(res.Warnings, &ConvergenceWarning{Port: ft.Port, Stage: "resonance phase fit", Detail: err.Error()})
	}
	res.Frequency, res.Angle, res.LoadedQ = m.f0, m.theta0, m.ql
	hw := m.halfWidth()
	res.Lower, res.Upper = m.f0-hw, m.f0+hw

	if res.Lower < freq[0] {
		res.Warnings = append(res.Warnings, &ConvergenceWarning{Port: ft.Port, Stage: "half-power bandwidth", Detail: "lower half-power point outside the trace"})
	}
	if res.Upper > freq[len(freq)-1] {
		res.Warnings = append(res.Warnings, &ConvergenceWarning{Port: ft.Port, Stage: "half-power bandwidth", Detail: "upper half-power point outside the trace"})
	}
	return res, nil
}

// phaseModel is the angle of a Lorentzian response about its circle center.
type phaseModel struct {
	f0, ql, theta0, dir float64
}

func (m phaseModel) t(f float64) float64 { return 2 * m.ql * (f - m.f0) / m.f0 }

func (m phaseModel) at(f float64) float64 { return m.theta0 + m.dir*2*math.Atan(m.t(f)) }

func (m phaseModel) halfWidth() float64 { return m.f0 / (2 * m.ql) }

// fitPhase refines seed over the points within phaseWindow, twice, the
// second window centered on the first estimate. On failure the last accepted
// model is returned with the error.
func fitPhase(freq, theta []float64, seed phaseModel) (phaseModel, error) {
	m := seed
	for pass := 0; pass < 2; pass++ {
		var xs, ys []float64
		for i, f := range freq {
			if math.Abs(m.t(f)) <= phaseWindow {
				xs = append(xs, f)
				ys = append(ys, theta[i])
			}
		}
		if len(xs) < minPhasePoints {
			return m, fmt.Errorf("%d points within the resonance window", len(xs))
		}

		start, hw := m, m.halfWidth()
		// x = (angle offset, f0 offset in half widths, log QL ratio)
		decode := func(x []float64) phaseModel {
			return phaseModel{
				f0:     start.f0 + x[1]*hw,
				ql:     start.ql * math.Exp(x[2]),
				theta0: start.theta0 + x[0],
				dir:    start.dir,
			}
		}
		problem := optimize.Problem{
			Func: func(x []float64) float64 {
				p := decode(x)
				var sum float64
				for i, f := range xs {
					r := wrapAngle(ys[i] - p.at(f))
					sum += r * r
				}
				return sum
			},
			Grad: func(grad, x []float64) {
				p := decode(x)
				grad[0], grad[1], grad[2] = 0, 0, 0
				for i, f := range xs {
					t := p.t(f)
					r := wrapAngle(ys[i] - p.at(f))
					dt := p.dir * 2 / (1 + t*t)
					grad[0] -= 2 * r
					grad[1] -= 2 * r * dt * (-2 * p.ql * f / (p.f0 * p.f0)) * hw
					grad[2] -= 2 * r * dt * t
				}
			},
		}
		settings := &optimize.Settings{
			GradientThreshold: 1e-14,
			MajorIterations:   200,
			FuncEvaluations:   5000,
		}
		// A line search that cannot improve an exact fit reports an error
		// together with the best location, which is still usable.
		result, err := optimize.Minimize(problem, []float64{0, 0, 0}, settings, &optimize.BFGS{})
		if result == nil {
			return m, err
		}
		next := decode(result.X)
		if err := next.plausible(start); err != nil {
			return m, err
		}
		m = next
	}
	return m, nil
}

// plausible rejects fits that left the basin of the seed.
func (m phaseModel) plausible(seed phaseModel) error {
	for _, v := range []float64{m.f0, m.ql, m.theta0} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite phase fit")
		}
	}
	if shift := math.Abs(m.f0-seed.f0) / seed.halfWidth(); shift > phaseWindow {
		return fmt.Errorf("resonance moved %.1f half widths", shift)
	}
	if ratio := m.ql / seed.ql; !(ratio > 1.0/phaseWindow && ratio < phaseWindow) {
		return fmt.Errorf("loaded Q changed by a factor %.2f", ratio)
	}
	return nil
}

func wrapAngle(a float64) float64 { return math.Remainder(a, 2*math.Pi) }

// steepestSlope returns the frequency where |d(theta)/df| peaks and the sign
// of the slope there. Slopes are secants over a baseline of w samples on long
// traces so that angle noise does not decide the peak, and the peak is
// refined by a parabola through the secants w either side. A non-empty
// warning means the peak sits at the edge of the trace.
func steepestSlope(freq, theta []float64) (f0, dir float64, warn string) {
	w := (len(freq) - 1) / 100
	if w < 1 {
		w = 1
	}
	n := len(freq) - w
	mid := make([]float64, n)
	slope := make([]float64, n)
	k := 0
	for i := 0; i < n; i++ {
		mid[i] = (freq[i] + freq[i+w]) / 2
		slope[i] = (theta[i+w] - theta[i]) / (freq[i+w] - freq[i])
		if math.Abs(slope[i]) > math.Abs(slope[k]) {
			k = i
		}
	}
	dir = 1
	if slope[k] < 0 {
		dir = -1
	}
	if k == 0 || k == n-1 {
		return mid[k], dir, "steepest slope at the edge of the trace"
	}

	h := w
	if k-h < 0 || k+h > n-1 {
		h = 1
	}
	// Shift abscissae to keep the parabola well conditioned.
	x1, x3 := mid[k-h]-mid[k], mid[k+h]-mid[k]
	y1, y2, y3 := math.Abs(slope[k-h]), math.Abs(slope[k]), math.Abs(slope[k+h])
	denom := x1 * x3 * (x1 - x3)
	a := (x3*(y1-y2) - x1*(y3-y2)) / denom
	b := (x1*x1*(y3-y2) - x3*x3*(y1-y2)) / denom
	if !(a < 0) {
		return mid[k], dir, ""
	}
	v := -b / (2 * a)
	v = math.Max(x1, math.Min(x3, v))
	return mid[k] + v, dir, ""
}

// crossing walks away from the resonance in the given direction (-1 below,
// +1 above) until the angle has turned by 90 degrees. Interpolation uses
// u = tan(delta/2), which is linear in frequency for a Lorentzian.
func crossing(freq, theta []float64, f0, theta0, dir, side float64) (float64, bool) {
	u := func(th float64) float64 { return math.Tan(dir * (th - theta0) / 2) }
	target := side

	prevF, prevU := f0, 0.0
	if side > 0 {
		for i := range freq {
			if freq[i] <= f0 {
				continue
			}
			delta := dir * (theta[i] - theta0)
			if delta >= math.Pi || delta <= -math.Pi/2 {
				return 0, false
			}
			ui := u(theta[i])
			if ui >= target {
				return prevF + (target-prevU)*(freq[i]-prevF)/(ui-prevU), true
			}
			prevF, prevU = freq[i], ui
		}
		return 0, false
	}
	for i := len(freq) - 1; i >= 0; i-- {
		if freq[i] >= f0 {
			continue
		}
		delta := dir * (theta[i] - theta0)
		if delta <= -math.Pi || delta >= math.Pi/2 {
			return 0, false
		}
		ui := u(theta[i])
		if ui <= target {
			return prevF + (target-prevU)*(freq[i]-prevF)/(ui-prevU), true
		}
		prevF, prevU = freq[i], ui
	}
	return 0, false
}

// normalizedDiameter returns the reflection circle diameter relative to the
// off-resonant reference point, evaluated at the resonant frequency f0 taken
// from the transmission trace.
func normalizedDiameter(ft FilteredTrace, fit CircleFit, f0 float64) (float64, error) {
	freq, pts := ft.RetainedPoints()
	theta := anglesAbout(pts, fit.Center)
	angle, ok := interpolate(freq, theta, f0)
	if !ok {
		return 0, &FitError{Port: ft.Port, Err: ErrOutOfRange}
	}
	detuned := 2*fit.Center - fit.At(angle)
	ref := cmplx.Abs(detuned)
	if !(ref > 0) {
		return 0, &DegenerateFitError{Param: string(ft.Port) + " off-resonant reference", Value: ref}
	}
	return 2 * fit.Radius / ref, nil
}

// UnloadedQ converts a loaded Q into the unloaded Q for coupling kappa.
func UnloadedQ(loaded, kappa float64) (float64, error) {
	if math.IsNaN(kappa) || math.IsInf(kappa, 0) || kappa < 0 || kappa >= 1 {
		return math.NaN(), &DegenerateFitError{Param: "coupling coefficient", Value: kappa}
	}
	q := loaded / (1 - kappa)
	if !(q > 0) || math.IsInf(q, 0) {
		return math.NaN(), &DegenerateFitError{Param: "unloaded Q", Value: q}
	}
	return q, nil
}
