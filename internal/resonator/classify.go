package resonator

import (
	"math"
	"math/cmplx"
)

// ModelKind tags a ResonanceModel.
type ModelKind string

const (
	Symmetric  ModelKind = "symmetric"
	Asymmetric ModelKind = "asymmetric"
)

// LorentzianParams describe a symmetric resonance S = B + A/(1 + j*2*QL*(f-f0)/f0)
// whose magnitude is even in frequency about f0.
type LorentzianParams struct {
	ResonantFrequency float64
	LoadedQ           float64
	Amplitude         float64 // |A|, the circle diameter
}

// FanoParams describe an asymmetric resonance: a Lorentzian interfering with
// an off-resonant background B. Q is the Fano asymmetry parameter.
type FanoParams struct {
	LorentzianParams
	Q          float64
	Background complex128
}

// ResonanceModel is the line-shape chosen for a port. Exactly one of
// Lorentzian and Fano is set, matching Kind.
type ResonanceModel struct {
	Kind       ModelKind
	Lorentzian *LorentzianParams
	Fano       *FanoParams
}

// Params returns the Lorentzian part shared by both variants.
func (m ResonanceModel) Params() LorentzianParams {
	switch {
	case m.Fano != nil:
		return m.Fano.LorentzianParams
	case m.Lorentzian != nil:
		return *m.Lorentzian
	}
	return LorentzianParams{}
}

// Asymmetry holds the shape metrics behind a classification.
type Asymmetry struct {
	// Alpha is the signed distance of the origin from the circle diameter
	// through the resonance point, in units of the radius.
	Alpha float64
	// Skew is the magnitude difference between the upper and lower
	// half-power frequencies, in units of the circle diameter.
	Skew float64
}

// Classify decides between the Lorentzian and Fano line shapes. A Lorentzian
// keeps the origin on the diameter through the resonance point, so |S| is
// symmetric about f0; an origin off that line means the background interferes
// with the resonance.
func Classify(ft FilteredTrace, fit CircleFit, res Resonance, opts Options) (ResonanceModel, Asymmetry) {
	opts = opts.withDefaults()

	p0 := res.Point(fit)
	detuned := 2*fit.Center - p0
	amplitude := p0 - detuned

	var asym Asymmetry
	if fit.Radius > 0 {
		u := (p0 - fit.Center) / complex(fit.Radius, 0)
		asym.Alpha = imag(cmplx.Conj(u)*(-fit.Center)) / fit.Radius
		asym.Skew = magnitudeSkew(ft, res, 2*fit.Radius)
	}

	params := LorentzianParams{
		ResonantFrequency: res.Frequency,
		LoadedQ:           res.LoadedQ,
		Amplitude:         cmplx.Abs(amplitude),
	}
	if math.Abs(asym.Alpha) <= opts.AsymmetryThreshold || cmplx.Abs(detuned) == 0 {
		return ResonanceModel{Kind: Symmetric, Lorentzian: &params}, asym
	}
	return ResonanceModel{
		Kind: Asymmetric,
		Fano: &FanoParams{
			LorentzianParams: params,
			Q:                -imag(amplitude / detuned),
			Background:       detuned,
		},
	}, asym
}

func magnitudeSkew(ft FilteredTrace, res Resonance, diameter float64) float64 {
	if math.IsNaN(res.LoadedQ) || !(diameter > 0) {
		return 0
	}
	freq, pts := ft.RetainedPoints()
	mags := make([]float64, len(pts))
	for i, p := range pts {
		mags[i] = cmplx.Abs(p)
	}
	lo, okLo := interpolate(freq, mags, res.Lower)
	hi, okHi := interpolate(freq, mags, res.Upper)
	if !okLo || !okHi {
		return 0
	}
	return (hi - lo) / diameter
}
