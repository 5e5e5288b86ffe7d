package resonator

import (
	"errors"
	"math"
)

// CouplingSource tells which ports the coupling coefficient came from.
type CouplingSource string

const (
	CouplingNone         CouplingSource = ""
	CouplingReflection   CouplingSource = "reflection"
	CouplingTransmission CouplingSource = "transmission"
)

// Result holds the resonator parameters of one measurement. Values that could
// not be derived are NaN and the reason is listed in Errors.
type Result struct {
	ResonantFrequency float64
	LoadedQ           float64
	UnloadedQ         float64
	Coupling          float64
	CouplingSource    CouplingSource
	InsertionLoss     float64 // dB at resonance
	Model             ResonanceModel

	S11, S21, S22 *PortAnalysis

	Errors   []error
	Warnings []error
}

// Ports returns the analyzed ports in S21, S11, S22 order, skipping nil ones.
func (r *Result) Ports() []*PortAnalysis {
	out := make([]*PortAnalysis, 0, 3)
	for _, pa := range []*PortAnalysis{r.S21, r.S11, r.S22} {
		if pa != nil {
			out = append(out, pa)
		}
	}
	return out
}

// Extract combines the transmission trace, which gives the resonant frequency
// and loaded Q, with the reflection traces, which give the coupling, into the
// unloaded Q. Reflection failures degrade the coupling estimate to the
// transmission formula without aborting. Extract never panics on bad data; it
// reports what it could compute.
func Extract(s11, s21, s22 Trace, opts Options) *Result {
	opts = opts.withDefaults()
	r := &Result{
		ResonantFrequency: math.NaN(),
		LoadedQ:           math.NaN(),
		UnloadedQ:         math.NaN(),
		Coupling:          math.NaN(),
		InsertionLoss:     math.NaN(),
	}

	// Reflection ports first: their delay is better identified than the
	// transmission delay, whose detuned point sits at the origin.
	refl := []Trace{s11.withPort(PortS11), s22.withPort(PortS22)}
	var (
		reflPorts [2]*PortAnalysis
		reflErrs  [2]error
	)
	for i, tr := range refl {
		reflPorts[i], reflErrs[i] = AnalyzePort(tr, opts)
		if errors.Is(reflErrs[i], ErrNoHalfPower) {
			// The reflection bandwidth is not needed for coupling.
			reflErrs[i] = nil
		}
	}
	r.S11, r.S22 = reflPorts[0], reflPorts[1]

	// Each reflection sees its cable twice, the transmission sees both once.
	tr21 := s21.withPort(PortS21)
	var err error
	if d11, d22 := r.S11.Delay, r.S22.Delay; d11.Applied && d22.Applied && tr21.Len() > 0 {
		corrected, delay := ApplyDelay(tr21, (d11.Slope+d22.Slope)/2, DelayFromReflection)
		r.S21, err = analyzeCorrected(tr21, corrected, delay, opts)
	} else {
		r.S21, err = AnalyzePort(tr21, opts)
	}
	r.collect(r.S21, err)
	if r.S21.Located() {
		r.ResonantFrequency = r.S21.Resonance.Frequency
		r.LoadedQ = r.S21.Resonance.LoadedQ
		r.Model = r.S21.Model
	}
	if r.S21.Fitted() && r.S21.Circle.Radius > 0 {
		r.InsertionLoss = -20 * math.Log10(2*r.S21.Circle.Radius)
	}

	var kappas []float64
	for i, pa := range reflPorts {
		r.collect(pa, reflErrs[i])
		if !pa.Fitted() {
			continue
		}

		f0 := r.ResonantFrequency
		if math.IsNaN(f0) && pa.Located() {
			f0 = pa.Resonance.Frequency
		}
		if math.IsNaN(f0) {
			continue
		}
		d, err := normalizedDiameter(pa.Filtered, pa.Circle, f0)
		if err != nil {
			r.Errors = append(r.Errors, err)
			continue
		}
		kappas = append(kappas, d)
	}

	switch {
	case len(kappas) > 0:
		var sum float64
		for _, k := range kappas {
			sum += k
		}
		r.Coupling = sum / float64(len(kappas))
		r.CouplingSource = CouplingReflection
	case r.S21.Fitted():
		r.Coupling = 2 * r.S21.Circle.Radius
		r.CouplingSource = CouplingTransmission
	}

	if !math.IsNaN(r.LoadedQ) && r.CouplingSource != CouplingNone {
		q0, err := UnloadedQ(r.LoadedQ, r.Coupling)
		if err != nil {
			r.Errors = append(r.Errors, err)
		}
		r.UnloadedQ = q0
	}
	return r
}

func (r *Result) collect(pa *PortAnalysis, err error) {
	if err != nil {
		r.Errors = append(r.Errors, err)
	}
	if pa != nil {
		r.Warnings = append(r.Warnings, pa.Warnings...)
	}
}

func (t Trace) withPort(p Port) Trace {
	if t.Port == "" {
		t.Port = p
	}
	return t
}
