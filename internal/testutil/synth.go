// Package testutil synthesizes analytic resonator measurements for tests.
package testutil

import (
	"math"
	"math/cmplx"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/RMahshie/arpe/internal/resonator"
)

// Resonator describes a symmetrically coupled two-port resonator.
//
//	S21 = kappa/(1+jt) + B     S11 = S22 = 1 - kappa/(1+jt)
//
// with t = 2*QL*(f-f0)/f0, kappa = 2*beta/(1+2*beta) and QL = Q0/(1+2*beta).
// A non-zero FanoQ adds the background B = -kappa/(1+j*FanoQ) to S21. Delay
// rotates every port by exp(-j*2*pi*f*Delay).
type Resonator struct {
	F0     float64
	Q0     float64
	Beta   float64
	Points int
	Span   float64
	Delay  float64
	FanoQ  float64
	// Center of the sweep; zero means F0.
	Center float64
	// Noise is the standard deviation of the Gaussian noise added to each of
	// the real and imaginary parts of every sample, drawn from Seed.
	Noise float64
	Seed  uint64
}

// Default returns the resonator most tests start from: 5 GHz, Q0 6000,
// beta 0.25 (kappa 1/3, QL 4000) over 801 points and 12.5 MHz either side.
func Default() Resonator {
	return Resonator{F0: 5e9, Q0: 6000, Beta: 0.25, Points: 801, Span: 25e6}
}

// Kappa returns the coupling coefficient.
func (r Resonator) Kappa() float64 { return 2 * r.Beta / (1 + 2*r.Beta) }

// LoadedQ returns the loaded Q.
func (r Resonator) LoadedQ() float64 { return r.Q0 / (1 + 2*r.Beta) }

// Background returns the off-resonant transmission background.
func (r Resonator) Background() complex128 {
	if r.FanoQ == 0 {
		return 0
	}
	return -complex(r.Kappa(), 0) / complex(1, r.FanoQ)
}

// Frequencies returns the evenly spaced sweep.
func (r Resonator) Frequencies() []float64 {
	center := r.Center
	if center == 0 {
		center = r.F0
	}
	freq := make([]float64, r.Points)
	start := center - r.Span/2
	step := r.Span / float64(r.Points-1)
	for i := range freq {
		freq[i] = start + float64(i)*step
	}
	return freq
}

func (r Resonator) lorentzian(f float64) complex128 {
	t := 2 * r.LoadedQ() * (f - r.F0) / r.F0
	return complex(r.Kappa(), 0) / complex(1, t)
}

func (r Resonator) cable(f float64) complex128 {
	return cmplx.Exp(complex(0, -2*math.Pi*f*r.Delay))
}

// S21 returns the transmission at f.
func (r Resonator) S21(f float64) complex128 {
	return (r.lorentzian(f) + r.Background()) * r.cable(f)
}

// S11 returns the reflection at f. S22 is identical.
func (r Resonator) S11(f float64) complex128 {
	return (1 - r.lorentzian(f)) * r.cable(f)
}

// Traces samples the three ports, with noise when Noise is set.
func (r Resonator) Traces() (s11, s21, s22 resonator.Trace) {
	freq := r.Frequencies()
	d11 := make([]complex128, len(freq))
	d21 := make([]complex128, len(freq))
	d22 := make([]complex128, len(freq))
	rng := rand.New(rand.NewPCG(r.Seed, 0x9e3779b97f4a7c15))
	noise := func() complex128 {
		if r.Noise == 0 {
			return 0
		}
		return complex(r.Noise*rng.NormFloat64(), r.Noise*rng.NormFloat64())
	}
	for i, f := range freq {
		d11[i] = r.S11(f) + noise()
		d21[i] = r.S21(f) + noise()
		d22[i] = r.S11(f) + noise()
	}
	return resonator.Trace{Port: resonator.PortS11, Freq: freq, Data: d11},
		resonator.Trace{Port: resonator.PortS21, Freq: freq, Data: d21},
		resonator.Trace{Port: resonator.PortS22, Freq: append([]float64(nil), freq...), Data: d22}
}

// Touchstone renders the network as a Touchstone v1 file in Hz, RI format.
func (r Resonator) Touchstone() string {
	var b strings.Builder
	b.WriteString("! synthetic resonator\n# HZ S RI R 50\n")
	t11, t21, t22 := r.Traces()
	for i, f := range t11.Freq {
		s11, s21, s22 := t11.Data[i], t21.Data[i], t22.Data[i]
		fields := []float64{f,
			real(s11), imag(s11), real(s21), imag(s21),
			real(s21), imag(s21), real(s22), imag(s22)}
		for i, v := range fields {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// WithOutliers returns a copy of tr with offset added at the given indices.
func WithOutliers(tr resonator.Trace, offset complex128, idx ...int) resonator.Trace {
	data := append([]complex128(nil), tr.Data...)
	for _, i := range idx {
		data[i] += offset
	}
	return resonator.Trace{Port: tr.Port, Freq: tr.Freq, Data: data}
}

// RelErr returns |got-want|/|want|.
func RelErr(got, want float64) float64 {
	return math.Abs(got-want) / math.Abs(want)
}
