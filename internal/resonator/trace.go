package resonator

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Port names an S-parameter of a two-port measurement.
type Port string

const (
	PortS11 Port = "S11"
	PortS21 Port = "S21"
	PortS12 Port = "S12"
	PortS22 Port = "S22"
)

// Trace is one S-parameter sampled over strictly increasing frequencies (Hz).
// Stages never modify a trace in place; they return a new one.
type Trace struct {
	Port Port
	Freq []float64
	Data []complex128
}

// NewTrace validates and wraps frequency/value slices.
func NewTrace(port Port, freq []float64, data []complex128) (Trace, error) {
	if len(freq) != len(data) {
		return Trace{}, fmt.Errorf("%s: %d frequencies for %d values", port, len(freq), len(data))
	}
	for i := 1; i < len(freq); i++ {
		if !(freq[i] > freq[i-1]) {
			return Trace{}, fmt.Errorf("%s: frequency not strictly increasing at index %d", port, i)
		}
	}
	return Trace{Port: port, Freq: freq, Data: data}, nil
}

// Len returns the number of samples.
func (t Trace) Len() int { return len(t.Freq) }

// Span returns the covered frequency range.
func (t Trace) Span() float64 {
	if len(t.Freq) < 2 {
		return 0
	}
	return t.Freq[len(t.Freq)-1] - t.Freq[0]
}

func (t Trace) finite(i int) bool {
	v := t.Data[i]
	return !cmplx.IsNaN(v) && !cmplx.IsInf(v) && !math.IsNaN(t.Freq[i])
}

// FilteredTrace is a trace plus the mask of points kept by outlier rejection.
type FilteredTrace struct {
	Trace
	Mask []bool
}

// Retained returns the number of kept points.
func (ft FilteredTrace) Retained() int {
	n := 0
	for _, keep := range ft.Mask {
		if keep {
			n++
		}
	}
	return n
}

// RetainedPoints returns the frequencies and values of the kept points.
func (ft FilteredTrace) RetainedPoints() ([]float64, []complex128) {
	freq := make([]float64, 0, len(ft.Mask))
	data := make([]complex128, 0, len(ft.Mask))
	for i, keep := range ft.Mask {
		if keep {
			freq = append(freq, ft.Freq[i])
			data = append(data, ft.Data[i])
		}
	}
	return freq, data
}

// Compact returns a trace that holds only the kept points.
func (ft FilteredTrace) Compact() Trace {
	freq, data := ft.RetainedPoints()
	return Trace{Port: ft.Port, Freq: freq, Data: data}
}
