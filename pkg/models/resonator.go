package models

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Status is the confidence flag attached to every result row
type Status string

const (
	StatusOK            Status = "ok"
	StatusLowConfidence Status = "low_confidence"
	StatusBestEffort    Status = "best_effort"
	StatusCancelled     Status = "cancelled"
	StatusParseError    Status = "parse_error"
)

var statusRank = map[Status]int{
	StatusOK:            0,
	StatusLowConfidence: 1,
	StatusBestEffort:    2,
	StatusCancelled:     3,
	StatusParseError:    4,
}

// Worse returns the more severe of two statuses
func Worse(a, b Status) Status {
	if statusRank[b] > statusRank[a] {
		return b
	}
	return a
}

// Error kinds reported in ResultError.Kind
const (
	KindParseError         = "parse_error"
	KindFitError           = "fit_error"
	KindDegenerateFit      = "degenerate_fit"
	KindConvergenceWarning = "convergence_warning"
	KindCancelled          = "cancelled"
)

// Result flags
const (
	FlagCouplingFromTransmission = "coupling_from_transmission"
	FlagDelayNotCorrected        = "delay_not_corrected"
	FlagFilterNotConverged       = "filter_not_converged"
	FlagFrequenciesReordered     = "frequencies_reordered"
)

// ResultError represents one problem found while processing a file
type ResultError struct {
	Port    string `json:"port,omitempty" doc:"S-parameter the error belongs to"`
	Kind    string `json:"kind" enum:"parse_error,fit_error,degenerate_fit,convergence_warning,cancelled" doc:"Error category"`
	Message string `json:"message" doc:"Human-readable description"`
}

// Complex is a JSON friendly complex number
type Complex struct {
	Re float64 `json:"re"`
	Im float64 `json:"im"`
}

// NewComplex converts a complex128
func NewComplex(c complex128) Complex {
	return Complex{Re: real(c), Im: imag(c)}
}

// Value returns a pointer to v, or nil when v is not finite. Unavailable
// parameters are omitted from JSON instead of being encoded as garbage.
func Value(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ResonanceModel represents the line shape fitted to a port
type ResonanceModel struct {
	Kind              string   `json:"kind" enum:"symmetric,asymmetric" doc:"Lorentzian (symmetric) or Fano (asymmetric)"`
	ResonantFrequency *float64 `json:"resonant_frequency,omitempty" doc:"Resonant frequency in Hz"`
	LoadedQ           *float64 `json:"loaded_q,omitempty" doc:"Loaded quality factor"`
	Amplitude         *float64 `json:"amplitude,omitempty" doc:"Resonance circle diameter"`
	FanoQ             *float64 `json:"fano_q,omitempty" doc:"Fano asymmetry parameter"`
	Background        *Complex `json:"background,omitempty" doc:"Off-resonant background of a Fano response"`
}

// CircleReport represents a fitted circle in the complex plane
type CircleReport struct {
	Center   Complex `json:"center"`
	Radius   float64 `json:"radius"`
	Residual float64 `json:"residual" doc:"RMS radial deviation of the retained points"`
}

// DelayReport represents the phase trend removed from a port
type DelayReport struct {
	Applied bool    `json:"applied"`
	Delay   float64 `json:"delay" doc:"Equivalent electrical delay in seconds"`
	Slope   float64 `json:"slope" doc:"Removed phase slope in rad/Hz"`
	Reason  string  `json:"reason,omitempty" doc:"Why the correction was skipped"`
	Source  string  `json:"source,omitempty" doc:"reflection when taken from S11 and S22"`
}

// PortReport represents the per-port details of a result
type PortReport struct {
	Port              string          `json:"port" enum:"S11,S21,S22"`
	Fitted            bool            `json:"fitted"`
	Points            int             `json:"points" doc:"Samples in the trace"`
	Retained          int             `json:"retained" doc:"Samples kept by outlier rejection"`
	FilterIterations  int             `json:"filter_iterations"`
	FilterConverged   bool            `json:"filter_converged"`
	Delay             DelayReport     `json:"delay"`
	Circle            *CircleReport   `json:"circle,omitempty"`
	ResonantFrequency *float64        `json:"resonant_frequency,omitempty"`
	LoadedQ           *float64        `json:"loaded_q,omitempty"`
	Asymmetry         *float64        `json:"asymmetry,omitempty" doc:"Offset of the origin from the resonance diameter, in radii"`
	Model             *ResonanceModel `json:"model,omitempty"`
}

// ResonatorResult represents the extraction result of one file
type ResonatorResult struct {
	Filename          string          `json:"filename"`
	Status            Status          `json:"status" enum:"ok,low_confidence,best_effort,cancelled,parse_error"`
	Flags             []string        `json:"flags,omitempty"`
	Errors            []ResultError   `json:"errors,omitempty"`
	ResonantFrequency *float64        `json:"resonant_frequency,omitempty" doc:"Resonant frequency in Hz"`
	UnloadedQ         *float64        `json:"unloaded_q,omitempty"`
	LoadedQ           *float64        `json:"loaded_q,omitempty"`
	Coupling          *float64        `json:"coupling_coefficient,omitempty"`
	CouplingSource    string          `json:"coupling_source,omitempty" enum:"reflection,transmission"`
	InsertionLoss     *float64        `json:"insertion_loss,omitempty" doc:"Insertion loss at resonance in dB"`
	Model             *ResonanceModel `json:"model,omitempty"`
	Ports             []PortReport    `json:"ports,omitempty"`
	Plot              *PlotData       `json:"plot,omitempty"`
}

// HasFlag reports whether flag is set on the result
func (r *ResonatorResult) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Series is one plot trace. Non-finite samples are encoded as null so that
// positions stay aligned with the frequency axis.
type Series []float64

func (s Series) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	b := make([]byte, 0, 2+len(s)*12)
	b = append(b, '[')
	for i, v := range s {
		if i > 0 {
			b = append(b, ',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			b = append(b, "null"...)
			continue
		}
		b = strconv.AppendFloat(b, v, 'g', -1, 64)
	}
	return append(b, ']'), nil
}

func (s *Series) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Series, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	*s = out
	return nil
}

// Plot series positions. Measured series hold the delay-corrected points kept
// by outlier rejection; fit series sample the fitted circle; dB series share
// the frequency axis of SeriesFrequency and come from the raw traces.
const (
	SeriesS21MeasuredRe = iota
	SeriesS21MeasuredIm
	SeriesS21FitRe
	SeriesS21FitIm
	SeriesS11MeasuredRe
	SeriesS11MeasuredIm
	SeriesS11FitRe
	SeriesS11FitIm
	SeriesS11CenterRe
	SeriesS11CenterIm
	SeriesS22MeasuredRe
	SeriesS22MeasuredIm
	SeriesS22FitRe
	SeriesS22FitIm
	SeriesS22CenterRe
	SeriesS22CenterIm
	SeriesFrequency
	SeriesS11DB
	SeriesS22DB
	SeriesS21DB

	SeriesCount
)

// PlotData holds the point sequences for visual verification, indexed by the
// Series* constants
type PlotData struct {
	Series []Series `json:"series" doc:"Positional plot traces, see the Series* constants"`
}

// MagnitudeTrace pairs a dB series with the frequency axis
func (p *PlotData) MagnitudeTrace(series int) []FrequencyPoint {
	if p == nil || series < 0 || series >= len(p.Series) || len(p.Series) <= SeriesFrequency {
		return nil
	}
	freq, mag := p.Series[SeriesFrequency], p.Series[series]
	n := min(len(freq), len(mag))
	out := make([]FrequencyPoint, n)
	for i := range out {
		out[i] = FrequencyPoint{Frequency: freq[i], Magnitude: mag[i]}
	}
	return out
}

// SummaryRow represents one line of the tabular export
type SummaryRow struct {
	Filename          string   `json:"filename"`
	Status            Status   `json:"status"`
	ResonantFrequency *float64 `json:"resonant_frequency,omitempty"`
	UnloadedQ         *float64 `json:"unloaded_q,omitempty"`
	LoadedQ           *float64 `json:"loaded_q,omitempty"`
	Coupling          *float64 `json:"coupling_coefficient,omitempty"`
	Model             string   `json:"model,omitempty"`
}

// SummaryHeader returns the column names matching SummaryRow.Record
func SummaryHeader() []string {
	return []string{"filename", "status", "resonant_frequency_hz", "unloaded_q", "loaded_q", "coupling_coefficient", "model"}
}

// Record formats the row for CSV export; unavailable values are empty
func (r SummaryRow) Record() []string {
	return []string{r.Filename, string(r.Status), cell(r.ResonantFrequency), cell(r.UnloadedQ), cell(r.LoadedQ), cell(r.Coupling), r.Model}
}

func cell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', 10, 64)
}

// Summarize builds the summary row of a result
func (r *ResonatorResult) Summarize() SummaryRow {
	row := SummaryRow{
		Filename:          r.Filename,
		Status:            r.Status,
		ResonantFrequency: r.ResonantFrequency,
		UnloadedQ:         r.UnloadedQ,
		LoadedQ:           r.LoadedQ,
		Coupling:          r.Coupling,
	}
	if r.Model != nil {
		row.Model = r.Model.Kind
	}
	return row
}

// Batch represents the ordered results of one extraction run
type Batch struct {
	ID        uuid.UUID          `json:"id" doc:"Batch identifier"`
	CreatedAt time.Time          `json:"created_at"`
	Results   []*ResonatorResult `json:"results"`
	Summary   []SummaryRow       `json:"summary"`

	index map[string]int
}

// NewBatch keeps results in the given order and indexes them by filename.
// When a filename repeats, lookup returns the first occurrence.
func NewBatch(id uuid.UUID, createdAt time.Time, results []*ResonatorResult) *Batch {
	b := &Batch{
		ID:        id,
		CreatedAt: createdAt,
		Results:   results,
		Summary:   make([]SummaryRow, len(results)),
		index:     make(map[string]int, len(results)),
	}
	for i, r := range results {
		b.Summary[i] = r.Summarize()
		if _, ok := b.index[r.Filename]; !ok {
			b.index[r.Filename] = i
		}
	}
	return b
}

// Get returns the result for filename
func (b *Batch) Get(filename string) (*ResonatorResult, bool) {
	if b.index == nil {
		for _, r := range b.Results {
			if r.Filename == filename {
				return r, true
			}
		}
		return nil, false
	}
	i, ok := b.index[filename]
	if !ok {
		return nil, false
	}
	return b.Results[i], true
}

// Counts returns the number of results per status
func (b *Batch) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, r := range b.Results {
		counts[r.Status]++
	}
	return counts
}

// InputFile is one file of a batch, already read into memory. Err is set
// when the file could not be read; it then becomes a parse_error row.
type InputFile struct {
	Name    string
	Content []byte
	Err     error
}
