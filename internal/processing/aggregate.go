package processing

import (
	"errors"
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/RMahshie/arpe/internal/resonator"
	"github.com/RMahshie/arpe/internal/touchstone"
	"github.com/RMahshie/arpe/pkg/models"
)

// DefaultFitCurvePoints is the number of samples of a rendered fit circle.
const DefaultFitCurvePoints = 181

// AggregateOptions controls what Aggregate attaches to a result.
type AggregateOptions struct {
	IncludePlot    bool
	FitCurvePoints int
}

// Aggregate converts a pipeline result into its exported form. It only
// reformats what the pipeline computed, apart from sampling the fitted circles
// for plotting.
func Aggregate(name string, net *touchstone.Network, res *resonator.Result, opts AggregateOptions) *models.ResonatorResult {
	out := &models.ResonatorResult{
		Filename:          name,
		Status:            models.StatusOK,
		ResonantFrequency: models.Value(res.ResonantFrequency),
		UnloadedQ:         models.Value(res.UnloadedQ),
		LoadedQ:           models.Value(res.LoadedQ),
		Coupling:          models.Value(res.Coupling),
		CouplingSource:    string(res.CouplingSource),
		InsertionLoss:     models.Value(res.InsertionLoss),
	}
	if res.S21.Located() {
		out.Model = exportModel(res.Model)
	}

	for _, err := range res.Warnings {
		out.Errors = append(out.Errors, resultError(err))
		out.Status = models.Worse(out.Status, models.StatusLowConfidence)
	}
	for _, err := range res.Errors {
		out.Errors = append(out.Errors, resultError(err))
		out.Status = models.Worse(out.Status, models.StatusBestEffort)
	}

	if res.CouplingSource == resonator.CouplingTransmission {
		out.Flags = append(out.Flags, models.FlagCouplingFromTransmission)
	}
	if net != nil && net.Reordered {
		out.Flags = append(out.Flags, models.FlagFrequenciesReordered)
	}
	var delaySkipped, notConverged bool
	for _, pa := range res.Ports() {
		out.Ports = append(out.Ports, portReport(pa))
		if pa.Raw.Len() > 0 && !pa.Delay.Applied {
			delaySkipped = true
		}
		if pa.Fitted() && !pa.Filter.Converged {
			notConverged = true
		}
	}
	if delaySkipped {
		out.Flags = append(out.Flags, models.FlagDelayNotCorrected)
	}
	if notConverged {
		out.Flags = append(out.Flags, models.FlagFilterNotConverged)
	}

	if opts.IncludePlot {
		n := opts.FitCurvePoints
		if n < 2 {
			n = DefaultFitCurvePoints
		}
		out.Plot = plotData(net, res, n)
	}
	return out
}

// ParseFailure is the result row of a file that could not be read.
func ParseFailure(name string, err error) *models.ResonatorResult {
	return &models.ResonatorResult{
		Filename: name,
		Status:   models.StatusParseError,
		Errors:   []models.ResultError{{Kind: models.KindParseError, Message: err.Error()}},
	}
}

// Cancelled is the result row of a file skipped because the batch was cancelled.
func Cancelled(name string, err error) *models.ResonatorResult {
	return &models.ResonatorResult{
		Filename: name,
		Status:   models.StatusCancelled,
		Errors:   []models.ResultError{{Kind: models.KindCancelled, Message: err.Error()}},
	}
}

func resultError(err error) models.ResultError {
	var (
		fitErr     *resonator.FitError
		degenerate *resonator.DegenerateFitError
		warning    *resonator.ConvergenceWarning
	)
	switch {
	case errors.As(err, &warning):
		return models.ResultError{Port: string(warning.Port), Kind: models.KindConvergenceWarning, Message: err.Error()}
	case errors.As(err, &fitErr):
		return models.ResultError{Port: string(fitErr.Port), Kind: models.KindFitError, Message: err.Error()}
	case errors.As(err, &degenerate):
		return models.ResultError{Kind: models.KindDegenerateFit, Message: err.Error()}
	default:
		return models.ResultError{Kind: models.KindFitError, Message: err.Error()}
	}
}

func exportModel(m resonator.ResonanceModel) *models.ResonanceModel {
	p := m.Params()
	out := &models.ResonanceModel{
		Kind:              string(m.Kind),
		ResonantFrequency: models.Value(p.ResonantFrequency),
		LoadedQ:           models.Value(p.LoadedQ),
		Amplitude:         models.Value(p.Amplitude),
	}
	if m.Fano != nil {
		out.FanoQ = models.Value(m.Fano.Q)
		bg := models.NewComplex(m.Fano.Background)
		out.Background = &bg
	}
	return out
}

func portReport(pa *resonator.PortAnalysis) models.PortReport {
	rep := models.PortReport{
		Port:             string(pa.Port),
		Fitted:           pa.Fitted(),
		Points:           pa.Raw.Len(),
		FilterIterations: pa.Filter.Iterations,
		FilterConverged:  pa.Filter.Converged,
		Delay: models.DelayReport{
			Applied: pa.Delay.Applied,
			Delay:   pa.Delay.Delay,
			Slope:   pa.Delay.Slope,
			Reason:  pa.Delay.Reason,
			Source:  pa.Delay.Source,
		},
	}
	if !pa.Fitted() {
		return rep
	}
	rep.Retained = pa.Filtered.Retained()
	rep.Circle = &models.CircleReport{
		Center:   models.NewComplex(pa.Circle.Center),
		Radius:   pa.Circle.Radius,
		Residual: pa.Circle.Residual,
	}
	if pa.Located() {
		rep.ResonantFrequency = models.Value(pa.Resonance.Frequency)
		rep.LoadedQ = models.Value(pa.Resonance.LoadedQ)
		rep.Asymmetry = models.Value(pa.Asymmetry.Alpha)
		rep.Model = exportModel(pa.Model)
	}
	return rep
}

func plotData(net *touchstone.Network, res *resonator.Result, fitPoints int) *models.PlotData {
	series := make([]models.Series, models.SeriesCount)

	measured := func(pa *resonator.PortAnalysis, re, im int) {
		series[re], series[im] = models.Series{}, models.Series{}
		if !pa.Fitted() {
			return
		}
		_, pts := pa.Filtered.RetainedPoints()
		series[re], series[im] = splitComplex(pts)
	}
	fitted := func(pa *resonator.PortAnalysis, re, im int) {
		series[re], series[im] = models.Series{}, models.Series{}
		if !pa.Fitted() {
			return
		}
		pts := make([]complex128, fitPoints)
		for i := range pts {
			pts[i] = pa.Circle.At(2 * math.Pi * float64(i) / float64(fitPoints-1))
		}
		series[re], series[im] = splitComplex(pts)
	}
	center := func(pa *resonator.PortAnalysis, re, im int) {
		series[re], series[im] = models.Series{}, models.Series{}
		if pa.Fitted() {
			series[re], series[im] = splitComplex([]complex128{pa.Circle.Center})
		}
	}

	measured(res.S21, models.SeriesS21MeasuredRe, models.SeriesS21MeasuredIm)
	fitted(res.S21, models.SeriesS21FitRe, models.SeriesS21FitIm)
	measured(res.S11, models.SeriesS11MeasuredRe, models.SeriesS11MeasuredIm)
	fitted(res.S11, models.SeriesS11FitRe, models.SeriesS11FitIm)
	center(res.S11, models.SeriesS11CenterRe, models.SeriesS11CenterIm)
	measured(res.S22, models.SeriesS22MeasuredRe, models.SeriesS22MeasuredIm)
	fitted(res.S22, models.SeriesS22FitRe, models.SeriesS22FitIm)
	center(res.S22, models.SeriesS22CenterRe, models.SeriesS22CenterIm)

	var s11, s21, s22 resonator.Trace
	if net != nil {
		s11, s21, s22 = net.S11, net.S21, net.S22
	} else {
		s11, s21, s22 = rawTrace(res.S11), rawTrace(res.S21), rawTrace(res.S22)
	}
	series[models.SeriesFrequency] = append(models.Series{}, s21.Freq...)
	series[models.SeriesS11DB] = decibels(s11.Data)
	series[models.SeriesS22DB] = decibels(s22.Data)
	series[models.SeriesS21DB] = decibels(s21.Data)

	return &models.PlotData{Series: series}
}

func rawTrace(pa *resonator.PortAnalysis) resonator.Trace {
	if pa == nil {
		return resonator.Trace{}
	}
	return pa.Raw
}

func splitComplex(pts []complex128) (models.Series, models.Series) {
	re := make(models.Series, len(pts))
	im := make(models.Series, len(pts))
	for i, p := range pts {
		re[i], im[i] = real(p), imag(p)
	}
	return re, im
}

// decibels returns 20*log10|v| per sample; zero magnitudes give -Inf.
func decibels(data []complex128) models.Series {
	re := make([]float64, len(data))
	im := make([]float64, len(data))
	for i, v := range data {
		re[i], im[i] = real(v), imag(v)
	}
	power := make([]float64, len(data))
	vecmath.Power(power, re, im)
	out := make(models.Series, len(data))
	for i, p := range power {
		out[i] = 10 * math.Log10(p)
	}
	return out
}
