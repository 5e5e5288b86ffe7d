package resonator

import "errors"

// PortAnalysis is everything the pipeline derived from one S-parameter trace.
// Fields after a failed stage keep their zero value.
type PortAnalysis struct {
	Port      Port
	Raw       Trace
	Corrected Trace
	Delay     DelayCorrection
	Filtered  FilteredTrace
	Filter    FilterReport
	Circle    CircleFit
	Resonance Resonance
	Model     ResonanceModel
	Asymmetry Asymmetry
	Warnings  []error

	fitted  bool
	located bool
}

// Fitted reports whether a circle was fitted to the port.
func (pa *PortAnalysis) Fitted() bool { return pa != nil && pa.fitted }

// Located reports whether a resonant frequency was found on the port.
func (pa *PortAnalysis) Located() bool { return pa != nil && pa.located }

// AnalyzePort runs delay correction, outlier rejection, the circle fit,
// resonance location and classification on a single trace. The returned
// analysis is never nil and holds every stage that succeeded. A missing
// half-power crossing is returned as an error together with a located and
// classified analysis, so callers that only need the circle can carry on.
func AnalyzePort(tr Trace, opts Options) (*PortAnalysis, error) {
	opts = opts.withDefaults()
	corrected, delay := CorrectDelay(tr, opts)
	return analyzeCorrected(tr, corrected, delay, opts)
}

func analyzeCorrected(tr, corrected Trace, delay DelayCorrection, opts Options) (*PortAnalysis, error) {
	pa := &PortAnalysis{Port: tr.Port, Raw: tr, Corrected: corrected, Delay: delay}

	ft, fit, report, err := FilterOutliers(pa.Corrected, opts)
	pa.Filtered, pa.Filter = ft, report
	if err != nil {
		return pa, err
	}
	pa.Circle = fit
	pa.fitted = true
	if !report.Converged {
		detail := "iteration limit reached"
		if report.MinSupportStop {
			detail = "stopped at minimum fit support"
		}
		pa.Warnings = append(pa.Warnings, &ConvergenceWarning{Port: tr.Port, Stage: "outlier rejection", Detail: detail})
	}

	res, err := LocateResonance(ft, fit)
	pa.Warnings = append(pa.Warnings, res.Warnings...)
	if err != nil && !errors.Is(err, ErrNoHalfPower) {
		return pa, err
	}
	pa.Resonance = res
	pa.located = true
	pa.Model, pa.Asymmetry = Classify(ft, fit, res, opts)
	return pa, err
}
