package resonator

import (
	"fmt"
	"math"
)

// FilterReport summarizes an outlier rejection run.
type FilterReport struct {
	Iterations int
	Converged  bool
	Threshold  float64 // last dynamic threshold
	Rejected   int     // finite points outside the final mask
	// MinSupportStop is set when the filter stopped because the next mask
	// would have dropped below the minimum fit support.
	MinSupportStop bool
}

// FilterOutliers iteratively fits a circle to the retained points and keeps
// the points whose radial residual lies within a threshold derived from the
// residual spread of the current fit. Rejected points are re-admitted when a
// later fit brings them back within the threshold. The loop ends when the
// mask no longer changes or after MaxFilterIterations; in the second case the
// last fitted state is returned with Converged unset.
func FilterOutliers(tr Trace, opts Options) (FilteredTrace, CircleFit, FilterReport, error) {
	opts = opts.withDefaults()

	mask := make([]bool, tr.Len())
	var finite int
	for i := range mask {
		if tr.finite(i) {
			mask[i] = true
			finite++
		}
	}
	ft := FilteredTrace{Trace: tr, Mask: mask}
	var report FilterReport
	if finite < opts.MinFitPoints {
		return ft, CircleFit{}, report, &FitError{
			Port: tr.Port,
			Err:  fmt.Errorf("%d finite points, need %d: %w", finite, opts.MinFitPoints, ErrTooFewPoints),
		}
	}

	var fit CircleFit
	var prev []bool
	for iter := 1; iter <= opts.MaxFilterIterations; iter++ {
		_, pts := ft.RetainedPoints()
		next, err := FitCircle(pts)
		if err != nil {
			if prev == nil {
				return ft, CircleFit{}, report, &FitError{Port: tr.Port, Err: err}
			}
			// Fall back to the last mask that produced a fit.
			ft.Mask = prev
			report.Rejected = finite - ft.Retained()
			return ft, fit, report, nil
		}
		fit = next
		report.Iterations = iter

		var retained []float64
		for i, keep := range ft.Mask {
			if keep {
				retained = append(retained, fit.Distance(tr.Data[i]))
			}
		}
		center, sigma := robustSpread(retained)
		threshold := math.Max(opts.OutlierThreshold*sigma, opts.ResidualFloor*fit.Radius)
		report.Threshold = threshold

		candidate := make([]bool, len(ft.Mask))
		count := 0
		for i := range candidate {
			if tr.finite(i) && math.Abs(fit.Distance(tr.Data[i])-center) <= threshold {
				candidate[i] = true
				count++
			}
		}

		if count < opts.MinFitPoints {
			report.MinSupportStop = true
			report.Rejected = finite - ft.Retained()
			return ft, fit, report, nil
		}
		if sameMask(candidate, ft.Mask) {
			report.Converged = true
			report.Rejected = finite - count
			return ft, fit, report, nil
		}
		if iter == opts.MaxFilterIterations {
			break
		}
		prev = ft.Mask
		ft.Mask = candidate
	}

	report.Rejected = finite - ft.Retained()
	return ft, fit, report, nil
}

func sameMask(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
