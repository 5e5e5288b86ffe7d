package resonator

// Options holds the tunable constants of the extraction pipeline. The zero
// value of any field is replaced by its default.
type Options struct {
	// MinFitPoints is the minimum number of retained points a circle fit
	// requires after outlier rejection.
	MinFitPoints int

	// OutlierThreshold multiplies the robust residual spread (1.4826 * MAD)
	// to form the rejection threshold.
	OutlierThreshold float64

	// ResidualFloor is the smallest threshold, relative to the fitted radius.
	// It keeps round-off from rejecting points of a clean trace.
	ResidualFloor float64

	// MaxFilterIterations bounds the outlier refinement loop.
	MaxFilterIterations int

	// EdgeFraction is the share of samples at each end of a trace used to
	// estimate the off-resonant magnitude.
	EdgeFraction float64

	// OffResonantTolerance selects off-resonant points: their magnitude is
	// within this fraction of the resonance depth from the asymptote.
	OffResonantTolerance float64

	// DelayGridSteps is the number of coarse steps of the delay search.
	DelayGridSteps int

	// DelayRefineIterations bounds the golden-section refinement of the
	// delay search.
	DelayRefineIterations int

	// DelayTrimFraction is the share of best-fitting points kept when
	// scoring the circularity of a de-rotated trace.
	DelayTrimFraction float64

	// AsymmetryThreshold is the normalized offset of the origin from the
	// resonance diameter above which a response is classified as Fano.
	AsymmetryThreshold float64
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MinFitPoints:          5,
		OutlierThreshold:      3.5,
		ResidualFloor:         1e-6,
		MaxFilterIterations:   25,
		EdgeFraction:          0.05,
		OffResonantTolerance:  0.1,
		DelayGridSteps:        40,
		DelayRefineIterations: 100,
		DelayTrimFraction:     0.8,
		AsymmetryThreshold:    0.05,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MinFitPoints < 3 {
		o.MinFitPoints = def.MinFitPoints
	}
	if o.OutlierThreshold <= 0 {
		o.OutlierThreshold = def.OutlierThreshold
	}
	if o.ResidualFloor <= 0 {
		o.ResidualFloor = def.ResidualFloor
	}
	if o.MaxFilterIterations <= 0 {
		o.MaxFilterIterations = def.MaxFilterIterations
	}
	if o.EdgeFraction <= 0 || o.EdgeFraction >= 0.5 {
		o.EdgeFraction = def.EdgeFraction
	}
	if o.OffResonantTolerance <= 0 {
		o.OffResonantTolerance = def.OffResonantTolerance
	}
	if o.DelayGridSteps < 2 {
		o.DelayGridSteps = def.DelayGridSteps
	}
	if o.DelayRefineIterations <= 0 {
		o.DelayRefineIterations = def.DelayRefineIterations
	}
	if o.DelayTrimFraction <= 0 || o.DelayTrimFraction > 1 {
		o.DelayTrimFraction = def.DelayTrimFraction
	}
	if o.AsymmetryThreshold <= 0 {
		o.AsymmetryThreshold = def.AsymmetryThreshold
	}
	return o
}
