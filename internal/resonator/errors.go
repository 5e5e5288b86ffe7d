package resonator

import (
	"errors"
	"fmt"
)

var (
	// ErrTooFewPoints is returned when a fit has less support than it needs.
	ErrTooFewPoints = errors.New("too few usable points")
	// ErrCollinear is returned when points do not determine a circle.
	ErrCollinear = errors.New("points are collinear or coincident")
	// ErrNoHalfPower is returned when neither half-power crossing is inside the trace.
	ErrNoHalfPower = errors.New("no half-power crossing within the trace")
	// ErrOutOfRange is returned when a frequency lies outside the retained samples.
	ErrOutOfRange = errors.New("frequency outside the retained samples")
)

// FitError marks a port whose circle or resonance could not be fitted.
type FitError struct {
	Port Port
	Err  error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("%s: fit failed: %v", e.Port, e.Err)
}

func (e *FitError) Unwrap() error { return e.Err }

// DegenerateFitError reports a derived parameter that would be physically
// invalid, such as a coupling coefficient at or above one.
type DegenerateFitError struct {
	Param string
	Value float64
}

func (e *DegenerateFitError) Error() string {
	return fmt.Sprintf("degenerate %s: %g", e.Param, e.Value)
}

// ConvergenceWarning flags a bounded loop or refinement that stopped short of
// its target. The result is still usable but of lower confidence.
type ConvergenceWarning struct {
	Port   Port
	Stage  string
	Detail string
}

func (w *ConvergenceWarning) Error() string {
	return fmt.Sprintf("%s: %s did not converge: %s", w.Port, w.Stage, w.Detail)
}
