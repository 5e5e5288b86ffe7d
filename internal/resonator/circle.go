package resonator

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// collinearTolerance is the smallest accepted ratio between the minor and
// major variance of a point cloud.
const collinearTolerance = 1e-12

// CircleFit is a circle in the complex plane.
type CircleFit struct {
	Center   complex128
	Radius   float64
	Residual float64 // RMS of the signed radial distances
}

// Distance returns the signed radial distance of p from the circle.
func (c CircleFit) Distance(p complex128) float64 {
	return cmplx.Abs(p-c.Center) - c.Radius
}

// At returns the circle point at the given angle about the center.
func (c CircleFit) At(angle float64) complex128 {
	return c.Center + cmplx.Rect(c.Radius, angle)
}

// FitCircle fits a circle to points with the algebraic (Kasa) method:
// x^2 + y^2 + Dx + Ey + F = 0 is solved as a linear least-squares problem on
// centered and scaled coordinates, so the result is deterministic and exact
// for points that lie on a circle.
func FitCircle(points []complex128) (CircleFit, error) {
	n := len(points)
	if n < 3 {
		return CircleFit{}, fmt.Errorf("circle fit with %d points: %w", n, ErrTooFewPoints)
	}

	var mean complex128
	for _, p := range points {
		mean += p
	}
	mean /= complex(float64(n), 0)

	var sxx, syy, sxy float64
	for _, p := range points {
		d := p - mean
		x, y := real(d), imag(d)
		sxx += x * x
		syy += y * y
		sxy += x * y
	}
	scale := math.Sqrt((sxx + syy) / float64(n))
	if scale == 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return CircleFit{}, ErrCollinear
	}

	// Eigenvalues of the 2x2 scatter matrix.
	half := (sxx + syy) / 2
	disc := math.Sqrt(math.Max(half*half-(sxx*syy-sxy*sxy), 0))
	if half-disc <= collinearTolerance*(half+disc) {
		return CircleFit{}, ErrCollinear
	}

	a := mat.NewDense(n, 3, nil)
	b := mat.NewVecDense(n, nil)
	for i, p := range points {
		d := (p - mean) / complex(scale, 0)
		x, y := real(d), imag(d)
		a.Set(i, 0, x)
		a.Set(i, 1, y)
		a.Set(i, 2, 1)
		b.SetVec(i, -(x*x + y*y))
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return CircleFit{}, fmt.Errorf("%w: %v", ErrCollinear, err)
	}

	cx, cy := -sol.AtVec(0)/2, -sol.AtVec(1)/2
	r2 := cx*cx + cy*cy - sol.AtVec(2)
	if !(r2 > 0) {
		return CircleFit{}, ErrCollinear
	}

	fit := CircleFit{
		Center: mean + complex(cx*scale, cy*scale),
		Radius: math.Sqrt(r2) * scale,
	}
	var ss float64
	for _, p := range points {
		d := fit.Distance(p)
		ss += d * d
	}
	fit.Residual = math.Sqrt(ss / float64(n))
	return fit, nil
}
