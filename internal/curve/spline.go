// Package curve reconstructs dense pixel curves from sparse ordered points.
package curve

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/andresmejia3/visage/internal/types"
)

var (
	// ErrTooFewPoints is returned when a fit has fewer points than it needs.
	ErrTooFewPoints = errors.New("too few points for curve fit")
	// ErrDuplicateX is returned when the x values of an open fit are not
	// strictly increasing.
	ErrDuplicateX = errors.New("x values must be strictly increasing")
	// ErrSingular is returned when the interpolation system cannot be solved.
	ErrSingular = errors.New("interpolation system is singular")
)

// Direction selects the order in which an open curve is sampled.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "descending"
	}
	return "ascending"
}

// Spline is an interpolating B-spline y = f(x).
type Spline struct {
	degree int
	knots  []float64
	coef   []float64
}

// Fit builds the interpolating spline of the given degree through (xs[i], ys[i]).
// End conditions are not-a-knot; even degrees place interior knots at the
// midpoints between data sites instead.
func Fit(xs, ys []float64, degree int) (*Spline, error) {
	n := len(xs)
	if n != len(ys) {
		return nil, fmt.Errorf("curve: %d x values but %d y values", n, len(ys))
	}
	if degree < 1 {
		return nil, fmt.Errorf("curve: invalid degree %d", degree)
	}
	if n < degree+1 {
		return nil, fmt.Errorf("%w: degree %d needs %d, got %d", ErrTooFewPoints, degree, degree+1, n)
	}
	for i := 1; i < n; i++ {
		if !(xs[i] > xs[i-1]) {
			return nil, fmt.Errorf("%w: x[%d]=%v after x[%d]=%v", ErrDuplicateX, i, xs[i], i-1, xs[i-1])
		}
	}

	s := &Spline{degree: degree, knots: knotVector(xs, degree)}

	a := mat.NewDense(n, n, nil)
	basis := make([]float64, degree+1)
	for i, x := range xs {
		span := s.span(x)
		s.basis(span, x, basis)
		for j, v := range basis {
			a.Set(i, span-degree+j, v)
		}
	}

	var c mat.VecDense
	if err := c.SolveVec(a, mat.NewVecDense(n, append([]float64(nil), ys...))); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	s.coef = make([]float64, n)
	for i := range s.coef {
		s.coef[i] = c.AtVec(i)
	}
	return s, nil
}

// knotVector builds a clamped knot vector with len(xs) basis functions.
func knotVector(xs []float64, k int) []float64 {
	n := len(xs)
	var interior []float64
	if k%2 == 0 {
		mids := make([]float64, n-1)
		for i := range mids {
			mids[i] = (xs[i] + xs[i+1]) / 2
		}
		drop := (k - 2) / 2
		interior = mids[1+drop : len(mids)-1-drop]
	} else {
		m := (k - 1) / 2
		interior = xs[m+1 : n-m-1]
	}

	t := make([]float64, 0, n+k+1)
	for i := 0; i <= k; i++ {
		t = append(t, xs[0])
	}
	t = append(t, interior...)
	for i := 0; i <= k; i++ {
		t = append(t, xs[n-1])
	}
	return t
}

// span finds l with knots[l] <= x < knots[l+1], clamped to the valid
// range so the right end point belongs to the last interval.
func (s *Spline) span(x float64) int {
	n := len(s.knots) - s.degree - 1
	if x >= s.knots[n] {
		return n - 1
	}
	if x <= s.knots[s.degree] {
		return s.degree
	}
	lo, hi := s.degree, n
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if x < s.knots[mid] {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo
}

// basis fills out with the degree+1 non-zero basis functions at x
// (Cox-de Boor recursion).
func (s *Spline) basis(span int, x float64, out []float64) {
	k := s.degree
	left := make([]float64, k+1)
	right := make([]float64, k+1)
	out[0] = 1
	for j := 1; j <= k; j++ {
		left[j] = x - s.knots[span+1-j]
		right[j] = s.knots[span+j] - x
		saved := 0.0
		for r := 0; r < j; r++ {
			den := right[r+1] + left[j-r]
			temp := 0.0
			if den != 0 {
				temp = out[r] / den
			}
			out[r] = saved + right[r+1]*temp
			saved = left[j-r] * temp
		}
		out[j] = saved
	}
}

// Eval evaluates the spline at x. Outside the fitted domain the end
// polynomials are extended.
func (s *Spline) Eval(x float64) float64 {
	span := s.span(x)
	basis := make([]float64, s.degree+1)
	s.basis(span, x, basis)
	var y float64
	for j, b := range basis {
		y += s.coef[span-s.degree+j] * b
	}
	return y
}

// Domain returns the first and last data site.
func (s *Spline) Domain() (lo, hi float64) {
	return s.knots[0], s.knots[len(s.knots)-1]
}

// FitOpen fits y = f(x) through points (strictly increasing x) and samples
// the curve at every integer x from the first to the last point inclusive.
func FitOpen(points []image.Point, degree int, dir Direction) (types.PointSet, error) {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = float64(p.X), float64(p.Y)
	}
	s, err := Fit(xs, ys, degree)
	if err != nil {
		return types.PointSet{}, err
	}
	return s.Sample(points[0].X, points[len(points)-1].X, dir), nil
}

// Sample evaluates the spline at every integer x in [from, to] and rounds
// the result to the pixel grid.
func (s *Spline) Sample(from, to int, dir Direction) types.PointSet {
	if from > to {
		from, to = to, from
	}
	out := types.NewPointSet(to - from + 1)
	if dir == Descending {
		for x := to; x >= from; x-- {
			out.Append(x, int(math.Round(s.Eval(float64(x)))))
		}
		return out
	}
	for x := from; x <= to; x++ {
		out.Append(x, int(math.Round(s.Eval(float64(x)))))
	}
	return out
}
