package curve

import (
	"fmt"
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/andresmejia3/visage/internal/types"
)

// DefaultClosedSamples is the number of parameter values a closed curve is
// evaluated at.
const DefaultClosedSamples = 1000

// periodic is a C2 cubic spline with period u[len(u)-1], fitted to one
// coordinate of a closed loop.
type periodic struct {
	u []float64 // knots, u[0] = 0 and u[m] = period
	y []float64 // values at u[0..m-1]; y[m] wraps to y[0]
	m []float64 // second derivatives at u[0..m-1]
}

func fitPeriodic(u, y []float64) (*periodic, error) {
	n := len(y)
	h := make([]float64, n)
	for i := range h {
		h[i] = u[i+1] - u[i]
	}

	a := mat.NewDense(n, n, nil)
	rhs := make([]float64, n)
	for i := 0; i < n; i++ {
		prev := (i - 1 + n) % n
		next := (i + 1) % n
		hp, hi := h[prev], h[i]
		a.Set(i, prev, a.At(i, prev)+hp)
		a.Set(i, i, a.At(i, i)+2*(hp+hi))
		a.Set(i, next, a.At(i, next)+hi)
		rhs[i] = 6 * ((y[next]-y[i])/hi - (y[i]-y[prev])/hp)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, mat.NewVecDense(n, rhs)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	p := &periodic{u: u, y: y, m: make([]float64, n)}
	for i := range p.m {
		p.m[i] = sol.AtVec(i)
	}
	return p, nil
}

func (p *periodic) eval(t float64) float64 {
	n := len(p.y)
	period := p.u[n]
	t = math.Mod(t, period)
	if t < 0 {
		t += period
	}
	i := sort.SearchFloat64s(p.u, t)
	if i > 0 && (i >= len(p.u) || p.u[i] > t) {
		i--
	}
	if i >= n {
		i = n - 1
	}
	j := (i + 1) % n
	h := p.u[i+1] - p.u[i]
	a := p.u[i+1] - t
	b := t - p.u[i]
	return p.m[i]*a*a*a/(6*h) + p.m[j]*b*b*b/(6*h) +
		(p.y[i]/h-p.m[i]*h/6)*a + (p.y[j]/h-p.m[j]*h/6)*b
}

// closeLoop forces the loop shut and drops consecutive duplicates. The
// returned slice does not repeat the first point.
func closeLoop(points []image.Point) []image.Point {
	out := make([]image.Point, 0, len(points))
	for _, p := range points {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[len(out)-1] == out[0] {
		out = out[:len(out)-1]
	}
	return out
}

// FitClosed treats points as a closed loop, fits a periodic cubic spline per
// coordinate over cumulative chord length and samples it at evenly spaced
// parameter values. The result is rounded to pixels with duplicates removed
// in first-seen order.
func FitClosed(points []image.Point, samples int) (types.PointSet, error) {
	loop := closeLoop(points)
	if len(loop) < 3 {
		return types.PointSet{}, fmt.Errorf("%w: closed curve needs 3 distinct points, got %d", ErrTooFewPoints, len(loop))
	}
	if samples < 2 {
		samples = DefaultClosedSamples
	}

	n := len(loop)
	u := make([]float64, n+1)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range loop {
		xs[i], ys[i] = float64(p.X), float64(p.Y)
		next := loop[(i+1)%n]
		u[i+1] = u[i] + math.Hypot(float64(next.X-p.X), float64(next.Y-p.Y))
	}

	px, err := fitPeriodic(u, xs)
	if err != nil {
		return types.PointSet{}, err
	}
	py, err := fitPeriodic(u, ys)
	if err != nil {
		return types.PointSet{}, err
	}

	period := u[n]
	out := types.NewPointSet(samples)
	for k := 0; k < samples; k++ {
		t := period * float64(k) / float64(samples-1)
		out.Append(int(math.Round(px.eval(t))), int(math.Round(py.eval(t))))
	}
	return out.Unique(), nil
}

// Perimeter returns the length of the closed polygon through points.
func Perimeter(points []image.Point) float64 {
	loop := closeLoop(points)
	var l float64
	for i, p := range loop {
		next := loop[(i+1)%len(loop)]
		l += math.Hypot(float64(next.X-p.X), float64(next.Y-p.Y))
	}
	return l
}
