package curve

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/andresmejia3/visage/internal/landmarks"
)

func TestFitReproducesPolynomials(t *testing.T) {
	tests := []struct {
		name   string
		degree int
		f      func(x float64) float64
		xs     []float64
	}{
		{"cubic", 3, func(x float64) float64 { return 0.01*x*x*x - 0.3*x*x + 2*x + 5 }, []float64{0, 3, 7, 8, 12, 20}},
		{"quadratic", 2, func(x float64) float64 { return 0.5*x*x - 4*x + 1 }, []float64{-4, -1, 2, 6, 9}},
		{"linear", 1, func(x float64) float64 { return 3*x - 2 }, []float64{0, 1, 5}},
		{"cubic minimal", 3, func(x float64) float64 { return x * x * x }, []float64{1, 2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ys := make([]float64, len(tt.xs))
			for i, x := range tt.xs {
				ys[i] = tt.f(x)
			}
			s, err := Fit(tt.xs, ys, tt.degree)
			if err != nil {
				t.Fatalf("Fit failed: %v", err)
			}
			lo, hi := s.Domain()
			for x := lo; x <= hi; x += 0.25 {
				if got, want := s.Eval(x), tt.f(x); math.Abs(got-want) > 1e-6 {
					t.Fatalf("Eval(%v) = %v, want %v", x, got, want)
				}
			}
		})
	}
}

func TestFitInterpolatesData(t *testing.T) {
	xs := []float64{10, 14, 22, 25, 31, 40, 44}
	ys := []float64{5, 9, 4, 12, 3, 8, 1}
	for _, degree := range []int{2, 3} {
		s, err := Fit(xs, ys, degree)
		if err != nil {
			t.Fatalf("degree %d: Fit failed: %v", degree, err)
		}
		for i, x := range xs {
			if got := s.Eval(x); math.Abs(got-ys[i]) > 1e-9 {
				t.Errorf("degree %d: Eval(%v) = %v, want %v", degree, x, got, ys[i])
			}
		}
	}
}

func TestFitErrors(t *testing.T) {
	tests := []struct {
		name   string
		pts    []image.Point
		degree int
		want   error
	}{
		{"too few for cubic", []image.Point{{0, 0}, {1, 1}, {2, 0}}, 3, ErrTooFewPoints},
		{"too few for quadratic", []image.Point{{0, 0}, {1, 1}}, 2, ErrTooFewPoints},
		{"duplicate x", []image.Point{{0, 0}, {1, 1}, {1, 2}, {3, 0}}, 3, ErrDuplicateX},
		{"decreasing x", []image.Point{{5, 0}, {4, 1}, {3, 2}, {2, 0}}, 3, ErrDuplicateX},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FitOpen(tt.pts, tt.degree, Ascending); !errors.Is(err, tt.want) {
				t.Errorf("FitOpen error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFitOpenSpansLipWidth(t *testing.T) {
	set := landmarks.Template(image.Rect(100, 100, 500, 500))
	s := landmarks.Default()
	pts := s.Points(&set, s.UpperOuterLip)

	for _, dir := range []Direction{Ascending, Descending} {
		t.Run(dir.String(), func(t *testing.T) {
			curve, err := FitOpen(pts, 3, dir)
			if err != nil {
				t.Fatalf("FitOpen failed: %v", err)
			}
			minX, maxX := pts[0].X, pts[len(pts)-1].X
			if curve.Len() != maxX-minX+1 {
				t.Fatalf("got %d samples, want %d", curve.Len(), maxX-minX+1)
			}

			first, last := minX, maxX
			step := 1
			if dir == Descending {
				first, last, step = maxX, minX, -1
			}
			if curve.X[0] != first || curve.X[curve.Len()-1] != last {
				t.Errorf("x runs %d..%d, want %d..%d", curve.X[0], curve.X[curve.Len()-1], first, last)
			}
			for i := 1; i < curve.Len(); i++ {
				if curve.X[i]-curve.X[i-1] != step {
					t.Fatalf("x step at %d is %d, want %d", i, curve.X[i]-curve.X[i-1], step)
				}
			}

			// The curve passes through every control point.
			byX := make(map[int]int, curve.Len())
			for i := range curve.X {
				byX[curve.X[i]] = curve.Y[i]
			}
			for _, p := range pts {
				if byX[p.X] != p.Y {
					t.Errorf("curve at x=%d is %d, want %d", p.X, byX[p.X], p.Y)
				}
			}
		})
	}
}

func TestFitClosedCircle(t *testing.T) {
	const r = 40.0
	center := image.Pt(100, 80)
	var pts []image.Point
	for i := 0; i < 12; i++ {
		a := 2 * math.Pi * float64(i) / 12
		pts = append(pts, image.Pt(
			center.X+int(math.Round(r*math.Cos(a))),
			center.Y+int(math.Round(r*math.Sin(a))),
		))
	}
	pts = append(pts, pts[0])

	boundary, err := FitClosed(pts, DefaultClosedSamples)
	if err != nil {
		t.Fatalf("FitClosed failed: %v", err)
	}
	if boundary.Len() == 0 {
		t.Fatal("empty boundary")
	}

	seen := make(map[image.Point]bool, boundary.Len())
	for i := 0; i < boundary.Len(); i++ {
		p := boundary.At(i)
		if seen[p] {
			t.Fatalf("duplicate point %v", p)
		}
		seen[p] = true
		d := math.Hypot(float64(p.X-center.X), float64(p.Y-center.Y))
		if math.Abs(d-r) > 2 {
			t.Errorf("point %v is %.2f from center, want about %.0f", p, d, r)
		}
	}

	// Every column of the circle's x-range must have a sample.
	cols := make(map[int]bool)
	for _, x := range boundary.X {
		cols[x] = true
	}
	b := boundary.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		if !cols[x] {
			t.Errorf("column %d has no boundary sample", x)
		}
	}
}

func TestFitClosedTooFewPoints(t *testing.T) {
	tests := [][]image.Point{
		nil,
		{{1, 1}},
		{{1, 1}, {5, 5}, {1, 1}},
		{{1, 1}, {1, 1}, {5, 5}, {5, 5}},
	}
	for _, pts := range tests {
		if _, err := FitClosed(pts, 100); !errors.Is(err, ErrTooFewPoints) {
			t.Errorf("FitClosed(%v) error = %v, want ErrTooFewPoints", pts, err)
		}
	}
}

func TestPerimeter(t *testing.T) {
	square := []image.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	if got := Perimeter(square); math.Abs(got-40) > 1e-9 {
		t.Errorf("Perimeter = %v, want 40", got)
	}
}
