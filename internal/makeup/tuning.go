package makeup

import (
	"image"

	"github.com/andresmejia3/visage/internal/curve"
)

// EffectTuning controls how strongly a recolor lands and how wide it is
// feathered. Intensity scales the Lab shift, Kernel is the Gaussian kernel
// size of the feather and Weight caps the composite opacity.
type EffectTuning struct {
	Intensity float64
	Kernel    int
	Weight    float64
}

// LiftStep lifts the tapered liner edge by Lift pixels while the running
// sample count is below Fraction of the number of control points.
type LiftStep struct {
	Fraction float64
	Lift     int
}

// TaperProfile is the fixed correction that turns a lid curve into a liner
// stroke: the outer control point is pushed CornerShiftX outward, the inner
// ones MidShiftX, the moved points are raised LiftY, and the returning edge
// is lifted stepwise so the stroke thickens toward the outer corner.
type TaperProfile struct {
	CornerShiftX int
	MidShiftX    int
	LiftY        int
	Steps        []LiftStep
	MaxLift      int
}

// Lift returns the upward offset for the count-th sample (1-based) of a
// stroke fitted through n control points.
func (t TaperProfile) Lift(count, n int) int {
	for _, s := range t.Steps {
		if float64(count) < s.Fraction*float64(n) {
			return s.Lift
		}
	}
	return t.MaxLift
}

// Shift returns a copy of the lid control points with the taper applied.
// outerFirst says whether the outer eye corner is the first (lowest x)
// point, as for the right eye, or the last, as for the left eye.
func (t TaperProfile) Shift(lid []image.Point, outerFirst bool) []image.Point {
	out := append([]image.Point(nil), lid...)
	n := len(out)
	if n == 0 {
		return out
	}
	for i := 1; i < n-1; i++ {
		if outerFirst {
			out[i].X -= t.MidShiftX
		} else {
			out[i].X += t.MidShiftX
		}
	}
	if outerFirst {
		out[0].X -= t.CornerShiftX
		for i := 0; i < n-1; i++ {
			out[i].Y -= t.LiftY
		}
	} else {
		out[n-1].X += t.CornerShiftX
		for i := 1; i < n; i++ {
			out[i].Y -= t.LiftY
		}
	}
	return out
}

// Tuning gathers every constant the effects use.
type Tuning struct {
	Lipstick  EffectTuning
	Blush     EffectTuning
	Eyeshadow EffectTuning

	LipDegree   int
	LinerDegree int

	// ClosedSamples is the minimum closed-curve sample count; large anchor
	// loops get SamplesPerPixel samples per pixel of perimeter instead.
	ClosedSamples   int
	SamplesPerPixel float64

	Taper TaperProfile

	JPEGQuality int
}

// DefaultTuning returns the standard constants.
func DefaultTuning() Tuning {
	return Tuning{
		Lipstick:  EffectTuning{Intensity: 1, Kernel: 81, Weight: 0.7},
		Blush:     EffectTuning{Intensity: 0.5, Kernel: 201, Weight: 1},
		Eyeshadow: EffectTuning{Intensity: 0.5, Kernel: 51, Weight: 1},

		LipDegree:   3,
		LinerDegree: 2,

		ClosedSamples:   curve.DefaultClosedSamples,
		SamplesPerPixel: 4,

		Taper: TaperProfile{
			CornerShiftX: 5,
			MidShiftX:    1,
			LiftY:        1,
			Steps: []LiftStep{
				{Fraction: 1.0 / 2, Lift: 0},
				{Fraction: 2.0 / 3, Lift: 1},
				{Fraction: 4.0 / 5, Lift: 2},
			},
			MaxLift: 3,
		},

		JPEGQuality: 95,
	}
}
