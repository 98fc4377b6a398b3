// Package landmarks maps the 68-point face model onto the anatomical regions
// the makeup effects paint.
package landmarks

import (
	"image"
	"math"

	"github.com/andresmejia3/visage/internal/types"
)

// Range is a half-open index range [Start, End) into a LandmarkSet.
type Range struct {
	Start, End int
}

// Indices expands the range.
func (r Range) Indices() []int {
	out := make([]int, 0, r.End-r.Start)
	for i := r.Start; i < r.End; i++ {
		out = append(out, i)
	}
	return out
}

// Standard regions of the 68-point model.
var (
	Jaw        = Range{0, 17}
	RightBrow  = Range{17, 22}
	LeftBrow   = Range{22, 27}
	Nose       = Range{27, 36}
	RightEye   = Range{36, 42}
	LeftEye    = Range{42, 48}
	OuterMouth = Range{48, 60}
	InnerMouth = Range{60, 68}
)

// Anchor is a synthetic closed loop of landmark indices approximating a
// region no landmark sits on (cheeks, eyelid creases). Every point is moved
// toward the loop centroid: p' = c + (p - c) * Scale.
type Anchor struct {
	Indices []int
	Scale   float64
}

// Points resolves the anchor against a landmark set.
func (a Anchor) Points(set *types.LandmarkSet) []image.Point {
	if len(a.Indices) == 0 {
		return nil
	}
	var cx, cy float64
	for _, i := range a.Indices {
		cx += float64(set[i].X)
		cy += float64(set[i].Y)
	}
	cx /= float64(len(a.Indices))
	cy /= float64(len(a.Indices))

	out := make([]image.Point, len(a.Indices))
	for k, i := range a.Indices {
		x := cx + (float64(set[i].X)-cx)*a.Scale
		y := cy + (float64(set[i].Y)-cy)*a.Scale
		out[k] = image.Pt(int(math.Round(x)), int(math.Round(y)))
	}
	return out
}

// Schema is the region definition table used by the makeup effects.
// Build it once and share it read-only.
type Schema struct {
	UpperOuterLip []int
	LowerOuterLip []int
	UpperInnerLip []int
	LowerInnerLip []int

	RightUpperLid []int
	LeftUpperLid  []int

	RightBlush     Anchor
	LeftBlush      Anchor
	RightEyeshadow Anchor
	LeftEyeshadow  Anchor
}

// Default returns the standard table for the dlib 68-point model.
// The lower lip lists run right to left and close back on the lip corner
// they started from.
func Default() *Schema {
	return &Schema{
		UpperOuterLip: []int{48, 49, 50, 51, 52, 53, 54},
		LowerOuterLip: []int{54, 55, 56, 57, 58, 59, 48},
		UpperInnerLip: []int{60, 61, 62, 63, 64},
		LowerInnerLip: []int{64, 65, 66, 67, 60},

		RightUpperLid: []int{36, 37, 38, 39},
		LeftUpperLid:  []int{42, 43, 44, 45},

		RightBlush:     Anchor{Indices: []int{48, 0, 1, 2, 31, 48}, Scale: 0.5},
		LeftBlush:      Anchor{Indices: []int{54, 13, 14, 15, 35, 54}, Scale: 0.5},
		RightEyeshadow: Anchor{Indices: []int{17, 18, 19, 20, 39, 38, 37, 36, 17}, Scale: 1},
		LeftEyeshadow:  Anchor{Indices: []int{26, 25, 24, 23, 22, 42, 43, 44, 26}, Scale: 1},
	}
}

// Points picks the given indices out of a landmark set.
func (s *Schema) Points(set *types.LandmarkSet, indices []int) []image.Point {
	out := make([]image.Point, len(indices))
	for k, i := range indices {
		out[k] = set[i]
	}
	return out
}
