package makeup

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/andresmejia3/visage/internal/compositor"
	"github.com/andresmejia3/visage/internal/curve"
	"github.com/andresmejia3/visage/internal/landmarks"
	"github.com/andresmejia3/visage/internal/raster"
	"github.com/andresmejia3/visage/internal/types"
)

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(b)
	rowLen := b.Dx() * 4
	for y := b.Min.Y; y < b.Max.Y; y++ {
		so := src.PixOffset(b.Min.X, y)
		do := dst.PixOffset(b.Min.X, y)
		copy(dst.Pix[do:do+rowLen], src.Pix[so:so+rowLen])
	}
	return dst
}

// sortByX orders points by x. Points sharing an x collapse into one at
// their mean y, since a function of x cannot pass through both.
func sortByX(pts []image.Point) []image.Point {
	sorted := append([]image.Point(nil), pts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	out := sorted[:0]
	for i := 0; i < len(sorted); {
		j, sum := i, 0
		for ; j < len(sorted) && sorted[j].X == sorted[i].X; j++ {
			sum += sorted[j].Y
		}
		out = append(out, image.Pt(sorted[i].X, int(math.Round(float64(sum)/float64(j-i)))))
		i = j
	}
	return out
}

func fitError(region string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInsufficientLandmarks, region, err)
}

func geometryError(region string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrGeometryDegenerate, region, err)
}

func outsideError(region string) error {
	return fmt.Errorf("%w: %s lies outside the photo", ErrGeometryDegenerate, region)
}

// lipstick paints both lip halves: a solid base layer over the lip polygon,
// a Lab shift over the strip between outer and inner edge, then a feathered
// composite of each half.
func (f *Facade) lipstick(accum *image.NRGBA, set *types.LandmarkSet, c types.Color) (*image.NRGBA, error) {
	s, tn := f.schema, f.tuning
	halves := []struct {
		name         string
		outer, inner []int
		dir          curve.Direction
	}{
		{"upper lip", s.UpperOuterLip, s.UpperInnerLip, curve.Ascending},
		{"lower lip", s.LowerOuterLip, s.LowerInnerLip, curve.Descending},
	}

	working := cloneNRGBA(accum)
	var strip types.PointSet
	masks := make([]types.PointSet, 0, len(halves))
	for _, h := range halves {
		outer, err := curve.FitOpen(sortByX(s.Points(set, h.outer)), tn.LipDegree, h.dir)
		if err != nil {
			return nil, fitError(h.name+" outer edge", err)
		}
		inner, err := curve.FitOpen(sortByX(s.Points(set, h.inner)), tn.LipDegree, h.dir)
		if err != nil {
			return nil, fitError(h.name+" inner edge", err)
		}

		strip.Concat(raster.FillBetween(outer, inner))
		poly := append(outer.Polygon(), inner.Reversed().Polygon()...)
		region := raster.PolygonInterior(poly, accum.Bounds())
		if region.Len() == 0 {
			return nil, outsideError(h.name)
		}
		compositor.SolidFill(working, region, c)
		masks = append(masks, region)

		Logger().Debug("lip half built", "half", h.name, "outer", outer.Len(), "inner", inner.Len(), "pixels", region.Len())
	}

	if err := compositor.LabShift(working, strip, c, tn.Lipstick.Intensity); err != nil {
		return nil, geometryError("lips", err)
	}

	out := accum
	for _, m := range masks {
		var err error
		if out, err = compositor.SoftComposite(working, out, m, tn.Lipstick.Kernel, tn.Lipstick.Weight); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// liner draws a solid stroke along each upper lid, straight into a copy of
// the accumulated image.
func (f *Facade) liner(accum *image.NRGBA, set *types.LandmarkSet, c types.Color) (*image.NRGBA, error) {
	s := f.schema
	eyes := []struct {
		name       string
		lid        []int
		outerFirst bool
	}{
		{"right eye", s.RightUpperLid, true},
		{"left eye", s.LeftUpperLid, false},
	}

	out := cloneNRGBA(accum)
	for _, e := range eyes {
		poly, err := f.linerStroke(sortByX(s.Points(set, e.lid)), e.outerFirst)
		if err != nil {
			return nil, fitError(e.name+" lid", err)
		}
		region := raster.PolygonInterior(poly, out.Bounds())
		if region.Len() == 0 {
			return nil, outsideError(e.name + " liner")
		}
		compositor.SolidFill(out, region, c)
		Logger().Debug("liner stroke built", "eye", e.name, "vertices", len(poly), "pixels", region.Len())
	}
	return out, nil
}

// linerStroke returns the stroke outline: the lid curve left to right, then
// the tapered curve back right to left, lifted a little more at each step.
func (f *Facade) linerStroke(lid []image.Point, outerFirst bool) ([]image.Point, error) {
	tn := f.tuning
	lower, err := curve.FitOpen(lid, tn.LinerDegree, curve.Ascending)
	if err != nil {
		return nil, err
	}

	moved := tn.Taper.Shift(lid, outerFirst)
	xs := make([]float64, len(moved))
	ys := make([]float64, len(moved))
	for i, p := range moved {
		xs[i], ys[i] = float64(p.X), float64(p.Y)
	}
	upper, err := curve.Fit(xs, ys, tn.LinerDegree)
	if err != nil {
		return nil, err
	}

	poly := lower.Polygon()
	n := len(moved)
	count := 0
	for x := moved[n-1].X; x > moved[0].X; x-- {
		count++
		y := int(math.Round(upper.Eval(float64(x)))) - tn.Taper.Lift(count, n)
		poly = append(poly, image.Pt(x, y))
	}
	return poly, nil
}

type sideAnchor struct {
	name   string
	anchor landmarks.Anchor
}

// anchored handles the blush and eyeshadow: each anchor loop is closed into
// a smooth boundary, filled, recolored in Lab and feathered in.
func (f *Facade) anchored(accum *image.NRGBA, set *types.LandmarkSet, c types.Color, sides []sideAnchor, tn EffectTuning) (*image.NRGBA, error) {
	working := cloneNRGBA(accum)
	regions := make([]types.PointSet, 0, len(sides))
	for _, side := range sides {
		pts := side.anchor.Points(set)
		samples := max(f.tuning.ClosedSamples, int(math.Ceil(f.tuning.SamplesPerPixel*curve.Perimeter(pts))))
		boundary, err := curve.FitClosed(pts, samples)
		if err != nil {
			return nil, fitError(side.name, err)
		}
		interior, err := raster.BoundaryToInterior(boundary)
		if err != nil {
			return nil, geometryError(side.name, err)
		}
		if err := compositor.LabShift(working, interior, c, tn.Intensity); err != nil {
			return nil, geometryError(side.name, err)
		}
		regions = append(regions, interior)

		Logger().Debug("anchor region built", "region", side.name, "samples", samples, "boundary", boundary.Len(), "pixels", interior.Len())
	}

	out := accum
	for _, r := range regions {
		var err error
		if out, err = compositor.SoftComposite(working, out, r, tn.Kernel, tn.Weight); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (f *Facade) blush(accum *image.NRGBA, set *types.LandmarkSet, c types.Color) (*image.NRGBA, error) {
	return f.anchored(accum, set, c, []sideAnchor{
		{"right cheek", f.schema.RightBlush},
		{"left cheek", f.schema.LeftBlush},
	}, f.tuning.Blush)
}

func (f *Facade) eyeshadow(accum *image.NRGBA, set *types.LandmarkSet, c types.Color) (*image.NRGBA, error) {
	return f.anchored(accum, set, c, []sideAnchor{
		{"right lid", f.schema.RightEyeshadow},
		{"left lid", f.schema.LeftEyeshadow},
	}, f.tuning.Eyeshadow)
}
