// Package raster turns curves and polygons into the pixel sets the
// compositor paints.
package raster

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/vector"

	"github.com/andresmejia3/visage/internal/types"
)

// ErrGeometryDegenerate means a region could not be filled, either because
// it is empty or because its boundary leaves a column uncovered.
var ErrGeometryDegenerate = errors.New("degenerate region geometry")

// BoundaryToInterior fills a closed boundary column by column: for every
// integer x in the boundary's x-range it emits each y between the column's
// lowest and highest boundary sample, both inclusive.
func BoundaryToInterior(boundary types.PointSet) (types.PointSet, error) {
	if boundary.Len() == 0 {
		return types.PointSet{}, fmt.Errorf("%w: empty boundary", ErrGeometryDegenerate)
	}

	b := boundary.Bounds()
	width := b.Dx()
	lo := make([]int, width)
	hi := make([]int, width)
	hit := make([]bool, width)
	for i := range boundary.X {
		c := boundary.X[i] - b.Min.X
		y := boundary.Y[i]
		if !hit[c] {
			lo[c], hi[c], hit[c] = y, y, true
			continue
		}
		lo[c] = min(lo[c], y)
		hi[c] = max(hi[c], y)
	}

	n := 0
	for c := 0; c < width; c++ {
		if !hit[c] {
			return types.PointSet{}, fmt.Errorf("%w: no boundary sample in column x=%d", ErrGeometryDegenerate, b.Min.X+c)
		}
		n += hi[c] - lo[c] + 1
	}

	out := types.NewPointSet(n)
	for c := 0; c < width; c++ {
		for y := lo[c]; y <= hi[c]; y++ {
			out.Append(b.Min.X+c, y)
		}
	}
	return out, nil
}

// Segment returns every pixel on the straight line from a to b, both ends
// included.
func Segment(a, b image.Point) types.PointSet {
	dx, dy := b.X-a.X, b.Y-a.Y
	steps := max(abs(dx), abs(dy))
	out := types.NewPointSet(steps + 1)
	if steps == 0 {
		out.Append(a.X, a.Y)
		return out
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		out.Append(
			a.X+int(math.Round(t*float64(dx))),
			a.Y+int(math.Round(t*float64(dy))),
		)
	}
	return out
}

// FillBetween pairs the two curves point by point, repeating the last point
// of the shorter one, and returns every pixel on the segments joining each
// pair. Either curve being empty yields an empty set.
func FillBetween(outer, inner types.PointSet) types.PointSet {
	if outer.Len() == 0 || inner.Len() == 0 {
		return types.PointSet{}
	}
	n := max(outer.Len(), inner.Len())
	out := types.NewPointSet(n * 4)
	for i := 0; i < n; i++ {
		o := outer.At(min(i, outer.Len()-1))
		in := inner.At(min(i, inner.Len()-1))
		out.Concat(Segment(o, in))
	}
	return out
}

// PolygonInterior rasterizes the closed polygon poly, clipped to clip. A
// pixel is inside when the polygon covers at least half of it or when the
// polygon outline passes through it, matching a conventional filled
// polygon draw. Vertices sit on pixel centers.
func PolygonInterior(poly []image.Point, clip image.Rectangle) types.PointSet {
	if len(poly) == 0 {
		return types.PointSet{}
	}
	var vb types.PointSet
	for _, p := range poly {
		vb.Append(p.X, p.Y)
	}
	r := vb.Bounds().Intersect(clip)
	if r.Empty() {
		return types.PointSet{}
	}

	z := vector.NewRasterizer(r.Dx(), r.Dy())
	at := func(p image.Point) (float32, float32) {
		return float32(p.X-r.Min.X) + 0.5, float32(p.Y-r.Min.Y) + 0.5
	}
	z.MoveTo(at(poly[0]))
	for _, p := range poly[1:] {
		z.LineTo(at(p))
	}
	z.ClosePath()

	cov := image.NewAlpha(image.Rect(0, 0, r.Dx(), r.Dy()))
	z.Draw(cov, cov.Bounds(), image.Opaque, image.Point{})

	for i := range poly {
		edge := Segment(poly[i], poly[(i+1)%len(poly)])
		for k := range edge.X {
			x, y := edge.X[k]-r.Min.X, edge.Y[k]-r.Min.Y
			if x >= 0 && y >= 0 && x < r.Dx() && y < r.Dy() {
				cov.Pix[y*cov.Stride+x] = 0xff
			}
		}
	}

	out := types.NewPointSet(r.Dx() * r.Dy() / 2)
	for y := 0; y < r.Dy(); y++ {
		row := cov.Pix[y*cov.Stride : y*cov.Stride+r.Dx()]
		for x, a := range row {
			if a >= 0x80 {
				out.Append(r.Min.X+x, r.Min.Y+y)
			}
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
