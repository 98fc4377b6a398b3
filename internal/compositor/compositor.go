// Package compositor recolors pixel regions in CIE L*a*b* and feathers them
// back into an image through a blurred mask.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/stat"

	"github.com/andresmejia3/visage/internal/types"
)

var (
	// ErrEmptyRegion is returned when none of the selected pixels lie inside
	// the buffer.
	ErrEmptyRegion = errors.New("region has no pixels inside the image")
	// ErrSizeMismatch is returned when two buffers that must align do not.
	ErrSizeMismatch = errors.New("image buffers differ in size")
)

// Lab channel limits, in the 0-100 lightness scale.
const (
	minL, maxL   = 0.0, 100.0
	minAB, maxAB = -127.0, 128.0
)

func toLab(r, g, b uint8) (float64, float64, float64) {
	l, a, bb := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}.Lab()
	return l * 100, a * 100, bb * 100
}

func fromLab(l, a, b float64) (uint8, uint8, uint8) {
	return colorful.Lab(l/100, a/100, b/100).Clamped().RGB255()
}

// ColorLab returns c in the 0-100 L*a*b* scale used by LabShift.
func ColorLab(c types.Color) (l, a, b float64) {
	return toLab(c.R, c.G, c.B)
}

// uniqueInBounds returns the pixel offsets of pts inside buf, each once.
func uniqueInBounds(buf *image.NRGBA, pts types.PointSet) []int {
	b := buf.Bounds()
	seen := make(map[int]struct{}, pts.Len())
	offs := make([]int, 0, pts.Len())
	for i := range pts.X {
		p := image.Pt(pts.X[i], pts.Y[i])
		if !p.In(b) {
			continue
		}
		o := buf.PixOffset(p.X, p.Y)
		if _, ok := seen[o]; ok {
			continue
		}
		seen[o] = struct{}{}
		offs = append(offs, o)
	}
	return offs
}

// LabShift moves the selected pixels toward target. Each pixel is shifted by
// intensity * (target - mean) per Lab channel, where mean is taken over the
// region, so the region's texture and shading survive the recolor.
func LabShift(buf *image.NRGBA, pts types.PointSet, target types.Color, intensity float64) error {
	offs := uniqueInBounds(buf, pts)
	if len(offs) == 0 {
		return fmt.Errorf("%w: %d points selected", ErrEmptyRegion, pts.Len())
	}

	ls := make([]float64, len(offs))
	as := make([]float64, len(offs))
	bs := make([]float64, len(offs))
	for i, o := range offs {
		px := buf.Pix[o : o+3 : o+3]
		ls[i], as[i], bs[i] = toLab(px[0], px[1], px[2])
	}

	tl, ta, tb := ColorLab(target)
	dl := intensity * (tl - stat.Mean(ls, nil))
	da := intensity * (ta - stat.Mean(as, nil))
	db := intensity * (tb - stat.Mean(bs, nil))

	for i, o := range offs {
		l := clamp(ls[i]+dl, minL, maxL)
		a := clamp(as[i]+da, minAB, maxAB)
		b := clamp(bs[i]+db, minAB, maxAB)
		px := buf.Pix[o : o+3 : o+3]
		px[0], px[1], px[2] = fromLab(l, a, b)
	}
	return nil
}

// SolidFill paints every in-bounds point with c at full opacity.
func SolidFill(buf *image.NRGBA, pts types.PointSet, c types.Color) {
	b := buf.Bounds()
	for i := range pts.X {
		p := image.Pt(pts.X[i], pts.Y[i])
		if !p.In(b) {
			continue
		}
		o := buf.PixOffset(p.X, p.Y)
		px := buf.Pix[o : o+4 : o+4]
		px[0], px[1], px[2], px[3] = c.R, c.G, c.B, 0xff
	}
}

// KernelSigma converts an odd Gaussian kernel size to its standard
// deviation with the usual rule sigma = 0.3*((k-1)/2 - 1) + 0.8.
// Kernels of 1 or less mean no blur and return 0.
func KernelSigma(kernel int) float64 {
	if kernel <= 1 {
		return 0
	}
	return 0.3*(float64(kernel-1)/2-1) + 0.8
}

// BlurSupport is how far, in pixels, a mask blurred with kernel can reach
// past its last set pixel.
func BlurSupport(kernel int) int {
	s := KernelSigma(kernel)
	if s <= 0 {
		return 0
	}
	return int(math.Ceil(s * 3))
}

// SoftComposite blends working over accum through a feathered mask:
// out = m*weight*working + (1 - m*weight)*accum, where m is the mask blurred
// with the given kernel and scaled to [0, 1]. Neither input is modified.
func SoftComposite(working, accum *image.NRGBA, mask types.PointSet, kernel int, weight float64) (*image.NRGBA, error) {
	b := accum.Bounds()
	if working.Bounds() != b {
		return nil, fmt.Errorf("%w: working %v, accumulated %v", ErrSizeMismatch, working.Bounds(), b)
	}

	out := image.NewNRGBA(b)
	copy(out.Pix, accum.Pix)
	if mask.Len() == 0 {
		return out, nil
	}

	// Only the mask's neighborhood can change.
	support := BlurSupport(kernel)
	region := mask.Bounds().Inset(-support).Intersect(b)
	if region.Empty() {
		return out, nil
	}

	hard := image.NewGray(region)
	for i := range mask.X {
		p := image.Pt(mask.X[i], mask.Y[i])
		if p.In(region) {
			hard.Pix[hard.PixOffset(p.X, p.Y)] = 0xff
		}
	}

	soft := func(x, y int) float64 {
		return float64(hard.Pix[hard.PixOffset(x, y)]) / 255
	}
	if sigma := KernelSigma(kernel); sigma > 0 {
		blurred := imaging.Blur(hard, sigma)
		soft = func(x, y int) float64 {
			return float64(blurred.Pix[(y-region.Min.Y)*blurred.Stride+(x-region.Min.X)*4]) / 255
		}
	}

	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			m := soft(x, y) * weight
			if m == 0 {
				continue
			}
			o := out.PixOffset(x, y)
			w := working.Pix[o : o+4 : o+4]
			a := accum.Pix[o : o+4 : o+4]
			d := out.Pix[o : o+4 : o+4]
			for c := 0; c < 4; c++ {
				d[c] = uint8(clamp(math.Round(m*float64(w[c])+(1-m)*float64(a[c])), 0, 255))
			}
		}
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
