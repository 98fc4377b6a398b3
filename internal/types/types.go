package types

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// NumLandmarks is the size of the dlib 68-point face model.
const NumLandmarks = 68

// LandmarkSet is the ordered 68-point landmark sequence of a single face
// (0-16 jaw, 17-21 right brow, 22-26 left brow, 27-35 nose, 36-41 right eye,
// 42-47 left eye, 48-67 mouth).
type LandmarkSet [NumLandmarks]image.Point

// ImageTask represents a single image sent to an engine for processing
type ImageTask struct {
	Index int
	Path  string
}

// LandmarkFixture matches the JSON layout of a landmark file.
// A null landmarks field means the detector found no face.
type LandmarkFixture struct {
	Landmarks [][2]int `json:"landmarks"`
}

// Color is an 8-bit sRGB triple.
type Color struct {
	R, G, B uint8
}

// String renders the color as the literal channel encoding used in output
// filenames, e.g. "255_0_0".
func (c Color) String() string {
	return fmt.Sprintf("%d_%d_%d", c.R, c.G, c.B)
}

// Hex renders the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Black is the default liner color.
var Black = Color{}

// ParseColor accepts a palette name, "r,g,b" or "#rrggbb".
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return Color{}, fmt.Errorf("empty color")
	}
	if c, ok := Palette[s]; ok {
		return c, nil
	}

	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		if len(hex) != 6 {
			return Color{}, fmt.Errorf("invalid hex color %q", s)
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return Color{}, fmt.Errorf("invalid hex color %q: %w", s, err)
		}
		return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Color{}, fmt.Errorf("invalid color %q. Use a palette name, r,g,b or #rrggbb", s)
	}
	var ch [3]uint8
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Color{}, fmt.Errorf("invalid channel %q in %q: %w", p, s, err)
		}
		if v < 0 || v > 255 {
			return Color{}, fmt.Errorf("channel %d out of range 0-255 in %q", v, s)
		}
		ch[i] = uint8(v)
	}
	return Color{R: ch[0], G: ch[1], B: ch[2]}, nil
}

// Effect names one cosmetic effect.
type Effect string

const (
	EffectLipstick  Effect = "lipstick"
	EffectLiner     Effect = "liner"
	EffectBlush     Effect = "blush"
	EffectEyeshadow Effect = "eyeshadow"
)

// CanonicalOrder is the layering convention effects are applied in.
var CanonicalOrder = []Effect{EffectLipstick, EffectLiner, EffectBlush, EffectEyeshadow}

// EffectConfig is the per-effect color configuration supplied by a caller.
// Color may be nil for effects that have a default (the liner).
type EffectConfig struct {
	Effect  Effect
	Color   *Color
	Enabled bool
}

// PointSet holds two parallel coordinate sequences describing a region's
// boundary or interior.
type PointSet struct {
	X []int
	Y []int
}

// NewPointSet allocates an empty set with room for n points.
func NewPointSet(n int) PointSet {
	return PointSet{X: make([]int, 0, n), Y: make([]int, 0, n)}
}

// Len returns the number of points.
func (p PointSet) Len() int { return len(p.X) }

// At returns the i-th point.
func (p PointSet) At(i int) image.Point { return image.Pt(p.X[i], p.Y[i]) }

// Append adds a point.
func (p *PointSet) Append(x, y int) {
	p.X = append(p.X, x)
	p.Y = append(p.Y, y)
}

// Concat appends every point of o.
func (p *PointSet) Concat(o PointSet) {
	p.X = append(p.X, o.X...)
	p.Y = append(p.Y, o.Y...)
}

// Reversed returns a copy with the point order reversed.
func (p PointSet) Reversed() PointSet {
	n := p.Len()
	out := PointSet{X: make([]int, n), Y: make([]int, n)}
	for i := 0; i < n; i++ {
		out.X[n-1-i] = p.X[i]
		out.Y[n-1-i] = p.Y[i]
	}
	return out
}

// Unique returns the points with exact duplicates removed, keeping the
// first occurrence order.
func (p PointSet) Unique() PointSet {
	seen := make(map[image.Point]struct{}, p.Len())
	out := NewPointSet(p.Len())
	for i := range p.X {
		pt := image.Pt(p.X[i], p.Y[i])
		if _, ok := seen[pt]; ok {
			continue
		}
		seen[pt] = struct{}{}
		out.Append(pt.X, pt.Y)
	}
	return out
}

// Bounds returns the smallest rectangle containing every point
// (Max is exclusive). Empty sets return the zero rectangle.
func (p PointSet) Bounds() image.Rectangle {
	if p.Len() == 0 {
		return image.Rectangle{}
	}
	r := image.Rect(p.X[0], p.Y[0], p.X[0]+1, p.Y[0]+1)
	for i := 1; i < p.Len(); i++ {
		r = r.Union(image.Rect(p.X[i], p.Y[i], p.X[i]+1, p.Y[i]+1))
	}
	return r
}

// Polygon returns the points as a vertex list.
func (p PointSet) Polygon() []image.Point {
	out := make([]image.Point, p.Len())
	for i := range p.X {
		out[i] = image.Pt(p.X[i], p.Y[i])
	}
	return out
}
