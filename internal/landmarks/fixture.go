package landmarks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/andresmejia3/visage/internal/types"
)

// ErrNoFace is returned by every landmark source when the photo has no face.
// makeup.ErrNoFaceDetected is the same value.
var ErrNoFace = errors.New("no face detected")

// Fixture is a landmark source backed by a fixed set of points, used for
// tests and for running the pipeline from a landmark file without a detector.
// A nil Set means "no face found".
type Fixture struct {
	Set *types.LandmarkSet
}

// Landmarks ignores the image data and returns the fixed set.
func (f Fixture) Landmarks(_ context.Context, _ []byte) (types.LandmarkSet, error) {
	if f.Set == nil {
		return types.LandmarkSet{}, ErrNoFace
	}
	return *f.Set, nil
}

// LoadFixture reads a landmark JSON file: {"landmarks": [[x, y], ...]} with
// exactly 68 points, or {"landmarks": null} for a photo without a face.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("failed to read landmark file: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes the landmark JSON layout.
func ParseFixture(data []byte) (Fixture, error) {
	var raw types.LandmarkFixture
	if err := json.Unmarshal(data, &raw); err != nil {
		return Fixture{}, fmt.Errorf("malformed landmark file: %w", err)
	}
	if raw.Landmarks == nil {
		return Fixture{}, nil
	}
	if len(raw.Landmarks) != types.NumLandmarks {
		return Fixture{}, fmt.Errorf("expected %d landmarks, got %d", types.NumLandmarks, len(raw.Landmarks))
	}
	var set types.LandmarkSet
	for i, p := range raw.Landmarks {
		set[i] = image.Pt(p[0], p[1])
	}
	return Fixture{Set: &set}, nil
}

// Encode renders a landmark set in the fixture layout. A nil set encodes the
// "no face" form.
func Encode(set *types.LandmarkSet) ([]byte, error) {
	raw := types.LandmarkFixture{}
	if set != nil {
		raw.Landmarks = make([][2]int, types.NumLandmarks)
		for i, p := range set {
			raw.Landmarks[i] = [2]int{p.X, p.Y}
		}
	}
	return json.MarshalIndent(raw, "", "  ")
}
