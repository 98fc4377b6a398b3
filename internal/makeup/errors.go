package makeup

import (
	"errors"

	"github.com/andresmejia3/visage/internal/landmarks"
)

var (
	// ErrNoFaceDetected is reported by a landmark source for photos without
	// a face. No effect runs and nothing is written.
	ErrNoFaceDetected = landmarks.ErrNoFace

	// ErrInsufficientLandmarks means a landmark subset could not support a
	// curve fit. The effect is skipped and later effects still run.
	ErrInsufficientLandmarks = errors.New("insufficient landmarks for effect")

	// ErrGeometryDegenerate means the effect's region could not be built or
	// lies outside the photo. The effect fails; later effects still run.
	ErrGeometryDegenerate = errors.New("degenerate effect region")

	// ErrIO wraps read, decode and write failures. Processing stops.
	ErrIO = errors.New("image i/o failed")

	// ErrInvalidConfig is returned for unknown effects or a missing color.
	ErrInvalidConfig = errors.New("invalid effect configuration")
)
