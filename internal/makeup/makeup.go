// Package makeup applies cosmetic effects to a face photo. Each effect turns
// a landmark subset into a pixel region, recolors it, and feathers the
// result onto the image produced by the previous effect.
package makeup

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/andresmejia3/visage/internal/landmarks"
	"github.com/andresmejia3/visage/internal/types"
	"github.com/andresmejia3/visage/internal/utils"
)

// LandmarkSource finds the 68 landmarks of the first face in an encoded
// image. It returns ErrNoFaceDetected when there is none.
type LandmarkSource interface {
	Landmarks(ctx context.Context, image []byte) (types.LandmarkSet, error)
}

// Config configures a Facade. Nil fields take their defaults.
type Config struct {
	OutputDir string
	Schema    *landmarks.Schema
	Tuning    *Tuning
}

// Facade runs effects against photos. It holds no per-image state and is
// safe for concurrent use as long as its LandmarkSource is.
type Facade struct {
	source    LandmarkSource
	outputDir string
	schema    *landmarks.Schema
	tuning    Tuning
}

// New creates a Facade that takes landmarks from source.
func New(source LandmarkSource, cfg Config) *Facade {
	f := &Facade{
		source:    source,
		outputDir: cfg.OutputDir,
		schema:    cfg.Schema,
		tuning:    DefaultTuning(),
	}
	if f.schema == nil {
		f.schema = landmarks.Default()
	}
	if cfg.Tuning != nil {
		f.tuning = *cfg.Tuning
	}
	return f
}

// OutputName is the file an effect's result is written to. The same effect
// and color always map to the same name.
func OutputName(effect types.Effect, c types.Color) string {
	return fmt.Sprintf("output_%s_color_%s.jpg", effect, c)
}

// EffectColor resolves the color of cfg. Only the liner has a default.
func EffectColor(cfg types.EffectConfig) (types.Color, error) {
	if cfg.Color != nil {
		return *cfg.Color, nil
	}
	if cfg.Effect == types.EffectLiner {
		return types.Black, nil
	}
	return types.Color{}, fmt.Errorf("%w: %s needs a color", ErrInvalidConfig, cfg.Effect)
}

// Apply runs a single effect and returns a new image. accum is never
// modified; a disabled effect returns accum itself. A nil set means no face
// was found and yields ErrNoFaceDetected.
func (f *Facade) Apply(accum *image.NRGBA, set *types.LandmarkSet, cfg types.EffectConfig) (*image.NRGBA, error) {
	if !cfg.Enabled {
		return accum, nil
	}
	if set == nil {
		return nil, ErrNoFaceDetected
	}
	c, err := EffectColor(cfg)
	if err != nil {
		return nil, err
	}
	return f.apply(accum, set, cfg.Effect, c)
}

func (f *Facade) apply(accum *image.NRGBA, set *types.LandmarkSet, effect types.Effect, c types.Color) (*image.NRGBA, error) {
	switch effect {
	case types.EffectLipstick:
		return f.lipstick(accum, set, c)
	case types.EffectLiner:
		return f.liner(accum, set, c)
	case types.EffectBlush:
		return f.blush(accum, set, c)
	case types.EffectEyeshadow:
		return f.eyeshadow(accum, set, c)
	default:
		return nil, fmt.Errorf("%w: unknown effect %q", ErrInvalidConfig, effect)
	}
}

// Report describes what happened to one requested effect.
type Report struct {
	Effect  types.Effect
	Color   types.Color
	Output  string // empty unless a file was written
	Skipped bool
	Err     error
}

// Result is the outcome of processing one photo.
type Result struct {
	Image   *image.NRGBA
	Reports []Report
}

// Process detects the face in the photo at inputPath and applies configs
// in the order given, writing one file per applied effect. Effects that
// fail are reported and joined into the returned error while the remaining
// effects still run; read and write failures stop processing.
func (f *Facade) Process(ctx context.Context, inputPath string, configs []types.EffectConfig) (*Result, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	img, err := utils.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIO, inputPath, err)
	}

	set, err := f.source.Landmarks(ctx, data)
	if err != nil {
		if errors.Is(err, ErrNoFaceDetected) {
			Logger().Info("no face detected", "path", inputPath)
			return nil, err
		}
		return nil, fmt.Errorf("landmark detection failed: %w", err)
	}
	return f.Render(ctx, img, &set, configs)
}

// Render applies configs to an already decoded photo.
func (f *Facade) Render(ctx context.Context, img *image.NRGBA, set *types.LandmarkSet, configs []types.EffectConfig) (*Result, error) {
	if set == nil {
		return nil, ErrNoFaceDetected
	}
	res := &Result{Image: img}
	var errs []error

	for _, cfg := range configs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rep := Report{Effect: cfg.Effect}
		if !cfg.Enabled {
			rep.Skipped = true
			res.Reports = append(res.Reports, rep)
			continue
		}

		c, err := EffectColor(cfg)
		if err != nil {
			rep.Err = err
			errs = append(errs, err)
			res.Reports = append(res.Reports, rep)
			continue
		}
		rep.Color = c

		next, err := f.apply(res.Image, set, cfg.Effect, c)
		switch {
		case errors.Is(err, ErrInsufficientLandmarks):
			rep.Skipped = true
			rep.Err = err
			Logger().Warn("effect skipped", "effect", cfg.Effect, "err", err)
		case err != nil:
			rep.Err = err
			errs = append(errs, fmt.Errorf("%s: %w", cfg.Effect, err))
			Logger().Warn("effect failed", "effect", cfg.Effect, "err", err)
		default:
			path := filepath.Join(f.outputDir, OutputName(cfg.Effect, c))
			if err := utils.SaveJPEG(path, next, f.tuning.JPEGQuality); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrIO, err)
			}
			res.Image = next
			rep.Output = path
			Logger().Info("effect applied", "effect", cfg.Effect, "color", c.Hex(), "output", path)
		}
		res.Reports = append(res.Reports, rep)
	}

	return res, errors.Join(errs...)
}
