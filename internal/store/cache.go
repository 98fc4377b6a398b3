package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/andresmejia3/visage/internal/landmarks"
	"github.com/andresmejia3/visage/internal/types"
	"github.com/andresmejia3/visage/internal/utils"
)

// Source is anything that can find landmarks in an encoded image.
type Source interface {
	Landmarks(ctx context.Context, data []byte) (types.LandmarkSet, error)
}

// Cache is the storage CachedSource reads through. *Store implements it.
type Cache interface {
	GetLandmarks(ctx context.Context, imageID string) (*types.LandmarkSet, bool, error)
	SaveLandmarks(ctx context.Context, imageID, path string, set *types.LandmarkSet) error
}

// CachedSource answers from the cache when it can and otherwise asks next,
// remembering both faces and "no face" answers. Images are keyed by content.
type CachedSource struct {
	cache Cache
	next  Source
	path  string
}

func NewCachedSource(cache Cache, next Source) *CachedSource {
	return &CachedSource{cache: cache, next: next}
}

// ForPath returns a view that records path alongside new cache entries.
func (c *CachedSource) ForPath(path string) *CachedSource {
	cp := *c
	cp.path = path
	return &cp
}

func (c *CachedSource) Landmarks(ctx context.Context, data []byte) (types.LandmarkSet, error) {
	id := utils.GenerateImageID(data)

	set, found, err := c.cache.GetLandmarks(ctx, id)
	if err != nil {
		return types.LandmarkSet{}, fmt.Errorf("landmark cache lookup failed: %w", err)
	}
	if found {
		if set == nil {
			return types.LandmarkSet{}, landmarks.ErrNoFace
		}
		return *set, nil
	}

	got, err := c.next.Landmarks(ctx, data)
	switch {
	case errors.Is(err, landmarks.ErrNoFace):
		c.save(ctx, id, nil)
		return types.LandmarkSet{}, err
	case err != nil:
		return types.LandmarkSet{}, err
	}
	c.save(ctx, id, &got)
	return got, nil
}

// save is best effort: a failed write only costs a detector call later.
func (c *CachedSource) save(ctx context.Context, id string, set *types.LandmarkSet) {
	if err := c.cache.SaveLandmarks(ctx, id, c.path, set); err != nil {
		slog.Warn("failed to cache landmarks", "image", id[:12], "err", err)
	}
}
