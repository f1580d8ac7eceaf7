package services

import (
	"context"
	"fmt"

	"github.com/camden-git/facealbums/media"
	"github.com/camden-git/facealbums/models"
	"github.com/camden-git/facealbums/recognition"
)

// ImageSource resolves what the oracle is given for a stored image. With an
// S3 backend the oracle reads the object itself; any other backend has the
// bytes loaded and sent inline.
type ImageSource struct {
	store  media.Store
	inline bool
}

// NewImageSource returns a resolver reading from store when inline is set
func NewImageSource(store media.Store, inline bool) *ImageSource {
	return &ImageSource{store: store, inline: inline}
}

// Resolve returns the oracle input for image
func (s *ImageSource) Resolve(ctx context.Context, image models.Image) (recognition.Image, error) {
	img := recognition.Image{Key: image.StorageKey}
	if s == nil || !s.inline || s.store == nil {
		return img, nil
	}
	data, err := s.store.Get(ctx, image.StorageKey)
	if err != nil {
		return img, fmt.Errorf("failed to load image %s: %w", image.ID, err)
	}
	img.Bytes = data
	return img, nil
}
