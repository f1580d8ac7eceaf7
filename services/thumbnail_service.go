package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/camden-git/facealbums/media"
	"github.com/camden-git/facealbums/models"
	"github.com/camden-git/facealbums/repository"
)

// ThumbnailStats counts the outcome of a thumbnail pass
type ThumbnailStats struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ThumbnailService derives one thumbnail per discovered face
type ThumbnailService struct {
	processor  *media.Processor
	faces      repository.FaceRepositoryInterface
	images     repository.ImageRepositoryInterface
	thumbnails repository.ThumbnailRepositoryInterface
	workers    int
}

// NewThumbnailService creates a new thumbnail service
func NewThumbnailService(
	processor *media.Processor,
	faces repository.FaceRepositoryInterface,
	images repository.ImageRepositoryInterface,
	thumbnails repository.ThumbnailRepositoryInterface,
	workers int,
) *ThumbnailService {
	return &ThumbnailService{
		processor:  processor,
		faces:      faces,
		images:     images,
		thumbnails: thumbnails,
		workers:    max(1, workers),
	}
}

// DeriveForFaces builds thumbnails for faces that have none. A failure for
// one face is logged and counted and does not affect the others.
func (s *ThumbnailService) DeriveForFaces(ctx context.Context, userID string, faces []models.Face) ThumbnailStats {
	var (
		mu    sync.Mutex
		stats ThumbnailStats
	)
	count := func(field *int) {
		mu.Lock()
		*field++
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, face := range faces {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			created, err := s.deriveOne(ctx, userID, face)
			switch {
			case err != nil:
				log.Printf("thumbnail: face %s failed: %v", face.ID, err)
				count(&stats.Failed)
			case created:
				count(&stats.Created)
			default:
				count(&stats.Skipped)
			}
			return nil
		})
	}
	g.Wait()

	log.Printf("thumbnail: user %s created=%d skipped=%d failed=%d", userID, stats.Created, stats.Skipped, stats.Failed)
	return stats
}

// DeriveMissing builds thumbnails for every face of the user lacking one
func (s *ThumbnailService) DeriveMissing(ctx context.Context, userID, namespace string) (ThumbnailStats, error) {
	faces, err := s.faces.ListWithoutThumbnail(ctx, userID, namespace)
	if err != nil {
		return ThumbnailStats{}, err
	}
	return s.DeriveForFaces(ctx, userID, faces), nil
}

func (s *ThumbnailService) deriveOne(ctx context.Context, userID string, face models.Face) (bool, error) {
	exists, err := s.thumbnails.ExistsForFace(ctx, face.CollectionID, face.ID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	source := face.Image
	if source == nil {
		source, err = s.images.GetByID(ctx, face.ImageID)
		if err != nil {
			return false, fmt.Errorf("failed to load source image %s: %w", face.ImageID, err)
		}
	}

	thumbnailID := uuid.NewString()
	key := media.ThumbnailKey(userID, thumbnailID)
	if err := s.processor.DeriveThumbnail(ctx, source.StorageKey, key); err != nil {
		return false, err
	}

	err = s.thumbnails.Upsert(ctx, &models.Thumbnail{
		ID:           thumbnailID,
		FaceID:       face.ID,
		CollectionID: face.CollectionID,
		StorageKey:   key,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
