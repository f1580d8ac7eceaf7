package services

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/facette/natsort"
	"github.com/google/uuid"

	"github.com/camden-git/facealbums/models"
	"github.com/camden-git/facealbums/repository"
)

// AlbumService materializes identity clusters as albums
type AlbumService struct {
	albums repository.AlbumRepositoryInterface
}

// NewAlbumService creates a new album service
func NewAlbumService(albums repository.AlbumRepositoryInterface) *AlbumService {
	return &AlbumService{albums: albums}
}

// Materialize inserts one album row per face in m, ordered by face ID. An
// empty map inserts nothing.
func (s *AlbumService) Materialize(ctx context.Context, userID, namespace, jobID string, m FaceImageMap) ([]models.Album, error) {
	if len(m) == 0 {
		return nil, nil
	}

	faceIDs := make([]string, 0, len(m))
	for faceID := range m {
		faceIDs = append(faceIDs, faceID)
	}
	sort.Strings(faceIDs)

	var job *string
	if jobID != "" {
		job = &jobID
	}
	albums := make([]models.Album, 0, len(faceIDs))
	for _, faceID := range faceIDs {
		imageIDs := append([]string{}, m[faceID]...)
		natsort.Sort(imageIDs)
		albums = append(albums, models.Album{
			ID:           uuid.NewString(),
			UserID:       userID,
			CollectionID: namespace,
			FaceID:       faceID,
			ImageIDs:     imageIDs,
			JobID:        job,
		})
	}

	if err := s.albums.CreateBatch(ctx, albums); err != nil {
		return nil, fmt.Errorf("failed to materialize albums: %w", err)
	}
	log.Printf("album: created %d album row(s) for user %s", len(albums), userID)
	return albums, nil
}

// ListFolded returns one album per identity with all of its images
func (s *AlbumService) ListFolded(ctx context.Context, userID, namespace string) ([]models.FoldedAlbum, error) {
	return s.albums.ListFolded(ctx, userID, namespace)
}
