package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/camden-git/facealbums/models"
	"github.com/facette/natsort"
	"gorm.io/gorm"
)

// AlbumRepository handles database operations for Album entities
type AlbumRepository struct {
	DB *gorm.DB
}

// NewAlbumRepository creates a new instance of AlbumRepository
func NewAlbumRepository(db *gorm.DB) *AlbumRepository {
	return &AlbumRepository{DB: db}
}

// CreateBatch inserts album rows in one statement. Rows are append-only;
// an existing face gets an additional row rather than an update.
func (r *AlbumRepository) CreateBatch(ctx context.Context, albums []models.Album) error {
	if len(albums) == 0 {
		return nil
	}
	now := time.Now().Unix()
	for i := range albums {
		if albums[i].CreatedAt == 0 {
			albums[i].CreatedAt = now
		}
	}

	if err := r.DB.WithContext(ctx).Create(&albums).Error; err != nil {
		return fmt.Errorf("failed to create %d albums: %w", len(albums), err)
	}
	return nil
}

// ListByUser retrieves the raw album rows for a user and collection
func (r *AlbumRepository) ListByUser(ctx context.Context, userID, collectionID string) ([]models.Album, error) {
	var albums []models.Album
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND collection_id = ?", userID, collectionID).
		Order("created_at ASC, id ASC").
		Find(&albums).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list albums for user %s: %w", userID, err)
	}
	return albums, nil
}

// ListFolded returns one entry per face with the union of its album rows,
// joined with the face thumbnail when one exists
func (r *AlbumRepository) ListFolded(ctx context.Context, userID, collectionID string) ([]models.FoldedAlbum, error) {
	albums, err := r.ListByUser(ctx, userID, collectionID)
	if err != nil {
		return nil, err
	}
	folded := FoldAlbums(albums)
	if len(folded) == 0 {
		return folded, nil
	}

	faceIDs := make([]string, 0, len(folded))
	for _, f := range folded {
		faceIDs = append(faceIDs, f.FaceID)
	}
	var thumbs []models.Thumbnail
	err = r.DB.WithContext(ctx).
		Where("collection_id = ? AND face_id IN ?", collectionID, faceIDs).
		Find(&thumbs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load thumbnails for folded albums: %w", err)
	}

	keys := make(map[string]string, len(thumbs))
	for _, t := range thumbs {
		keys[t.FaceID] = t.StorageKey
	}
	for i := range folded {
		if key, ok := keys[folded[i].FaceID]; ok {
			k := key
			folded[i].ThumbnailKey = &k
		}
	}
	return folded, nil
}

// CountByUser counts raw album rows for a user and collection
func (r *AlbumRepository) CountByUser(ctx context.Context, userID, collectionID string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.Album{}).
		Where("user_id = ? AND collection_id = ?", userID, collectionID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count albums for user %s: %w", userID, err)
	}
	return count, nil
}

// FoldAlbums merges rows sharing a (collection, face) pair. Image IDs are
// deduplicated and naturally sorted; folded albums are ordered by face ID.
func FoldAlbums(albums []models.Album) []models.FoldedAlbum {
	type key struct{ collection, face string }
	index := make(map[key]int)
	seen := make(map[key]map[string]struct{})
	var folded []models.FoldedAlbum

	for _, a := range albums {
		k := key{a.CollectionID, a.FaceID}
		i, ok := index[k]
		if !ok {
			i = len(folded)
			index[k] = i
			seen[k] = make(map[string]struct{})
			folded = append(folded, models.FoldedAlbum{
				CollectionID: a.CollectionID,
				FaceID:       a.FaceID,
				ImageIDs:     []string{},
			})
		}
		folded[i].AlbumIDs = append(folded[i].AlbumIDs, a.ID)
		for _, imageID := range a.ImageIDs {
			if _, dup := seen[k][imageID]; dup {
				continue
			}
			seen[k][imageID] = struct{}{}
			folded[i].ImageIDs = append(folded[i].ImageIDs, imageID)
		}
	}

	for i := range folded {
		natsort.Sort(folded[i].ImageIDs)
	}
	sort.SliceStable(folded, func(i, j int) bool {
		return natsort.Compare(folded[i].FaceID, folded[j].FaceID)
	})
	if folded == nil {
		folded = []models.FoldedAlbum{}
	}
	return folded
}
