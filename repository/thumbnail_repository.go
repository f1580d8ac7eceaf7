package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/camden-git/facealbums/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ThumbnailRepository handles database operations for Thumbnail entities
type ThumbnailRepository struct {
	DB *gorm.DB
}

// NewThumbnailRepository creates a new instance of ThumbnailRepository
func NewThumbnailRepository(db *gorm.DB) *ThumbnailRepository {
	return &ThumbnailRepository{DB: db}
}

// ExistsForFace reports whether a thumbnail row exists for the face
func (r *ThumbnailRepository) ExistsForFace(ctx context.Context, collectionID, faceID string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.Thumbnail{}).
		Where("collection_id = ? AND face_id = ?", collectionID, faceID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check thumbnail for face %s: %w", faceID, err)
	}
	return count > 0, nil
}

// Upsert records the storage key of a face thumbnail, replacing the key of
// any earlier row for the same face
func (r *ThumbnailRepository) Upsert(ctx context.Context, thumbnail *models.Thumbnail) error {
	now := time.Now().Unix()
	if thumbnail.ID == "" {
		thumbnail.ID = uuid.NewString()
	}
	if thumbnail.CreatedAt == 0 {
		thumbnail.CreatedAt = now
	}
	thumbnail.UpdatedAt = now

	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection_id"}, {Name: "face_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"storage_key", "updated_at"}),
	}).Create(thumbnail).Error
	if err != nil {
		return fmt.Errorf("failed to upsert thumbnail for face %s: %w", thumbnail.FaceID, err)
	}
	return nil
}

// GetByFace retrieves the thumbnail row for a face
func (r *ThumbnailRepository) GetByFace(ctx context.Context, collectionID, faceID string) (*models.Thumbnail, error) {
	var thumbnail models.Thumbnail
	err := r.DB.WithContext(ctx).
		Where("collection_id = ? AND face_id = ?", collectionID, faceID).
		First(&thumbnail).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get thumbnail for face %s: %w", faceID, err)
	}
	return &thumbnail, nil
}
