package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/camden-git/facealbums/models"
	"gorm.io/gorm"
)

// FaceRepository handles database operations for Face entities
type FaceRepository struct {
	DB *gorm.DB
}

// NewFaceRepository creates a new instance of FaceRepository
func NewFaceRepository(db *gorm.DB) *FaceRepository {
	return &FaceRepository{DB: db}
}

// GetByID retrieves a face by its collection-scoped ID, preloading the
// source image
func (r *FaceRepository) GetByID(ctx context.Context, collectionID, faceID string) (*models.Face, error) {
	var face models.Face
	err := r.DB.WithContext(ctx).Preload("Image").
		Where("collection_id = ? AND id = ?", collectionID, faceID).
		First(&face).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get face %s in collection %s: %w", faceID, collectionID, err)
	}
	return &face, nil
}

// ListByJob retrieves every face created by a processing job, preloading the
// source image of each
func (r *FaceRepository) ListByJob(ctx context.Context, jobID string) ([]models.Face, error) {
	var faces []models.Face
	err := r.DB.WithContext(ctx).Preload("Image").
		Where("job_id = ?", jobID).
		Order("created_at ASC, id ASC").
		Find(&faces).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list faces for job %s: %w", jobID, err)
	}
	return faces, nil
}

// ListWithoutThumbnail retrieves the user's faces that have no thumbnail row yet
func (r *FaceRepository) ListWithoutThumbnail(ctx context.Context, userID, collectionID string) ([]models.Face, error) {
	var faces []models.Face
	err := r.DB.WithContext(ctx).Preload("Image").
		Joins("LEFT JOIN thumbnails ON thumbnails.collection_id = faces.collection_id AND thumbnails.face_id = faces.id").
		Where("faces.user_id = ? AND faces.collection_id = ? AND thumbnails.id IS NULL", userID, collectionID).
		Order("faces.created_at ASC, faces.id ASC").
		Find(&faces).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list faces without thumbnail for user %s: %w", userID, err)
	}
	return faces, nil
}

// CountByUser counts the faces a user has in a collection
func (r *FaceRepository) CountByUser(ctx context.Context, userID, collectionID string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.Face{}).
		Where("user_id = ? AND collection_id = ?", userID, collectionID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count faces for user %s: %w", userID, err)
	}
	return count, nil
}
