package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/camden-git/facealbums/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// APIResponseRepository stores raw recognition responses
type APIResponseRepository struct {
	DB *gorm.DB
}

// NewAPIResponseRepository creates a new instance of APIResponseRepository
func NewAPIResponseRepository(db *gorm.DB) *APIResponseRepository {
	return &APIResponseRepository{DB: db}
}

// Create appends one raw response row
func (r *APIResponseRepository) Create(ctx context.Context, userID, imageID string, responseType models.APIResponseType, raw []byte) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	row := models.APIResponse{
		UserID:    userID,
		ImageID:   imageID,
		Type:      responseType,
		Response:  datatypes.JSON(raw),
		CreatedAt: time.Now().Unix(),
	}
	if err := r.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to store %s response for image %s: %w", responseType, imageID, err)
	}
	return nil
}

// ListByImage returns the stored responses for an image, oldest first
func (r *APIResponseRepository) ListByImage(ctx context.Context, userID, imageID string) ([]models.APIResponse, error) {
	var rows []models.APIResponse
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND image_id = ?", userID, imageID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list responses for image %s: %w", imageID, err)
	}
	return rows, nil
}
