package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/camden-git/facealbums/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStatusConflict is returned when an image is not in the status a
// transition expects, so the write was refused rather than regressing it.
var ErrStatusConflict = errors.New("image status does not allow this transition")

// ImageRepository handles database operations for Image entities
type ImageRepository struct {
	DB *gorm.DB
}

// NewImageRepository creates a new instance of ImageRepository
func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{DB: db}
}

// Create inserts an image record. Upload confirmation owns this in
// production; the pipeline only reads and advances existing rows.
func (r *ImageRepository) Create(ctx context.Context, image *models.Image) error {
	now := time.Now().Unix()
	if image.CreatedAt == 0 {
		image.CreatedAt = now
	}
	image.UpdatedAt = now
	if image.Status == "" {
		image.Status = models.StatusUploadedToS3
	}

	if err := r.DB.WithContext(ctx).Create(image).Error; err != nil {
		return fmt.Errorf("failed to create image %s: %w", image.ID, err)
	}
	return nil
}

// GetByID retrieves an image by its ID
func (r *ImageRepository) GetByID(ctx context.Context, id string) (*models.Image, error) {
	var image models.Image
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&image).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get image by ID %s: %w", id, err)
	}
	return &image, nil
}

// ListPage returns up to limit images matching filter whose ID sorts after
// afterID. Ordering by primary key keeps the cursor stable while earlier
// rows leave the filter.
func (r *ImageRepository) ListPage(ctx context.Context, filter ImageFilter, afterID string, limit int) ([]models.Image, error) {
	var images []models.Image
	q := r.DB.WithContext(ctx).
		Select("id", "user_id", "folder_id", "file_name", "storage_key", "status").
		Where("user_id = ? AND status IN ?", filter.UserID, filter.Statuses)
	if filter.FolderID != "" {
		q = q.Where("folder_id = ?", filter.FolderID)
	}
	if afterID != "" {
		q = q.Where("id > ?", afterID)
	}

	err := q.Order("id ASC").Limit(limit).Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list image page for user %s folder %s: %w", filter.UserID, filter.FolderID, err)
	}
	return images, nil
}

// advance moves an image from one status to the next, applying updates in
// the same statement. It refuses to touch rows in any other status.
func advance(tx *gorm.DB, id string, from, to models.ImageStatus, updates map[string]interface{}) error {
	if !from.CanAdvanceTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrStatusConflict, from, to)
	}
	updates["status"] = to
	updates["updated_at"] = time.Now().Unix()

	result := tx.Model(&models.Image{}).Where("id = ? AND status = ?", id, from).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to advance image %s to %s: %w", id, to, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: image %s is not %s", ErrStatusConflict, id, from)
	}
	return nil
}

// RecordDetection stores the quality gate verdict and advances the image out
// of UPLOADED_TO_S3
func (r *ImageRepository) RecordDetection(ctx context.Context, id string, update DetectionUpdate) error {
	updates := map[string]interface{}{
		"faces_detected":       update.FacesDetected,
		"faces_detected_count": update.FacesDetectedCount,
		"image_quality_ok":     update.ImageQualityOK,
	}
	return advance(r.DB.WithContext(ctx), id, models.StatusUploadedToS3, update.Next, updates)
}

// RecordMatch marks an image as belonging to an existing cluster
func (r *ImageRepository) RecordMatch(ctx context.Context, id string, update MatchUpdate) error {
	updates := map[string]interface{}{
		"matched_face_ids":       datatypes.JSONSlice[string](update.MatchedFaceIDs),
		"faces_matched_count":    len(update.MatchedFaceIDs),
		"skipped_faces_indexing": true,
	}
	if len(update.SearchResponse) > 0 {
		updates["search_faces_response"] = datatypes.JSON(update.SearchResponse)
	}
	return advance(r.DB.WithContext(ctx), id, models.StatusFacesDetected, models.StatusFacesMatched, updates)
}

// RecordIndex persists newly indexed faces and marks the image indexed in a
// single transaction
func (r *ImageRepository) RecordIndex(ctx context.Context, id string, update IndexUpdate) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(update.Faces) > 0 {
			createdAt := time.Now().Unix() // all faces in this batch get same timestamp
			for i := range update.Faces {
				update.Faces[i].ImageID = id
				if update.Faces[i].CreatedAt == 0 {
					update.Faces[i].CreatedAt = createdAt
				}
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&update.Faces).Error; err != nil {
				return fmt.Errorf("failed to add indexed faces for image %s: %w", id, err)
			}
		}

		reasons := update.FailedReasons
		if reasons == nil {
			reasons = []string{}
		}
		updates := map[string]interface{}{
			"faces_indexed_count":           len(update.Faces),
			"faces_indexing_failed_count":   len(update.FailedReasons),
			"faces_indexing_failed_reasons": datatypes.JSONSlice[string](reasons),
			"skipped_faces_indexing":        false,
		}
		if len(update.SearchResponse) > 0 {
			updates["search_faces_response"] = datatypes.JSON(update.SearchResponse)
		}
		if len(update.IndexResponse) > 0 {
			updates["index_faces_response"] = datatypes.JSON(update.IndexResponse)
		}
		return advance(tx, id, models.StatusFacesDetected, models.StatusFacesIndexed, updates)
	})
}

// RecordClusterFailure appends a failure reason without changing status
func (r *ImageRepository) RecordClusterFailure(ctx context.Context, id string, reason string) error {
	image, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	reasons := append([]string{}, image.FacesIndexingFailedReasons...)
	reasons = append(reasons, reason)
	updates := map[string]interface{}{
		"faces_indexing_failed_count":   image.FacesIndexingFailedCount + 1,
		"faces_indexing_failed_reasons": datatypes.JSONSlice[string](reasons),
		"updated_at":                    time.Now().Unix(),
	}

	result := r.DB.WithContext(ctx).Model(&models.Image{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to record cluster failure for image %s: %w", id, result.Error)
	}
	return nil
}

// CountByStatus returns the number of images per status for a folder
func (r *ImageRepository) CountByStatus(ctx context.Context, userID, folderID string) (map[models.ImageStatus]int64, error) {
	var rows []struct {
		Status models.ImageStatus
		Count  int64
	}
	q := r.DB.WithContext(ctx).Model(&models.Image{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ?", userID)
	if folderID != "" {
		q = q.Where("folder_id = ?", folderID)
	}
	if err := q.Group("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count images by status for user %s: %w", userID, err)
	}

	counts := make(map[models.ImageStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
