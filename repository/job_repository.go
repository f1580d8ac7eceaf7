package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/camden-git/facealbums/models"
	"gorm.io/gorm"
)

// JobRepository handles database operations for ProcessingJob entities
type JobRepository struct {
	DB *gorm.DB
}

// NewJobRepository creates a new instance of JobRepository
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{DB: db}
}

// Create inserts a queued job
func (r *JobRepository) Create(ctx context.Context, job *models.ProcessingJob) error {
	if job.CreatedAt == 0 {
		job.CreatedAt = time.Now().Unix()
	}
	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	if err := r.DB.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create processing job %s: %w", job.ID, err)
	}
	return nil
}

// GetByID retrieves a job by its ID
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get processing job %s: %w", id, err)
	}
	return &job, nil
}

// MarkRunning moves a queued job to running and stamps its start time
func (r *JobRepository) MarkRunning(ctx context.Context, id string) error {
	now := time.Now().Unix()
	result := r.DB.WithContext(ctx).Model(&models.ProcessingJob{}).
		Where("id = ? AND status = ?", id, models.JobStatusQueued).
		Updates(map[string]interface{}{"status": models.JobStatusRunning, "started_at": now})
	if result.Error != nil {
		return fmt.Errorf("failed to mark job %s running: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job %s is not queued", id)
	}
	return nil
}

// SaveProgress writes the counters of a running job
func (r *JobRepository) SaveProgress(ctx context.Context, job *models.ProcessingJob) error {
	err := r.DB.WithContext(ctx).Model(&models.ProcessingJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"pages_processed":    job.PagesProcessed,
			"images_processed":   job.ImagesProcessed,
			"images_clustered":   job.ImagesClustered,
			"faces_created":      job.FacesCreated,
			"albums_created":     job.AlbumsCreated,
			"thumbnails_created": job.ThumbnailsCreated,
			"thumbnails_failed":  job.ThumbnailsFailed,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to save progress for job %s: %w", job.ID, err)
	}
	return nil
}

// Finish records the final status of a job and the error that ended it, if any
func (r *JobRepository) Finish(ctx context.Context, id string, status models.JobStatus, jobErr error) error {
	updates := map[string]interface{}{
		"status":      status,
		"finished_at": time.Now().Unix(),
	}
	if jobErr != nil {
		updates["error"] = jobErr.Error()
	}
	err := r.DB.WithContext(ctx).Model(&models.ProcessingJob{}).Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to finish job %s: %w", id, err)
	}
	return nil
}
