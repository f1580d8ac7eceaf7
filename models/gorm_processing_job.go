package models

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ProcessingJob tracks one clustering run for a (user, folder, collection).
// It corresponds to the 'processing_jobs' table.
type ProcessingJob struct {
	ID           string    `gorm:"primaryKey;size:36" json:"job_id"`
	UserID       string    `gorm:"not null;size:36;index" json:"user_id"`
	FolderID     string    `gorm:"not null;size:36" json:"folder_id"`
	CollectionID string    `gorm:"not null;size:255" json:"collection_id"`
	Status       JobStatus `gorm:"not null;size:16;default:queued" json:"status"`

	PagesProcessed    int `gorm:"not null;default:0" json:"pages_processed"`
	ImagesProcessed   int `gorm:"not null;default:0" json:"images_processed"`
	ImagesClustered   int `gorm:"not null;default:0" json:"images_clustered"`
	FacesCreated      int `gorm:"not null;default:0" json:"faces_created"`
	AlbumsCreated     int `gorm:"not null;default:0" json:"albums_created"`
	ThumbnailsCreated int `gorm:"not null;default:0" json:"thumbnails_created"`
	ThumbnailsFailed  int `gorm:"not null;default:0" json:"thumbnails_failed"`

	Error      *string `json:"error,omitempty"` // Nullable
	CreatedAt  int64   `gorm:"not null" json:"created_at"`
	StartedAt  *int64  `json:"started_at,omitempty"`  // Nullable, Unix timestamp
	FinishedAt *int64  `json:"finished_at,omitempty"` // Nullable, Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (ProcessingJob) TableName() string {
	return "processing_jobs"
}

// IsFinished reports whether the job reached a final state.
func (j *ProcessingJob) IsFinished() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}
