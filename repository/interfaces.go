package repository

import (
	"context"

	"github.com/camden-git/facealbums/models"
)

// ImageFilter selects the images eligible for one processing page
type ImageFilter struct {
	UserID   string
	FolderID string
	Statuses []models.ImageStatus
}

// DetectionUpdate carries the quality gate verdict for one image
type DetectionUpdate struct {
	Next               models.ImageStatus
	FacesDetected      bool
	FacesDetectedCount int
	ImageQualityOK     bool
}

// MatchUpdate records an image assigned to an existing cluster
type MatchUpdate struct {
	MatchedFaceIDs []string
	SearchResponse []byte
}

// IndexUpdate records an image that seeded new clusters
type IndexUpdate struct {
	Faces          []models.Face
	FailedReasons  []string
	SearchResponse []byte
	IndexResponse  []byte
}

// ImageRepositoryInterface defines the methods for image data operations
type ImageRepositoryInterface interface {
	Create(ctx context.Context, image *models.Image) error
	GetByID(ctx context.Context, id string) (*models.Image, error)
	ListPage(ctx context.Context, filter ImageFilter, afterID string, limit int) ([]models.Image, error)
	RecordDetection(ctx context.Context, id string, update DetectionUpdate) error
	RecordMatch(ctx context.Context, id string, update MatchUpdate) error
	RecordIndex(ctx context.Context, id string, update IndexUpdate) error
	RecordClusterFailure(ctx context.Context, id string, reason string) error
	CountByStatus(ctx context.Context, userID, folderID string) (map[models.ImageStatus]int64, error)
}

// FaceRepositoryInterface defines the methods for face data operations
type FaceRepositoryInterface interface {
	GetByID(ctx context.Context, collectionID, faceID string) (*models.Face, error)
	ListByJob(ctx context.Context, jobID string) ([]models.Face, error)
	ListWithoutThumbnail(ctx context.Context, userID, collectionID string) ([]models.Face, error)
	CountByUser(ctx context.Context, userID, collectionID string) (int64, error)
}

// AlbumRepositoryInterface defines the methods for album data operations
type AlbumRepositoryInterface interface {
	CreateBatch(ctx context.Context, albums []models.Album) error
	ListByUser(ctx context.Context, userID, collectionID string) ([]models.Album, error)
	ListFolded(ctx context.Context, userID, collectionID string) ([]models.FoldedAlbum, error)
	CountByUser(ctx context.Context, userID, collectionID string) (int64, error)
}

// ThumbnailRepositoryInterface defines the methods for thumbnail data operations
type ThumbnailRepositoryInterface interface {
	ExistsForFace(ctx context.Context, collectionID, faceID string) (bool, error)
	Upsert(ctx context.Context, thumbnail *models.Thumbnail) error
	GetByFace(ctx context.Context, collectionID, faceID string) (*models.Thumbnail, error)
}

// APIResponseRepositoryInterface defines the methods for raw response audit rows
type APIResponseRepositoryInterface interface {
	Create(ctx context.Context, userID, imageID string, responseType models.APIResponseType, raw []byte) error
	ListByImage(ctx context.Context, userID, imageID string) ([]models.APIResponse, error)
}

// JobRepositoryInterface defines the methods for processing job state
type JobRepositoryInterface interface {
	Create(ctx context.Context, job *models.ProcessingJob) error
	GetByID(ctx context.Context, id string) (*models.ProcessingJob, error)
	MarkRunning(ctx context.Context, id string) error
	SaveProgress(ctx context.Context, job *models.ProcessingJob) error
	Finish(ctx context.Context, id string, status models.JobStatus, jobErr error) error
}
