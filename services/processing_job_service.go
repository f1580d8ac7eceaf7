package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/camden-git/facealbums/database"
	"github.com/camden-git/facealbums/models"
	"github.com/camden-git/facealbums/repository"
)

const defaultPageSize = 50

var (
	// ErrInvalidJobRequest is returned when a job request lacks a user,
	// folder or namespace
	ErrInvalidJobRequest = errors.New("invalid job request")
	// ErrJobAlreadyRunning is returned when another job holds the lease for
	// the same user, folder and namespace
	ErrJobAlreadyRunning = errors.New("a processing job is already running for this folder")
)

// pageStatuses are the statuses a page selects: fresh uploads to gate and
// images gated by an earlier run that still need clustering
var pageStatuses = []models.ImageStatus{models.StatusUploadedToS3, models.StatusFacesDetected}

// JobRequest asks for one folder of a user to be clustered into a namespace
type JobRequest struct {
	UserID    string `json:"user_id"`
	FolderID  string `json:"folder_id"`
	Namespace string `json:"collection_id"`
}

// Validate checks that every field is present
func (r JobRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.UserID) == "" {
		missing = append(missing, "user_id")
	}
	if strings.TrimSpace(r.FolderID) == "" {
		missing = append(missing, "folder_id")
	}
	if strings.TrimSpace(r.Namespace) == "" {
		missing = append(missing, "collection_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidJobRequest, strings.Join(missing, ", "))
	}
	return nil
}

// LeaseKey identifies the single-flight scope of the request
func (r JobRequest) LeaseKey() string {
	return r.UserID + ":" + r.FolderID + ":" + r.Namespace
}

// Cursor is the position of a job within its folder
type Cursor struct {
	AfterID  string
	PageSize int
}

// Pager fetches one keyset page of images
type Pager interface {
	ListPage(ctx context.Context, filter repository.ImageFilter, afterID string, limit int) ([]models.Image, error)
}

// NextPage fetches the page at cursor and returns the cursor that follows it.
// The result depends only on filter, cursor and the stored images.
func NextPage(ctx context.Context, pager Pager, filter repository.ImageFilter, cursor Cursor) ([]models.Image, Cursor, error) {
	if cursor.PageSize <= 0 {
		cursor.PageSize = defaultPageSize
	}
	images, err := pager.ListPage(ctx, filter, cursor.AfterID, cursor.PageSize)
	if err != nil {
		return nil, cursor, err
	}
	next := cursor
	if len(images) > 0 {
		next.AfterID = images[len(images)-1].ID
	}
	return images, next, nil
}

// Leaser grants single-flight leases
type Leaser interface {
	Acquire(key, holder string) error
	Renew(key, holder string) error
	Release(key, holder string) error
}

// Event types reported through a ProgressFunc
const (
	EventJobStarted     = "job_started"
	EventPageProcessed  = "page_processed"
	EventThumbnailsDone = "thumbnails_done"
	EventJobFinished    = "job_finished"
)

// JobEvent reports the progress of a running job
type JobEvent struct {
	Type       string               `json:"type"`
	Page       int                  `json:"page,omitempty"`
	PageImages int                  `json:"page_images,omitempty"`
	Job        models.ProcessingJob `json:"job"`
}

// ProgressFunc receives job events. It is called from the job goroutine and
// must not block.
type ProgressFunc func(JobEvent)

// ProcessingJobService drives a clustering job page by page
type ProcessingJobService struct {
	pager      Pager
	jobs       repository.JobRepositoryInterface
	gate       *QualityGate
	engine     *ClusteringEngine
	albums     *AlbumService
	thumbnails *ThumbnailService
	leases     Leaser
	pageSize   int
	gateLimit  int
}

// NewProcessingJobService creates a new processing job service
func NewProcessingJobService(
	pager Pager,
	jobs repository.JobRepositoryInterface,
	gate *QualityGate,
	engine *ClusteringEngine,
	albums *AlbumService,
	thumbnails *ThumbnailService,
	leases Leaser,
	pageSize int,
	concurrency int,
) *ProcessingJobService {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &ProcessingJobService{
		pager:      pager,
		jobs:       jobs,
		gate:       gate,
		engine:     engine,
		albums:     albums,
		thumbnails: thumbnails,
		leases:     leases,
		pageSize:   pageSize,
		gateLimit:  max(1, concurrency),
	}
}

// Submit validates req and stores it as a queued job
func (s *ProcessingJobService) Submit(ctx context.Context, req JobRequest) (*models.ProcessingJob, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	job := &models.ProcessingJob{
		ID:           uuid.NewString(),
		UserID:       req.UserID,
		FolderID:     req.FolderID,
		CollectionID: req.Namespace,
		Status:       models.JobStatusQueued,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Run submits req and executes it synchronously
func (s *ProcessingJobService) Run(ctx context.Context, req JobRequest, progress ProgressFunc) (*models.ProcessingJob, error) {
	job, err := s.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, job.ID, progress)
}

// Execute runs a queued job to completion. The job's final status is
// stored whether it succeeds, fails or is cancelled.
func (s *ProcessingJobService) Execute(ctx context.Context, jobID string, progress ProgressFunc) (*models.ProcessingJob, error) {
	if progress == nil {
		progress = func(JobEvent) {}
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobStatusQueued {
		return job, fmt.Errorf("job %s is %s, not queued", job.ID, job.Status)
	}
	req := JobRequest{UserID: job.UserID, FolderID: job.FolderID, Namespace: job.CollectionID}

	if err := s.leases.Acquire(req.LeaseKey(), job.ID); err != nil {
		if errors.Is(err, database.ErrLeaseHeld) {
			err = ErrJobAlreadyRunning
		}
		return s.finish(job, err, progress)
	}
	defer func() {
		if err := s.leases.Release(req.LeaseKey(), job.ID); err != nil {
			log.Printf("job: %s could not release lease: %v", job.ID, err)
		}
	}()

	if err := s.jobs.MarkRunning(ctx, job.ID); err != nil {
		return s.finish(job, err, progress)
	}
	job.Status = models.JobStatusRunning
	log.Printf("job: %s started for user %s folder %s", job.ID, job.UserID, job.FolderID)
	progress(JobEvent{Type: EventJobStarted, Job: *job})

	runErr := s.runPages(ctx, job, req, progress)
	if runErr == nil {
		runErr = s.deriveThumbnails(ctx, job, progress)
	}
	return s.finish(job, runErr, progress)
}

func (s *ProcessingJobService) runPages(ctx context.Context, job *models.ProcessingJob, req JobRequest, progress ProgressFunc) error {
	filter := repository.ImageFilter{UserID: req.UserID, FolderID: req.FolderID, Statuses: pageStatuses}
	cursor := Cursor{PageSize: s.pageSize}

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		images, next, err := NextPage(ctx, s.pager, filter, cursor)
		if err != nil {
			return fmt.Errorf("failed to fetch page %d: %w", page, err)
		}
		if len(images) == 0 {
			return nil
		}

		if err := s.processPage(ctx, job, req, images); err != nil {
			return err
		}
		job.PagesProcessed++
		job.ImagesProcessed += len(images)
		if err := s.jobs.SaveProgress(ctx, job); err != nil {
			log.Printf("job: %s could not save progress: %v", job.ID, err)
		}
		if err := s.leases.Renew(req.LeaseKey(), job.ID); err != nil {
			return fmt.Errorf("lost job lease: %w", err)
		}
		progress(JobEvent{Type: EventPageProcessed, Page: page, PageImages: len(images), Job: *job})
		cursor = next
	}
}

// processPage gates every fresh image of the page, clusters the survivors
// together with images gated by an earlier run, then stores the albums
func (s *ProcessingJobService) processPage(ctx context.Context, job *models.ProcessingJob, req JobRequest, images []models.Image) error {
	var (
		mu        sync.Mutex
		survivors []models.Image
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.gateLimit)
	for _, image := range images {
		if image.Status == models.StatusFacesDetected {
			mu.Lock()
			survivors = append(survivors, image)
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			verdict, err := s.gate.Evaluate(gctx, req.UserID, image)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Printf("job: %s quality gate skipped image %s: %v", job.ID, image.ID, err)
				return nil
			}
			if verdict.Passed() {
				mu.Lock()
				image.Status = models.StatusFacesDetected
				survivors = append(survivors, image)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	faceImages, stats, clusterErr := s.engine.ClusterPage(ctx, req.UserID, req.Namespace, job.ID, survivors)
	job.ImagesClustered += stats.Matched + stats.Indexed
	job.FacesCreated += stats.NewFaces

	// albums for work already done are kept even when the page was cut short
	albums, err := s.albums.Materialize(context.WithoutCancel(ctx), req.UserID, req.Namespace, job.ID, faceImages)
	if err != nil {
		return err
	}
	job.AlbumsCreated += len(albums)
	return clusterErr
}

// deriveThumbnails covers every face of the user in the collection that has
// no thumbnail, so faces left behind by earlier runs are retried too
func (s *ProcessingJobService) deriveThumbnails(ctx context.Context, job *models.ProcessingJob, progress ProgressFunc) error {
	stats, err := s.thumbnails.DeriveMissing(ctx, job.UserID, job.CollectionID)
	if err != nil {
		return err
	}
	job.ThumbnailsCreated += stats.Created
	job.ThumbnailsFailed += stats.Failed
	if err := s.jobs.SaveProgress(ctx, job); err != nil {
		log.Printf("job: %s could not save progress: %v", job.ID, err)
	}
	progress(JobEvent{Type: EventThumbnailsDone, Job: *job})
	return ctx.Err()
}

func (s *ProcessingJobService) finish(job *models.ProcessingJob, runErr error, progress ProgressFunc) (*models.ProcessingJob, error) {
	status := models.JobStatusCompleted
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status = models.JobStatusCancelled
	case runErr != nil:
		status = models.JobStatusFailed
	}

	// written even when the caller's context is done
	ctx := context.Background()
	if err := s.jobs.SaveProgress(ctx, job); err != nil {
		log.Printf("job: %s could not save progress: %v", job.ID, err)
	}
	if err := s.jobs.Finish(ctx, job.ID, status, runErr); err != nil {
		log.Printf("job: %s could not store final status: %v", job.ID, err)
	}
	job.Status = status
	if runErr != nil {
		msg := runErr.Error()
		job.Error = &msg
	}

	log.Printf("job: %s %s (pages=%d images=%d clustered=%d faces=%d albums=%d thumbnails=%d/%d)",
		job.ID, status, job.PagesProcessed, job.ImagesProcessed, job.ImagesClustered,
		job.FacesCreated, job.AlbumsCreated, job.ThumbnailsCreated, job.ThumbnailsCreated+job.ThumbnailsFailed)
	progress(JobEvent{Type: EventJobFinished, Job: *job})
	return job, runErr
}

// GetJob returns the stored state of a job
func (s *ProcessingJobService) GetJob(ctx context.Context, jobID string) (*models.ProcessingJob, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// Abandon marks a stored job that will never be executed as failed
func (s *ProcessingJobService) Abandon(ctx context.Context, jobID string, reason error) error {
	return s.jobs.Finish(ctx, jobID, models.JobStatusFailed, reason)
}
