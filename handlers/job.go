package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/facealbums/models"
	"github.com/camden-git/facealbums/services"
	"github.com/camden-git/facealbums/workers"
)

var errQueueFull = errors.New("job queue is full")

// JobService is the part of services.ProcessingJobService the handlers use
type JobService interface {
	Submit(ctx context.Context, req services.JobRequest) (*models.ProcessingJob, error)
	Run(ctx context.Context, req services.JobRequest, progress services.ProgressFunc) (*models.ProcessingJob, error)
	GetJob(ctx context.Context, jobID string) (*models.ProcessingJob, error)
	Abandon(ctx context.Context, jobID string, reason error) error
}

// JobQueue accepts jobs for asynchronous execution
type JobQueue interface {
	QueueJob(job workers.QueuedJob) bool
	IsPending(leaseKey string) bool
}

type JobHandler struct {
	Jobs    JobService
	Queue   JobQueue
	OnEvent services.ProgressFunc
}

func decodeJobRequest(r *http.Request) (services.JobRequest, error) {
	var req services.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, errors.Join(services.ErrInvalidJobRequest, err)
	}
	return req, req.Validate()
}

// CreateJob stores a job and hands it to the worker queue
func (jh *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJobRequest(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if jh.Queue.IsPending(req.LeaseKey()) {
		writeServiceError(w, services.ErrJobAlreadyRunning)
		return
	}

	job, err := jh.Jobs.Submit(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if !jh.Queue.QueueJob(workers.QueuedJob{JobID: job.ID, LeaseKey: req.LeaseKey()}) {
		reason := services.ErrJobAlreadyRunning
		status, code := http.StatusConflict, "job_already_running"
		if !jh.Queue.IsPending(req.LeaseKey()) {
			reason = errQueueFull
			status, code = http.StatusServiceUnavailable, "queue_full"
		}
		if err := jh.Jobs.Abandon(context.WithoutCancel(r.Context()), job.ID, reason); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteAPIError(w, status, code, reason.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}

// GetJob returns the stored state of a job
func (jh *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := jh.Jobs.GetJob(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ProcessImages runs a job to completion within the request
func (jh *JobHandler) ProcessImages(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJobRequest(r)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if _, err := jh.Jobs.Run(r.Context(), req, jh.OnEvent); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Image processing job completed"})
}
