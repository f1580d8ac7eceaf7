package workers

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/camden-git/facealbums/models"
	"github.com/camden-git/facealbums/services"
)

// ErrStopped is the reason stored on queued jobs that never ran because the
// processor was stopped
var ErrStopped = errors.New("job processor stopped before the job started")

// JobRunner executes a stored processing job, or abandons one that will
// never be executed
type JobRunner interface {
	Execute(ctx context.Context, jobID string, progress services.ProgressFunc) (*models.ProcessingJob, error)
	Abandon(ctx context.Context, jobID string, reason error) error
}

type QueuedJob struct {
	JobID    string
	LeaseKey string
}

// JobProcessor runs queued processing jobs on a fixed pool of workers. A
// lease key is accepted at most once while it is pending or running.
type JobProcessor struct {
	JobQueue chan QueuedJob
	Runner   JobRunner
	OnEvent  services.ProgressFunc
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[string]bool
	Mutex    sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewJobProcessor(runner JobRunner, onEvent services.ProgressFunc, queueSize, numWorkers int) *JobProcessor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	if onEvent == nil {
		onEvent = func(services.JobEvent) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	proc := &JobProcessor{
		JobQueue: make(chan QueuedJob, queueSize),
		Runner:   runner,
		OnEvent:  onEvent,
		StopChan: make(chan struct{}),
		Pending:  make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
	}
	proc.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go proc.worker(i)
	}
	log.Printf("Started %d job worker(s) with queue size %d", numWorkers, queueSize)
	return proc
}

func (jp *JobProcessor) worker(id int) {
	defer jp.Wg.Done()
	log.Printf("Job worker %d started", id)
	for {
		select {
		case job, ok := <-jp.JobQueue:
			if !ok {
				log.Printf("Job worker %d stopping: Job queue closed", id)
				return
			}
			if jp.ctx.Err() != nil {
				jp.abandon(job)
				continue
			}
			log.Printf("Worker %d: Received job %s (%s)", id, job.JobID, job.LeaseKey)
			if _, err := jp.Runner.Execute(jp.ctx, job.JobID, jp.OnEvent); err != nil {
				log.Printf("Worker %d: job %s ended with error: %v", id, job.JobID, err)
			}
			jp.done(job.LeaseKey)

		case <-jp.StopChan:
			log.Printf("Job worker %d stopping: Stop signal received", id)
			return
		}
	}
}

func (jp *JobProcessor) abandon(job QueuedJob) {
	if err := jp.Runner.Abandon(context.Background(), job.JobID, ErrStopped); err != nil {
		log.Printf("Warning: could not abandon job %s: %v", job.JobID, err)
	} else {
		log.Printf("Abandoned queued job %s for: %s", job.JobID, job.LeaseKey)
	}
	jp.done(job.LeaseKey)
}

func (jp *JobProcessor) done(leaseKey string) {
	jp.Mutex.Lock()
	delete(jp.Pending, leaseKey)
	jp.Mutex.Unlock()
}

// IsPending reports whether a job for leaseKey is queued or running
func (jp *JobProcessor) IsPending(leaseKey string) bool {
	jp.Mutex.Lock()
	defer jp.Mutex.Unlock()
	return jp.Pending[leaseKey]
}

// QueueJob queues a job unless one for the same lease key is already pending
// or the queue is full
func (jp *JobProcessor) QueueJob(job QueuedJob) bool {
	jp.Mutex.Lock()
	if jp.Pending[job.LeaseKey] {
		jp.Mutex.Unlock()
		return false
	}
	jp.Pending[job.LeaseKey] = true
	jp.Mutex.Unlock()

	select {
	case jp.JobQueue <- job:
		log.Printf("Queued job %s for: %s", job.JobID, job.LeaseKey)
		return true
	default:
		log.Printf("WARNING: Job queue full. Failed to queue job %s for: %s", job.JobID, job.LeaseKey)
		jp.done(job.LeaseKey)
		return false
	}
}

// Stop cancels running jobs and waits for every worker to exit. Cancelled
// jobs keep their partial progress and are picked up by the next run. Jobs
// still waiting in the queue are abandoned so their stored status is final.
func (jp *JobProcessor) Stop() {
	log.Println("Stopping job workers...")
	jp.cancel()
	close(jp.StopChan)
	jp.Wg.Wait()
	for {
		select {
		case job := <-jp.JobQueue:
			jp.abandon(job)
		default:
			log.Println("All job workers stopped")
			return
		}
	}
}
