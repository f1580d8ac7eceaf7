package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/facealbums/models"
	"github.com/camden-git/facealbums/services"
)

type blockingRunner struct {
	mu      sync.Mutex
	started chan string
	release   chan struct{}
	ran       []string
	abandoned map[string]error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started:   make(chan string, 8),
		release:   make(chan struct{}),
		abandoned: map[string]error{},
	}
}

func (r *blockingRunner) Abandon(_ context.Context, jobID string, reason error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abandoned[jobID] = reason
	return nil
}

func (r *blockingRunner) Execute(ctx context.Context, jobID string, progress services.ProgressFunc) (*models.ProcessingJob, error) {
	r.started <- jobID
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	r.mu.Lock()
	r.ran = append(r.ran, jobID)
	r.mu.Unlock()
	job := &models.ProcessingJob{ID: jobID, Status: models.JobStatusCompleted}
	progress(services.JobEvent{Type: services.EventJobFinished, Job: *job})
	return job, nil
}

func TestJobProcessor_SuppressesDuplicateLeaseKeys(t *testing.T) {
	runner := newBlockingRunner()
	events := make(chan services.JobEvent, 8)
	proc := NewJobProcessor(runner, func(e services.JobEvent) { events <- e }, 4, 1)
	defer proc.Stop()

	require.True(t, proc.QueueJob(QueuedJob{JobID: "job-1", LeaseKey: "u1:f1:c1"}))
	assert.Equal(t, "job-1", <-runner.started)

	assert.True(t, proc.IsPending("u1:f1:c1"))
	assert.False(t, proc.QueueJob(QueuedJob{JobID: "job-2", LeaseKey: "u1:f1:c1"}))

	close(runner.release)
	select {
	case e := <-events:
		assert.Equal(t, "job-1", e.Job.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not finish")
	}

	require.Eventually(t, func() bool { return !proc.IsPending("u1:f1:c1") }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, proc.QueueJob(QueuedJob{JobID: "job-3", LeaseKey: "u1:f1:c1"}))
	assert.Equal(t, "job-3", <-runner.started)
}

func TestJobProcessor_QueueFull(t *testing.T) {
	runner := newBlockingRunner()
	proc := NewJobProcessor(runner, nil, 1, 1)
	defer proc.Stop()

	require.True(t, proc.QueueJob(QueuedJob{JobID: "job-1", LeaseKey: "a"}))
	<-runner.started
	require.True(t, proc.QueueJob(QueuedJob{JobID: "job-2", LeaseKey: "b"}))

	assert.False(t, proc.QueueJob(QueuedJob{JobID: "job-3", LeaseKey: "c"}))
	assert.False(t, proc.IsPending("c"))
}

func TestJobProcessor_StopCancelsRunningJobs(t *testing.T) {
	runner := newBlockingRunner()
	proc := NewJobProcessor(runner, nil, 2, 1)

	require.True(t, proc.QueueJob(QueuedJob{JobID: "job-1", LeaseKey: "a"}))
	<-runner.started

	done := make(chan struct{})
	go func() {
		proc.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Empty(t, runner.ran)
}

func TestJobProcessor_StopAbandonsQueuedJobs(t *testing.T) {
	runner := newBlockingRunner()
	proc := NewJobProcessor(runner, nil, 4, 1)

	require.True(t, proc.QueueJob(QueuedJob{JobID: "job-1", LeaseKey: "a"}))
	<-runner.started
	require.True(t, proc.QueueJob(QueuedJob{JobID: "job-2", LeaseKey: "b"}))
	require.True(t, proc.QueueJob(QueuedJob{JobID: "job-3", LeaseKey: "c"}))

	proc.Stop()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Len(t, runner.abandoned, 2)
	assert.ErrorIs(t, runner.abandoned["job-2"], ErrStopped)
	assert.ErrorIs(t, runner.abandoned["job-3"], ErrStopped)
	assert.NotContains(t, runner.abandoned, "job-1")
	assert.Empty(t, runner.ran)
	assert.Len(t, proc.JobQueue, 0)
	assert.False(t, proc.IsPending("b"))
	assert.False(t, proc.IsPending("c"))
}
