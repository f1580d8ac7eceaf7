package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/camden-git/facealbums/media"
	"github.com/camden-git/facealbums/models"
	"github.com/camden-git/facealbums/recognition"
	"github.com/camden-git/facealbums/services"
	"github.com/camden-git/facealbums/workers"
)

type fakeJobs struct {
	submitted []services.JobRequest
	ran       []services.JobRequest
	abandoned map[string]error
	jobs      map[string]*models.ProcessingJob
	runErr    error
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{abandoned: map[string]error{}, jobs: map[string]*models.ProcessingJob{}}
}

func (f *fakeJobs) Submit(_ context.Context, req services.JobRequest) (*models.ProcessingJob, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	f.submitted = append(f.submitted, req)
	job := &models.ProcessingJob{ID: "job-1", UserID: req.UserID, Status: models.JobStatusQueued}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobs) Run(_ context.Context, req services.JobRequest, _ services.ProgressFunc) (*models.ProcessingJob, error) {
	f.ran = append(f.ran, req)
	return &models.ProcessingJob{ID: "job-1"}, f.runErr
}

func (f *fakeJobs) GetJob(_ context.Context, jobID string) (*models.ProcessingJob, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return job, nil
}

func (f *fakeJobs) Abandon(_ context.Context, jobID string, reason error) error {
	f.abandoned[jobID] = reason
	return nil
}

type fakeQueue struct {
	pending map[string]bool
	full    bool
	queued  []workers.QueuedJob
}

func (q *fakeQueue) QueueJob(job workers.QueuedJob) bool {
	if q.full || q.pending[job.LeaseKey] {
		return false
	}
	q.queued = append(q.queued, job)
	return true
}

func (q *fakeQueue) IsPending(leaseKey string) bool {
	return q.pending[leaseKey]
}

type fakeAlbums struct {
	albums []models.FoldedAlbum
}

func (f *fakeAlbums) ListFolded(_ context.Context, _, _ string) ([]models.FoldedAlbum, error) {
	return f.albums, nil
}

type fakeOracle struct {
	search  *recognition.SearchResult
	index   *recognition.IndexResult
	compare *recognition.CompareResult
}

func (o *fakeOracle) SearchSimilar(context.Context, recognition.Image, string, float64) (*recognition.SearchResult, error) {
	return o.search, nil
}

func (o *fakeOracle) Index(context.Context, recognition.Image, string, int) (*recognition.IndexResult, error) {
	return o.index, nil
}

func (o *fakeOracle) Compare(context.Context, []byte, []byte, float64) (*recognition.CompareResult, error) {
	return o.compare, nil
}

type testServer struct {
	jobs   *fakeJobs
	queue  *fakeQueue
	albums *fakeAlbums
	oracle *fakeOracle
	store  *media.LocalStorage
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := media.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ts := &testServer{
		jobs:   newFakeJobs(),
		queue:  &fakeQueue{pending: map[string]bool{}},
		albums: &fakeAlbums{},
		oracle: &fakeOracle{},
		store:  store,
	}
	ts.router = Router{
		Jobs:       &JobHandler{Jobs: ts.jobs, Queue: ts.queue},
		Albums:     &AlbumHandler{Albums: ts.albums},
		Faces:      &FaceHandler{Oracle: ts.oracle, Threshold: 80},
		Thumbnails: ThumbnailServer(store),
	}.Handler()
	return ts
}

func (ts *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Errors, 1)
	return resp.Errors[0].Code
}

var jobBody = map[string]string{"user_id": "u1", "folder_id": "f1", "collection_id": "c1"}

func TestCreateJob_Accepted(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/jobs", jobBody)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp["job_id"])
	assert.Equal(t, "queued", resp["status"])
	assert.Equal(t, []workers.QueuedJob{{JobID: "job-1", LeaseKey: "u1:f1:c1"}}, ts.queue.queued)
}

func TestCreateJob_InvalidRequest(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/jobs", map[string]string{"user_id": "u1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", errorCode(t, rec))
	assert.Empty(t, ts.jobs.submitted)
}

func TestCreateJob_AlreadyPending(t *testing.T) {
	ts := newTestServer(t)
	ts.queue.pending["u1:f1:c1"] = true
	rec := ts.do(http.MethodPost, "/api/jobs", jobBody)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "job_already_running", errorCode(t, rec))
	assert.Empty(t, ts.jobs.submitted)
}

func TestCreateJob_QueueFull(t *testing.T) {
	ts := newTestServer(t)
	ts.queue.full = true
	rec := ts.do(http.MethodPost, "/api/jobs", jobBody)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "queue_full", errorCode(t, rec))
	assert.ErrorIs(t, ts.jobs.abandoned["job-1"], errQueueFull)
}

func TestGetJob(t *testing.T) {
	ts := newTestServer(t)
	ts.jobs.jobs["job-7"] = &models.ProcessingJob{ID: "job-7", Status: models.JobStatusRunning, PagesProcessed: 2}

	rec := ts.do(http.MethodGet, "/api/jobs/job-7", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var job models.ProcessingJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, models.JobStatusRunning, job.Status)
	assert.Equal(t, 2, job.PagesProcessed)

	rec = ts.do(http.MethodGet, "/api/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProcessImages(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/images/process", jobBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Image processing job completed"}`, rec.Body.String())
	require.Len(t, ts.jobs.ran, 1)
	assert.Equal(t, "c1", ts.jobs.ran[0].Namespace)
}

func TestProcessImages_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"already running", services.ErrJobAlreadyRunning, http.StatusConflict, "job_already_running"},
		{"oracle error", &recognition.Error{Code: "ThrottlingException", StatusCode: http.StatusTooManyRequests}, http.StatusTooManyRequests, "ThrottlingException"},
		{"unknown", assert.AnError, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.jobs.runErr = tc.err
			rec := ts.do(http.MethodPost, "/api/images/process", jobBody)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorCode(t, rec))
		})
	}
}

func TestListAlbums(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/api/albums?user_id=u1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/albums?user_id=u1&collection_id=c1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"albums":[]}`, rec.Body.String())

	ts.albums.albums = []models.FoldedAlbum{{CollectionID: "c1", FaceID: "face-a", ImageIDs: []string{"img-1", "img-2"}, AlbumIDs: []string{"a1"}}}
	rec = ts.do(http.MethodGet, "/api/albums?user_id=u1&collection_id=c1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Albums []models.FoldedAlbum `json:"albums"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ts.albums.albums, resp.Albums)
}

func TestThumbnailServer(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.store.Put(context.Background(), media.ThumbnailKey("u1", "abc"), []byte("jpeg-bytes"), media.ThumbnailContentType))

	rec := ts.do(http.MethodGet, "/api/thumbnails/u1/abc.jpeg", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg-bytes", rec.Body.String())
	assert.Equal(t, media.ThumbnailContentType, rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("Cache-Control"))

	rec = ts.do(http.MethodGet, "/api/thumbnails/u1/missing.jpeg", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/thumbnails/u1/abc.png", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnroll(t *testing.T) {
	ts := newTestServer(t)
	ts.oracle.search = &recognition.SearchResult{Matches: []recognition.FaceMatch{{FaceID: "face-a", Similarity: 93}}}

	rec := ts.do(http.MethodPost, "/api/faces/enroll", map[string]string{"collection_id": "auth", "storage_key": "u1/selfie.jpg"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"is_new_face":false,"face_id":"face-a","similarity":93}`, rec.Body.String())

	ts.oracle.search = &recognition.SearchResult{}
	ts.oracle.index = &recognition.IndexResult{Faces: []recognition.IndexedFace{{FaceID: "f1"}, {FaceID: "f2"}}}
	rec = ts.do(http.MethodPost, "/api/faces/enroll", map[string]string{"collection_id": "auth", "storage_key": "u1/group.jpg"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MULTIPLE_FACES_FOUND", errorCode(t, rec))

	rec = ts.do(http.MethodPost, "/api/faces/enroll", map[string]string{"collection_id": "auth"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerify(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/faces/verify", map[string][]byte{"source": []byte("tiny"), "target": []byte("tiny")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_image", errorCode(t, rec))

	ts.oracle.compare = &recognition.CompareResult{Matched: true, Similarity: 99.1}
	img := bytes.Repeat([]byte{0xff}, 200)
	rec = ts.do(http.MethodPost, "/api/faces/verify", map[string][]byte{"source": img, "target": img})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"matched":true,"similarity":99.1}`, rec.Body.String())
}
