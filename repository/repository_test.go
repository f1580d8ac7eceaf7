package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/camden-git/facealbums/config"
	"github.com/camden-git/facealbums/database"
	"github.com/camden-git/facealbums/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.InitGormDB(config.DatabaseDriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", name), logger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func seedImage(t *testing.T, repo *ImageRepository, id string, status models.ImageStatus) {
	t.Helper()
	folder := "f1"
	require.NoError(t, repo.Create(context.Background(), &models.Image{
		ID:         id,
		UserID:     "u1",
		FolderID:   &folder,
		FileName:   id + ".jpg",
		StorageKey: "u1/originals/" + id + ".jpg",
		Status:     status,
	}))
}

func TestImageRepository_ListPageUsesKeysetCursor(t *testing.T) {
	ctx := context.Background()
	repo := NewImageRepository(newTestDB(t))
	for i := 1; i <= 5; i++ {
		seedImage(t, repo, fmt.Sprintf("img-%02d", i), models.StatusFacesDetected)
	}
	seedImage(t, repo, "img-00", models.StatusUploadedToS3)

	filter := ImageFilter{UserID: "u1", FolderID: "f1", Statuses: []models.ImageStatus{models.StatusFacesDetected}}
	first, err := repo.ListPage(ctx, filter, "", 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "img-01", first[0].ID)
	assert.Equal(t, "img-02", first[1].ID)

	// rows leaving the filter must not shift the next page
	require.NoError(t, repo.RecordMatch(ctx, "img-01", MatchUpdate{MatchedFaceIDs: []string{"face-a"}}))

	second, err := repo.ListPage(ctx, filter, first[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "img-03", second[0].ID)
	assert.Equal(t, "img-04", second[1].ID)

	last, err := repo.ListPage(ctx, filter, second[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "img-05", last[0].ID)
}

func TestImageRepository_StatusNeverRegresses(t *testing.T) {
	ctx := context.Background()
	repo := NewImageRepository(newTestDB(t))
	seedImage(t, repo, "img-1", models.StatusUploadedToS3)

	require.NoError(t, repo.RecordDetection(ctx, "img-1", DetectionUpdate{
		Next:               models.StatusFacesDetected,
		FacesDetected:      true,
		FacesDetectedCount: 1,
		ImageQualityOK:     true,
	}))

	err := repo.RecordDetection(ctx, "img-1", DetectionUpdate{Next: models.StatusNoFacesDetected})
	assert.ErrorIs(t, err, ErrStatusConflict)

	require.NoError(t, repo.RecordMatch(ctx, "img-1", MatchUpdate{MatchedFaceIDs: []string{"face-a"}}))
	err = repo.RecordIndex(ctx, "img-1", IndexUpdate{})
	assert.ErrorIs(t, err, ErrStatusConflict)

	image, err := repo.GetByID(ctx, "img-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFacesMatched, image.Status)
	assert.True(t, image.SkippedFacesIndexing)
	assert.Equal(t, 1, image.FacesMatchedCount)
	assert.Equal(t, []string{"face-a"}, []string(image.MatchedFaceIDs))
}

func TestImageRepository_RecordDetectionRejectsInvalidTarget(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))
	seedImage(t, repo, "img-1", models.StatusUploadedToS3)

	err := repo.RecordDetection(context.Background(), "img-1", DetectionUpdate{Next: models.StatusFacesIndexed})
	assert.ErrorIs(t, err, ErrStatusConflict)
}

func TestImageRepository_RecordIndexPersistsFacesOnce(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewImageRepository(db)
	faces := NewFaceRepository(db)
	seedImage(t, repo, "img-1", models.StatusFacesDetected)

	jobID := "job-1"
	update := IndexUpdate{
		Faces: []models.Face{
			{ID: "face-a", CollectionID: "c1", UserID: "u1", JobID: &jobID, Confidence: 99.1},
		},
		FailedReasons: []string{"LOW_SHARPNESS"},
		IndexResponse: []byte(`{"FaceRecords":[]}`),
	}
	require.NoError(t, repo.RecordIndex(ctx, "img-1", update))

	// replaying the same write is refused and creates nothing new
	err := repo.RecordIndex(ctx, "img-1", update)
	assert.ErrorIs(t, err, ErrStatusConflict)

	count, err := faces.CountByUser(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	image, err := repo.GetByID(ctx, "img-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFacesIndexed, image.Status)
	assert.Equal(t, 1, image.FacesIndexedCount)
	assert.Equal(t, 1, image.FacesIndexingFailedCount)
	assert.False(t, image.SkippedFacesIndexing)

	byJob, err := faces.ListByJob(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, byJob, 1)
	require.NotNil(t, byJob[0].Image)
	assert.Equal(t, "u1/originals/img-1.jpg", byJob[0].Image.StorageKey)
}

func TestImageRepository_RecordClusterFailureKeepsStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewImageRepository(newTestDB(t))
	seedImage(t, repo, "img-1", models.StatusFacesDetected)

	require.NoError(t, repo.RecordClusterFailure(ctx, "img-1", "ThrottlingException"))
	require.NoError(t, repo.RecordClusterFailure(ctx, "img-1", "InternalServerError"))

	image, err := repo.GetByID(ctx, "img-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFacesDetected, image.Status)
	assert.Equal(t, 2, image.FacesIndexingFailedCount)
	assert.Equal(t, []string{"ThrottlingException", "InternalServerError"}, []string(image.FacesIndexingFailedReasons))

	counts, err := repo.CountByStatus(ctx, "u1", "f1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.StatusFacesDetected])
}

func TestImageRepository_GetByIDNotFound(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))
	_, err := repo.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestFoldAlbums_MergesRowsPerFace(t *testing.T) {
	albums := []models.Album{
		{ID: "a1", CollectionID: "c1", FaceID: "face-b", ImageIDs: []string{"img-10", "img-2"}},
		{ID: "a2", CollectionID: "c1", FaceID: "face-a", ImageIDs: []string{"img-1"}},
		{ID: "a3", CollectionID: "c1", FaceID: "face-b", ImageIDs: []string{"img-2", "img-3"}},
	}

	folded := FoldAlbums(albums)
	require.Len(t, folded, 2)

	assert.Equal(t, "face-a", folded[0].FaceID)
	assert.Equal(t, []string{"img-1"}, folded[0].ImageIDs)

	assert.Equal(t, "face-b", folded[1].FaceID)
	assert.Equal(t, []string{"img-2", "img-3", "img-10"}, folded[1].ImageIDs)
	assert.Equal(t, []string{"a1", "a3"}, folded[1].AlbumIDs)
}

func TestFoldAlbums_Empty(t *testing.T) {
	folded := FoldAlbums(nil)
	assert.NotNil(t, folded)
	assert.Empty(t, folded)
}

func TestAlbumRepository_ListFoldedJoinsThumbnails(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	albums := NewAlbumRepository(db)
	thumbs := NewThumbnailRepository(db)

	require.NoError(t, albums.CreateBatch(ctx, []models.Album{
		{ID: "a1", UserID: "u1", CollectionID: "c1", FaceID: "face-a", ImageIDs: []string{"img-1"}},
		{ID: "a2", UserID: "u1", CollectionID: "c1", FaceID: "face-a", ImageIDs: []string{"img-2"}},
		{ID: "a3", UserID: "u1", CollectionID: "c1", FaceID: "face-b", ImageIDs: []string{"img-3"}},
	}))
	require.NoError(t, thumbs.Upsert(ctx, &models.Thumbnail{FaceID: "face-a", CollectionID: "c1", StorageKey: "u1/thumbnails/t1.jpeg"}))

	folded, err := albums.ListFolded(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Len(t, folded, 2)
	assert.Equal(t, []string{"img-1", "img-2"}, folded[0].ImageIDs)
	require.NotNil(t, folded[0].ThumbnailKey)
	assert.Equal(t, "u1/thumbnails/t1.jpeg", *folded[0].ThumbnailKey)
	assert.Nil(t, folded[1].ThumbnailKey)

	count, err := albums.CountByUser(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestThumbnailRepository_UpsertKeepsOneRowPerFace(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	images := NewImageRepository(db)
	faces := NewFaceRepository(db)
	thumbs := NewThumbnailRepository(db)

	seedImage(t, images, "img-1", models.StatusFacesDetected)
	require.NoError(t, images.RecordIndex(ctx, "img-1", IndexUpdate{Faces: []models.Face{
		{ID: "face-a", CollectionID: "c1", UserID: "u1"},
		{ID: "face-b", CollectionID: "c1", UserID: "u1"},
	}}))

	pending, err := faces.ListWithoutThumbnail(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, thumbs.Upsert(ctx, &models.Thumbnail{FaceID: "face-a", CollectionID: "c1", StorageKey: "old.jpeg"}))
	require.NoError(t, thumbs.Upsert(ctx, &models.Thumbnail{FaceID: "face-a", CollectionID: "c1", StorageKey: "new.jpeg"}))

	exists, err := thumbs.ExistsForFace(ctx, "c1", "face-a")
	require.NoError(t, err)
	assert.True(t, exists)

	thumb, err := thumbs.GetByFace(ctx, "c1", "face-a")
	require.NoError(t, err)
	assert.Equal(t, "new.jpeg", thumb.StorageKey)

	pending, err = faces.ListWithoutThumbnail(ctx, "u1", "c1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "face-b", pending[0].ID)
}

func TestAPIResponseRepository_CreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewAPIResponseRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, "u1", "img-1", models.APIResponseDetectLabels, []byte(`{"Labels":[]}`)))
	require.NoError(t, repo.Create(ctx, "u1", "img-1", models.APIResponseSearchFacesByImage, nil))

	rows, err := repo.ListByImage(ctx, "u1", "img-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.APIResponseDetectLabels, rows[0].Type)
	assert.JSONEq(t, `{}`, string(rows[1].Response))
}

func TestJobRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRepository(newTestDB(t))

	job := &models.ProcessingJob{ID: "job-1", UserID: "u1", FolderID: "f1", CollectionID: "c1"}
	require.NoError(t, repo.Create(ctx, job))
	require.NoError(t, repo.MarkRunning(ctx, "job-1"))
	assert.Error(t, repo.MarkRunning(ctx, "job-1"))

	job.PagesProcessed = 3
	job.ImagesProcessed = 113
	require.NoError(t, repo.SaveProgress(ctx, job))
	require.NoError(t, repo.Finish(ctx, "job-1", models.JobStatusFailed, errors.New("oracle unavailable")))

	stored, err := repo.GetByID(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.Equal(t, 113, stored.ImagesProcessed)
	require.NotNil(t, stored.Error)
	assert.Equal(t, "oracle unavailable", *stored.Error)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.FinishedAt)
	assert.True(t, stored.IsFinished())
}
