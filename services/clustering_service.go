package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/camden-git/facealbums/models"
	"github.com/camden-git/facealbums/recognition"
	"github.com/camden-git/facealbums/repository"
)

const reasonNoIndexableFace = "no indexable face"

// FaceImageMap maps a face ID to the images assigned to it on one page
type FaceImageMap map[string][]string

// ClusterStats summarises one clustering pass
type ClusterStats struct {
	Matched  int
	Indexed  int
	Failed   int
	NewFaces int
}

// imageOutcome is the clustering result for a single image
type imageOutcome struct {
	faceIDs  []string
	matched  bool
	newFaces int
}

// ClusteringEngine assigns images to identity clusters with a
// search-then-insert against the oracle
type ClusteringEngine struct {
	oracle      recognition.Oracle
	images      repository.ImageRepositoryInterface
	responses   repository.APIResponseRepositoryInterface
	source      *ImageSource
	threshold   float64
	concurrency int
}

// NewClusteringEngine creates a new clustering engine
func NewClusteringEngine(
	oracle recognition.Oracle,
	images repository.ImageRepositoryInterface,
	responses repository.APIResponseRepositoryInterface,
	source *ImageSource,
	threshold float64,
	concurrency int,
) *ClusteringEngine {
	return &ClusteringEngine{
		oracle:      oracle,
		images:      images,
		responses:   responses,
		source:      source,
		threshold:   threshold,
		concurrency: max(1, concurrency),
	}
}

// ClusterPage clusters images concurrently and returns the faces each image
// was assigned to. Per-image failures are recorded on the image and counted;
// only cancellation of ctx aborts the page.
func (e *ClusteringEngine) ClusterPage(ctx context.Context, userID, namespace, jobID string, images []models.Image) (FaceImageMap, ClusterStats, error) {
	var (
		mu    sync.Mutex
		out   = make(FaceImageMap)
		stats ClusterStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, image := range images {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome, err := e.clusterImage(gctx, userID, namespace, jobID, image)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Printf("cluster: image %s failed: %v", image.ID, err)
				mu.Lock()
				stats.Failed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			for _, faceID := range outcome.faceIDs {
				out[faceID] = append(out[faceID], image.ID)
			}
			if outcome.matched {
				stats.Matched++
			} else {
				stats.Indexed++
			}
			stats.NewFaces += outcome.newFaces
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, stats, err
	}
	if err := ctx.Err(); err != nil {
		return out, stats, err
	}
	return out, stats, nil
}

// clusterImage assigns one image. An image with a match joins the best
// match's cluster and is never indexed; otherwise each indexed face seeds a
// new cluster containing only this image. An image the oracle rejects is
// closed out as indexed with no faces; other oracle failures leave it in
// FACES_DETECTED with the reason recorded.
func (e *ClusteringEngine) clusterImage(ctx context.Context, userID, namespace, jobID string, image models.Image) (imageOutcome, error) {
	img, err := e.source.Resolve(ctx, image)
	if err != nil {
		return imageOutcome{}, err
	}

	found, err := e.oracle.SearchSimilar(ctx, img, namespace, e.threshold)
	if err != nil {
		if recognition.IsImageRejected(err) {
			return e.recordRejected(ctx, image, "search", nil, err)
		}
		return imageOutcome{}, e.recordOracleFailure(ctx, image.ID, "search", err)
	}
	e.storeRaw(ctx, userID, image.ID, models.APIResponseSearchFacesByImage, found.Raw)

	if len(found.Matches) > 0 {
		best := found.Matches[0]
		err := e.images.RecordMatch(ctx, image.ID, repository.MatchUpdate{
			MatchedFaceIDs: []string{best.FaceID},
			SearchResponse: found.Raw,
		})
		if err != nil {
			return imageOutcome{}, fmt.Errorf("failed to record match for image %s: %w", image.ID, err)
		}
		log.Printf("cluster: image %s matched face %s (%.2f)", image.ID, best.FaceID, best.Similarity)
		return imageOutcome{faceIDs: []string{best.FaceID}, matched: true}, nil
	}

	indexed, err := e.oracle.Index(ctx, img, namespace, 0)
	if err != nil {
		if recognition.IsImageRejected(err) {
			return e.recordRejected(ctx, image, "index", found.Raw, err)
		}
		return imageOutcome{}, e.recordOracleFailure(ctx, image.ID, "index", err)
	}
	e.storeRaw(ctx, userID, image.ID, models.APIResponseIndexFaces, indexed.Raw)

	var job *string
	if jobID != "" {
		job = &jobID
	}
	faces := make([]models.Face, 0, len(indexed.Faces))
	faceIDs := make([]string, 0, len(indexed.Faces))
	for _, f := range indexed.Faces {
		faces = append(faces, models.Face{
			ID:           f.FaceID,
			CollectionID: namespace,
			UserID:       userID,
			JobID:        job,
			Confidence:   f.Confidence,
			Detail:       datatypes.JSON(f.Detail),
		})
		faceIDs = append(faceIDs, f.FaceID)
	}
	reasons := append([]string{}, indexed.UnindexedReasons...)
	if len(faces) == 0 {
		reasons = append(reasons, reasonNoIndexableFace)
	}

	err = e.images.RecordIndex(ctx, image.ID, repository.IndexUpdate{
		Faces:          faces,
		FailedReasons:  reasons,
		SearchResponse: found.Raw,
		IndexResponse:  indexed.Raw,
	})
	if err != nil {
		return imageOutcome{}, fmt.Errorf("failed to record index for image %s: %w", image.ID, err)
	}
	log.Printf("cluster: image %s indexed %d new face(s)", image.ID, len(faces))
	return imageOutcome{faceIDs: faceIDs, newFaces: len(faces)}, nil
}

// recordRejected closes out an image the oracle refuses outright, such as
// one without a searchable face. It is marked indexed with no faces so
// later runs do not query it again.
func (e *ClusteringEngine) recordRejected(ctx context.Context, image models.Image, op string, searchRaw []byte, err error) (imageOutcome, error) {
	reason := recognition.Reason(err)
	recErr := e.images.RecordIndex(ctx, image.ID, repository.IndexUpdate{
		FailedReasons:  []string{reason},
		SearchResponse: searchRaw,
	})
	if recErr != nil {
		return imageOutcome{}, fmt.Errorf("failed to record rejected image %s: %w", image.ID, recErr)
	}
	log.Printf("cluster: image %s rejected by oracle %s: %s", image.ID, op, reason)
	return imageOutcome{}, nil
}

func (e *ClusteringEngine) recordOracleFailure(ctx context.Context, imageID, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	reason := recognition.Reason(err)
	if recErr := e.images.RecordClusterFailure(ctx, imageID, reason); recErr != nil {
		log.Printf("cluster: could not record failure for image %s: %v", imageID, recErr)
	}
	return fmt.Errorf("oracle %s failed for image %s: %w", op, imageID, err)
}

func (e *ClusteringEngine) storeRaw(ctx context.Context, userID, imageID string, kind models.APIResponseType, raw []byte) {
	if len(raw) == 0 {
		return
	}
	if err := e.responses.Create(ctx, userID, imageID, kind, raw); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("cluster: could not store %s response for %s: %v", kind, imageID, err)
	}
}
