package recognition

import (
	"context"
	"fmt"
)

// minImageBytes is the smallest payload accepted as an image
const minImageBytes = 100

const reasonExceedsMaxFaces = "EXCEEDS_MAX_FACES"

// Enrollment is the result of registering a person's face
type Enrollment struct {
	IsNewFace  bool
	FaceID     string
	Similarity float64
}

// Enroll registers the single face in img unless a face already in namespace
// matches it at threshold, in which case the existing face is returned.
func Enroll(ctx context.Context, oracle Oracle, img Image, namespace string, threshold float64) (*Enrollment, error) {
	found, err := oracle.SearchSimilar(ctx, img, namespace, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to search for existing face: %w", err)
	}
	if len(found.Matches) > 0 {
		best := found.Matches[0]
		return &Enrollment{IsNewFace: false, FaceID: best.FaceID, Similarity: best.Similarity}, nil
	}

	indexed, err := oracle.Index(ctx, img, namespace, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to index face: %w", err)
	}
	if len(indexed.Faces) == 0 {
		return nil, ErrNoFaceFound
	}
	if len(indexed.Faces) > 1 || containsReason(indexed.UnindexedReasons, reasonExceedsMaxFaces) {
		return nil, ErrMultipleFaces
	}
	return &Enrollment{IsNewFace: true, FaceID: indexed.Faces[0].FaceID}, nil
}

// Verify compares a live capture against a reference image
func Verify(ctx context.Context, oracle Oracle, source, target []byte, threshold float64) (*CompareResult, error) {
	if len(source) < minImageBytes || len(target) < minImageBytes {
		return nil, ErrInvalidImage
	}
	result, err := oracle.Compare(ctx, source, target, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to compare faces: %w", err)
	}
	return result, nil
}

func containsReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
