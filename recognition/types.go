// Package recognition defines the contracts of the face similarity oracle and
// image annotator used by the clustering pipeline, and an AWS Rekognition
// implementation of both.
package recognition

import (
	"context"
	"encoding/json"
)

// Image references a photo either by object key in the configured bucket or
// by its raw bytes. Bytes win when both are set.
type Image struct {
	Key   string
	Bytes []byte
}

// Label is one annotation returned for an image
type Label struct {
	Name       string
	Confidence float64
	Categories []string
}

// HasCategory reports whether the label belongs to any of the given categories
func (l Label) HasCategory(categories ...string) bool {
	for _, c := range l.Categories {
		for _, want := range categories {
			if c == want {
				return true
			}
		}
	}
	return false
}

// QualityScores are image quality measurements on a 0..100 scale
type QualityScores struct {
	Brightness float64
	Contrast   float64
	Sharpness  float64
}

// Annotation is the result of labelling an image. Overall and Foreground are
// nil when the annotator did not return the corresponding block.
type Annotation struct {
	Labels     []Label
	Overall    *QualityScores
	Foreground *QualityScores
	Raw        json.RawMessage
}

// LabelOptions restricts which labels the annotator returns
type LabelOptions struct {
	IncludeCategories []string
	ExcludeCategories []string
	MaxLabels         int
	MinConfidence     float64
}

// FaceMatch is one existing face similar to the searched image
type FaceMatch struct {
	FaceID     string
	Similarity float64
}

// SearchResult lists matches best-first as ordered by the oracle
type SearchResult struct {
	Matches []FaceMatch
	Raw     json.RawMessage
}

// IndexedFace is a face newly registered in a namespace
type IndexedFace struct {
	FaceID     string
	Confidence float64
	Detail     json.RawMessage
}

// IndexResult lists the faces registered from one image and the reasons any
// detected face was rejected
type IndexResult struct {
	Faces            []IndexedFace
	UnindexedReasons []string
	Raw              json.RawMessage
}

// CompareResult is the outcome of a one-to-one face comparison
type CompareResult struct {
	Matched    bool
	Similarity float64
}

// Oracle answers face similarity queries against a namespace of registered
// faces. The namespace is passed on every call.
type Oracle interface {
	SearchSimilar(ctx context.Context, img Image, namespace string, threshold float64) (*SearchResult, error)
	Index(ctx context.Context, img Image, namespace string, maxFaces int) (*IndexResult, error)
	Compare(ctx context.Context, source, target []byte, threshold float64) (*CompareResult, error)
}

// Annotator labels images and reports their quality
type Annotator interface {
	DetectLabels(ctx context.Context, img Image, opts LabelOptions) (*Annotation, error)
}
