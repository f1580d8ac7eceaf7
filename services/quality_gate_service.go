package services

import (
	"context"
	"fmt"
	"log"

	"github.com/camden-git/facealbums/models"
	"github.com/camden-git/facealbums/recognition"
	"github.com/camden-git/facealbums/repository"
)

const defaultMaxLabels = 50

// FaceCategories are the label categories that indicate a person is in frame
var FaceCategories = []string{"Person Description", "Expressions and Emotions"}

// ExcludedCategories are dropped by the annotator so they never crowd out
// person labels under the label limit
var ExcludedCategories = []string{
	"Animals and Pets",
	"Apparel and Accessories",
	"Beauty and Personal Care",
	"Buildings and Architecture",
	"Colors and Visual Composition",
	"Damage Detection",
	"Education",
	"Everyday Objects",
	"Food and Beverage",
	"Furniture and Furnishings",
	"Health and Fitness",
	"Home and Indoors",
	"Home Appliances",
	"Hobbies and Interests",
	"Kitchen and Dining",
	"Materials",
	"Medical",
	"Nature and Outdoors",
	"Offices and Workspaces",
	"Patterns and Shapes",
	"Plants and Flowers",
	"Popular Landmarks",
	"Public Safety",
	"Religion",
	"Sports",
	"Symbols and Flags",
	"Technology and Computing",
	"Text and Documents",
	"Tools and Machinery",
	"Toys and Gaming",
	"Transport and Logistics",
	"Travel and Adventure",
	"Vehicles and Automotive",
	"Weapons and Military",
}

// QualityBand is an inclusive acceptance range for image quality scores
type QualityBand struct {
	MinBrightness float64
	MaxBrightness float64
	MinContrast   float64
	MaxContrast   float64
	MinSharpness  float64
}

var (
	OverallBand    = QualityBand{MinBrightness: 40, MaxBrightness: 80, MinContrast: 30, MaxContrast: 70, MinSharpness: 50}
	ForegroundBand = QualityBand{MinBrightness: 45, MaxBrightness: 75, MinContrast: 35, MaxContrast: 65, MinSharpness: 60}
)

// Contains reports whether q lies within the band. Missing scores never do.
func (b QualityBand) Contains(q *recognition.QualityScores) bool {
	if q == nil {
		return false
	}
	return q.Brightness >= b.MinBrightness && q.Brightness <= b.MaxBrightness &&
		q.Contrast >= b.MinContrast && q.Contrast <= b.MaxContrast &&
		q.Sharpness >= b.MinSharpness
}

// Verdict is the quality gate decision for one image
type Verdict struct {
	FaceContentPresent bool `json:"face_content_present"`
	FaceCount          int  `json:"face_count"`
	QualitySufficient  bool `json:"quality_sufficient"`
}

// Passed reports whether the image may proceed to clustering
func (v Verdict) Passed() bool {
	return v.FaceContentPresent && v.QualitySufficient && v.FaceCount > 0
}

// QualityGate filters out images unsuitable for face recognition
type QualityGate struct {
	annotator     recognition.Annotator
	images        repository.ImageRepositoryInterface
	responses     repository.APIResponseRepositoryInterface
	source        *ImageSource
	minConfidence float64
}

// NewQualityGate creates a new quality gate
func NewQualityGate(
	annotator recognition.Annotator,
	images repository.ImageRepositoryInterface,
	responses repository.APIResponseRepositoryInterface,
	source *ImageSource,
	minConfidence float64,
) *QualityGate {
	return &QualityGate{
		annotator:     annotator,
		images:        images,
		responses:     responses,
		source:        source,
		minConfidence: minConfidence,
	}
}

// Judge derives a verdict from an annotation
func Judge(annotation *recognition.Annotation) Verdict {
	var v Verdict
	if annotation == nil {
		return v
	}
	for _, label := range annotation.Labels {
		if label.HasCategory(FaceCategories...) {
			v.FaceCount++
		}
	}
	v.FaceContentPresent = v.FaceCount > 0
	v.QualitySufficient = OverallBand.Contains(annotation.Overall) && ForegroundBand.Contains(annotation.Foreground)
	return v
}

// Evaluate annotates image, stores the raw response and advances the image
// to FACES_DETECTED or NO_FACES_DETECTED. When annotation fails nothing is
// written and the image stays eligible for the next run.
func (g *QualityGate) Evaluate(ctx context.Context, userID string, image models.Image) (Verdict, error) {
	img, err := g.source.Resolve(ctx, image)
	if err != nil {
		return Verdict{}, err
	}

	annotation, err := g.annotator.DetectLabels(ctx, img, recognition.LabelOptions{
		IncludeCategories: FaceCategories,
		ExcludeCategories: ExcludedCategories,
		MaxLabels:         defaultMaxLabels,
		MinConfidence:     g.minConfidence,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to annotate image %s: %w", image.ID, err)
	}

	if err := g.responses.Create(ctx, userID, image.ID, models.APIResponseDetectLabels, annotation.Raw); err != nil {
		log.Printf("quality: could not store label response for %s: %v", image.ID, err)
	}

	verdict := Judge(annotation)
	next := models.StatusNoFacesDetected
	if verdict.Passed() {
		next = models.StatusFacesDetected
	}

	err = g.images.RecordDetection(ctx, image.ID, repository.DetectionUpdate{
		Next:               next,
		FacesDetected:      verdict.FaceContentPresent,
		FacesDetectedCount: verdict.FaceCount,
		ImageQualityOK:     verdict.QualitySufficient,
	})
	if err != nil {
		return verdict, fmt.Errorf("failed to record detection for image %s: %w", image.ID, err)
	}

	log.Printf("quality: image %s -> %s (faces=%d quality_ok=%t)", image.ID, next, verdict.FaceCount, verdict.QualitySufficient)
	return verdict, nil
}
