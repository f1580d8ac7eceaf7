package recognition

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// rekognitionAPI is the subset of the Rekognition client used here
type rekognitionAPI interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
	SearchFacesByImage(ctx context.Context, params *rekognition.SearchFacesByImageInput, optFns ...func(*rekognition.Options)) (*rekognition.SearchFacesByImageOutput, error)
	IndexFaces(ctx context.Context, params *rekognition.IndexFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.IndexFacesOutput, error)
	CompareFaces(ctx context.Context, params *rekognition.CompareFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.CompareFacesOutput, error)
}

// Rekognition implements Oracle and Annotator on AWS Rekognition. Images
// given by key are read by Rekognition directly from bucket.
type Rekognition struct {
	client rekognitionAPI
	bucket string
}

// NewRekognition builds a client for region. Static credentials are used when
// accessKeyID is set, otherwise the default AWS credential chain applies.
func NewRekognition(ctx context.Context, region, bucket, accessKeyID, secretAccessKey string) (*Rekognition, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Printf("recognition: rekognition client ready (region %s, bucket %q)", region, bucket)
	return &Rekognition{client: rekognition.NewFromConfig(cfg), bucket: bucket}, nil
}

func (r *Rekognition) image(img Image) (*types.Image, error) {
	if len(img.Bytes) > 0 {
		return &types.Image{Bytes: img.Bytes}, nil
	}
	if img.Key == "" || r.bucket == "" {
		return nil, fmt.Errorf("%w: image needs bytes or a key in a configured bucket", ErrInvalidImage)
	}
	return &types.Image{S3Object: &types.S3Object{
		Bucket: aws.String(r.bucket),
		Name:   aws.String(img.Key),
	}}, nil
}

// DetectLabels annotates an image with general labels and image properties
func (r *Rekognition) DetectLabels(ctx context.Context, img Image, opts LabelOptions) (*Annotation, error) {
	image, err := r.image(img)
	if err != nil {
		return nil, err
	}

	input := &rekognition.DetectLabelsInput{
		Image: image,
		Features: []types.DetectLabelsFeatureName{
			types.DetectLabelsFeatureNameGeneralLabels,
			types.DetectLabelsFeatureNameImageProperties,
		},
		Settings: &types.DetectLabelsSettings{
			GeneralLabels: &types.GeneralLabelsSettings{
				LabelCategoryInclusionFilters: opts.IncludeCategories,
				LabelCategoryExclusionFilters: opts.ExcludeCategories,
			},
		},
	}
	if opts.MaxLabels > 0 {
		input.MaxLabels = aws.Int32(int32(opts.MaxLabels))
	}
	if opts.MinConfidence > 0 {
		input.MinConfidence = aws.Float32(float32(opts.MinConfidence))
	}

	out, err := r.client.DetectLabels(ctx, input)
	if err != nil {
		return nil, MapError(err)
	}

	annotation := &Annotation{Raw: marshalRaw(out)}
	for _, l := range out.Labels {
		label := Label{Name: aws.ToString(l.Name), Confidence: float64(aws.ToFloat32(l.Confidence))}
		for _, c := range l.Categories {
			label.Categories = append(label.Categories, aws.ToString(c.Name))
		}
		annotation.Labels = append(annotation.Labels, label)
	}
	if props := out.ImageProperties; props != nil {
		annotation.Overall = qualityScores(props.Quality)
		if props.Foreground != nil {
			annotation.Foreground = qualityScores(props.Foreground.Quality)
		}
	}
	return annotation, nil
}

func qualityScores(q *types.DetectLabelsImageQuality) *QualityScores {
	if q == nil {
		return nil
	}
	return &QualityScores{
		Brightness: float64(aws.ToFloat32(q.Brightness)),
		Contrast:   float64(aws.ToFloat32(q.Contrast)),
		Sharpness:  float64(aws.ToFloat32(q.Sharpness)),
	}
}

// SearchSimilar finds registered faces similar to the largest face in img
func (r *Rekognition) SearchSimilar(ctx context.Context, img Image, namespace string, threshold float64) (*SearchResult, error) {
	image, err := r.image(img)
	if err != nil {
		return nil, err
	}

	out, err := r.client.SearchFacesByImage(ctx, &rekognition.SearchFacesByImageInput{
		CollectionId:       aws.String(namespace),
		Image:              image,
		FaceMatchThreshold: aws.Float32(float32(threshold)),
		QualityFilter:      types.QualityFilterAuto,
	})
	if err != nil {
		return nil, MapError(err)
	}

	result := &SearchResult{Raw: marshalRaw(out)}
	for _, m := range out.FaceMatches {
		if m.Face == nil || m.Face.FaceId == nil {
			continue
		}
		result.Matches = append(result.Matches, FaceMatch{
			FaceID:     aws.ToString(m.Face.FaceId),
			Similarity: float64(aws.ToFloat32(m.Similarity)),
		})
	}
	return result, nil
}

// Index registers the faces of img in namespace. maxFaces of zero leaves the
// limit to the service.
func (r *Rekognition) Index(ctx context.Context, img Image, namespace string, maxFaces int) (*IndexResult, error) {
	image, err := r.image(img)
	if err != nil {
		return nil, err
	}

	input := &rekognition.IndexFacesInput{
		CollectionId:        aws.String(namespace),
		Image:               image,
		QualityFilter:       types.QualityFilterMedium,
		DetectionAttributes: []types.Attribute{types.AttributeDefault},
	}
	if maxFaces > 0 {
		input.MaxFaces = aws.Int32(int32(maxFaces))
	}

	out, err := r.client.IndexFaces(ctx, input)
	if err != nil {
		return nil, MapError(err)
	}

	result := &IndexResult{Raw: marshalRaw(out)}
	for _, rec := range out.FaceRecords {
		if rec.Face == nil || rec.Face.FaceId == nil {
			continue
		}
		result.Faces = append(result.Faces, IndexedFace{
			FaceID:     aws.ToString(rec.Face.FaceId),
			Confidence: float64(aws.ToFloat32(rec.Face.Confidence)),
			Detail:     marshalRaw(rec.FaceDetail),
		})
	}
	for _, u := range out.UnindexedFaces {
		for _, reason := range u.Reasons {
			result.UnindexedReasons = append(result.UnindexedReasons, string(reason))
		}
	}
	return result, nil
}

// Compare checks whether source and target show the same person
func (r *Rekognition) Compare(ctx context.Context, source, target []byte, threshold float64) (*CompareResult, error) {
	out, err := r.client.CompareFaces(ctx, &rekognition.CompareFacesInput{
		SourceImage:         &types.Image{Bytes: source},
		TargetImage:         &types.Image{Bytes: target},
		SimilarityThreshold: aws.Float32(float32(threshold)),
	})
	if err != nil {
		return nil, MapError(err)
	}

	result := &CompareResult{}
	for _, m := range out.FaceMatches {
		similarity := float64(aws.ToFloat32(m.Similarity))
		if similarity > result.Similarity {
			result.Similarity = similarity
		}
	}
	result.Matched = len(out.FaceMatches) > 0 && result.Similarity >= threshold
	return result, nil
}

func marshalRaw(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("recognition: failed to marshal raw response: %v", err)
		return json.RawMessage("{}")
	}
	return data
}
