package models

// ImageStatus is the processing state of an Image. Statuses only advance
// forward through the processing pipeline.
type ImageStatus string

const (
	StatusPresignedURLGenerated ImageStatus = "PRESIGNED_URL_GENERATED"
	StatusUploadedToS3          ImageStatus = "UPLOADED_TO_S3"
	StatusFailedToUploadToS3    ImageStatus = "FAILED_TO_UPLOAD_TO_S3"
	StatusFacesDetected         ImageStatus = "FACES_DETECTED"
	StatusNoFacesDetected       ImageStatus = "NO_FACES_DETECTED"
	StatusFacesMatched          ImageStatus = "FACES_MATCHED"
	StatusFacesIndexed          ImageStatus = "FACES_INDEXED"
)

// stage orders statuses along the pipeline; siblings share a stage
var stage = map[ImageStatus]int{
	StatusPresignedURLGenerated: 0,
	StatusUploadedToS3:          1,
	StatusFailedToUploadToS3:    1,
	StatusFacesDetected:         2,
	StatusNoFacesDetected:       2,
	StatusFacesMatched:          3,
	StatusFacesIndexed:          3,
}

var transitions = map[ImageStatus][]ImageStatus{
	StatusPresignedURLGenerated: {StatusUploadedToS3, StatusFailedToUploadToS3},
	StatusUploadedToS3:          {StatusFacesDetected, StatusNoFacesDetected},
	StatusFacesDetected:         {StatusFacesMatched, StatusFacesIndexed},
}

// IsValid reports whether s is a known status.
func (s ImageStatus) IsValid() bool {
	_, ok := stage[s]
	return ok
}

// IsTerminal reports whether no further transition exists from s.
func (s ImageStatus) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}

// CanAdvanceTo reports whether next is a legal forward step from s.
func (s ImageStatus) CanAdvanceTo(next ImageStatus) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Stage returns the pipeline position of s, or -1 for unknown statuses.
func (s ImageStatus) Stage() int {
	if v, ok := stage[s]; ok {
		return v
	}
	return -1
}
