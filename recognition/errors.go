package recognition

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
)

var (
	// ErrNoFaceFound is returned by Enroll when the image holds no face
	ErrNoFaceFound = errors.New("no face found in image")
	// ErrMultipleFaces is returned by Enroll when the image holds more than one face
	ErrMultipleFaces = errors.New("multiple faces found in image")
	// ErrInvalidImage is returned for payloads too small to be an image
	ErrInvalidImage = errors.New("invalid image")
)

// Error is an oracle failure translated into an HTTP-style status
type Error struct {
	Code       string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var statusByCode = map[string]int{
	"InvalidParameterException":              http.StatusBadRequest,
	"ProvisionedThroughputExceededException": http.StatusTooManyRequests,
	"InvalidImageFormatException":            http.StatusBadRequest,
	"ImageTooLargeException":                 http.StatusBadRequest,
	"AccessDeniedException":                  http.StatusForbidden,
	"ThrottlingException":                    http.StatusTooManyRequests,
	"LimitExceededException":                 http.StatusBadRequest,
	"ResourceNotFoundException":              http.StatusNotFound,
	"InvalidS3ObjectException":               http.StatusBadRequest,
	"InvalidPaginationTokenException":        http.StatusBadRequest,
	"ResourceAlreadyExistsException":         http.StatusConflict,
	"InternalServerError":                    http.StatusInternalServerError,
	"ServiceQuotaExceededException":          http.StatusInternalServerError,
}

// MapError converts an SDK error into an *Error. Unknown API errors keep the
// HTTP status of the response when one is available, otherwise 500.
// A nil error maps to nil.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var mapped *Error
	if errors.As(err, &mapped) {
		return mapped
	}

	out := &Error{Code: "InternalServerError", StatusCode: http.StatusInternalServerError, Message: err.Error(), Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		out.Code = apiErr.ErrorCode()
		out.Message = apiErr.ErrorMessage()
		if status, ok := statusByCode[out.Code]; ok {
			out.StatusCode = status
			return out
		}
	}

	var withStatus interface{ HTTPStatusCode() int }
	if errors.As(err, &withStatus) && withStatus.HTTPStatusCode() > 0 {
		out.StatusCode = withStatus.HTTPStatusCode()
	}
	return out
}

// imageRejectedCodes are failures caused by the image itself, such as a
// search image with no detectable face. Repeating the call cannot succeed.
var imageRejectedCodes = map[string]bool{
	"InvalidParameterException":   true,
	"InvalidImageFormatException": true,
	"ImageTooLargeException":      true,
}

// IsImageRejected reports whether err means the oracle will never accept
// the image
func IsImageRejected(err error) bool {
	var mapped *Error
	if !errors.As(err, &mapped) {
		return false
	}
	return imageRejectedCodes[mapped.Code]
}

// Reason returns a short failure reason suitable for persisting on an image
func Reason(err error) string {
	var mapped *Error
	if errors.As(err, &mapped) {
		return mapped.Code
	}
	return err.Error()
}
