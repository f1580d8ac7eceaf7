package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/camden-git/facealbums/recognition"
	"github.com/camden-git/facealbums/services"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	resp := APIErrorResponse{
		Errors: []APIErrorDetail{
			{
				Code:   code,
				Status: strconv.Itoa(httpStatus),
				Detail: detail,
			},
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps an error returned by the services or the oracle to
// its API error response
func writeServiceError(w http.ResponseWriter, err error) {
	var recErr *recognition.Error
	switch {
	case errors.Is(err, services.ErrInvalidJobRequest):
		WriteAPIError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, services.ErrJobAlreadyRunning):
		WriteAPIError(w, http.StatusConflict, "job_already_running", err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		WriteAPIError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, recognition.ErrNoFaceFound):
		WriteAPIError(w, http.StatusBadRequest, "NO_FACE_FOUND", err.Error())
	case errors.Is(err, recognition.ErrMultipleFaces):
		WriteAPIError(w, http.StatusBadRequest, "MULTIPLE_FACES_FOUND", err.Error())
	case errors.Is(err, recognition.ErrInvalidImage):
		WriteAPIError(w, http.StatusBadRequest, "invalid_image", err.Error())
	case errors.As(err, &recErr):
		WriteAPIError(w, recErr.StatusCode, recErr.Code, recErr.Message)
	default:
		log.Printf("handlers: internal error: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Error encoding JSON response: %v", err)
		}
	}
}
