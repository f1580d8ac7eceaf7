package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/camden-git/facealbums/recognition"
)

// FaceHandler exposes the one-off enrollment and verification flows
type FaceHandler struct {
	Oracle    recognition.Oracle
	Threshold float64
}

type enrollRequest struct {
	CollectionID string `json:"collection_id"`
	StorageKey   string `json:"storage_key,omitempty"`
	Image        []byte `json:"image,omitempty"` // base64 in JSON
}

type verifyRequest struct {
	Source []byte `json:"source"`
	Target []byte `json:"target"`
}

// Enroll registers the single face of an image, or returns the face it
// already matches
func (fh *FaceHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		return
	}
	if req.CollectionID == "" || (req.StorageKey == "" && len(req.Image) == 0) {
		WriteAPIError(w, http.StatusBadRequest, "invalid_request", "collection_id and one of storage_key or image are required")
		return
	}

	enrollment, err := recognition.Enroll(r.Context(), fh.Oracle,
		recognition.Image{Key: req.StorageKey, Bytes: req.Image}, req.CollectionID, fh.Threshold)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if enrollment.IsNewFace {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]interface{}{
		"is_new_face": enrollment.IsNewFace,
		"face_id":     enrollment.FaceID,
		"similarity":  enrollment.Similarity,
	})
}

// Verify compares a capture against a reference image
func (fh *FaceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	result, err := recognition.Verify(r.Context(), fh.Oracle, req.Source, req.Target, fh.Threshold)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"matched":    result.Matched,
		"similarity": result.Similarity,
	})
}
