package handlers

import (
	"context"
	"net/http"

	"github.com/camden-git/facealbums/models"
)

// AlbumLister returns the folded identity albums of a user
type AlbumLister interface {
	ListFolded(ctx context.Context, userID, namespace string) ([]models.FoldedAlbum, error)
}

type AlbumHandler struct {
	Albums AlbumLister
}

// ListAlbums returns one album per identity with every image assigned to it
func (ah *AlbumHandler) ListAlbums(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	collectionID := r.URL.Query().Get("collection_id")
	if userID == "" || collectionID == "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_request", "user_id and collection_id are required")
		return
	}

	albums, err := ah.Albums.ListFolded(r.Context(), userID, collectionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if albums == nil {
		albums = []models.FoldedAlbum{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"albums": albums})
}
