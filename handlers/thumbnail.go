package handlers

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/facealbums/media"
)

// ThumbnailServer creates a handler serving face thumbnails from local storage.
// Requests address /thumbnails/{user_id}/{file}.
func ThumbnailServer(store *media.LocalStorage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "user_id")
		file := chi.URLParam(r, "file")
		if userID == "" || strings.Contains(userID, "..") ||
			!strings.HasSuffix(file, media.ThumbnailFileExtension) || strings.Contains(file, "..") {
			http.Error(w, "Invalid thumbnail path", http.StatusBadRequest)
			return
		}

		key := media.ThumbnailKey(userID, strings.TrimSuffix(file, media.ThumbnailFileExtension))
		fullPath, err := store.GetFullPath(key)
		if err != nil {
			http.Error(w, "Forbidden", http.StatusForbidden)
			log.Printf("attempted thumbnail access outside storage: Request='%s', Key='%s'", r.URL.Path, key)
			return
		}

		if _, err := os.Stat(fullPath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		} else if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			log.Printf("error stating thumbnail %s: %v", fullPath, err)
			return
		}

		cacheDuration := 24 * time.Hour
		w.Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(int(cacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(cacheDuration).Format(http.TimeFormat))
		w.Header().Set("Content-Type", media.ThumbnailContentType)

		http.ServeFile(w, r, fullPath)
	}
}
