// media/types.go
package media

import "path"

const (
	ThumbnailContentType   = "image/jpeg"
	ThumbnailFileExtension = ".jpeg"
	ThumbnailJpegQuality   = 90

	thumbnailsDir = "thumbnails"
)

// ThumbnailKey returns the storage key of a face thumbnail owned by userID
func ThumbnailKey(userID, thumbnailID string) string {
	return path.Join(userID, thumbnailsDir, thumbnailID+ThumbnailFileExtension)
}
