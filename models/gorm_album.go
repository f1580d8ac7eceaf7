package models

import "gorm.io/datatypes"

// Album is one materialized identity cluster: the images believed to show the
// person behind FaceID. Several rows may exist per face, one per processed page.
// It corresponds to the 'albums' table.
type Album struct {
	ID           string                      `gorm:"primaryKey;size:36" json:"album_id"`
	UserID       string                      `gorm:"not null;size:36;index" json:"user_id"`
	CollectionID string                      `gorm:"not null;size:255;index:idx_albums_face,priority:1" json:"collection_id"`
	FaceID       string                      `gorm:"not null;size:64;index:idx_albums_face,priority:2" json:"face_id"`
	ImageIDs     datatypes.JSONSlice[string] `gorm:"not null" json:"image_ids"`
	JobID        *string                     `gorm:"size:36;index" json:"job_id,omitempty"` // Nullable
	CreatedAt    int64                       `gorm:"not null" json:"created_at"`            // Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (Album) TableName() string {
	return "albums"
}

// FoldedAlbum is the identity-to-images view obtained by merging every Album
// row that shares a (collection, face) pair.
type FoldedAlbum struct {
	CollectionID string   `json:"collection_id"`
	FaceID       string   `json:"face_id"`
	ImageIDs     []string `json:"image_ids"`
	AlbumIDs     []string `json:"album_ids"`
	ThumbnailKey *string  `json:"thumbnail_key,omitempty"`
}
