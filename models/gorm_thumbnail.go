package models

// Thumbnail is the small square image derived for one Face.
// It corresponds to the 'thumbnails' table.
type Thumbnail struct {
	ID           string `gorm:"primaryKey;size:36" json:"thumbnail_id"`
	FaceID       string `gorm:"not null;size:64;uniqueIndex:idx_thumbnails_face,priority:2" json:"face_id"`
	CollectionID string `gorm:"not null;size:255;uniqueIndex:idx_thumbnails_face,priority:1" json:"collection_id"`
	StorageKey   string `gorm:"not null" json:"storage_key"`
	CreatedAt    int64  `gorm:"not null" json:"created_at"`
	UpdatedAt    int64  `gorm:"not null" json:"updated_at"`
}

// TableName explicitly sets the table name for GORM.
func (Thumbnail) TableName() string {
	return "thumbnails"
}
