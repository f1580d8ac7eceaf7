package models

import "gorm.io/datatypes"

// Face is one face registered in a recognition collection. The oracle assigns
// ID, which is only unique within its collection.
// It corresponds to the 'faces' table.
type Face struct {
	ID           string         `gorm:"primaryKey;size:64" json:"face_id"`
	CollectionID string         `gorm:"primaryKey;size:255" json:"collection_id"`
	ImageID      string         `gorm:"not null;size:36;index" json:"image_id"`
	UserID       string         `gorm:"not null;size:36;index" json:"user_id"`
	JobID        *string        `gorm:"size:36;index" json:"job_id,omitempty"` // Nullable
	Confidence   float64        `gorm:"not null;default:0" json:"confidence"`
	Detail       datatypes.JSON `json:"detail,omitempty"` // pose/quality/demographics, informational only
	CreatedAt    int64          `gorm:"not null" json:"created_at"`

	Image *Image `gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE" json:"image,omitempty"` // Belongs to Image
}

// TableName explicitly sets the table name for GORM.
func (Face) TableName() string {
	return "faces"
}
