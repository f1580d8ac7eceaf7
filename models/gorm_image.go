package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Image represents an uploaded photo owned by a user using GORM.
// It corresponds to the 'images' table.
type Image struct {
	ID         string      `gorm:"primaryKey;size:36" json:"image_id"`
	UserID     string      `gorm:"not null;size:36;index:idx_images_page,priority:1" json:"user_id"`
	FolderID   *string     `gorm:"size:36;index:idx_images_page,priority:2" json:"folder_id,omitempty"` // Nullable
	FileName   string      `gorm:"not null" json:"file_name"`
	StorageKey string      `gorm:"not null" json:"storage_key"` // object key in blob storage
	Status     ImageStatus `gorm:"not null;size:32;index:idx_images_page,priority:3" json:"status"`

	// quality gate outcome
	FacesDetected      bool `gorm:"not null;default:false" json:"faces_detected"`
	FacesDetectedCount int  `gorm:"not null;default:0" json:"faces_detected_count"`
	ImageQualityOK     bool `gorm:"not null;default:false" json:"image_quality_ok"`

	// clustering outcome
	MatchedFaceIDs             datatypes.JSONSlice[string] `json:"matched_face_ids,omitempty"`
	FacesMatchedCount          int                         `gorm:"not null;default:0" json:"faces_matched_count"`
	SkippedFacesIndexing       bool                        `gorm:"not null;default:false" json:"skipped_faces_indexing"`
	FacesIndexedCount          int                         `gorm:"not null;default:0" json:"faces_indexed_count"`
	FacesIndexingFailedCount   int                         `gorm:"not null;default:0" json:"faces_indexing_failed_count"`
	FacesIndexingFailedReasons datatypes.JSONSlice[string] `json:"faces_indexing_failed_reasons,omitempty"`

	// raw oracle responses, kept for audit/replay
	SearchFacesResponse datatypes.JSON `json:"-"`
	IndexFacesResponse  datatypes.JSON `json:"-"`

	CreatedAt int64          `gorm:"not null" json:"created_at"`        // Unix timestamp
	UpdatedAt int64          `gorm:"not null" json:"updated_at"`        // Unix timestamp
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"` // For soft deletes

	// Relationships
	Faces []Face `gorm:"foreignKey:ImageID;references:ID" json:"faces,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Image) TableName() string {
	return "images"
}
