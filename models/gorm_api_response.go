package models

import "gorm.io/datatypes"

type APIResponseType string

const (
	APIResponseDetectLabels       APIResponseType = "DETECT_LABELS"
	APIResponseSearchFacesByImage APIResponseType = "SEARCH_FACES_BY_IMAGE"
	APIResponseIndexFaces         APIResponseType = "INDEX_FACES"
)

// APIResponse keeps a raw recognition response for audit and replay.
// It corresponds to the 'api_responses' table.
type APIResponse struct {
	ID        uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string          `gorm:"not null;size:36;index:idx_api_responses_image,priority:1" json:"user_id"`
	ImageID   string          `gorm:"not null;size:36;index:idx_api_responses_image,priority:2" json:"image_id"`
	Type      APIResponseType `gorm:"not null;size:32" json:"type"`
	Response  datatypes.JSON  `gorm:"not null" json:"response"`
	CreatedAt int64           `gorm:"not null" json:"created_at"`
}

// TableName explicitly sets the table name for GORM.
func (APIResponse) TableName() string {
	return "api_responses"
}
