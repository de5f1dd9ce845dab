package domain

import "time"

// Asset is the rendered video output of a story as shown in the asset
// library: a preview URL, a cover image and the rendering status. Progress is
// only meaningful while the asset is still generating.
type Asset struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	StoryID    string    `gorm:"index;type:varchar(64)" json:"storyId"`
	Title      string    `json:"title"`
	PreviewURL string    `json:"previewUrl"`
	CoverURL   string    `json:"coverUrl"`
	Duration   int       `json:"duration"`
	Status     Status    `json:"status"`
	Progress   int       `json:"progress"`
	Error      string    `json:"error"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName pins the table used by the local cache.
func (Asset) TableName() string {
	return "assets"
}
