package domain

import "time"

// Transition enumerates the transition effects a shot can carry into the
// rendered video.
const (
	TransitionCrossfade = "Crossfade"
	TransitionKenBurns  = "Ken Burns Effect"
	TransitionVolumeMix = "Volume Mix"
)

// Shot is one storyboard frame of a story: an image prompt, its generated
// image and the narration spoken over it. Shots are created server-side as a
// byproduct of story generation; the client only observes and updates them.
type Shot struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	StoryID    string    `gorm:"index;type:varchar(64)" json:"storyId"`
	SortOrder  int       `json:"sortOrder"`
	Title      string    `json:"title"`
	Prompt     string    `gorm:"type:text" json:"prompt"`
	ImageURL   string    `json:"imageUrl"`
	Narration  string    `gorm:"type:text" json:"narration"`
	Transition string    `json:"transition"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName pins the table used by the local cache.
func (Shot) TableName() string {
	return "shots"
}

// ShotEdit is the user's in-progress edit buffer for one shot. It is what a
// regeneration request submits; on a failed regeneration these values must
// survive so the user does not lose their edits.
type ShotEdit struct {
	ShotID     string
	Prompt     string
	Narration  string
	Transition string
}
