package domain

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Style enumerates the visual styles the backend accepts for story generation.
type Style string

const (
	StyleMovie     Style = "movie"
	StyleAnimation Style = "animation"
	StyleRealistic Style = "realistic"
)

// ParseStyle normalizes a style value, defaulting to movie.
func ParseStyle(v string) Style {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case string(StyleAnimation):
		return StyleAnimation
	case string(StyleRealistic):
		return StyleRealistic
	default:
		return StyleMovie
	}
}

// Story is a user-submitted narrative and the root of the generation pipeline.
// The backend decomposes it into shots and eventually renders a video asset.
type Story struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title     string    `json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	Style     Style     `json:"style"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName pins the table used by the local cache.
func (Story) TableName() string {
	return "stories"
}

const fallbackTitleWords = 6

// FallbackTitle derives a display title from the story content for the title
// backfill on completion, used when the backend did not return one. The first
// few words are title-cased; an empty content yields "Untitled Story".
func FallbackTitle(content string) string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return "Untitled Story"
	}
	if len(words) > fallbackTitleWords {
		words = words[:fallbackTitleWords]
	}
	title := strings.Join(words, " ")
	title = strings.Trim(title, ".,!?;: ")
	return cases.Title(language.Und).String(title)
}
