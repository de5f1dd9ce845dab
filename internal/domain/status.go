package domain

import "strings"

// Status enumerates the lifecycle states shared by stories, shots and assets.
// Every entity starts as generating and settles into exactly one terminal
// state; only an explicit regeneration request opens a new generating phase.
type Status string

const (
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further polling is needed for this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ParseStatus normalizes a wire status value. Unknown or empty values are
// treated as generating so a half-created server record keeps being polled.
func ParseStatus(v string) Status {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case string(StatusCompleted):
		return StatusCompleted
	case string(StatusFailed):
		return StatusFailed
	default:
		return StatusGenerating
	}
}
