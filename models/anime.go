package models

import (
	"fmt"
	"strings"
	"time"
)

// WatchStatus is the user-facing lifecycle state of a tracked series.
type WatchStatus string

const (
	StatusWatching  WatchStatus = "watching"
	StatusCompleted WatchStatus = "completed"
	StatusDropped   WatchStatus = "dropped"
)

// ParseWatchStatus validates a raw status string.
func ParseWatchStatus(raw string) (WatchStatus, error) {
	switch WatchStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusWatching:
		return StatusWatching, nil
	case StatusCompleted:
		return StatusCompleted, nil
	case StatusDropped:
		return StatusDropped, nil
	default:
		return "", fmt.Errorf("unknown watch status %q", raw)
	}
}

// Anime is a normalized series record produced by the metadata service,
// suitable for tracking or display. For airing series TotalEpisodes and
// NextEpisodeDate are locally computed projections, not source data.
type Anime struct {
	MALID           int     `json:"mal_id"`
	Title           string  `json:"title"`
	Airing          bool    `json:"airing"`
	TotalEpisodes   int     `json:"totalEpisodes"`
	NextEpisodeDate *string `json:"nextEpisodeDate"` // RFC3339, null when unknown
	Picture         string  `json:"picture,omitempty"`
}

// TrackedAnime is a user's persisted progress entry for one series.
type TrackedAnime struct {
	ID              string      `json:"id"`
	UserID          string      `json:"userId"`
	MALID           int         `json:"mal_id"`
	Title           string      `json:"title"`
	Image           *string     `json:"image"`
	TotalEpisodes   int         `json:"totalEpisodes"`
	WatchedEpisodes int         `json:"watchedEpisodes"`
	Airing          bool        `json:"airing"`
	NextEpisodeDate *string     `json:"nextEpisodeDate"`
	Status          WatchStatus `json:"status"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}
