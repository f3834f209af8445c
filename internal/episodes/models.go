package episodes

import (
	"strings"
	"time"
)

// Episode is one persisted podcast episode.
type Episode struct {
	ID                int64
	PodcastID         string
	PodcastName       string
	Title             string
	Category          string
	AudioURL          string
	Duration          string
	Published         bool
	Attempts          int
	LastFailureReason string
	ClaimToken        string
	ClaimedAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
	PublishedAt       *time.Time
}

// Label returns the stable download label for the episode.
func (e *Episode) Label() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(formatLabel(e.ID, e.Title))
}

// NewEpisode carries the fields discovered from a feed entry.
type NewEpisode struct {
	PodcastID   string
	PodcastName string
	Title       string
	Category    string
	AudioURL    string
	Duration    string
}

// ListOptions filters List.
type ListOptions struct {
	PendingOnly bool
	Limit       int
}

// Stats summarizes the store.
type Stats struct {
	Total     int
	Published int
	Pending   int
	Failing   int
	Claimed   int
	Exhausted int
}
