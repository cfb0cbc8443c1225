package domain

import "time"

// TimelineStatus enumerates timeline lifecycle states.
type TimelineStatus string

const (
	TimelineStatusDraft      TimelineStatus = "draft"
	TimelineStatusGenerating TimelineStatus = "generating"
	TimelineStatusReady      TimelineStatus = "ready"
)

// Timeline is an ordered multi-segment video production.
// SegmentCount and TotalDurationSec are denormalized caches recomputed by the
// repository whenever segments are added or removed.
type Timeline struct {
	ID               string
	OwnerID          string
	Title            string
	SegmentCount     int
	TotalDurationSec int
	Status           TimelineStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
