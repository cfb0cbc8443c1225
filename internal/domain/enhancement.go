package domain

import "time"

// EnhancementStatus enumerates enhancement job lifecycle states. Done and
// failed are terminal; no transition ever leaves a terminal state.
type EnhancementStatus string

const (
	EnhancementStatusQueued     EnhancementStatus = "queued"
	EnhancementStatusProcessing EnhancementStatus = "processing"
	EnhancementStatusDone       EnhancementStatus = "done"
	EnhancementStatusFailed     EnhancementStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s EnhancementStatus) IsTerminal() bool {
	return s == EnhancementStatusDone || s == EnhancementStatusFailed
}

// EnhancementJob is one asynchronous upscaling request. Jobs are owned by a
// segment but tracked separately so historical attempts stay inspectable;
// the segment's enhance fields are a denormalized projection of the latest
// job, updated in the same transaction as the job write.
type EnhancementJob struct {
	ID                string
	SegmentID         string
	TimelineID        string
	UserID            string
	ModelID           string
	Provider          string
	InputURL          string
	OutputURL         string
	ScaleFactor       int
	TargetResolution  string
	Status            EnhancementStatus
	Progress          int
	ErrorMessage      string
	StartedAt         *time.Time
	CompletedAt       *time.Time
	ProcessingTimeSec float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
