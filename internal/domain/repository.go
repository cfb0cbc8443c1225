package domain

import "context"

// TimelineRepository defines persistence for timelines.
type TimelineRepository interface {
	Create(ctx context.Context, timeline *Timeline) error
	GetByID(ctx context.Context, id string) (*Timeline, error)
	UpdateStatus(ctx context.Context, id string, status TimelineStatus) error
}

// SegmentRepository defines persistence and ordering operations for segments.
// Create and Delete recompute the owning timeline's denormalized segment
// count and total duration; Delete additionally shifts trailing positions
// down by one.
type SegmentRepository interface {
	Create(ctx context.Context, segment *Segment) error
	GetByID(ctx context.Context, id string) (*Segment, error)
	ListByTimeline(ctx context.Context, timelineID string) ([]Segment, error)
	Update(ctx context.Context, segment *Segment) error
	Delete(ctx context.Context, id string) error

	// ClaimForGeneration atomically moves the segment out of any
	// non-generating state into generating. It returns
	// ErrGenerationInFlight when the segment is already generating, so at
	// most one generation operation can hold a segment at a time.
	ClaimForGeneration(ctx context.Context, id string) error
	SaveGenerationResult(ctx context.Context, id string, out SegmentGenerationOutput) error
	SaveGenerationError(ctx context.Context, id string, message string, elapsedSec float64) error
	// ReleaseClaim returns a generating segment to pending, used when an
	// orchestration run is cancelled before the provider call completes.
	ReleaseClaim(ctx context.Context, id string) error
}

// EnhancementJobRepository defines persistence for enhancement jobs. The
// job row is the source of truth; every write that changes job state also
// refreshes the owning segment's enhance projection inside the same
// transaction.
type EnhancementJobRepository interface {
	Create(ctx context.Context, job *EnhancementJob) error
	GetByID(ctx context.Context, id string) (*EnhancementJob, error)
	LatestBySegment(ctx context.Context, segmentID string) (*EnhancementJob, error)
	ListPendingByTimeline(ctx context.Context, timelineID string) ([]EnhancementJob, error)
	// ClaimNextQueued atomically moves the oldest queued job into
	// processing (setting started_at and the segment projection) and
	// returns it, or ErrNotFound when the queue is empty.
	ClaimNextQueued(ctx context.Context) (*EnhancementJob, error)
	// Transition persists the job's current fields and mirrors them onto
	// the segment projection transactionally.
	Transition(ctx context.Context, job *EnhancementJob) error
}
