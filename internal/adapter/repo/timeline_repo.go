package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
)

// TimelineRepositoryPG implements domain.TimelineRepository.
type TimelineRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewTimelineRepository creates a new timeline repository backed by PostgreSQL.
func NewTimelineRepository(pool *pgxpool.Pool) *TimelineRepositoryPG {
	return &TimelineRepositoryPG{pool: pool}
}

// Create inserts a new timeline record.
func (r *TimelineRepositoryPG) Create(ctx context.Context, timeline *domain.Timeline) error {
	query := `
INSERT INTO timelines (id, owner_id, title, segment_count, total_duration_sec, status)
VALUES ($1, $2, $3, $4, $5, $6);
`
	_, err := r.pool.Exec(ctx, query,
		timeline.ID,
		timeline.OwnerID,
		timeline.Title,
		timeline.SegmentCount,
		timeline.TotalDurationSec,
		timeline.Status,
	)
	return err
}

// GetByID fetches a timeline by its identifier.
func (r *TimelineRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Timeline, error) {
	query := `
SELECT id, owner_id, title, segment_count, total_duration_sec, status, created_at, updated_at
FROM timelines
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	var timeline domain.Timeline
	if err := row.Scan(
		&timeline.ID,
		&timeline.OwnerID,
		&timeline.Title,
		&timeline.SegmentCount,
		&timeline.TotalDurationSec,
		&timeline.Status,
		&timeline.CreatedAt,
		&timeline.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &timeline, nil
}

// UpdateStatus moves the timeline between draft, generating and ready.
func (r *TimelineRepositoryPG) UpdateStatus(ctx context.Context, id string, status domain.TimelineStatus) error {
	query := `
UPDATE timelines
SET status = $2,
    updated_at = NOW()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.TimelineRepository = (*TimelineRepositoryPG)(nil)
