package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
)

const segmentColumns = `
id, timeline_id, position, duration_sec, model_id, generation_mode, prompt_text, source_url,
status, video_url, first_frame_url, last_frame_url, thumbnail_url, generation_time_sec, error_message,
enhance_enabled, enhance_model, enhance_status, enhanced_video_url, created_at, updated_at`

// SegmentRepositoryPG implements domain.SegmentRepository.
type SegmentRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewSegmentRepository creates a new segment repository backed by PostgreSQL.
func NewSegmentRepository(pool *pgxpool.Pool) *SegmentRepositoryPG {
	return &SegmentRepositoryPG{pool: pool}
}

// Create inserts a segment and refreshes the timeline's denormalized
// segment count and total duration in the same transaction.
func (r *SegmentRepositoryPG) Create(ctx context.Context, segment *domain.Segment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
INSERT INTO segments (
    id, timeline_id, position, duration_sec, model_id, generation_mode, prompt_text, source_url,
    status, enhance_enabled, enhance_model, enhance_status
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
`
	if _, err := tx.Exec(ctx, query,
		segment.ID,
		segment.TimelineID,
		segment.Position,
		segment.DurationSec,
		segment.ModelID,
		segment.GenerationMode,
		segment.PromptText,
		segment.SourceURL,
		segment.Status,
		segment.EnhanceEnabled,
		segment.EnhanceModel,
		segment.EnhanceStatus,
	); err != nil {
		return err
	}
	if err := recomputeTimelineAggregates(ctx, tx, segment.TimelineID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByID fetches a segment by its identifier.
func (r *SegmentRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Segment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+segmentColumns+` FROM segments WHERE id = $1;`, id)
	segment, err := scanSegment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return segment, nil
}

// ListByTimeline returns the timeline's segments ordered by position.
func (r *SegmentRepositoryPG) ListByTimeline(ctx context.Context, timelineID string) ([]domain.Segment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+segmentColumns+` FROM segments WHERE timeline_id = $1 ORDER BY position ASC;`, timelineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []domain.Segment
	for rows.Next() {
		segment, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, *segment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return segments, nil
}

// Update persists the segment's mutable request fields and enhancement
// settings, then refreshes the timeline aggregates since the duration may
// have changed. Generation outputs go through the dedicated Save methods.
func (r *SegmentRepositoryPG) Update(ctx context.Context, segment *domain.Segment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
UPDATE segments
SET duration_sec = $2,
    model_id = $3,
    generation_mode = $4,
    prompt_text = $5,
    source_url = $6,
    enhance_enabled = $7,
    enhance_model = $8,
    updated_at = NOW()
WHERE id = $1;
`
	tag, err := tx.Exec(ctx, query,
		segment.ID,
		segment.DurationSec,
		segment.ModelID,
		segment.GenerationMode,
		segment.PromptText,
		segment.SourceURL,
		segment.EnhanceEnabled,
		segment.EnhanceModel,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if err := recomputeTimelineAggregates(ctx, tx, segment.TimelineID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Delete removes the segment, shifts every trailing position down by one
// and refreshes the timeline aggregates, all in one transaction.
func (r *SegmentRepositoryPG) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var timelineID string
	var position int
	row := tx.QueryRow(ctx, `DELETE FROM segments WHERE id = $1 RETURNING timeline_id, position;`, id)
	if err := row.Scan(&timelineID, &position); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	if _, err := tx.Exec(ctx, `
UPDATE segments
SET position = position - 1,
    updated_at = NOW()
WHERE timeline_id = $1 AND position > $2;
`, timelineID, position); err != nil {
		return err
	}
	if err := recomputeTimelineAggregates(ctx, tx, timelineID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ClaimForGeneration atomically transitions the segment into generating.
// A segment already generating is left untouched and reported as in flight.
func (r *SegmentRepositoryPG) ClaimForGeneration(ctx context.Context, id string) error {
	query := `
UPDATE segments
SET status = 'generating',
    error_message = '',
    updated_at = NOW()
WHERE id = $1 AND status <> 'generating';
`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM segments WHERE id = $1);`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return fmt.Errorf("segment %s: %w", id, domain.ErrGenerationInFlight)
	}
	return nil
}

// SaveGenerationResult lands the segment in generated with all artifacts.
func (r *SegmentRepositoryPG) SaveGenerationResult(ctx context.Context, id string, out domain.SegmentGenerationOutput) error {
	query := `
UPDATE segments
SET status = 'generated',
    video_url = $2,
    first_frame_url = $3,
    last_frame_url = $4,
    thumbnail_url = $5,
    generation_time_sec = $6,
    error_message = '',
    updated_at = NOW()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, id, out.VideoURL, out.FirstFrameURL, out.LastFrameURL, out.ThumbnailURL, out.GenerationTimeSec)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveGenerationError lands the segment in error with the failure message.
func (r *SegmentRepositoryPG) SaveGenerationError(ctx context.Context, id string, message string, elapsedSec float64) error {
	query := `
UPDATE segments
SET status = 'error',
    error_message = $2,
    generation_time_sec = $3,
    updated_at = NOW()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, id, message, elapsedSec)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReleaseClaim returns a generating segment to pending after a cancelled run.
func (r *SegmentRepositoryPG) ReleaseClaim(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE segments
SET status = 'pending',
    updated_at = NOW()
WHERE id = $1 AND status = 'generating';
`, id)
	return err
}

func recomputeTimelineAggregates(ctx context.Context, tx pgx.Tx, timelineID string) error {
	_, err := tx.Exec(ctx, `
UPDATE timelines
SET segment_count = sub.count,
    total_duration_sec = sub.total,
    updated_at = NOW()
FROM (
    SELECT COUNT(*) AS count, COALESCE(SUM(duration_sec), 0) AS total
    FROM segments
    WHERE timeline_id = $1
) AS sub
WHERE timelines.id = $1;
`, timelineID)
	return err
}

func scanSegment(row pgx.Row) (*domain.Segment, error) {
	var segment domain.Segment
	if err := row.Scan(
		&segment.ID,
		&segment.TimelineID,
		&segment.Position,
		&segment.DurationSec,
		&segment.ModelID,
		&segment.GenerationMode,
		&segment.PromptText,
		&segment.SourceURL,
		&segment.Status,
		&segment.VideoURL,
		&segment.FirstFrameURL,
		&segment.LastFrameURL,
		&segment.ThumbnailURL,
		&segment.GenerationTimeSec,
		&segment.ErrorMessage,
		&segment.EnhanceEnabled,
		&segment.EnhanceModel,
		&segment.EnhanceStatus,
		&segment.EnhancedVideoURL,
		&segment.CreatedAt,
		&segment.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &segment, nil
}

var _ domain.SegmentRepository = (*SegmentRepositoryPG)(nil)
