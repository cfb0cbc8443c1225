package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
)

const jobColumns = `
id, segment_id, timeline_id, user_id, model_id, provider, input_url, output_url,
scale_factor, target_resolution, status, progress, error_message,
started_at, completed_at, processing_time_sec, created_at, updated_at`

// EnhancementJobRepositoryPG implements domain.EnhancementJobRepository.
// The job row is the source of truth; every state-changing write refreshes
// the owning segment's enhance projection in the same transaction so the
// two can never drift apart.
type EnhancementJobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewEnhancementJobRepository creates a new job repository backed by PostgreSQL.
func NewEnhancementJobRepository(pool *pgxpool.Pool) *EnhancementJobRepositoryPG {
	return &EnhancementJobRepositoryPG{pool: pool}
}

// Create inserts a queued job and mirrors the queued state onto the segment.
func (r *EnhancementJobRepositoryPG) Create(ctx context.Context, job *domain.EnhancementJob) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
INSERT INTO enhancement_jobs (
    id, segment_id, timeline_id, user_id, model_id, provider, input_url,
    scale_factor, target_resolution, status, progress
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`
	if _, err := tx.Exec(ctx, query,
		job.ID,
		job.SegmentID,
		job.TimelineID,
		job.UserID,
		job.ModelID,
		job.Provider,
		job.InputURL,
		job.ScaleFactor,
		job.TargetResolution,
		job.Status,
		job.Progress,
	); err != nil {
		return err
	}
	if err := mirrorJobOntoSegment(ctx, tx, job); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetByID fetches a job by its identifier.
func (r *EnhancementJobRepositoryPG) GetByID(ctx context.Context, id string) (*domain.EnhancementJob, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM enhancement_jobs WHERE id = $1;`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// LatestBySegment returns the most recent job for the segment.
func (r *EnhancementJobRepositoryPG) LatestBySegment(ctx context.Context, segmentID string) (*domain.EnhancementJob, error) {
	row := r.pool.QueryRow(ctx, `
SELECT `+jobColumns+`
FROM enhancement_jobs
WHERE segment_id = $1
ORDER BY created_at DESC
LIMIT 1;
`, segmentID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListPendingByTimeline returns jobs still queued or processing.
func (r *EnhancementJobRepositoryPG) ListPendingByTimeline(ctx context.Context, timelineID string) ([]domain.EnhancementJob, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+jobColumns+`
FROM enhancement_jobs
WHERE timeline_id = $1 AND status IN ('queued', 'processing')
ORDER BY created_at ASC;
`, timelineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.EnhancementJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// ClaimNextQueued flips the oldest queued job into processing and returns
// it. SKIP LOCKED keeps concurrent workers off the same row.
func (r *EnhancementJobRepositoryPG) ClaimNextQueued(ctx context.Context) (*domain.EnhancementJob, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
UPDATE enhancement_jobs
SET status = 'processing',
    started_at = NOW(),
    progress = 0,
    updated_at = NOW()
WHERE id = (
    SELECT id FROM enhancement_jobs
    WHERE status = 'queued'
    ORDER BY created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
RETURNING `+jobColumns+`;
`)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := mirrorJobOntoSegment(ctx, tx, job); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

// Transition persists the job's current fields and refreshes the segment
// projection transactionally.
func (r *EnhancementJobRepositoryPG) Transition(ctx context.Context, job *domain.EnhancementJob) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
UPDATE enhancement_jobs
SET status = $2,
    progress = $3,
    output_url = $4,
    error_message = $5,
    started_at = $6,
    completed_at = $7,
    processing_time_sec = $8,
    updated_at = NOW()
WHERE id = $1;
`
	tag, err := tx.Exec(ctx, query,
		job.ID,
		job.Status,
		job.Progress,
		job.OutputURL,
		job.ErrorMessage,
		job.StartedAt,
		job.CompletedAt,
		job.ProcessingTimeSec,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	if err := mirrorJobOntoSegment(ctx, tx, job); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// mirrorJobOntoSegment writes the derived enhance projection. The mapping
// from job status to segment enhance status is one-to-one.
func mirrorJobOntoSegment(ctx context.Context, tx pgx.Tx, job *domain.EnhancementJob) error {
	_, err := tx.Exec(ctx, `
UPDATE segments
SET enhance_enabled = TRUE,
    enhance_model = $2,
    enhance_status = $3,
    enhanced_video_url = $4,
    updated_at = NOW()
WHERE id = $1;
`, job.SegmentID, job.ModelID, string(job.Status), job.OutputURL)
	return err
}

func scanJob(row pgx.Row) (*domain.EnhancementJob, error) {
	var job domain.EnhancementJob
	if err := row.Scan(
		&job.ID,
		&job.SegmentID,
		&job.TimelineID,
		&job.UserID,
		&job.ModelID,
		&job.Provider,
		&job.InputURL,
		&job.OutputURL,
		&job.ScaleFactor,
		&job.TargetResolution,
		&job.Status,
		&job.Progress,
		&job.ErrorMessage,
		&job.StartedAt,
		&job.CompletedAt,
		&job.ProcessingTimeSec,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &job, nil
}

var _ domain.EnhancementJobRepository = (*EnhancementJobRepositoryPG)(nil)
