package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"conceptforge/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository using PostgreSQL.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository constructs a finalization job repository.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// createJobSQL keeps at most one non-terminal job per gallery item: the
// insert is a no-op when a live job exists, which CreateJob reports as
// ErrConflict.
const createJobSQL = `
INSERT INTO finalization_jobs (task_id, gallery_item_id, status, progress, error_message)
SELECT $1, $2, $3, $4, $5
WHERE NOT EXISTS (
    SELECT 1 FROM finalization_jobs
    WHERE gallery_item_id = $2
      AND status NOT IN ('SUCCEEDED', 'FAILED')
);
`

// applyPollSQL folds a snapshot into a stored job. Terminal rows never
// match, progress never moves backward, and a stale non-terminal snapshot
// matches nothing.
const applyPollSQL = `
UPDATE finalization_jobs
SET status = $2,
    progress = GREATEST(progress, $3),
    error_message = CASE WHEN $4 <> '' THEN $4 ELSE error_message END,
    updated_at = NOW()
WHERE task_id = $1
  AND status NOT IN ('SUCCEEDED', 'FAILED')
  AND ($2 IN ('SUCCEEDED', 'FAILED') OR $3 >= progress)
RETURNING task_id;
`

// CreateJob inserts a finalization job. The guarded insert keeps at most one
// non-terminal job per gallery item; a second live job surfaces ErrConflict.
func (r *JobRepositoryPG) CreateJob(ctx context.Context, job *domain.FinalizationJob) error {
	tag, err := r.pool.Exec(ctx, createJobSQL,
		job.TaskID,
		job.GalleryItemID,
		job.Status,
		job.Progress,
		job.ErrorMessage,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: gallery item %s does not exist", domain.ErrValidation, job.GalleryItemID)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: gallery item %s already has a live finalization job", domain.ErrConflict, job.GalleryItemID)
	}
	return nil
}

// GetJob fetches a finalization job by task id.
func (r *JobRepositoryPG) GetJob(ctx context.Context, taskID string) (*domain.FinalizationJob, error) {
	query := `
SELECT task_id, gallery_item_id, status, progress, COALESCE(error_message, ''), created_at, updated_at
FROM finalization_jobs
WHERE task_id = $1;
`
	return r.scanJob(r.pool.QueryRow(ctx, query, taskID), taskID)
}

// JobForItem returns the most recent finalization job for a gallery item.
func (r *JobRepositoryPG) JobForItem(ctx context.Context, galleryItemID string) (*domain.FinalizationJob, error) {
	query := `
SELECT task_id, gallery_item_id, status, progress, COALESCE(error_message, ''), created_at, updated_at
FROM finalization_jobs
WHERE gallery_item_id = $1
ORDER BY created_at DESC
LIMIT 1;
`
	return r.scanJob(r.pool.QueryRow(ctx, query, galleryItemID), galleryItemID)
}

// ApplyPoll folds a polled snapshot into the stored job. Terminal rows are
// left untouched and progress never moves backward for a non-terminal
// snapshot. The returned flag reports whether this call made the job
// terminal, so the caller can trigger the one-time model materialization.
func (r *JobRepositoryPG) ApplyPoll(ctx context.Context, taskID string, status domain.JobStatus, progress int, errMsg string) (*domain.FinalizationJob, bool, error) {
	var updated string
	transitioned := false
	err := r.pool.QueryRow(ctx, applyPollSQL, taskID, status, progress, errMsg).Scan(&updated)
	switch {
	case err == nil:
		transitioned = status.Terminal()
	case errors.Is(err, pgx.ErrNoRows):
		// Already terminal, or a stale snapshot: the row stays as recorded.
	default:
		return nil, false, err
	}

	job, err := r.GetJob(ctx, taskID)
	if err != nil {
		return nil, false, err
	}
	return job, transitioned, nil
}

func (r *JobRepositoryPG) scanJob(row pgx.Row, key string) (*domain.FinalizationJob, error) {
	var job domain.FinalizationJob
	if err := row.Scan(
		&job.TaskID,
		&job.GalleryItemID,
		&job.Status,
		&job.Progress,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: finalization job %s", domain.ErrNotFound, key)
		}
		return nil, err
	}
	return &job, nil
}
