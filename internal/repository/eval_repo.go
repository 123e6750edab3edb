package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"chefmate-backend/internal/models"
)

type EvalRepo struct {
	pool *pgxpool.Pool
}

func NewEvalRepo(pool *pgxpool.Pool) *EvalRepo {
	return &EvalRepo{pool: pool}
}

// CreateJob inserts the job row plus one placeholder result row per query,
// all in a single transaction. Result rows start with response and
// error_message NULL and get filled in by the worker.
func (r *EvalRepo) CreateJob(ctx context.Context, j *models.EvalJob, queries []string) error {
	j.ID = uuid.New()
	j.Status = "pending"
	j.Total = len(queries)
	j.Completed = 0
	j.RetryCount = 0
	j.MaxRetries = 3

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	query := `INSERT INTO eval_jobs (id, session_id, status, total, completed, retry_count, max_retries)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`

	err = tx.QueryRow(ctx, query,
		j.ID, j.SessionID, j.Status, j.Total, j.Completed, j.RetryCount, j.MaxRetries,
	).Scan(&j.CreatedAt)
	if err != nil {
		tx.Rollback(ctx)
		return err
	}

	for i, q := range queries {
		_, err := tx.Exec(ctx,
			"INSERT INTO eval_results (id, job_id, seq, query) VALUES ($1, $2, $3, $4)",
			uuid.New(), j.ID, i+1, q,
		)
		if err != nil {
			tx.Rollback(ctx)
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *EvalRepo) GetJob(ctx context.Context, id uuid.UUID) (*models.EvalJob, error) {
	j := &models.EvalJob{}
	query := `SELECT id, session_id, status, total, completed, retry_count, max_retries, error_message, created_at, completed_at
		FROM eval_jobs WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&j.ID, &j.SessionID, &j.Status, &j.Total, &j.Completed,
		&j.RetryCount, &j.MaxRetries, &j.ErrorMessage, &j.CreatedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (r *EvalRepo) ListJobsBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.EvalJob, error) {
	query := `SELECT id, session_id, status, total, completed, retry_count, max_retries, error_message, created_at, completed_at
		FROM eval_jobs WHERE session_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]*models.EvalJob, 0)
	for rows.Next() {
		j := &models.EvalJob{}
		err := rows.Scan(
			&j.ID, &j.SessionID, &j.Status, &j.Total, &j.Completed,
			&j.RetryCount, &j.MaxRetries, &j.ErrorMessage, &j.CreatedAt, &j.CompletedAt,
		)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}

	return jobs, rows.Err()
}

func (r *EvalRepo) GetResults(ctx context.Context, jobID uuid.UUID) ([]*models.EvalResult, error) {
	query := `SELECT id, job_id, seq, query, response, error_message, latency_ms, created_at
		FROM eval_results WHERE job_id = $1 ORDER BY seq ASC`

	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*models.EvalResult, 0)
	for rows.Next() {
		res := &models.EvalResult{}
		err := rows.Scan(
			&res.ID, &res.JobID, &res.Seq, &res.Query,
			&res.Response, &res.ErrorMessage, &res.LatencyMS, &res.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	return results, rows.Err()
}

func (r *EvalRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := "UPDATE eval_jobs SET status = $1 WHERE id = $2"
	if status == "completed" || status == "failed" {
		now := time.Now()
		query = "UPDATE eval_jobs SET status = $1, completed_at = $2 WHERE id = $3"
		_, err := r.pool.Exec(ctx, query, status, now, id)
		return err
	}
	_, err := r.pool.Exec(ctx, query, status, id)
	return err
}

func (r *EvalRepo) UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE eval_jobs SET error_message = $1, retry_count = $2 WHERE id = $3",
		errMsg, retryCount, id,
	)
	return err
}

func (r *EvalRepo) SetResult(ctx context.Context, jobID uuid.UUID, seq int, response, errMsg *string, latencyMS *int) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE eval_results SET response = $1, error_message = $2, latency_ms = $3 WHERE job_id = $4 AND seq = $5",
		response, errMsg, latencyMS, jobID, seq,
	)
	return err
}

// IncrementCompleted bumps the job's completed counter and returns the new
// value, so concurrent query workers get distinct progress numbers.
func (r *EvalRepo) IncrementCompleted(ctx context.Context, jobID uuid.UUID) (int, error) {
	var completed int
	err := r.pool.QueryRow(ctx,
		"UPDATE eval_jobs SET completed = completed + 1 WHERE id = $1 RETURNING completed",
		jobID,
	).Scan(&completed)
	if err != nil {
		return 0, err
	}
	return completed, nil
}

// ResetProgress zeroes the completed counter before a retry re-runs the job.
func (r *EvalRepo) ResetProgress(ctx context.Context, jobID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "UPDATE eval_jobs SET completed = 0 WHERE id = $1", jobID)
	return err
}

func (r *EvalRepo) CountOutcomes(ctx context.Context, jobID uuid.UUID) (succeeded int, failed int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE response IS NOT NULL),
			COUNT(*) FILTER (WHERE error_message IS NOT NULL)
		FROM eval_results WHERE job_id = $1
	`, jobID).Scan(&succeeded, &failed)
	return
}

func (r *EvalRepo) HasActiveJobForSession(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM eval_jobs WHERE session_id = $1 AND status IN ('pending', 'processing'))",
		sessionID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *EvalRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM eval_jobs WHERE status IN ('completed', 'failed') AND completed_at < $1",
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
