package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
	"github.com/arturoeanton/go-commit-reporter/internal/port"
)

// LeaseExpiredReason is recorded on jobs whose worker vanished on the last attempt.
const LeaseExpiredReason = "job lease expired before completion"

const jobColumns = `id, status, progress, request, result, failed_reason, attempts_made, max_attempts,
	backoff_ms, lease_until, worker_id, created_at, started_at, finished_at`

// JobQueue implements port.JobQueue on the report_jobs table. Claims use
// FOR UPDATE SKIP LOCKED so several workers can share the table.
type JobQueue struct {
	db  *sql.DB
	now func() time.Time
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.ReportJob, error) {
	var (
		job       domain.ReportJob
		status    string
		request   []byte
		result    []byte
		backoffMS int64
		lease     sql.NullTime
		started   sql.NullTime
		finished  sql.NullTime
	)
	err := row.Scan(
		&job.ID, &status, &job.Progress, &request, &result, &job.FailureReason,
		&job.AttemptsMade, &job.MaxAttempts, &backoffMS, &lease, &job.WorkerID,
		&job.CreatedAt, &started, &finished,
	)
	if err != nil {
		return nil, err
	}

	job.Status = domain.JobStatus(status)
	job.BackoffDelay = time.Duration(backoffMS) * time.Millisecond
	if err := json.Unmarshal(request, &job.Request); err != nil {
		return nil, fmt.Errorf("decode job request: %w", err)
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &job.Result); err != nil {
			return nil, fmt.Errorf("decode job result: %w", err)
		}
	}
	job.LeaseUntil = nullTime(lease)
	job.StartedAt = nullTime(started)
	job.FinishedAt = nullTime(finished)
	return &job, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// Enqueue inserts a new job row.
func (q *JobQueue) Enqueue(ctx context.Context, job *domain.ReportJob) error {
	request, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("encode job request: %w", err)
	}

	query := `INSERT INTO report_jobs (id, status, progress, request, max_attempts, backoff_ms, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = q.db.ExecContext(ctx, query,
		job.ID, string(job.Status), job.Progress, request,
		job.MaxAttempts, job.BackoffDelay.Milliseconds(), job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

// Get returns a job by id.
func (q *JobQueue) Get(ctx context.Context, id string) (*domain.ReportJob, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM report_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs newest first.
func (q *JobQueue) List(ctx context.Context, offset, limit int) ([]*domain.ReportJob, error) {
	query := `SELECT ` + jobColumns + ` FROM report_jobs ORDER BY created_at DESC, id DESC OFFSET $1`
	args := []interface{}{max(offset, 0)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*domain.ReportJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Counts aggregates jobs per state.
func (q *JobQueue) Counts(ctx context.Context) (domain.JobCounts, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM report_jobs GROUP BY status`)
	if err != nil {
		return domain.JobCounts{}, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	var counts domain.JobCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return domain.JobCounts{}, fmt.Errorf("scan job count: %w", err)
		}
		counts.AddN(domain.JobStatus(status), n)
	}
	return counts, rows.Err()
}

// Claim reaps exhausted expired leases, then leases the oldest runnable job.
func (q *JobQueue) Claim(ctx context.Context, workerID string, lease time.Duration) (*domain.ReportJob, error) {
	now := q.now()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("claim job: begin: %w", err)
	}
	defer tx.Rollback()

	reap := `UPDATE report_jobs
	         SET status = 'failed', failed_reason = $1, lease_until = NULL, worker_id = '', finished_at = $2
	         WHERE status = 'active' AND lease_until <= $2 AND attempts_made >= max_attempts`
	if _, err := tx.ExecContext(ctx, reap, LeaseExpiredReason, now); err != nil {
		return nil, fmt.Errorf("claim job: reap: %w", err)
	}

	claim := `UPDATE report_jobs
	          SET status = 'active', attempts_made = attempts_made + 1, worker_id = $1,
	              lease_until = $2, started_at = COALESCE(started_at, $3)
	          WHERE id = (
	              SELECT id FROM report_jobs
	              WHERE status = 'queued' OR (status = 'active' AND lease_until <= $3)
	              ORDER BY created_at
	              LIMIT 1
	              FOR UPDATE SKIP LOCKED
	          )
	          RETURNING ` + jobColumns
	job, err := scanJob(tx.QueryRowContext(ctx, claim, workerID, now.Add(lease), now))
	if errors.Is(err, sql.ErrNoRows) {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("claim job: commit: %w", err)
		}
		return nil, port.ErrNoJobAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim job: commit: %w", err)
	}
	return job, nil
}

// ownedClause restricts an UPDATE to a job still claimed by the worker in $2.
const ownedClause = `id = $1 AND worker_id = $2 AND worker_id <> '' AND status = 'active'`

// UpdateProgress sets the progress of a claimed job and renews its lease.
func (q *JobQueue) UpdateProgress(ctx context.Context, id, workerID string, progress int, lease time.Duration) error {
	progress = min(max(progress, 0), 100)
	query := `UPDATE report_jobs
	          SET progress = $3,
	              lease_until = CASE WHEN $4::bigint > 0 THEN $5 ELSE lease_until END
	          WHERE ` + ownedClause
	res, err := q.db.ExecContext(ctx, query, id, workerID, progress, lease.Milliseconds(), q.now().Add(lease))
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return q.expectOwned(ctx, res, id, workerID)
}

// Complete stores result and moves the job to completed.
func (q *JobQueue) Complete(ctx context.Context, id, workerID string, result []string) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode job result: %w", err)
	}
	query := `UPDATE report_jobs
	          SET status = 'completed', progress = 100, result = $3, failed_reason = '',
	              lease_until = NULL, worker_id = '', finished_at = $4
	          WHERE ` + ownedClause
	res, err := q.db.ExecContext(ctx, query, id, workerID, data, q.now())
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return q.expectOwned(ctx, res, id, workerID)
}

// Fail records reason and either parks the job for a retry or fails it for good.
func (q *JobQueue) Fail(ctx context.Context, id, workerID string, reason string, retryable bool) (*domain.ReportJob, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fail job: begin: %w", err)
	}
	defer tx.Rollback()

	job, err := scanJob(tx.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM report_jobs WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fail job: %w", err)
	}
	if err := leaseHeld(job, workerID); err != nil {
		return nil, err
	}

	now := q.now()
	job.FailureReason = reason
	job.WorkerID = ""
	if retryable && job.CanRetry() {
		next := now.Add(job.RetryDelay())
		job.LeaseUntil = &next
	} else {
		job.Status = domain.JobStatusFailed
		job.LeaseUntil = nil
		job.FinishedAt = &now
	}

	update := `UPDATE report_jobs
	           SET status = $2, failed_reason = $3, lease_until = $4, worker_id = '', finished_at = $5
	           WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update,
		id, string(job.Status), reason, job.LeaseUntil, job.FinishedAt,
	); err != nil {
		return nil, fmt.Errorf("fail job: update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("fail job: commit: %w", err)
	}
	return job, nil
}

func leaseHeld(job *domain.ReportJob, workerID string) error {
	if job.Status != domain.JobStatusActive || job.WorkerID == "" || job.WorkerID != workerID {
		return fmt.Errorf("job %s (%s, worker %q): %w", job.ID, job.Status, job.WorkerID, port.ErrLeaseLost)
	}
	return nil
}

// expectOwned turns a zero-row update into ErrJobNotFound or ErrLeaseLost.
func (q *JobQueue) expectOwned(ctx context.Context, res sql.Result, id, workerID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	job, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := leaseHeld(job, workerID); err != nil {
		return err
	}
	return fmt.Errorf("job %s: %w", id, port.ErrLeaseLost)
}
