package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
	"github.com/arturoeanton/go-commit-reporter/internal/port"
)

// LeaseExpiredReason is recorded on jobs whose worker vanished on the last attempt.
const LeaseExpiredReason = "job lease expired before completion"

// MemoryQueue implements port.JobQueue in process memory.
// Jobs survive only as long as the process does.
type MemoryQueue struct {
	mu    sync.Mutex
	jobs  map[string]*domain.ReportJob
	order []string // insertion order, oldest first
	now   func() time.Time
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		jobs: make(map[string]*domain.ReportJob),
		now:  time.Now,
	}
}

// Enqueue stores a copy of job.
func (q *MemoryQueue) Enqueue(_ context.Context, job *domain.ReportJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.jobs[job.ID]; ok {
		return fmt.Errorf("enqueue %s: duplicate job id", job.ID)
	}
	q.jobs[job.ID] = job.Clone()
	q.order = append(q.order, job.ID)
	return nil
}

// Get returns a snapshot of the job.
func (q *MemoryQueue) Get(_ context.Context, id string) (*domain.ReportJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, port.ErrJobNotFound
	}
	return job.Clone(), nil
}

// List returns snapshots newest first.
func (q *MemoryQueue) List(_ context.Context, offset, limit int) ([]*domain.ReportJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := slices.Clone(q.order)
	slices.Reverse(ids)
	if offset >= len(ids) {
		return []*domain.ReportJob{}, nil
	}
	ids = ids[max(offset, 0):]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	out := make([]*domain.ReportJob, 0, len(ids))
	for _, id := range ids {
		out = append(out, q.jobs[id].Clone())
	}
	return out, nil
}

// Counts aggregates jobs per state.
func (q *MemoryQueue) Counts(_ context.Context) (domain.JobCounts, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var c domain.JobCounts
	for _, job := range q.jobs {
		c.Add(job.Status)
	}
	return c, nil
}

// Claim leases the oldest runnable job: queued, or active with an elapsed lease
// (a retry whose backoff passed, or a run whose lease ran out).
func (q *MemoryQueue) Claim(_ context.Context, workerID string, lease time.Duration) (*domain.ReportJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()

	for _, id := range q.order {
		job := q.jobs[id]
		if !runnable(job, now) {
			continue
		}
		if !job.CanRetry() {
			q.finish(job, domain.JobStatusFailed, now)
			job.FailureReason = LeaseExpiredReason
			continue
		}

		job.Status = domain.JobStatusActive
		job.AttemptsMade++
		job.WorkerID = workerID
		until := now.Add(lease)
		job.LeaseUntil = &until
		if job.StartedAt == nil {
			started := now
			job.StartedAt = &started
		}
		return job.Clone(), nil
	}
	return nil, port.ErrNoJobAvailable
}

func runnable(job *domain.ReportJob, now time.Time) bool {
	switch job.Status {
	case domain.JobStatusQueued:
		return true
	case domain.JobStatusActive:
		return job.LeaseUntil != nil && !job.LeaseUntil.After(now)
	default:
		return false
	}
}

// owned returns the job while workerID holds its claim.
func (q *MemoryQueue) owned(id, workerID string) (*domain.ReportJob, error) {
	job, ok := q.jobs[id]
	if !ok {
		return nil, port.ErrJobNotFound
	}
	if job.Status != domain.JobStatusActive || job.WorkerID == "" || job.WorkerID != workerID {
		return nil, fmt.Errorf("job %s (%s, worker %q): %w", id, job.Status, job.WorkerID, port.ErrLeaseLost)
	}
	return job, nil
}

// UpdateProgress sets the progress of a claimed job and renews its lease.
func (q *MemoryQueue) UpdateProgress(_ context.Context, id, workerID string, progress int, lease time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, err := q.owned(id, workerID)
	if err != nil {
		return err
	}
	job.Progress = min(max(progress, 0), 100)
	if lease > 0 {
		until := q.now().Add(lease)
		job.LeaseUntil = &until
	}
	return nil
}

// Complete stores result and moves the job to completed.
func (q *MemoryQueue) Complete(_ context.Context, id, workerID string, result []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, err := q.owned(id, workerID)
	if err != nil {
		return err
	}
	job.Result = slices.Clone(result)
	job.Progress = 100
	job.FailureReason = ""
	q.finish(job, domain.JobStatusCompleted, q.now())
	return nil
}

// Fail records reason and either parks the job for a retry or fails it for good.
func (q *MemoryQueue) Fail(_ context.Context, id, workerID string, reason string, retryable bool) (*domain.ReportJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, err := q.owned(id, workerID)
	if err != nil {
		return nil, err
	}
	now := q.now()
	job.FailureReason = reason

	if retryable && job.CanRetry() {
		next := now.Add(job.RetryDelay())
		job.LeaseUntil = &next
		job.WorkerID = ""
		return job.Clone(), nil
	}

	q.finish(job, domain.JobStatusFailed, now)
	return job.Clone(), nil
}

func (q *MemoryQueue) finish(job *domain.ReportJob, status domain.JobStatus, now time.Time) {
	job.Status = status
	job.LeaseUntil = nil
	job.WorkerID = ""
	finished := now
	job.FinishedAt = &finished
}
