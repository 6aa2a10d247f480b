package port

import (
	"context"
	"time"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
)

// JobQueue is the durable store behind the async report pipeline.
// It owns the retry/backoff policy: Fail decides whether a job is parked
// for another attempt or moved to failed.
type JobQueue interface {
	Enqueue(ctx context.Context, job *domain.ReportJob) error

	// Get returns ErrJobNotFound for unknown ids.
	Get(ctx context.Context, id string) (*domain.ReportJob, error)

	// List returns jobs across all states ordered by creation time, newest first.
	List(ctx context.Context, offset, limit int) ([]*domain.ReportJob, error)

	Counts(ctx context.Context) (domain.JobCounts, error)

	// Claim leases the next runnable job to workerID. It returns
	// ErrNoJobAvailable when nothing is runnable.
	Claim(ctx context.Context, workerID string, lease time.Duration) (*domain.ReportJob, error)

	// UpdateProgress sets progress and extends the claim to now+lease.
	// The job-mutating calls below only apply while workerID still holds the
	// claim on an active job; otherwise they return ErrLeaseLost.
	UpdateProgress(ctx context.Context, id, workerID string, progress int, lease time.Duration) error

	Complete(ctx context.Context, id, workerID string, result []string) error

	// Fail records reason. When retryable and the attempt budget allows it,
	// the job stays active and becomes claimable again after its backoff delay;
	// otherwise it lands in failed. The resulting job state is returned.
	Fail(ctx context.Context, id, workerID string, reason string, retryable bool) (*domain.ReportJob, error)
}

// JobNotifier wakes workers when a job is enqueued.
type JobNotifier interface {
	Notify(ctx context.Context, jobID string) error

	// Subscribe registers fn; the returned func cancels the subscription.
	Subscribe(fn func(jobID string)) (func(), error)
}
