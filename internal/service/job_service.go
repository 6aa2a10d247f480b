package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
	"github.com/arturoeanton/go-commit-reporter/internal/port"
)

// Listing bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// JobConfig overrides the retry policy stamped on new jobs.
type JobConfig struct {
	MaxAttempts  int
	BackoffDelay time.Duration
}

// JobPage is one page of the job listing.
type JobPage struct {
	Jobs   []*domain.ReportJob
	Counts domain.JobCounts
	Total  int
	Page   int
	Limit  int
}

// JobService is the submit/poll side of the async report pipeline.
type JobService struct {
	queue    port.JobQueue
	notifier port.JobNotifier
	cfg      JobConfig
	now      func() time.Time
}

// NewJobService creates a job service. notifier may be nil.
func NewJobService(queue port.JobQueue, notifier port.JobNotifier, cfg JobConfig) *JobService {
	return &JobService{queue: queue, notifier: notifier, cfg: cfg, now: time.Now}
}

// Submit validates the request, enqueues a job and wakes the workers.
func (s *JobService) Submit(ctx context.Context, req domain.ReportRequest) (*domain.ReportJob, error) {
	if err := req.Range.Validate(); err != nil {
		return nil, err
	}

	job := domain.NewReportJob(uuid.NewString(), req, s.now())
	if s.cfg.MaxAttempts > 0 {
		job.MaxAttempts = s.cfg.MaxAttempts
	}
	if s.cfg.BackoffDelay > 0 {
		job.BackoffDelay = s.cfg.BackoffDelay
	}

	if err := s.queue.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("submit report job: %w", err)
	}
	slog.Info("report job queued", "job_id", job.ID, "repositories", len(req.Repositories))

	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, job.ID); err != nil {
			slog.Warn("failed to notify workers", "job_id", job.ID, "error", err)
		}
	}
	return job, nil
}

// Status returns the job or port.ErrJobNotFound.
func (s *JobService) Status(ctx context.Context, id string) (*domain.ReportJob, error) {
	return s.queue.Get(ctx, id)
}

// List returns page (1-based) of jobs newest first with per-state counts.
func (s *JobService) List(ctx context.Context, page, limit int) (*JobPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)

	jobs, err := s.queue.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("list report jobs: %w", err)
	}
	counts, err := s.queue.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count report jobs: %w", err)
	}

	return &JobPage{
		Jobs:   jobs,
		Counts: counts,
		Total:  counts.Total(),
		Page:   page,
		Limit:  limit,
	}, nil
}
