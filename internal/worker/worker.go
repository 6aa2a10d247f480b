package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
	"github.com/arturoeanton/go-commit-reporter/internal/port"
	"github.com/arturoeanton/go-commit-reporter/internal/service"
)

// Progress milestones reported while a job runs.
const (
	progressStarted = 10
	progressSpan    = 80
)

// ReportGenerator produces the report payload of a job.
type ReportGenerator interface {
	GenerateReportWithProgress(ctx context.Context, r domain.DateRange, custom []domain.Repository, progress service.ProgressFunc) ([]string, error)
}

// Config controls the worker pool.
type Config struct {
	ID           string        // prefix of worker ids, e.g. the hostname
	Concurrency  int           // parallel workers
	PollInterval time.Duration // fallback when no wake-up arrives
	Lease        time.Duration // how long a claim is held before another worker may take over
}

// Pool runs report jobs from the queue until its context is cancelled.
type Pool struct {
	queue    port.JobQueue
	notifier port.JobNotifier
	reports  ReportGenerator
	cfg      Config
}

// NewPool creates a worker pool. notifier may be nil, in which case workers
// only poll.
func NewPool(queue port.JobQueue, notifier port.JobNotifier, reports ReportGenerator, cfg Config) *Pool {
	if cfg.ID == "" {
		cfg.ID = "worker"
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 10 * time.Minute
	}
	return &Pool{queue: queue, notifier: notifier, reports: reports, cfg: cfg}
}

// Run blocks until ctx is done.
func (p *Pool) Run(ctx context.Context) error {
	wake := make(chan struct{}, p.cfg.Concurrency)
	if p.notifier != nil {
		unsubscribe, err := p.notifier.Subscribe(func(string) {
			select {
			case wake <- struct{}{}:
			default:
			}
		})
		if err != nil {
			slog.Warn("job notifier unavailable, falling back to polling", "error", err)
		} else {
			defer unsubscribe()
		}
	}

	slog.Info("report workers started",
		"concurrency", p.cfg.Concurrency, "poll_interval", p.cfg.PollInterval, "lease", p.cfg.Lease)

	g, ctx := errgroup.WithContext(ctx)
	for i := range p.cfg.Concurrency {
		workerID := fmt.Sprintf("%s-%d", p.cfg.ID, i)
		g.Go(func() error {
			p.loop(ctx, workerID, wake)
			return nil
		})
	}
	err := g.Wait()
	slog.Info("report workers stopped")
	return err
}

func (p *Pool) loop(ctx context.Context, workerID string, wake <-chan struct{}) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		p.drain(ctx, workerID)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-wake:
		}
	}
}

// drain processes jobs until the queue has nothing runnable.
func (p *Pool) drain(ctx context.Context, workerID string) {
	for ctx.Err() == nil {
		processed, err := p.RunOnce(ctx, workerID)
		if err != nil {
			slog.Error("claim error", "worker", workerID, "error", err)
			return
		}
		if !processed {
			return
		}
	}
}

// RunOnce claims and processes at most one job. It reports whether a job was claimed.
func (p *Pool) RunOnce(ctx context.Context, workerID string) (bool, error) {
	job, err := p.queue.Claim(ctx, workerID, p.cfg.Lease)
	if errors.Is(err, port.ErrNoJobAvailable) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	p.process(ctx, job)
	return true, nil
}

func (p *Pool) process(ctx context.Context, job *domain.ReportJob) {
	log := slog.With("job_id", job.ID, "worker", job.WorkerID, "attempt", job.AttemptsMade)
	log.Info("processing report job")
	start := time.Now()

	report, err := p.generate(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			log.Warn("report job interrupted, lease will expire", "error", err)
			return
		}

		retryable := !port.IsValidation(err)
		state, ferr := p.queue.Fail(ctx, job.ID, job.WorkerID, err.Error(), retryable)
		if errors.Is(ferr, port.ErrLeaseLost) {
			log.Warn("dropping failure of reclaimed job", "error", ferr, "reason", err)
			return
		}
		if ferr != nil {
			log.Error("failed to record job failure", "error", ferr, "reason", err)
			return
		}
		if state.Status == domain.JobStatusFailed {
			log.Error("report job failed", "error", err)
		} else {
			log.Warn("report job attempt failed, retrying", "error", err, "retry_at", state.LeaseUntil)
		}
		return
	}

	if err := p.queue.Complete(ctx, job.ID, job.WorkerID, report); err != nil {
		if errors.Is(err, port.ErrLeaseLost) {
			log.Warn("dropping result of reclaimed job", "error", err)
			return
		}
		log.Error("failed to complete job", "error", err)
		return
	}
	log.Info("report job completed", "duration", time.Since(start), "entries", len(report))
}

// generate runs the report, converting panics into errors.
func (p *Pool) generate(ctx context.Context, job *domain.ReportJob) (report []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while generating report: %v", r)
		}
	}()

	p.setProgress(ctx, job, progressStarted)
	return p.reports.GenerateReportWithProgress(ctx, job.Request.Range, job.Request.Repositories,
		func(done, total int) {
			if total > 0 {
				p.setProgress(ctx, job, progressStarted+progressSpan*done/total)
			}
		})
}

// setProgress doubles as the lease heartbeat.
func (p *Pool) setProgress(ctx context.Context, job *domain.ReportJob, progress int) {
	if err := p.queue.UpdateProgress(ctx, job.ID, job.WorkerID, progress, p.cfg.Lease); err != nil {
		slog.Warn("failed to update job progress", "job_id", job.ID, "progress", progress, "error", err)
	}
}
