package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-commit-reporter/internal/adapter/notify"
	"github.com/arturoeanton/go-commit-reporter/internal/adapter/queue"
	"github.com/arturoeanton/go-commit-reporter/internal/domain"
	"github.com/arturoeanton/go-commit-reporter/internal/port"
	"github.com/arturoeanton/go-commit-reporter/internal/service"
)

// mockGenerator runs fn as the report generator.
type mockGenerator struct {
	fn func(ctx context.Context, progress service.ProgressFunc) ([]string, error)
}

func (m *mockGenerator) GenerateReportWithProgress(ctx context.Context, _ domain.DateRange, _ []domain.Repository, progress service.ProgressFunc) ([]string, error) {
	return m.fn(ctx, progress)
}

// progressQueue records every progress update on top of the memory queue.
type progressQueue struct {
	*queue.MemoryQueue
	mu      sync.Mutex
	updates []int
	leases  []time.Duration
}

func (q *progressQueue) UpdateProgress(ctx context.Context, id, workerID string, progress int, lease time.Duration) error {
	q.mu.Lock()
	q.updates = append(q.updates, progress)
	q.leases = append(q.leases, lease)
	q.mu.Unlock()
	return q.MemoryQueue.UpdateProgress(ctx, id, workerID, progress, lease)
}

var testRange = domain.DateRange{
	Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
}

func submit(t *testing.T, q port.JobQueue, id string) {
	t.Helper()
	require.NoError(t, q.Enqueue(context.Background(), domain.NewReportJob(id, domain.ReportRequest{Range: testRange}, time.Now())))
}

func TestRunOnce_CompletesWithProgress(t *testing.T) {
	q := &progressQueue{MemoryQueue: queue.NewMemoryQueue()}
	gen := &mockGenerator{fn: func(_ context.Context, progress service.ProgressFunc) ([]string, error) {
		progress(1, 2)
		progress(2, 2)
		return []string{"api report", "web report"}, nil
	}}
	p := NewPool(q, nil, gen, Config{})
	submit(t, q, "j1")

	processed, err := p.RunOnce(context.Background(), "w-0")
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []int{10, 50, 90}, q.updates)
	assert.Equal(t, []time.Duration{10 * time.Minute, 10 * time.Minute, 10 * time.Minute}, q.leases)

	job, err := q.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, []string{"api report", "web report"}, job.Result)

	processed, err = p.RunOnce(context.Background(), "w-0")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestRunOnce_RetryableFailureStaysActive(t *testing.T) {
	q := queue.NewMemoryQueue()
	gen := &mockGenerator{fn: func(context.Context, service.ProgressFunc) ([]string, error) {
		return nil, port.NewUpstreamError("deepseek", 503, errors.New("overloaded"))
	}}
	p := NewPool(q, nil, gen, Config{})
	submit(t, q, "j1")

	_, err := p.RunOnce(context.Background(), "w-0")
	require.NoError(t, err)

	job, err := q.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusActive, job.Status)
	assert.Equal(t, "deepseek API error (503): overloaded", job.FailureReason)
	require.NotNil(t, job.LeaseUntil)
	assert.Nil(t, job.FinishedAt)
}

func TestRunOnce_ValidationFailureIsTerminal(t *testing.T) {
	q := queue.NewMemoryQueue()
	gen := &mockGenerator{fn: func(context.Context, service.ProgressFunc) ([]string, error) {
		return nil, port.ErrInvalidDateRange
	}}
	p := NewPool(q, nil, gen, Config{})
	submit(t, q, "j1")

	_, err := p.RunOnce(context.Background(), "w-0")
	require.NoError(t, err)

	job, err := q.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, port.ErrInvalidDateRange.Error(), job.FailureReason)
}

func TestRunOnce_RecoversFromPanic(t *testing.T) {
	q := queue.NewMemoryQueue()
	gen := &mockGenerator{fn: func(context.Context, service.ProgressFunc) ([]string, error) {
		panic("nil map")
	}}
	p := NewPool(q, nil, gen, Config{})
	submit(t, q, "j1")
	submit(t, q, "j2")

	processed, err := p.RunOnce(context.Background(), "w-0")
	require.NoError(t, err)
	assert.True(t, processed)

	job, err := q.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Contains(t, job.FailureReason, "panic while generating report: nil map")

	processed, err = p.RunOnce(context.Background(), "w-0")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestRunOnce_DropsResultAfterLeaseLost(t *testing.T) {
	q := queue.NewMemoryQueue()
	gen := &mockGenerator{fn: func(ctx context.Context, _ service.ProgressFunc) ([]string, error) {
		time.Sleep(20 * time.Millisecond)
		taken, err := q.Claim(ctx, "w-other", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "j1", taken.ID)
		return []string{"stale report"}, nil
	}}
	p := NewPool(q, nil, gen, Config{Lease: time.Millisecond})
	submit(t, q, "j1")

	processed, err := p.RunOnce(context.Background(), "w-0")
	require.NoError(t, err)
	assert.True(t, processed)

	job, err := q.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusActive, job.Status)
	assert.Equal(t, "w-other", job.WorkerID)
	assert.Nil(t, job.Result)
}

func TestRun_WakesOnNotification(t *testing.T) {
	q := queue.NewMemoryQueue()
	n := notify.NewMemoryNotifier()
	gen := &mockGenerator{fn: func(context.Context, service.ProgressFunc) ([]string, error) {
		return []string{"done"}, nil
	}}
	p := NewPool(q, n, gen, Config{Concurrency: 2, PollInterval: time.Hour, Lease: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	svc := service.NewJobService(q, n, service.JobConfig{})

	job, err := svc.Submit(context.Background(), domain.ReportRequest{Range: testRange})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got, err := q.Get(context.Background(), job.ID)
		return err == nil && got.Status == domain.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}
}
