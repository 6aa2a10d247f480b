package domain

import "time"

// JobStatus is the lifecycle state of a report job.
type JobStatus string

// Job status constants.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Default pipeline policy for new jobs.
const (
	DefaultJobAttempts     = 3
	DefaultJobBackoffDelay = 5 * time.Second
)

// Terminal reports whether no further transitions can happen.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ReportRequest is the input of a report job.
type ReportRequest struct {
	Range        DateRange    `json:"range"`
	Repositories []Repository `json:"repositories"`
}

// ReportJob is one asynchronous report generation tracked through the queue.
// Only the worker side of the pipeline mutates it after enqueue.
type ReportJob struct {
	ID            string        `json:"id"`
	Status        JobStatus     `json:"status"`
	Progress      int           `json:"progress"`
	Request       ReportRequest `json:"request"`
	Result        []string      `json:"result"`
	FailureReason string        `json:"failure_reason"`
	AttemptsMade  int           `json:"attempts_made"`
	MaxAttempts   int           `json:"max_attempts"`
	BackoffDelay  time.Duration `json:"backoff_delay"`
	LeaseUntil    *time.Time    `json:"lease_until"`
	WorkerID      string        `json:"worker_id"`
	CreatedAt     time.Time     `json:"created_at"`
	StartedAt     *time.Time    `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at"`
}

// NewReportJob creates a queued job with the default attempt budget and backoff.
func NewReportJob(id string, req ReportRequest, now time.Time) *ReportJob {
	return &ReportJob{
		ID:           id,
		Status:       JobStatusQueued,
		Request:      req,
		MaxAttempts:  DefaultJobAttempts,
		BackoffDelay: DefaultJobBackoffDelay,
		CreatedAt:    now,
	}
}

// RetryDelay is the exponential backoff before the next attempt:
// BackoffDelay * 2^(AttemptsMade-1).
func (j *ReportJob) RetryDelay() time.Duration {
	if j.AttemptsMade <= 1 {
		return j.BackoffDelay
	}
	return j.BackoffDelay << (j.AttemptsMade - 1)
}

// CanRetry reports whether the attempt budget allows another run.
func (j *ReportJob) CanRetry() bool {
	return j.AttemptsMade < j.MaxAttempts
}

// Clone returns a deep copy safe to hand out to callers.
func (j *ReportJob) Clone() *ReportJob {
	c := *j
	if j.Result != nil {
		c.Result = make([]string, len(j.Result))
		copy(c.Result, j.Result)
	}
	// nil and empty repository lists mean different things (registry vs override).
	if j.Request.Repositories != nil {
		c.Request.Repositories = make([]Repository, len(j.Request.Repositories))
		copy(c.Request.Repositories, j.Request.Repositories)
	}
	c.LeaseUntil = cloneTime(j.LeaseUntil)
	c.StartedAt = cloneTime(j.StartedAt)
	c.FinishedAt = cloneTime(j.FinishedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// JobCounts aggregates jobs per state.
type JobCounts struct {
	Queued    int `json:"queued"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Total is the sum across all states.
func (c JobCounts) Total() int {
	return c.Queued + c.Active + c.Completed + c.Failed
}

// Add increments the counter for status.
func (c *JobCounts) Add(status JobStatus) {
	c.AddN(status, 1)
}

// AddN adds n to the counter for status.
func (c *JobCounts) AddN(status JobStatus, n int) {
	switch status {
	case JobStatusQueued:
		c.Queued += n
	case JobStatusActive:
		c.Active += n
	case JobStatusCompleted:
		c.Completed += n
	case JobStatusFailed:
		c.Failed += n
	}
}
