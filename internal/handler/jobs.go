package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
	"github.com/arturoeanton/go-commit-reporter/internal/service"
)

// Stream defaults.
const (
	DefaultStreamPollInterval = time.Second
	DefaultStreamTimeout      = 5 * time.Minute
)

const queuedMessage = "Report queued for processing"

// JobSubmitter is the submit/poll side of the async pipeline.
type JobSubmitter interface {
	Submit(ctx context.Context, req domain.ReportRequest) (*domain.ReportJob, error)
	Status(ctx context.Context, id string) (*domain.ReportJob, error)
	List(ctx context.Context, page, limit int) (*service.JobPage, error)
}

// JobsHandler handles the async-reports endpoints.
type JobsHandler struct {
	jobs          JobSubmitter
	pollInterval  time.Duration
	streamTimeout time.Duration
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(jobs JobSubmitter) *JobsHandler {
	return &JobsHandler{
		jobs:          jobs,
		pollInterval:  DefaultStreamPollInterval,
		streamTimeout: DefaultStreamTimeout,
	}
}

// Register sets up job routes.
func (h *JobsHandler) Register(router fiber.Router) {
	jobs := router.Group("/async-reports")
	jobs.Post("/", h.Create)
	jobs.Get("/", h.List)
	jobs.Get("/:id", h.GetStatus)
	jobs.Get("/:id/stream", h.StreamSSE)
}

type jobStatusResponse struct {
	JobID     string           `json:"jobId"`
	Status    domain.JobStatus `json:"status"`
	Progress  int              `json:"progress"`
	Completed bool             `json:"completed"`
	Failed    bool             `json:"failed"`
	Reason    string           `json:"reason,omitempty"`
	Data      []string         `json:"data"`
}

func newJobStatusResponse(job *domain.ReportJob) jobStatusResponse {
	resp := jobStatusResponse{
		JobID:     job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		Completed: job.Status == domain.JobStatusCompleted,
		Failed:    job.Status == domain.JobStatusFailed,
	}
	if resp.Failed {
		resp.Reason = job.FailureReason
	}
	if resp.Completed {
		resp.Data = job.Result
		if resp.Data == nil {
			resp.Data = []string{}
		}
	}
	return resp
}

type jobListItem struct {
	ID         string           `json:"id"`
	Status     domain.JobStatus `json:"status"`
	Progress   int              `json:"progress"`
	CreatedAt  time.Time        `json:"createdAt"`
	FinishedAt *time.Time       `json:"finishedAt"`
}

// Create enqueues a report job.
func (h *JobsHandler) Create(c fiber.Ctx) error {
	req, err := bindReportRequest(c)
	if err != nil {
		return sendError(c, err)
	}

	job, err := h.jobs.Submit(c.Context(), req)
	if err != nil {
		slog.Error("failed to submit report job", "error", err)
		return sendError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"jobId":   job.ID,
		"status":  domain.JobStatusQueued,
		"message": queuedMessage,
	})
}

// List returns a page of jobs, newest first.
func (h *JobsHandler) List(c fiber.Ctx) error {
	page, err := h.jobs.List(c.Context(), queryInt(c, "page", 1), queryInt(c, "limit", service.DefaultPageSize))
	if err != nil {
		return sendError(c, err)
	}

	items := make([]jobListItem, len(page.Jobs))
	for i, job := range page.Jobs {
		items[i] = jobListItem{
			ID:         job.ID,
			Status:     job.Status,
			Progress:   job.Progress,
			CreatedAt:  job.CreatedAt,
			FinishedAt: job.FinishedAt,
		}
	}

	return c.JSON(fiber.Map{
		"reports": items,
		"total":   page.Total,
		"counts":  page.Counts,
		"page":    page.Page,
		"limit":   page.Limit,
	})
}

// GetStatus returns the current job status.
func (h *JobsHandler) GetStatus(c fiber.Ctx) error {
	job, err := h.jobs.Status(c.Context(), c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}
	return c.JSON(newJobStatusResponse(job))
}

// StreamSSE streams job progress via Server-Sent Events until the job
// reaches a terminal state.
func (h *JobsHandler) StreamSSE(c fiber.Ctx) error {
	id := c.Params("id")

	job, err := h.jobs.Status(c.Context(), id)
	if err != nil {
		return sendError(c, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	if job.Status.Terminal() {
		return c.SendString(sseEvent(job))
	}

	return c.SendStreamWriter(func(w *bufio.Writer) {
		// The request context is recycled once the handler returns.
		ctx, cancel := context.WithTimeout(context.Background(), h.streamTimeout)
		defer cancel()

		ticker := time.NewTicker(h.pollInterval)
		defer ticker.Stop()

		last := job
		if !writeEvent(w, last) {
			return
		}
		for {
			select {
			case <-ticker.C:
				cur, err := h.jobs.Status(ctx, id)
				if err != nil {
					slog.Warn("SSE poll failed", "job_id", id, "error", err)
					return
				}
				if cur.Status == last.Status && cur.Progress == last.Progress {
					continue
				}
				last = cur
				if !writeEvent(w, cur) || cur.Status.Terminal() {
					return
				}
			case <-ctx.Done():
				slog.Warn("SSE timeout", "job_id", id)
				return
			}
		}
	})
}

// sseEvent renders one job snapshot. The event name is "progress" until the
// job finishes, then its terminal status.
func sseEvent(job *domain.ReportJob) string {
	eventType := "progress"
	if job.Status.Terminal() {
		eventType = string(job.Status)
	}
	data, _ := json.Marshal(newJobStatusResponse(job))
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, data)
}

// writeEvent reports false once the client has gone away.
func writeEvent(w *bufio.Writer, job *domain.ReportJob) bool {
	if _, err := w.WriteString(sseEvent(job)); err != nil {
		return false
	}
	return w.Flush() == nil
}
