package handler

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
)

// ReportGenerator is the synchronous side of the report service.
type ReportGenerator interface {
	GenerateReport(ctx context.Context, r domain.DateRange, custom []domain.Repository) ([]string, error)
	RawCommits(ctx context.Context, r domain.DateRange, custom []domain.Repository) (string, error)
	Summary(ctx context.Context, r domain.DateRange, custom []domain.Repository) (string, error)
}

// ReportsHandler serves commit reports inline, without going through the queue.
type ReportsHandler struct {
	reports ReportGenerator
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(reports ReportGenerator) *ReportsHandler {
	return &ReportsHandler{reports: reports}
}

// Register sets up the commit-report routes. Extra handlers (rate limiting)
// run in front of every route of the group.
func (h *ReportsHandler) Register(router fiber.Router, mw ...fiber.Handler) {
	reports := router.Group("/commit-report")
	for _, m := range mw {
		reports.Use(m)
	}
	reports.Get("/", h.Generate)
	reports.Post("/", h.Generate)
	reports.Get("/raw", h.Raw)
	reports.Post("/raw", h.Raw)
	reports.Get("/summary", h.Summary)
	reports.Post("/summary", h.Summary)
}

// Generate returns one report block per repository.
func (h *ReportsHandler) Generate(c fiber.Ctx) error {
	req, err := bindReportRequest(c)
	if err != nil {
		return sendError(c, err)
	}

	blocks, err := h.reports.GenerateReport(c.Context(), req.Range, req.Repositories)
	if err != nil {
		slog.Error("commit report failed", "error", err)
		return sendError(c, err)
	}
	return c.JSON(blocks)
}

// Raw returns the commit listing as a markdown document.
func (h *ReportsHandler) Raw(c fiber.Ctx) error {
	req, err := bindReportRequest(c)
	if err != nil {
		return sendError(c, err)
	}

	doc, err := h.reports.RawCommits(c.Context(), req.Range, req.Repositories)
	if err != nil {
		slog.Error("raw commit report failed", "error", err)
		return sendError(c, err)
	}
	c.Set(fiber.HeaderContentType, "text/markdown; charset=utf-8")
	return c.SendString(doc)
}

// Summary returns the executive summary across all repositories.
func (h *ReportsHandler) Summary(c fiber.Ctx) error {
	req, err := bindReportRequest(c)
	if err != nil {
		return sendError(c, err)
	}

	summary, err := h.reports.Summary(c.Context(), req.Range, req.Repositories)
	if err != nil {
		slog.Error("executive summary failed", "error", err)
		return sendError(c, err)
	}
	return c.JSON(fiber.Map{"summary": summary})
}
