package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
	"github.com/arturoeanton/go-commit-reporter/internal/port"
)

// reportRequestBody is the wire shape shared by the sync and async report routes.
type reportRequestBody struct {
	StartDate    string              `json:"startDate"`
	EndDate      string              `json:"endDate"`
	Repositories []domain.Repository `json:"repositories"`
}

// bindReportRequest reads the range from the JSON body when one is sent,
// otherwise from the startDate/endDate query parameters.
func bindReportRequest(c fiber.Ctx) (domain.ReportRequest, error) {
	var body reportRequestBody
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return domain.ReportRequest{}, fmt.Errorf("%w: malformed JSON body", port.ErrInvalidRequest)
		}
	} else {
		body.StartDate = c.Query("startDate")
		body.EndDate = c.Query("endDate")
	}
	return body.toRequest()
}

func (b reportRequestBody) toRequest() (domain.ReportRequest, error) {
	start, err := domain.ParseDate(b.StartDate)
	if err != nil {
		return domain.ReportRequest{}, fmt.Errorf("%w: startDate: %v", port.ErrInvalidRequest, err)
	}
	end, err := domain.ParseDate(b.EndDate)
	if err != nil {
		return domain.ReportRequest{}, fmt.Errorf("%w: endDate: %v", port.ErrInvalidRequest, err)
	}
	r, err := domain.NewDateRange(start, end)
	if err != nil {
		return domain.ReportRequest{}, err
	}

	for i, repo := range b.Repositories {
		if strings.TrimSpace(repo.URL) == "" {
			return domain.ReportRequest{}, fmt.Errorf("%w: repositories[%d].url is required", port.ErrInvalidRequest, i)
		}
		if strings.TrimSpace(repo.Name) == "" {
			return domain.ReportRequest{}, fmt.Errorf("%w: repositories[%d].name is required", port.ErrInvalidRequest, i)
		}
	}
	return domain.ReportRequest{Range: r, Repositories: b.Repositories}, nil
}

// errorStatus maps service errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case port.IsValidation(err):
		return fiber.StatusBadRequest
	case errors.Is(err, port.ErrJobNotFound):
		return fiber.StatusNotFound
	case port.IsUpstream(err):
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func sendError(c fiber.Ctx, err error) error {
	return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
}

// queryInt reads an integer query parameter, falling back to defaultVal.
func queryInt(c fiber.Ctx, key string, defaultVal int) int {
	v := c.Query(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
