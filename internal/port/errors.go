package port

import (
	"errors"
	"fmt"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
)

// Sentinel errors used across ports.
var (
	ErrInvalidDateRange = domain.ErrInvalidDateRange
	ErrInvalidRequest   = errors.New("invalid request")
	ErrJobNotFound      = errors.New("report job not found")
	ErrNoJobAvailable   = errors.New("no job available")
	ErrLeaseLost        = errors.New("job lease lost")
)

// UpstreamError wraps a failure of the hosting API or the summarization API.
type UpstreamError struct {
	Service    string // "github", "deepseek", "ollama"
	StatusCode int    // 0 when the request never got a response
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s API error (%d): %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s API error: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// NewUpstreamError builds an UpstreamError, leaving existing ones untouched.
func NewUpstreamError(service string, status int, err error) error {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Service: service, StatusCode: status, Err: err}
}

// IsValidation reports whether err is caller-correctable.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidDateRange) || errors.Is(err, ErrInvalidRequest)
}

// IsUpstream reports whether err came from an upstream API.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
