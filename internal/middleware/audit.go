package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
)

const auditWriteTimeout = 5 * time.Second

// AuditWriter defines how audit records are persisted.
type AuditWriter interface {
	WriteAudit(ctx context.Context, action, resource, resourceID, details, ip, userAgent string) error
}

// LogAuditWriter emits audit records as structured log lines. It is used
// when no database is configured.
type LogAuditWriter struct {
	Logger *slog.Logger
}

// WriteAudit implements AuditWriter.
func (w LogAuditWriter) WriteAudit(_ context.Context, action, resource, resourceID, details, ip, userAgent string) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("audit",
		"action", action,
		"resource", resource,
		"resource_id", resourceID,
		"details", json.RawMessage(details),
		"ip", ip,
		"user_agent", userAgent,
	)
	return nil
}

// AuditMiddleware records every request.
func AuditMiddleware(writer AuditWriter) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Fiber reuses its buffers once the handler returns.
		method := strings.Clone(c.Method())
		path := strings.Clone(c.Path())
		ip := strings.Clone(c.IP())
		userAgent := strings.Clone(c.Get(fiber.HeaderUserAgent))

		err := c.Next()

		details, _ := json.Marshal(map[string]any{
			"method":      method,
			"path":        path,
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(start).Milliseconds(),
		})

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
			defer cancel()
			if writeErr := writer.WriteAudit(ctx, "http_request", resourceOf(path), path, string(details), ip, userAgent); writeErr != nil {
				slog.Error("failed to write audit log", "error", writeErr)
			}
		}()

		return err
	}
}

// resourceOf names the route family: "/api/v1/async-reports/42" -> "async-reports".
func resourceOf(path string) string {
	path = strings.TrimPrefix(path, "/api/v1")
	path = strings.Trim(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "api"
	}
	return path
}
