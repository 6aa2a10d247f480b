package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditRecord struct {
	action, resource, resourceID, details, ip, userAgent string
}

type recordingWriter struct {
	records chan auditRecord
}

func (w *recordingWriter) WriteAudit(_ context.Context, action, resource, resourceID, details, ip, userAgent string) error {
	w.records <- auditRecord{action, resource, resourceID, details, ip, userAgent}
	return nil
}

func TestAuditMiddleware_RecordsRequest(t *testing.T) {
	w := &recordingWriter{records: make(chan auditRecord, 1)}
	app := fiber.New()
	app.Use(AuditMiddleware(w))
	app.Get("/api/v1/async-reports/:id", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).SendString("nope")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/async-reports/42", nil)
	req.Header.Set("User-Agent", "reportctl/1.0")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var rec auditRecord
	select {
	case rec = <-w.records:
	case <-time.After(2 * time.Second):
		t.Fatal("audit record not written")
	}
	assert.Equal(t, "http_request", rec.action)
	assert.Equal(t, "async-reports", rec.resource)
	assert.Equal(t, "/api/v1/async-reports/42", rec.resourceID)
	assert.Equal(t, "reportctl/1.0", rec.userAgent)

	var details map[string]any
	require.NoError(t, json.Unmarshal([]byte(rec.details), &details))
	assert.Equal(t, "GET", details["method"])
	assert.EqualValues(t, 404, details["status"])
}

func TestResourceOf(t *testing.T) {
	assert.Equal(t, "commit-report", resourceOf("/api/v1/commit-report/raw"))
	assert.Equal(t, "health", resourceOf("/api/v1/health"))
	assert.Equal(t, "api", resourceOf("/api/v1"))
	assert.Equal(t, "api", resourceOf("/"))
}

func TestLogAuditWriter(t *testing.T) {
	assert.NoError(t, LogAuditWriter{}.WriteAudit(context.Background(), "http_request", "api", "/", `{"status":200}`, "127.0.0.1", "curl"))
}
