package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
	"github.com/arturoeanton/go-commit-reporter/internal/port"
	"github.com/arturoeanton/go-commit-reporter/internal/service"
	"github.com/arturoeanton/go-commit-reporter/internal/tracing"
	"github.com/arturoeanton/go-commit-reporter/pkg/config"
)

func init() {
	color.NoColor = true
}

var now = time.Date(2024, 3, 15, 15, 0, 0, 0, time.UTC) // 12:00 in São Paulo

func TestBuildRequest_DefaultsToToday(t *testing.T) {
	req, err := buildRequest("", "", nil, now)
	require.NoError(t, err)

	today := time.Date(2024, 3, 15, 0, 0, 0, 0, domain.ReferenceLocation())
	assert.True(t, req.Range.Start.Equal(today))
	assert.True(t, req.Range.End.Equal(today))
	assert.Nil(t, req.Repositories)
}

func TestBuildRequest_CustomRepositories(t *testing.T) {
	req, err := buildRequest("2024-03-01", "2024-03-10",
		[]string{"api=https://github.com/acme/api", " web = https://github.com/acme/web "}, now)
	require.NoError(t, err)
	assert.Equal(t, []domain.Repository{
		{Name: "api", URL: "https://github.com/acme/api"},
		{Name: "web", URL: "https://github.com/acme/web"},
	}, req.Repositories)
}

func TestBuildRequest_Errors(t *testing.T) {
	_, err := buildRequest("2024-03-10", "2024-03-01", nil, now)
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)

	_, err = buildRequest("March", "", nil, now)
	assert.ErrorIs(t, err, port.ErrInvalidRequest)

	_, err = buildRequest("", "", []string{"https://github.com/acme/api"}, now)
	assert.ErrorIs(t, err, port.ErrInvalidRequest)
}

func TestRenderJobs(t *testing.T) {
	finished := now.Add(-30 * time.Minute)
	page := &service.JobPage{
		Jobs: []*domain.ReportJob{
			{ID: "job-b", Status: domain.JobStatusActive, Progress: 50, CreatedAt: now.Add(-2 * time.Hour)},
			{ID: "job-a", Status: domain.JobStatusCompleted, Progress: 100, CreatedAt: now.Add(-3 * 24 * time.Hour), FinishedAt: &finished},
		},
		Counts: domain.JobCounts{Active: 1, Completed: 1},
		Total:  2,
		Page:   1,
		Limit:  10,
	}

	var buf bytes.Buffer
	RenderJobs(&buf, page, now)
	out := buf.String()
	assert.Contains(t, out, "2 jobs (page 1, 10 per page)")
	assert.Contains(t, out, "job-b")
	assert.Contains(t, out, "active")
	assert.Contains(t, out, "50%")
	assert.Contains(t, out, "2h ago")
	assert.Contains(t, out, "3d ago")
	assert.Contains(t, out, "30m ago")
}

func TestRenderJob(t *testing.T) {
	job := &domain.ReportJob{
		ID:            "job-1",
		Status:        domain.JobStatusFailed,
		FailureReason: "github API error (502): bad gateway",
		AttemptsMade:  3,
		MaxAttempts:   3,
	}
	var buf bytes.Buffer
	RenderJob(&buf, job)
	assert.Contains(t, buf.String(), "attempts: 3/3")
	assert.Contains(t, buf.String(), "reason:   github API error (502): bad gateway")
}

func TestRenderTimings(t *testing.T) {
	var buf bytes.Buffer
	RenderTimings(&buf, nil)
	assert.Contains(t, buf.String(), "no spans recorded")

	buf.Reset()
	RenderTimings(&buf, []tracing.SpanTiming{
		{Name: "fetch_commits", DurationMS: 120.25, Attributes: map[string]string{"repo": "api", "branch": "main"}},
	})
	assert.Contains(t, buf.String(), "fetch_commits")
	assert.Contains(t, buf.String(), "120.2ms")
	assert.Contains(t, buf.String(), "branch=main repo=api")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderJSON(&buf, map[string]string{"summary": "ok"}))
	assert.JSONEq(t, `{"summary":"ok"}`, buf.String())
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{{"report"}, {"raw"}, {"summary"}, {"jobs", "list"}, {"jobs", "status"}, {"jobs", "submit"}, {"jobs", "work"}} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
	assert.NotNil(t, jobsSubmitCmd.Flags().Lookup("repo"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("timings"))
}

func TestRequireSharedQueue(t *testing.T) {
	err := requireSharedQueue(&config.Config{StorageBackend: config.StorageMemory})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_BACKEND=postgres")

	assert.NoError(t, requireSharedQueue(&config.Config{StorageBackend: config.StoragePostgres}))
}
