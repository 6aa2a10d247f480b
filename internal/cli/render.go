package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
	"github.com/arturoeanton/go-commit-reporter/internal/service"
	"github.com/arturoeanton/go-commit-reporter/internal/tracing"
)

const maxTimingRows = 15

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithHeader(header),
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithAlignment(tw.Alignment{tw.AlignLeft}),
		tablewriter.WithBorders(tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off}),
	)
}

// RenderJSON writes v as indented JSON.
func RenderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// RenderReport prints the report blocks separated by rules.
func RenderReport(w io.Writer, r domain.DateRange, blocks []string) {
	fmt.Fprintf(w, "\n%s  %d repositories, %s to %s\n\n",
		cyan("reportctl"), len(blocks), domain.FormatDay(r.Start), domain.FormatDay(r.End))
	for i, block := range blocks {
		if i > 0 {
			fmt.Fprintf(w, "\n%s\n\n", dim(strings.Repeat("─", 40)))
		}
		fmt.Fprintln(w, block)
	}
}

func statusLabel(s domain.JobStatus) string {
	switch s {
	case domain.JobStatusCompleted:
		return green("✔ completed")
	case domain.JobStatusFailed:
		return red("✘ failed")
	case domain.JobStatusActive:
		return yellow("● active")
	default:
		return dim("○ queued")
	}
}

// RenderJobs prints one page of the job listing.
func RenderJobs(w io.Writer, page *service.JobPage, now time.Time) {
	table := newTable(w, []string{"Job", "Status", "Progress", "Created", "Finished"})
	for _, job := range page.Jobs {
		finished := ""
		if job.FinishedAt != nil {
			finished = timeAgo(*job.FinishedAt, now)
		}
		table.Append([]string{
			job.ID,
			statusLabel(job.Status),
			fmt.Sprintf("%d%%", job.Progress),
			timeAgo(job.CreatedAt, now),
			finished,
		})
	}

	c := page.Counts
	fmt.Fprintf(w, "\n%s  %d jobs (page %d, %d per page): %d queued, %d active, %d completed, %d failed\n\n",
		cyan("reportctl"), page.Total, page.Page, page.Limit, c.Queued, c.Active, c.Completed, c.Failed)
	table.Render()
	fmt.Fprintln(w)
}

// RenderJob prints one job with its result or failure reason.
func RenderJob(w io.Writer, job *domain.ReportJob) {
	fmt.Fprintf(w, "%s %s\n", cyan("job"), job.ID)
	fmt.Fprintf(w, "  status:   %s\n", statusLabel(job.Status))
	fmt.Fprintf(w, "  progress: %d%%\n", job.Progress)
	fmt.Fprintf(w, "  range:    %s to %s\n", domain.FormatDay(job.Request.Range.Start), domain.FormatDay(job.Request.Range.End))
	fmt.Fprintf(w, "  attempts: %d/%d\n", job.AttemptsMade, job.MaxAttempts)
	if job.Status == domain.JobStatusFailed {
		fmt.Fprintf(w, "  reason:   %s\n", red(job.FailureReason))
	}
	if job.Status == domain.JobStatusCompleted {
		for _, block := range job.Result {
			fmt.Fprintf(w, "\n%s\n", block)
		}
	}
}

// RenderTimings prints the slowest spans of the run.
func RenderTimings(w io.Writer, timings []tracing.SpanTiming) {
	if len(timings) == 0 {
		fmt.Fprintf(w, "%s  no spans recorded\n", dim("timings"))
		return
	}
	table := newTable(w, []string{"Span", "Duration", "Attributes"})
	for i, t := range timings {
		if i == maxTimingRows {
			break
		}
		table.Append([]string{t.Name, fmt.Sprintf("%.1fms", t.DurationMS), formatAttributes(t.Attributes)})
	}
	fmt.Fprintf(w, "\n%s  %d spans, slowest first\n\n", cyan("timings"), len(timings))
	table.Render()
}

func formatAttributes(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + attrs[k]
	}
	return strings.Join(parts, " ")
}

func timeAgo(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
