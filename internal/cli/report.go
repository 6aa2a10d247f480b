package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
	"github.com/arturoeanton/go-commit-reporter/internal/port"
)

var (
	startDate string
	endDate   string
	repoFlags []string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate the per-repository commit report",
	Example: `  reportctl report --start 2024-03-01 --end 2024-03-27
  reportctl report --repo api=https://github.com/acme/api`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := requestFromFlags(time.Now())
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close(cmd.ErrOrStderr())

		blocks, err := s.app.Reports.GenerateReport(cmd.Context(), req.Range, req.Repositories)
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return RenderJSON(cmd.OutOrStdout(), blocks)
		}
		RenderReport(cmd.OutOrStdout(), req.Range, blocks)
		return nil
	},
}

var rawCmd = &cobra.Command{
	Use:   "raw",
	Short: "Print the raw commit listing as markdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := requestFromFlags(time.Now())
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close(cmd.ErrOrStderr())

		doc, err := s.app.Reports.RawCommits(cmd.Context(), req.Range, req.Repositories)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), doc)
		return err
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Generate the executive summary across all repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := requestFromFlags(time.Now())
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.close(cmd.ErrOrStderr())

		summary, err := s.app.Reports.Summary(cmd.Context(), req.Range, req.Repositories)
		if err != nil {
			return err
		}
		if outputFormat == "json" {
			return RenderJSON(cmd.OutOrStdout(), map[string]string{"summary": summary})
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), summary)
		return err
	},
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&startDate, "start", "", "first day of the range, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&endDate, "end", "", "last day of the range, YYYY-MM-DD (default today)")
	cmd.Flags().StringArrayVar(&repoFlags, "repo", nil, "custom repository as name=url (repeatable); overrides the configured list")
}

func init() {
	for _, cmd := range []*cobra.Command{reportCmd, rawCmd, summaryCmd, jobsSubmitCmd} {
		addRangeFlags(cmd)
	}
	rootCmd.AddCommand(reportCmd, rawCmd, summaryCmd)
}

// requestFromFlags builds a report request; missing dates default to the
// current day in the reference timezone.
func requestFromFlags(now time.Time) (domain.ReportRequest, error) {
	return buildRequest(startDate, endDate, repoFlags, now)
}

func buildRequest(start, end string, repos []string, now time.Time) (domain.ReportRequest, error) {
	today := domain.StartOfDay(now)
	from, err := parseDayFlag("start", start, today)
	if err != nil {
		return domain.ReportRequest{}, err
	}
	to, err := parseDayFlag("end", end, today)
	if err != nil {
		return domain.ReportRequest{}, err
	}
	r, err := domain.NewDateRange(from, to)
	if err != nil {
		return domain.ReportRequest{}, err
	}

	var custom []domain.Repository
	for _, entry := range repos {
		name, url, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(url) == "" {
			return domain.ReportRequest{}, fmt.Errorf("%w: --repo %q must be name=url", port.ErrInvalidRequest, entry)
		}
		custom = append(custom, domain.Repository{Name: strings.TrimSpace(name), URL: strings.TrimSpace(url)})
	}
	return domain.ReportRequest{Range: r, Repositories: custom}, nil
}

func parseDayFlag(name, value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	t, err := domain.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: --%s: %v", port.ErrInvalidRequest, name, err)
	}
	return t, nil
}
