package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
	"github.com/arturoeanton/go-commit-reporter/internal/port"
	"github.com/arturoeanton/go-commit-reporter/internal/tracing"
)

// NoRepositoriesMessage is the whole report when no repository is configured.
const NoRepositoriesMessage = "No repositories configured for analysis."

// Cache key prefixes.
const (
	reportCachePrefix = "report"
	rawCachePrefix    = "raw-commits"
)

// ReportConfig tunes the report builder.
type ReportConfig struct {
	CacheTTL time.Duration
	Language string // language the LLM answers in
}

// ProgressFunc is called after each repository is processed.
type ProgressFunc func(done, total int)

// ReportService builds per-repository reports, raw commit documents and
// executive summaries.
type ReportService struct {
	registry   *Registry
	fetcher    *CommitFetcher
	summarizer port.Summarizer
	cache      port.ReportCache
	cfg        ReportConfig
}

// NewReportService wires the report builder.
func NewReportService(registry *Registry, fetcher *CommitFetcher, summarizer port.Summarizer, cache port.ReportCache, cfg ReportConfig) *ReportService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.Language == "" {
		cfg.Language = "English"
	}
	return &ReportService{
		registry:   registry,
		fetcher:    fetcher,
		summarizer: summarizer,
		cache:      cache,
		cfg:        cfg,
	}
}

// CacheKey returns the cache key used for registry-backed results.
func CacheKey(prefix string, r domain.DateRange) string {
	return prefix + ":default:" + r.Key()
}

// GenerateReport returns one summary block per repository.
func (s *ReportService) GenerateReport(ctx context.Context, r domain.DateRange, custom []domain.Repository) ([]string, error) {
	return s.GenerateReportWithProgress(ctx, r, custom, nil)
}

// GenerateReportWithProgress is GenerateReport reporting (done, total) after each repository.
func (s *ReportService) GenerateReportWithProgress(ctx context.Context, r domain.DateRange, custom []domain.Repository, progress ProgressFunc) ([]string, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	repos, isCustom := s.registry.Resolve(custom)
	if len(repos) == 0 {
		return []string{NoRepositoriesMessage}, nil
	}

	key := CacheKey(reportCachePrefix, r)
	if !isCustom {
		var cached []string
		if s.readCache(ctx, key, &cached) {
			slog.Debug("returning cached report", "key", key)
			return cached, nil
		}
	}

	ctx, span := tracing.Tracer().Start(ctx, "generate_report")
	span.SetAttributes(attribute.Int("repositories", len(repos)), attribute.Bool("custom", isCustom))
	defer span.End()

	reports := make([]string, 0, len(repos))
	for i, repo := range repos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reports = append(reports, s.repositoryReport(ctx, repo, r))
		if progress != nil {
			progress(i+1, len(repos))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !isCustom {
		s.writeCache(ctx, key, reports)
	}
	return reports, nil
}

func (s *ReportService) repositoryReport(ctx context.Context, repo domain.Repository, r domain.DateRange) string {
	slog.Debug("processing repository", "repo", repo.Name)
	fail := func(err error) string {
		slog.Error("failed to process repository", "repo", repo.Name, "error", err)
		return fmt.Sprintf("Error processing repository %s: %v", repo.Name, err)
	}

	exists, err := s.fetcher.Exists(ctx, repo)
	if err != nil {
		return fail(err)
	}
	if !exists {
		return fmt.Sprintf("Repository %s not found or inaccessible", repo.Name)
	}
	if !s.fetcher.HasCommits(ctx, repo) {
		return fmt.Sprintf("Repository %s has no commits", repo.Name)
	}
	if _, err := s.fetcher.LatestCommits(ctx, repo, LatestCommitsLimit); err != nil {
		return fail(err)
	}

	commits, err := s.fetcher.AllCommitsInRange(ctx, repo, r)
	if err != nil {
		return fail(err)
	}
	if len(commits) == 0 {
		n := r.Normalize()
		return fmt.Sprintf("Repository %s has no commits between %s and %s.",
			repo.Name, domain.FormatDay(n.Start), domain.FormatDay(n.End))
	}

	report, err := s.summarizer.Complete(ctx, s.repositoryPrompt(repo, commits))
	if err != nil {
		return fail(err)
	}
	return report
}

// RawCommits renders the commits in range as a markdown document.
func (s *ReportService) RawCommits(ctx context.Context, r domain.DateRange, custom []domain.Repository) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	repos, isCustom := s.registry.Resolve(custom)
	if len(repos) == 0 {
		return "# Error\n\n" + NoRepositoriesMessage, nil
	}

	key := CacheKey(rawCachePrefix, r)
	if !isCustom {
		var cached string
		if s.readCache(ctx, key, &cached) {
			slog.Debug("returning cached raw commits", "key", key)
			return cached, nil
		}
	}

	ctx, span := tracing.Tracer().Start(ctx, "raw_commits")
	span.SetAttributes(attribute.Int("repositories", len(repos)))
	defer span.End()

	n := r.Normalize()
	slog.Debug("building raw commit report", "from", domain.FormatDay(n.Start), "to", domain.FormatDay(n.End))

	var b strings.Builder
	b.WriteString("# Commit Report\n\n")
	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		s.writeRawRepository(ctx, &b, repo, n)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	doc := b.String()
	if !isCustom {
		s.writeCache(ctx, key, doc)
	}
	return doc, nil
}

func (s *ReportService) writeRawRepository(ctx context.Context, b *strings.Builder, repo domain.Repository, n domain.DateRange) {
	fmt.Fprintf(b, "## %s\n\n", repo.Name)
	fail := func(err error) {
		slog.Error("failed to fetch repository commits", "repo", repo.Name, "error", err)
		fmt.Fprintf(b, "Error fetching commits: %v\n\n", err)
	}

	exists, err := s.fetcher.Exists(ctx, repo)
	if err != nil {
		fail(err)
		return
	}
	if !exists {
		b.WriteString("Repository not found or inaccessible\n\n")
		return
	}
	if !s.fetcher.HasCommits(ctx, repo) {
		b.WriteString("Repository has no commits\n\n")
		return
	}

	latest, err := s.fetcher.LatestCommits(ctx, repo, LatestCommitsLimit)
	if err != nil {
		fail(err)
		return
	}
	if len(latest) > 0 && latest[0].AuthorDate.Before(n.Start) {
		last := domain.FormatDay(latest[0].AuthorDate)
		fmt.Fprintf(b, "Requested period: %s to %s\n\n", domain.FormatDay(n.Start), domain.FormatDay(n.End))
		fmt.Fprintf(b, "Last commit: %s\n\n", last)
		fmt.Fprintf(b, "There are no commits in the requested period. The last commit was made on %s.\n\n", last)
		return
	}

	commits, err := s.fetcher.AllCommitsInRange(ctx, repo, n)
	if err != nil {
		fail(err)
		return
	}

	fmt.Fprintf(b, "Period: %s to %s\n\n", domain.FormatDay(n.Start), domain.FormatDay(n.End))
	fmt.Fprintf(b, "Total commits: %d\n\n", len(commits))
	if len(commits) == 0 {
		b.WriteString("No commits found in this period.\n\n")
		return
	}

	b.WriteString("### Commits\n\n")
	for _, c := range commits {
		fmt.Fprintf(b, "#### %s\n\n", domain.FormatTimestamp(c.AuthorDate))
		fmt.Fprintf(b, "**Author:** %s\n\n", c.AuthorName)
		fmt.Fprintf(b, "**Message:**\n%s\n\n", c.Message)
		fmt.Fprintf(b, "**Hash:** `%s`\n\n", c.SHA)
		b.WriteString("---\n\n")
	}
	b.WriteString("\n")
}

// Summary condenses GenerateReport into one executive summary. Summarizer
// failures are returned, not inlined.
func (s *ReportService) Summary(ctx context.Context, r domain.DateRange, custom []domain.Repository) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}

	reports, err := s.GenerateReport(ctx, r, custom)
	if err != nil {
		return "", err
	}

	ctx, span := tracing.Tracer().Start(ctx, "summary")
	defer span.End()

	summary, err := s.summarizer.Complete(ctx, s.summaryPrompt(reports))
	if err != nil {
		return "", fmt.Errorf("executive summary: %w", err)
	}
	return summary, nil
}

func (s *ReportService) repositoryPrompt(repo domain.Repository, commits []domain.Commit) string {
	messages := make([]string, len(commits))
	for i, c := range commits {
		messages[i] = c.Message
	}

	return fmt.Sprintf(`Analyze the following commits from the repository %s and write a clear, concise report for non-technical managers explaining the main changes and improvements made:

Commits:
%s

Please provide a summary in %s that:
1. Explains the main changes in non-technical terms
2. Highlights the benefits for the business
3. Uses clear and accessible language
4. Keeps the focus on results and positive impact`, repo.Name, strings.Join(messages, "\n"), s.cfg.Language)
}

func (s *ReportService) summaryPrompt(reports []string) string {
	return fmt.Sprintf(`Analyze the following commit reports and write an executive summary in markdown highlighting the main changes and improvements made in each repository:

%s

Please provide a summary in %s that:
1. Explains the main changes in non-technical terms
2. Highlights the benefits for the business
3. Uses clear and accessible language
4. Keeps the focus on results and positive impact
5. Organizes the content in sections with markdown headings
6. Uses lists and highlights for readability`, strings.Join(reports, "\n\n"), s.cfg.Language)
}

// readCache treats cache failures as misses.
func (s *ReportService) readCache(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		slog.Warn("report cache read failed", "key", key, "error", err)
		return false
	}
	return ok
}

func (s *ReportService) writeCache(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		slog.Warn("report cache write failed", "key", key, "error", err)
	}
}
