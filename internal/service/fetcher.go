package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
	"github.com/arturoeanton/go-commit-reporter/internal/port"
	"github.com/arturoeanton/go-commit-reporter/internal/tracing"
)

// Paging used against the hosting API.
const (
	CommitsPerPage     = 100
	LatestCommitsLimit = 5
)

// CommitFetcher retrieves repository metadata and commits from the hosting API.
// It owns the metadata memo; nothing else writes to it.
type CommitFetcher struct {
	hosting port.HostingProvider
	memo    port.RepoMetadataStore
}

// NewCommitFetcher creates a fetcher over hosting that memoizes into memo.
func NewCommitFetcher(hosting port.HostingProvider, memo port.RepoMetadataStore) *CommitFetcher {
	return &CommitFetcher{hosting: hosting, memo: memo}
}

// Exists reports whether the repository is reachable. Both answers are memoized
// for the process lifetime; failures are not.
func (f *CommitFetcher) Exists(ctx context.Context, repo domain.Repository) (bool, error) {
	if exists, ok := f.memo.Exists(repo.URL); ok {
		return exists, nil
	}

	slog.Debug("checking repository", "repo", repo.Name, "url", repo.URL)
	exists, err := f.hosting.RepositoryExists(ctx, repo)
	if err != nil {
		return false, fmt.Errorf("check repository %s: %w", repo.Name, err)
	}
	if !exists {
		slog.Warn("repository not found", "repo", repo.Name)
	}

	f.memo.SetExists(repo.URL, exists)
	return exists, nil
}

// HasCommits asks for a single commit. Any failure counts as "no commits".
func (f *CommitFetcher) HasCommits(ctx context.Context, repo domain.Repository) bool {
	page, err := f.hosting.ListCommits(ctx, repo, port.CommitQuery{Page: 1, PerPage: 1})
	if err != nil {
		slog.Error("failed to check repository commits", "repo", repo.Name, "error", err)
		return false
	}
	return len(page.Commits) > 0
}

// ListBranches returns the memoized branch list, fetching it on first use.
func (f *CommitFetcher) ListBranches(ctx context.Context, repo domain.Repository) ([]domain.Branch, error) {
	if branches, ok := f.memo.Branches(repo.URL); ok {
		return branches, nil
	}

	branches, err := f.hosting.ListBranches(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf("list branches of %s: %w", repo.Name, err)
	}
	slog.Debug("branches found", "repo", repo.Name, "count", len(branches))

	f.memo.SetBranches(repo.URL, branches)
	return branches, nil
}

// LatestCommits returns the newest limit commits across all branches.
func (f *CommitFetcher) LatestCommits(ctx context.Context, repo domain.Repository, limit int) ([]domain.Commit, error) {
	ctx, span := tracing.Tracer().Start(ctx, "latest_commits")
	span.SetAttributes(attribute.String("repo", repo.Name))
	defer span.End()

	branches, err := f.ListBranches(ctx, repo)
	if err != nil {
		return nil, err
	}

	var all []domain.Commit
	for _, b := range branches {
		page, err := f.hosting.ListCommits(ctx, repo, port.CommitQuery{Branch: b.Name, Page: 1, PerPage: limit})
		if err != nil {
			return nil, fmt.Errorf("latest commits of %s on %s: %w", repo.Name, b.Name, err)
		}
		all = append(all, page.Commits...)
	}

	domain.SortByAuthorDateDesc(all)
	if len(all) > limit {
		all = all[:limit]
	}
	for _, c := range all {
		slog.Debug("recent commit", "repo", repo.Name, "date", domain.FormatTimestamp(c.AuthorDate), "sha", c.SHA)
	}
	return all, nil
}

// AllCommitsInRange walks every branch page by page within the normalized range
// and returns the commits newest first. A commit reachable from several branches
// is returned once per branch.
func (f *CommitFetcher) AllCommitsInRange(ctx context.Context, repo domain.Repository, r domain.DateRange) ([]domain.Commit, error) {
	ctx, span := tracing.Tracer().Start(ctx, "fetch_commits")
	span.SetAttributes(attribute.String("repo", repo.Name))
	defer span.End()

	n := r.Normalize()
	branches, err := f.ListBranches(ctx, repo)
	if err != nil {
		return nil, err
	}

	var all []domain.Commit
	for _, b := range branches {
		q := port.CommitQuery{Branch: b.Name, Since: n.Start, Until: n.End, Page: 1, PerPage: CommitsPerPage}
		for {
			page, err := f.hosting.ListCommits(ctx, repo, q)
			if err != nil {
				return nil, fmt.Errorf("commits of %s on %s page %d: %w", repo.Name, b.Name, q.Page, err)
			}
			slog.Debug("commits page fetched", "repo", repo.Name, "branch", b.Name, "page", q.Page, "count", len(page.Commits))
			if len(page.Commits) == 0 {
				break
			}
			all = append(all, page.Commits...)
			if !page.HasNext {
				break
			}
			q.Page++
		}
	}

	domain.SortByAuthorDateDesc(all)
	span.SetAttributes(attribute.Int("commits", len(all)), attribute.Int("branches", len(branches)))
	slog.Debug("commits in range", "repo", repo.Name, "count", len(all))
	return all, nil
}
