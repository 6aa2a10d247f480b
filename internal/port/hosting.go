package port

import (
	"context"
	"time"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
)

// CommitQuery selects one page of commits on one branch.
type CommitQuery struct {
	Branch  string
	Since   time.Time // zero = unbounded
	Until   time.Time // zero = unbounded
	Page    int
	PerPage int
}

// CommitPage is one page of the commit listing.
type CommitPage struct {
	Commits []domain.Commit
	HasNext bool // the response advertised a rel="next" link
}

// HostingProvider abstracts the repository hosting REST API.
type HostingProvider interface {
	// RepositoryExists returns false (and no error) when the API answers 404.
	RepositoryExists(ctx context.Context, repo domain.Repository) (bool, error)

	// ListBranches returns every branch of the repository.
	ListBranches(ctx context.Context, repo domain.Repository) ([]domain.Branch, error)

	// ListCommits returns a single page of commits matching the query.
	ListCommits(ctx context.Context, repo domain.Repository, q CommitQuery) (CommitPage, error)
}

// RepoMetadataStore memoizes repository metadata for the lifetime of the process.
// Implementations must be safe for concurrent use.
type RepoMetadataStore interface {
	Exists(repoURL string) (exists bool, ok bool)
	SetExists(repoURL string, exists bool)
	Branches(repoURL string) ([]domain.Branch, bool)
	SetBranches(repoURL string, branches []domain.Branch)
}
