package hosting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
	"github.com/arturoeanton/go-commit-reporter/internal/port"
	"github.com/google/go-github/v75/github"
)

const serviceName = "github"

// GitHubConfig holds the configuration for the GitHub REST client.
type GitHubConfig struct {
	Token            string        // Bearer token (empty = anonymous, 60 req/h)
	BaseURL          string        // e.g. https://api.github.com/ or a GHES /api/v3/ URL
	MaxRateLimitWait time.Duration // longest we sleep for a rate-limit reset before giving up
	Timeout          time.Duration
}

// GitHubProvider implements port.HostingProvider using go-github.
type GitHubProvider struct {
	client           *github.Client
	maxRateLimitWait time.Duration
	sleep            func(ctx context.Context, d time.Duration) error
}

// NewGitHubProvider creates a GitHub-backed hosting provider.
func NewGitHubProvider(cfg GitHubConfig) (*GitHubProvider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := github.NewClient(&http.Client{Timeout: timeout})
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		client.BaseURL = u
	}

	return &GitHubProvider{
		client:           client,
		maxRateLimitWait: cfg.MaxRateLimitWait,
		sleep:            sleepContext,
	}, nil
}

// RepositoryExists checks GET /repos/{owner}/{name}; 404 is a legitimate false.
func (g *GitHubProvider) RepositoryExists(ctx context.Context, repo domain.Repository) (bool, error) {
	owner, name, err := repo.OwnerAndName()
	if err != nil {
		return false, err
	}

	resp, err := g.call(ctx, func() (*github.Response, error) {
		_, resp, err := g.client.Repositories.Get(ctx, owner, name)
		return resp, err
	})
	if err != nil {
		if statusOf(resp) == http.StatusNotFound {
			return false, nil
		}
		return false, upstream(resp, err)
	}
	return true, nil
}

// ListBranches follows branch pagination until the last page.
func (g *GitHubProvider) ListBranches(ctx context.Context, repo domain.Repository) ([]domain.Branch, error) {
	owner, name, err := repo.OwnerAndName()
	if err != nil {
		return nil, err
	}

	opts := &github.BranchListOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var branches []domain.Branch
	for {
		var page []*github.Branch
		resp, err := g.call(ctx, func() (*github.Response, error) {
			var resp *github.Response
			var err error
			page, resp, err = g.client.Repositories.ListBranches(ctx, owner, name, opts)
			return resp, err
		})
		if err != nil {
			return nil, upstream(resp, err)
		}
		for _, b := range page {
			branches = append(branches, domain.Branch{Name: b.GetName()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return branches, nil
}

// ListCommits fetches a single page of GET /repos/{owner}/{name}/commits.
func (g *GitHubProvider) ListCommits(ctx context.Context, repo domain.Repository, q port.CommitQuery) (port.CommitPage, error) {
	owner, name, err := repo.OwnerAndName()
	if err != nil {
		return port.CommitPage{}, err
	}

	opts := &github.CommitsListOptions{
		SHA:   q.Branch,
		Since: q.Since,
		Until: q.Until,
		ListOptions: github.ListOptions{
			Page:    q.Page,
			PerPage: q.PerPage,
		},
	}

	var raw []*github.RepositoryCommit
	resp, err := g.call(ctx, func() (*github.Response, error) {
		var resp *github.Response
		var err error
		raw, resp, err = g.client.Repositories.ListCommits(ctx, owner, name, opts)
		return resp, err
	})
	if err != nil {
		return port.CommitPage{}, upstream(resp, err)
	}

	commits := make([]domain.Commit, 0, len(raw))
	for _, rc := range raw {
		author := rc.GetCommit().GetAuthor()
		commits = append(commits, domain.Commit{
			SHA:        rc.GetSHA(),
			Message:    rc.GetCommit().GetMessage(),
			AuthorName: author.GetName(),
			AuthorDate: author.GetDate().Time,
		})
	}

	return port.CommitPage{Commits: commits, HasNext: resp.NextPage != 0}, nil
}

// call runs fn and, when GitHub answers with a rate limit whose reset is close
// enough, waits for the reset and retries once.
func (g *GitHubProvider) call(ctx context.Context, fn func() (*github.Response, error)) (*github.Response, error) {
	resp, err := fn()
	if err == nil {
		return resp, nil
	}

	wait, limited := rateLimitWait(err)
	if !limited {
		return resp, err
	}
	if wait > g.maxRateLimitWait {
		slog.Warn("github rate limit reset too far away", "wait", wait, "max_wait", g.maxRateLimitWait)
		return resp, err
	}

	slog.Warn("github rate limited, waiting for reset", "wait", wait)
	if sleepErr := g.sleep(ctx, wait); sleepErr != nil {
		return resp, sleepErr
	}
	return fn()
}

func rateLimitWait(err error) (time.Duration, bool) {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return max(time.Until(rle.Rate.Reset.Time), 0), true
	}
	var arle *github.AbuseRateLimitError
	if errors.As(err, &arle) {
		if arle.RetryAfter != nil {
			return *arle.RetryAfter, true
		}
		return time.Minute, true
	}
	return 0, false
}

func statusOf(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}

func upstream(resp *github.Response, err error) error {
	return port.NewUpstreamError(serviceName, statusOf(resp), err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
