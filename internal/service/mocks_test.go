package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
	"github.com/arturoeanton/go-commit-reporter/internal/port"
)

// mockRepo is one repository served by mockHosting.
type mockRepo struct {
	branches   []string
	commits    map[string][]domain.Commit // branch -> commits, newest first
	branchErr  error
	commitsErr error
}

// mockHosting is an in-memory hosting API that records every call.
type mockHosting struct {
	mu        sync.Mutex
	repos     map[string]*mockRepo // keyed by URL
	existsErr map[string]error
	calls     []string
}

func newMockHosting() *mockHosting {
	return &mockHosting{repos: map[string]*mockRepo{}, existsErr: map[string]error{}}
}

func (m *mockHosting) add(url string, r *mockRepo) {
	m.repos[url] = r
}

func (m *mockHosting) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockHosting) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockHosting) RepositoryExists(_ context.Context, repo domain.Repository) (bool, error) {
	m.record("exists " + repo.URL)
	if err := m.existsErr[repo.URL]; err != nil {
		return false, err
	}
	_, ok := m.repos[repo.URL]
	return ok, nil
}

func (m *mockHosting) ListBranches(_ context.Context, repo domain.Repository) ([]domain.Branch, error) {
	m.record("branches " + repo.URL)
	r, ok := m.repos[repo.URL]
	if !ok {
		return nil, port.NewUpstreamError("github", http.StatusNotFound, errors.New("Not Found"))
	}
	if r.branchErr != nil {
		return nil, r.branchErr
	}
	out := make([]domain.Branch, len(r.branches))
	for i, b := range r.branches {
		out[i] = domain.Branch{Name: b}
	}
	return out, nil
}

func (m *mockHosting) ListCommits(_ context.Context, repo domain.Repository, q port.CommitQuery) (port.CommitPage, error) {
	m.record("commits " + repo.URL + " " + q.Branch)
	r, ok := m.repos[repo.URL]
	if !ok {
		return port.CommitPage{}, port.NewUpstreamError("github", http.StatusNotFound, errors.New("Not Found"))
	}
	if r.commitsErr != nil {
		return port.CommitPage{}, r.commitsErr
	}

	branch := q.Branch
	if branch == "" && len(r.branches) > 0 {
		branch = r.branches[0]
	}
	var matched []domain.Commit
	for _, c := range r.commits[branch] {
		if !q.Since.IsZero() && c.AuthorDate.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && c.AuthorDate.After(q.Until) {
			continue
		}
		matched = append(matched, c)
	}

	page := max(q.Page, 1)
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = 30
	}
	start := (page - 1) * perPage
	if start >= len(matched) {
		return port.CommitPage{}, nil
	}
	end := min(start+perPage, len(matched))
	return port.CommitPage{Commits: matched[start:end], HasNext: end < len(matched)}, nil
}

// mockSummarizer echoes a deterministic answer and counts calls.
type mockSummarizer struct {
	mu      sync.Mutex
	prompts []string
	err     error
}

func (m *mockSummarizer) ModelName() string { return "mock" }

func (m *mockSummarizer) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return "summary #" + string(rune('0'+len(m.prompts))), nil
}

func (m *mockSummarizer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// commitAt builds a commit authored at the given UTC time.
func commitAt(sha, msg string, at time.Time) domain.Commit {
	return domain.Commit{SHA: sha, Message: msg, AuthorName: "Ana", AuthorDate: at}
}
