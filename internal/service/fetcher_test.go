package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-commit-reporter/internal/adapter/cache"
	"github.com/arturoeanton/go-commit-reporter/internal/domain"
	"github.com/arturoeanton/go-commit-reporter/internal/port"
)

func manyCommits(prefix string, n int, from time.Time) []domain.Commit {
	out := make([]domain.Commit, n)
	for i := range n {
		out[i] = commitAt(prefix+string(rune('a'+i%26)), "msg", from.Add(-time.Duration(i)*time.Minute))
	}
	return out
}

func TestAllCommitsInRangeFollowsPagination(t *testing.T) {
	hosting := newMockHosting()
	shared := commitAt("shared", "merge", time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC))
	hosting.add(apiRepo.URL, &mockRepo{
		branches: []string{"main", "dev"},
		commits: map[string][]domain.Commit{
			"main": append(manyCommits("m", 250, time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)), shared),
			"dev":  {shared},
		},
	})
	f := NewCommitFetcher(hosting, cache.NewMetadataStore())

	commits, err := f.AllCommitsInRange(context.Background(), apiRepo, march)
	require.NoError(t, err)
	assert.Len(t, commits, 252)

	// main takes three pages of 100, dev one
	var mainPages, devPages int
	for _, c := range hosting.calls {
		switch c {
		case "commits " + apiRepo.URL + " main":
			mainPages++
		case "commits " + apiRepo.URL + " dev":
			devPages++
		}
	}
	assert.Equal(t, 3, mainPages)
	assert.Equal(t, 1, devPages)

	// sorted newest first, duplicates across branches kept
	for i := 1; i < len(commits); i++ {
		assert.False(t, commits[i].AuthorDate.After(commits[i-1].AuthorDate))
	}
	assert.Equal(t, "shared", commits[len(commits)-1].SHA)
	assert.Equal(t, "shared", commits[len(commits)-2].SHA)
}

func TestAllCommitsInRangeFiltersByNormalizedBounds(t *testing.T) {
	hosting := newMockHosting()
	hosting.add(apiRepo.URL, &mockRepo{
		branches: []string{"main"},
		commits: map[string][]domain.Commit{
			"main": {
				// 01/04 00:30 in São Paulo, outside
				commitAt("late", "x", time.Date(2024, 4, 1, 3, 30, 0, 0, time.UTC)),
				// 31/03 23:30 in São Paulo, inside
				commitAt("edge", "x", time.Date(2024, 4, 1, 2, 30, 0, 0, time.UTC)),
				// 29/02 23:59 in São Paulo, outside
				commitAt("early", "x", time.Date(2024, 3, 1, 2, 59, 0, 0, time.UTC)),
			},
		},
	})
	f := NewCommitFetcher(hosting, cache.NewMetadataStore())

	commits, err := f.AllCommitsInRange(context.Background(), apiRepo, march)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "edge", commits[0].SHA)
}

func TestAllCommitsInRangePageErrorAborts(t *testing.T) {
	hosting := newMockHosting()
	r := activeRepo()
	r.commitsErr = port.NewUpstreamError("github", http.StatusForbidden, errors.New("rate limited"))
	hosting.add(apiRepo.URL, r)
	f := NewCommitFetcher(hosting, cache.NewMetadataStore())

	_, err := f.AllCommitsInRange(context.Background(), apiRepo, march)
	require.Error(t, err)
	var ue *port.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusForbidden, ue.StatusCode)
}

func TestLatestCommitsMergesBranches(t *testing.T) {
	hosting := newMockHosting()
	hosting.add(apiRepo.URL, &mockRepo{
		branches: []string{"main", "dev"},
		commits: map[string][]domain.Commit{
			"main": manyCommits("m", 4, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
			"dev":  manyCommits("d", 4, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)),
		},
	})
	f := NewCommitFetcher(hosting, cache.NewMetadataStore())

	latest, err := f.LatestCommits(context.Background(), apiRepo, 5)
	require.NoError(t, err)
	require.Len(t, latest, 5)
	assert.Equal(t, "da", latest[0].SHA)
	assert.Equal(t, "dd", latest[3].SHA)
	assert.Equal(t, "ma", latest[4].SHA)
}

func TestFetcherMemoizesMetadata(t *testing.T) {
	hosting := newMockHosting()
	hosting.add(apiRepo.URL, activeRepo())
	f := NewCommitFetcher(hosting, cache.NewMetadataStore())
	ctx := context.Background()

	for range 3 {
		ok, err := f.Exists(ctx, apiRepo)
		require.NoError(t, err)
		assert.True(t, ok)
		_, err = f.ListBranches(ctx, apiRepo)
		require.NoError(t, err)
	}
	for range 2 {
		ok, err := f.Exists(ctx, webRepo)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	assert.Equal(t, []string{
		"exists " + apiRepo.URL,
		"branches " + apiRepo.URL,
		"exists " + webRepo.URL,
	}, hosting.calls)
}
