package cache

import (
	"slices"
	"sync"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
)

// MetadataStore memoizes repository existence and branch lists for the
// lifetime of the process. Entries never expire.
type MetadataStore struct {
	mu       sync.RWMutex
	exists   map[string]bool
	branches map[string][]domain.Branch
}

// NewMetadataStore creates an empty metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		exists:   make(map[string]bool),
		branches: make(map[string][]domain.Branch),
	}
}

// Exists returns the cached existence of repoURL and whether it was cached.
func (s *MetadataStore) Exists(repoURL string) (bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.exists[repoURL]
	return v, ok
}

// SetExists records whether repoURL exists.
func (s *MetadataStore) SetExists(repoURL string, exists bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exists[repoURL] = exists
}

// Branches returns a copy of the cached branches of repoURL.
func (s *MetadataStore) Branches(repoURL string) ([]domain.Branch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.branches[repoURL]
	return slices.Clone(b), ok
}

// SetBranches caches a copy of branches for repoURL.
func (s *MetadataStore) SetBranches(repoURL string, branches []domain.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.branches[repoURL] = slices.Clone(branches)
}
