package service

import (
	"encoding/json"
	"log/slog"
	"slices"
	"strings"

	"github.com/arturoeanton/go-commit-reporter/internal/domain"
)

// RegistrySource is the raw configuration the registry is built from.
type RegistrySource struct {
	JSON  string // GITHUB_REPOSITORIES: [{"name":"...","url":"..."}]
	URLs  string // GITHUB_REPOSITORY_URLS, comma separated
	Names string // GITHUB_REPOSITORY_NAMES, comma separated, same length as URLs
}

// Registry holds the default set of repositories analyzed absent an override.
// It is immutable after construction.
type Registry struct {
	repos []domain.Repository
}

// NewRegistry parses src. Misconfiguration is logged and yields an empty registry.
func NewRegistry(src RegistrySource) *Registry {
	if src.JSON != "" {
		var repos []domain.Repository
		if err := json.Unmarshal([]byte(src.JSON), &repos); err != nil {
			slog.Error("failed to parse GITHUB_REPOSITORIES", "error", err)
		} else {
			slog.Info("repositories loaded from JSON configuration", "count", len(repos))
			return &Registry{repos: repos}
		}
	}

	urls := splitList(src.URLs)
	names := splitList(src.Names)
	if len(urls) == 0 {
		slog.Warn("no repositories configured; set GITHUB_REPOSITORIES or GITHUB_REPOSITORY_URLS and GITHUB_REPOSITORY_NAMES")
		return &Registry{}
	}
	if len(urls) != len(names) {
		slog.Warn("repository URL and name counts differ; check GITHUB_REPOSITORY_URLS and GITHUB_REPOSITORY_NAMES",
			"urls", len(urls), "names", len(names))
		return &Registry{}
	}

	repos := make([]domain.Repository, len(urls))
	for i := range urls {
		repos[i] = domain.Repository{Name: names[i], URL: urls[i]}
	}
	slog.Info("repositories loaded from configuration", "count", len(repos))
	return &Registry{repos: repos}
}

// NewStaticRegistry wraps an explicit list.
func NewStaticRegistry(repos []domain.Repository) *Registry {
	return &Registry{repos: slices.Clone(repos)}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// List returns a copy of the configured repositories in configuration order.
func (r *Registry) List() []domain.Repository {
	return slices.Clone(r.repos)
}

// Resolve returns custom when the caller supplied one (even empty), otherwise
// the configured list. The second result reports whether custom was used.
func (r *Registry) Resolve(custom []domain.Repository) ([]domain.Repository, bool) {
	if custom != nil {
		return custom, true
	}
	return r.List(), false
}
