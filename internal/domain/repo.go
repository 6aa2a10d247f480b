package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Repository is a remote repository tracked for commit reports.
type Repository struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Branch is a branch name as reported by the hosting API.
type Branch struct {
	Name string `json:"name"`
}

// OwnerAndName resolves the owner/name pair from the last two path segments of the URL.
func (r Repository) OwnerAndName() (string, string, error) {
	path := strings.TrimSpace(r.URL)
	if u, err := url.Parse(path); err == nil && u.Host != "" {
		path = u.Path
	} else if i := strings.Index(path, ":"); i >= 0 && !strings.Contains(path, "://") {
		// scp-like remote: git@github.com:owner/name.git
		path = path[i+1:]
	}
	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")

	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) < 2 {
		return "", "", fmt.Errorf("cannot resolve owner/name from repository url %q", r.URL)
	}
	return segments[len(segments)-2], segments[len(segments)-1], nil
}

// FullName returns "owner/name", or the raw URL when it cannot be resolved.
func (r Repository) FullName() string {
	owner, name, err := r.OwnerAndName()
	if err != nil {
		return r.URL
	}
	return owner + "/" + name
}
