package domain

import (
	"sort"
	"time"
)

// Commit is a single commit as returned by the hosting API.
type Commit struct {
	SHA        string    `json:"sha"`
	Message    string    `json:"message"`
	AuthorName string    `json:"author_name"`
	AuthorDate time.Time `json:"author_date"`
}

// SortByAuthorDateDesc orders commits newest first. Ties keep their input order.
func SortByAuthorDateDesc(commits []Commit) {
	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].AuthorDate.After(commits[j].AuthorDate)
	})
}
