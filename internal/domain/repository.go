// Package domain contains the core data structures and domain logic for the application.
package domain

import "strings"

// Repository is a single entry of the upstream listing.
// Name keeps the case the upstream returned; URL is the repository's web page.
type Repository struct {
	Name string `json:"name"`
	URL  string `json:"html_url"`
}

// Index maps a lowercased repository name to its web URL.
type Index map[string]string

// NewIndex projects records into an Index.
// When two names fold to the same key, the record that comes later wins.
func NewIndex(repos []Repository) Index {
	idx := make(Index, len(repos))
	for _, repo := range repos {
		idx[Key(repo.Name)] = repo.URL
	}
	return idx
}

// Key returns the lookup key for a repository name or request path segment.
func Key(name string) string {
	return strings.ToLower(name)
}
