// Package cache holds the in-memory repository index shared by the redirect
// handler and the index builder.
package cache

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/naka-gawa/repo-redirector/internal/domain"
)

// Index is the process-wide repository index and its populated flag.
//
// A new Index is empty and unpopulated. Replace is the only way to change it,
// and it swaps the whole mapping in one step so readers never see a partial build.
type Index struct {
	mu          sync.RWMutex
	entries     domain.Index
	populated   bool
	lastRefresh time.Time
}

// New returns an empty, unpopulated Index.
func New() *Index {
	return &Index{entries: domain.Index{}}
}

// Replace installs entries as the current mapping and marks the index populated.
// The caller must not modify entries afterwards.
func (c *Index) Replace(entries domain.Index) {
	if entries == nil {
		entries = domain.Index{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
	c.populated = true
	c.lastRefresh = time.Now()
}

// Lookup returns the URL stored under key.
func (c *Index) Lookup(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	url, ok := c.entries[key]
	return url, ok
}

// Resolve is Lookup with an error wrapping domain.ErrNotFound for unknown keys.
func (c *Index) Resolve(key string) (string, error) {
	url, ok := c.Lookup(key)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrNotFound, key)
	}
	return url, nil
}

// Populated reports whether any build has completed successfully.
func (c *Index) Populated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.populated
}

// Len returns the number of indexed repositories.
func (c *Index) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// LastRefresh returns when the mapping was last replaced, or the zero time.
func (c *Index) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

// Snapshot returns a copy of the current mapping.
func (c *Index) Snapshot() domain.Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.entries)
}
