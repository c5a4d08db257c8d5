// Package handler serves the redirect and admin HTTP surfaces.
package handler

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/naka-gawa/repo-redirector/internal/cache"
	"github.com/naka-gawa/repo-redirector/internal/domain"
)

// Response bodies of the redirect surface.
const (
	BodyOK          = "200 OK"
	BodyNotFound    = "Repo not found."
	BodyUnavailable = "Error fetching repos."
)

// Builder rebuilds the repository index.
type Builder interface {
	Build(ctx context.Context) error
}

// Redirect sends /<name> to the web URL of repository <name>, ignoring case.
type Redirect struct {
	index   *cache.Index
	builder Builder
	logger  *log.Logger
}

// NewRedirect creates a Redirect handler reading from index.
// builder is only used while the index has never been populated.
func NewRedirect(index *cache.Index, builder Builder, logger *log.Logger) *Redirect {
	return &Redirect{index: index, builder: builder, logger: logger}
}

func (h *Redirect) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.index.Populated() {
		// One client going away must not cancel a build other requests may be sharing.
		if err := h.builder.Build(context.WithoutCancel(r.Context())); err != nil {
			h.logger.Printf("Handler: %v: %v\n", domain.ErrStartupUnavailable, err)
			writeText(w, http.StatusInternalServerError, BodyUnavailable)
			return
		}
	}

	// The key keeps percent-escapes as sent: /my%2Eproject is not /my.project.
	key := domain.Key(strings.TrimPrefix(r.URL.EscapedPath(), "/"))
	if key == "" {
		writeText(w, http.StatusOK, BodyOK)
		return
	}

	target, err := h.index.Resolve(key)
	if errors.Is(err, domain.ErrNotFound) {
		writeText(w, http.StatusNotFound, BodyNotFound)
		return
	}
	http.Redirect(w, r, target, http.StatusMovedPermanently)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
