package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/naka-gawa/repo-redirector/internal/cache"
	"github.com/naka-gawa/repo-redirector/internal/metrics"
)

// Status is the body of GET /status on the admin listener.
type Status struct {
	Account      string          `json:"account"`
	Populated    bool            `json:"populated"`
	Repositories int             `json:"repositories"`
	LastRefresh  *time.Time      `json:"last_refresh,omitempty"`
	Builds       metrics.Summary `json:"builds"`
}

// NewAdmin returns the admin mux serving /metrics and /status.
// It is meant for a separate listener so it never shadows a repository name.
func NewAdmin(index *cache.Index, recorder *metrics.Recorder, account string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", recorder.Handler())
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		status := Status{
			Account:      account,
			Populated:    index.Populated(),
			Repositories: index.Len(),
			Builds:       recorder.Summary(),
		}
		if last := index.LastRefresh(); !last.IsZero() {
			status.LastRefresh = &last
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	})
	return mux
}
