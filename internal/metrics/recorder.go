// Package metrics exports index build metrics for Prometheus and a small
// latency summary for the status endpoint.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "redirector"
	// recentBuilds bounds the window used by Summary.
	recentBuilds = 100
)

// Recorder collects build outcomes and durations.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry     *prom.Registry
	builds       *prom.CounterVec
	duration     prom.Histogram
	repositories prom.Gauge
	lastSuccess  prom.Gauge

	mu     sync.Mutex
	recent []float64
}

// Summary describes recent successful build durations in seconds.
type Summary struct {
	Samples int     `json:"samples"`
	Median  float64 `json:"median_seconds"`
	P95     float64 `json:"p95_seconds"`
}

// NewRecorder registers the build metrics plus Go and process collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prom.NewRegistry(),
		builds: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "index_builds_total",
			Help:      "Repository index builds by result",
		}, []string{"result"}),
		duration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "index_build_duration_seconds",
			Help:      "Duration of repository index builds, including the upstream call",
			Buckets:   prom.DefBuckets,
		}),
		repositories: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_repositories",
			Help:      "Repositories in the most recently installed index",
		}),
		lastSuccess: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "index_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful index build",
		}),
	}
	r.registry.MustRegister(r.builds, r.duration, r.repositories, r.lastSuccess)
	r.registry.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	return r
}

// ObserveBuild records one build attempt. repos is only meaningful when err is nil.
func (r *Recorder) ObserveBuild(d time.Duration, repos int, err error) {
	if r == nil {
		return
	}
	r.duration.Observe(d.Seconds())
	if err != nil {
		r.builds.WithLabelValues("failure").Inc()
		return
	}
	r.builds.WithLabelValues("success").Inc()
	r.repositories.Set(float64(repos))
	r.lastSuccess.SetToCurrentTime()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.recent = append(r.recent, d.Seconds())
	if len(r.recent) > recentBuilds {
		r.recent = r.recent[len(r.recent)-recentBuilds:]
	}
}

// Summary returns the median and 95th percentile of recent successful builds.
// All fields are zero until a build has succeeded.
func (r *Recorder) Summary() Summary {
	if r == nil {
		return Summary{}
	}
	r.mu.Lock()
	data := stats.Float64Data(append([]float64(nil), r.recent...))
	r.mu.Unlock()

	if len(data) == 0 {
		return Summary{}
	}
	median, err := data.Median()
	if err != nil {
		return Summary{}
	}
	p95, err := data.Percentile(95)
	if err != nil {
		return Summary{}
	}
	return Summary{Samples: len(data), Median: median, P95: p95}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prom.Registry {
	return r.registry
}
