package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational metrics for a migration run.
type Metrics struct {
	// Request metrics
	RequestsTotal   atomic.Int64
	RequestsFailed  atomic.Int64
	RequestsRetried atomic.Int64
	RatePenalties   atomic.Int64

	// Media metrics
	MediaInlined    atomic.Int64
	MediaSkipped    atomic.Int64
	MediaTranscoded atomic.Int64
	CacheHits       atomic.Int64
	BytesDownloaded atomic.Int64

	// Resource metrics
	ResourcesUpdated atomic.Int64
	ResourcesFailed  atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"mediagoat_requests_total", "Total requests dispatched", m.RequestsTotal.Load()},
		{"mediagoat_requests_failed_total", "Total permanently failed requests", m.RequestsFailed.Load()},
		{"mediagoat_requests_retried_total", "Total retried requests", m.RequestsRetried.Load()},
		{"mediagoat_rate_penalties_total", "Total rate-limit spacing penalties applied", m.RatePenalties.Load()},
		{"mediagoat_media_inlined_total", "Total media assets stored and rewritten", m.MediaInlined.Load()},
		{"mediagoat_media_skipped_total", "Total media references left unrewritten", m.MediaSkipped.Load()},
		{"mediagoat_media_transcoded_total", "Total HEIC assets transcoded to JPEG", m.MediaTranscoded.Load()},
		{"mediagoat_cache_hits_total", "Total URL cache hits", m.CacheHits.Load()},
		{"mediagoat_bytes_downloaded_total", "Total bytes downloaded", m.BytesDownloaded.Load()},
		{"mediagoat_resources_updated_total", "Total CMS resources persisted", m.ResourcesUpdated.Load()},
		{"mediagoat_resources_failed_total", "Total CMS resources that failed to persist", m.ResourcesFailed.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"requests_total":    m.RequestsTotal.Load(),
		"requests_failed":   m.RequestsFailed.Load(),
		"requests_retried":  m.RequestsRetried.Load(),
		"rate_penalties":    m.RatePenalties.Load(),
		"media_inlined":     m.MediaInlined.Load(),
		"media_skipped":     m.MediaSkipped.Load(),
		"media_transcoded":  m.MediaTranscoded.Load(),
		"cache_hits":        m.CacheHits.Load(),
		"bytes_downloaded":  m.BytesDownloaded.Load(),
		"resources_updated": m.ResourcesUpdated.Load(),
		"resources_failed":  m.ResourcesFailed.Load(),
	}
}
