// Package metrics provides Prometheus metrics for the sync engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cache resolution
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmsync_cache_lookups_total",
			Help: "Cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	// Download metrics
	downloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmsync_downloads_total",
			Help: "Total number of file downloads by status",
		},
		[]string{"status"},
	)

	downloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mmsync_download_bytes_total",
			Help: "Total bytes installed into the cache from the SDC",
		},
	)

	// Catalog metrics
	catalogRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmsync_catalog_requests_total",
			Help: "SDC file_info requests by status (ok, http_error, unreachable)",
		},
		[]string{"status"},
	)

	// Mirror metrics
	mirrorCopiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmsync_mirror_copies_total",
			Help: "Files copied from the read-only mirror by status",
		},
		[]string{"status"},
	)

	// Sync metrics
	syncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mmsync_sync_duration_seconds",
			Help:    "Duration of a full sync call by mode",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	syncFilesResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmsync_files_resolved_total",
			Help: "Resolved files by source (cache, download, local, mirror)",
		},
		[]string{"source"},
	)
)

// Handler returns the HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	cacheLookupsTotal.WithLabelValues("miss").Inc()
}

// RecordDownload records a finished download.
func RecordDownload(bytes int64, success bool) {
	if success {
		downloadsTotal.WithLabelValues("success").Inc()
		downloadBytesTotal.Add(float64(bytes))
		return
	}
	downloadsTotal.WithLabelValues("error").Inc()
}

// RecordCatalogRequest records the outcome of a catalog query.
func RecordCatalogRequest(status string) {
	catalogRequestsTotal.WithLabelValues(status).Inc()
}

// RecordMirrorCopy records a mirror copy.
func RecordMirrorCopy(success bool) {
	if success {
		mirrorCopiesTotal.WithLabelValues("success").Inc()
		return
	}
	mirrorCopiesTotal.WithLabelValues("error").Inc()
}

// RecordResolved records a resolved file and where it came from.
func RecordResolved(source string) {
	syncFilesResolved.WithLabelValues(source).Inc()
}

// RecordSync records the duration of a sync call.
func RecordSync(mode string, duration time.Duration) {
	syncDuration.WithLabelValues(mode).Observe(duration.Seconds())
}
