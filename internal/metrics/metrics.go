// Package metrics exposes the crawl's Prometheus instrumentation: fetch
// counters in the fetcher, scheduler gauges (queue depth, guard
// contention), WARC rollovers and link-state transitions.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atra_fetch_requests_total",
			Help: "Total number of page fetches executed",
		},
		[]string{"origin", "status", "detected", "detection_src"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atra_fetch_duration_seconds",
			Help:    "Duration of page fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"origin"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atra_fetch_bytes_total",
			Help: "Total bytes downloaded across all fetches",
		},
		[]string{"origin"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atra_proxy_failures_total",
			Help: "Total number of proxy failures during fetches",
		},
		[]string{"proxy_url"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "atra_queue_depth",
			Help: "Number of entries currently in the URL queue",
		},
	)

	IdleWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "atra_idle_workers",
			Help: "Workers currently out of work, waiting at the barrier",
		},
	)

	GuardContention = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "atra_guard_contention_total",
			Help: "Polls that skipped a URL because its origin was already reserved",
		},
	)

	WarcRollovers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "atra_warc_rollovers_total",
			Help: "WARC records whose body was split across files by the size limit; rollovers between records are not counted",
		},
	)

	LinkStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atra_link_state_transitions_total",
			Help: "Link-state kind transitions written to the store",
		},
		[]string{"kind"},
	)
)

// Fetch summarizes one page fetch for RecordFetch.
type Fetch struct {
	Origin       string
	StatusCode   int
	Failed       bool
	DetectedBot  bool
	DetectionSrc string
	Duration     time.Duration
	Bytes        int
}

// RecordFetch updates the fetch metrics for one completed (or failed)
// request.
func RecordFetch(f Fetch) {
	detectedStr := "false"
	if f.DetectedBot {
		detectedStr = "true"
	}

	statusStr := strconv.Itoa(f.StatusCode)
	if f.Failed {
		statusStr = "error"
	}

	FetchRequestsTotal.WithLabelValues(f.Origin, statusStr, detectedStr, f.DetectionSrc).Inc()
	FetchDuration.WithLabelValues(f.Origin).Observe(f.Duration.Seconds())
	FetchBytesTotal.WithLabelValues(f.Origin).Add(float64(f.Bytes))
}

// RecordLinkState counts one state transition by kind name.
func RecordLinkState(kind fmt.Stringer) {
	LinkStateTransitions.WithLabelValues(kind.String()).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
// The server runs in a background goroutine and must be stopped via Server.Stop()
// to release resources and avoid leaks.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
