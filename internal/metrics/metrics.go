// Package metrics exposes Prometheus counters for fetches, listings and
// outbound HTTP traffic.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internsift_fetch_total",
			Help: "Adapter fetches by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "internsift_fetch_duration_seconds",
			Help:    "Duration of adapter fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"source"},
	)

	ListingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internsift_listings_total",
			Help: "Listings seen per source and pipeline stage (fetched, incomplete, matched)",
		},
		[]string{"source", "stage"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internsift_http_requests_total",
			Help: "Outbound HTTP requests by host, status and bot detection",
		},
		[]string{"host", "status", "detected", "detection_src"},
	)

	HTTPBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internsift_http_bytes_total",
			Help: "Response bytes downloaded by host",
		},
		[]string{"host"},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "internsift_proxy_failures_total",
			Help: "Proxy failures during outbound requests",
		},
		[]string{"proxy_url"},
	)
)

// RecordFetch counts one adapter invocation.
func RecordFetch(source, outcome string, d time.Duration) {
	FetchTotal.WithLabelValues(source, outcome).Inc()
	FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordListings adds n listings at stage for source.
func RecordListings(source, stage string, n int) {
	if n <= 0 {
		return
	}
	ListingsTotal.WithLabelValues(source, stage).Add(float64(n))
}

// RecordHTTP counts one outbound request. status 0 means the request
// failed before a response arrived.
func RecordHTTP(host string, status int, detectionSrc string, bytes int) {
	statusStr := strconv.Itoa(status)
	if status == 0 {
		statusStr = "error"
	}
	detected := strconv.FormatBool(detectionSrc != "")

	HTTPRequestsTotal.WithLabelValues(host, statusStr, detected, detectionSrc).Inc()
	HTTPBytesTotal.WithLabelValues(host).Add(float64(bytes))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on port and exposes /metrics.
func Start(port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "port", port, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
