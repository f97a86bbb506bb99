// Package metrics provides the Prometheus registry and the /metrics
// endpoint for the scraper.
// All metrics are defined in their respective packages (client, ratelimit,
// checkpoint, pagination, enrich) to maintain modularity and avoid circular
// dependencies.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry used by the scraper.
// All metrics are automatically registered via promauto in their respective
// packages; the exposition handler registers its own scrape counters here.
var Registry = prometheus.DefaultRegisterer

// Handler returns the Prometheus exposition handler for the default gatherer,
// instrumented with promhttp_metric_handler_* metrics on Registry.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		Registry,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}),
	)
}

// Server exposes /metrics and /health while a run is in progress.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	done   chan struct{}
	logger zerolog.Logger
}

// Start listens on addr and serves metrics in the background.
func Start(addr string, logger zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", healthHandler)

	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		ln:     ln,
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "metrics").Logger(),
	}

	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server and waits for it to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	<-s.done
	return err
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - registry_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - registry_request_duration_seconds{endpoint} (Histogram): Request duration including retries
//   - registry_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, decode)
//
// Retry Metrics (pkg/client):
//   - registry_retries_total{error_class} (Counter): Retry attempts by error class
//   - registry_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - registry_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Pacing Metrics (pkg/ratelimit):
//   - registry_pacing_wait_seconds (Histogram): Time spent waiting for the pacer
//   - registry_paced_requests_total (Counter): Requests that passed the pacer
//
// Listing Metrics (pkg/pagination):
//   - scraper_listing_pages_total{result} (Counter): Listing pages by result (ok, failed, empty)
//   - scraper_listing_references (Gauge): References collected by the last harvest
//
// Enrichment Metrics (pkg/enrich):
//   - scraper_items_total{result} (Counter): References by result (enriched, skipped)
//   - scraper_registration_lookups_total{result} (Counter): Lookups by result (found, empty, failed, skipped)
//   - scraper_checkpoints_total (Counter): Enrichment checkpoints written
//   - scraper_enrich_progress{kind} (Gauge): Processed and total references
//
// Checkpoint Metrics (pkg/checkpoint):
//   - scraper_checkpoint_writes_total{artifact} (Counter): Artifact writes
//   - scraper_checkpoint_bytes{artifact} (Gauge): Size of the last write per artifact
//   - scraper_checkpoint_errors_total{operation} (Counter): Failed reads, writes and removals
//
// Exposition Metrics (pkg/metrics):
//   - promhttp_metric_handler_requests_total{code} (Counter): Scrapes of /metrics by status
//   - promhttp_metric_handler_requests_in_flight (Gauge): Scrapes being served
//
// Example Prometheus Queries:
//
//   # Enrichment Progress
//   scraper_enrich_progress{kind="processed"} / scraper_enrich_progress{kind="total"}
//
//   # Skip Rate
//   rate(scraper_items_total{result="skipped"}[5m]) / rate(scraper_items_total[5m])
//
//   # Request Error Rate
//   rate(registry_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(registry_request_duration_seconds_bucket[5m]))
