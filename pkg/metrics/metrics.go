// Package metrics exposes the Prometheus registry of scroll-export.
// All metrics are defined in their respective packages (client, pagination,
// export, sink) to maintain modularity and avoid circular dependencies.
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

// Registry is the default Prometheus registry used by scroll-export.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry metrics are served from.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the /metrics handler for Gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Server serves /metrics while an export runs.
type Server struct {
	srv    *http.Server
	ln     net.Listener
	done   chan struct{}
	logger zerolog.Logger
}

// Start listens on addr and serves /metrics in the background.
func Start(addr string, logger zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

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

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Metrics server listening")
	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server and waits for the serve loop to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)
	<-s.done
	if err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - scroll_export_requests_total{operation, status} (Counter): Requests by operation (open, advance, close) and HTTP status
//   - scroll_export_request_duration_seconds{operation} (Histogram): Request duration by operation
//
// Retry Metrics (pkg/pagination):
//   - scroll_export_retries_total{error_kind} (Counter): Retry attempts by error kind
//   - scroll_export_retry_backoff_seconds (Histogram): Backoff durations
//   - scroll_export_retry_exhausted_total{operation} (Counter): Requests that exhausted max attempts
//
// Cursor Metrics (pkg/pagination):
//   - scroll_export_cursors_opened_total (Counter): Scroll cursors opened
//   - scroll_export_cursors_closed_total{result} (Counter): Releases by result (released, not_found, failed)
//
// Export Metrics (pkg/export):
//   - scroll_export_records_total (Counter): Records received
//   - scroll_export_records_skipped_total (Counter): Records without a value under the skip policy
//   - scroll_export_batches_total (Counter): Non-empty batches
//   - scroll_export_runs_total{outcome} (Counter): Runs by outcome (completed, aborted)
//
// Sink Metrics (pkg/sink):
//   - scroll_export_sink_writes_total{type} (Counter): Values written by sink type
//   - scroll_export_sink_errors_total{type, operation} (Counter): Sink failures
//
// Example Prometheus Queries:
//
//   # Export throughput
//   rate(scroll_export_records_total[1m])
//
//   # Retry pressure by kind
//   sum by (error_kind) (rate(scroll_export_retries_total[5m]))
//
//   # Leaked cursors
//   scroll_export_cursors_opened_total - ignoring(result) sum(scroll_export_cursors_closed_total)
//
//   # P95 advance latency
//   histogram_quantile(0.95, rate(scroll_export_request_duration_seconds_bucket{operation="advance"}[5m]))
