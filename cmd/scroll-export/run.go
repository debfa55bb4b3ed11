package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/scroll-export/pkg/client"
	"github.com/Sternrassler/scroll-export/pkg/config"
	"github.com/Sternrassler/scroll-export/pkg/export"
	"github.com/Sternrassler/scroll-export/pkg/logging"
	"github.com/Sternrassler/scroll-export/pkg/metrics"
	"github.com/Sternrassler/scroll-export/pkg/pagination"
	"github.com/Sternrassler/scroll-export/pkg/sink"
	"github.com/google/uuid"
)

// exportFailure is a failed export whose summary was already printed.
type exportFailure struct {
	err error
}

func (e *exportFailure) Error() string { return e.err.Error() }
func (e *exportFailure) Unwrap() error { return e.err }

// runExport wires the components from cfg and runs one export. Logs and the
// summary line go to stderr; stdout is reserved for exported values.
func runExport(ctx context.Context, cfg *config.Config, stderr io.Writer) error {
	lc := cfg.LoggingConfig()
	lc.Output = stderr
	root := logging.Setup(lc)

	runID := uuid.NewString()
	base := root.With().Str("run_id", runID).Logger()
	logger := base.With().Str("component", "cli").Logger()

	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Start(cfg.Metrics.Addr, base)
		if err != nil {
			return &configError{err: err}
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("Metrics server shutdown failed")
			}
		}()
	}

	sender, err := client.New(cfg.ClientConfig())
	if err != nil {
		return &configError{err: fmt.Errorf("create client: %w", err)}
	}

	fetcher := pagination.NewBatchFetcher(sender, cfg.RetryPolicy(), base)
	cursors, err := pagination.NewCursorManager(cfg.CursorConfig(), sender, fetcher, base)
	if err != nil {
		return &configError{err: fmt.Errorf("create cursor manager: %w", err)}
	}

	out, err := sink.Open(ctx, cfg.SinkConfig(runID))
	if err != nil {
		return &export.SinkError{Op: "open", Err: err}
	}

	extractor, err := export.NewExtractor(cfg.Scroll.Fields, cfg.MissingPolicy(), out)
	if err != nil {
		out.Close()
		return &configError{err: err}
	}

	exporter, err := export.New(cursors, extractor, export.Options{
		RunID:         runID,
		ProgressEvery: cfg.Log.ProgressEvery,
	}, root)
	if err != nil {
		out.Close()
		return &configError{err: err}
	}

	res, runErr := exporter.Run(ctx)

	if closeErr := out.Close(); closeErr != nil {
		logger.Error().Err(closeErr).Msg("Failed to close sink")
		if runErr == nil {
			runErr = &export.SinkError{Op: "close", Err: closeErr}
			res.Outcome = export.OutcomeAborted
			res.Kind = export.KindSink
			res.Err = runErr
		}
	}

	fmt.Fprintln(stderr, res.Summary())

	if runErr != nil {
		return &exportFailure{err: runErr}
	}
	return nil
}
