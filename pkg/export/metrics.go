package export

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for export runs.
var (
	recordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scroll_export_records_total",
		Help: "Total number of records processed from scroll batches",
	})

	recordsSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scroll_export_records_skipped_total",
		Help: "Total number of records with no projected value that were not written",
	})

	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scroll_export_batches_total",
		Help: "Total number of accepted scroll batches",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scroll_export_runs_total",
		Help: "Total number of export runs by outcome",
	}, []string{"outcome"}) // "completed", "aborted"
)
