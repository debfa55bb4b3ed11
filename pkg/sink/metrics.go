package sink

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SinkWrites tracks values accepted by each sink type
	SinkWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scroll_export_sink_writes_total",
			Help: "Total number of values written by sink type",
		},
		[]string{"type"},
	)

	// SinkErrors tracks sink operation errors
	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scroll_export_sink_errors_total",
			Help: "Total number of sink operation errors",
		},
		[]string{"type", "operation"}, // "write", "flush", "close"
	)
)
