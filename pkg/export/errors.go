package export

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/scroll-export/pkg/pagination"
)

// KindSink marks a failure of the output sink.
const KindSink pagination.ErrorKind = "sink"

// SinkError wraps a failed sink write or flush. It aborts the export.
type SinkError struct {
	Op  string // "open", "write", "flush" or "close"
	Err error
}

// Error implements the error interface.
func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s failed: %v", e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SinkError) Unwrap() error {
	return e.Err
}

// KindOf classifies err, including sink failures. A sink failure caused by
// cancellation is reported as cancelled.
func KindOf(err error) pagination.ErrorKind {
	if kind := pagination.KindOf(err); kind == pagination.KindCancelled {
		return kind
	}
	var sinkErr *SinkError
	if errors.As(err, &sinkErr) {
		return KindSink
	}
	return pagination.KindOf(err)
}
