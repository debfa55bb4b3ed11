package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// JSONArraySink streams values as one JSON array. The closing bracket is
// written on Close, so the output is only valid JSON after Close returns.
type JSONArraySink struct {
	w      *bufio.Writer
	closer io.Closer
	count  int
	closed bool
}

// NewJSONArraySink wraps w. closer may be nil (e.g. for stdout).
func NewJSONArraySink(w io.Writer, closer io.Closer) *JSONArraySink {
	return &JSONArraySink{
		w:      bufio.NewWriterSize(w, 64*1024),
		closer: closer,
	}
}

// Write appends value as the next array element.
func (s *JSONArraySink) Write(ctx context.Context, value json.RawMessage) error {
	sep := byte(',')
	if s.count == 0 {
		sep = '['
	}
	if err := s.w.WriteByte(sep); err != nil {
		SinkErrors.WithLabelValues(string(TypeJSON), "write").Inc()
		return fmt.Errorf("write value: %w", err)
	}
	if _, err := s.w.Write(render(value, false)); err != nil {
		SinkErrors.WithLabelValues(string(TypeJSON), "write").Inc()
		return fmt.Errorf("write value: %w", err)
	}
	s.count++
	SinkWrites.WithLabelValues(string(TypeJSON)).Inc()
	return nil
}

// Flush flushes the buffer to the underlying writer.
func (s *JSONArraySink) Flush(ctx context.Context) error {
	if err := s.w.Flush(); err != nil {
		SinkErrors.WithLabelValues(string(TypeJSON), "flush").Inc()
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Close terminates the array and closes the underlying file, if any.
func (s *JSONArraySink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	tail := "]\n"
	if s.count == 0 {
		tail = "[]\n"
	}

	var err error
	if _, werr := s.w.WriteString(tail); werr != nil {
		err = fmt.Errorf("write array end: %w", werr)
	} else if ferr := s.w.Flush(); ferr != nil {
		err = fmt.Errorf("flush: %w", ferr)
	}
	if s.closer != nil {
		if cerr := s.closer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}
	if err != nil {
		SinkErrors.WithLabelValues(string(TypeJSON), "close").Inc()
	}
	return err
}
