package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// NDJSONSink writes one value per line.
type NDJSONSink struct {
	w      *bufio.Writer
	closer io.Closer
	raw    bool
}

// NewNDJSONSink wraps w. closer may be nil (e.g. for stdout).
func NewNDJSONSink(w io.Writer, closer io.Closer, raw bool) *NDJSONSink {
	return &NDJSONSink{
		w:      bufio.NewWriterSize(w, 64*1024),
		closer: closer,
		raw:    raw,
	}
}

// Write appends value followed by a newline. Values spanning several lines
// are written as compact JSON, so raw strings holding a line break stay
// quoted and every record stays on one line.
func (s *NDJSONSink) Write(ctx context.Context, value json.RawMessage) error {
	line := render(value, s.raw)
	if bytes.ContainsAny(line, "\r\n") {
		var compact bytes.Buffer
		if err := json.Compact(&compact, value); err == nil {
			line = compact.Bytes()
		}
	}
	if _, err := s.w.Write(line); err != nil {
		SinkErrors.WithLabelValues(string(TypeNDJSON), "write").Inc()
		return fmt.Errorf("write value: %w", err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		SinkErrors.WithLabelValues(string(TypeNDJSON), "write").Inc()
		return fmt.Errorf("write value: %w", err)
	}
	SinkWrites.WithLabelValues(string(TypeNDJSON)).Inc()
	return nil
}

// Flush flushes the buffer to the underlying writer.
func (s *NDJSONSink) Flush(ctx context.Context) error {
	if err := s.w.Flush(); err != nil {
		SinkErrors.WithLabelValues(string(TypeNDJSON), "flush").Inc()
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file, if any.
func (s *NDJSONSink) Close() error {
	flushErr := s.Flush(context.Background())
	if s.closer != nil {
		if err := s.closer.Close(); err != nil && flushErr == nil {
			SinkErrors.WithLabelValues(string(TypeNDJSON), "close").Inc()
			return fmt.Errorf("close output: %w", err)
		}
	}
	return flushErr
}
