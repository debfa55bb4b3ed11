package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Sternrassler/scroll-export/pkg/pagination"
	"github.com/Sternrassler/scroll-export/pkg/sink"
)

// MissingPolicy decides what is written for a record whose projected field
// is absent or null.
type MissingPolicy string

const (
	// MissingNull writes a JSON null so every record yields one sink entry.
	MissingNull MissingPolicy = "null"

	// MissingSkip writes nothing for the record.
	MissingSkip MissingPolicy = "skip"
)

// ParseMissingPolicy converts a config string to a MissingPolicy.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch p := MissingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case MissingNull, MissingSkip:
		return p, nil
	case "":
		return MissingNull, nil
	default:
		return "", fmt.Errorf("unknown missing-field policy %q (want null or skip)", s)
	}
}

// Hit metadata that can be projected like a source field.
const (
	fieldID    = "_id"
	fieldIndex = "_index"
)

// Extractor projects fields out of each hit and writes them to a sink.
//
// With one field the sink receives that field's value. With several it
// receives an object keyed by field name, in the configured field order.
// Dotted names resolve into nested objects unless the source has a literal
// key with the dots in it.
type Extractor struct {
	fields  []string
	missing MissingPolicy
	sink    sink.Sink

	written int64
	skipped int64
}

// NewExtractor creates a new extractor.
func NewExtractor(fields []string, missing MissingPolicy, s sink.Sink) (*Extractor, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("at least one field is required")
	}
	if s == nil {
		return nil, fmt.Errorf("sink cannot be nil")
	}
	if missing == "" {
		missing = MissingNull
	}
	if missing != MissingNull && missing != MissingSkip {
		return nil, fmt.Errorf("unknown missing-field policy %q", missing)
	}

	return &Extractor{
		fields:  append([]string(nil), fields...),
		missing: missing,
		sink:    s,
	}, nil
}

// Written returns the number of values the sink accepted and flushed.
func (e *Extractor) Written() int64 {
	return e.written
}

// Skipped returns the number of records skipped for having no value.
func (e *Extractor) Skipped() int64 {
	return e.skipped
}

// Extract writes one value per hit in batch order and flushes the sink.
// The returned count is the number of hits processed, skipped ones
// included; zero means the result set is drained.
func (e *Extractor) Extract(ctx context.Context, batch *pagination.Batch) (int, error) {
	n := batch.Len()
	if n == 0 {
		return 0, nil
	}

	// Values count as written once the flush persisted them.
	var pending int64
	for i := range batch.Hits {
		value, ok, err := e.project(&batch.Hits[i])
		if err != nil {
			return i, err
		}
		if !ok {
			if e.missing == MissingSkip {
				e.skipped++
				recordsSkippedTotal.Inc()
				continue
			}
			value = nullValue
		}

		if err := e.sink.Write(ctx, value); err != nil {
			return i, &SinkError{Op: "write", Err: err}
		}
		pending++
	}

	if err := e.sink.Flush(ctx); err != nil {
		return n, &SinkError{Op: "flush", Err: err}
	}
	e.written += pending

	return n, nil
}

var nullValue = json.RawMessage("null")

// project returns the value to write for hit. ok is false when no field has
// a value. A _source that is not a JSON object counts as having no fields.
func (e *Extractor) project(hit *pagination.Hit) (json.RawMessage, bool, error) {
	var source map[string]json.RawMessage
	if len(hit.Source) > 0 {
		// Non-object sources (or null) leave source nil.
		_ = json.Unmarshal(hit.Source, &source)
	}

	if len(e.fields) == 1 {
		v, ok := lookup(hit, source, e.fields[0])
		return v, ok, nil
	}

	var buf bytes.Buffer
	found := false
	buf.WriteByte('{')
	first := true
	for _, field := range e.fields {
		v, ok := lookup(hit, source, field)
		if ok {
			found = true
		} else if e.missing == MissingSkip {
			continue
		} else {
			v = nullValue
		}

		key, err := json.Marshal(field)
		if err != nil {
			return nil, false, fmt.Errorf("encode field name %q: %w", field, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')

	if !found {
		return nil, false, nil
	}
	return buf.Bytes(), true, nil
}

// lookup resolves field on hit. Null values count as absent.
func lookup(hit *pagination.Hit, source map[string]json.RawMessage, field string) (json.RawMessage, bool) {
	switch field {
	case fieldID:
		return quote(hit.ID)
	case fieldIndex:
		return quote(hit.Index)
	}
	return lookupPath(source, field)
}

func lookupPath(obj map[string]json.RawMessage, path string) (json.RawMessage, bool) {
	if obj == nil {
		return nil, false
	}
	if v, ok := obj[path]; ok {
		if isNull(v) {
			return nil, false
		}
		return v, true
	}

	// Try each dot as an object boundary, shortest prefix first.
	for i := 0; i < len(path); i++ {
		if path[i] != '.' {
			continue
		}
		raw, ok := obj[path[:i]]
		if !ok {
			continue
		}
		var child map[string]json.RawMessage
		if err := json.Unmarshal(raw, &child); err != nil {
			continue
		}
		if v, ok := lookupPath(child, path[i+1:]); ok {
			return v, true
		}
	}
	return nil, false
}

func quote(s string) (json.RawMessage, bool) {
	if s == "" {
		return nil, false
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, false
	}
	return b, true
}

func isNull(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || bytes.Equal(v, nullValue)
}
