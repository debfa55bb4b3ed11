package pagination

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DocOrder is the physical index order. It is the cheapest stable sort and
// guarantees every document is returned exactly once across pages.
const DocOrder = "_doc"

// Query is the immutable description of one export.
type Query struct {
	// Index is the index, alias or comma-separated pattern to scroll over.
	Index string

	// PageSize is the number of hits requested per page. The server may
	// return fewer; only an empty page ends the export.
	PageSize int

	// Fields are the _source fields projected into each hit.
	Fields []string

	// Sort defaults to [DocOrder] when empty.
	Sort []string

	// TTL is how long the server keeps the cursor alive between pages.
	TTL time.Duration

	// Filter is an optional query DSL object; nil exports everything.
	Filter json.RawMessage
}

// Validate checks the query before any request is sent.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Index) == "" {
		return fmt.Errorf("index is required")
	}
	if q.PageSize < 1 {
		return fmt.Errorf("page size must be >= 1 (got %d)", q.PageSize)
	}
	if len(q.Fields) == 0 {
		return fmt.Errorf("at least one field is required")
	}
	for _, f := range q.Fields {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("field names must not be empty")
		}
	}
	if q.TTL < time.Millisecond {
		return fmt.Errorf("scroll ttl must be >= 1ms (got %s)", q.TTL)
	}
	if len(q.Filter) > 0 && !json.Valid(q.Filter) {
		return fmt.Errorf("filter is not valid JSON")
	}
	return nil
}

// clone returns a deep copy so callers cannot mutate a running export.
func (q Query) clone() Query {
	c := q
	c.Fields = append([]string(nil), q.Fields...)
	c.Sort = append([]string(nil), q.Sort...)
	if len(c.Sort) == 0 {
		c.Sort = []string{DocOrder}
	}
	if q.Filter != nil {
		c.Filter = append(json.RawMessage(nil), q.Filter...)
	}
	return c
}

type openRequest struct {
	Size   int             `json:"size"`
	Source []string        `json:"_source"`
	Sort   []string        `json:"sort"`
	Query  json.RawMessage `json:"query,omitempty"`
}

type advanceRequest struct {
	Scroll   string `json:"scroll"`
	ScrollID string `json:"scroll_id"`
}

type clearRequest struct {
	ScrollID []string `json:"scroll_id"`
}

func (q Query) openBody() ([]byte, error) {
	return json.Marshal(openRequest{
		Size:   q.PageSize,
		Source: q.Fields,
		Sort:   q.Sort,
		Query:  q.Filter,
	})
}

func (q Query) openURL(base string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(q.Index) +
		"/_search?scroll=" + url.QueryEscape(KeepAlive(q.TTL))
}

func scrollURL(base string) string {
	return strings.TrimRight(base, "/") + "/_search/scroll"
}

// KeepAlive formats d in the search service's time-unit syntax.
func KeepAlive(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	case d%time.Second == 0:
		return fmt.Sprintf("%ds", d/time.Second)
	default:
		return fmt.Sprintf("%dms", d/time.Millisecond)
	}
}
