package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/scroll-export/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for cursor lifecycle.
var (
	cursorsOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scroll_export_cursors_opened_total",
		Help: "Total number of scroll cursors opened",
	})

	cursorsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scroll_export_cursors_closed_total",
		Help: "Total number of scroll cursor releases by result",
	}, []string{"result"}) // "released", "not_found", "failed"
)

// Operation labels used for requests, logs and metrics.
const (
	OperationOpen    = "open"
	OperationAdvance = "advance"
	OperationClose   = "close"
)

// CursorConfig holds the cursor manager configuration.
type CursorConfig struct {
	// BaseURL of the search service, e.g. "http://localhost:9200".
	BaseURL string

	// Query is copied on construction and never changes afterwards.
	Query Query

	// CloseTimeout bounds the release call. It runs on a context detached
	// from the caller so it still happens after cancellation.
	CloseTimeout time.Duration
}

// CursorManager opens scroll cursors for one query.
type CursorManager struct {
	sender  client.Sender
	fetcher *BatchFetcher
	config  CursorConfig
	logger  zerolog.Logger
}

// NewCursorManager creates a new cursor manager.
func NewCursorManager(cfg CursorConfig, sender client.Sender, fetcher *BatchFetcher, logger zerolog.Logger) (*CursorManager, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if sender == nil || fetcher == nil {
		return nil, fmt.Errorf("sender and fetcher are required")
	}
	if err := cfg.Query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 30 * time.Second
	}

	cfg.Query = cfg.Query.clone()

	return &CursorManager{
		sender:  sender,
		fetcher: fetcher,
		config:  cfg,
		logger:  logger.With().Str("component", "cursor").Str("index", cfg.Query.Index).Logger(),
	}, nil
}

// Query returns a copy of the query this manager scrolls.
func (m *CursorManager) Query() Query {
	return m.config.Query.clone()
}

// Open runs the initial query and returns the cursor with its first page.
// Every failure is an *OpenError; in that case no cursor exists and there
// is nothing to release. Scroll ids carried by rejected open responses are
// released before Open returns.
func (m *CursorManager) Open(ctx context.Context) (*Cursor, *Batch, error) {
	q := m.config.Query

	body, err := q.openBody()
	if err != nil {
		return nil, nil, &OpenError{Index: q.Index, Err: fmt.Errorf("encode query: %w", err)}
	}

	batch, err := m.fetcher.fetch(ctx, client.Request{
		Operation: OperationOpen,
		Method:    http.MethodPost,
		URL:       q.openURL(m.config.BaseURL),
		Body:      body,
	}, func(scrollID string) { m.releaseOrphan(ctx, scrollID) })
	if err != nil {
		return nil, nil, &OpenError{Index: q.Index, Err: err}
	}

	if batch.ScrollID == "" {
		return nil, nil, &OpenError{Index: q.Index, Err: ErrMissingScrollID}
	}

	cursorsOpenedTotal.Inc()
	m.logger.Info().
		Int("page_size", q.PageSize).
		Strs("fields", q.Fields).
		Str("ttl", KeepAlive(q.TTL)).
		Int("first_batch", batch.Len()).
		Int64("total_hits", batch.TotalHits).
		Msg("Scroll cursor opened")

	return &Cursor{manager: m, id: batch.ScrollID}, batch, nil
}

// releaseOrphan clears a scroll id the server created for an open response
// that was rejected and retried.
func (m *CursorManager) releaseOrphan(ctx context.Context, scrollID string) {
	cursorsOpenedTotal.Inc()
	m.logger.Warn().Msg("Releasing scroll id of a rejected open response")
	(&Cursor{manager: m, id: scrollID}).Close(ctx)
}

// WithCursor opens a cursor, hands it to fn together with the first page,
// and releases it when fn returns or panics. Open failures are returned
// without calling fn.
func (m *CursorManager) WithCursor(ctx context.Context, fn func(ctx context.Context, c *Cursor, first *Batch) error) error {
	c, first, err := m.Open(ctx)
	if err != nil {
		return err
	}
	defer c.Close(ctx)

	return fn(ctx, c, first)
}

// Cursor owns the current scroll id. It is not safe for concurrent use;
// pages depend on each other and are fetched one at a time.
type Cursor struct {
	manager  *CursorManager
	id       string
	advances int
	closed   bool
}

// ID returns the current scroll id.
func (c *Cursor) ID() string {
	return c.id
}

// Advances returns the number of advance calls made so far.
func (c *Cursor) Advances() int {
	return c.advances
}

// Advance fetches the next page with the current id and replaces the id
// with the one the server returned.
func (c *Cursor) Advance(ctx context.Context) (*Batch, error) {
	if c.closed {
		return nil, ErrCursorClosed
	}

	m := c.manager
	body, err := json.Marshal(advanceRequest{
		Scroll:   KeepAlive(m.config.Query.TTL),
		ScrollID: c.id,
	})
	if err != nil {
		return nil, fmt.Errorf("encode scroll request: %w", err)
	}

	c.advances++
	batch, err := m.fetcher.Fetch(ctx, client.Request{
		Operation: OperationAdvance,
		Method:    http.MethodPost,
		URL:       scrollURL(m.config.BaseURL),
		Body:      body,
	})
	if err != nil {
		return nil, err
	}

	if batch.ScrollID == "" {
		return nil, &InvalidCursorError{Advance: c.advances, ScrollID: c.id}
	}

	if batch.ScrollID != c.id {
		m.logger.Debug().Int("advance", c.advances).Msg("Scroll id replaced")
	}
	c.id = batch.ScrollID

	return batch, nil
}

// Close releases the server-side cursor. It never fails: errors are logged
// and counted. Only the first call sends a request.
func (c *Cursor) Close(ctx context.Context) {
	if c.closed {
		return
	}
	c.closed = true

	m := c.manager
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.config.CloseTimeout)
	defer cancel()

	body, err := json.Marshal(clearRequest{ScrollID: []string{c.id}})
	if err != nil {
		c.reportCleanup(&CleanupError{ScrollID: c.id, Err: err})
		return
	}

	resp, err := m.sender.Send(ctx, client.Request{
		Operation: OperationClose,
		Method:    http.MethodDelete,
		URL:       scrollURL(m.config.BaseURL),
		Body:      body,
	})
	if err != nil {
		c.reportCleanup(&CleanupError{ScrollID: c.id, Err: err})
		return
	}

	switch resp.StatusCode {
	case http.StatusOK:
		cursorsClosedTotal.WithLabelValues("released").Inc()
		m.logger.Info().Int("advances", c.advances).Msg("Scroll cursor released")
	case http.StatusNotFound:
		// Expired on the server already; nothing left to free.
		cursorsClosedTotal.WithLabelValues("not_found").Inc()
		m.logger.Info().Int("advances", c.advances).Msg("Scroll cursor already gone")
	default:
		c.reportCleanup(&CleanupError{
			ScrollID: c.id,
			Err:      &HTTPStatusError{StatusCode: resp.StatusCode, Body: truncate(resp.Body, maxErrorBody)},
		})
	}
}

func (c *Cursor) reportCleanup(err *CleanupError) {
	cursorsClosedTotal.WithLabelValues("failed").Inc()
	c.manager.logger.Warn().
		Err(err).
		Str("error_kind", string(KindCleanup)).
		Msg("Failed to release scroll cursor")
}
