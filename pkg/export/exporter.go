// Package export drives a scroll export from the first page to cursor
// release and writes every projected value to a sink.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/scroll-export/pkg/pagination"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is a step of the export state machine.
type State string

const (
	StateNotStarted State = "not_started"
	StateCursorOpen State = "cursor_open"
	StateDraining   State = "draining"
	StateFailed     State = "failed"
	StateClosed     State = "closed"
)

// Outcome is the final verdict of a run.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeAborted   Outcome = "aborted"
)

// Options configures an Exporter.
type Options struct {
	// RunID tags logs and the Result. Generated when empty.
	RunID string

	// ProgressEvery logs progress after every N batches (0 disables).
	ProgressEvery int
}

// Exporter runs one export: open, drain, release.
type Exporter struct {
	cursors   *pagination.CursorManager
	extractor *Extractor
	opts      Options
	logger    zerolog.Logger
}

// New creates a new exporter.
func New(cursors *pagination.CursorManager, extractor *Extractor, opts Options, logger zerolog.Logger) (*Exporter, error) {
	if cursors == nil {
		return nil, fmt.Errorf("cursor manager cannot be nil")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor cannot be nil")
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.ProgressEvery < 0 {
		opts.ProgressEvery = 0
	}

	return &Exporter{
		cursors:   cursors,
		extractor: extractor,
		opts:      opts,
		logger:    logger.With().Str("component", "exporter").Str("run_id", opts.RunID).Logger(),
	}, nil
}

// RunID returns the id of this exporter's run.
func (x *Exporter) RunID() string {
	return x.opts.RunID
}

// Result describes a finished run.
type Result struct {
	RunID string

	// Records is the number of values written to the sink.
	Records int64

	// Hits is the number of records received, skipped ones included.
	Hits int64

	Skipped int64

	// Batches counts non-empty pages; the final empty one is not included.
	Batches  int
	Advances int

	// Path lists every state the run passed through, ending in StateClosed.
	Path []State

	Outcome Outcome
	Kind    pagination.ErrorKind
	Err     error

	Duration time.Duration
}

// Summary is the one-line verdict shown to the user.
func (r *Result) Summary() string {
	if r.Outcome == OutcomeCompleted {
		return fmt.Sprintf("export completed, %d records written", r.Records)
	}
	return fmt.Sprintf("export aborted after %d records due to %s", r.Records, r.Kind)
}

// Failed reports whether the run passed through StateFailed.
func (r *Result) Failed() bool {
	for _, s := range r.Path {
		if s == StateFailed {
			return true
		}
	}
	return false
}

// run is the state threaded through one export.
type run struct {
	state    State
	path     []State
	cursor   *pagination.Cursor
	hits     int64
	batches  int
	written0 int64
	skipped0 int64
}

func (r *run) to(s State) {
	r.state = s
	r.path = append(r.path, s)
}

// Run executes the export. The cursor, once opened, is released exactly
// once on every path, including cancellation of ctx. The returned error is
// the fatal error, if any; Result is always non-nil.
func (x *Exporter) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	r := &run{
		written0: x.extractor.Written(),
		skipped0: x.extractor.Skipped(),
	}
	r.to(StateNotStarted)

	q := x.cursors.Query()
	x.logger.Info().
		Str("index", q.Index).
		Strs("fields", q.Fields).
		Int("page_size", q.PageSize).
		Msg("Starting export")

	err := x.cursors.WithCursor(ctx, func(ctx context.Context, c *pagination.Cursor, first *pagination.Batch) error {
		r.cursor = c
		r.to(StateCursorOpen)

		if err := x.drain(ctx, r, first); err != nil {
			r.to(StateFailed)
			return err
		}
		r.to(StateDraining)
		return nil
	})
	if err != nil && r.cursor == nil {
		// Open failed; there is no cursor to release.
		r.to(StateFailed)
	}
	r.to(StateClosed)

	res := &Result{
		RunID:    x.opts.RunID,
		Records:  x.extractor.Written() - r.written0,
		Hits:     r.hits,
		Skipped:  x.extractor.Skipped() - r.skipped0,
		Batches:  r.batches,
		Path:     r.path,
		Err:      err,
		Kind:     KindOf(err),
		Duration: time.Since(start),
	}
	if r.cursor != nil {
		res.Advances = r.cursor.Advances()
	}

	if err != nil {
		res.Outcome = OutcomeAborted
		runsTotal.WithLabelValues(string(OutcomeAborted)).Inc()
		x.logger.Error().
			Err(err).
			Str("error_kind", string(res.Kind)).
			Int64("records", res.Records).
			Int("batches", res.Batches).
			Int("advances", res.Advances).
			Dur("duration", res.Duration).
			Msg(res.Summary())
		return res, err
	}

	res.Outcome = OutcomeCompleted
	runsTotal.WithLabelValues(string(OutcomeCompleted)).Inc()
	x.logger.Info().
		Int64("records", res.Records).
		Int64("skipped", res.Skipped).
		Int("batches", res.Batches).
		Int("advances", res.Advances).
		Dur("duration", res.Duration).
		Msg(res.Summary())
	return res, nil
}

// drain extracts the first page and keeps advancing until a page comes
// back empty. A short page does not end the loop.
func (x *Exporter) drain(ctx context.Context, r *run, first *pagination.Batch) error {
	count, err := x.extract(ctx, r, first)
	if err != nil {
		return err
	}

	for count > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", pagination.ErrContextCancelled, err)
		}

		batch, err := r.cursor.Advance(ctx)
		if err != nil {
			return err
		}

		count, err = x.extract(ctx, r, batch)
		if err != nil {
			return err
		}
	}

	return nil
}

func (x *Exporter) extract(ctx context.Context, r *run, batch *pagination.Batch) (int, error) {
	count, err := x.extractor.Extract(ctx, batch)
	r.hits += int64(count)
	recordsTotal.Add(float64(count))
	if err != nil {
		return count, err
	}
	if count == 0 {
		x.logger.Debug().Int("advances", r.cursor.Advances()).Msg("Empty batch, result set drained")
		return 0, nil
	}

	r.batches++
	batchesTotal.Inc()

	x.logger.Debug().
		Int("batch", r.batches).
		Int("records", count).
		Msg("Batch written")

	if x.opts.ProgressEvery > 0 && r.batches%x.opts.ProgressEvery == 0 {
		x.logger.Info().
			Int("batches", r.batches).
			Int64("records", r.hits).
			Int64("total_hits", batch.TotalHits).
			Msg("Export progress")
	}

	return count, nil
}
