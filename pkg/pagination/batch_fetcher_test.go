package pagination

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/Sternrassler/scroll-export/pkg/client"
	"github.com/rs/zerolog"
)

type scriptedReply struct {
	resp *client.Response
	err  error
}

// scriptedSender replays replies in order and repeats the last one.
type scriptedSender struct {
	replies  []scriptedReply
	requests []client.Request
}

func (s *scriptedSender) Send(ctx context.Context, req client.Request) (*client.Response, error) {
	s.requests = append(s.requests, req)
	i := len(s.requests) - 1
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	r := s.replies[i]
	return r.resp, r.err
}

func ok(body string) scriptedReply {
	return scriptedReply{resp: &client.Response{StatusCode: http.StatusOK, Body: []byte(body)}}
}

func status(code int) scriptedReply {
	return scriptedReply{resp: &client.Response{StatusCode: code, Body: []byte(`{"error":"unavailable"}`)}}
}

func transportFailure() scriptedReply {
	return scriptedReply{err: &client.TransportError{Method: "POST", URL: "http://x", Err: errors.New("connection refused")}}
}

// recordSleeps returns a SleepFunc that records delays without waiting.
func recordSleeps(delays *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func newTestFetcher(sender client.Sender, delays *[]time.Duration) *BatchFetcher {
	bf := NewBatchFetcher(sender, RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, BackoffMultiplier: 2}, zerolog.Nop())
	bf.SetSleep(recordSleeps(delays))
	return bf
}

const emptyPage = `{"_scroll_id":"s1","hits":{"hits":[]}}`

func TestFetch_Success(t *testing.T) {
	sender := &scriptedSender{replies: []scriptedReply{ok(`{"_scroll_id":"s1","hits":{"hits":[{"_id":"1"}]}}`)}}
	var delays []time.Duration

	batch, err := newTestFetcher(sender, &delays).Fetch(context.Background(), client.Request{Operation: OperationAdvance})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if batch.Len() != 1 || batch.ScrollID != "s1" {
		t.Errorf("batch = %+v", batch)
	}
	if len(sender.requests) != 1 {
		t.Errorf("requests = %d, want 1", len(sender.requests))
	}
	if len(delays) != 0 {
		t.Errorf("delays = %v, want none", delays)
	}
}

func TestFetch_EmptyPageIsNotRetried(t *testing.T) {
	sender := &scriptedSender{replies: []scriptedReply{ok(emptyPage)}}
	var delays []time.Duration

	batch, err := newTestFetcher(sender, &delays).Fetch(context.Background(), client.Request{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if batch.Len() != 0 {
		t.Errorf("Len() = %d, want 0", batch.Len())
	}
	if len(sender.requests) != 1 {
		t.Errorf("requests = %d, want 1", len(sender.requests))
	}
}

func TestFetch_RetryThenSuccess(t *testing.T) {
	tests := []struct {
		name  string
		first scriptedReply
	}{
		{name: "non-200 status", first: status(http.StatusServiceUnavailable)},
		{name: "transport error", first: transportFailure()},
		{name: "200 without hits container", first: ok(`{"_scroll_id":"s1"}`)},
		{name: "200 with garbage body", first: ok(`not json`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &scriptedSender{replies: []scriptedReply{tt.first, ok(emptyPage)}}
			var delays []time.Duration

			_, err := newTestFetcher(sender, &delays).Fetch(context.Background(), client.Request{})
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if len(sender.requests) != 2 {
				t.Errorf("requests = %d, want 2", len(sender.requests))
			}
			if !reflect.DeepEqual(delays, []time.Duration{2 * time.Second}) {
				t.Errorf("delays = %v, want [2s]", delays)
			}
		})
	}
}

func TestFetch_MalformedRetriedLikeStatus(t *testing.T) {
	run := func(reply scriptedReply) (int, []time.Duration, error) {
		sender := &scriptedSender{replies: []scriptedReply{reply}}
		var delays []time.Duration
		_, err := newTestFetcher(sender, &delays).Fetch(context.Background(), client.Request{Operation: OperationAdvance})
		return len(sender.requests), delays, err
	}

	statusCalls, statusDelays, statusErr := run(status(http.StatusServiceUnavailable))
	malformedCalls, malformedDelays, malformedErr := run(ok(`{"_scroll_id":"s1","hits":{}}`))

	if statusCalls != 3 || malformedCalls != 3 {
		t.Errorf("calls = %d/%d, want 3/3", statusCalls, malformedCalls)
	}
	if !reflect.DeepEqual(statusDelays, malformedDelays) {
		t.Errorf("delays differ: status %v, malformed %v", statusDelays, malformedDelays)
	}

	var statusErrT *HTTPStatusError
	if !errors.As(statusErr, &statusErrT) || statusErrT.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status run: last error = %v", statusErr)
	}
	var malformed *MalformedResponseError
	if !errors.As(malformedErr, &malformed) {
		t.Errorf("malformed run: last error = %v", malformedErr)
	}
}

func TestFetch_Exhausted(t *testing.T) {
	sender := &scriptedSender{replies: []scriptedReply{status(http.StatusServiceUnavailable)}}
	var delays []time.Duration

	batch, err := newTestFetcher(sender, &delays).Fetch(context.Background(), client.Request{Operation: OperationAdvance})
	if batch != nil {
		t.Errorf("batch = %+v, want nil", batch)
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected *FetchError, got %v", err)
	}
	if fetchErr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", fetchErr.Attempts)
	}
	if fetchErr.Operation != OperationAdvance {
		t.Errorf("Operation = %q, want %q", fetchErr.Operation, OperationAdvance)
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Error("errors.Is(err, ErrRetryExhausted) = false")
	}
	if KindOf(err) != KindFetch {
		t.Errorf("KindOf() = %q, want %q", KindOf(err), KindFetch)
	}
	if len(sender.requests) != 3 {
		t.Errorf("requests = %d, want 3", len(sender.requests))
	}
	if !reflect.DeepEqual(delays, []time.Duration{2 * time.Second, 4 * time.Second}) {
		t.Errorf("delays = %v, want [2s 4s]", delays)
	}
}

func TestFetch_SingleAttempt(t *testing.T) {
	sender := &scriptedSender{replies: []scriptedReply{status(http.StatusBadGateway)}}
	bf := NewBatchFetcher(sender, RetryPolicy{MaxAttempts: 1, BaseDelay: time.Second}, zerolog.Nop())
	var delays []time.Duration
	bf.SetSleep(recordSleeps(&delays))

	_, err := bf.Fetch(context.Background(), client.Request{})

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Attempts != 1 {
		t.Fatalf("err = %v, want FetchError after 1 attempt", err)
	}
	if len(delays) != 0 {
		t.Errorf("delays = %v, want none", delays)
	}
}

func TestFetch_ContextCancelledDuringBackoff(t *testing.T) {
	sender := &scriptedSender{replies: []scriptedReply{status(http.StatusServiceUnavailable)}}
	bf := NewBatchFetcher(sender, DefaultRetryPolicy(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	bf.SetSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})

	_, err := bf.Fetch(ctx, client.Request{})
	if !errors.Is(err, ErrContextCancelled) {
		t.Fatalf("err = %v, want ErrContextCancelled", err)
	}
	if KindOf(err) != KindCancelled {
		t.Errorf("KindOf() = %q, want %q", KindOf(err), KindCancelled)
	}
	if len(sender.requests) != 1 {
		t.Errorf("requests = %d, want 1", len(sender.requests))
	}
}

func TestFetch_ContextAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sender := &scriptedSender{replies: []scriptedReply{{err: &client.TransportError{Err: context.Canceled}}}}
	var delays []time.Duration

	_, err := newTestFetcher(sender, &delays).Fetch(ctx, client.Request{})
	if !errors.Is(err, ErrContextCancelled) {
		t.Fatalf("err = %v, want ErrContextCancelled", err)
	}
	if len(delays) != 0 {
		t.Errorf("delays = %v, want none", delays)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"transport", &client.TransportError{Err: errors.New("x")}, KindTransport},
		{"status", &HTTPStatusError{StatusCode: 500}, KindHTTPStatus},
		{"malformed", &MalformedResponseError{Reason: "x"}, KindMalformed},
		{"fetch", &FetchError{Attempts: 3, Last: &HTTPStatusError{StatusCode: 503}}, KindFetch},
		{"open wraps fetch", &OpenError{Index: "logs", Err: &FetchError{Attempts: 3}}, KindOpen},
		{"invalid cursor", &InvalidCursorError{Advance: 2}, KindInvalidCursor},
		{"cleanup", &CleanupError{Err: errors.New("x")}, KindCleanup},
		{"cancelled open", &OpenError{Err: ErrContextCancelled}, KindCancelled},
		{"unknown", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}
