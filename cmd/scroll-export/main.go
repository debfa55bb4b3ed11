// scroll-export drains a search index through a scroll cursor and writes one
// projected value per document to a sink.
//
// Usage:
//
//	# Export the "message" field of index "logs" to stdout
//	scroll-export
//
//	# Export two fields of app-* as JSON objects to a file
//	scroll-export --index 'app-*' --fields message,host.name -o out.ndjson
//
//	# Load settings from a file, override the page size
//	scroll-export --config export.yaml --page-size 1000
//
//	# Append to a Redis list
//	scroll-export --format redis --redis-addr localhost:6379
//
// Exit codes: 0 completed, 1 unexpected error, 2 configuration error,
// 3 open failure, 4 retry exhaustion, 5 invalid cursor, 6 sink failure,
// 7 cancelled.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
