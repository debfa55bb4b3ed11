package main

import (
	"errors"

	"github.com/Sternrassler/scroll-export/pkg/export"
	"github.com/Sternrassler/scroll-export/pkg/pagination"
)

// Process exit codes.
const (
	ExitOK            = 0
	ExitUnexpected    = 1
	ExitConfig        = 2
	ExitOpen          = 3
	ExitFetch         = 4
	ExitInvalidCursor = 5
	ExitSink          = 6
	ExitCancelled     = 7
)

// configError marks failures before the export starts.
type configError struct {
	err error
}

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// exitCode maps err to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var cfgErr *configError
	if errors.As(err, &cfgErr) {
		return ExitConfig
	}

	switch export.KindOf(err) {
	case pagination.KindCancelled:
		return ExitCancelled
	case pagination.KindOpen:
		return ExitOpen
	case pagination.KindFetch:
		return ExitFetch
	case pagination.KindInvalidCursor:
		return ExitInvalidCursor
	case export.KindSink:
		return ExitSink
	default:
		return ExitUnexpected
	}
}
