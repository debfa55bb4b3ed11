package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/scroll-export/pkg/export"
	"github.com/Sternrassler/scroll-export/pkg/logging"
	"github.com/Sternrassler/scroll-export/pkg/sink"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "scroll.page_size").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the whole configuration and returns a ValidationError
// listing every problem, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateSearch(&cfg.Search)...)
	errs = append(errs, validateScroll(&cfg.Scroll)...)
	errs = append(errs, validateRetry(&cfg.Retry)...)
	errs = append(errs, validateOutput(&cfg.Output)...)

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, FieldError{Field: "log.level", Message: err.Error()})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateSearch(cfg *SearchConfig) []FieldError {
	var errs []FieldError

	u, err := url.Parse(cfg.URL)
	switch {
	case cfg.URL == "":
		errs = append(errs, FieldError{Field: "search.url", Message: "is required"})
	case err != nil:
		errs = append(errs, FieldError{Field: "search.url", Message: fmt.Sprintf("invalid URL: %v", err)})
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, FieldError{Field: "search.url", Message: fmt.Sprintf("scheme must be http or https (got %q)", u.Scheme)})
	case u.Host == "":
		errs = append(errs, FieldError{Field: "search.url", Message: "host is required"})
	}

	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{Field: "search.timeout", Message: "must not be negative"})
	}
	if cfg.Password != "" && cfg.Username == "" {
		errs = append(errs, FieldError{Field: "search.username", Message: "is required when a password is set"})
	}

	return errs
}

func validateScroll(cfg *ScrollConfig) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(cfg.Index) == "" {
		errs = append(errs, FieldError{Field: "scroll.index", Message: "is required"})
	}
	if len(cfg.Fields) == 0 {
		errs = append(errs, FieldError{Field: "scroll.fields", Message: "at least one field is required"})
	}
	for i, f := range cfg.Fields {
		if strings.TrimSpace(f) == "" {
			errs = append(errs, FieldError{Field: fmt.Sprintf("scroll.fields[%d]", i), Message: "must not be empty"})
		}
	}
	if cfg.PageSize < 1 {
		errs = append(errs, FieldError{Field: "scroll.page_size", Message: fmt.Sprintf("must be >= 1 (got %d)", cfg.PageSize)})
	}
	if cfg.TTL < time.Millisecond {
		errs = append(errs, FieldError{Field: "scroll.ttl", Message: fmt.Sprintf("must be >= 1ms (got %s)", cfg.TTL)})
	}
	if cfg.Query != "" {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(cfg.Query), &obj); err != nil || obj == nil {
			errs = append(errs, FieldError{Field: "scroll.query", Message: "must be a JSON object"})
		}
	}
	if cfg.CloseTimeout < 0 {
		errs = append(errs, FieldError{Field: "scroll.close_timeout", Message: "must not be negative"})
	}

	return errs
}

func validateRetry(cfg *RetryConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxAttempts < 1 {
		errs = append(errs, FieldError{Field: "retry.max_attempts", Message: fmt.Sprintf("must be >= 1 (got %d)", cfg.MaxAttempts)})
	}
	if cfg.BaseDelay < 0 {
		errs = append(errs, FieldError{Field: "retry.base_delay", Message: "must not be negative"})
	}
	if cfg.MaxBackoff < 0 {
		errs = append(errs, FieldError{Field: "retry.max_backoff", Message: "must not be negative"})
	}

	return errs
}

func validateOutput(cfg *OutputConfig) []FieldError {
	var errs []FieldError

	typ, err := sink.ParseType(cfg.Type)
	if err != nil {
		errs = append(errs, FieldError{Field: "output.type", Message: err.Error()})
	}

	switch typ {
	case sink.TypeXLSX, sink.TypeSQLite:
		if cfg.Path == "" || cfg.Path == sink.Stdout {
			errs = append(errs, FieldError{Field: "output.path", Message: fmt.Sprintf("a file path is required for %s output", typ)})
		}
	case sink.TypeRedis:
		if cfg.Redis.Addr == "" {
			errs = append(errs, FieldError{Field: "output.redis.addr", Message: "is required for redis output"})
		}
		if cfg.Redis.DB < 0 {
			errs = append(errs, FieldError{Field: "output.redis.db", Message: "must not be negative"})
		}
	}

	if _, err := export.ParseMissingPolicy(cfg.Missing); err != nil {
		errs = append(errs, FieldError{Field: "output.missing", Message: err.Error()})
	}

	return errs
}
