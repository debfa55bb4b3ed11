// Package sink writes exported values to their destination. Every sink is
// append-only and keeps values in the order they were written.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Sink receives one value per exported record.
type Sink interface {
	// Write appends value. Implementations may buffer until Flush.
	Write(ctx context.Context, value json.RawMessage) error
	// Flush makes every written value durable at the destination.
	Flush(ctx context.Context) error
	// Close flushes and releases the destination.
	Close() error
}

// Type selects a sink implementation.
type Type string

const (
	TypeNDJSON Type = "ndjson"
	TypeJSON   Type = "json"
	TypeRedis  Type = "redis"
	TypeXLSX   Type = "xlsx"
	TypeSQLite Type = "sqlite"
)

// Stdout is the Path value that selects standard output.
const Stdout = "-"

// Config holds sink configuration.
type Config struct {
	Type Type

	// Path is the output file (ndjson, json, xlsx, sqlite). "-" is stdout.
	Path string

	// Raw writes JSON strings without quotes (ndjson, redis, sqlite).
	Raw bool

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	RedisTruncate bool

	// XLSX
	Sheet  string
	Header string

	// SQLite
	Table string
}

// Open creates the sink described by cfg.
func Open(ctx context.Context, cfg Config) (Sink, error) {
	switch cfg.Type {
	case TypeNDJSON, "":
		w, closer, err := openFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		return NewNDJSONSink(w, closer, cfg.Raw), nil

	case TypeJSON:
		w, closer, err := openFile(cfg.Path)
		if err != nil {
			return nil, err
		}
		return NewJSONArraySink(w, closer), nil

	case TypeRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis address is required")
		}
		if cfg.RedisKey == "" {
			return nil, fmt.Errorf("redis key is required")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		s, err := NewRedisSink(ctx, rdb, cfg.RedisKey, cfg.RedisTruncate, cfg.Raw)
		if err != nil {
			rdb.Close()
			return nil, err
		}
		s.ownsClient = true
		return s, nil

	case TypeXLSX:
		if cfg.Path == "" || cfg.Path == Stdout {
			return nil, fmt.Errorf("xlsx sink needs a file path")
		}
		return NewXLSXSink(cfg.Path, cfg.Sheet, cfg.Header)

	case TypeSQLite:
		if cfg.Path == "" || cfg.Path == Stdout {
			return nil, fmt.Errorf("sqlite sink needs a file path")
		}
		return NewSQLiteSink(ctx, cfg.Path, cfg.Table, cfg.Raw)

	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
	}
}

func openFile(path string) (io.Writer, io.Closer, error) {
	if path == "" || path == Stdout {
		return os.Stdout, nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open output %q: %w", path, err)
	}
	return f, f, nil
}

var nullValue = json.RawMessage("null")

// isNull reports whether value is absent or the JSON null literal.
func isNull(value json.RawMessage) bool {
	v := bytes.TrimSpace(value)
	return len(v) == 0 || bytes.Equal(v, nullValue)
}

// render returns the bytes stored for value. With raw set, JSON strings
// lose their quotes and escapes; everything else is kept verbatim.
func render(value json.RawMessage, raw bool) []byte {
	v := bytes.TrimSpace(value)
	if len(v) == 0 {
		return nullValue
	}
	if raw && v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return []byte(s)
		}
	}
	return v
}

// ParseType converts a config string to a Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypeNDJSON, TypeJSON, TypeRedis, TypeXLSX, TypeSQLite:
		return t, nil
	case "":
		return TypeNDJSON, nil
	default:
		return "", fmt.Errorf("unknown sink type %q", s)
	}
}
