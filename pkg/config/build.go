package config

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Sternrassler/scroll-export/pkg/client"
	"github.com/Sternrassler/scroll-export/pkg/export"
	"github.com/Sternrassler/scroll-export/pkg/logging"
	"github.com/Sternrassler/scroll-export/pkg/pagination"
	"github.com/Sternrassler/scroll-export/pkg/sink"
)

// ClientConfig returns the transport configuration.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig()
	if c.Search.UserAgent != "" {
		cfg.UserAgent = c.Search.UserAgent
	}
	cfg.Timeout = c.RequestTimeout()
	cfg.Username = c.Search.Username
	cfg.Password = c.Search.Password
	cfg.APIKey = c.Search.APIKey

	if len(c.Search.Headers) > 0 {
		cfg.Header = make(http.Header, len(c.Search.Headers))
		for k, v := range c.Search.Headers {
			cfg.Header.Set(k, v)
		}
	}
	return cfg
}

// Query returns the scroll query. Call Validate first.
func (c *Config) Query() pagination.Query {
	q := pagination.Query{
		Index:    strings.TrimSpace(c.Scroll.Index),
		PageSize: c.Scroll.PageSize,
		Fields:   append([]string(nil), c.Scroll.Fields...),
		TTL:      c.Scroll.TTL,
	}
	if c.Scroll.Query != "" {
		q.Filter = json.RawMessage(c.Scroll.Query)
	}
	return q
}

// CursorConfig returns the cursor manager configuration.
func (c *Config) CursorConfig() pagination.CursorConfig {
	return pagination.CursorConfig{
		BaseURL:      c.Search.URL,
		Query:        c.Query(),
		CloseTimeout: c.Scroll.CloseTimeout,
	}
}

// RetryPolicy returns the retry policy.
func (c *Config) RetryPolicy() pagination.RetryPolicy {
	p := pagination.DefaultRetryPolicy()
	p.MaxAttempts = c.Retry.MaxAttempts
	p.BaseDelay = c.Retry.BaseDelay
	p.MaxBackoff = c.Retry.MaxBackoff
	return p
}

// MissingPolicy returns the missing-field policy. Call Validate first.
func (c *Config) MissingPolicy() export.MissingPolicy {
	p, err := export.ParseMissingPolicy(c.Output.Missing)
	if err != nil {
		return export.MissingNull
	}
	return p
}

// SinkConfig returns the sink configuration for run runID. An empty redis
// key is derived from index, fields and runID.
func (c *Config) SinkConfig(runID string) sink.Config {
	typ, err := sink.ParseType(c.Output.Type)
	if err != nil {
		typ = sink.Type(c.Output.Type)
	}

	key := c.Output.Redis.Key
	if key == "" {
		key = sink.ListKey{Index: c.Scroll.Index, Fields: c.Scroll.Fields, RunID: runID}.String()
	}

	header := c.Output.XLSX.Header
	if header == "" {
		header = strings.Join(c.Scroll.Fields, ",")
	}

	return sink.Config{
		Type:          typ,
		Path:          c.Output.Path,
		Raw:           c.Output.Raw,
		RedisAddr:     c.Output.Redis.Addr,
		RedisPassword: c.Output.Redis.Password,
		RedisDB:       c.Output.Redis.DB,
		RedisKey:      key,
		RedisTruncate: c.Output.Redis.Truncate,
		Sheet:         c.Output.XLSX.Sheet,
		Header:        header,
		Table:         c.Output.SQLite.Table,
	}
}

// LoggingConfig returns the logger configuration. Output stays on stderr.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	if lvl, err := logging.ParseLevel(c.Log.Level); err == nil {
		cfg.Level = lvl
	}
	cfg.Pretty = c.Log.Pretty
	return cfg
}
