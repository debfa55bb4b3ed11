// Package config loads scroll-export configuration from YAML with
// environment variable overrides.
//
// Values are applied in this order (later overrides earlier):
//
//  1. Values from the YAML file (optional)
//  2. Default values (defaults.go) for anything still unset
//  3. Environment variables SCROLL_EXPORT_<SECTION>_<FIELD>
//  4. Command-line flags (applied by the CLI)
//  5. Validate
//
// Example file:
//
//	search:
//	  url: "http://localhost:9200"
//	scroll:
//	  index: "logs"
//	  fields: ["message"]
//	  page_size: 500
//	  ttl: "1m"
//	retry:
//	  max_attempts: 3
//	  base_delay: "2s"
//	output:
//	  type: "ndjson"
//	  path: "messages.ndjson"
package config

import "time"

// Config is the root configuration structure.
type Config struct {
	// Search is the search service connection.
	Search SearchConfig `yaml:"search"`

	// Scroll describes what to export.
	Scroll ScrollConfig `yaml:"scroll"`

	// Retry is the per-request retry policy.
	Retry RetryConfig `yaml:"retry"`

	// Output selects the sink.
	Output OutputConfig `yaml:"output"`

	// Log configures zerolog.
	Log LogConfig `yaml:"log"`

	// Metrics configures the optional /metrics endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// SearchConfig contains the search service endpoint and credentials.
type SearchConfig struct {
	// URL is the base URL of the search service.
	// Default: "http://localhost:9200"
	URL string `yaml:"url"`

	// Username and Password enable basic auth when Username is set.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// APIKey is sent as "Authorization: ApiKey <key>" and wins over basic auth.
	APIKey string `yaml:"api_key"`

	// Timeout bounds every request. Zero means "same as scroll.ttl".
	Timeout time.Duration `yaml:"timeout"`

	// UserAgent overrides the default User-Agent.
	UserAgent string `yaml:"user_agent"`

	// Headers are added to every request.
	Headers map[string]string `yaml:"headers"`
}

// ScrollConfig contains the query and cursor settings.
type ScrollConfig struct {
	// Index is the index, alias or pattern to scroll.
	// Default: "logs"
	Index string `yaml:"index"`

	// Fields are the projected fields. Dotted names address nested values;
	// "_id" and "_index" address hit metadata.
	// Default: ["message"]
	Fields []string `yaml:"fields"`

	// PageSize is the number of hits per batch.
	// Default: 10
	PageSize int `yaml:"page_size"`

	// TTL is the cursor keep-alive sent with every request.
	// Default: 1m
	TTL time.Duration `yaml:"ttl"`

	// Query is an optional JSON query object restricting the export.
	Query string `yaml:"query"`

	// CloseTimeout bounds the cursor release call.
	// Default: 30s
	CloseTimeout time.Duration `yaml:"close_timeout"`
}

// RetryConfig contains the retry policy for open and advance requests.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per request.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// BaseDelay is the first backoff; it doubles after each failed attempt.
	// Default: 2s
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxBackoff caps the backoff. Zero means uncapped.
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// OutputConfig selects and configures the sink.
type OutputConfig struct {
	// Type is one of ndjson, json, redis, xlsx, sqlite.
	// Default: "ndjson"
	Type string `yaml:"type"`

	// Path is the output file; "-" is stdout (ndjson and json only).
	// Default: "-"
	Path string `yaml:"path"`

	// Raw writes JSON strings without quotes.
	Raw bool `yaml:"raw"`

	// Missing is the policy for absent or null fields: null or skip.
	// Default: "null"
	Missing string `yaml:"missing"`

	Redis  RedisConfig  `yaml:"redis"`
	XLSX   XLSXConfig   `yaml:"xlsx"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// RedisConfig configures the redis sink.
type RedisConfig struct {
	// Addr is host:port of the Redis server.
	// Default: "localhost:6379"
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// Key is the list key. Empty derives one from index, fields and run id.
	Key string `yaml:"key"`

	// Truncate deletes the list before writing.
	Truncate bool `yaml:"truncate"`
}

// XLSXConfig configures the xlsx sink.
type XLSXConfig struct {
	// Sheet is the worksheet name.
	// Default: "Sheet1"
	Sheet string `yaml:"sheet"`

	// Header is written to the first row. Empty uses the field names.
	Header string `yaml:"header"`
}

// SQLiteConfig configures the sqlite sink.
type SQLiteConfig struct {
	// Table is created if missing.
	// Default: "export"
	Table string `yaml:"table"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	// Default: "info"
	Level string `yaml:"level"`

	// Pretty enables console output instead of JSON.
	Pretty bool `yaml:"pretty"`

	// ProgressEvery logs progress every N batches (negative disables).
	// Default: 100
	ProgressEvery int `yaml:"progress_every"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// RequestTimeout returns the effective per-request timeout.
func (c *Config) RequestTimeout() time.Duration {
	if c.Search.Timeout > 0 {
		return c.Search.Timeout
	}
	return c.Scroll.TTL
}
