package config

import "time"

// Default values for configuration fields.
const (
	// Search defaults
	DefaultURL = "http://localhost:9200"

	// Scroll defaults
	DefaultIndex        = "logs"
	DefaultField        = "message"
	DefaultPageSize     = 10
	DefaultTTL          = time.Minute
	DefaultCloseTimeout = 30 * time.Second

	// Retry defaults
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second

	// Output defaults
	DefaultOutputType = "ndjson"
	DefaultOutputPath = "-"
	DefaultMissing    = "null"
	DefaultRedisAddr  = "localhost:6379"
	DefaultSheet      = "Sheet1"
	DefaultTable      = "export"

	// Log defaults
	DefaultLogLevel      = "info"
	DefaultProgressEvery = 100
)

// ApplyDefaults sets defaults for any fields that have zero values.
// It is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	if cfg.Search.URL == "" {
		cfg.Search.URL = DefaultURL
	}

	if cfg.Scroll.Index == "" {
		cfg.Scroll.Index = DefaultIndex
	}
	if len(cfg.Scroll.Fields) == 0 {
		cfg.Scroll.Fields = []string{DefaultField}
	}
	if cfg.Scroll.PageSize == 0 {
		cfg.Scroll.PageSize = DefaultPageSize
	}
	if cfg.Scroll.TTL == 0 {
		cfg.Scroll.TTL = DefaultTTL
	}
	if cfg.Scroll.CloseTimeout == 0 {
		cfg.Scroll.CloseTimeout = DefaultCloseTimeout
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = DefaultBaseDelay
	}

	if cfg.Output.Type == "" {
		cfg.Output.Type = DefaultOutputType
	}
	if cfg.Output.Path == "" {
		cfg.Output.Path = DefaultOutputPath
	}
	if cfg.Output.Missing == "" {
		cfg.Output.Missing = DefaultMissing
	}
	if cfg.Output.Redis.Addr == "" {
		cfg.Output.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Output.XLSX.Sheet == "" {
		cfg.Output.XLSX.Sheet = DefaultSheet
	}
	if cfg.Output.SQLite.Table == "" {
		cfg.Output.SQLite.Table = DefaultTable
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.ProgressEvery == 0 {
		cfg.Log.ProgressEvery = DefaultProgressEvery
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
