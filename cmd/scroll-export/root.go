package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/scroll-export/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagValues mirrors the command-line flags. Only flags the user actually
// set override the loaded configuration.
type flagValues struct {
	configFile string

	url       string
	username  string
	apiKey    string
	timeout   time.Duration
	userAgent string

	index        string
	fields       []string
	pageSize     int
	ttl          time.Duration
	query        string
	closeTimeout time.Duration

	maxAttempts int
	baseDelay   time.Duration
	maxBackoff  time.Duration

	format        string
	output        string
	raw           bool
	missing       string
	redisAddr     string
	redisDB       int
	redisKey      string
	redisTruncate bool
	sheet         string
	header        string
	table         string

	logLevel      string
	pretty        bool
	progressEvery int
	metricsAddr   string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	fv := &flagValues{}

	cmd := &cobra.Command{
		Use:   "scroll-export",
		Short: "Export a search index through a scroll cursor",
		Long: `scroll-export opens a scroll cursor on a search index, drains the whole
result set page by page, and writes the projected field of every document
to a sink in arrival order. The cursor is always released, also when the
export fails or is interrupted.

Configuration is read from an optional YAML file, then SCROLL_EXPORT_*
environment variables, then flags.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.NoArgs(cmd, args); err != nil {
				return &configError{err: err}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), fv)
			if err != nil {
				return &configError{err: err}
			}
			return runExport(cmd.Context(), cfg, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &configError{err: err}
	})

	f := cmd.Flags()
	f.StringVarP(&fv.configFile, "config", "c", "", "config file path (YAML)")

	f.StringVar(&fv.url, "url", config.DefaultURL, "search service base URL")
	f.StringVar(&fv.username, "username", "", "basic auth user (password via SCROLL_EXPORT_SEARCH_PASSWORD)")
	f.StringVar(&fv.apiKey, "api-key", "", "API key sent as 'Authorization: ApiKey <key>'")
	f.DurationVar(&fv.timeout, "timeout", 0, "per-request timeout (default: the scroll ttl)")
	f.StringVar(&fv.userAgent, "user-agent", "", "User-Agent header")

	f.StringVarP(&fv.index, "index", "i", config.DefaultIndex, "index, alias or pattern to export")
	f.StringSliceVar(&fv.fields, "fields", []string{config.DefaultField}, "projected fields (dotted paths, _id, _index)")
	f.IntVarP(&fv.pageSize, "page-size", "n", config.DefaultPageSize, "hits per batch")
	f.DurationVar(&fv.ttl, "ttl", config.DefaultTTL, "scroll cursor keep-alive")
	f.StringVarP(&fv.query, "query", "q", "", "JSON query object restricting the export")
	f.DurationVar(&fv.closeTimeout, "close-timeout", config.DefaultCloseTimeout, "timeout of the cursor release call")

	f.IntVar(&fv.maxAttempts, "max-attempts", config.DefaultMaxAttempts, "attempts per request")
	f.DurationVar(&fv.baseDelay, "base-delay", config.DefaultBaseDelay, "first retry backoff, doubled per attempt")
	f.DurationVar(&fv.maxBackoff, "max-backoff", 0, "backoff cap (0 = uncapped)")

	f.StringVarP(&fv.format, "format", "f", config.DefaultOutputType, "sink type: ndjson, json, redis, xlsx, sqlite")
	f.StringVarP(&fv.output, "output", "o", config.DefaultOutputPath, "output file, '-' for stdout")
	f.BoolVar(&fv.raw, "raw", false, "write JSON strings without quotes (ndjson keeps strings with line breaks quoted)")
	f.StringVar(&fv.missing, "missing", config.DefaultMissing, "absent/null field policy: null or skip")
	f.StringVar(&fv.redisAddr, "redis-addr", config.DefaultRedisAddr, "Redis address for the redis sink")
	f.IntVar(&fv.redisDB, "redis-db", 0, "Redis database for the redis sink")
	f.StringVar(&fv.redisKey, "redis-key", "", "Redis list key (default: derived from index, fields and run id)")
	f.BoolVar(&fv.redisTruncate, "redis-truncate", false, "delete the Redis list before writing")
	f.StringVar(&fv.sheet, "sheet", config.DefaultSheet, "worksheet name for the xlsx sink")
	f.StringVar(&fv.header, "header", "", "header row for the xlsx sink (default: field names)")
	f.StringVar(&fv.table, "table", config.DefaultTable, "table name for the sqlite sink")

	f.StringVar(&fv.logLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	f.BoolVar(&fv.pretty, "pretty", false, "human-readable logs")
	f.IntVar(&fv.progressEvery, "progress-every", config.DefaultProgressEvery, "log progress every N batches (negative disables)")
	f.StringVar(&fv.metricsAddr, "metrics-addr", "", "serve Prometheus /metrics on this address during the export")

	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadConfig loads file and environment settings, applies the flags the
// user set, and validates the result.
func loadConfig(flags *pflag.FlagSet, fv *flagValues) (*config.Config, error) {
	cfg, err := config.Load(fv.configFile)
	if err != nil {
		return nil, err
	}

	overrides := map[string]func(){
		"url":            func() { cfg.Search.URL = fv.url },
		"username":       func() { cfg.Search.Username = fv.username },
		"api-key":        func() { cfg.Search.APIKey = fv.apiKey },
		"timeout":        func() { cfg.Search.Timeout = fv.timeout },
		"user-agent":     func() { cfg.Search.UserAgent = fv.userAgent },
		"index":          func() { cfg.Scroll.Index = fv.index },
		"fields":         func() { cfg.Scroll.Fields = fv.fields },
		"page-size":      func() { cfg.Scroll.PageSize = fv.pageSize },
		"ttl":            func() { cfg.Scroll.TTL = fv.ttl },
		"query":          func() { cfg.Scroll.Query = fv.query },
		"close-timeout":  func() { cfg.Scroll.CloseTimeout = fv.closeTimeout },
		"max-attempts":   func() { cfg.Retry.MaxAttempts = fv.maxAttempts },
		"base-delay":     func() { cfg.Retry.BaseDelay = fv.baseDelay },
		"max-backoff":    func() { cfg.Retry.MaxBackoff = fv.maxBackoff },
		"format":         func() { cfg.Output.Type = fv.format },
		"output":         func() { cfg.Output.Path = fv.output },
		"raw":            func() { cfg.Output.Raw = fv.raw },
		"missing":        func() { cfg.Output.Missing = fv.missing },
		"redis-addr":     func() { cfg.Output.Redis.Addr = fv.redisAddr },
		"redis-db":       func() { cfg.Output.Redis.DB = fv.redisDB },
		"redis-key":      func() { cfg.Output.Redis.Key = fv.redisKey },
		"redis-truncate": func() { cfg.Output.Redis.Truncate = fv.redisTruncate },
		"sheet":          func() { cfg.Output.XLSX.Sheet = fv.sheet },
		"header":         func() { cfg.Output.XLSX.Header = fv.header },
		"table":          func() { cfg.Output.SQLite.Table = fv.table },
		"log-level":      func() { cfg.Log.Level = fv.logLevel },
		"pretty":         func() { cfg.Log.Pretty = fv.pretty },
		"progress-every": func() { cfg.Log.ProgressEvery = fv.progressEvery },
		"metrics-addr":   func() { cfg.Metrics.Addr = fv.metricsAddr },
	}
	flags.Visit(func(f *pflag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	var failure *exportFailure
	if err != nil && !errors.As(err, &failure) {
		// Export failures are already reported by the summary line.
		fmt.Fprintln(stderr, "Error:", err)
	}
	return exitCode(err)
}
