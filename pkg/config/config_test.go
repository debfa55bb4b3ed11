package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/scroll-export/pkg/export"
	"github.com/Sternrassler/scroll-export/pkg/logging"
	"github.com/Sternrassler/scroll-export/pkg/sink"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Search.URL != "http://localhost:9200" {
		t.Errorf("URL = %q", cfg.Search.URL)
	}
	if cfg.Scroll.Index != "logs" || !reflect.DeepEqual(cfg.Scroll.Fields, []string{"message"}) {
		t.Errorf("index/fields = %q/%v", cfg.Scroll.Index, cfg.Scroll.Fields)
	}
	if cfg.Scroll.PageSize != 10 || cfg.Scroll.TTL != time.Minute {
		t.Errorf("page size/ttl = %d/%s", cfg.Scroll.PageSize, cfg.Scroll.TTL)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelay != 2*time.Second {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	if cfg.Output.Type != "ndjson" || cfg.Output.Path != "-" || cfg.Output.Missing != "null" {
		t.Errorf("output = %+v", cfg.Output)
	}
	if cfg.RequestTimeout() != time.Minute {
		t.Errorf("RequestTimeout() = %s, want the ttl", cfg.RequestTimeout())
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := &Config{Scroll: ScrollConfig{PageSize: 500}}
	ApplyDefaults(cfg)
	first := *cfg
	ApplyDefaults(cfg)

	if !reflect.DeepEqual(first, *cfg) {
		t.Error("ApplyDefaults should be idempotent")
	}
	if cfg.Scroll.PageSize != 500 {
		t.Errorf("PageSize overwritten: %d", cfg.Scroll.PageSize)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
search:
  url: "https://search.internal:9243"
  api_key: "abc"
  timeout: "30s"
  headers:
    X-Tenant: "acme"
scroll:
  index: "app-*"
  fields: ["message", "host.name"]
  page_size: 500
  ttl: "5m"
  query: '{"term":{"level":"error"}}'
retry:
  max_attempts: 5
  base_delay: "500ms"
  max_backoff: "10s"
output:
  type: "sqlite"
  path: "out.db"
  missing: "skip"
  sqlite:
    table: "messages"
log:
  level: "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.Search.URL != "https://search.internal:9243" || cfg.Search.APIKey != "abc" {
		t.Errorf("search = %+v", cfg.Search)
	}
	if cfg.RequestTimeout() != 30*time.Second {
		t.Errorf("RequestTimeout() = %s", cfg.RequestTimeout())
	}
	if cfg.Scroll.TTL != 5*time.Minute || cfg.Scroll.PageSize != 500 {
		t.Errorf("scroll = %+v", cfg.Scroll)
	}
	if cfg.Retry.BaseDelay != 500*time.Millisecond || cfg.Retry.MaxBackoff != 10*time.Second {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	// Defaults fill what the file leaves out.
	if cfg.Scroll.CloseTimeout != DefaultCloseTimeout {
		t.Errorf("CloseTimeout = %s", cfg.Scroll.CloseTimeout)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Error("Load without a file should return the defaults")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	path := writeConfig(t, "scroll: [not, a, mapping")
	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
scroll:
  index: "from-file"
  page_size: 50
`)

	t.Setenv("SCROLL_EXPORT_SCROLL_INDEX", "from-env")
	t.Setenv("SCROLL_EXPORT_SCROLL_FIELDS", "message, user.name ,")
	t.Setenv("SCROLL_EXPORT_SCROLL_TTL", "90s")
	t.Setenv("SCROLL_EXPORT_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("SCROLL_EXPORT_OUTPUT_RAW", "true")
	t.Setenv("SCROLL_EXPORT_OUTPUT_REDIS_DB", "2")
	t.Setenv("SCROLL_EXPORT_SEARCH_PASSWORD", "secret")
	t.Setenv("SCROLL_EXPORT_SEARCH_USERNAME", "elastic")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Scroll.Index != "from-env" {
		t.Errorf("Index = %q, want from-env", cfg.Scroll.Index)
	}
	if !reflect.DeepEqual(cfg.Scroll.Fields, []string{"message", "user.name"}) {
		t.Errorf("Fields = %v", cfg.Scroll.Fields)
	}
	if cfg.Scroll.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50 from file", cfg.Scroll.PageSize)
	}
	if cfg.Scroll.TTL != 90*time.Second || cfg.RequestTimeout() != 90*time.Second {
		t.Errorf("TTL/RequestTimeout = %s/%s", cfg.Scroll.TTL, cfg.RequestTimeout())
	}
	if cfg.Retry.MaxAttempts != 7 || !cfg.Output.Raw || cfg.Output.Redis.DB != 2 {
		t.Errorf("retry/output = %+v / %+v", cfg.Retry, cfg.Output)
	}
	if cfg.Search.Username != "elastic" || cfg.Search.Password != "secret" {
		t.Errorf("credentials not applied: %+v", cfg.Search)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	tests := []struct {
		name string
		val  string
	}{
		{"SCROLL_EXPORT_SCROLL_PAGE_SIZE", "ten"},
		{"SCROLL_EXPORT_SCROLL_TTL", "forever"},
		{"SCROLL_EXPORT_LOG_PRETTY", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.name, tt.val)
			_, err := Load("")
			if err == nil || !strings.Contains(err.Error(), tt.name) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.name)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"empty url", func(c *Config) { c.Search.URL = "" }, "search.url"},
		{"bad scheme", func(c *Config) { c.Search.URL = "ftp://x" }, "search.url"},
		{"no host", func(c *Config) { c.Search.URL = "http://" }, "search.url"},
		{"password without user", func(c *Config) { c.Search.Password = "p" }, "search.username"},
		{"empty index", func(c *Config) { c.Scroll.Index = " " }, "scroll.index"},
		{"no fields", func(c *Config) { c.Scroll.Fields = nil }, "scroll.fields"},
		{"blank field", func(c *Config) { c.Scroll.Fields = []string{"a", ""} }, "scroll.fields[1]"},
		{"zero page size", func(c *Config) { c.Scroll.PageSize = 0 }, "scroll.page_size"},
		{"tiny ttl", func(c *Config) { c.Scroll.TTL = time.Microsecond }, "scroll.ttl"},
		{"query not object", func(c *Config) { c.Scroll.Query = `[1]` }, "scroll.query"},
		{"query invalid", func(c *Config) { c.Scroll.Query = `{` }, "scroll.query"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "retry.max_attempts"},
		{"negative delay", func(c *Config) { c.Retry.BaseDelay = -time.Second }, "retry.base_delay"},
		{"unknown output", func(c *Config) { c.Output.Type = "parquet" }, "output.type"},
		{"xlsx to stdout", func(c *Config) { c.Output.Type = "xlsx" }, "output.path"},
		{"sqlite to stdout", func(c *Config) { c.Output.Type = "sqlite" }, "output.path"},
		{"redis without addr", func(c *Config) { c.Output.Type = "redis"; c.Output.Redis.Addr = "" }, "output.redis.addr"},
		{"unknown missing policy", func(c *Config) { c.Output.Missing = "drop" }, "output.missing"},
		{"unknown log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}

			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected error on %s, got %v", tt.field, verr.Errors)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "scroll.index", Message: "is required"}}}
	if single.Error() != "configuration validation failed: scroll.index: is required" {
		t.Errorf("single = %q", single.Error())
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "x"}, {Field: "b", Message: "y"}}}
	if !strings.Contains(multi.Error(), "2 errors") || !strings.Contains(multi.Error(), "  - b: y") {
		t.Errorf("multi = %q", multi.Error())
	}
}

func TestBuilders(t *testing.T) {
	cfg := Default()
	cfg.Search.Username = "elastic"
	cfg.Search.Password = "pw"
	cfg.Search.Headers = map[string]string{"x-tenant": "acme"}
	cfg.Scroll.Fields = []string{"message", "host.name"}
	cfg.Scroll.Query = `{"match_all":{}}`
	cfg.Retry.MaxBackoff = 5 * time.Second
	cfg.Output.Type = "redis"
	cfg.Output.Missing = "skip"
	cfg.Log.Level = "warn"

	cc := cfg.ClientConfig()
	if cc.Timeout != time.Minute || cc.Username != "elastic" || cc.Password != "pw" {
		t.Errorf("ClientConfig() = %+v", cc)
	}
	if cc.Header.Get("X-Tenant") != "acme" {
		t.Errorf("header = %v", cc.Header)
	}
	if cc.UserAgent == "" {
		t.Error("UserAgent should default")
	}

	q := cfg.Query()
	if err := q.Validate(); err != nil {
		t.Errorf("Query().Validate() error = %v", err)
	}
	if string(q.Filter) != `{"match_all":{}}` || !json.Valid(q.Filter) {
		t.Errorf("Filter = %s", q.Filter)
	}

	cur := cfg.CursorConfig()
	if cur.BaseURL != cfg.Search.URL || cur.CloseTimeout != DefaultCloseTimeout {
		t.Errorf("CursorConfig() = %+v", cur)
	}

	p := cfg.RetryPolicy()
	if p.MaxAttempts != 3 || p.BaseDelay != 2*time.Second || p.MaxBackoff != 5*time.Second || p.BackoffMultiplier != 2.0 {
		t.Errorf("RetryPolicy() = %+v", p)
	}

	if cfg.MissingPolicy() != export.MissingSkip {
		t.Errorf("MissingPolicy() = %q", cfg.MissingPolicy())
	}

	sc := cfg.SinkConfig("run-1")
	if sc.Type != sink.TypeRedis || sc.RedisAddr != DefaultRedisAddr {
		t.Errorf("SinkConfig() = %+v", sc)
	}
	if sc.RedisKey != "scroll-export:logs:host.name,message:run-1" {
		t.Errorf("RedisKey = %q", sc.RedisKey)
	}
	if sc.Header != "message,host.name" {
		t.Errorf("Header = %q", sc.Header)
	}

	if lc := cfg.LoggingConfig(); lc.Level != logging.LevelWarn || lc.Output == nil {
		t.Errorf("LoggingConfig() = %+v", lc)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a", []string{"a"}},
		{"a,b", []string{"a", "b"}},
		{" a , ,b ", []string{"a", "b"}},
		{"", nil},
	}

	for _, tt := range tests {
		if got := SplitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
