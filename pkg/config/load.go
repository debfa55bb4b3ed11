package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SCROLL_EXPORT_"

// Load reads the YAML file at path (skipped when path is empty), applies
// defaults and then environment overrides. The result is not validated;
// callers apply flag overrides first and then call Validate.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadAndValidate is Load followed by Validate.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envSetter parses one environment value into the configuration.
type envSetter func(cfg *Config, val string) error

var envOverrides = map[string]envSetter{
	"SEARCH_URL":        func(c *Config, v string) error { c.Search.URL = v; return nil },
	"SEARCH_USERNAME":   func(c *Config, v string) error { c.Search.Username = v; return nil },
	"SEARCH_PASSWORD":   func(c *Config, v string) error { c.Search.Password = v; return nil },
	"SEARCH_API_KEY":    func(c *Config, v string) error { c.Search.APIKey = v; return nil },
	"SEARCH_USER_AGENT": func(c *Config, v string) error { c.Search.UserAgent = v; return nil },
	"SEARCH_TIMEOUT":    durationEnv(func(c *Config) *time.Duration { return &c.Search.Timeout }),

	"SCROLL_INDEX":         func(c *Config, v string) error { c.Scroll.Index = v; return nil },
	"SCROLL_FIELDS":        func(c *Config, v string) error { c.Scroll.Fields = SplitList(v); return nil },
	"SCROLL_PAGE_SIZE":     intEnv(func(c *Config) *int { return &c.Scroll.PageSize }),
	"SCROLL_TTL":           durationEnv(func(c *Config) *time.Duration { return &c.Scroll.TTL }),
	"SCROLL_QUERY":         func(c *Config, v string) error { c.Scroll.Query = v; return nil },
	"SCROLL_CLOSE_TIMEOUT": durationEnv(func(c *Config) *time.Duration { return &c.Scroll.CloseTimeout }),

	"RETRY_MAX_ATTEMPTS": intEnv(func(c *Config) *int { return &c.Retry.MaxAttempts }),
	"RETRY_BASE_DELAY":   durationEnv(func(c *Config) *time.Duration { return &c.Retry.BaseDelay }),
	"RETRY_MAX_BACKOFF":  durationEnv(func(c *Config) *time.Duration { return &c.Retry.MaxBackoff }),

	"OUTPUT_TYPE":           func(c *Config, v string) error { c.Output.Type = v; return nil },
	"OUTPUT_PATH":           func(c *Config, v string) error { c.Output.Path = v; return nil },
	"OUTPUT_RAW":            boolEnv(func(c *Config) *bool { return &c.Output.Raw }),
	"OUTPUT_MISSING":        func(c *Config, v string) error { c.Output.Missing = v; return nil },
	"OUTPUT_REDIS_ADDR":     func(c *Config, v string) error { c.Output.Redis.Addr = v; return nil },
	"OUTPUT_REDIS_PASSWORD": func(c *Config, v string) error { c.Output.Redis.Password = v; return nil },
	"OUTPUT_REDIS_DB":       intEnv(func(c *Config) *int { return &c.Output.Redis.DB }),
	"OUTPUT_REDIS_KEY":      func(c *Config, v string) error { c.Output.Redis.Key = v; return nil },
	"OUTPUT_REDIS_TRUNCATE": boolEnv(func(c *Config) *bool { return &c.Output.Redis.Truncate }),
	"OUTPUT_XLSX_SHEET":     func(c *Config, v string) error { c.Output.XLSX.Sheet = v; return nil },
	"OUTPUT_XLSX_HEADER":    func(c *Config, v string) error { c.Output.XLSX.Header = v; return nil },
	"OUTPUT_SQLITE_TABLE":   func(c *Config, v string) error { c.Output.SQLite.Table = v; return nil },

	"LOG_LEVEL":          func(c *Config, v string) error { c.Log.Level = v; return nil },
	"LOG_PRETTY":         boolEnv(func(c *Config) *bool { return &c.Log.Pretty }),
	"LOG_PROGRESS_EVERY": intEnv(func(c *Config) *int { return &c.Log.ProgressEvery }),

	"METRICS_ADDR": func(c *Config, v string) error { c.Metrics.Addr = v; return nil },
}

// applyEnvOverrides applies SCROLL_EXPORT_SECTION_FIELD variables. Unparseable
// values are an error rather than silently ignored.
func applyEnvOverrides(cfg *Config) error {
	for name, set := range envOverrides {
		val, ok := os.LookupEnv(EnvPrefix + name)
		if !ok || val == "" {
			continue
		}
		if err := set(cfg, val); err != nil {
			return fmt.Errorf("environment variable %s%s: %w", EnvPrefix, name, err)
		}
	}
	return nil
}

func durationEnv(field func(*Config) *time.Duration) envSetter {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func intEnv(field func(*Config) *int) envSetter {
	return func(c *Config, v string) error {
		i, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = i
		return nil
	}
}

func boolEnv(field func(*Config) *bool) envSetter {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

// SplitList splits a comma-separated list, trimming blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
