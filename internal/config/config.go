package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/nixlim/fa-top/internal/api"
)

type Config struct {
	API       APIConfig
	Display   DisplayConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
}

type DisplayConfig struct {
	RefreshRateMS       int `toml:"refresh_rate_ms"`
	PageSize            int `toml:"page_size"`
	HistoryPageSize     int `toml:"history_page_size"`
	TraceLimit          int `toml:"trace_limit"`
	AnalyticsTraceLimit int `toml:"analytics_trace_limit"`
	BenchRunLimit       int `toml:"bench_run_limit"`
	SearchDebounceMS    int `toml:"search_debounce_ms"`
}

type StorageConfig struct {
	DBPath        string `toml:"db_path"`
	RetentionDays int    `toml:"retention_days"`
}

type TelemetryConfig struct {
	Enabled         bool   `toml:"enabled"`
	Protocol        string `toml:"protocol"`
	Endpoint        string `toml:"endpoint"`
	Insecure        bool   `toml:"insecure"`
	ServiceName     string `toml:"service_name"`
	ExportTimeoutMS int    `toml:"export_timeout_ms"`
}

type LoadResult struct {
	Config   Config
	Warnings []string
}

// knownKeys lists every accepted key per section. Anything else
// produces a warning rather than an error.
var knownKeys = map[string][]string{
	"api":       {"base_url", "timeout_seconds", "user_agent"},
	"display":   {"refresh_rate_ms", "page_size", "history_page_size", "trace_limit", "analytics_trace_limit", "bench_run_limit", "search_debounce_ms"},
	"storage":   {"db_path", "retention_days"},
	"telemetry": {"enabled", "protocol", "endpoint", "insecure", "service_name", "export_timeout_ms"},
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "fa-top", "config.toml")
}

func Load() (*LoadResult, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom reads the config file at path. A missing file yields the
// defaults without error.
func LoadFrom(path string) (*LoadResult, error) {
	if path == "" {
		return LoadFromString("")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return LoadFromString("")
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	result, err := LoadFromString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return result, nil
}

func LoadFromString(data string) (*LoadResult, error) {
	result := &LoadResult{Config: DefaultConfig()}

	if data == "" {
		return result, nil
	}

	var raw map[string]any
	if _, err := toml.Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	result.Warnings = unknownKeys(raw)

	var tf tomlFile
	if _, err := toml.Decode(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	mergeFromRaw(&result.Config, &tf, raw)

	if err := validate(&result.Config); err != nil {
		return nil, err
	}

	return result, nil
}

func unknownKeys(raw map[string]any) []string {
	var warnings []string
	for key, val := range raw {
		keys, ok := knownKeys[key]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unknown config key: %q", key))
			continue
		}
		section, ok := val.(map[string]any)
		if !ok {
			continue
		}
		for sub := range section {
			if !contains(keys, sub) {
				warnings = append(warnings, fmt.Sprintf("unknown config key: %q", key+"."+sub))
			}
		}
	}
	sort.Strings(warnings)
	return warnings
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type tomlFile struct {
	API       *APIConfig       `toml:"api"`
	Display   *DisplayConfig   `toml:"display"`
	Storage   *StorageConfig   `toml:"storage"`
	Telemetry *TelemetryConfig `toml:"telemetry"`
}

// mergeFromRaw copies only the keys present in the file so that an
// absent key keeps its default even when the zero value is valid.
func mergeFromRaw(cfg *Config, tf *tomlFile, raw map[string]any) {
	if tf.API != nil {
		if section, ok := rawSection(raw, "api"); ok {
			if _, exists := section["base_url"]; exists {
				cfg.API.BaseURL = tf.API.BaseURL
			}
			if _, exists := section["timeout_seconds"]; exists {
				cfg.API.TimeoutSeconds = tf.API.TimeoutSeconds
			}
			if _, exists := section["user_agent"]; exists {
				cfg.API.UserAgent = tf.API.UserAgent
			}
		}
	}
	if tf.Display != nil {
		if section, ok := rawSection(raw, "display"); ok {
			if _, exists := section["refresh_rate_ms"]; exists {
				cfg.Display.RefreshRateMS = tf.Display.RefreshRateMS
			}
			if _, exists := section["page_size"]; exists {
				cfg.Display.PageSize = tf.Display.PageSize
			}
			if _, exists := section["history_page_size"]; exists {
				cfg.Display.HistoryPageSize = tf.Display.HistoryPageSize
			}
			if _, exists := section["trace_limit"]; exists {
				cfg.Display.TraceLimit = tf.Display.TraceLimit
			}
			if _, exists := section["analytics_trace_limit"]; exists {
				cfg.Display.AnalyticsTraceLimit = tf.Display.AnalyticsTraceLimit
			}
			if _, exists := section["bench_run_limit"]; exists {
				cfg.Display.BenchRunLimit = tf.Display.BenchRunLimit
			}
			if _, exists := section["search_debounce_ms"]; exists {
				cfg.Display.SearchDebounceMS = tf.Display.SearchDebounceMS
			}
		}
	}
	if tf.Storage != nil {
		if section, ok := rawSection(raw, "storage"); ok {
			if _, exists := section["db_path"]; exists {
				cfg.Storage.DBPath = tf.Storage.DBPath
			}
			if _, exists := section["retention_days"]; exists {
				cfg.Storage.RetentionDays = tf.Storage.RetentionDays
			}
		}
	}
	if tf.Telemetry != nil {
		if section, ok := rawSection(raw, "telemetry"); ok {
			if _, exists := section["enabled"]; exists {
				cfg.Telemetry.Enabled = tf.Telemetry.Enabled
			}
			if _, exists := section["protocol"]; exists {
				cfg.Telemetry.Protocol = tf.Telemetry.Protocol
			}
			if _, exists := section["endpoint"]; exists {
				cfg.Telemetry.Endpoint = tf.Telemetry.Endpoint
			}
			if _, exists := section["insecure"]; exists {
				cfg.Telemetry.Insecure = tf.Telemetry.Insecure
			}
			if _, exists := section["service_name"]; exists {
				cfg.Telemetry.ServiceName = tf.Telemetry.ServiceName
			}
			if _, exists := section["export_timeout_ms"]; exists {
				cfg.Telemetry.ExportTimeoutMS = tf.Telemetry.ExportTimeoutMS
			}
		}
	}
}

func rawSection(raw map[string]any, key string) (map[string]any, bool) {
	v, ok := raw[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// ApplyEnv overrides the base URL from FA_API_URL when it is set.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(api.BaseURLEnv)); v != "" {
		c.API.BaseURL = v
	}
}

// Validate checks the config after flag and environment overrides.
func (c *Config) Validate() error {
	return validate(c)
}

func validate(cfg *Config) error {
	var errs []string

	if _, err := api.NormalizeBaseURL(cfg.API.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("api base_url: %v", err))
	}
	if cfg.API.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Sprintf("api timeout_seconds must not be negative, got %d", cfg.API.TimeoutSeconds))
	}

	if cfg.Display.RefreshRateMS < 1 {
		errs = append(errs, fmt.Sprintf("refresh_rate_ms must be positive, got %d", cfg.Display.RefreshRateMS))
	}
	if cfg.Display.PageSize < 1 {
		errs = append(errs, fmt.Sprintf("page_size must be positive, got %d", cfg.Display.PageSize))
	}
	if cfg.Display.HistoryPageSize < 1 {
		errs = append(errs, fmt.Sprintf("history_page_size must be positive, got %d", cfg.Display.HistoryPageSize))
	}
	if cfg.Display.TraceLimit < 1 {
		errs = append(errs, fmt.Sprintf("trace_limit must be positive, got %d", cfg.Display.TraceLimit))
	}
	if cfg.Display.AnalyticsTraceLimit < 1 {
		errs = append(errs, fmt.Sprintf("analytics_trace_limit must be positive, got %d", cfg.Display.AnalyticsTraceLimit))
	}
	if cfg.Display.BenchRunLimit < 1 {
		errs = append(errs, fmt.Sprintf("bench_run_limit must be positive, got %d", cfg.Display.BenchRunLimit))
	}
	if cfg.Display.SearchDebounceMS < 1 {
		errs = append(errs, fmt.Sprintf("search_debounce_ms must be positive, got %d", cfg.Display.SearchDebounceMS))
	}

	if cfg.Storage.RetentionDays <= 0 {
		errs = append(errs, fmt.Sprintf("storage retention_days must be positive, got %d", cfg.Storage.RetentionDays))
	}

	switch cfg.Telemetry.Protocol {
	case ProtocolHTTP, ProtocolGRPC:
	default:
		errs = append(errs, fmt.Sprintf("telemetry protocol must be %q or %q, got %q", ProtocolHTTP, ProtocolGRPC, cfg.Telemetry.Protocol))
	}
	if strings.TrimSpace(cfg.Telemetry.ServiceName) == "" {
		errs = append(errs, "telemetry service_name must not be empty")
	}
	if cfg.Telemetry.ExportTimeoutMS < 1 {
		errs = append(errs, fmt.Sprintf("telemetry export_timeout_ms must be positive, got %d", cfg.Telemetry.ExportTimeoutMS))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation error: %s", strings.Join(errs, "; "))
	}
	return nil
}
