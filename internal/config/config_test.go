package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigParser_Defaults(t *testing.T) {
	result, err := LoadFrom("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("expected no error for missing config file, got: %v", err)
	}

	cfg := result.Config

	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Errorf("default base_url: want http://localhost:8000, got %s", cfg.API.BaseURL)
	}
	if cfg.API.TimeoutSeconds != 0 {
		t.Errorf("default timeout_seconds: want 0, got %d", cfg.API.TimeoutSeconds)
	}
	if cfg.Display.RefreshRateMS != 500 {
		t.Errorf("default refresh_rate_ms: want 500, got %d", cfg.Display.RefreshRateMS)
	}
	if cfg.Display.PageSize != 50 {
		t.Errorf("default page_size: want 50, got %d", cfg.Display.PageSize)
	}
	if cfg.Display.HistoryPageSize != 20 {
		t.Errorf("default history_page_size: want 20, got %d", cfg.Display.HistoryPageSize)
	}
	if cfg.Display.TraceLimit != 100 {
		t.Errorf("default trace_limit: want 100, got %d", cfg.Display.TraceLimit)
	}
	if cfg.Display.AnalyticsTraceLimit != 500 {
		t.Errorf("default analytics_trace_limit: want 500, got %d", cfg.Display.AnalyticsTraceLimit)
	}
	if cfg.Display.BenchRunLimit != 200 {
		t.Errorf("default bench_run_limit: want 200, got %d", cfg.Display.BenchRunLimit)
	}
	if cfg.Display.SearchDebounce() != 300*time.Millisecond {
		t.Errorf("default search debounce: want 300ms, got %v", cfg.Display.SearchDebounce())
	}
	if cfg.Storage.DBPath != "" {
		t.Errorf("default db_path: want empty, got %q", cfg.Storage.DBPath)
	}
	if cfg.Storage.RetentionDays != 30 {
		t.Errorf("default retention_days: want 30, got %d", cfg.Storage.RetentionDays)
	}
	if cfg.Telemetry.Enabled {
		t.Error("default telemetry enabled: want false, got true")
	}
	if cfg.Telemetry.Protocol != ProtocolHTTP {
		t.Errorf("default telemetry protocol: want http, got %s", cfg.Telemetry.Protocol)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("want no warnings, got %v", result.Warnings)
	}
}

func TestConfigParser_PartialConfig(t *testing.T) {
	result, err := LoadFromString(`
[api]
base_url = "https://fa.example.com/"
timeout_seconds = 15

[display]
page_size = 25
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := result.Config

	if cfg.API.BaseURL != "https://fa.example.com/" {
		t.Errorf("base_url: want https://fa.example.com/, got %s", cfg.API.BaseURL)
	}
	if cfg.API.Timeout() != 15*time.Second {
		t.Errorf("timeout: want 15s, got %v", cfg.API.Timeout())
	}
	if cfg.Display.PageSize != 25 {
		t.Errorf("page_size: want 25, got %d", cfg.Display.PageSize)
	}
	if cfg.Display.HistoryPageSize != 20 {
		t.Errorf("history_page_size should keep default 20, got %d", cfg.Display.HistoryPageSize)
	}
	if cfg.API.UserAgent != "fa-top" {
		t.Errorf("user_agent should keep default, got %q", cfg.API.UserAgent)
	}
}

func TestConfigParser_Telemetry(t *testing.T) {
	result, err := LoadFromString(`
[telemetry]
enabled = true
protocol = "grpc"
endpoint = "collector:4317"
insecure = true
service_name = "fa-top-dev"
export_timeout_ms = 2000
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tc := result.Config.Telemetry
	if !tc.Enabled || tc.Protocol != ProtocolGRPC || tc.Endpoint != "collector:4317" || !tc.Insecure {
		t.Errorf("telemetry: got %+v", tc)
	}
	if tc.ServiceName != "fa-top-dev" {
		t.Errorf("service_name: want fa-top-dev, got %s", tc.ServiceName)
	}
	if tc.ExportTimeout() != 2*time.Second {
		t.Errorf("export timeout: want 2s, got %v", tc.ExportTimeout())
	}
}

func TestConfigParser_InvalidValue(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "bad scheme",
			input:   "[api]\nbase_url = \"ftp://fa.example.com\"",
			wantErr: "base_url",
		},
		{
			name:    "negative timeout",
			input:   "[api]\ntimeout_seconds = -1",
			wantErr: "timeout_seconds",
		},
		{
			name:    "zero page size",
			input:   "[display]\npage_size = 0",
			wantErr: "page_size",
		},
		{
			name:    "zero retention",
			input:   "[storage]\nretention_days = 0",
			wantErr: "retention_days",
		},
		{
			name:    "unknown protocol",
			input:   "[telemetry]\nprotocol = \"udp\"",
			wantErr: "telemetry protocol",
		},
		{
			name:    "empty service name",
			input:   "[telemetry]\nservice_name = \"\"",
			wantErr: "service_name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromString(tt.input)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("want error containing %q, got %q", tt.wantErr, err.Error())
			}
			if !strings.HasPrefix(err.Error(), "config validation error: ") {
				t.Errorf("want validation prefix, got %q", err.Error())
			}
		})
	}
}

func TestConfigParser_MultipleErrorsAggregated(t *testing.T) {
	_, err := LoadFromString("[display]\npage_size = 0\ntrace_limit = 0")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "page_size") || !strings.Contains(err.Error(), "trace_limit") {
		t.Errorf("want both problems reported, got %q", err.Error())
	}
}

func TestConfigParser_UnknownKey(t *testing.T) {
	result, err := LoadFromString(`
colour = "blue"

[display]
page_size = 10
theme = "dark"
`)
	if err != nil {
		t.Fatalf("unknown keys must not be fatal, got: %v", err)
	}
	want := []string{`unknown config key: "colour"`, `unknown config key: "display.theme"`}
	if len(result.Warnings) != len(want) {
		t.Fatalf("want %d warnings, got %v", len(want), result.Warnings)
	}
	for i, w := range want {
		if result.Warnings[i] != w {
			t.Errorf("warning %d: want %s, got %s", i, w, result.Warnings[i])
		}
	}
	if result.Config.Display.PageSize != 10 {
		t.Errorf("known keys still apply: want 10, got %d", result.Config.Display.PageSize)
	}
}

func TestConfigParser_SyntaxError(t *testing.T) {
	_, err := LoadFromString("[api\nbase_url = ")
	if err == nil || !strings.Contains(err.Error(), "parsing config") {
		t.Errorf("want parse error, got %v", err)
	}
}

func TestConfigParser_FileLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := "[storage]\ndb_path = \"" + filepath.Join(dir, "snap.db") + "\"\nretention_days = 7\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	result, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Config.Storage.RetentionDays != 7 {
		t.Errorf("retention_days: want 7, got %d", result.Config.Storage.RetentionDays)
	}
	if result.Config.Storage.DBPath != filepath.Join(dir, "snap.db") {
		t.Errorf("db_path: got %s", result.Config.Storage.DBPath)
	}
}

func TestConfigParser_FileLoadNamesPathOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[display]\npage_size = 0\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	_, err := LoadFrom(path)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("want error naming %s, got %v", path, err)
	}
}

func TestConfigParser_EmptyString(t *testing.T) {
	result, err := LoadFromString("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Config != DefaultConfig() {
		t.Errorf("want defaults, got %+v", result.Config)
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	t.Setenv("FA_API_URL", "http://backend:9000")
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	if cfg.API.BaseURL != "http://backend:9000" {
		t.Errorf("want env base URL, got %s", cfg.API.BaseURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestConfig_ApplyEnvUnset(t *testing.T) {
	t.Setenv("FA_API_URL", "")
	cfg := DefaultConfig()
	cfg.API.BaseURL = "http://from-file:8000"
	cfg.ApplyEnv()
	if cfg.API.BaseURL != "http://from-file:8000" {
		t.Errorf("empty env must not override, got %s", cfg.API.BaseURL)
	}
}
