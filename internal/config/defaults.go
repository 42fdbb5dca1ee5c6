package config

import (
	"time"

	"github.com/nixlim/fa-top/internal/api"
)

const (
	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"
)

func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:   api.DefaultBaseURL,
			UserAgent: "fa-top",
		},
		Display: DisplayConfig{
			RefreshRateMS:       500,
			PageSize:            50,
			HistoryPageSize:     20,
			TraceLimit:          100,
			AnalyticsTraceLimit: 500,
			BenchRunLimit:       200,
			SearchDebounceMS:    300,
		},
		Storage: StorageConfig{
			RetentionDays: 30,
		},
		Telemetry: TelemetryConfig{
			Protocol:        ProtocolHTTP,
			ServiceName:     "fa-top",
			ExportTimeoutMS: 5000,
		},
	}
}

// Timeout is the per-request client timeout, 0 for the transport default.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c DisplayConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshRateMS) * time.Millisecond
}

func (c DisplayConfig) SearchDebounce() time.Duration {
	return time.Duration(c.SearchDebounceMS) * time.Millisecond
}

func (c TelemetryConfig) ExportTimeout() time.Duration {
	return time.Duration(c.ExportTimeoutMS) * time.Millisecond
}
