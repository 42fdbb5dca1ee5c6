package api

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// RoundTrip describes one completed (or failed) HTTP exchange.
type RoundTrip struct {
	Op       string
	Start    time.Time
	Method   string
	Path     string
	Status   int
	Duration time.Duration
	Err      error
}

// Logger receives one record per HTTP round trip issued by the Client.
// Implementations must be safe for concurrent use.
type Logger interface {
	LogRoundTrip(rt RoundTrip)
}

// NopLogger discards all records. It is the Client default.
type NopLogger struct{}

func (NopLogger) LogRoundTrip(RoundTrip) {}

// MultiLogger fans each record out to several loggers.
type MultiLogger []Logger

func (m MultiLogger) LogRoundTrip(rt RoundTrip) {
	for _, l := range m {
		l.LogRoundTrip(rt)
	}
}

type logEntry struct {
	Timestamp  string  `json:"ts"`
	Op         string  `json:"op"`
	Method     string  `json:"method"`
	Path       string  `json:"path"`
	Status     int     `json:"status,omitempty"`
	DurationMS float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

// FileLogger writes each round trip as one JSON object per line (JSONL).
type FileLogger struct {
	w  io.Writer
	mu sync.Mutex
}

func NewFileLogger(w io.Writer) *FileLogger {
	return &FileLogger{w: w}
}

func (l *FileLogger) LogRoundTrip(rt RoundTrip) {
	ts := rt.Start
	if ts.IsZero() {
		ts = time.Now()
	}

	entry := logEntry{
		Timestamp:  ts.UTC().Format(time.RFC3339Nano),
		Op:         rt.Op,
		Method:     rt.Method,
		Path:       rt.Path,
		Status:     rt.Status,
		DurationMS: float64(rt.Duration.Microseconds()) / 1000,
	}
	if rt.Err != nil {
		entry.Error = rt.Err.Error()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s\n", data)
}
