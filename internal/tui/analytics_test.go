package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/nixlim/fa-top/internal/api"
)

type recordCall struct {
	source string
	n      int
}

type mockRecorder struct {
	calls []recordCall
}

func (r *mockRecorder) Record(source string, traces []api.Trace) {
	r.calls = append(r.calls, recordCall{source: source, n: len(traces)})
}

func analyticsBackend(rated bool) *mockBackend {
	at := api.Timestamp{Time: time.Date(2026, 3, 3, 9, 15, 0, 0, time.Local)}
	t1 := api.Trace{ID: "t1", Timestamp: at, Provider: "openai", LatencyMS: 800, PromptTokens: int64Ptr(10), CompletionTokens: int64Ptr(5)}
	t2 := api.Trace{ID: "t2", Timestamp: at, Provider: "anthropic", LatencyMS: 1200, CompletionTokens: int64Ptr(7)}
	if rated {
		t1.RatingScore = intPtr(4)
	}
	return &mockBackend{
		traces: []api.Trace{t1, t2},
		perf: &api.PerformanceStats{
			TotalCalls:        2,
			AvgLatencyMS:      1000,
			AvgTokensPerSec:   floatPtr(42.5),
			TotalPromptTokens: 10,
			ByProvider: map[string]api.ProviderStats{
				"openai":    {Calls: 1, AvgLatencyMS: 800},
				"anthropic": {Calls: 1, AvgLatencyMS: 1200},
			},
		},
	}
}

func TestAnalytics_RendersSeries(t *testing.T) {
	m := enter(t, newTestModel(analyticsBackend(true)), ViewAnalytics)
	view := m.View()

	for _, want := range []string{"Tokens/sec", "42.5", "Latency by hour", "3/3 9:00", "Tokens by hour", "Ratings"} {
		if !strings.Contains(view, want) {
			t.Errorf("want %q in analytics view", want)
		}
	}
}

func TestAnalytics_RatingHistogramHiddenWithoutRatings(t *testing.T) {
	m := enter(t, newTestModel(analyticsBackend(false)), ViewAnalytics)
	view := m.View()

	if strings.Contains(view, "Ratings") {
		t.Error("want rating histogram hidden when no trace is rated")
	}
	if !strings.Contains(view, "Latency by hour") {
		t.Error("want latency series still shown")
	}
}

func TestAnalytics_NoDataYet(t *testing.T) {
	m := enter(t, newTestModel(&mockBackend{}), ViewAnalytics)
	if !strings.Contains(m.View(), "No data yet") {
		t.Error("want empty analytics placeholder")
	}
}

func TestAnalytics_RecordsSnapshot(t *testing.T) {
	rec := &mockRecorder{}
	m := newTestModel(analyticsBackend(false), WithSnapshotRecorder(rec, "http://backend"))
	enter(t, m, ViewAnalytics)

	if len(rec.calls) != 1 {
		t.Fatalf("want 1 snapshot, got %d", len(rec.calls))
	}
	if rec.calls[0] != (recordCall{source: "http://backend", n: 2}) {
		t.Errorf("want 2 traces from http://backend, got %+v", rec.calls[0])
	}

	rec.calls = nil
	enter(t, newTestModel(&mockBackend{}, WithSnapshotRecorder(rec, "x")), ViewAnalytics)
	if len(rec.calls) != 0 {
		t.Error("want empty fetches not recorded")
	}
}
