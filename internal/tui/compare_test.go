package tui

import (
	"strings"
	"testing"

	"github.com/nixlim/fa-top/internal/api"
)

func compareBackend() *mockBackend {
	return &mockBackend{
		perf: &api.PerformanceStats{ByProvider: map[string]api.ProviderStats{
			"openai":    {Calls: 12, AvgLatencyMS: 900},
			"anthropic": {Calls: 3, AvgLatencyMS: 1500, AvgRating: floatPtr(4.5)},
		}},
		sessions: []api.Session{
			{ID: "s1", Note: strPtr("morning")},
			{ID: "s2", Note: strPtr("evening")},
			{ID: "s3", Note: strPtr("empty")},
		},
		bySession: map[string][]api.Trace{
			"s1": {{ID: "a", LatencyMS: 100, RatingScore: intPtr(5)}, {ID: "b", LatencyMS: 300}},
			"s2": {{ID: "c", LatencyMS: 2000, RatingScore: intPtr(2)}},
		},
	}
}

func TestCompare_ProvidersSideBySide(t *testing.T) {
	m := enter(t, newTestModel(compareBackend()), ViewCompare)
	view := m.View()

	// Providers are sorted, so anthropic is on the left.
	for _, want := range []string{"anthropic", "openai", "1.50s", "900ms", "4.50"} {
		if !strings.Contains(view, want) {
			t.Errorf("want %q in provider comparison", want)
		}
	}
}

func TestCompare_NotEnoughProviders(t *testing.T) {
	b := compareBackend()
	b.perf = &api.PerformanceStats{ByProvider: map[string]api.ProviderStats{"openai": {Calls: 1}}}
	m := enter(t, newTestModel(b), ViewCompare)

	if !strings.Contains(m.View(), "Not enough data: at least 2 providers") {
		t.Error("want not-enough-data placeholder for one provider")
	}
}

func TestCompare_SessionsLoadBothSides(t *testing.T) {
	m := enter(t, newTestModel(compareBackend()), ViewCompare)

	m, cmd := press(m, "m")
	m = run(t, m, cmd)

	left, right := m.compare.sides[0], m.compare.sides[1]
	if left.sessionID != "s1" || left.summary.Traces != 2 || left.summary.AvgLatencyMS != 200 {
		t.Errorf("want s1 with 2 traces at 200ms, got %+v", left)
	}
	if right.sessionID != "s2" || right.summary.AvgRating != 2 {
		t.Errorf("want s2 rated 2, got %+v", right)
	}
	view := m.View()
	if !strings.Contains(view, "morning") || !strings.Contains(view, "evening") {
		t.Error("want both session labels")
	}
	if !strings.Contains(view, "5.00 (1 rated)") {
		t.Error("want left rating from rated traces only")
	}
}

func TestCompare_StepSessionReloadsFocusedSide(t *testing.T) {
	m := enter(t, newTestModel(compareBackend()), ViewCompare)
	m, cmd := press(m, "m")
	m = run(t, m, cmd)

	m, _ = press(m, "right")
	m, cmd = press(m, "down")
	m = run(t, m, cmd)

	if m.compare.session != [2]int{0, 2} {
		t.Errorf("want sessions {0,2}, got %v", m.compare.session)
	}
	if !strings.Contains(m.View(), "no traces in this session") {
		t.Error("want empty-session placeholder on the right")
	}
}

func TestCompare_NotEnoughSessions(t *testing.T) {
	b := compareBackend()
	b.sessions = b.sessions[:1]
	m := enter(t, newTestModel(b), ViewCompare)
	m, cmd := press(m, "m")
	if cmd != nil {
		m = run(t, m, cmd)
	}

	if !strings.Contains(m.View(), "Not enough data: at least 2 sessions") {
		t.Error("want not-enough-data placeholder for one session")
	}
}

func TestClampPair(t *testing.T) {
	p := [2]int{4, 1}
	clampPair(&p, 3)
	if p != [2]int{2, 1} {
		t.Errorf("want {2,1}, got %v", p)
	}
	clampPair(&p, 1)
	if p != [2]int{0, 1} {
		t.Errorf("want reset to {0,1}, got %v", p)
	}
}

func TestCycle(t *testing.T) {
	if got := cycle(0, -1, 3); got != 2 {
		t.Errorf("want wrap to 2, got %d", got)
	}
	if got := cycle(2, 1, 3); got != 0 {
		t.Errorf("want wrap to 0, got %d", got)
	}
	if got := cycle(5, 1, 0); got != 0 {
		t.Errorf("want 0 with no candidates, got %d", got)
	}
}
