package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nixlim/fa-top/internal/api"
)

func strPtr(s string) *string { return &s }
func i64(v int64) *int64      { return &v }
func score(v int) *int        { return &v }

func sampleTraces(base time.Time) []api.Trace {
	return []api.Trace{
		{
			ID: "t1", Timestamp: api.Timestamp{Time: base}, Provider: "gemini", Model: "gemini-2.0",
			LatencyMS: 120.5, PromptTokens: i64(10), SessionID: strPtr("s1"),
			ContextMessages: []api.TraceMessage{{Role: "user", Content: "earlier"}},
			ResponseOut:     "hello",
		},
		{
			ID: "t2", Timestamp: api.Timestamp{Time: base.Add(time.Hour)}, Provider: "anthropic", Model: "claude",
			LatencyMS: 300, CompletionTokens: i64(7), RatingScore: score(4), SessionID: strPtr("s2"),
		},
		{
			ID: "t3", Timestamp: api.Timestamp{Time: base.Add(2 * time.Hour)}, Provider: "gemini", Model: "gemini-2.0",
			LatencyMS: 80, SessionID: strPtr("s1"),
		},
	}
}

// storeSuite runs the behaviour every Store implementation shares.
func storeSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2026, 2, 15, 10, 0, 0, 0, time.UTC)

	t.Run("save and read newest first", func(t *testing.T) {
		s := newStore(t)
		pull, err := s.SaveTraces(ctx, "http://localhost:8000", sampleTraces(base))
		if err != nil {
			t.Fatalf("SaveTraces: %v", err)
		}
		if pull.Count != 3 || pull.Source != "http://localhost:8000" {
			t.Errorf("pull: got %+v", pull)
		}

		got, err := s.Traces(ctx, TraceQuery{})
		if err != nil {
			t.Fatalf("Traces: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("want 3 traces, got %d", len(got))
		}
		if got[0].ID != "t3" || got[2].ID != "t1" {
			t.Errorf("want newest first, got %s..%s", got[0].ID, got[2].ID)
		}
		first := got[2]
		if first.PromptTokens == nil || *first.PromptTokens != 10 || first.CompletionTokens != nil {
			t.Errorf("token pointers not preserved: %+v", first)
		}
		if len(first.ContextMessages) != 1 || first.ResponseOut != "hello" {
			t.Errorf("payload not preserved: %+v", first)
		}
		if !first.Timestamp.Equal(base) {
			t.Errorf("timestamp: want %v, got %v", base, first.Timestamp.Time)
		}
	})

	t.Run("filters", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.SaveTraces(ctx, "src", sampleTraces(base)); err != nil {
			t.Fatal(err)
		}

		bySession, _ := s.Traces(ctx, TraceQuery{SessionID: "s1"})
		if len(bySession) != 2 {
			t.Errorf("session filter: want 2, got %d", len(bySession))
		}
		byProvider, _ := s.Traces(ctx, TraceQuery{Provider: "anthropic"})
		if len(byProvider) != 1 || byProvider[0].ID != "t2" {
			t.Errorf("provider filter: got %+v", byProvider)
		}
		since, _ := s.Traces(ctx, TraceQuery{Since: base.Add(90 * time.Minute)})
		if len(since) != 1 || since[0].ID != "t3" {
			t.Errorf("since filter: got %+v", since)
		}
		limited, _ := s.Traces(ctx, TraceQuery{Limit: 2})
		if len(limited) != 2 {
			t.Errorf("limit: want 2, got %d", len(limited))
		}
	})

	t.Run("upsert keeps one row per id", func(t *testing.T) {
		s := newStore(t)
		traces := sampleTraces(base)
		if _, err := s.SaveTraces(ctx, "src", traces); err != nil {
			t.Fatal(err)
		}
		traces[0].RatingScore = score(2)
		if _, err := s.SaveTraces(ctx, "src", traces[:1]); err != nil {
			t.Fatal(err)
		}

		got, _ := s.Traces(ctx, TraceQuery{})
		if len(got) != 3 {
			t.Fatalf("want 3 traces after upsert, got %d", len(got))
		}
		for _, tr := range got {
			if tr.ID == "t1" && (tr.RatingScore == nil || *tr.RatingScore != 2) {
				t.Errorf("want updated rating 2, got %v", tr.RatingScore)
			}
		}

		sum, err := s.Summary(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if sum.Pulls != 2 || sum.LastPull == nil || sum.LastPull.Count != 1 {
			t.Errorf("summary pulls: got %+v", sum)
		}
	})

	t.Run("summary", func(t *testing.T) {
		s := newStore(t)
		empty, err := s.Summary(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if empty.Traces != 0 || empty.LastPull != nil || !empty.First.IsZero() {
			t.Errorf("empty summary: got %+v", empty)
		}

		if _, err := s.SaveTraces(ctx, "src", sampleTraces(base)); err != nil {
			t.Fatal(err)
		}
		sum, _ := s.Summary(ctx)
		if sum.Traces != 3 {
			t.Errorf("traces: want 3, got %d", sum.Traces)
		}
		if !sum.First.Equal(base) || !sum.Last.Equal(base.Add(2*time.Hour)) {
			t.Errorf("range: got %v..%v", sum.First, sum.Last)
		}
	})

	t.Run("prune", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.SaveTraces(ctx, "src", sampleTraces(base)); err != nil {
			t.Fatal(err)
		}
		n, err := s.Prune(ctx, base.Add(90*time.Minute))
		if err != nil {
			t.Fatalf("Prune: %v", err)
		}
		if n != 2 {
			t.Errorf("want 2 pruned, got %d", n)
		}
		left, _ := s.Traces(ctx, TraceQuery{})
		if len(left) != 1 || left[0].ID != "t3" {
			t.Errorf("want only t3 left, got %+v", left)
		}
	})
}

func TestSQLiteStore(t *testing.T) {
	storeSuite(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "snap.db"), 30)
		if err != nil {
			t.Fatalf("NewSQLiteStore: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMemoryStore(t *testing.T) {
	storeSuite(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "snap.db")

	s, err := NewSQLiteStore(dbPath, 30)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveTraces(ctx, "src", sampleTraces(time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := NewSQLiteStore(dbPath, 30)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s2.Close() }()
	got, err := s2.Traces(ctx, TraceQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("want 3 traces after reopen, got %d", len(got))
	}
}

func TestSQLiteStore_ClosedStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "snap.db"), 30)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: want nil, got %v", err)
	}
	if _, err := s.Traces(context.Background(), TraceQuery{}); !errors.Is(err, ErrClosed) {
		t.Errorf("want ErrClosed, got %v", err)
	}
	if _, err := s.SaveTraces(context.Background(), "src", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("want ErrClosed, got %v", err)
	}
}

func TestMaintenance_PrunesByRetention(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "snap.db"), 7)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	traces := []api.Trace{
		{ID: "old", Timestamp: api.Timestamp{Time: now.AddDate(0, 0, -8)}, Provider: "gemini"},
		{ID: "new", Timestamp: api.Timestamp{Time: now.AddDate(0, 0, -1)}, Provider: "gemini"},
	}
	if _, err := s.SaveTraces(ctx, "src", traces); err != nil {
		t.Fatal(err)
	}

	if err := s.runMaintenanceCycle(ctx, 7); err != nil {
		t.Fatalf("runMaintenanceCycle: %v", err)
	}

	left, _ := s.Traces(ctx, TraceQuery{})
	if len(left) != 1 || left[0].ID != "new" {
		t.Errorf("want only new trace left, got %+v", left)
	}
}
