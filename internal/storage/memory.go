package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nixlim/fa-top/internal/api"
)

// MemoryStore is a Store that lives only as long as the process. It is
// used when no snapshot path is configured or the database cannot be
// opened.
type MemoryStore struct {
	mu     sync.RWMutex
	traces map[string]api.Trace
	pulls  []Pull
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		traces: make(map[string]api.Trace),
		now:    time.Now,
	}
}

func (m *MemoryStore) SaveTraces(_ context.Context, source string, traces []api.Trace) (Pull, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := Pull{
		ID:       int64(len(m.pulls) + 1),
		PulledAt: m.now().UTC(),
		Source:   source,
		Count:    len(traces),
	}
	m.pulls = append(m.pulls, p)
	for _, t := range traces {
		m.traces[t.ID] = t
	}
	return p, nil
}

func (m *MemoryStore) Traces(_ context.Context, q TraceQuery) ([]api.Trace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []api.Trace
	for _, t := range m.traces {
		if q.SessionID != "" && (t.SessionID == nil || *t.SessionID != q.SessionID) {
			continue
		}
		if q.Provider != "" && t.Provider != q.Provider {
			continue
		}
		if !q.Since.IsZero() && t.Timestamp.Before(q.Since) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp.Time) {
			return out[i].Timestamp.After(out[j].Timestamp.Time)
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MemoryStore) Summary(_ context.Context) (Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := Summary{Traces: len(m.traces), Pulls: len(m.pulls)}
	for _, t := range m.traces {
		ts := t.Timestamp.Time
		if sum.First.IsZero() || ts.Before(sum.First) {
			sum.First = ts
		}
		if ts.After(sum.Last) {
			sum.Last = ts
		}
	}
	if len(m.pulls) > 0 {
		last := m.pulls[len(m.pulls)-1]
		sum.LastPull = &last
	}
	return sum, nil
}

func (m *MemoryStore) Prune(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, t := range m.traces {
		if t.Timestamp.Before(before) {
			delete(m.traces, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }
