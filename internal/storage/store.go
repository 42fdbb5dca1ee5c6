// Package storage keeps local snapshots of traces pulled from the backend
// so analytics can be recomputed offline. Live views never read from it.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nixlim/fa-top/internal/api"
)

// timeLayout is fixed width so stored timestamps compare correctly as
// strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("snapshot store is closed")

// TraceQuery filters snapshot reads. Zero fields match everything.
type TraceQuery struct {
	Limit     int
	SessionID string
	Provider  string
	Since     time.Time
}

// Pull records one batch of traces saved from a backend.
type Pull struct {
	ID       int64
	PulledAt time.Time
	Source   string
	Count    int
}

// Summary describes what a snapshot holds.
type Summary struct {
	Traces   int
	Pulls    int
	First    time.Time
	Last     time.Time
	LastPull *Pull
}

// Store is a trace snapshot. Implementations must be safe for concurrent
// use.
type Store interface {
	// SaveTraces upserts traces by ID and records the pull.
	SaveTraces(ctx context.Context, source string, traces []api.Trace) (Pull, error)

	// Traces returns matching traces newest first.
	Traces(ctx context.Context, q TraceQuery) ([]api.Trace, error)

	Summary(ctx context.Context) (Summary, error)

	// Prune deletes traces with a timestamp before the cutoff and returns
	// how many were removed.
	Prune(ctx context.Context, before time.Time) (int64, error)

	Close() error
}

type SQLiteStore struct {
	db              *sql.DB
	now             func() time.Time
	closed          atomic.Bool
	cancelMaint     context.CancelFunc
	maintenanceDone chan struct{}
}

// NewSQLiteStore opens (creating if needed) the snapshot at dbPath and
// starts the retention loop.
func NewSQLiteStore(dbPath string, retentionDays int) (*SQLiteStore, error) {
	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	store := &SQLiteStore{
		db:              db,
		now:             time.Now,
		cancelMaint:     cancel,
		maintenanceDone: make(chan struct{}),
	}
	store.startMaintenance(ctx, retentionDays)

	return store, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullScore(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func (s *SQLiteStore) SaveTraces(ctx context.Context, source string, traces []api.Trace) (Pull, error) {
	if s.closed.Load() {
		return Pull{}, ErrClosed
	}

	pull := Pull{PulledAt: s.now().UTC(), Source: source, Count: len(traces)}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Pull{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO pulls (pulled_at, source, trace_count) VALUES (?, ?, ?)",
		formatTime(pull.PulledAt), source, len(traces))
	if err != nil {
		return Pull{}, fmt.Errorf("recording pull: %w", err)
	}
	pull.ID, err = res.LastInsertId()
	if err != nil {
		return Pull{}, fmt.Errorf("reading pull id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO traces (id, timestamp, provider, model, session_id, latency_ms,
			prompt_tokens, completion_tokens, rating_score, payload, saved_at, pull_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			rating_score = excluded.rating_score,
			payload = excluded.payload,
			saved_at = excluded.saved_at,
			pull_id = excluded.pull_id
	`)
	if err != nil {
		return Pull{}, fmt.Errorf("preparing trace insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, t := range traces {
		payload, err := json.Marshal(t)
		if err != nil {
			return Pull{}, fmt.Errorf("encoding trace %s: %w", t.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			t.ID, formatTime(t.Timestamp.Time), t.Provider, t.Model, nullString(t.SessionID),
			t.LatencyMS, nullInt64(t.PromptTokens), nullInt64(t.CompletionTokens),
			nullScore(t.RatingScore), string(payload), formatTime(pull.PulledAt), pull.ID,
		)
		if err != nil {
			return Pull{}, fmt.Errorf("saving trace %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Pull{}, fmt.Errorf("committing transaction: %w", err)
	}
	return pull, nil
}

func (s *SQLiteStore) Traces(ctx context.Context, q TraceQuery) ([]api.Trace, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	query := "SELECT payload FROM traces WHERE 1=1"
	var args []any
	if q.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, q.SessionID)
	}
	if q.Provider != "" {
		query += " AND provider = ?"
		args = append(args, q.Provider)
	}
	if !q.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, formatTime(q.Since))
	}
	query += " ORDER BY timestamp DESC, id"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying traces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []api.Trace
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning trace row: %w", err)
		}
		var t api.Trace
		if err := json.Unmarshal([]byte(payload), &t); err != nil {
			return nil, fmt.Errorf("decoding trace payload: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trace rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Summary(ctx context.Context) (Summary, error) {
	if s.closed.Load() {
		return Summary{}, ErrClosed
	}

	var sum Summary
	var first, last sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), MIN(timestamp), MAX(timestamp) FROM traces",
	).Scan(&sum.Traces, &first, &last)
	if err != nil {
		return Summary{}, fmt.Errorf("summarizing traces: %w", err)
	}
	sum.First = parseTime(first.String)
	sum.Last = parseTime(last.String)

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pulls").Scan(&sum.Pulls); err != nil {
		return Summary{}, fmt.Errorf("counting pulls: %w", err)
	}

	var p Pull
	var pulledAt string
	err = s.db.QueryRowContext(ctx,
		"SELECT id, pulled_at, source, trace_count FROM pulls ORDER BY id DESC LIMIT 1",
	).Scan(&p.ID, &pulledAt, &p.Source, &p.Count)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return Summary{}, fmt.Errorf("reading last pull: %w", err)
	default:
		p.PulledAt = parseTime(pulledAt)
		sum.LastPull = &p
	}
	return sum, nil
}

func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	return s.prune(ctx, before)
}

func (s *SQLiteStore) prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM traces WHERE timestamp < ?", formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("pruning old traces: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned traces: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM pulls WHERE pulled_at < ?
		AND NOT EXISTS (SELECT 1 FROM traces WHERE traces.pull_id = pulls.id)
	`, formatTime(before))
	if err != nil {
		return n, fmt.Errorf("pruning empty pulls: %w", err)
	}
	return n, nil
}

// Close stops the retention loop and closes the database. It is safe to
// call more than once.
func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cancelMaint()
	<-s.maintenanceDone
	return s.db.Close()
}
