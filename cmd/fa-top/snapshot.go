package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nixlim/fa-top/internal/aggregate"
	"github.com/nixlim/fa-top/internal/api"
	"github.com/nixlim/fa-top/internal/config"
	"github.com/nixlim/fa-top/internal/storage"
)

var errNoSnapshot = errors.New("snapshot store not configured: set [storage] db_path in the config file")

// openSnapshot opens the configured file-backed store. An in-memory
// fallback is useless to a one-shot command and is rejected.
func openSnapshot(cfg config.StorageConfig) (storage.Store, error) {
	if cfg.DBPath == "" {
		return nil, errNoSnapshot
	}
	store, persistent, err := storage.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("storage error: %w", err)
	}
	if !persistent {
		_ = store.Close()
		return nil, fmt.Errorf("snapshot store %s could not be opened", cfg.DBPath)
	}
	return store, nil
}

func newSnapshotCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage the local trace snapshot",
		Long:  "Saves traces from the backend into a local SQLite file so analytics can be recomputed offline.",
	}

	cmd.AddCommand(newSnapshotPullCmd(g))
	cmd.AddCommand(newSnapshotShowCmd(g))
	cmd.AddCommand(newSnapshotPruneCmd(g))
	return cmd
}

func newSnapshotPullCmd(g *globalFlags) *cobra.Command {
	var (
		limit     int
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Fetch traces from the backend and save them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotPull(cmd, g, limit, sessionID)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "number of traces to fetch (default from config)")
	cmd.Flags().StringVar(&sessionID, "session", "", "only traces from this session ID")
	return cmd
}

func runSnapshotPull(cmd *cobra.Command, g *globalFlags, limit int, sessionID string) error {
	if limit < 0 {
		return fmt.Errorf("--limit must not be negative, got %d", limit)
	}

	e, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	store, err := openSnapshot(e.cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	if limit == 0 {
		limit = e.cfg.Display.AnalyticsTraceLimit
	}
	resp, err := e.client.Traces(cmd.Context(), limit, 0, sessionID)
	if err != nil {
		return err
	}

	pull, err := store.SaveTraces(cmd.Context(), e.client.BaseURL(), resp.Traces)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	out := cmd.OutOrStdout()
	if e.json() {
		return writeJSON(out, pull)
	}
	fmt.Fprintf(out, "Saved %s traces from %s (pull #%d)\n", humanize.Comma(int64(pull.Count)), pull.Source, pull.ID)
	return nil
}

func newSnapshotShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Describe what the snapshot holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotShow(cmd, g)
		},
	}
}

func runSnapshotShow(cmd *cobra.Command, g *globalFlags) error {
	format, err := normalizeFormat(cmd.CommandPath(), g.format)
	if err != nil {
		return err
	}
	cfg, err := g.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	store, err := openSnapshot(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Summary(cmd.Context())
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	out := cmd.OutOrStdout()
	if format == formatJSON {
		return writeJSON(out, summary)
	}

	w := newTable(out)
	fmt.Fprintf(w, "Traces\t%s\n", humanize.Comma(int64(summary.Traces)))
	fmt.Fprintf(w, "Pulls\t%s\n", humanize.Comma(int64(summary.Pulls)))
	if summary.Traces > 0 {
		fmt.Fprintf(w, "Oldest trace\t%s\n", summary.First.Local().Format("2006-01-02 15:04"))
		fmt.Fprintf(w, "Newest trace\t%s\n", summary.Last.Local().Format("2006-01-02 15:04"))
	}
	if p := summary.LastPull; p != nil {
		fmt.Fprintf(w, "Last pull\t%s (%s, %d traces)\n", humanize.Time(p.PulledAt), p.Source, p.Count)
	}
	return w.Flush()
}

func newSnapshotPruneCmd(g *globalFlags) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete snapshot traces older than a number of days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotPrune(cmd, g, days)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "keep this many days of traces (default retention_days)")
	return cmd
}

func runSnapshotPrune(cmd *cobra.Command, g *globalFlags, days int) error {
	if days < 0 {
		return fmt.Errorf("--days must not be negative, got %d", days)
	}
	cfg, err := g.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if days == 0 {
		days = cfg.Storage.RetentionDays
	}
	store, err := openSnapshot(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	cutoff := time.Now().AddDate(0, 0, -days)
	n, err := store.Prune(cmd.Context(), cutoff)
	if err != nil {
		return fmt.Errorf("prune snapshot: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %s traces older than %s\n", humanize.Comma(n), cutoff.Local().Format("2006-01-02"))
	return nil
}

type analyticsOutput struct {
	Source  string                    `json:"source"`
	Traces  int                       `json:"traces"`
	Latency []aggregate.LatencyBucket `json:"latency"`
	Tokens  []aggregate.TokenBucket   `json:"tokens"`
	Ratings []aggregate.RatingBin     `json:"ratings"`
}

func newAnalyticsCmd(g *globalFlags) *cobra.Command {
	var (
		limit        int
		sessionID    string
		provider     string
		fromSnapshot bool
	)

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Print hourly latency, token and rating breakdowns",
		Long: "Aggregates traces into hourly latency per provider, hourly token sums and a rating " +
			"histogram. With --from-snapshot the traces come from the local snapshot instead of the backend.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalytics(cmd, g, limit, sessionID, provider, fromSnapshot)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "number of traces to aggregate (default from config)")
	cmd.Flags().StringVar(&sessionID, "session", "", "only traces from this session ID")
	cmd.Flags().StringVar(&provider, "provider", "", "only traces from this provider")
	cmd.Flags().BoolVar(&fromSnapshot, "from-snapshot", false, "read traces from the local snapshot")
	return cmd
}

func runAnalytics(cmd *cobra.Command, g *globalFlags, limit int, sessionID, provider string, fromSnapshot bool) error {
	if limit < 0 {
		return fmt.Errorf("--limit must not be negative, got %d", limit)
	}

	var (
		traces []api.Trace
		source string
		format string
	)
	if fromSnapshot {
		f, err := normalizeFormat(cmd.CommandPath(), g.format)
		if err != nil {
			return err
		}
		format = f
		cfg, err := g.loadConfig(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if limit == 0 {
			limit = cfg.Display.AnalyticsTraceLimit
		}
		store, err := openSnapshot(cfg.Storage)
		if err != nil {
			return err
		}
		defer store.Close()
		traces, err = store.Traces(cmd.Context(), storage.TraceQuery{Limit: limit, SessionID: sessionID, Provider: provider})
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		source = "snapshot " + cfg.Storage.DBPath
	} else {
		e, err := g.open(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		format = e.format
		if limit == 0 {
			limit = e.cfg.Display.AnalyticsTraceLimit
		}
		resp, err := e.client.Traces(cmd.Context(), limit, 0, sessionID)
		if err != nil {
			return err
		}
		traces = filterProvider(resp.Traces, provider)
		source = e.client.BaseURL()
	}

	// Snapshots span many pulls, so order strictly by hour rather than by
	// label discovery.
	latency := aggregate.LatencySeries(traces)
	aggregate.SortLatencyBuckets(latency)
	tokens := aggregate.TokenSeries(traces)
	aggregate.SortTokenBuckets(tokens)
	ratings := aggregate.RatingDistribution(traces)

	out := cmd.OutOrStdout()
	if format == formatJSON {
		return writeJSON(out, analyticsOutput{
			Source: source, Traces: len(traces), Latency: latency, Tokens: tokens, Ratings: ratings,
		})
	}
	if len(traces) == 0 {
		fmt.Fprintln(out, "No data yet.")
		return nil
	}

	fmt.Fprintf(out, "%s traces from %s\n\n", humanize.Comma(int64(len(traces))), source)

	providers := aggregate.Providers(latency)
	fmt.Fprintln(out, "Latency by hour")
	w := newTable(out)
	fmt.Fprintf(w, "  HOUR\t%s\n", strings.ToUpper(strings.Join(providers, "\t")))
	for _, b := range latency {
		cells := make([]string, len(providers))
		for i, p := range providers {
			cells[i] = "-"
			if v, ok := b.ByProvider[p]; ok {
				cells[i] = formatLatency(v)
			}
		}
		fmt.Fprintf(w, "  %s\t%s\n", b.Label, strings.Join(cells, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out, "\nTokens by hour")
	w = newTable(out)
	fmt.Fprintln(w, "  HOUR\tPROMPT\tCOMPLETION")
	for _, b := range tokens {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", b.Label, humanize.Comma(b.Prompt), humanize.Comma(b.Completion))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !aggregate.HasRatings(ratings) {
		return nil
	}
	fmt.Fprintln(out, "\nRatings")
	w = newTable(out)
	for _, bin := range ratings {
		fmt.Fprintf(w, "  %d\t%d\t%s\n", bin.Rating, bin.Count, strings.Repeat("#", min(bin.Count, 40)))
	}
	return w.Flush()
}

func filterProvider(traces []api.Trace, provider string) []api.Trace {
	if provider == "" {
		return traces
	}
	var out []api.Trace
	for _, t := range traces {
		if t.Provider == provider {
			out = append(out, t)
		}
	}
	return out
}
