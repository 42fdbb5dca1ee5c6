package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/nixlim/fa-top/internal/aggregate"
	"github.com/nixlim/fa-top/internal/api"
	"github.com/nixlim/fa-top/internal/report"
)

func newBenchCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Inspect benchmark runs",
	}

	cmd.AddCommand(newBenchListCmd(g))
	cmd.AddCommand(newBenchShowCmd(g))
	cmd.AddCommand(newBenchSummaryCmd(g))
	cmd.AddCommand(newBenchReportCmd(g))
	return cmd
}

func newBenchListCmd(g *globalFlags) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List benchmark runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchList(cmd, g, limit, offset)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "number of runs to fetch (default from config)")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")
	return cmd
}

func scoreCell(v float64, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

func runBenchList(cmd *cobra.Command, g *globalFlags, limit, offset int) error {
	if limit < 0 || offset < 0 {
		return fmt.Errorf("--limit and --offset must not be negative")
	}

	e, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if limit == 0 {
		limit = e.cfg.Display.BenchRunLimit
	}
	resp, err := e.client.BenchRuns(cmd.Context(), limit, offset)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if e.json() {
		return writeJSON(out, resp)
	}
	if len(resp.Runs) == 0 {
		fmt.Fprintln(out, "No benchmark runs yet.")
		return nil
	}

	w := newTable(out)
	fmt.Fprintln(w, "ID\tSTARTED\tSCENARIO\tPROVIDER\tMODEL\tOVERALL")
	for _, r := range resp.Runs {
		overall, ok := r.Summary.Overall()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, formatStamp(r.StartedAt), r.ScenarioID, r.Provider, r.Model, scoreCell(overall, ok))
	}
	return w.Flush()
}

func newBenchShowCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run's scores, probes and turns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchShow(cmd, g, args[0])
		},
	}
}

func runBenchShow(cmd *cobra.Command, g *globalFlags, runID string) error {
	e, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	run, err := e.client.BenchRun(cmd.Context(), runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if e.json() {
		return writeJSON(out, run)
	}

	title := run.Title
	if title == "" {
		title = run.ID
	}
	fmt.Fprintln(out, title)
	fmt.Fprintf(out, "%s  %s / %s  started %s\n", run.ScenarioID, run.Provider, run.Model, formatStamp(run.StartedAt))
	if n := deref(run.Notes); n != "" {
		fmt.Fprintln(out, n)
	}

	if len(run.Scores) > 0 {
		names := make([]string, 0, len(run.Scores))
		for k := range run.Scores {
			names = append(names, k)
		}
		sort.Strings(names)
		fmt.Fprintln(out, "\nScores")
		w := newTable(out)
		for _, n := range names {
			fmt.Fprintf(w, "  %s\t%.2f\n", aggregate.MetricLabel(n), run.Scores[n])
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "\nProbes (%d)\n", len(run.Probes))
	w := newTable(out)
	for _, p := range run.Probes {
		fmt.Fprintf(w, "  #%d\t%s\t%s\t%.2f\t%s\n",
			p.Idx, p.ProbeID, p.ProbeType, p.Score, aggregate.Preview(oneLine(p.Question), previewWidth))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nTurns (%d)\n", len(run.Turns))
	w = newTable(out)
	for _, t := range run.Turns {
		latency := "-"
		if t.LatencyMS != nil {
			latency = formatLatency(*t.LatencyMS)
		}
		fmt.Fprintf(w, "  #%d\t%s\t%s\t%s\n", t.Idx, t.Role, latency, aggregate.Preview(oneLine(t.Content), previewWidth))
	}
	return w.Flush()
}

type benchSummaryOutput struct {
	Metric string                  `json:"metric"`
	Series []aggregate.MetricPoint `json:"series"`
	Latest []aggregate.TypeScore   `json:"latest_by_type"`
	Rows   []api.BenchSummaryRow   `json:"rows"`
}

func newBenchSummaryCmd(g *globalFlags) *cobra.Command {
	var metric string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print a metric over time and the latest run by probe type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchSummary(cmd, g, metric)
		},
	}

	cmd.Flags().StringVar(&metric, "metric", api.OverallMetric, "metric to chart across runs")
	return cmd
}

func runBenchSummary(cmd *cobra.Command, g *globalFlags, metric string) error {
	e, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	resp, err := e.client.BenchSummary(cmd.Context())
	if err != nil {
		return err
	}

	series := aggregate.MetricSeries(resp.Rows, metric)
	types := aggregate.TypeBreakdown(resp.Rows)

	out := cmd.OutOrStdout()
	if e.json() {
		return writeJSON(out, benchSummaryOutput{Metric: metric, Series: series, Latest: types, Rows: resp.Rows})
	}
	if len(resp.Rows) == 0 {
		fmt.Fprintln(out, "No benchmark results yet.")
		return nil
	}

	fmt.Fprintln(out, aggregate.MetricLabel(metric))
	w := newTable(out)
	for _, p := range series {
		fmt.Fprintf(w, "  %s\t%s\t%.2f\n", p.Label, shortID(p.RunID), p.Value)
	}
	if len(series) == 0 {
		fmt.Fprintln(w, "  no runs report this metric")
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(types) > 0 {
		fmt.Fprintln(out, "\nLatest run by probe type")
		w = newTable(out)
		for _, t := range types {
			fmt.Fprintf(w, "  %s\t%.2f\n", t.Metric, t.Value)
		}
		return w.Flush()
	}
	return nil
}

func newBenchReportCmd(g *globalFlags) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Render one run as a standalone HTML page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchReport(cmd, g, args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the page to this file instead of stdout")
	return cmd
}

func runBenchReport(cmd *cobra.Command, g *globalFlags, runID, output string) error {
	renderer, err := report.NewRenderer()
	if err != nil {
		return err
	}

	e, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	run, err := e.client.BenchRun(cmd.Context(), runID)
	if err != nil {
		return err
	}

	if output == "" {
		return renderer.Render(cmd.OutOrStdout(), *run, time.Now())
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := renderer.Render(f, *run, time.Now()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
	return nil
}
