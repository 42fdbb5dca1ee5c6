package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/fa-top/internal/aggregate"
	"github.com/nixlim/fa-top/internal/api"
)

// seriesRows caps how many hour buckets each chart shows.
const seriesRows = 12

type perfState struct {
	stats   *api.PerformanceStats
	loading bool
	err     error
}

type analyticsState struct {
	traces  []api.Trace
	loaded  bool
	loading bool
	err     error
}

func (m Model) handleAnalyticsKey(tea.KeyMsg) (tea.Model, tea.Cmd) {
	return m, nil
}

func (m *Model) applyPerf(msg perfLoadedMsg) {
	if !m.gens.perf.Accept(msg.gen) {
		return
	}
	m.perf.loading = false
	if msg.err != nil {
		m.perf.err = msg.err
		return
	}
	m.perf.err = nil
	m.perf.stats = msg.stats
	m.compare.clampProviders(len(aggregate.ProviderNames(m.perf.stats)))
}

func (m *Model) applyAnalyticsTraces(msg analyticsTracesMsg) {
	if !m.gens.analytics.Accept(msg.gen) {
		return
	}
	m.analytics.loading = false
	if msg.err != nil {
		m.analytics.err = msg.err
		return
	}
	m.analytics.err = nil
	m.analytics.loaded = true
	m.analytics.traces = msg.resp.Traces
	if m.recorder != nil && len(msg.resp.Traces) > 0 {
		m.recorder.Record(m.snapshotSource, msg.resp.Traces)
	}
}

func (m Model) renderPerfCards() string {
	if m.perf.err != nil {
		return errorLine(m.perf.err)
	}
	p := m.perf.stats
	if p == nil {
		if m.perf.loading {
			return m.loadingLine("stats")
		}
		return ""
	}

	tps := "-"
	if p.AvgTokensPerSec != nil {
		tps = fmt.Sprintf("%.1f", *p.AvgTokensPerSec)
	}
	summary := cardRow(m.contentWidth(),
		card("Calls", formatCount(int64(p.TotalCalls))),
		card("Avg latency", formatLatency(p.AvgLatencyMS)),
		card("Tokens/sec", tps),
		card("Prompt tokens", formatCount(p.TotalPromptTokens)),
		card("Completion tokens", formatCount(p.TotalCompletionTokens)),
		card("Avg rating", formatRating(p.AvgRating)),
	)

	names := aggregate.ProviderNames(p)
	if len(names) == 0 {
		return summary
	}
	cards := make([]string, 0, len(names))
	for _, name := range names {
		ps := p.ByProvider[name]
		cards = append(cards, card(name, fmt.Sprintf("%s calls · %s · %s",
			formatCount(int64(ps.Calls)), formatLatency(ps.AvgLatencyMS), formatRating(ps.AvgRating))))
	}
	return summary + "\n" + cardRow(m.contentWidth(), cards...)
}

func lastN[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func renderLatencySeries(buckets []aggregate.LatencyBucket) string {
	var sb strings.Builder
	providers := aggregate.Providers(buckets)

	sb.WriteString(" " + sectionTitle("Latency by hour") + "\n")
	head := fmt.Sprintf("  %-12s", "Hour")
	for _, p := range providers {
		head += fmt.Sprintf(" %12s", truncate(p, 12))
	}
	sb.WriteString(dimStyle.Render(head) + "\n")

	for _, b := range lastN(buckets, seriesRows) {
		row := fmt.Sprintf("  %-12s", b.Label)
		for _, p := range providers {
			cell := "-"
			if v, ok := b.ByProvider[p]; ok {
				cell = formatLatency(v)
			}
			row += fmt.Sprintf(" %12s", cell)
		}
		sb.WriteString(row + "\n")
	}
	return sb.String()
}

func renderTokenSeries(buckets []aggregate.TokenBucket) string {
	var sb strings.Builder
	shown := lastN(buckets, seriesRows)

	var peak int64
	for _, b := range shown {
		peak = max(peak, b.Prompt+b.Completion)
	}

	sb.WriteString(" " + sectionTitle("Tokens by hour") + "\n")
	sb.WriteString(dimStyle.Render(fmt.Sprintf("  %-12s %10s %10s", "Hour", "Prompt", "Compl.")) + "\n")
	for _, b := range shown {
		sb.WriteString(fmt.Sprintf("  %-12s %10s %10s  %s\n",
			b.Label, formatCount(b.Prompt), formatCount(b.Completion),
			bar(float64(b.Prompt+b.Completion), float64(peak), barWidth)))
	}
	return sb.String()
}

func renderRatingDistribution(bins []aggregate.RatingBin) string {
	var sb strings.Builder
	peak := 0
	for _, b := range bins {
		peak = max(peak, b.Count)
	}
	sb.WriteString(" " + sectionTitle("Ratings") + "\n")
	for _, b := range bins {
		sb.WriteString(fmt.Sprintf("  %d★ %5d  %s\n", b.Rating, b.Count,
			bar(float64(b.Count), float64(peak), barWidth)))
	}
	return sb.String()
}

func (m Model) renderAnalytics() string {
	var sb strings.Builder

	if cards := m.renderPerfCards(); cards != "" {
		sb.WriteString(cards)
		sb.WriteString("\n\n")
	}

	a := m.analytics
	if a.loading {
		sb.WriteString(m.loadingLine("traces"))
		sb.WriteByte('\n')
	}
	if a.err != nil {
		sb.WriteString(errorLine(a.err))
		sb.WriteByte('\n')
		return sb.String()
	}
	if len(a.traces) == 0 {
		if a.loaded {
			sb.WriteString(placeholder("No data yet"))
			sb.WriteByte('\n')
		}
		return sb.String()
	}

	sb.WriteString(renderLatencySeries(aggregate.LatencySeries(a.traces)))
	sb.WriteByte('\n')
	sb.WriteString(renderTokenSeries(aggregate.TokenSeries(a.traces)))

	if bins := aggregate.RatingDistribution(a.traces); aggregate.HasRatings(bins) {
		sb.WriteByte('\n')
		sb.WriteString(renderRatingDistribution(bins))
	}

	return sb.String()
}
