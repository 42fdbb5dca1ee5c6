package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/fa-top/internal/aggregate"
	"github.com/nixlim/fa-top/internal/api"
)

type benchState struct {
	runs    []api.BenchRun
	loading bool
	err     error

	rows       []api.BenchSummaryRow
	summaryErr error

	cursor int

	detail        *api.BenchRunDetail
	detailLoading bool
	detailErr     error
	scroll        int
}

func (b benchState) selected() (api.BenchRun, bool) {
	if b.cursor < 0 || b.cursor >= len(b.runs) {
		return api.BenchRun{}, false
	}
	return b.runs[b.cursor], true
}

func (b benchState) inDetail() bool {
	return b.detail != nil || b.detailLoading || b.detailErr != nil
}

func (m Model) handleBenchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.bench.inDetail() {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.bench.detail = nil
			m.bench.detailErr = nil
			m.bench.detailLoading = false
			m.bench.scroll = 0
			m.gens.benchRun.Next()
		case key.Matches(msg, m.keys.Up):
			if m.bench.scroll > 0 {
				m.bench.scroll--
			}
		case key.Matches(msg, m.keys.Down):
			m.bench.scroll++
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.bench.cursor > 0 {
			m.bench.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.bench.cursor < len(m.bench.runs)-1 {
			m.bench.cursor++
		}
	case key.Matches(msg, m.keys.Enter):
		run, ok := m.bench.selected()
		if !ok {
			return m, nil
		}
		m.bench.detailErr = nil
		m.bench.scroll = 0
		return m, m.loadBenchRun(run.ID)
	}
	return m, nil
}

func (m *Model) applyBenchRuns(msg benchRunsLoadedMsg) {
	if !m.gens.benchRuns.Accept(msg.gen) {
		return
	}
	m.bench.loading = false
	if msg.err != nil {
		m.bench.err = msg.err
		return
	}
	m.bench.err = nil
	m.bench.runs = msg.resp.Runs
	if m.bench.cursor >= len(m.bench.runs) {
		m.bench.cursor = max(len(m.bench.runs)-1, 0)
	}
}

func (m *Model) applyBenchSummary(msg benchSummaryLoadedMsg) {
	if !m.gens.benchSummary.Accept(msg.gen) {
		return
	}
	if msg.err != nil {
		m.bench.summaryErr = msg.err
		return
	}
	m.bench.summaryErr = nil
	m.bench.rows = msg.resp.Rows
}

func (m *Model) applyBenchRun(msg benchRunLoadedMsg) {
	if !m.gens.benchRun.Accept(msg.gen) {
		return
	}
	m.bench.detailLoading = false
	if msg.err != nil {
		m.bench.detailErr = msg.err
		return
	}
	m.bench.detailErr = nil
	m.bench.detail = msg.run
}

func formatScore(v float64, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

func (m Model) renderBench() string {
	if m.bench.inDetail() {
		return m.renderBenchDetail()
	}

	var sb strings.Builder
	b := m.bench

	if b.loading {
		sb.WriteString(m.loadingLine("runs"))
		sb.WriteByte('\n')
	}
	if b.err != nil {
		sb.WriteString(errorLine(b.err))
		sb.WriteByte('\n')
		return sb.String()
	}
	if len(b.runs) == 0 {
		if !b.loading {
			sb.WriteString(placeholder("No benchmark runs yet"))
			sb.WriteByte('\n')
		}
		return sb.String()
	}

	latest := b.runs[0]
	overall, ok := latest.Summary.Overall()
	sb.WriteString(cardRow(m.contentWidth(),
		card("Runs", formatCount(int64(len(b.runs)))),
		card("Latest scenario", latest.ScenarioID),
		card("Provider", latest.Provider+" / "+latest.Model),
		card("Overall", formatScore(overall, ok)),
	))
	sb.WriteString("\n\n")

	if b.summaryErr != nil {
		sb.WriteString(errorLine(b.summaryErr))
		sb.WriteString("\n\n")
	} else {
		if series := aggregate.MetricSeries(b.rows, api.OverallMetric); len(series) > 0 {
			sb.WriteString(" " + sectionTitle("Overall score") + "\n")
			for _, p := range lastN(series, seriesRows) {
				sb.WriteString(fmt.Sprintf("  %-16s %6.2f  %s\n",
					p.Label, p.Value, bar(p.Value, 1, barWidth)))
			}
			sb.WriteByte('\n')
		}
		if types := aggregate.TypeBreakdown(b.rows); len(types) > 0 {
			sb.WriteString(" " + sectionTitle("Latest run by probe type") + "\n")
			for _, t := range types {
				sb.WriteString(fmt.Sprintf("  %-16s %6.2f  %s\n",
					truncate(t.Metric, 16), t.Value, bar(t.Value, 1, barWidth)))
			}
			sb.WriteByte('\n')
		}
	}

	sb.WriteString(dimStyle.Render(fmt.Sprintf("  %-10s %-16s %-20s %-24s %7s",
		"Run", "Started", "Scenario", "Provider / Model", "Overall")))
	sb.WriteByte('\n')

	listH := len(b.runs)
	if m.height > 0 {
		listH = max(m.height-20, 3)
	}
	start, end := window(len(b.runs), b.cursor, listH)
	for i := start; i < end; i++ {
		r := b.runs[i]
		score, ok := r.Summary.Overall()
		row := fmt.Sprintf("  %-10s %-16s %-20s %-24s %7s",
			truncateID(r.ID, 8),
			formatStamp(r.StartedAt),
			truncate(r.ScenarioID, 20),
			truncate(r.Provider+" / "+r.Model, 24),
			formatScore(score, ok),
		)
		if i == b.cursor {
			row = selectedStyle.Render(row)
		}
		sb.WriteString(row + "\n")
	}
	return sb.String()
}

func (m Model) renderBenchDetail() string {
	b := m.bench
	if b.detailErr != nil {
		return errorLine(b.detailErr) + "\n" + dimStyle.Render("  Esc to go back") + "\n"
	}
	if b.detail == nil {
		return m.loadingLine("run") + "\n"
	}

	run := b.detail
	width := m.contentWidth()
	textW := width - 6
	var lines []string

	title := run.Title
	if title == "" {
		title = run.ID
	}
	lines = append(lines, " "+sectionTitle(title))
	lines = append(lines, dimStyle.Render(fmt.Sprintf("  %s  %s / %s  started %s",
		run.ScenarioID, run.Provider, run.Model, formatStamp(run.StartedAt))))
	if run.Notes != nil && *run.Notes != "" {
		lines = append(lines, wrap(*run.Notes, textW)...)
	}
	lines = append(lines, "")

	if len(run.Scores) > 0 {
		names := make([]string, 0, len(run.Scores))
		for k := range run.Scores {
			names = append(names, k)
		}
		sort.Strings(names)
		lines = append(lines, " "+sectionTitle("Scores"))
		for _, n := range names {
			lines = append(lines, fmt.Sprintf("  %-20s %6.2f", truncate(aggregate.MetricLabel(n), 20), run.Scores[n]))
		}
		lines = append(lines, "")
	}

	lines = append(lines, " "+sectionTitle(fmt.Sprintf("Probes (%d)", len(run.Probes))))
	for _, p := range run.Probes {
		lines = append(lines, fmt.Sprintf("  #%d %-12s %-12s %5.2f",
			p.Idx, truncate(p.ProbeID, 12), truncate(p.ProbeType, 12), p.Score))
		lines = append(lines, indent(wrap("Q: "+p.Question, textW), "    "))
		lines = append(lines, indent(wrap("A: "+p.Response, textW), "    "))
	}
	lines = append(lines, "")

	lines = append(lines, " "+sectionTitle(fmt.Sprintf("Turns (%d)", len(run.Turns))))
	for _, t := range run.Turns {
		head := fmt.Sprintf("  #%d %s", t.Idx, t.Role)
		if t.LatencyMS != nil {
			head += dimStyle.Render("  " + formatLatency(*t.LatencyMS))
		}
		lines = append(lines, head)
		lines = append(lines, indent(wrap(t.Content, textW), "    "))
		if t.Response != nil {
			lines = append(lines, indent(wrap("→ "+*t.Response, textW), "    "))
		}
	}

	// indent joins with newlines; flatten before scrolling.
	flat := strings.Split(strings.Join(lines, "\n"), "\n")
	scroll := min(b.scroll, max(len(flat)-1, 0))
	return strings.Join(flat[scroll:], "\n") + "\n"
}
