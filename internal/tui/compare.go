package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/fa-top/internal/aggregate"
)

type compareMode int

const (
	compareProviders compareMode = iota
	compareSessions
)

type compareSide struct {
	sessionID string
	summary   aggregate.SessionSummary
	loaded    bool
	loading   bool
	err       error
}

type compareState struct {
	mode     compareMode
	focus    int
	provider [2]int
	session  [2]int
	sides    [2]compareSide
}

func defaultPair() [2]int { return [2]int{0, 1} }

func newCompareState() compareState {
	return compareState{provider: defaultPair(), session: defaultPair()}
}

func (c compareState) sessionAt(n int, side int) (int, bool) {
	idx := c.session[side]
	return idx, idx >= 0 && idx < n
}

func (c *compareState) clampSessions(n int) {
	clampPair(&c.session, n)
}

func (c *compareState) clampProviders(n int) {
	clampPair(&c.provider, n)
}

func clampPair(p *[2]int, n int) {
	if n < aggregate.MinCompared {
		*p = defaultPair()
		return
	}
	for i := range p {
		if p[i] >= n {
			p[i] = n - 1
		}
		if p[i] < 0 {
			p[i] = 0
		}
	}
}

func cycle(idx, step, n int) int {
	if n == 0 {
		return 0
	}
	return (idx + step + n) % n
}

func (m Model) handleCompareKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Mode):
		if m.compare.mode == compareProviders {
			m.compare.mode = compareSessions
			return m, tea.Batch(m.loadCompareSide(0), m.loadCompareSide(1))
		}
		m.compare.mode = compareProviders
		return m, nil

	case key.Matches(msg, m.keys.Left):
		m.compare.focus = 0
		return m, nil

	case key.Matches(msg, m.keys.Right):
		m.compare.focus = 1
		return m, nil

	case key.Matches(msg, m.keys.Up):
		return m, m.stepCompare(-1)

	case key.Matches(msg, m.keys.Down):
		return m, m.stepCompare(1)
	}
	return m, nil
}

// stepCompare moves the focused side to the previous or next candidate.
func (m *Model) stepCompare(step int) tea.Cmd {
	side := m.compare.focus
	if m.compare.mode == compareProviders {
		n := len(aggregate.ProviderNames(m.perf.stats))
		m.compare.provider[side] = cycle(m.compare.provider[side], step, n)
		return nil
	}
	n := len(m.sessions.list)
	if !aggregate.CanCompare(n) {
		return nil
	}
	m.compare.session[side] = cycle(m.compare.session[side], step, n)
	return m.loadCompareSide(side)
}

func (m *Model) applyCompareTraces(msg compareTracesMsg) {
	if !m.gens.compare[msg.side].Accept(msg.gen) {
		return
	}
	side := &m.compare.sides[msg.side]
	side.loading = false
	side.sessionID = msg.sessionID
	if msg.err != nil {
		side.err = msg.err
		return
	}
	side.err = nil
	side.loaded = true
	side.summary = aggregate.SummarizeSession(msg.resp.Traces)
}

func (m Model) renderCompare() string {
	var sb strings.Builder
	mode := "Providers"
	if m.compare.mode == compareSessions {
		mode = "Sessions"
	}
	sb.WriteString(" " + sectionTitle("Compare: ") + mode + dimStyle.Render("  (m to switch)") + "\n\n")

	if m.compare.mode == compareProviders {
		sb.WriteString(m.renderProviderCompare())
	} else {
		sb.WriteString(m.renderSessionCompare())
	}
	return sb.String()
}

func (m Model) compareColumn(side int, title string, lines []string) string {
	style := panelBorderStyle.Width(max(m.contentWidth()/2-4, 20))
	if side == m.compare.focus {
		style = style.BorderForeground(lipgloss.Color("63"))
	}
	return style.Render(sectionTitle(title) + "\n" + strings.Join(lines, "\n"))
}

func (m Model) renderProviderCompare() string {
	if m.perf.err != nil {
		return errorLine(m.perf.err) + "\n"
	}
	if m.perf.stats == nil && m.perf.loading {
		return m.loadingLine("stats") + "\n"
	}

	names := aggregate.ProviderNames(m.perf.stats)
	if !aggregate.CanCompare(len(names)) {
		return placeholder("Not enough data: at least 2 providers are needed to compare") + "\n"
	}

	var cols []string
	for side := range 2 {
		name := names[m.compare.provider[side]]
		ps := m.perf.stats.ByProvider[name]
		cols = append(cols, m.compareColumn(side, name, []string{
			fmt.Sprintf("Calls:        %s", formatCount(int64(ps.Calls))),
			fmt.Sprintf("Avg latency:  %s", formatLatency(ps.AvgLatencyMS)),
			fmt.Sprintf("Avg rating:   %s", formatRating(ps.AvgRating)),
		}))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...) + "\n"
}

func (m Model) renderSessionCompare() string {
	if m.sessions.err != nil {
		return errorLine(m.sessions.err) + "\n"
	}
	if len(m.sessions.list) == 0 && m.sessions.loading {
		return m.loadingLine("sessions") + "\n"
	}
	if !aggregate.CanCompare(len(m.sessions.list)) {
		return placeholder("Not enough data: at least 2 sessions are needed to compare") + "\n"
	}

	var cols []string
	for side := range 2 {
		idx, _ := m.compare.sessionAt(len(m.sessions.list), side)
		sess := m.sessions.list[idx]
		s := m.compare.sides[side]

		var lines []string
		switch {
		case s.loading:
			lines = []string{m.spinner.View() + dimStyle.Render(" Loading traces...")}
		case s.err != nil:
			lines = []string{errorStyle.Render(s.err.Error())}
		case !s.loaded:
			lines = []string{dimStyle.Render("No data yet")}
		case s.summary.Traces == 0:
			lines = []string{dimStyle.Render("Not enough data: no traces in this session")}
		default:
			rating := "-"
			if s.summary.HasRating() {
				rating = fmt.Sprintf("%.2f (%d rated)", s.summary.AvgRating, s.summary.Rated)
			}
			lines = []string{
				fmt.Sprintf("Traces:       %d", s.summary.Traces),
				fmt.Sprintf("Avg latency:  %s", formatLatency(s.summary.AvgLatencyMS)),
				fmt.Sprintf("Avg rating:   %s", rating),
				dimStyle.Render(fmt.Sprintf("%s / %s", sess.ConfigSnapshot.Provider, sess.ConfigSnapshot.Model)),
			}
		}
		cols = append(cols, m.compareColumn(side, sess.Label(), lines))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...) + "\n"
}
