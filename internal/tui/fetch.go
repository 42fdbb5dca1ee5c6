package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/fa-top/internal/aggregate"
	"github.com/nixlim/fa-top/internal/api"
	"github.com/nixlim/fa-top/internal/state"
)

// Fetch results. Each carries the generation it was issued under.

type historyLoadedMsg struct {
	gen   uint64
	older bool
	resp  *api.HistoryResponse
	err   error
}

type messageSentMsg struct {
	pending state.Pending
	resp    *api.ChatResponse
	err     error
}

type tracesLoadedMsg struct {
	gen  uint64
	resp *api.TracesResponse
	err  error
}

type traceRatedMsg struct {
	traceID string
	resp    *api.RateResponse
	err     error
}

type sessionsLoadedMsg struct {
	gen  uint64
	resp *api.SessionsResponse
	err  error
}

type sessionCreatedMsg struct {
	resp *api.SessionResponse
	err  error
}

type adminMessagesLoadedMsg struct {
	gen  uint64
	resp *api.AdminMessagesResponse
	err  error
}

type messageStatsLoadedMsg struct {
	gen   uint64
	stats *api.MessageStats
	err   error
}

type archivedMsg struct {
	resp *api.ArchiveResponse
	err  error
}

type perfLoadedMsg struct {
	gen   uint64
	stats *api.PerformanceStats
	err   error
}

type analyticsTracesMsg struct {
	gen  uint64
	resp *api.TracesResponse
	err  error
}

type compareTracesMsg struct {
	side      int
	gen       uint64
	sessionID string
	resp      *api.TracesResponse
	err       error
}

type benchRunsLoadedMsg struct {
	gen  uint64
	resp *api.BenchRunsResponse
	err  error
}

type benchSummaryLoadedMsg struct {
	gen  uint64
	resp *api.BenchSummaryResponse
	err  error
}

type benchRunLoadedMsg struct {
	gen uint64
	run *api.BenchRunDetail
	err error
}

func (m *Model) loadChatHistory() tea.Cmd {
	if m.chatAPI == nil {
		return nil
	}
	m.chat.conv.BeginLoad()
	gen := m.gens.chat.Next()
	p, limit := m.chatAPI, m.cfg.Display.HistoryPageSize
	return func() tea.Msg {
		resp, err := p.History(context.Background(), limit, "")
		return historyLoadedMsg{gen: gen, resp: resp, err: err}
	}
}

func (m *Model) loadOlderHistory() tea.Cmd {
	if m.chatAPI == nil {
		return nil
	}
	cursor, ok := m.chat.conv.BeginLoadOlder()
	if !ok {
		return nil
	}
	gen := m.gens.chat.Next()
	p, limit := m.chatAPI, m.cfg.Display.HistoryPageSize
	return func() tea.Msg {
		resp, err := p.History(context.Background(), limit, cursor)
		return historyLoadedMsg{gen: gen, older: true, resp: resp, err: err}
	}
}

func (m *Model) loadTraces() tea.Cmd {
	if m.traceAPI == nil {
		return nil
	}
	m.traces.loading = true
	gen := m.gens.traces.Next()
	p, limit, session := m.traceAPI, m.cfg.Display.TraceLimit, m.traces.sessionID
	return func() tea.Msg {
		resp, err := p.Traces(context.Background(), limit, 0, session)
		return tracesLoadedMsg{gen: gen, resp: resp, err: err}
	}
}

func (m *Model) loadSessions() tea.Cmd {
	if m.sessionAPI == nil {
		return nil
	}
	m.sessions.loading = true
	gen := m.gens.sessions.Next()
	p := m.sessionAPI
	return func() tea.Msg {
		resp, err := p.Sessions(context.Background())
		return sessionsLoadedMsg{gen: gen, resp: resp, err: err}
	}
}

func (m *Model) loadAdminMessages() tea.Cmd {
	if m.messageAPI == nil {
		return nil
	}
	m.history.loading = true
	gen := m.gens.messages.Next()
	p := m.messageAPI
	q := api.AdminMessageQuery{
		Limit:  m.history.pager.Size,
		Offset: m.history.pager.Offset,
		Role:   m.history.role.query(),
		Query:  m.history.search.Value(),
	}
	return func() tea.Msg {
		resp, err := p.AdminMessages(context.Background(), q)
		return adminMessagesLoadedMsg{gen: gen, resp: resp, err: err}
	}
}

func (m *Model) loadMessageStats() tea.Cmd {
	if m.messageAPI == nil {
		return nil
	}
	gen := m.gens.messageStats.Next()
	p := m.messageAPI
	return func() tea.Msg {
		stats, err := p.MessageStats(context.Background())
		return messageStatsLoadedMsg{gen: gen, stats: stats, err: err}
	}
}

func (m *Model) loadPerf() tea.Cmd {
	if m.statsAPI == nil {
		return nil
	}
	m.perf.loading = true
	gen := m.gens.perf.Next()
	p := m.statsAPI
	return func() tea.Msg {
		stats, err := p.PerformanceStats(context.Background())
		return perfLoadedMsg{gen: gen, stats: stats, err: err}
	}
}

func (m *Model) loadAnalyticsTraces() tea.Cmd {
	if m.traceAPI == nil {
		return nil
	}
	m.analytics.loading = true
	gen := m.gens.analytics.Next()
	p, limit := m.traceAPI, m.cfg.Display.AnalyticsTraceLimit
	return func() tea.Msg {
		resp, err := p.Traces(context.Background(), limit, 0, "")
		return analyticsTracesMsg{gen: gen, resp: resp, err: err}
	}
}

func (m *Model) loadCompareSide(side int) tea.Cmd {
	if m.traceAPI == nil {
		return nil
	}
	n := len(m.sessions.list)
	idx, ok := m.compare.sessionAt(n, side)
	if !ok || !aggregate.CanCompare(n) {
		return nil
	}
	sessionID := m.sessions.list[idx].ID
	m.compare.sides[side].loading = true
	gen := m.gens.compare[side].Next()
	p, limit := m.traceAPI, m.cfg.Display.AnalyticsTraceLimit
	return func() tea.Msg {
		resp, err := p.Traces(context.Background(), limit, 0, sessionID)
		return compareTracesMsg{side: side, gen: gen, sessionID: sessionID, resp: resp, err: err}
	}
}

func (m *Model) loadBenchRuns() tea.Cmd {
	if m.benchAPI == nil {
		return nil
	}
	m.bench.loading = true
	gen := m.gens.benchRuns.Next()
	p, limit := m.benchAPI, m.cfg.Display.BenchRunLimit
	return func() tea.Msg {
		resp, err := p.BenchRuns(context.Background(), limit, 0)
		return benchRunsLoadedMsg{gen: gen, resp: resp, err: err}
	}
}

func (m *Model) loadBenchSummary() tea.Cmd {
	if m.benchAPI == nil {
		return nil
	}
	gen := m.gens.benchSummary.Next()
	p := m.benchAPI
	return func() tea.Msg {
		resp, err := p.BenchSummary(context.Background())
		return benchSummaryLoadedMsg{gen: gen, resp: resp, err: err}
	}
}

func (m *Model) loadBenchRun(runID string) tea.Cmd {
	if m.benchAPI == nil {
		return nil
	}
	m.bench.detailLoading = true
	gen := m.gens.benchRun.Next()
	p := m.benchAPI
	return func() tea.Msg {
		run, err := p.BenchRun(context.Background(), runID)
		return benchRunLoadedMsg{gen: gen, run: run, err: err}
	}
}

func (m *Model) createSession(note string) tea.Cmd {
	if m.sessionAPI == nil {
		return nil
	}
	m.setStatus("Starting new session...", false)
	p := m.sessionAPI
	return func() tea.Msg {
		resp, err := p.CreateSession(context.Background(), note)
		return sessionCreatedMsg{resp: resp, err: err}
	}
}

func (m *Model) archive() tea.Cmd {
	if m.messageAPI == nil {
		return nil
	}
	m.setStatus("Archiving messages...", false)
	p := m.messageAPI
	return func() tea.Msg {
		resp, err := p.ArchiveMessages(context.Background())
		return archivedMsg{resp: resp, err: err}
	}
}
