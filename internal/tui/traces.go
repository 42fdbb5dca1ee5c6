package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/fa-top/internal/api"
	"github.com/nixlim/fa-top/internal/state"
)

type traceState struct {
	list     []api.Trace
	loading  bool
	err      error
	cursor   int
	expanded bool
	ratings  map[string]*state.Rating

	sessionID string
}

func newTraceState() traceState {
	return traceState{ratings: make(map[string]*state.Rating)}
}

type sessionsState struct {
	list    []api.Session
	loading bool
	err     error
}

func (t traceState) selected() (api.Trace, bool) {
	if t.cursor < 0 || t.cursor >= len(t.list) {
		return api.Trace{}, false
	}
	return t.list[t.cursor], true
}

func (m Model) handleTracesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.traces.cursor > 0 {
			m.traces.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.traces.cursor < len(m.traces.list)-1 {
			m.traces.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		m.traces.expanded = !m.traces.expanded
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.traces.expanded = false
		return m, nil

	case key.Matches(msg, m.keys.Session):
		m.traces.sessionID = nextSessionID(m.sessions.list, m.traces.sessionID)
		m.traces.cursor = 0
		m.traces.expanded = false
		return m, m.loadTraces()

	case key.Matches(msg, m.keys.Note):
		t, ok := m.traces.selected()
		if !ok {
			return m, nil
		}
		r := m.rating(t)
		if !r.Rated() {
			m.setStatus("Rate the trace before adding a note", true)
			return m, nil
		}
		return m, m.startInput(inputNote, "Note: ", r.Note)
	}

	if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
		if r := msg.Runes[0]; r >= '1' && r <= '5' {
			return m, m.rate(int(r - '0'))
		}
	}

	return m, nil
}

// nextSessionID cycles the filter: all sessions, then each session in
// list order, then back to all.
func nextSessionID(sessions []api.Session, current string) string {
	if len(sessions) == 0 {
		return ""
	}
	if current == "" {
		return sessions[0].ID
	}
	for i, s := range sessions {
		if s.ID == current {
			if i+1 < len(sessions) {
				return sessions[i+1].ID
			}
			return ""
		}
	}
	return ""
}

func (m *Model) rating(t api.Trace) *state.Rating {
	r, ok := m.traces.ratings[t.ID]
	if !ok {
		nr := state.NewRating(t)
		r = &nr
		m.traces.ratings[t.ID] = r
	}
	return r
}

func (m *Model) rate(score int) tea.Cmd {
	t, ok := m.traces.selected()
	if !ok || m.traceAPI == nil {
		return nil
	}
	r := m.rating(t)
	if !r.Rate(score) {
		return nil
	}
	return m.rateCmd(r)
}

func (m *Model) saveNote(note string) tea.Cmd {
	t, ok := m.traces.selected()
	if !ok || m.traceAPI == nil {
		return nil
	}
	r := m.rating(t)
	prev := r.Note
	r.Note = strings.TrimSpace(note)
	r.ShowNote = r.Note != ""
	if !r.SaveNote() {
		r.Note = prev
		r.ShowNote = prev != ""
		return nil
	}
	return m.rateCmd(r)
}

func (m *Model) rateCmd(r *state.Rating) tea.Cmd {
	p, id, score, note := m.traceAPI, r.TraceID, r.Score, r.Note
	return func() tea.Msg {
		resp, err := p.RateTrace(context.Background(), id, score, note)
		return traceRatedMsg{traceID: id, resp: resp, err: err}
	}
}

func (m *Model) applyRated(msg traceRatedMsg) {
	if r, ok := m.traces.ratings[msg.traceID]; ok {
		r.Done(msg.err)
	}
	if msg.err != nil || msg.resp == nil {
		return
	}
	for i := range m.traces.list {
		if m.traces.list[i].ID == msg.traceID {
			score := msg.resp.Score
			m.traces.list[i].RatingScore = &score
			m.traces.list[i].RatingNote = msg.resp.Note
		}
	}
}

func (m *Model) applyTraces(msg tracesLoadedMsg) {
	if !m.gens.traces.Accept(msg.gen) {
		return
	}
	m.traces.loading = false
	if msg.err != nil {
		m.traces.err = msg.err
		return
	}
	m.traces.err = nil
	m.traces.list = msg.resp.Traces

	ratings := make(map[string]*state.Rating, len(m.traces.list))
	for _, t := range m.traces.list {
		if r, ok := m.traces.ratings[t.ID]; ok && r.Saving {
			ratings[t.ID] = r
			continue
		}
		nr := state.NewRating(t)
		ratings[t.ID] = &nr
	}
	m.traces.ratings = ratings

	if m.traces.cursor >= len(m.traces.list) {
		m.traces.cursor = max(len(m.traces.list)-1, 0)
	}
}

// applySessions stores the session list. The session comparison reloads
// both sides since the list it indexes into has changed.
func (m *Model) applySessions(msg sessionsLoadedMsg) tea.Cmd {
	if !m.gens.sessions.Accept(msg.gen) {
		return nil
	}
	m.sessions.loading = false
	if msg.err != nil {
		m.sessions.err = msg.err
		return nil
	}
	m.sessions.err = nil
	m.sessions.list = msg.resp.Sessions
	m.compare.clampSessions(len(m.sessions.list))
	if m.view == ViewCompare && m.compare.mode == compareSessions {
		return tea.Batch(m.loadCompareSide(0), m.loadCompareSide(1))
	}
	return nil
}

func (m Model) sessionLabel(id string) string {
	if id == "" {
		return "All sessions"
	}
	for _, s := range m.sessions.list {
		if s.ID == id {
			return s.Label()
		}
	}
	return truncateID(id, 8)
}

func (m Model) renderTraces() string {
	var sb strings.Builder
	width := m.contentWidth()

	sb.WriteString(" " + sectionTitle("Session: ") + m.sessionLabel(m.traces.sessionID))
	if m.sessions.err != nil {
		sb.WriteString("  " + errorStyle.Render(m.sessions.err.Error()))
	}
	sb.WriteString("\n\n")

	if m.traces.loading {
		sb.WriteString(m.loadingLine("traces"))
		sb.WriteByte('\n')
	}
	if m.traces.err != nil {
		sb.WriteString(errorLine(m.traces.err))
		sb.WriteByte('\n')
		return sb.String()
	}
	if len(m.traces.list) == 0 {
		if !m.traces.loading {
			sb.WriteString(placeholder("No traces yet"))
			sb.WriteByte('\n')
		}
		return sb.String()
	}

	sb.WriteString(dimStyle.Render(fmt.Sprintf("  %-16s %-28s %9s %9s %9s  %s",
		"Time", "Provider / Model", "Latency", "Prompt", "Compl.", "Rating")))
	sb.WriteByte('\n')

	listH := m.height - 8
	if m.traces.expanded {
		listH = 5
	}
	if m.height == 0 {
		listH = len(m.traces.list)
	}
	start, end := window(len(m.traces.list), m.traces.cursor, listH)
	for i := start; i < end; i++ {
		t := m.traces.list[i]
		r := m.traces.ratings[t.ID]
		score := 0
		if r != nil {
			score = r.Score
		}
		row := fmt.Sprintf("  %-16s %-28s %9s %9s %9s  ",
			formatStamp(t.Timestamp),
			truncate(t.Provider+" / "+t.Model, 28),
			formatLatency(t.LatencyMS),
			formatOptionalTokens(t.PromptTokens),
			formatOptionalTokens(t.CompletionTokens),
		)
		if i == m.traces.cursor {
			row = selectedStyle.Render(stripAnsi(row))
		}
		sb.WriteString(row + stars(score))
		if r != nil && r.Saving {
			sb.WriteString(" " + m.spinner.View())
		}
		sb.WriteByte('\n')
	}

	if t, ok := m.traces.selected(); ok {
		if r := m.traces.ratings[t.ID]; r != nil && r.Err != nil {
			sb.WriteString(errorLine(r.Err))
			sb.WriteByte('\n')
		}
		if m.traces.expanded {
			sb.WriteByte('\n')
			sb.WriteString(m.renderTraceDetail(t, width))
		}
	}

	return sb.String()
}

// renderTraceDetail shows the layers that made up the model's input,
// then its output.
func (m Model) renderTraceDetail(t api.Trace, width int) string {
	var sb strings.Builder
	textW := width - 6

	sb.WriteString(" " + sectionTitle("Trace "+t.ID))
	if t.SessionID != nil {
		sb.WriteString(dimStyle.Render("  session " + truncateID(*t.SessionID, 8)))
	}
	sb.WriteByte('\n')

	if t.SystemPrompt != nil && *t.SystemPrompt != "" {
		sb.WriteString("  " + sectionTitle("System prompt") + "\n")
		sb.WriteString(indent(wrap(*t.SystemPrompt, textW), "    ") + "\n")
	}

	sb.WriteString("  " + sectionTitle(fmt.Sprintf("Context (%d messages)", len(t.ContextMessages))) + "\n")
	for _, cm := range t.ContextMessages {
		sb.WriteString("    " + dimStyle.Render(cm.Role+":") + " " + truncate(cm.Content, textW-len(cm.Role)-2) + "\n")
	}

	if t.TriggerMessage != nil {
		sb.WriteString("  " + sectionTitle("Trigger") + "\n")
		sb.WriteString(indent(wrap(t.TriggerMessage.Content, textW), "    ") + "\n")
	}

	sb.WriteString("  " + sectionTitle("Response") + "\n")
	sb.WriteString(indent(wrap(t.ResponseOut, textW), "    ") + "\n")

	if r := m.traces.ratings[t.ID]; r != nil && r.ShowNote {
		sb.WriteString("  " + sectionTitle("Note") + "\n")
		sb.WriteString(indent(wrap(r.Note, textW), "    ") + "\n")
	}

	return sb.String()
}
