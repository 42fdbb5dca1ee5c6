package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/fa-top/internal/aggregate"
	"github.com/nixlim/fa-top/internal/api"
	"github.com/nixlim/fa-top/internal/config"
	"github.com/nixlim/fa-top/internal/state"
)

type roleFilter int

const (
	roleAll roleFilter = iota
	roleUser
	roleAssistant
)

func (r roleFilter) String() string {
	switch r {
	case roleUser:
		return "user"
	case roleAssistant:
		return "assistant"
	}
	return "all"
}

// query is the role parameter sent to the backend; empty means any.
func (r roleFilter) query() string {
	if r == roleAll {
		return ""
	}
	return r.String()
}

func (r roleFilter) next() roleFilter {
	return (r + 1) % 3
}

type historyState struct {
	list    []api.AdminMessage
	loading bool
	err     error

	stats    *api.MessageStats
	statsErr error

	pager      state.Pager
	role       roleFilter
	search     *state.Debouncer
	searchText string

	cursor   int
	expanded bool
}

func newHistoryState(d config.DisplayConfig) historyState {
	return historyState{
		pager:  state.NewPager(d.PageSize),
		search: state.NewDebouncer(d.SearchDebounce()),
	}
}

type searchFireMsg struct {
	seq uint64
}

func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.history.cursor > 0 {
			m.history.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.history.cursor < len(m.history.list)-1 {
			m.history.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		m.history.expanded = !m.history.expanded
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.history.expanded = false
		return m, nil

	case key.Matches(msg, m.keys.RoleFilter):
		m.history.role = m.history.role.next()
		m.resetHistoryPage()
		return m, m.loadAdminMessages()

	case key.Matches(msg, m.keys.Search):
		return m, m.startInput(inputSearch, "Search: ", m.history.searchText)

	case key.Matches(msg, m.keys.NextPage):
		if m.history.pager.Next() {
			m.history.cursor = 0
			m.history.expanded = false
			return m, m.loadAdminMessages()
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevPage):
		if m.history.pager.Prev() {
			m.history.cursor = 0
			m.history.expanded = false
			return m, m.loadAdminMessages()
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) resetHistoryPage() {
	m.history.pager.Reset()
	m.history.cursor = 0
	m.history.expanded = false
}

// pushSearch records the latest search text and schedules its debounce
// timer.
func (m *Model) pushSearch(text string) tea.Cmd {
	m.history.searchText = text
	seq := m.history.search.Push(text)
	return tea.Tick(m.history.search.Delay, func(time.Time) tea.Msg {
		return searchFireMsg{seq: seq}
	})
}

func (m *Model) applySearchFire(msg searchFireMsg) tea.Cmd {
	if _, ok := m.history.search.Fire(msg.seq); !ok {
		return nil
	}
	m.resetHistoryPage()
	return m.loadAdminMessages()
}

func (m *Model) applyAdminMessages(msg adminMessagesLoadedMsg) {
	if !m.gens.messages.Accept(msg.gen) {
		return
	}
	m.history.loading = false
	if msg.err != nil {
		m.history.err = msg.err
		return
	}
	m.history.err = nil
	m.history.list = msg.resp.Messages
	m.history.pager.Total = msg.resp.Total
	if m.history.cursor >= len(m.history.list) {
		m.history.cursor = max(len(m.history.list)-1, 0)
	}
}

func (m *Model) applyMessageStats(msg messageStatsLoadedMsg) {
	if !m.gens.messageStats.Accept(msg.gen) {
		return
	}
	if msg.err != nil {
		m.history.statsErr = msg.err
		return
	}
	m.history.statsErr = nil
	m.history.stats = msg.stats
}

func (m *Model) applyArchived(msg archivedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.setStatus(msg.err.Error(), true)
		return *m, nil
	}
	m.setStatus(fmt.Sprintf("Archived %s messages", formatCount(int64(msg.resp.ArchivedCount))), false)

	// The transcript and message list no longer hold the archived rows.
	m.chat.loaded = false
	m.resetHistoryPage()
	cmds := []tea.Cmd{m.loadMessageStats(), m.loadAdminMessages()}
	if m.view == ViewChat {
		cmds = append(cmds, m.loadChatHistory())
	}
	return *m, tea.Batch(cmds...)
}

func (m *Model) applySessionCreated(msg sessionCreatedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.setStatus(msg.err.Error(), true)
		return *m, nil
	}
	text := "New session " + truncateID(msg.resp.SessionID, 8) + " started"
	if ended := msg.resp.EndedSession; ended != nil {
		text += fmt.Sprintf(" (previous: %d messages)", ended.MessageCount)
	}
	m.setStatus(text, false)

	m.chat.conv = state.NewConversation()
	m.chat.loaded = false
	cmds := []tea.Cmd{m.loadSessions()}
	if m.view == ViewChat {
		cmds = append(cmds, m.loadChatHistory())
	}
	return *m, tea.Batch(cmds...)
}

func (m Model) renderMessageStats() string {
	hs := m.history
	if hs.statsErr != nil {
		return errorLine(hs.statsErr)
	}
	if hs.stats == nil {
		return m.loadingLine("stats")
	}
	s := hs.stats
	return cardRow(m.contentWidth(),
		card("Total", formatCount(int64(s.TotalMessages))),
		card("User", formatCount(int64(s.UserMessages))),
		card("Assistant", formatCount(int64(s.AssistantMessages))),
		card("Today", formatCount(int64(s.MessagesToday))),
		card("First", formatStamp(s.FirstMessageAt)),
		card("Last", formatStamp(s.LastMessageAt)),
	)
}

func (m Model) renderHistory() string {
	var sb strings.Builder
	hs := m.history
	width := m.contentWidth()

	sb.WriteString(m.renderMessageStats())
	sb.WriteByte('\n')

	filter := " " + sectionTitle("Role: ") + hs.role.String()
	if hs.searchText != "" {
		filter += "   " + sectionTitle("Search: ") + fmt.Sprintf("%q", hs.searchText)
	}
	sb.WriteString(filter + "\n\n")

	if hs.loading {
		sb.WriteString(m.loadingLine("messages"))
		sb.WriteByte('\n')
	}
	if hs.err != nil {
		sb.WriteString(errorLine(hs.err))
		sb.WriteByte('\n')
		return sb.String()
	}
	if len(hs.list) == 0 {
		if !hs.loading {
			sb.WriteString(placeholder("No messages"))
			sb.WriteByte('\n')
		}
		return sb.String()
	}

	var selected *api.AdminMessage
	idx := 0
	for _, g := range aggregate.GroupByDay(hs.list) {
		sb.WriteString(" " + sectionTitle(g.Day) + "\n")
		for _, msg := range g.Messages {
			row := fmt.Sprintf("  [%s] %-9s %s",
				formatClock(msg.Timestamp), msg.Role,
				aggregate.Preview(strings.ReplaceAll(msg.Content, "\n", " "), previewLen))
			row = truncate(row, width-1)
			if idx == hs.cursor {
				row = selectedStyle.Render(row)
				sel := msg
				selected = &sel
			}
			sb.WriteString(row + "\n")
			idx++
		}
	}

	if hs.expanded && selected != nil {
		sb.WriteByte('\n')
		head := " " + sectionTitle("Message "+selected.ID)
		if selected.SessionID != nil {
			head += dimStyle.Render("  session " + truncateID(*selected.SessionID, 8))
		}
		sb.WriteString(head + "\n")
		sb.WriteString(indent(wrap(selected.Content, width-6), "    ") + "\n")
	}

	if hs.pager.Visible() {
		prev, next := dimStyle.Render("‹ prev"), dimStyle.Render("next ›")
		if hs.pager.HasPrev() {
			prev = "‹ prev"
		}
		if hs.pager.HasNext() {
			next = "next ›"
		}
		sb.WriteString("\n  " + prev + "   " + hs.pager.Range() + "   " + next + "\n")
	}

	return sb.String()
}
