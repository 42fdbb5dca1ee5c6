package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/fa-top/internal/api"
	"github.com/nixlim/fa-top/internal/state"
)

type chatState struct {
	conv   *state.Conversation
	loaded bool
	// scroll counts lines up from the bottom of the transcript.
	scroll int
}

func newChatState() chatState {
	return chatState{conv: state.NewConversation()}
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Compose), key.Matches(msg, m.keys.Enter):
		return m, m.startInput(inputChat, "> ", "")

	case key.Matches(msg, m.keys.LoadOlder):
		return m, m.loadOlderHistory()

	case key.Matches(msg, m.keys.Up):
		m.chat.scroll++
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.chat.scroll > 0 {
			m.chat.scroll--
		}
		return m, nil
	}
	return m, nil
}

// send starts the optimistic send of content. It returns nil when
// nothing was sent.
func (m *Model) send(content string) tea.Cmd {
	if m.chatAPI == nil {
		return nil
	}
	pending, err := m.chat.conv.Begin(content, time.Now())
	if err != nil {
		if errors.Is(err, state.ErrSendInFlight) {
			m.setStatus("Still waiting for the previous reply", true)
		}
		return nil
	}
	m.chat.scroll = 0
	p := m.chatAPI
	return func() tea.Msg {
		resp, err := p.SendMessage(context.Background(), pending.Content)
		return messageSentMsg{pending: pending, resp: resp, err: err}
	}
}

func (m *Model) applySent(msg messageSentMsg) {
	if msg.err != nil {
		m.chat.conv.Rollback(msg.pending, msg.err)
		return
	}
	m.chat.conv.Confirm(msg.pending, msg.resp)
	m.chat.scroll = 0
}

func (m *Model) applyHistory(msg historyLoadedMsg) {
	if !m.gens.chat.Accept(msg.gen) {
		return
	}
	m.chat.loaded = true
	switch {
	case msg.err != nil:
		m.chat.conv.FailLoad(msg.err)
	case msg.older:
		m.chat.conv.PrependOlder(msg.resp)
	default:
		m.chat.conv.SetHistory(msg.resp)
		m.chat.scroll = 0
	}
}

func (m Model) chatLines(width int) []string {
	var lines []string
	for _, msg := range m.chat.conv.Messages {
		pending := strings.HasPrefix(msg.ID, state.TempIDPrefix)

		who := assistantStyle.Render("Assistant")
		if msg.Role == api.RoleUser {
			who = userStyle.Render("You")
		}
		head := dimStyle.Render("["+formatClock(msg.Timestamp)+"]") + " " + who
		if pending {
			head += " " + pendingStyle.Render("(sending...)")
		}
		lines = append(lines, head)

		body := wrap(msg.Content, width-4)
		for _, l := range body {
			if pending {
				l = pendingStyle.Render(l)
			}
			lines = append(lines, "    "+l)
		}
		lines = append(lines, "")
	}
	return lines
}

func (m Model) renderChat() string {
	var sb strings.Builder
	conv := m.chat.conv
	width := m.contentWidth()

	if conv.HasMore() {
		sb.WriteString(dimStyle.Render("  o: load older messages"))
		sb.WriteByte('\n')
	}
	if conv.Loading() {
		sb.WriteString(m.loadingLine("history"))
		sb.WriteByte('\n')
	}

	lines := m.chatLines(width)
	if len(lines) == 0 && !conv.Loading() && conv.Err == nil {
		sb.WriteString(placeholder("No messages yet. Press i to start typing."))
		sb.WriteByte('\n')
	}

	visibleH := m.height - 6
	if m.height == 0 {
		visibleH = len(lines)
	}
	if visibleH < 1 {
		visibleH = 1
	}
	scroll := min(m.chat.scroll, max(len(lines)-visibleH, 0))
	end := len(lines) - scroll
	start := max(end-visibleH, 0)
	for _, l := range lines[start:end] {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}

	if conv.Sending() {
		sb.WriteString("  " + m.spinner.View() + dimStyle.Render(" Waiting for reply..."))
		sb.WriteByte('\n')
	}
	if conv.Err != nil {
		sb.WriteString(errorLine(conv.Err))
		sb.WriteByte('\n')
	}

	return sb.String()
}
