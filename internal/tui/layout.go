package tui

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nixlim/fa-top/internal/api"
)

const (
	minWidth = 40

	previewLen = 120
	barWidth   = 30
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("62"))

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Background(lipgloss.Color("15"))

	panelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")).
				Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("69"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("82"))

	assistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("69"))

	pendingStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("82"))

	starStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("69"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			MarginRight(1)

	confirmDialogStyle = lipgloss.NewStyle().
				Border(lipgloss.DoubleBorder()).
				BorderForeground(lipgloss.Color("196")).
				Padding(1, 3).
				Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripAnsi(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func (m Model) contentWidth() int {
	w := m.width
	if w < minWidth {
		w = minWidth
	}
	return w
}

func (m Model) renderHeader() string {
	title := " fa-top "
	var tabs []string
	for _, v := range viewOrder {
		label := " " + v.String() + " "
		if v == m.view {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	left := headerStyle.Render(title) + strings.Join(tabs, "")

	help := m.headerHelp()
	padding := m.width - lipgloss.Width(left) - lipgloss.Width(help)
	if padding < 1 {
		padding = 1
	}
	return left + headerStyle.Render(strings.Repeat(" ", padding)+help)
}

func (m Model) headerHelp() string {
	if m.inputMode != inputNone {
		return "Enter:Submit  Esc:Cancel "
	}
	switch m.view {
	case ViewChat:
		return "i:Compose  o:Older  r:Reload  N:New session  Tab:Next  q:Quit "
	case ViewTraces:
		return "1-5:Rate  n:Note  s:Session  Enter:Expand  Tab:Next  q:Quit "
	case ViewHistory:
		return "f:Role  /:Search  [ ]:Page  Enter:Expand  A:Archive  q:Quit "
	case ViewAnalytics:
		return "r:Refresh  Tab:Next  q:Quit "
	case ViewCompare:
		return "m:Mode  ←/→ ↑/↓:Pick  r:Refresh  q:Quit "
	case ViewBench:
		if m.bench.inDetail() {
			return "Esc:Back  ↑/↓:Scroll  r:Refresh  q:Quit "
		}
		return "Enter:Detail  r:Refresh  Tab:Next  q:Quit "
	}
	return "q:Quit "
}

func (m Model) renderFooter() string {
	var sb strings.Builder
	if m.inputMode != inputNone {
		sb.WriteByte('\n')
		sb.WriteString(m.input.View())
	}
	if m.status != "" {
		sb.WriteByte('\n')
		if m.statusErr {
			sb.WriteString(errorStyle.Render(" " + m.status))
		} else {
			sb.WriteString(statusBarStyle.Render(" " + m.status))
		}
	}
	return sb.String()
}

func (m Model) overlayArchiveDialog(base string) string {
	dialog := confirmDialogStyle.Render(
		"Archive all messages?\n\n" +
			"They leave chat history and the message browser.\n\n" +
			"[Y] Archive  [n/Esc] Cancel")
	return placeOverlay(dialog, base)
}

func placeOverlay(fg, bg string) string {
	return lipgloss.Place(
		lipgloss.Width(bg),
		lipgloss.Height(bg),
		lipgloss.Center,
		lipgloss.Center,
		fg,
		lipgloss.WithWhitespaceChars(" "),
	)
}

func sectionTitle(s string) string {
	return panelTitleStyle.Render(s)
}

func errorLine(err error) string {
	return errorStyle.Render("  " + err.Error())
}

func (m Model) loadingLine(what string) string {
	return "  " + m.spinner.View() + dimStyle.Render(" Loading "+what+"...")
}

func placeholder(s string) string {
	return dimStyle.Render("  " + s)
}

func card(title, value string) string {
	return cardStyle.Render(dimStyle.Render(title) + "\n" + lipgloss.NewStyle().Bold(true).Render(value))
}

// cardRow lays cards out left to right, wrapping to the next row when
// the width runs out.
func cardRow(width int, cards ...string) string {
	var rows []string
	var row []string
	rowW := 0
	for _, c := range cards {
		cw := lipgloss.Width(c)
		if rowW > 0 && rowW+cw > width {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row, rowW = nil, 0
		}
		row = append(row, c)
		rowW += cw
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// bar renders value against maxValue as a horizontal bar of up to width
// cells.
func bar(value, maxValue float64, width int) string {
	if maxValue <= 0 || value <= 0 {
		return ""
	}
	n := int(math.Round(value / maxValue * float64(width)))
	if n < 1 {
		n = 1
	}
	if n > width {
		n = width
	}
	return barStyle.Render(strings.Repeat("█", n))
}

func stars(score int) string {
	if score <= 0 {
		return dimStyle.Render("☆☆☆☆☆")
	}
	return starStyle.Render(strings.Repeat("★", score)) + dimStyle.Render(strings.Repeat("☆", 5-score))
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func truncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}

func formatLatency(ms float64) string {
	if ms >= 1000 {
		return fmt.Sprintf("%.2fs", ms/1000)
	}
	return fmt.Sprintf("%.0fms", ms)
}

func formatCount(n int64) string {
	return humanize.Comma(n)
}

func formatOptionalTokens(n *int64) string {
	if n == nil {
		return "-"
	}
	return humanize.Comma(*n)
}

func formatRating(r *float64) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *r)
}

func formatClock(t api.Timestamp) string {
	if t.IsZero() {
		return "--:--"
	}
	return t.Local().Format("15:04")
}

func formatStamp(t api.Timestamp) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// wrap breaks s into lines of at most width runes, preferring spaces.
func wrap(s string, width int) []string {
	if width < 10 {
		width = 10
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		r := []rune(line)
		for len(r) > width {
			cut := width
			for i := width; i > 0; i-- {
				if r[i] == ' ' {
					cut = i
					break
				}
			}
			out = append(out, string(r[:cut]))
			r = r[cut:]
			if len(r) > 0 && r[0] == ' ' {
				r = r[1:]
			}
		}
		out = append(out, string(r))
	}
	return out
}

func indent(lines []string, prefix string) string {
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// window returns the [start, end) range of n rows that keeps cursor
// visible in height rows.
func window(n, cursor, height int) (int, int) {
	if height < 1 {
		height = 1
	}
	start := 0
	if cursor >= height {
		start = cursor - height + 1
	}
	end := start + height
	if end > n {
		end = n
	}
	return start, end
}
