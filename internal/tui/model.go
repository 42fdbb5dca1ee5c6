package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/fa-top/internal/api"
	"github.com/nixlim/fa-top/internal/config"
	"github.com/nixlim/fa-top/internal/state"
)

type ViewState int

const (
	ViewChat ViewState = iota
	ViewTraces
	ViewHistory
	ViewAnalytics
	ViewCompare
	ViewBench
)

var viewOrder = []ViewState{ViewChat, ViewTraces, ViewHistory, ViewAnalytics, ViewCompare, ViewBench}

func (v ViewState) String() string {
	switch v {
	case ViewChat:
		return "Chat"
	case ViewTraces:
		return "Traces"
	case ViewHistory:
		return "History"
	case ViewAnalytics:
		return "Analytics"
	case ViewCompare:
		return "Compare"
	case ViewBench:
		return "Bench"
	}
	return "Unknown"
}

type ChatProvider interface {
	SendMessage(ctx context.Context, message string) (*api.ChatResponse, error)
	History(ctx context.Context, limit int, before string) (*api.HistoryResponse, error)
}

type TraceProvider interface {
	Traces(ctx context.Context, limit, offset int, sessionID string) (*api.TracesResponse, error)
	RateTrace(ctx context.Context, traceID string, score int, note string) (*api.RateResponse, error)
}

type SessionProvider interface {
	Sessions(ctx context.Context) (*api.SessionsResponse, error)
	CreateSession(ctx context.Context, note string) (*api.SessionResponse, error)
}

type MessageProvider interface {
	AdminMessages(ctx context.Context, query api.AdminMessageQuery) (*api.AdminMessagesResponse, error)
	MessageStats(ctx context.Context) (*api.MessageStats, error)
	ArchiveMessages(ctx context.Context) (*api.ArchiveResponse, error)
}

type StatsProvider interface {
	PerformanceStats(ctx context.Context) (*api.PerformanceStats, error)
}

type BenchProvider interface {
	BenchRuns(ctx context.Context, limit, offset int) (*api.BenchRunsResponse, error)
	BenchSummary(ctx context.Context) (*api.BenchSummaryResponse, error)
	BenchRun(ctx context.Context, runID string) (*api.BenchRunDetail, error)
}

// Backend is everything the views need. *api.Client implements it.
type Backend interface {
	ChatProvider
	TraceProvider
	SessionProvider
	MessageProvider
	StatsProvider
	BenchProvider
}

// SnapshotRecorder receives the traces fetched for analytics.
type SnapshotRecorder interface {
	Record(source string, traces []api.Trace)
}

type inputMode int

const (
	inputNone inputMode = iota
	inputChat
	inputNote
	inputSearch
	inputSessionNote
)

// generations has one counter per fetch target. Results carrying an older
// number than the latest issued are dropped.
type generations struct {
	chat         state.Generation
	traces       state.Generation
	sessions     state.Generation
	messages     state.Generation
	messageStats state.Generation
	perf         state.Generation
	analytics    state.Generation
	benchRuns    state.Generation
	benchSummary state.Generation
	benchRun     state.Generation
	compare      [2]state.Generation
}

type Model struct {
	view     ViewState
	width    int
	height   int
	keys     KeyMap
	quitting bool

	cfg config.Config
	now time.Time

	chatAPI    ChatProvider
	traceAPI   TraceProvider
	sessionAPI SessionProvider
	messageAPI MessageProvider
	statsAPI   StatsProvider
	benchAPI   BenchProvider

	recorder       SnapshotRecorder
	snapshotSource string

	gens      *generations
	spinner   spinner.Model
	input     textinput.Model
	inputMode inputMode

	status         string
	statusErr      bool
	archiveConfirm bool

	chat      chatState
	traces    traceState
	sessions  sessionsState
	history   historyState
	perf      perfState
	analytics analyticsState
	compare   compareState
	bench     benchState

	refreshRate time.Duration

	onShutdown func()
}

func NewModel(cfg config.Config, opts ...ModelOption) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = dimStyle

	in := textinput.New()
	in.CharLimit = 4000

	m := Model{
		view:        ViewChat,
		keys:        DefaultKeyMap(),
		cfg:         cfg,
		now:         time.Now(),
		gens:        &generations{},
		spinner:     sp,
		input:       in,
		chat:        newChatState(),
		traces:      newTraceState(),
		history:     newHistoryState(cfg.Display),
		compare:     newCompareState(),
		refreshRate: cfg.Display.RefreshInterval(),
	}

	for _, opt := range opts {
		opt(&m)
	}

	return m
}

type ModelOption func(*Model)

// WithBackend sets every provider from one implementation.
func WithBackend(b Backend) ModelOption {
	return func(m *Model) {
		m.chatAPI = b
		m.traceAPI = b
		m.sessionAPI = b
		m.messageAPI = b
		m.statsAPI = b
		m.benchAPI = b
	}
}

func WithChatProvider(p ChatProvider) ModelOption {
	return func(m *Model) { m.chatAPI = p }
}

func WithTraceProvider(p TraceProvider) ModelOption {
	return func(m *Model) { m.traceAPI = p }
}

func WithSessionProvider(p SessionProvider) ModelOption {
	return func(m *Model) { m.sessionAPI = p }
}

func WithMessageProvider(p MessageProvider) ModelOption {
	return func(m *Model) { m.messageAPI = p }
}

func WithStatsProvider(p StatsProvider) ModelOption {
	return func(m *Model) { m.statsAPI = p }
}

func WithBenchProvider(p BenchProvider) ModelOption {
	return func(m *Model) { m.benchAPI = p }
}

// WithSnapshotRecorder saves analytics fetches under source.
func WithSnapshotRecorder(r SnapshotRecorder, source string) ModelOption {
	return func(m *Model) {
		m.recorder = r
		m.snapshotSource = source
	}
}

func WithStartView(v ViewState) ModelOption {
	return func(m *Model) { m.view = v }
}

func WithOnShutdown(fn func()) ModelOption {
	return func(m *Model) { m.onShutdown = fn }
}

type tickMsg time.Time

type enterViewMsg struct {
	view ViewState
}

func (m Model) Init() tea.Cmd {
	view := m.view
	return tea.Batch(
		m.tickCmd(),
		m.spinner.Tick,
		func() tea.Msg { return enterViewMsg{view: view} },
	)
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-6, 10)
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		return m, m.tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case enterViewMsg:
		return m, m.enterView(msg.view)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.handleResult(msg)
}

// handleResult applies the outcome of a background fetch.
func (m Model) handleResult(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		m.applyHistory(msg)
	case messageSentMsg:
		m.applySent(msg)
	case tracesLoadedMsg:
		m.applyTraces(msg)
	case traceRatedMsg:
		m.applyRated(msg)
	case sessionsLoadedMsg:
		return m, m.applySessions(msg)
	case sessionCreatedMsg:
		return m.applySessionCreated(msg)
	case adminMessagesLoadedMsg:
		m.applyAdminMessages(msg)
	case messageStatsLoadedMsg:
		m.applyMessageStats(msg)
	case archivedMsg:
		return m.applyArchived(msg)
	case searchFireMsg:
		return m, m.applySearchFire(msg)
	case perfLoadedMsg:
		m.applyPerf(msg)
	case analyticsTracesMsg:
		m.applyAnalyticsTraces(msg)
	case compareTracesMsg:
		m.applyCompareTraces(msg)
	case benchRunsLoadedMsg:
		m.applyBenchRuns(msg)
	case benchSummaryLoadedMsg:
		m.applyBenchSummary(msg)
	case benchRunLoadedMsg:
		m.applyBenchRun(msg)
	}
	return m, nil
}

// enterView switches to v and starts the fetches it needs.
func (m *Model) enterView(v ViewState) tea.Cmd {
	m.view = v
	switch v {
	case ViewChat:
		if !m.chat.loaded {
			return m.loadChatHistory()
		}
		return nil
	case ViewTraces:
		return tea.Batch(m.loadTraces(), m.loadSessions())
	case ViewHistory:
		return tea.Batch(m.loadAdminMessages(), m.loadMessageStats())
	case ViewAnalytics:
		return tea.Batch(m.loadPerf(), m.loadAnalyticsTraces())
	case ViewCompare:
		return tea.Batch(m.loadPerf(), m.loadSessions())
	case ViewBench:
		if m.bench.detail != nil {
			return nil
		}
		return tea.Batch(m.loadBenchRuns(), m.loadBenchSummary())
	}
	return nil
}

func (m *Model) refreshView() tea.Cmd {
	switch m.view {
	case ViewChat:
		return m.loadChatHistory()
	case ViewBench:
		if m.bench.detail != nil {
			return m.loadBenchRun(m.bench.detail.ID)
		}
	case ViewCompare:
		return tea.Batch(m.loadPerf(), m.loadSessions(), m.loadCompareSide(0), m.loadCompareSide(1))
	}
	return m.enterView(m.view)
}

func (m Model) nextView(step int) ViewState {
	idx := 0
	for i, v := range viewOrder {
		if v == m.view {
			idx = i
			break
		}
	}
	idx = (idx + step + len(viewOrder)) % len(viewOrder)
	return viewOrder[idx]
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.inputMode != inputNone {
		return m.handleInputKey(msg)
	}

	if m.archiveConfirm {
		return m.handleArchiveConfirmKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if m.onShutdown != nil {
			m.onShutdown()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Tab):
		return m, m.enterView(m.nextView(1))

	case key.Matches(msg, m.keys.ShiftTab):
		return m, m.enterView(m.nextView(-1))

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshView()

	case key.Matches(msg, m.keys.NewSession):
		return m, m.startInput(inputSessionNote, "Session note (optional): ", "")

	case key.Matches(msg, m.keys.Archive):
		m.archiveConfirm = true
		return m, nil
	}

	switch m.view {
	case ViewChat:
		return m.handleChatKey(msg)
	case ViewTraces:
		return m.handleTracesKey(msg)
	case ViewHistory:
		return m.handleHistoryKey(msg)
	case ViewAnalytics:
		return m.handleAnalyticsKey(msg)
	case ViewCompare:
		return m.handleCompareKey(msg)
	case ViewBench:
		return m.handleBenchKey(msg)
	}

	return m, nil
}

func (m *Model) startInput(mode inputMode, prompt, value string) tea.Cmd {
	m.inputMode = mode
	m.input.Prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) stopInput() {
	m.inputMode = inputNone
	m.input.Blur()
	m.input.SetValue("")
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		m.quitting = true
		if m.onShutdown != nil {
			m.onShutdown()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Escape):
		m.stopInput()
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		return m.submitInput()
	}

	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if m.inputMode == inputSearch && m.input.Value() != before {
		return m, tea.Batch(cmd, m.pushSearch(m.input.Value()))
	}
	return m, cmd
}

func (m Model) submitInput() (tea.Model, tea.Cmd) {
	value := m.input.Value()
	mode := m.inputMode

	switch mode {
	case inputChat:
		content := strings.TrimSpace(value)
		if content == "" {
			return m, nil
		}
		cmd := m.send(content)
		if cmd == nil {
			return m, nil
		}
		m.input.SetValue("")
		return m, cmd

	case inputNote:
		m.stopInput()
		return m, m.saveNote(value)

	case inputSearch:
		m.stopInput()
		return m, m.pushSearch(value)

	case inputSessionNote:
		m.stopInput()
		return m, m.createSession(strings.TrimSpace(value))
	}

	m.stopInput()
	return m, nil
}

func (m Model) handleArchiveConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.archiveConfirm = false
		return m, m.archive()
	case key.Matches(msg, m.keys.Cancel):
		m.archiveConfirm = false
		return m, nil
	}
	return m, nil
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var body string
	switch m.view {
	case ViewChat:
		body = m.renderChat()
	case ViewTraces:
		body = m.renderTraces()
	case ViewHistory:
		body = m.renderHistory()
	case ViewAnalytics:
		body = m.renderAnalytics()
	case ViewCompare:
		body = m.renderCompare()
	case ViewBench:
		body = m.renderBench()
	}

	output := m.renderHeader() + "\n" + body + m.renderFooter()

	if m.archiveConfirm {
		output = m.overlayArchiveDialog(output)
	}

	if m.height > 0 {
		lines := strings.Split(output, "\n")
		if len(lines) > m.height {
			lines = lines[:m.height]
			output = strings.Join(lines, "\n")
		}
	}

	return output
}
