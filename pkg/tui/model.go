package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ilkoid/pi-llama/pkg/chain"
	"github.com/ilkoid/pi-llama/pkg/config"
	"github.com/ilkoid/pi-llama/pkg/conversation"
	"github.com/ilkoid/pi-llama/pkg/events"
	"github.com/ilkoid/pi-llama/pkg/settings"
	"github.com/ilkoid/pi-llama/pkg/transcript"
	"github.com/ilkoid/pi-llama/pkg/utils"
	"github.com/ilkoid/pi-llama/pkg/voice"
)

// Conversation — то, что TUI требует от контроллера диалога.
//
// *conversation.Controller реализует интерфейс; тесты подставляют фейк.
type Conversation interface {
	Send(ctx context.Context, text string) (chain.Result, error)
	Cancel()
	NewConversation() string
	SetMode(mode string) error
	Mode() string
	View() []transcript.Message
	Settings(ctx context.Context) (settings.Settings, error)
	SetAutoPlay(ctx context.Context, on bool) (settings.Settings, error)
	SetVoice(ctx context.Context, v voice.Voice) (settings.Settings, error)
}

var _ Conversation = (*conversation.Controller)(nil)

const welcomeText = "Type a message and press Enter. /help lists commands."

const commandsHelp = "Commands: /new, /mode tools|plain, /voice <name>, /autoplay on|off, /think, /quit"

// sendDoneMsg — Send вернулся.
type sendDoneMsg struct {
	result chain.Result
	err    error
}

// Model — Bubble Tea модель чата.
//
// Транскрипт не дублируется в модели: на каждое событие Append/Patch/Reset
// экран перерисовывается из Conversation.View().
//
// Rule 11: хранит родительский context.Context для распространения отмены.
type Model struct {
	ctx  context.Context
	conv Conversation
	sub  events.Subscriber

	viewport viewport.Model
	input    textarea.Model
	help     help.Model
	status   statusBar
	keys     KeyMap
	scheme   ColorScheme

	title        string
	ready        bool
	showHelp     bool
	showThinking bool
	width        int
	height       int
}

// NewModel создаёт модель. sub может быть nil: тогда экран обновляется
// только по завершении ответа.
func NewModel(ctx context.Context, conv Conversation, sub events.Subscriber, opts ...Option) *Model {
	ta := textarea.New()
	ta.Placeholder = "Ask anything..."
	ta.Prompt = "┃ "
	ta.CharLimit = 4000
	ta.SetHeight(2)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	m := &Model{
		ctx:      ctx,
		conv:     conv,
		sub:      sub,
		viewport: viewport.New(0, 0),
		input:    ta,
		help:     help.New(),
		keys:     DefaultKeyMap(),
		scheme:   DefaultColorScheme(),
		title:    "Pi-Llama",
	}
	for _, opt := range opts {
		opt(m)
	}

	m.status = newStatusBar(m.scheme)
	m.status.mode = conv.Mode()
	if s, err := conv.Settings(ctx); err == nil {
		m.applySettings(s)
	} else {
		utils.Warn("TUI: settings unavailable", "error", err)
	}

	return m
}

// Init реализует tea.Model интерфейс.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.input.Focus(),
		ReceiveEventCmd(m.sub),
	)
}

// Update реализует tea.Model интерфейс.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		m.handleEvent(events.Event(msg))
		return m, ReceiveEventCmd(m.sub)

	case subscriptionClosedMsg:
		return m, nil

	case sendDoneMsg:
		m.status.processing = false
		m.status.activity = ""
		m.finishSend(msg)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.status.processing {
			return m, nil
		}
		var cmd tea.Cmd
		m.status.spinner, cmd = m.status.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.conv.Cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.status.processing {
			m.conv.Cancel()
		}
		return m, nil

	case key.Matches(msg, m.keys.ConfirmInput):
		return m.submit()

	case key.Matches(msg, m.keys.NewConversation):
		m.newConversation()
		return m, nil

	case key.Matches(msg, m.keys.ToggleMode):
		next := config.ModePlain
		if m.conv.Mode() == config.ModePlain {
			next = config.ModeTools
		}
		m.setMode(next)
		return m, nil

	case key.Matches(msg, m.keys.ToggleAutoPlay):
		m.setAutoPlay(!m.status.autoPlay)
		return m, nil

	case key.Matches(msg, m.keys.CycleVoice):
		m.setVoice(nextVoice(voice.Voice(m.status.voice)))
		return m, nil

	case key.Matches(msg, m.keys.ToggleThinking):
		m.showThinking = !m.showThinking
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.HalfPageUp()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.HalfPageDown()
		return m, nil

	case key.Matches(msg, m.keys.ToggleHelp):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		if m.ready {
			m.resize(m.width, m.height)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit отправляет содержимое поля ввода или выполняет /команду.
func (m *Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m, m.runCommand(text)
	}

	if m.status.processing {
		m.status.setNotice("Wait for the current answer or press Esc", false)
		return m, nil
	}

	m.input.Reset()
	m.status.processing = true
	m.status.setNotice("", false)

	ctx, conv := m.ctx, m.conv
	send := func() tea.Msg {
		res, err := conv.Send(ctx, text)
		return sendDoneMsg{result: res, err: err}
	}
	return m, tea.Batch(send, m.status.spinner.Tick)
}

// runCommand выполняет /команду из поля ввода.
func (m *Model) runCommand(line string) tea.Cmd {
	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "/new":
		m.newConversation()
	case "/mode":
		m.setMode(arg)
	case "/voice":
		v, err := voice.ParseVoice(arg)
		if err != nil {
			m.status.setNotice(fmt.Sprintf("Unknown voice %q", arg), true)
			return nil
		}
		m.setVoice(v)
	case "/autoplay":
		switch arg {
		case "on":
			m.setAutoPlay(true)
		case "off":
			m.setAutoPlay(false)
		default:
			m.status.setNotice("Usage: /autoplay on|off", true)
		}
	case "/think":
		m.showThinking = !m.showThinking
		m.refresh()
	case "/help":
		m.status.setNotice(commandsHelp, false)
	case "/quit", "/exit":
		m.conv.Cancel()
		return tea.Quit
	default:
		m.status.setNotice(fmt.Sprintf("Unknown command %s", fields[0]), true)
	}
	return nil
}

func (m *Model) handleEvent(e events.Event) {
	switch data := e.Data.(type) {
	case events.EntryData, events.ResetData:
		m.refresh()
	case events.ToolCallData:
		m.status.activity = "🔧 " + data.ToolName
	case events.ToolResultData:
		m.status.activity = ""
	case events.ErrorData:
		if data.Err != nil && !errors.Is(data.Err, context.Canceled) {
			m.status.setNotice(data.Err.Error(), true)
		}
	case events.DoneData:
		utils.Debug("TUI: answer done", "iterations", data.Iterations, "outcome", data.Outcome)
	}
}

func (m *Model) finishSend(msg sendDoneMsg) {
	switch {
	case errors.Is(msg.err, conversation.ErrBusy):
		m.status.setNotice("Still answering the previous message", true)
	case msg.err != nil:
		m.status.setNotice(msg.err.Error(), true)
	case msg.result.Outcome == chain.OutcomeIterationCap:
		m.status.setNotice("Stopped after too many tool calls", true)
	case msg.result.Outcome == chain.OutcomeCanceled:
		m.status.setNotice("Stopped", false)
	}
}

func (m *Model) newConversation() {
	id := m.conv.NewConversation()
	m.status.processing = false
	m.status.activity = ""
	m.status.setNotice("New conversation", false)
	utils.Info("TUI: new conversation", "session", id)
	m.refresh()
}

func (m *Model) setMode(mode string) {
	if err := m.conv.SetMode(mode); err != nil {
		m.status.setNotice(err.Error(), true)
		return
	}
	m.status.mode = m.conv.Mode()
	m.status.setNotice("Mode: "+m.status.mode, false)
}

func (m *Model) setAutoPlay(on bool) {
	s, err := m.conv.SetAutoPlay(m.ctx, on)
	if err != nil {
		m.status.setNotice(err.Error(), true)
		return
	}
	m.applySettings(s)
}

func (m *Model) setVoice(v voice.Voice) {
	s, err := m.conv.SetVoice(m.ctx, v)
	if err != nil {
		m.status.setNotice(err.Error(), true)
		return
	}
	m.applySettings(s)
	m.status.setNotice("Voice: "+string(v), false)
}

func (m *Model) applySettings(s settings.Settings) {
	m.status.voice = string(s.Voice)
	m.status.autoPlay = s.AutoPlay
}

// nextVoice возвращает голос, следующий за v по кругу.
func nextVoice(v voice.Voice) voice.Voice {
	all := voice.Voices()
	i := slices.Index(all, v)
	return all[(i+1)%len(all)]
}

// refresh перерисовывает транскрипт в viewport.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	msgs := m.conv.View()
	content := lipgloss.NewStyle().Foreground(m.scheme.SystemMessage).Render(welcomeText)
	if len(msgs) > 0 {
		content = RenderTranscript(msgs, RenderOptions{
			Width:        m.viewport.Width,
			Scheme:       m.scheme,
			ShowThinking: m.showThinking,
		})
	}
	setContentSticky(&m.viewport, content)
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height

	vpWidth := max(width, minRenderWidth)
	m.help.Width = vpWidth
	m.input.SetWidth(vpWidth)

	helpHeight := 0
	if m.showHelp {
		helpHeight = lipgloss.Height(m.help.View(m.keys))
	}
	// title + divider + input + status
	chrome := 1 + 1 + m.input.Height() + 1 + helpHeight

	m.viewport.Width = vpWidth
	m.viewport.Height = max(height-chrome, 1)
	m.ready = true
	m.refresh()
}

// View реализует tea.Model интерфейс.
func (m *Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(m.scheme.AIMessage).Render(m.title)
	divider := lipgloss.NewStyle().Foreground(m.scheme.Border).
		Render(strings.Repeat("─", m.viewport.Width))

	parts := []string{title, m.viewport.View(), divider, m.input.View(), m.status.Render(m.viewport.Width)}
	if m.showHelp {
		parts = append(parts, m.help.View(m.keys))
	}
	return strings.Join(parts, "\n")
}
