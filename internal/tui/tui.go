package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/arenvik/mailpilot/internal/auth"
	"github.com/arenvik/mailpilot/internal/chat"
	"github.com/arenvik/mailpilot/internal/models"
	"github.com/arenvik/mailpilot/internal/session"
)

// The TUI is a pure projection of the session store. It never mutates the
// store directly; every write goes through the controller, the gate, or the
// login flow.

type loginDoneMsg struct {
	user *models.User
	err  error
}

type historyLoadedMsg struct{}

type sendDoneMsg struct{}

type Model struct {
	store      *session.Store
	controller *chat.Controller
	gate       *chat.Gate
	loginFlow  *auth.Flow
	logger     *zap.Logger

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	loggingIn    bool
	sending      bool
	showCommands bool
	loginErr     string
	status       string

	// confirmChoice: 0 = confirm, 1 = cancel
	confirmChoice int
}

func New(store *session.Store, controller *chat.Controller, gate *chat.Gate, loginFlow *auth.Flow, logger *zap.Logger) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask me anything about your emails..."
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(80, 20)

	return Model{
		store:      store,
		controller: controller,
		gate:       gate,
		loginFlow:  loginFlow,
		logger:     logger,
		viewport:   vp,
		input:      ti,
		spinner:    sp,
		// First run opens on the commands overlay, like the web welcome
		// screen. Dismissed on the first message.
		showCommands: len(store.Messages()) == 0,
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if m.store.User() != nil && len(m.store.Messages()) == 0 {
		// Persisted state was absent or empty; recover from the backend log.
		cmds = append(cmds, m.loadHistoryCmd())
	}
	return tea.Batch(cmds...)
}

func (m Model) loginCmd() tea.Cmd {
	return func() tea.Msg {
		user, err := m.loginFlow.Run(context.Background())
		return loginDoneMsg{user: user, err: err}
	}
}

func (m Model) loadHistoryCmd() tea.Cmd {
	return func() tea.Msg {
		m.controller.LoadHistory(context.Background())
		return historyLoadedMsg{}
	}
}

func (m Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		m.controller.SendMessage(context.Background(), text)
		return sendDoneMsg{}
	}
}

func (m Model) confirmCmd() tea.Cmd {
	return func() tea.Msg {
		m.gate.Confirm(context.Background())
		return sendDoneMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 5
		if m.viewport.Height < 3 {
			m.viewport.Height = 3
		}
		m.input.Width = msg.Width - 4
		m.ready = true
		m.refreshViewport()
		return m, nil

	case loginDoneMsg:
		m.loggingIn = false
		if msg.err != nil {
			m.logger.Warn("Login failed", zap.Error(msg.err))
			m.loginErr = msg.err.Error()
			return m, nil
		}
		m.loginErr = ""
		m.showCommands = len(m.store.Messages()) == 0
		if len(m.store.Messages()) == 0 {
			return m, m.loadHistoryCmd()
		}
		m.refreshViewport()
		return m, nil

	case historyLoadedMsg:
		m.refreshViewport()
		return m, nil

	case sendDoneMsg:
		m.sending = false
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.store.User() == nil {
		return m.handleLoginKey(msg)
	}

	// Confirmation overlay captures all input while an action is pending.
	if m.gate.Pending() != nil {
		return m.handleConfirmKey(msg)
	}

	if m.showCommands {
		switch msg.String() {
		case "esc", "enter", "q":
			m.showCommands = false
			return m, nil
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "f1":
		m.showCommands = true
		return m, nil
	case "ctrl+l":
		m.controller.Logout()
		m.showCommands = true
		m.refreshViewport()
		return m, nil
	case "up", "down", "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case "enter":
		return m.submitInput()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.loggingIn {
		return m, nil
	}
	switch msg.String() {
	case "enter":
		m.loggingIn = true
		m.loginErr = ""
		return m, m.loginCmd()
	case "q", "esc":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "h", "right", "l", "tab":
		m.confirmChoice = 1 - m.confirmChoice
		return m, nil
	case "y":
		return m.runConfirm()
	case "n", "esc":
		m.gate.Cancel()
		m.confirmChoice = 0
		return m, nil
	case "enter":
		if m.confirmChoice == 0 {
			return m.runConfirm()
		}
		m.gate.Cancel()
		m.confirmChoice = 0
		return m, nil
	}
	return m, nil
}

func (m Model) runConfirm() (tea.Model, tea.Cmd) {
	m.confirmChoice = 0
	m.sending = true
	m.refreshViewport()
	return m, m.confirmCmd()
}

func (m Model) submitInput() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" || m.sending {
		return m, nil
	}
	m.input.SetValue("")
	m.status = ""

	if strings.HasPrefix(strings.TrimSpace(text), "/") {
		return m.handleCommand(strings.TrimSpace(text))
	}

	m.showCommands = false
	m.sending = true
	m.refreshViewport()
	return m, m.sendCmd(text)
}

// handleCommand dispatches the slash commands bound to UI actions. Delete
// and send are the two destructive kinds and go through the gate; everything
// else is local.
func (m Model) handleCommand(cmdline string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(cmdline)
	switch fields[0] {
	case "/help", "/commands":
		m.showCommands = true
	case "/logout":
		m.controller.Logout()
		m.showCommands = true
		m.refreshViewport()
	case "/delete":
		email, err := m.emailByIndex(fields)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.gate.Trigger(models.ActionDelete, email.ID)
		m.confirmChoice = 0
	case "/send":
		m.gate.Trigger(models.ActionSendReply, "")
		m.confirmChoice = 0
	case "/reply":
		if len(fields) < 2 {
			m.status = "Usage: /reply <email number>"
			return m, nil
		}
		m.input.SetValue(fmt.Sprintf("Reply to email #%s", fields[1]))
		m.input.CursorEnd()
	default:
		m.status = "Unknown command. Use /help to see available commands."
	}
	return m, nil
}

// emailByIndex resolves a 1-based index against the most recent email list
// in the transcript.
func (m Model) emailByIndex(fields []string) (models.EmailRecord, error) {
	emails := lastEmails(m.store.Messages())
	if len(emails) == 0 {
		return models.EmailRecord{}, fmt.Errorf("no emails on screen to act on")
	}
	if len(fields) < 2 {
		return models.EmailRecord{}, fmt.Errorf("usage: %s <email number>", fields[0])
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 || n > len(emails) {
		return models.EmailRecord{}, fmt.Errorf("email number must be 1-%d", len(emails))
	}
	return emails[n-1], nil
}

// lastEmails returns the email list of the newest assistant turn that
// carried one.
func lastEmails(msgs []models.Message) []models.EmailRecord {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleAssistant && len(msgs[i].Metadata.Emails) > 0 {
			return msgs[i].Metadata.Emails
		}
	}
	return nil
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}
