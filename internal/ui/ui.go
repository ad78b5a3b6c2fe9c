// Package ui implements the terminal interface. The bubbletea runtime is
// the single consumer of session events: each running session gets a
// listen command that delivers one event and re-arms itself, so every
// state mutation happens inside Update.
package ui

import (
	"fmt"
	"log/slog"

	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"parley/internal/chat"
	"parley/internal/session"
)

type mode int

const (
	modeNormal mode = iota
	modeInsert
)

// sessionEventMsg carries one session event plus the session handle so the
// listen command can be re-armed.
type sessionEventMsg struct {
	session *session.Session
	event   session.Event
}

// sessionClosedMsg signals that a session's event channel was drained.
type sessionClosedMsg struct{}

// Model is the bubbletea model for the chat interface.
type Model struct {
	app    *chat.App
	input  textinput.Model
	spin   spinner.Model
	mode   mode
	width  int
	height int
	logger *slog.Logger
}

// New creates the interface model around an app.
func New(app *chat.App, logger *slog.Logger) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message, or /help"
	ti.Prompt = "> "

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		app:    app,
		input:  ti,
		spin:   sp,
		mode:   modeNormal,
		width:  80,
		height: 24,
		logger: logger,
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

// listen waits for the next event of a session. It delivers exactly one
// event per invocation, preserving per-session order, and is re-armed by
// Update after each delivery.
func listen(s *session.Session) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-s.Events()
		if !ok {
			return sessionClosedMsg{}
		}
		return sessionEventMsg{session: s, event: ev}
	}
}

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.SetWidth(msg.Width - 4)
		return m, nil

	case sessionEventMsg:
		m.app.Apply(msg.event)
		if msg.event.ConversationID == m.app.Current().ID {
			m.app.Current().ScrollToBottom(m.visibleMessages())
		}
		return m, listen(msg.session)

	case sessionClosedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}

	if m.mode == modeInsert {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// Any key dismisses the help overlay.
	if m.app.ShowHelp {
		m.app.ShowHelp = false
		return m, nil
	}

	if m.mode == modeInsert {
		return m.handleInsertKey(msg)
	}
	return m.handleNormalKey(msg)
}

func (m Model) handleNormalKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	// A keypress acknowledges whatever notice is on screen.
	m.app.ClearTransient()

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "i", "enter":
		m.mode = modeInsert
		return m, m.input.Focus()
	case "?":
		m.app.ShowHelp = true
	case "j", "down":
		m.app.Current().ScrollDown(m.visibleMessages())
	case "k", "up":
		m.app.Current().ScrollUp()
	case "g":
		m.app.Current().ScrollToTop()
	case "G":
		m.app.Current().ScrollToBottom(m.visibleMessages())
	case "ctrl+n":
		m.app.NewTab()
	case "ctrl+w":
		m.app.CloseTab()
	case "ctrl+h", "left":
		m.app.PrevTab()
	case "ctrl+l", "right", "tab":
		m.app.NextTab()
	case "ctrl+s":
		m.app.SaveCurrent()
	}
	return m, nil
}

func (m Model) handleInsertKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		m.input.Blur()
		return m, nil
	case "enter":
		value := m.input.Value()
		m.input.SetValue("")
		m.app.ClearTransient()
		if s := m.app.Submit(value); s != nil {
			m.app.Current().ScrollToBottom(m.visibleMessages())
			return m, listen(s)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// visibleMessages is the number of messages that fit between the tab bar
// and the input/status lines.
func (m Model) visibleMessages() int {
	v := m.height - chromeLines
	if v < 1 {
		return 1
	}
	return v
}

// Run starts the interface and blocks until the user quits.
func Run(app *chat.App, logger *slog.Logger) error {
	p := tea.NewProgram(New(app, logger))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run interface: %w", err)
	}
	return nil
}
