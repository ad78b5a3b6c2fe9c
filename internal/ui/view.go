package ui

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"parley/internal/chat"
)

// chromeLines is the screen space taken by the tab bar, the input line and
// the status line.
const chromeLines = 4

// Theme holds the color scheme for the interface.
type Theme struct {
	Accent lipgloss.Color
	User   lipgloss.Color
	Reply  lipgloss.Color
	Error  lipgloss.Color
	Hint   lipgloss.Color
}

var defaultTheme = Theme{
	Accent: lipgloss.Color("#5FAFD7"), // light blue
	User:   lipgloss.Color("#00D787"), // green
	Reply:  lipgloss.Color("#D7D7D7"), // light gray
	Error:  lipgloss.Color("#FF005F"), // red
	Hint:   lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) activeTabStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Accent).Bold(true).Underline(true)
}

func (t Theme) tabStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint)
}

func (t Theme) userStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.User).Bold(true)
}

func (t Theme) replyStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Reply)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// View renders the full screen.
func (m Model) View() tea.View {
	var b strings.Builder

	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	if m.app.ShowHelp {
		b.WriteString(m.renderHelp())
	} else {
		b.WriteString(m.renderMessages())
	}
	b.WriteString("\n")

	b.WriteString(m.renderInput())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())

	// The whole interface lives on the alternate screen so the user's
	// shell scrollback survives a session.
	v := tea.NewView(b.String())
	v.AltScreen = true
	return v
}

func (m Model) renderTabs() string {
	theme := defaultTheme
	parts := make([]string, 0, len(m.app.Conversations))
	for i, conv := range m.app.Conversations {
		label := fmt.Sprintf(" %d:%s ", i+1, conv.DisplayTitle())
		if conv.Status.Active() {
			label = fmt.Sprintf(" %d:%s %s", i+1, conv.DisplayTitle(), m.spin.View())
		}
		if i == m.app.Active {
			parts = append(parts, theme.activeTabStyle().Render(label))
		} else {
			parts = append(parts, theme.tabStyle().Render(label))
		}
	}
	return strings.Join(parts, theme.tabStyle().Render("|"))
}

func (m Model) renderMessages() string {
	theme := defaultTheme
	conv := m.app.Current()
	if len(conv.Messages) == 0 {
		return theme.hintStyle().Render("No messages yet. Press i to start typing.")
	}

	visible := m.visibleMessages()
	start := conv.Scroll
	if start > len(conv.Messages) {
		start = len(conv.Messages)
	}
	end := start + visible
	if end > len(conv.Messages) {
		end = len(conv.Messages)
	}

	wrap := lipgloss.NewStyle().Width(m.width)
	var b strings.Builder
	for i, msg := range conv.Messages[start:end] {
		if i > 0 {
			b.WriteString("\n")
		}
		switch msg.Role {
		case chat.RoleUser:
			b.WriteString(theme.userStyle().Render("You: "))
			b.WriteString(wrap.Render(msg.Content))
		case chat.RoleAssistant:
			b.WriteString(theme.replyStyle().Render("Claude: "))
			if msg.Content == "" && conv.Status == chat.StatusWaiting {
				b.WriteString(theme.hintStyle().Render("thinking " + m.spin.View()))
			} else {
				b.WriteString(wrap.Render(msg.Content))
			}
		}
	}
	return b.String()
}

func (m Model) renderInput() string {
	if m.mode == modeInsert {
		return "[INSERT] " + m.input.View()
	}
	return defaultTheme.hintStyle().Render("[NORMAL] press i to type, ? for help, q to quit")
}

func (m Model) renderStatus() string {
	theme := defaultTheme
	conv := m.app.Current()

	if conv.LastError != "" {
		return theme.errorStyle().Render("error: " + conv.LastError)
	}
	if m.app.ErrorMsg != "" {
		return theme.errorStyle().Render("error: " + m.app.ErrorMsg)
	}
	if m.app.StatusMsg != "" {
		return theme.hintStyle().Render(m.app.StatusMsg)
	}

	state := "ready"
	switch conv.Status {
	case chat.StatusWaiting:
		state = "waiting"
	case chat.StatusStreaming:
		state = "streaming"
	}
	return theme.hintStyle().Render(fmt.Sprintf("%s · %s · tab %d/%d",
		m.app.CurrentModel, state, m.app.Active+1, len(m.app.Conversations)))
}

func (m Model) renderHelp() string {
	theme := defaultTheme
	help := `
  Keys (normal mode)
    i, enter     start typing
    j/k          scroll down/up
    g/G          jump to top/bottom
    ctrl+n       new tab
    ctrl+w       close tab
    ctrl+h/l     previous/next tab
    ctrl+s       save conversation
    ?            this help
    q            quit

  Keys (insert mode)
    enter        send message
    esc          back to normal mode

  Commands
    /model [name]  show or stage the model for the next message
    /save          save the conversation
    /stats         show session statistics
    /help          this help

  Press any key to close.`
	return theme.hintStyle().Render(help)
}
