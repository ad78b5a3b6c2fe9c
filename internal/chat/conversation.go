// Package chat owns the conversation data model and the state machine that
// is its only writer. All mutation happens on the UI goroutine; session
// output reaches it exclusively as events.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status is the per-conversation session state for the current turn.
type Status int

const (
	// StatusIdle means no turn has been started yet.
	StatusIdle Status = iota

	// StatusWaiting means a request is in flight and no text has arrived.
	StatusWaiting

	// StatusStreaming means reply text is being appended.
	StatusStreaming

	// StatusDone means the last turn finished (normally or with an error).
	// The conversation accepts the next submit.
	StatusDone
)

// Active reports whether a turn is currently in flight.
func (s Status) Active() bool {
	return s == StatusWaiting || s == StatusStreaming
}

// titleBudget is the character budget for automatically derived titles.
const titleBudget = 30

// Message is one entry of a conversation. Content is mutable only by
// appending, and only while the owning conversation is streaming.
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// Conversation is one independent chat thread (one tab).
type Conversation struct {
	ID           uuid.UUID
	Title        string
	Messages     []Message
	SystemPrompt string

	// Scroll is the index of the first visible message.
	Scroll int

	Status Status

	// LastError is the most recent turn failure, retained until the user
	// acknowledges it while the conversation is active.
	LastError string
}

// NewConversation creates an empty idle conversation.
func NewConversation() *Conversation {
	return &Conversation{
		ID:     uuid.New(),
		Status: StatusIdle,
	}
}

// AddMessage appends a message and derives the title on the first user
// message.
func (c *Conversation) AddMessage(role Role, content string) {
	c.Messages = append(c.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	c.deriveTitle()
}

// AppendToLast appends text to the trailing assistant message. A chunk that
// arrives after the history changed shape (the message was removed) is
// dropped rather than appended to the wrong message.
func (c *Conversation) AppendToLast(text string) {
	n := len(c.Messages)
	if n == 0 || c.Messages[n-1].Role != RoleAssistant {
		return
	}
	c.Messages[n-1].Content += text
}

// deriveTitle sets the title from the first user message, truncated to the
// title budget with an ellipsis marker. Once set it is never recomputed.
func (c *Conversation) deriveTitle() {
	if c.Title != "" {
		return
	}
	for _, m := range c.Messages {
		if m.Role != RoleUser {
			continue
		}
		runes := []rune(m.Content)
		if len(runes) > titleBudget {
			c.Title = string(runes[:titleBudget]) + "..."
		} else {
			c.Title = m.Content
		}
		return
	}
}

// DisplayTitle returns the title or a placeholder for untitled tabs.
func (c *Conversation) DisplayTitle() string {
	if c.Title == "" {
		return "New Chat"
	}
	return c.Title
}

// ScrollUp moves the viewport one message towards the start.
func (c *Conversation) ScrollUp() {
	if c.Scroll > 0 {
		c.Scroll--
	}
}

// ScrollDown moves the viewport one message towards the end.
func (c *Conversation) ScrollDown(maxVisible int) {
	if c.Scroll < c.maxScroll(maxVisible) {
		c.Scroll++
	}
}

// ScrollToTop jumps to the first message.
func (c *Conversation) ScrollToTop() {
	c.Scroll = 0
}

// ScrollToBottom jumps so the last message is visible.
func (c *Conversation) ScrollToBottom(maxVisible int) {
	c.Scroll = c.maxScroll(maxVisible)
}

func (c *Conversation) maxScroll(maxVisible int) int {
	max := len(c.Messages) - maxVisible
	if max < 0 {
		return 0
	}
	return max
}
