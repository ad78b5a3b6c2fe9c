package chat

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"parley/internal/anthropic"
	"parley/internal/metrics"
	"parley/internal/session"
)

// SessionStarter launches one streaming turn and returns its session handle.
// It is nil when no API key is configured.
type SessionStarter interface {
	Start(conversationID uuid.UUID, model, system string, history []anthropic.ChatMessage) *session.Session
}

// Store persists finished conversations.
type Store interface {
	Save(c *Conversation) error
}

// App is the multi-tab state machine. It is not goroutine safe: every method
// must be called from the goroutine that owns it.
type App struct {
	Conversations []*Conversation
	Active        int

	// CurrentModel is the model used for new sessions. PendingModel is a
	// staged override that takes effect on the next submit.
	CurrentModel string
	PendingModel string

	// StatusMsg and ErrorMsg are transient app-level notices, cleared on
	// the next keypress.
	StatusMsg string
	ErrorMsg  string

	// ShowHelp renders the help overlay instead of the conversation.
	ShowHelp bool

	systemPrompt string
	sessions     SessionStarter
	store        Store
	collector    *metrics.Collector
	logger       *slog.Logger
}

// NewApp creates an app with one empty conversation. sessions may be nil,
// in which case submits are rejected with a configuration error. store may
// be nil to disable persistence.
func NewApp(sessions SessionStarter, store Store, collector *metrics.Collector, logger *slog.Logger, model, systemPrompt string) *App {
	return &App{
		Conversations: []*Conversation{NewConversation()},
		CurrentModel:  model,
		systemPrompt:  systemPrompt,
		sessions:      sessions,
		store:         store,
		collector:     collector,
		logger:        logger,
	}
}

// Restore replaces the initial empty conversation with previously saved
// ones. Restored conversations always start idle.
func (a *App) Restore(convs []*Conversation) {
	if len(convs) == 0 {
		return
	}
	for _, c := range convs {
		c.Status = StatusIdle
	}
	a.Conversations = convs
	a.Active = 0
}

// Current returns the active conversation.
func (a *App) Current() *Conversation {
	return a.Conversations[a.Active]
}

func (a *App) find(id uuid.UUID) *Conversation {
	for _, c := range a.Conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Submit handles one submitted input line. Directive lines are interpreted
// locally and never reach the API. For a chat line it appends the user
// message, snapshots the history, appends the empty assistant placeholder
// and starts a session. Returns the started session, or nil when nothing
// was started.
func (a *App) Submit(input string) *session.Session {
	input = strings.TrimSpace(input)
	if d, ok := ParseDirective(input); ok {
		a.applyDirective(d)
		return nil
	}
	if input == "" {
		return nil
	}

	conv := a.Current()
	if conv.Status.Active() {
		a.ErrorMsg = "a reply is already streaming in this tab"
		return nil
	}
	if a.sessions == nil {
		a.ErrorMsg = "no API key configured, set ANTHROPIC_API_KEY"
		return nil
	}

	conv.LastError = ""
	conv.AddMessage(RoleUser, input)
	history := historyFor(conv)
	conv.AddMessage(RoleAssistant, "")
	conv.Status = StatusWaiting

	if a.PendingModel != "" {
		a.CurrentModel = a.PendingModel
		a.PendingModel = ""
	}
	system := conv.SystemPrompt
	if system == "" {
		system = a.systemPrompt
	}
	return a.sessions.Start(conv.ID, a.CurrentModel, system, history)
}

// historyFor snapshots the conversation as request messages. The snapshot
// is taken before the assistant placeholder is appended, so it never
// contains an empty trailing message.
func historyFor(c *Conversation) []anthropic.ChatMessage {
	history := make([]anthropic.ChatMessage, 0, len(c.Messages))
	for _, m := range c.Messages {
		history = append(history, anthropic.ChatMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return history
}

// Apply routes one session event to its conversation. Events addressed to
// a closed conversation are discarded.
func (a *App) Apply(ev session.Event) {
	conv := a.find(ev.ConversationID)
	if conv == nil {
		a.logger.Debug("discarding event for closed conversation",
			slog.String("conversation_id", ev.ConversationID.String()))
		return
	}

	switch ev.Chunk.Kind {
	case anthropic.ChunkText:
		if conv.Status == StatusWaiting {
			conv.Status = StatusStreaming
		}
		if conv.Status != StatusStreaming {
			return
		}
		conv.AppendToLast(ev.Chunk.Text)
	case anthropic.ChunkDone:
		a.finishTurn(conv, "")
	case anthropic.ChunkError:
		a.finishTurn(conv, ev.Chunk.Err)
	}
}

// finishTurn applies the terminal transition: the empty assistant
// placeholder is removed, a partial reply is kept, the failure (if any) is
// retained on the conversation, and the result is persisted.
func (a *App) finishTurn(conv *Conversation, errMsg string) {
	if !conv.Status.Active() {
		return
	}
	conv.Status = StatusDone

	if n := len(conv.Messages); n > 0 {
		last := conv.Messages[n-1]
		if last.Role == RoleAssistant && last.Content == "" {
			conv.Messages = conv.Messages[:n-1]
		}
	}
	if errMsg != "" {
		conv.LastError = errMsg
		a.logger.Warn("turn failed",
			slog.String("conversation_id", conv.ID.String()),
			slog.String("error", errMsg))
	}
	a.save(conv, false)
}

// SaveCurrent persists the active conversation on explicit request.
func (a *App) SaveCurrent() {
	a.save(a.Current(), true)
}

func (a *App) save(conv *Conversation, explicit bool) {
	if a.store == nil || len(conv.Messages) == 0 {
		if explicit {
			a.StatusMsg = "nothing to save"
		}
		return
	}
	if err := a.store.Save(conv); err != nil {
		a.logger.Error("failed to save conversation",
			slog.String("conversation_id", conv.ID.String()),
			slog.String("error", err.Error()))
		a.ErrorMsg = fmt.Sprintf("save failed: %v", err)
		return
	}
	if explicit {
		a.StatusMsg = "conversation saved"
	}
}

// NewTab appends an empty conversation and makes it active.
func (a *App) NewTab() {
	a.Conversations = append(a.Conversations, NewConversation())
	a.Active = len(a.Conversations) - 1
}

// CloseTab removes the active conversation. The last remaining tab cannot
// be closed. A session still running for the closed conversation is left
// to finish on its own; its events are discarded on arrival.
func (a *App) CloseTab() {
	if len(a.Conversations) == 1 {
		return
	}
	i := a.Active
	a.Conversations = append(a.Conversations[:i], a.Conversations[i+1:]...)
	if a.Active >= len(a.Conversations) {
		a.Active = len(a.Conversations) - 1
	}
}

// NextTab moves one tab right, stopping at the last tab.
func (a *App) NextTab() {
	if a.Active < len(a.Conversations)-1 {
		a.Active++
	}
}

// PrevTab moves one tab left, stopping at the first tab.
func (a *App) PrevTab() {
	if a.Active > 0 {
		a.Active--
	}
}

// ClearTransient drops the app-level notices and acknowledges the active
// conversation's retained error. Called on every keypress in normal mode.
func (a *App) ClearTransient() {
	a.StatusMsg = ""
	a.ErrorMsg = ""
	a.Current().LastError = ""
}
