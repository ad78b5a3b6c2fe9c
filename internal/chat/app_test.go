package chat

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/anthropic"
	"parley/internal/metrics"
	"parley/internal/session"
)

type startCall struct {
	conversationID uuid.UUID
	model          string
	system         string
	history        []anthropic.ChatMessage
}

type fakeStarter struct {
	calls []startCall
}

func (f *fakeStarter) Start(conversationID uuid.UUID, model, system string, history []anthropic.ChatMessage) *session.Session {
	f.calls = append(f.calls, startCall{
		conversationID: conversationID,
		model:          model,
		system:         system,
		history:        history,
	})
	return nil
}

type fakeStore struct {
	saved []*Conversation
	err   error
}

func (f *fakeStore) Save(c *Conversation) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, c)
	return nil
}

func newTestApp(starter SessionStarter, store Store) *App {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewApp(starter, store, metrics.NewCollector(), logger, "claude-sonnet-4-20250514", "")
}

func textEvent(id uuid.UUID, seq int, text string) session.Event {
	return session.Event{
		ConversationID: id,
		Seq:            seq,
		Chunk:          anthropic.Chunk{Kind: anthropic.ChunkText, Text: text},
	}
}

func doneEvent(id uuid.UUID, seq int) session.Event {
	return session.Event{
		ConversationID: id,
		Seq:            seq,
		Chunk:          anthropic.Chunk{Kind: anthropic.ChunkDone},
	}
}

func errorEvent(id uuid.UUID, seq int, msg string) session.Event {
	return session.Event{
		ConversationID: id,
		Seq:            seq,
		Chunk:          anthropic.Chunk{Kind: anthropic.ChunkError, Err: msg},
	}
}

func TestSubmitStartsSession(t *testing.T) {
	starter := &fakeStarter{}
	app := newTestApp(starter, nil)

	app.Submit("Hi")

	require.Len(t, starter.calls, 1)
	call := starter.calls[0]
	assert.Equal(t, app.Current().ID, call.conversationID)
	assert.Equal(t, "claude-sonnet-4-20250514", call.model)

	// The history snapshot ends with the user message, never with the
	// assistant placeholder.
	require.Len(t, call.history, 1)
	assert.Equal(t, "user", call.history[0].Role)
	assert.Equal(t, "Hi", call.history[0].Content)

	conv := app.Current()
	assert.Equal(t, StatusWaiting, conv.Status)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, RoleAssistant, conv.Messages[1].Role)
	assert.Empty(t, conv.Messages[1].Content)
}

func TestSubmitRejectedWhileStreaming(t *testing.T) {
	starter := &fakeStarter{}
	app := newTestApp(starter, nil)

	app.Submit("first")
	app.Submit("second")

	assert.Len(t, starter.calls, 1)
	assert.NotEmpty(t, app.ErrorMsg)
	// The rejected input must not leak into the history.
	require.Len(t, app.Current().Messages, 2)
	assert.Equal(t, "first", app.Current().Messages[0].Content)
}

func TestSubmitWithoutAPIKey(t *testing.T) {
	app := newTestApp(nil, nil)

	s := app.Submit("hello")

	assert.Nil(t, s)
	assert.Contains(t, app.ErrorMsg, "API key")
	assert.Empty(t, app.Current().Messages)
	assert.Equal(t, StatusIdle, app.Current().Status)
}

func TestSubmitIgnoresBlankInput(t *testing.T) {
	starter := &fakeStarter{}
	app := newTestApp(starter, nil)

	app.Submit("   ")

	assert.Empty(t, starter.calls)
	assert.Empty(t, app.Current().Messages)
}

func TestStreamedTurn(t *testing.T) {
	starter := &fakeStarter{}
	store := &fakeStore{}
	app := newTestApp(starter, store)

	app.Submit("Hi")
	id := app.Current().ID

	app.Apply(textEvent(id, 0, "Hello "))
	assert.Equal(t, StatusStreaming, app.Current().Status)

	app.Apply(textEvent(id, 1, "there"))
	app.Apply(doneEvent(id, 2))

	conv := app.Current()
	assert.Equal(t, StatusDone, conv.Status)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "Hello there", conv.Messages[1].Content)
	assert.Empty(t, conv.LastError)

	// Completed turns are persisted.
	require.Len(t, store.saved, 1)
	assert.Equal(t, conv.ID, store.saved[0].ID)
}

func TestErrorRemovesEmptyPlaceholder(t *testing.T) {
	starter := &fakeStarter{}
	app := newTestApp(starter, nil)

	app.Submit("Hi")
	id := app.Current().ID
	app.Apply(errorEvent(id, 0, "rate limited by the API"))

	conv := app.Current()
	assert.Equal(t, StatusDone, conv.Status)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "rate limited by the API", conv.LastError)
}

func TestErrorKeepsPartialReply(t *testing.T) {
	starter := &fakeStarter{}
	app := newTestApp(starter, nil)

	app.Submit("Hi")
	id := app.Current().ID
	app.Apply(textEvent(id, 0, "partial ans"))
	app.Apply(errorEvent(id, 1, "stream error"))

	conv := app.Current()
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, "partial ans", conv.Messages[1].Content)
	assert.Equal(t, "stream error", conv.LastError)
}

func TestEventsForClosedConversationAreDiscarded(t *testing.T) {
	starter := &fakeStarter{}
	app := newTestApp(starter, nil)

	app.Submit("Hi")
	closed := app.Current().ID

	app.NewTab()
	app.Active = 0
	app.CloseTab()

	// Events for the closed tab must not touch the surviving one.
	app.Apply(textEvent(closed, 0, "stray"))
	app.Apply(doneEvent(closed, 1))

	conv := app.Current()
	assert.Empty(t, conv.Messages)
	assert.Equal(t, StatusIdle, conv.Status)
}

func TestCrossTalkIsolation(t *testing.T) {
	starter := &fakeStarter{}
	app := newTestApp(starter, nil)

	app.Submit("first question")
	first := app.Current().ID

	app.NewTab()
	app.Submit("second question")
	second := app.Current().ID

	app.Apply(textEvent(first, 0, "answer one"))
	app.Apply(textEvent(second, 0, "answer two"))
	app.Apply(doneEvent(first, 1))

	require.Len(t, app.Conversations, 2)
	assert.Equal(t, "answer one", app.Conversations[0].Messages[1].Content)
	assert.Equal(t, StatusDone, app.Conversations[0].Status)
	assert.Equal(t, "answer two", app.Conversations[1].Messages[1].Content)
	assert.Equal(t, StatusStreaming, app.Conversations[1].Status)
}

func TestTabNavigation(t *testing.T) {
	app := newTestApp(&fakeStarter{}, nil)

	app.NewTab()
	app.NewTab()
	require.Len(t, app.Conversations, 3)
	assert.Equal(t, 2, app.Active)

	app.NextTab()
	assert.Equal(t, 2, app.Active, "next on the last tab stays put")

	app.PrevTab()
	app.PrevTab()
	app.PrevTab()
	assert.Equal(t, 0, app.Active, "prev on the first tab stays put")
}

func TestCloseFirstOfThreeTabs(t *testing.T) {
	app := newTestApp(&fakeStarter{}, nil)
	app.NewTab()
	app.NewTab()
	formerSecond := app.Conversations[1].ID

	app.Active = 0
	app.CloseTab()

	require.Len(t, app.Conversations, 2)
	assert.Equal(t, 0, app.Active)
	assert.Equal(t, formerSecond, app.Current().ID, "index 0 now refers to the former second tab")
}

func TestCloseTab(t *testing.T) {
	app := newTestApp(&fakeStarter{}, nil)

	app.CloseTab()
	assert.Len(t, app.Conversations, 1, "the last tab cannot be closed")

	app.NewTab()
	app.NewTab()
	app.Active = 2
	app.CloseTab()
	assert.Len(t, app.Conversations, 2)
	assert.Equal(t, 1, app.Active, "active index clamps after closing the last tab")

	app.Active = 0
	app.CloseTab()
	assert.Len(t, app.Conversations, 1)
	assert.Equal(t, 0, app.Active)
}

func TestModelDirective(t *testing.T) {
	starter := &fakeStarter{}
	app := newTestApp(starter, nil)

	s := app.Submit("/model claude-opus-4-1")
	assert.Nil(t, s)
	assert.Empty(t, starter.calls, "directives never reach the API")
	assert.Equal(t, "claude-opus-4-1", app.PendingModel)
	assert.Equal(t, "claude-sonnet-4-20250514", app.CurrentModel, "override is staged, not applied")

	// The override takes effect on the next submit.
	app.Submit("Hi")
	require.Len(t, starter.calls, 1)
	assert.Equal(t, "claude-opus-4-1", starter.calls[0].model)
	assert.Equal(t, "claude-opus-4-1", app.CurrentModel)
	assert.Empty(t, app.PendingModel)
}

func TestModelDirectiveWithoutArg(t *testing.T) {
	app := newTestApp(&fakeStarter{}, nil)

	app.Submit("/model")
	assert.Contains(t, app.StatusMsg, "claude-sonnet-4-20250514")
}

func TestUnknownDirective(t *testing.T) {
	starter := &fakeStarter{}
	app := newTestApp(starter, nil)

	app.Submit("/frobnicate now")

	assert.Empty(t, starter.calls)
	assert.Contains(t, app.ErrorMsg, "/frobnicate")
	assert.Empty(t, app.Current().Messages)
}

func TestHelpDirective(t *testing.T) {
	app := newTestApp(&fakeStarter{}, nil)

	app.Submit("/help")
	assert.True(t, app.ShowHelp)
}

func TestStatsDirective(t *testing.T) {
	app := newTestApp(&fakeStarter{}, nil)

	app.Submit("/stats")
	assert.Equal(t, "no turns yet", app.StatusMsg)
}

func TestSaveDirectiveEmptyConversation(t *testing.T) {
	store := &fakeStore{}
	app := newTestApp(&fakeStarter{}, store)

	app.Submit("/save")

	assert.Empty(t, store.saved)
	assert.Equal(t, "nothing to save", app.StatusMsg)
}

func TestSaveFailureSurfacesError(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	app := newTestApp(&fakeStarter{}, store)

	app.Submit("Hi")
	app.SaveCurrent()

	assert.Contains(t, app.ErrorMsg, "disk full")
}

func TestClearTransient(t *testing.T) {
	app := newTestApp(&fakeStarter{}, nil)
	app.StatusMsg = "saved"
	app.ErrorMsg = "boom"
	app.Current().LastError = "rate limited"

	app.ClearTransient()

	assert.Empty(t, app.StatusMsg)
	assert.Empty(t, app.ErrorMsg)
	assert.Empty(t, app.Current().LastError)
}

func TestTitleDerivation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"short", "Hi", "Hi"},
		{"exact budget", strings.Repeat("a", 30), strings.Repeat("a", 30)},
		{"truncated", strings.Repeat("a", 40), strings.Repeat("a", 30) + "..."},
		{"multibyte", strings.Repeat("ü", 40), strings.Repeat("ü", 30) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConversation()
			c.AddMessage(RoleUser, tt.input)
			assert.Equal(t, tt.want, c.Title)
		})
	}
}

func TestTitleIsSetOnce(t *testing.T) {
	c := NewConversation()
	c.AddMessage(RoleUser, "first")
	c.AddMessage(RoleAssistant, "reply")
	c.AddMessage(RoleUser, "second")
	assert.Equal(t, "first", c.Title)
}

func TestScrollClamping(t *testing.T) {
	c := NewConversation()
	for i := 0; i < 5; i++ {
		c.AddMessage(RoleUser, "m")
	}

	c.ScrollUp()
	assert.Equal(t, 0, c.Scroll)

	c.ScrollToBottom(3)
	assert.Equal(t, 2, c.Scroll)

	c.ScrollDown(3)
	assert.Equal(t, 2, c.Scroll)

	c.ScrollToTop()
	assert.Equal(t, 0, c.Scroll)

	// Fewer messages than the viewport never scrolls.
	c.ScrollToBottom(10)
	assert.Equal(t, 0, c.Scroll)
}
