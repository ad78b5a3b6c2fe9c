package storage

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/chat"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(t.TempDir(), logger, nil)
}

func sampleConversation() *chat.Conversation {
	c := chat.NewConversation()
	c.SystemPrompt = "be terse"
	c.AddMessage(chat.RoleUser, "what is a goroutine?")
	c.AddMessage(chat.RoleAssistant, "a lightweight thread managed by the runtime")
	return c
}

func TestSaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	conv := sampleConversation()

	require.NoError(t, store.Save(conv))

	loaded, err := store.Load(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, loaded.ID)
	assert.Equal(t, conv.Title, loaded.Title)
	assert.Equal(t, "be terse", loaded.SystemPrompt)
	assert.Equal(t, chat.StatusIdle, loaded.Status)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, chat.RoleUser, loaded.Messages[0].Role)
	assert.Equal(t, "what is a goroutine?", loaded.Messages[0].Content)
	assert.WithinDuration(t, conv.Messages[0].Timestamp, loaded.Messages[0].Timestamp, time.Second)
}

func TestSaveSkipsEmptyConversation(t *testing.T) {
	store := newTestStore(t)
	conv := chat.NewConversation()

	require.NoError(t, store.Save(conv))

	_, err := os.Stat(filepath.Join(store.Dir(), conv.ID.String()+".json"))
	assert.True(t, os.IsNotExist(err))
}

func TestSaveIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	conv := sampleConversation()

	require.NoError(t, store.Save(conv))
	conv.AddMessage(chat.RoleUser, "and a channel?")
	require.NoError(t, store.Save(conv))

	loaded, err := store.Load(conv.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Messages, 3)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "resaving overwrites the same file")
}

func TestFileFormat(t *testing.T) {
	store := newTestStore(t)
	conv := sampleConversation()
	require.NoError(t, store.Save(conv))

	data, err := os.ReadFile(filepath.Join(store.Dir(), conv.ID.String()+".json"))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, conv.ID.String(), raw["id"])
	assert.Contains(t, raw, "title")
	assert.Contains(t, raw, "messages")

	msgs := raw["messages"].([]any)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "user", first["role"])
	_, err = time.Parse(time.RFC3339Nano, first["timestamp"].(string))
	assert.NoError(t, err, "timestamps are RFC 3339")
}

func TestLoadAllSortsByLastMessage(t *testing.T) {
	store := newTestStore(t)

	older := chat.NewConversation()
	older.Messages = []chat.Message{{
		Role: chat.RoleUser, Content: "old", Timestamp: time.Now().Add(-time.Hour),
	}}
	newer := chat.NewConversation()
	newer.Messages = []chat.Message{{
		Role: chat.RoleUser, Content: "new", Timestamp: time.Now(),
	}}

	require.NoError(t, store.Save(newer))
	require.NoError(t, store.Save(older))

	convs, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, older.ID, convs[0].ID)
	assert.Equal(t, newer.ID, convs[1].ID)
}

func TestLoadAllSkipsMalformedFiles(t *testing.T) {
	store := newTestStore(t)
	conv := sampleConversation()
	require.NoError(t, store.Save(conv))

	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "broken.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("ignored"), 0o644))

	convs, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, conv.ID, convs[0].ID)
}

func TestLoadAllMissingDir(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := New(filepath.Join(t.TempDir(), "does-not-exist"), logger, nil)

	convs, err := store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, convs)
}
