// Package storage persists conversations as JSON files, one file per
// conversation, named by the conversation id.
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"parley/internal/chat"
	"parley/internal/metrics"
)

// storedConversation is the on-disk format.
type storedConversation struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	SystemPrompt string          `json:"system_prompt,omitempty"`
	Messages     []storedMessage `json:"messages"`
}

type storedMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store reads and writes conversations under a single directory.
type Store struct {
	dir       string
	logger    *slog.Logger
	collector *metrics.Collector
}

// New creates a store rooted at dir. The directory is created on the first
// write, not here, so a read-only configuration can still load.
func New(dir string, logger *slog.Logger, collector *metrics.Collector) *Store {
	return &Store{dir: dir, logger: logger, collector: collector}
}

// Dir returns the conversations directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes one conversation. Empty conversations are skipped so that
// unused tabs never produce files.
func (s *Store) Save(c *chat.Conversation) error {
	start := time.Now()

	if len(c.Messages) == 0 {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create conversations dir: %w", err)
	}

	stored := storedConversation{
		ID:           c.ID.String(),
		Title:        c.Title,
		SystemPrompt: c.SystemPrompt,
		Messages:     make([]storedMessage, 0, len(c.Messages)),
	}
	for _, m := range c.Messages {
		stored.Messages = append(stored.Messages, storedMessage{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	path := s.path(c.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write conversation: %w", err)
	}

	if s.collector != nil {
		s.collector.RecordTiming(metrics.OpStorageSave, time.Since(start))
	}
	s.logger.Debug("conversation saved",
		slog.String("conversation_id", c.ID.String()),
		slog.String("path", path))
	return nil
}

// LoadAll reads every conversation in the store, sorted by the timestamp of
// their last message so the most recent comes last. Malformed files are
// skipped with a warning instead of failing the whole load.
func (s *Store) LoadAll() ([]*chat.Conversation, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read conversations dir: %w", err)
	}

	var convs []*chat.Conversation
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		conv, err := s.loadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable conversation",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		convs = append(convs, conv)
	}

	sort.Slice(convs, func(i, j int) bool {
		return lastTimestamp(convs[i]).Before(lastTimestamp(convs[j]))
	})
	return convs, nil
}

// Load reads a single conversation by id.
func (s *Store) Load(id uuid.UUID) (*chat.Conversation, error) {
	return s.loadFile(s.path(id))
}

func (s *Store) loadFile(path string) (*chat.Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read conversation: %w", err)
	}

	var stored storedConversation
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parse conversation: %w", err)
	}
	id, err := uuid.Parse(stored.ID)
	if err != nil {
		return nil, fmt.Errorf("parse conversation id: %w", err)
	}

	conv := &chat.Conversation{
		ID:           id,
		Title:        stored.Title,
		SystemPrompt: stored.SystemPrompt,
		Status:       chat.StatusIdle,
		Messages:     make([]chat.Message, 0, len(stored.Messages)),
	}
	for _, m := range stored.Messages {
		conv.Messages = append(conv.Messages, chat.Message{
			Role:      chat.Role(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	return conv, nil
}

func (s *Store) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".json")
}

func lastTimestamp(c *chat.Conversation) time.Time {
	if len(c.Messages) == 0 {
		return time.Time{}
	}
	return c.Messages[len(c.Messages)-1].Timestamp
}
