// Package db provides SurrealDB query functions for the conversation
// archive.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"parley/internal/chat"
	"parley/internal/metrics"
)

// ArchivedMessage is one message as stored in the archive.
type ArchivedMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ArchivedConversation is one conversation record in the archive.
type ArchivedConversation struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	SystemPrompt *string           `json:"system_prompt"`
	Messages     []ArchivedMessage `json:"messages"`
	MessageCount int               `json:"message_count"`
	ArchivedAt   time.Time         `json:"archived_at"`
}

// ConversationSummary is the list/search projection of an archived
// conversation, without the message bodies.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	ArchivedAt   time.Time `json:"archived_at"`
}

// PushConversation upserts a conversation into the archive, keyed by the
// conversation id so repeated pushes overwrite the previous snapshot.
func (c *Client) PushConversation(ctx context.Context, conv *chat.Conversation) error {
	start := time.Now()

	messages := make([]ArchivedMessage, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		messages = append(messages, ArchivedMessage{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}

	vars := map[string]any{
		"id":       conv.ID.String(),
		"title":    conv.DisplayTitle(),
		"messages": messages,
		"count":    len(messages),
	}
	var system *string
	if conv.SystemPrompt != "" {
		system = &conv.SystemPrompt
	}
	vars["system_prompt"] = system

	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("conversation", $id) SET
			title = $title,
			system_prompt = $system_prompt,
			messages = $messages,
			message_count = $count,
			archived_at = time::now()
	`, vars)
	if err != nil {
		return fmt.Errorf("push conversation: %w", wrapQueryError(err))
	}

	if c.collector != nil {
		c.collector.RecordTiming(metrics.OpArchivePush, time.Since(start))
	}
	return nil
}

// ListConversations returns archive summaries, most recently archived
// first.
func (c *Client) ListConversations(ctx context.Context, limit int) ([]ConversationSummary, error) {
	results, err := surrealdb.Query[[]ConversationSummary](ctx, c.db, `
		SELECT record::id(id) AS id, title, message_count, archived_at
		FROM conversation
		ORDER BY archived_at DESC
		LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", wrapQueryError(err))
	}

	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return []ConversationSummary{}, nil
}

// SearchConversations runs a full-text search over archived titles.
func (c *Client) SearchConversations(ctx context.Context, query string, limit int) ([]ConversationSummary, error) {
	results, err := surrealdb.Query[[]ConversationSummary](ctx, c.db, `
		SELECT record::id(id) AS id, title, message_count, archived_at
		FROM conversation
		WHERE title @0@ $q
		LIMIT $limit
	`, map[string]any{"q": query, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("search conversations: %w", wrapQueryError(err))
	}

	if results != nil && len(*results) > 0 {
		return (*results)[0].Result, nil
	}
	return []ConversationSummary{}, nil
}

// GetConversation retrieves one archived conversation by id.
func (c *Client) GetConversation(ctx context.Context, id string) (*ArchivedConversation, error) {
	results, err := surrealdb.Query[[]ArchivedConversation](ctx, c.db, `
		SELECT record::id(id) AS id, title, system_prompt, messages, message_count, archived_at
		FROM type::record("conversation", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}
