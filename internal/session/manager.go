// Package session runs one in-flight conversation turn per goroutine and
// forwards its stream chunks over a bounded channel.
//
// Sessions never read or write conversation state. Their only output is the
// event channel; the UI loop is the single consumer and the single writer of
// application state. A full channel blocks the forwarding goroutine, so a
// fast producer is throttled to the consumer's pace instead of buffering
// without bound.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"parley/internal/anthropic"
	"parley/internal/metrics"
)

// eventBuffer is the per-session channel capacity.
const eventBuffer = 32

// sessionDeadline caps one exchange end to end, so a session abandoned by
// closing its tab cannot run forever even if the server keeps the stream
// open.
const sessionDeadline = 10 * time.Minute

// Event is one stream chunk tagged with its owning conversation and a
// session-local sequence number.
type Event struct {
	ConversationID uuid.UUID
	Seq            int
	Chunk          anthropic.Chunk
}

// Session represents one request/response exchange for a single turn.
// Exactly one terminal chunk is delivered, after which the channel closes.
type Session struct {
	conversationID uuid.UUID
	events         chan Event
	seq            int // owned by the forwarding goroutine
}

// ConversationID returns the conversation this session belongs to.
func (s *Session) ConversationID() uuid.UUID {
	return s.conversationID
}

// Events returns the session's output channel.
func (s *Session) Events() <-chan Event {
	return s.events
}

// forward sends one chunk downstream, blocking when the consumer lags.
func (s *Session) forward(chunk anthropic.Chunk) {
	s.events <- Event{
		ConversationID: s.conversationID,
		Seq:            s.seq,
		Chunk:          chunk,
	}
	s.seq++
}

// Manager starts sessions against the Anthropic API.
type Manager struct {
	client    *anthropic.Client
	logger    *slog.Logger
	collector *metrics.Collector
	maxTokens int
}

// NewManager creates a session manager.
func NewManager(client *anthropic.Client, logger *slog.Logger, collector *metrics.Collector, maxTokens int) *Manager {
	return &Manager{
		client:    client,
		logger:    logger,
		collector: collector,
		maxTokens: maxTokens,
	}
}

// Start issues one streaming exchange for the given history snapshot and
// returns immediately. The caller must not mutate the snapshot afterwards.
//
// The session is not tied to the lifetime of its conversation: closing the
// tab abandons the session, which runs to its terminal chunk in the
// background and is then discarded by the consumer.
func (m *Manager) Start(conversationID uuid.UUID, model, system string, history []anthropic.ChatMessage) *Session {
	s := &Session{
		conversationID: conversationID,
		events:         make(chan Event, eventBuffer),
	}

	turn := anthropic.TurnRequest{
		Model:     model,
		MaxTokens: m.maxTokens,
		System:    system,
		Messages:  history,
	}

	m.logger.Info("session started",
		"conversation", conversationID,
		"model", model,
		"history_len", len(history),
	)

	go m.run(s, turn)
	return s
}

// run drives the exchange to its single terminal chunk.
func (m *Manager) run(s *Session, turn anthropic.TurnRequest) {
	defer close(s.events)

	ctx, cancel := context.WithTimeout(context.Background(), sessionDeadline)
	defer cancel()

	start := time.Now()
	var firstToken time.Duration
	var textChunks int64

	err := m.client.Stream(ctx, turn, func(chunk anthropic.Chunk) {
		if chunk.Kind == anthropic.ChunkText {
			if firstToken == 0 {
				firstToken = time.Since(start)
			}
			textChunks++
		}
		s.forward(chunk)
	})
	if err != nil {
		// Stream emitted no terminal chunk: the transport failed or the
		// remote answered with a non-2xx status. Either way the session
		// ends with exactly one Error chunk.
		m.logger.Warn("session failed",
			"conversation", s.conversationID,
			"error", err,
		)
		s.forward(anthropic.Chunk{Kind: anthropic.ChunkError, Err: err.Error()})
	}

	m.collector.RecordStream(time.Since(start), firstToken, textChunks)
	m.logger.Info("session finished",
		"conversation", s.conversationID,
		"duration", time.Since(start),
		"text_chunks", textChunks,
	)
}
