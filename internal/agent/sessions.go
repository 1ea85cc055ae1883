// Package agent orchestrates the chat and news use cases on top of the
// validator, the provider, the search client and the storage layers.
package agent

import (
	"context"
	"log/slog"
	"sync"

	"briefbot/internal/domain"
	"briefbot/internal/metrics"
)

// session pairs a conversation with the lock that serializes writes to
// it. The conversation type itself is not synchronized.
type session struct {
	mu   sync.Mutex
	conv *domain.Conversation
}

// Conversations manages in-memory conversation sessions keyed by an
// arbitrary caller-chosen key. When a history store is attached, every
// conversation and message is mirrored to it.
type Conversations struct {
	mu          sync.Mutex
	sessions    map[string]*session
	maxMessages int
	history     domain.HistoryStore // nil = history disabled
	logger      *slog.Logger
}

func NewConversations(maxMessages int, history domain.HistoryStore, logger *slog.Logger) *Conversations {
	return &Conversations{
		sessions:    make(map[string]*session),
		maxMessages: maxMessages,
		history:     history,
		logger:      logger,
	}
}

// getOrCreate returns the session for a key. On first use it restores
// the key's most recent persisted conversation, or creates a fresh one.
func (c *Conversations) getOrCreate(ctx context.Context, key string) *session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.sessions[key]; ok {
		return s
	}

	conv := c.rehydrate(ctx, key)
	if conv == nil {
		conv = domain.NewConversation(key, c.maxMessages)
		if c.history != nil {
			if err := c.history.CreateConversation(ctx, conv); err != nil {
				c.logger.Warn("cannot persist conversation", "conversation_id", conv.ID, "err", err)
			}
		}
	}

	s := &session{conv: conv}
	c.sessions[key] = s
	metrics.ActiveConversations.Set(int64(len(c.sessions)))
	return s
}

// rehydrate loads the key's latest persisted conversation and its
// messages. Any failure falls back to a fresh conversation.
func (c *Conversations) rehydrate(ctx context.Context, key string) *domain.Conversation {
	if c.history == nil {
		return nil
	}
	conv, err := c.history.LatestConversation(ctx, key)
	if err != nil {
		c.logger.Warn("cannot load conversation history", "user_id", key, "err", err)
		return nil
	}
	if conv == nil {
		return nil
	}
	if conv.MaxMessages <= 0 {
		conv.MaxMessages = domain.DefaultMaxMessages
	}

	msgs, err := c.history.GetMessages(ctx, conv.ID, conv.MaxMessages)
	if err != nil {
		c.logger.Warn("cannot load message history", "conversation_id", conv.ID, "err", err)
		return nil
	}
	conv.Messages = msgs

	if err := c.history.TouchConversation(ctx, conv.ID); err != nil {
		c.logger.Warn("cannot touch conversation", "conversation_id", conv.ID, "err", err)
	}
	c.logger.Info("conversation restored", "conversation_id", conv.ID, "messages", len(msgs))
	return conv
}

// Get returns the conversation for a key, or nil if none exists yet.
func (c *Conversations) Get(key string) *domain.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[key]; ok {
		return s.conv
	}
	return nil
}

// Clear empties the conversation for a key. Clearing an unknown key is
// a no-op.
func (c *Conversations) Clear(ctx context.Context, key string) {
	c.mu.Lock()
	s, ok := c.sessions[key]
	c.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv.Clear()

	if c.history != nil {
		// Drop the messages, then re-insert the conversation row so the
		// live conversation keeps a valid home for future appends.
		if err := c.history.DeleteConversation(ctx, s.conv.ID); err != nil {
			c.logger.Warn("cannot clear persisted conversation", "conversation_id", s.conv.ID, "err", err)
		}
		if err := c.history.CreateConversation(ctx, s.conv); err != nil {
			c.logger.Warn("cannot persist conversation", "conversation_id", s.conv.ID, "err", err)
		}
	}
}

// Remove drops the session entirely.
func (c *Conversations) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, key)
	metrics.ActiveConversations.Set(int64(len(c.sessions)))
}

// recordMessage mirrors an accepted message to the history store.
func (c *Conversations) recordMessage(ctx context.Context, convID string, msg domain.Message) {
	if c.history == nil {
		return
	}
	if err := c.history.AddMessage(ctx, convID, msg); err != nil {
		c.logger.Warn("cannot persist message", "conversation_id", convID, "err", err)
	}
}
