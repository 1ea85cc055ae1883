package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMaxMessages bounds a conversation unless configured otherwise.
const DefaultMaxMessages = 100

// ConversationState describes where a conversation sits in its
// lifecycle: no messages, room for more, or at capacity.
type ConversationState string

const (
	StateEmpty  ConversationState = "empty"
	StateActive ConversationState = "active"
	StateFull   ConversationState = "full"
)

// Conversation is an ordered, bounded sequence of messages. It is not
// internally synchronized: the design assumes one logical writer per
// conversation, with serialization handled by the agent layer.
type Conversation struct {
	ID          string
	Messages    []Message
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UserID      string
	MaxMessages int
}

// NewConversation creates an empty conversation. maxMessages <= 0
// selects the default bound.
func NewConversation(userID string, maxMessages int) *Conversation {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	now := time.Now().UTC()
	return &Conversation{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      userID,
		MaxMessages: maxMessages,
	}
}

// AddMessage appends a message, refreshing the update timestamp.
// A full conversation rejects the append with no state change;
// capacity is reported, never auto-resolved by truncation.
func (c *Conversation) AddMessage(msg Message) error {
	if len(c.Messages) >= c.MaxMessages {
		return NewError(KindConversationFull, "conversation has reached its message limit", map[string]any{
			"current_count": len(c.Messages),
			"max":           c.MaxMessages,
		})
	}
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// AddUserMessage constructs and appends a user message, returning it.
func (c *Conversation) AddUserMessage(content string) (Message, error) {
	msg, err := NewUserMessage(content, nil)
	if err != nil {
		return Message{}, err
	}
	if err := c.AddMessage(msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// AddAssistantMessage constructs and appends an assistant message.
func (c *Conversation) AddAssistantMessage(content string, metadata map[string]any) (Message, error) {
	msg, err := NewAssistantMessage(content, metadata)
	if err != nil {
		return Message{}, err
	}
	if err := c.AddMessage(msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Clear empties the conversation and refreshes the update timestamp.
// It succeeds from any state.
func (c *Conversation) Clear() {
	c.Messages = nil
	c.UpdatedAt = time.Now().UTC()
}

// ContextWindow returns the most recent n messages in order.
func (c *Conversation) ContextWindow(n int) []Message {
	if n <= 0 || n >= len(c.Messages) {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

func (c *Conversation) MessageCount() int { return len(c.Messages) }

// State reports the lifecycle state derived from the message count.
func (c *Conversation) State() ConversationState {
	switch {
	case len(c.Messages) == 0:
		return StateEmpty
	case len(c.Messages) >= c.MaxMessages:
		return StateFull
	default:
		return StateActive
	}
}
