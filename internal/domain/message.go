package domain

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Role identifies the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message length bounds enforced at construction.
const (
	MaxMessageLength = 5000
	MinMessageLength = 1
)

// Message is a single entry in a conversation. Messages are created
// once and never mutated; metadata is fixed at construction.
type Message struct {
	ID        string
	Role      Role
	Content   string
	CreatedAt time.Time
	Metadata  map[string]any
}

// NewMessage constructs a message, enforcing the content bounds.
// Metadata is copied so the caller's map cannot mutate the message.
func NewMessage(role Role, content string, metadata map[string]any) (Message, error) {
	if content == "" {
		return Message{}, NewError(KindValidation, "message content cannot be empty", nil)
	}
	// Character count, not byte count.
	if length := utf8.RuneCountInString(content); length > MaxMessageLength {
		return Message{}, NewError(KindMessageTooLong, "message content exceeds maximum length", map[string]any{
			"length":     length,
			"max_length": MaxMessageLength,
		})
	}

	var meta map[string]any
	if len(metadata) > 0 {
		meta = make(map[string]any, len(metadata))
		for k, v := range metadata {
			meta[k] = v
		}
	}

	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		Metadata:  meta,
	}, nil
}

func NewUserMessage(content string, metadata map[string]any) (Message, error) {
	return NewMessage(RoleUser, content, metadata)
}

func NewAssistantMessage(content string, metadata map[string]any) (Message, error) {
	return NewMessage(RoleAssistant, content, metadata)
}

func NewSystemMessage(content string, metadata map[string]any) (Message, error) {
	return NewMessage(RoleSystem, content, metadata)
}

func (m Message) IsUser() bool      { return m.Role == RoleUser }
func (m Message) IsAssistant() bool { return m.Role == RoleAssistant }
func (m Message) IsSystem() bool    { return m.Role == RoleSystem }
