package models

import "time"

// MessageRole is the author role of a message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// Valid reports whether r is a known message role.
func (r MessageRole) Valid() bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant, MessageRoleSystem:
		return true
	}
	return false
}

// Message always belongs to exactly one conversation.
// Sequence increases monotonically within the conversation.
type Message struct {
	ID             string      `json:"id" db:"id"`
	ConversationID string      `json:"conversation_id" db:"conversation_id"`
	SenderID       *string     `json:"sender_id,omitempty" db:"sender_id"`
	Role           MessageRole `json:"role" db:"role"`
	Content        string      `json:"content" db:"content"`
	Upvotes        int         `json:"upvotes" db:"upvotes"`
	Downvotes      int         `json:"downvotes" db:"downvotes"`
	Sequence       int64       `json:"sequence" db:"sequence"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}

// VoteDirection is an up or down vote on a message.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)
