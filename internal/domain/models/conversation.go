package models

import "time"

// Visibility controls whether non-members may read a conversation.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// Valid reports whether v is a known visibility.
func (v Visibility) Valid() bool {
	return v == VisibilityPrivate || v == VisibilityPublic
}

// Conversation belongs to a user first and, optionally, to a business for scoping.
type Conversation struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	BusinessID *string    `json:"business_id,omitempty" db:"business_id"`
	Title      string     `json:"title" db:"title"`
	Visibility Visibility `json:"visibility" db:"visibility"`
	MessageSeq int64      `json:"message_seq" db:"message_seq"` // highest sequence assigned to a message
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// Ref builds the authorization metadata for the conversation.
func (c *Conversation) Ref(accessType string) ResourceRef {
	vis := c.Visibility
	owner := c.UserID
	return ResourceRef{
		Kind:            ResourceConversation,
		ID:              c.ID,
		OwnerBusinessID: c.BusinessID,
		OwnerUserID:     &owner,
		Visibility:      &vis,
		AccessType:      accessType,
	}
}
