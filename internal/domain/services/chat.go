package services

import (
	"context"
	"time"

	"tenantchat/internal/domain/models"
)

// ConversationService manages conversations
type ConversationService interface {
	CreateConversation(ctx context.Context, principal models.Principal, req *CreateConversationRequest) (*models.Conversation, error)
	GetConversation(ctx context.Context, principal models.Principal, id string) (*models.Conversation, error)
	ListMyConversations(ctx context.Context, principal models.Principal) ([]models.Conversation, error)
	ListBusinessConversations(ctx context.Context, principal models.Principal, businessID string) ([]models.Conversation, error)
	UpdateConversation(ctx context.Context, principal models.Principal, id string, req *UpdateConversationRequest) (*models.Conversation, error)
	DeleteConversation(ctx context.Context, principal models.Principal, id string) error
}

// MessageService manages messages within conversations
type MessageService interface {
	SaveMessages(ctx context.Context, principal models.Principal, conversationID string, req *SaveMessagesRequest) ([]models.Message, error)
	GetMessage(ctx context.Context, principal models.Principal, id string) (*models.Message, error)
	ListMessages(ctx context.Context, principal models.Principal, conversationID string) ([]models.Message, error)
	Vote(ctx context.Context, principal models.Principal, messageID string, direction models.VoteDirection) (*models.Message, error)

	// DeleteMessagesAfter is the edit/regenerate path. It authorizes a write on the
	// conversation before deleting anything and never crosses conversations.
	DeleteMessagesAfter(ctx context.Context, principal models.Principal, conversationID string, req *DeleteMessagesAfterRequest) (int64, error)
}

// CreateConversationRequest is the payload for starting a conversation
type CreateConversationRequest struct {
	BusinessID *string           `json:"business_id"`
	Title      string            `json:"title"`
	Visibility models.Visibility `json:"visibility"`
}

// UpdateConversationRequest carries a partial update
type UpdateConversationRequest struct {
	Title      *string            `json:"title"`
	Visibility *models.Visibility `json:"visibility"`
}

// NewMessage is one message to append
type NewMessage struct {
	Role    models.MessageRole `json:"role"`
	Content string             `json:"content"`
}

// SaveMessagesRequest appends messages in order
type SaveMessagesRequest struct {
	Messages []NewMessage `json:"messages"`
}

// DeleteMessagesAfterRequest bounds a regenerate delete.
// UpToSequence is the last message sequence the caller observed; messages written
// after it survive. Nil means "whatever is current when the lock is taken".
type DeleteMessagesAfterRequest struct {
	After        time.Time
	UpToSequence *int64
}
