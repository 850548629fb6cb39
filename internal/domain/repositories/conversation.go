package repositories

import (
	"context"
	"time"

	"tenantchat/internal/domain/models"
)

// ConversationRepository defines data access for conversations
type ConversationRepository interface {
	Create(ctx context.Context, conversation *models.Conversation) error

	// GetByID returns domain.ErrNotFound if the conversation does not exist
	GetByID(ctx context.Context, id string) (*models.Conversation, error)

	// GetForUpdate loads the conversation and locks it until the surrounding
	// transaction ends. Writers to the same conversation are serialized through it.
	GetForUpdate(ctx context.Context, id string) (*models.Conversation, error)

	ListByUser(ctx context.Context, userID string) ([]models.Conversation, error)
	ListByBusiness(ctx context.Context, businessID string) ([]models.Conversation, error)

	// Update persists title and visibility
	Update(ctx context.Context, conversation *models.Conversation) error

	// Delete removes the conversation and all of its messages
	Delete(ctx context.Context, id string) error
}

// MessageRepository defines data access for messages
type MessageRepository interface {
	// CreateBatch inserts messages in order, assigning each the next sequence of
	// its conversation and bumping conversations.message_seq. All messages must
	// share one conversation.
	CreateBatch(ctx context.Context, conversationID string, messages []*models.Message) error

	// GetByID returns domain.ErrNotFound if the message does not exist
	GetByID(ctx context.Context, id string) (*models.Message, error)

	// ListByConversation returns messages ordered by sequence
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)

	// CountByConversation returns how many messages the conversation holds
	CountByConversation(ctx context.Context, conversationID string) (int, error)

	// AddVote increments the up or down counter
	AddVote(ctx context.Context, id string, direction models.VoteDirection) (*models.Message, error)

	// DeleteAfter deletes messages of one conversation with created_at >= after and
	// sequence <= upToSequence. Returns the number of deleted rows.
	DeleteAfter(ctx context.Context, conversationID string, after time.Time, upToSequence int64) (int64, error)
}
