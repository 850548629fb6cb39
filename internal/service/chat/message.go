package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"tenantchat/internal/config"
	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
	"tenantchat/internal/domain/services"
)

// messageService implements services.MessageService.
// Messages carry no ownership of their own; every check runs against the parent conversation.
type messageService struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	authz         services.ResourceAuthorizer
	accessTypes   services.AccessTypes
	tx            repositories.TransactionManager
	locks         *Locker
	logger        *slog.Logger
}

// NewMessageService creates a new message service
func NewMessageService(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	authz services.ResourceAuthorizer,
	accessTypes services.AccessTypes,
	tx repositories.TransactionManager,
	locks *Locker,
	logger *slog.Logger,
) services.MessageService {
	return &messageService{
		conversations: conversations,
		messages:      messages,
		authz:         authz,
		accessTypes:   accessTypes,
		tx:            tx,
		locks:         locks,
		logger:        logger,
	}
}

// SaveMessages appends messages in order under the conversation lock
func (s *messageService) SaveMessages(ctx context.Context, principal models.Principal, conversationID string, req *services.SaveMessagesRequest) ([]models.Message, error) {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Messages, validation.Required, validation.Length(1, config.MaxMessagesPerSave)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	for i := range req.Messages {
		m := &req.Messages[i]
		if err := validation.ValidateStruct(m,
			validation.Field(&m.Role, validation.Required, validation.By(validRole)),
			validation.Field(&m.Content, validation.Required, validation.Length(1, config.MaxMessageContentLength)),
		); err != nil {
			return nil, fmt.Errorf("%w: messages[%d]: %v", domain.ErrValidation, i, err)
		}
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, principal, conv, "", models.OperationWrite); err != nil {
		return nil, err
	}

	batch := make([]*models.Message, len(req.Messages))
	for i, nm := range req.Messages {
		batch[i] = &models.Message{
			ConversationID: conversationID,
			Role:           nm.Role,
			Content:        nm.Content,
		}
		if nm.Role == models.MessageRoleUser && !principal.IsAnonymous() {
			sender := principal.UserID
			batch[i].SenderID = &sender
		}
	}

	unlock := s.locks.Lock(conversationID)
	defer unlock()
	err = s.tx.ExecTx(ctx, func(ctx context.Context) error {
		if _, err := s.conversations.GetForUpdate(ctx, conversationID); err != nil {
			return err
		}
		return s.messages.CreateBatch(ctx, conversationID, batch)
	})
	if err != nil {
		return nil, err
	}

	saved := make([]models.Message, len(batch))
	for i, m := range batch {
		saved[i] = *m
	}
	s.logger.Debug("messages saved",
		"conversation_id", conversationID,
		"count", len(saved),
		"last_sequence", saved[len(saved)-1].Sequence,
	)
	return saved, nil
}

// GetMessage authorizes a read through the message's conversation
func (s *messageService) GetMessage(ctx context.Context, principal models.Principal, id string) (*models.Message, error) {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	conv, err := s.conversations.GetByID(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, principal, conv, msg.ID, models.OperationRead); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns the conversation's messages in sequence order
func (s *messageService) ListMessages(ctx context.Context, principal models.Principal, conversationID string) ([]models.Message, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, principal, conv, "", models.OperationRead); err != nil {
		return nil, err
	}
	return s.messages.ListByConversation(ctx, conversationID)
}

// Vote counts as a write on the conversation
func (s *messageService) Vote(ctx context.Context, principal models.Principal, messageID string, direction models.VoteDirection) (*models.Message, error) {
	if direction != models.VoteUp && direction != models.VoteDown {
		return nil, fmt.Errorf("%w: direction must be %q or %q", domain.ErrValidation, models.VoteUp, models.VoteDown)
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	conv, err := s.conversations.GetByID(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, principal, conv, msg.ID, models.OperationWrite); err != nil {
		return nil, err
	}
	return s.messages.AddVote(ctx, messageID, direction)
}

// DeleteMessagesAfter is the regenerate path. The write check happens before the
// lock is taken and before anything is deleted; a denial leaves the conversation untouched.
// Under the lock the sequence bound is clamped to what the conversation holds, so a
// stale request cannot remove messages written after the caller's view.
func (s *messageService) DeleteMessagesAfter(ctx context.Context, principal models.Principal, conversationID string, req *services.DeleteMessagesAfterRequest) (int64, error) {
	if req.After.IsZero() {
		return 0, fmt.Errorf("%w: after timestamp is required", domain.ErrValidation)
	}
	if req.UpToSequence != nil && *req.UpToSequence < 0 {
		return 0, fmt.Errorf("%w: up_to_sequence must not be negative", domain.ErrValidation)
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if err := s.authorize(ctx, principal, conv, "", models.OperationWrite); err != nil {
		return 0, err
	}

	unlock := s.locks.Lock(conversationID)
	defer unlock()

	var deleted int64
	err = s.tx.ExecTx(ctx, func(ctx context.Context) error {
		locked, err := s.conversations.GetForUpdate(ctx, conversationID)
		if err != nil {
			return err
		}
		bound := locked.MessageSeq
		if req.UpToSequence != nil && *req.UpToSequence < bound {
			bound = *req.UpToSequence
		}
		deleted, err = s.messages.DeleteAfter(ctx, conversationID, req.After, bound)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("delete messages after: %w", err)
	}

	s.logger.Info("messages deleted after timestamp",
		"conversation_id", conversationID,
		"after", req.After,
		"up_to_sequence", req.UpToSequence,
		"deleted", deleted,
		"by_user_id", principal.UserID,
	)
	return deleted, nil
}

// authorize checks op on a message-kind ref derived from the conversation
func (s *messageService) authorize(ctx context.Context, principal models.Principal, conv *models.Conversation, messageID string, op models.Operation) error {
	ref := conv.Ref(s.accessTypes.For(models.ResourceMessage, op))
	ref.Kind = models.ResourceMessage
	ref.ID = messageID
	if messageID == "" {
		ref.ID = conv.ID
	}
	return s.authz.Require(ctx, principal, ref, op)
}

func validRole(value interface{}) error {
	if r, ok := value.(models.MessageRole); ok && !r.Valid() {
		return fmt.Errorf("must be one of user, assistant, system")
	}
	return nil
}
