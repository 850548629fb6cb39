package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"tenantchat/internal/config"
	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
	"tenantchat/internal/domain/services"
)

// conversationService implements services.ConversationService
type conversationService struct {
	conversations repositories.ConversationRepository
	authz         services.ResourceAuthorizer
	accessTypes   services.AccessTypes
	tx            repositories.TransactionManager
	locks         *Locker
	logger        *slog.Logger
}

// NewConversationService creates a new conversation service
func NewConversationService(
	conversations repositories.ConversationRepository,
	authz services.ResourceAuthorizer,
	accessTypes services.AccessTypes,
	tx repositories.TransactionManager,
	locks *Locker,
	logger *slog.Logger,
) services.ConversationService {
	return &conversationService{
		conversations: conversations,
		authz:         authz,
		accessTypes:   accessTypes,
		tx:            tx,
		locks:         locks,
		logger:        logger,
	}
}

// CreateConversation starts a conversation owned by the principal. Without an
// explicit business it is scoped to the principal's current affiliation.
func (s *conversationService) CreateConversation(ctx context.Context, principal models.Principal, req *services.CreateConversationRequest) (*models.Conversation, error) {
	if principal.IsAnonymous() {
		return nil, domain.ErrUnauthorized
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Visibility == "" {
		req.Visibility = models.VisibilityPrivate
	}
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Title, validation.Length(0, config.MaxConversationTitleLength)),
		validation.Field(&req.Visibility, validation.By(validVisibility)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	businessID := req.BusinessID
	if businessID == nil {
		businessID = principal.BusinessID
	} else if !principal.MemberOf(*businessID) && !principal.IsAdmin() {
		return nil, &domain.DeniedError{
			Reason:     string(models.ReasonNoTenantAffiliation),
			Operation:  "create conversation",
			ResourceID: *businessID,
		}
	}

	conv := &models.Conversation{
		UserID:     principal.UserID,
		BusinessID: businessID,
		Title:      req.Title,
		Visibility: req.Visibility,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}

	s.logger.Info("conversation created",
		"id", conv.ID,
		"user_id", conv.UserID,
		"business_id", conv.BusinessID,
		"visibility", conv.Visibility,
	)
	return conv, nil
}

// GetConversation loads and authorizes a read
func (s *conversationService) GetConversation(ctx context.Context, principal models.Principal, id string) (*models.Conversation, error) {
	return s.load(ctx, principal, id, models.OperationRead)
}

// ListMyConversations returns the principal's own conversations
func (s *conversationService) ListMyConversations(ctx context.Context, principal models.Principal) ([]models.Conversation, error) {
	if principal.IsAnonymous() {
		return nil, domain.ErrUnauthorized
	}
	return s.conversations.ListByUser(ctx, principal.UserID)
}

// ListBusinessConversations authorizes a read against the business itself:
// members and holders of a read-conversations grant see every conversation.
func (s *conversationService) ListBusinessConversations(ctx context.Context, principal models.Principal, businessID string) ([]models.Conversation, error) {
	ref := models.ResourceRef{
		Kind:            models.ResourceConversation,
		OwnerBusinessID: &businessID,
		AccessType:      s.accessTypes.For(models.ResourceConversation, models.OperationRead),
	}
	if err := s.authz.Require(ctx, principal, ref, models.OperationRead); err != nil {
		return nil, err
	}
	return s.conversations.ListByBusiness(ctx, businessID)
}

// UpdateConversation changes title and/or visibility
func (s *conversationService) UpdateConversation(ctx context.Context, principal models.Principal, id string, req *services.UpdateConversationRequest) (*models.Conversation, error) {
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		req.Title = &trimmed
	}
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Title, validation.Length(0, config.MaxConversationTitleLength)),
		validation.Field(&req.Visibility, validation.By(validVisibility)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	conv, err := s.load(ctx, principal, id, models.OperationWrite)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		conv.Title = *req.Title
	}
	if req.Visibility != nil {
		conv.Visibility = *req.Visibility
	}
	if err := s.conversations.Update(ctx, conv); err != nil {
		return nil, err
	}

	s.logger.Info("conversation updated", "id", id, "visibility", conv.Visibility, "by_user_id", principal.UserID)
	return conv, nil
}

// DeleteConversation removes the conversation and its messages
func (s *conversationService) DeleteConversation(ctx context.Context, principal models.Principal, id string) error {
	if _, err := s.load(ctx, principal, id, models.OperationWrite); err != nil {
		return err
	}

	unlock := s.locks.Lock(id)
	defer unlock()
	if err := s.conversations.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("conversation deleted", "id", id, "by_user_id", principal.UserID)
	return nil
}

func (s *conversationService) load(ctx context.Context, principal models.Principal, id string, op models.Operation) (*models.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ref := conv.Ref(s.accessTypes.For(models.ResourceConversation, op))
	if err := s.authz.Require(ctx, principal, ref, op); err != nil {
		return nil, err
	}
	return conv, nil
}

// validVisibility accepts a nil pointer (no change requested)
func validVisibility(value interface{}) error {
	var v models.Visibility
	switch t := value.(type) {
	case models.Visibility:
		v = t
	case *models.Visibility:
		if t == nil {
			return nil
		}
		v = *t
	}
	if !v.Valid() {
		return fmt.Errorf("must be %q or %q", models.VisibilityPrivate, models.VisibilityPublic)
	}
	return nil
}
