package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
)

// ConversationRepository implements repositories.ConversationRepository
type ConversationRepository struct {
	s *Store
}

// NewConversationRepository creates a memory conversation repository
func NewConversationRepository(s *Store) repositories.ConversationRepository {
	return &ConversationRepository{s: s}
}

func (r *ConversationRepository) Create(ctx context.Context, c *models.Conversation) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[c.UserID]; !ok {
		return &domain.IntegrityError{Message: fmt.Sprintf("user %s does not exist", c.UserID)}
	}
	if c.BusinessID != nil {
		if _, ok := r.s.businesses[*c.BusinessID]; !ok {
			return &domain.IntegrityError{Message: fmt.Sprintf("business %s does not exist", *c.BusinessID)}
		}
	}
	c.ID = uuid.NewString()
	now := r.s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	c.MessageSeq = 0
	r.s.conversations[c.ID] = *c
	return nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

// GetForUpdate relies on the caller's ExecTx for exclusion
func (r *ConversationRepository) GetForUpdate(ctx context.Context, id string) (*models.Conversation, error) {
	if !inTx(ctx) {
		return nil, fmt.Errorf("GetForUpdate requires a transaction")
	}
	return r.GetByID(ctx, id)
}

func (r *ConversationRepository) ListByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	return r.list(func(c models.Conversation) bool { return c.UserID == userID }), nil
}

func (r *ConversationRepository) ListByBusiness(ctx context.Context, businessID string) ([]models.Conversation, error) {
	return r.list(func(c models.Conversation) bool { return isRef(c.BusinessID, businessID) }), nil
}

// list returns matches, most recently updated first
func (r *ConversationRepository) list(match func(models.Conversation) bool) []models.Conversation {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.Conversation{}
	for _, c := range r.s.conversations {
		if match(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func (r *ConversationRepository) Update(ctx context.Context, c *models.Conversation) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.conversations[c.ID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", c.ID, domain.ErrNotFound)
	}
	existing.Title = c.Title
	existing.Visibility = c.Visibility
	existing.UpdatedAt = r.s.now()
	r.s.conversations[c.ID] = existing
	*c = existing
	return nil
}

func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.conversations[id]; !ok {
		return fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	deleteConversationMessages(r.s, id)
	delete(r.s.conversations, id)
	return nil
}

// deleteConversationMessages expects s.mu to be held
func deleteConversationMessages(s *Store, conversationID string) {
	for mid, m := range s.messages {
		if m.ConversationID == conversationID {
			delete(s.messages, mid)
		}
	}
}

// MessageRepository implements repositories.MessageRepository
type MessageRepository struct {
	s *Store
}

// NewMessageRepository creates a memory message repository
func NewMessageRepository(s *Store) repositories.MessageRepository {
	return &MessageRepository{s: s}
}

func (r *MessageRepository) CreateBatch(ctx context.Context, conversationID string, msgs []*models.Message) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	conv, ok := r.s.conversations[conversationID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", conversationID, domain.ErrNotFound)
	}

	now := r.s.now()
	for _, m := range msgs {
		conv.MessageSeq++
		m.ID = uuid.NewString()
		m.ConversationID = conversationID
		m.Sequence = conv.MessageSeq
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		r.s.messages[m.ID] = *m
	}
	conv.UpdatedAt = now
	r.s.conversations[conversationID] = conv
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}
	return &m, nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.Message{}
	for _, m := range r.s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *MessageRepository) CountByConversation(ctx context.Context, conversationID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, m := range r.s.messages {
		if m.ConversationID == conversationID {
			n++
		}
	}
	return n, nil
}

func (r *MessageRepository) AddVote(ctx context.Context, id string, direction models.VoteDirection) (*models.Message, error) {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
	}
	switch direction {
	case models.VoteUp:
		m.Upvotes++
	case models.VoteDown:
		m.Downvotes++
	default:
		return nil, fmt.Errorf("%w: unknown vote direction %q", domain.ErrValidation, direction)
	}
	r.s.messages[id] = m
	return &m, nil
}

func (r *MessageRepository) DeleteAfter(ctx context.Context, conversationID string, after time.Time, upToSequence int64) (int64, error) {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for mid, m := range r.s.messages {
		if m.ConversationID != conversationID || m.CreatedAt.Before(after) || m.Sequence > upToSequence {
			continue
		}
		delete(r.s.messages, mid)
		n++
	}
	return n, nil
}
