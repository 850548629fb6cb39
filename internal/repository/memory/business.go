package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
)

// BusinessRepository implements repositories.BusinessRepository
type BusinessRepository struct {
	s *Store
}

// NewBusinessRepository creates a memory business repository
func NewBusinessRepository(s *Store) repositories.BusinessRepository {
	return &BusinessRepository{s: s}
}

func (r *BusinessRepository) Create(ctx context.Context, b *models.Business) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[b.OwnerID]; !ok {
		return &domain.IntegrityError{Message: fmt.Sprintf("owner %s does not exist", b.OwnerID)}
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	} else if _, exists := r.s.businesses[b.ID]; exists {
		return &domain.ConflictError{Message: "business already exists", ResourceType: "business", ResourceID: b.ID}
	}
	now := r.s.now()
	b.CreatedAt, b.UpdatedAt = now, now
	r.s.businesses[b.ID] = *b
	return nil
}

func (r *BusinessRepository) GetByID(ctx context.Context, id string) (*models.Business, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.businesses[id]
	if !ok {
		return nil, fmt.Errorf("business %s: %w", id, domain.ErrNotFound)
	}
	return &b, nil
}

func (r *BusinessRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Business, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.Business{}
	for _, b := range r.s.businesses {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// GetForUpdate relies on the caller's ExecTx for exclusion
func (r *BusinessRepository) GetForUpdate(ctx context.Context, id string) (*models.Business, error) {
	if !inTx(ctx) {
		return nil, fmt.Errorf("GetForUpdate requires a transaction")
	}
	return r.GetByID(ctx, id)
}

func (r *BusinessRepository) Update(ctx context.Context, b *models.Business) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.businesses[b.ID]
	if !ok {
		return fmt.Errorf("business %s: %w", b.ID, domain.ErrNotFound)
	}
	existing.Name = b.Name
	existing.IsPublic = b.IsPublic
	existing.PublicAccessFee = b.PublicAccessFee
	existing.UpdatedAt = r.s.now()
	r.s.businesses[b.ID] = existing
	*b = existing
	return nil
}

func (r *BusinessRepository) SetOwner(ctx context.Context, id, ownerID string) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.businesses[id]
	if !ok {
		return fmt.Errorf("business %s: %w", id, domain.ErrNotFound)
	}
	if _, ok := r.s.users[ownerID]; !ok {
		return &domain.IntegrityError{Message: fmt.Sprintf("owner %s does not exist", ownerID)}
	}
	b.OwnerID = ownerID
	b.UpdatedAt = r.s.now()
	r.s.businesses[id] = b
	return nil
}

// Delete applies the reference rules: grants on either side are removed,
// everything else referencing the business is orphaned.
func (r *BusinessRepository) Delete(ctx context.Context, id string) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.businesses[id]; !ok {
		return fmt.Errorf("business %s: %w", id, domain.ErrNotFound)
	}

	for gid, g := range r.s.grants {
		if g.TargetBusinessID == id || g.AccessingBusinessID == id {
			delete(r.s.grants, gid)
		}
	}
	for cid, c := range r.s.conversations {
		if isRef(c.BusinessID, id) {
			c.BusinessID = nil
			r.s.conversations[cid] = c
		}
	}
	for kid, k := range r.s.chunks {
		if isRef(k.BusinessID, id) {
			k.BusinessID = nil
			r.s.chunks[kid] = k
		}
	}
	for qid, q := range r.s.queries {
		if isRef(q.BusinessID, id) {
			q.BusinessID = nil
			r.s.queries[qid] = q
		}
	}
	for uid, u := range r.s.users {
		if isRef(u.BusinessID, id) {
			u.BusinessID = nil
			r.s.users[uid] = u
		}
	}

	delete(r.s.businesses, id)
	return nil
}

// UserRepository implements repositories.UserRepository
type UserRepository struct {
	s *Store
}

// NewUserRepository creates a memory user repository
func NewUserRepository(s *Store) repositories.UserRepository {
	return &UserRepository{s: s}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if u.ID == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if _, exists := r.s.users[u.ID]; exists {
		return &domain.ConflictError{Message: "user already exists", ResourceType: "user", ResourceID: u.ID}
	}
	if u.BusinessID != nil {
		if _, ok := r.s.businesses[*u.BusinessID]; !ok {
			return &domain.IntegrityError{Message: fmt.Sprintf("business %s does not exist", *u.BusinessID)}
		}
	}
	if u.Role == "" {
		u.Role = models.UserRoleMember
	}
	now := r.s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	r.s.users[u.ID] = *u
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return &u, nil
}

func (r *UserRepository) SetBusiness(ctx context.Context, userID string, businessID *string) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	if businessID != nil {
		if _, ok := r.s.businesses[*businessID]; !ok {
			return &domain.IntegrityError{Message: fmt.Sprintf("business %s does not exist", *businessID)}
		}
		id := *businessID
		businessID = &id
	}
	u.BusinessID = businessID
	u.UpdatedAt = r.s.now()
	r.s.users[userID] = u
	return nil
}

// Delete refuses while the user still owns a business. The user's conversations
// (with their messages) and rag queries go with the account; messages the user
// sent elsewhere keep their content with sender cleared.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	for _, b := range r.s.businesses {
		if b.OwnerID == id {
			return &domain.IntegrityError{Message: fmt.Sprintf("user %s still owns business %s", id, b.ID)}
		}
	}

	for cid, c := range r.s.conversations {
		if c.UserID == id {
			deleteConversationMessages(r.s, cid)
			delete(r.s.conversations, cid)
		}
	}
	for mid, m := range r.s.messages {
		if isRef(m.SenderID, id) {
			m.SenderID = nil
			r.s.messages[mid] = m
		}
	}
	for qid, q := range r.s.queries {
		if q.UserID == id {
			delete(r.s.queries, qid)
		}
	}
	delete(r.s.users, id)
	return nil
}

func isRef(p *string, id string) bool {
	return p != nil && *p == id
}
