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

// BusinessAccessRepository implements repositories.BusinessAccessRepository
type BusinessAccessRepository struct {
	s *Store
}

// NewBusinessAccessRepository creates a memory grant store
func NewBusinessAccessRepository(s *Store) repositories.BusinessAccessRepository {
	return &BusinessAccessRepository{s: s}
}

// Upsert keeps one row per (target, accessing, access type). A re-grant keeps the
// row's id and created_at and overwrites has_access and expires_at.
func (r *BusinessAccessRepository) Upsert(ctx context.Context, g *models.BusinessAccess) error {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, id := range []string{g.TargetBusinessID, g.AccessingBusinessID} {
		if _, ok := r.s.businesses[id]; !ok {
			return &domain.IntegrityError{Message: fmt.Sprintf("business %s does not exist", id)}
		}
	}

	if existing, ok := r.findLocked(g.TargetBusinessID, g.AccessingBusinessID, g.AccessType); ok {
		g.ID = existing.ID
		g.CreatedAt = existing.CreatedAt
	} else {
		g.ID = uuid.NewString()
		g.CreatedAt = r.s.now()
	}
	g.ExpiresAt = copyTime(g.ExpiresAt)
	r.s.grants[g.ID] = *g
	return nil
}

func (r *BusinessAccessRepository) GetByID(ctx context.Context, id string) (*models.BusinessAccess, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	g, ok := r.s.grants[id]
	if !ok {
		return nil, fmt.Errorf("grant %s: %w", id, domain.ErrNotFound)
	}
	return &g, nil
}

func (r *BusinessAccessRepository) Revoke(ctx context.Context, id string) (*models.BusinessAccess, error) {
	defer r.s.lockWrite(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.grants[id]
	if !ok {
		return nil, fmt.Errorf("grant %s: %w", id, domain.ErrNotFound)
	}
	g.HasAccess = false
	r.s.grants[id] = g
	return &g, nil
}

func (r *BusinessAccessRepository) IsActive(ctx context.Context, targetBusinessID, accessingBusinessID, accessType string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, &domain.UnavailableError{Op: "grant lookup", Err: err}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	g, ok := r.findLocked(targetBusinessID, accessingBusinessID, accessType)
	if !ok {
		return false, nil
	}
	return g.ActiveAt(now), nil
}

func (r *BusinessAccessRepository) ListForBusiness(ctx context.Context, businessID string) ([]models.BusinessAccess, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []models.BusinessAccess{}
	for _, g := range r.s.grants {
		if g.TargetBusinessID == businessID || g.AccessingBusinessID == businessID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *BusinessAccessRepository) findLocked(target, accessing, accessType string) (models.BusinessAccess, bool) {
	for _, g := range r.s.grants {
		if g.TargetBusinessID == target && g.AccessingBusinessID == accessing && g.AccessType == accessType {
			return g, true
		}
	}
	return models.BusinessAccess{}, false
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
