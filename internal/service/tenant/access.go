package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"tenantchat/internal/config"
	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
	"tenantchat/internal/domain/services"
)

// accessService implements services.AccessService on top of the grant store
type accessService struct {
	grants      repositories.BusinessAccessRepository
	businesses  repositories.BusinessRepository
	accessTypes services.AccessTypes
	now         func() time.Time
	logger      *slog.Logger
}

// NewAccessService creates a new grant management service
func NewAccessService(
	grants repositories.BusinessAccessRepository,
	businesses repositories.BusinessRepository,
	accessTypes services.AccessTypes,
	now func() time.Time,
	logger *slog.Logger,
) services.AccessService {
	if now == nil {
		now = time.Now
	}
	return &accessService{
		grants:      grants,
		businesses:  businesses,
		accessTypes: accessTypes,
		now:         now,
		logger:      logger,
	}
}

// Grant lets the accessing business into the target's resources for one access type.
// Only the target's owner (or an admin) can grant. Granting again for the same
// triple replaces the existing row, reactivating it if it was revoked.
func (s *accessService) Grant(ctx context.Context, principal models.Principal, req *services.GrantRequest) (*models.BusinessAccess, error) {
	if principal.IsAnonymous() {
		return nil, domain.ErrUnauthorized
	}
	req.AccessType = strings.TrimSpace(req.AccessType)
	if err := validation.ValidateStruct(req,
		validation.Field(&req.TargetBusinessID, validation.Required),
		validation.Field(&req.AccessingBusinessID, validation.Required),
		validation.Field(&req.AccessType, validation.Required, validation.Length(1, config.MaxAccessTypeLength)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidGrant, err)
	}
	if req.TargetBusinessID == req.AccessingBusinessID {
		return nil, fmt.Errorf("%w: a business cannot grant access to itself", domain.ErrInvalidGrant)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("%w: expires_at must be in the future", domain.ErrInvalidGrant)
	}

	target, err := s.lookupEndpoint(ctx, req.TargetBusinessID, "target")
	if err != nil {
		return nil, err
	}
	if !canManage(principal, target) {
		return nil, &domain.DeniedError{Reason: reasonNotOwner, Operation: "grant", ResourceID: target.ID}
	}
	if _, err := s.lookupEndpoint(ctx, req.AccessingBusinessID, "accessing"); err != nil {
		return nil, err
	}

	if s.accessTypes != nil && !s.accessTypes.Known(req.AccessType) {
		s.logger.Warn("grant uses unregistered access type",
			"access_type", req.AccessType,
			"target_business_id", req.TargetBusinessID,
		)
	}

	grant := &models.BusinessAccess{
		TargetBusinessID:    req.TargetBusinessID,
		AccessingBusinessID: req.AccessingBusinessID,
		HasAccess:           true,
		AccessType:          req.AccessType,
		ExpiresAt:           req.ExpiresAt,
	}
	if err := s.grants.Upsert(ctx, grant); err != nil {
		return nil, err
	}

	s.logger.Info("grant created",
		"id", grant.ID,
		"target_business_id", grant.TargetBusinessID,
		"accessing_business_id", grant.AccessingBusinessID,
		"access_type", grant.AccessType,
		"expires_at", grant.ExpiresAt,
		"by_user_id", principal.UserID,
	)
	return grant, nil
}

// Revoke turns the grant off without deleting it
func (s *accessService) Revoke(ctx context.Context, principal models.Principal, grantID string) (*models.BusinessAccess, error) {
	grant, err := s.grants.GetByID(ctx, grantID)
	if err != nil {
		return nil, err
	}
	target, err := s.businesses.GetByID(ctx, grant.TargetBusinessID)
	if err != nil {
		return nil, err
	}
	if !canManage(principal, target) {
		return nil, &domain.DeniedError{Reason: reasonNotOwner, Operation: "revoke", ResourceID: grantID}
	}

	revoked, err := s.grants.Revoke(ctx, grantID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("grant revoked",
		"id", grantID,
		"target_business_id", revoked.TargetBusinessID,
		"accessing_business_id", revoked.AccessingBusinessID,
		"by_user_id", principal.UserID,
	)
	return revoked, nil
}

// GetGrant is visible to anyone who could list it from either endpoint
func (s *accessService) GetGrant(ctx context.Context, principal models.Principal, grantID string) (*models.BusinessAccess, error) {
	grant, err := s.grants.GetByID(ctx, grantID)
	if err != nil {
		return nil, err
	}
	for _, id := range []string{grant.TargetBusinessID, grant.AccessingBusinessID} {
		ok, err := s.canView(ctx, principal, id)
		if err != nil {
			return nil, err
		}
		if ok {
			return grant, nil
		}
	}
	return nil, &domain.DeniedError{Reason: string(models.ReasonNoTenantAffiliation), Operation: "read grant", ResourceID: grantID}
}

// ListGrants returns grants where the business is target or accessing
func (s *accessService) ListGrants(ctx context.Context, principal models.Principal, businessID string) ([]models.BusinessAccess, error) {
	ok, err := s.canView(ctx, principal, businessID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.DeniedError{Reason: string(models.ReasonNoTenantAffiliation), Operation: "list grants", ResourceID: businessID}
	}
	return s.grants.ListForBusiness(ctx, businessID)
}

// canView: admins, the business owner, and members operating as the business
func (s *accessService) canView(ctx context.Context, p models.Principal, businessID string) (bool, error) {
	if p.IsAnonymous() {
		return false, nil
	}
	if p.IsAdmin() || p.MemberOf(businessID) {
		return true, nil
	}
	b, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		return false, err
	}
	return b.OwnerID == p.UserID, nil
}

// lookupEndpoint turns a missing business into an invalid grant rather than a 404
func (s *accessService) lookupEndpoint(ctx context.Context, id, side string) (*models.Business, error) {
	b, err := s.businesses.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s business %s does not exist", domain.ErrInvalidGrant, side, id)
	}
	return b, err
}
