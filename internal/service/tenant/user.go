package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
	"tenantchat/internal/domain/services"
)

// userService implements services.UserService
type userService struct {
	users      repositories.UserRepository
	businesses repositories.BusinessRepository
	logger     *slog.Logger
}

// NewUserService creates a new user service
func NewUserService(
	users repositories.UserRepository,
	businesses repositories.BusinessRepository,
	logger *slog.Logger,
) services.UserService {
	return &userService{
		users:      users,
		businesses: businesses,
		logger:     logger,
	}
}

// GetUser returns the user to themselves or to an admin
func (s *userService) GetUser(ctx context.Context, principal models.Principal, id string) (*models.User, error) {
	if !isSelfOrAdmin(principal, id) {
		return nil, &domain.DeniedError{Reason: "not_self", Operation: "read user", ResourceID: id}
	}
	return s.users.GetByID(ctx, id)
}

// SetUserBusiness is admin-only, except that users may clear their own affiliation.
// Pointing at a business that does not exist is an integrity violation.
func (s *userService) SetUserBusiness(ctx context.Context, principal models.Principal, userID string, req *services.SetUserBusinessRequest) (*models.User, error) {
	leaving := req.BusinessID == nil && userID == principal.UserID && !principal.IsAnonymous()
	if !principal.IsAdmin() && !leaving {
		return nil, &domain.DeniedError{Reason: "admin_required", Operation: "set user business", ResourceID: userID}
	}

	if req.BusinessID != nil {
		if _, err := s.businesses.GetByID(ctx, *req.BusinessID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, &domain.IntegrityError{Message: fmt.Sprintf("business %s does not exist", *req.BusinessID)}
			}
			return nil, err
		}
	}

	if err := s.users.SetBusiness(ctx, userID, req.BusinessID); err != nil {
		return nil, err
	}

	s.logger.Info("user business set",
		"user_id", userID,
		"business_id", req.BusinessID,
		"by_user_id", principal.UserID,
	)
	return s.users.GetByID(ctx, userID)
}

// DeleteUser is rejected while the user still owns a business; ownership must be
// transferred (or the business deleted) first.
func (s *userService) DeleteUser(ctx context.Context, principal models.Principal, userID string) error {
	if !isSelfOrAdmin(principal, userID) {
		return &domain.DeniedError{Reason: "not_self", Operation: "delete user", ResourceID: userID}
	}

	owned, err := s.businesses.ListByOwner(ctx, userID)
	if err != nil {
		return err
	}
	if len(owned) > 0 {
		return &domain.IntegrityError{
			Message: fmt.Sprintf("user %s still owns %d business(es); transfer ownership first", userID, len(owned)),
		}
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("user deleted", "user_id", userID, "by_user_id", principal.UserID)
	return nil
}

func isSelfOrAdmin(p models.Principal, userID string) bool {
	if p.IsAnonymous() {
		return false
	}
	return p.IsAdmin() || p.UserID == userID
}
