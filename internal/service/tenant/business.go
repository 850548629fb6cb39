package tenant

import (
	"context"
	"errors"
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

// reasonNotOwner is the denial reason for tenant management by anyone but the owner or an admin
const reasonNotOwner = "not_business_owner"

// businessService implements services.BusinessService
type businessService struct {
	businesses repositories.BusinessRepository
	users      repositories.UserRepository
	tx         repositories.TransactionManager
	logger     *slog.Logger
}

// NewBusinessService creates a new business service
func NewBusinessService(
	businesses repositories.BusinessRepository,
	users repositories.UserRepository,
	tx repositories.TransactionManager,
	logger *slog.Logger,
) services.BusinessService {
	return &businessService{
		businesses: businesses,
		users:      users,
		tx:         tx,
		logger:     logger,
	}
}

// CreateBusiness makes the principal the owner. A creator without an affiliation
// starts operating as the new business.
func (s *businessService) CreateBusiness(ctx context.Context, principal models.Principal, req *services.CreateBusinessRequest) (*models.Business, error) {
	if principal.IsAnonymous() {
		return nil, domain.ErrUnauthorized
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, config.MaxBusinessNameLength)),
		validation.Field(&req.PublicAccessFee, feeRules(req.IsPublic)...),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	business := &models.Business{
		OwnerID:         principal.UserID,
		Name:            req.Name,
		IsPublic:        req.IsPublic,
		PublicAccessFee: req.PublicAccessFee,
	}

	err := s.tx.ExecTx(ctx, func(ctx context.Context) error {
		if err := s.businesses.Create(ctx, business); err != nil {
			return err
		}
		owner, err := s.users.GetByID(ctx, principal.UserID)
		if err != nil {
			return err
		}
		if owner.BusinessID == nil {
			return s.users.SetBusiness(ctx, owner.ID, &business.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("business created",
		"id", business.ID,
		"name", business.Name,
		"owner_id", business.OwnerID,
		"is_public", business.IsPublic,
	)
	return business, nil
}

// GetBusiness returns directory information; any signed-in principal may read it
func (s *businessService) GetBusiness(ctx context.Context, principal models.Principal, id string) (*models.Business, error) {
	if principal.IsAnonymous() {
		return nil, domain.ErrUnauthorized
	}
	return s.businesses.GetByID(ctx, id)
}

// UpdateBusiness applies a partial update. Turning is_public off clears the fee.
func (s *businessService) UpdateBusiness(ctx context.Context, principal models.Principal, id string, req *services.UpdateBusinessRequest) (*models.Business, error) {
	if req.ClearPublicAccessFee && req.PublicAccessFee != nil {
		return nil, fmt.Errorf("%w: public_access_fee cannot be both set and cleared", domain.ErrValidation)
	}

	var business *models.Business
	err := s.tx.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		business, err = s.businesses.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !canManage(principal, business) {
			return &domain.DeniedError{Reason: reasonNotOwner, Operation: "update business", ResourceID: id}
		}

		if req.Name != nil {
			business.Name = strings.TrimSpace(*req.Name)
		}
		if req.IsPublic != nil {
			business.IsPublic = *req.IsPublic
			if !business.IsPublic && req.PublicAccessFee == nil {
				business.PublicAccessFee = nil
			}
		}
		if req.PublicAccessFee != nil {
			business.PublicAccessFee = req.PublicAccessFee
		}
		if req.ClearPublicAccessFee {
			business.PublicAccessFee = nil
		}

		if err := validation.ValidateStruct(business,
			validation.Field(&business.Name, validation.Required, validation.Length(1, config.MaxBusinessNameLength)),
			validation.Field(&business.PublicAccessFee, feeRules(business.IsPublic)...),
		); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}

		return s.businesses.Update(ctx, business)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("business updated", "id", id, "user_id", principal.UserID)
	return business, nil
}

// TransferOwnership hands the business to another existing user
func (s *businessService) TransferOwnership(ctx context.Context, principal models.Principal, id string, req *services.TransferOwnershipRequest) (*models.Business, error) {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.NewOwnerID, validation.Required),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	var business *models.Business
	err := s.tx.ExecTx(ctx, func(ctx context.Context) error {
		var err error
		business, err = s.businesses.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !canManage(principal, business) {
			return &domain.DeniedError{Reason: reasonNotOwner, Operation: "transfer business", ResourceID: id}
		}

		if _, err := s.users.GetByID(ctx, req.NewOwnerID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return &domain.IntegrityError{Message: fmt.Sprintf("new owner %s does not exist", req.NewOwnerID)}
			}
			return err
		}

		if err := s.businesses.SetOwner(ctx, id, req.NewOwnerID); err != nil {
			return err
		}
		business.OwnerID = req.NewOwnerID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("business ownership transferred",
		"id", id,
		"new_owner_id", req.NewOwnerID,
		"by_user_id", principal.UserID,
	)
	return business, nil
}

// DeleteBusiness removes the business. Grants on either side go with it;
// conversations, chunks, queries and affiliations are orphaned in the same transaction.
func (s *businessService) DeleteBusiness(ctx context.Context, principal models.Principal, id string) error {
	err := s.tx.ExecTx(ctx, func(ctx context.Context) error {
		business, err := s.businesses.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !canManage(principal, business) {
			return &domain.DeniedError{Reason: reasonNotOwner, Operation: "delete business", ResourceID: id}
		}
		return s.businesses.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("business deleted", "id", id, "user_id", principal.UserID)
	return nil
}

// feeRules: the fee is only allowed on public businesses and is never negative
func feeRules(isPublic bool) []validation.Rule {
	return []validation.Rule{
		validation.When(!isPublic, validation.Nil.Error("must be empty unless the business is public")),
		validation.Min(0.0),
	}
}

func canManage(p models.Principal, b *models.Business) bool {
	if p.IsAnonymous() {
		return false
	}
	return p.IsAdmin() || b.OwnerID == p.UserID
}
