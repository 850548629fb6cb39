package services

import (
	"context"
	"time"

	"tenantchat/internal/domain/models"
)

// BusinessService manages tenants
type BusinessService interface {
	CreateBusiness(ctx context.Context, principal models.Principal, req *CreateBusinessRequest) (*models.Business, error)
	GetBusiness(ctx context.Context, principal models.Principal, id string) (*models.Business, error)
	UpdateBusiness(ctx context.Context, principal models.Principal, id string, req *UpdateBusinessRequest) (*models.Business, error)
	TransferOwnership(ctx context.Context, principal models.Principal, id string, req *TransferOwnershipRequest) (*models.Business, error)
	DeleteBusiness(ctx context.Context, principal models.Principal, id string) error
}

// AccessService manages delegated cross-business grants
type AccessService interface {
	Grant(ctx context.Context, principal models.Principal, req *GrantRequest) (*models.BusinessAccess, error)
	Revoke(ctx context.Context, principal models.Principal, grantID string) (*models.BusinessAccess, error)
	GetGrant(ctx context.Context, principal models.Principal, grantID string) (*models.BusinessAccess, error)
	ListGrants(ctx context.Context, principal models.Principal, businessID string) ([]models.BusinessAccess, error)
}

// UserService manages user accounts and affiliations
type UserService interface {
	GetUser(ctx context.Context, principal models.Principal, id string) (*models.User, error)
	SetUserBusiness(ctx context.Context, principal models.Principal, userID string, req *SetUserBusinessRequest) (*models.User, error)
	DeleteUser(ctx context.Context, principal models.Principal, userID string) error
}

// CreateBusinessRequest is the payload for registering a tenant
type CreateBusinessRequest struct {
	Name            string   `json:"name"`
	IsPublic        bool     `json:"is_public"`
	PublicAccessFee *float64 `json:"public_access_fee"`
}

// UpdateBusinessRequest carries a partial update. ClearPublicAccessFee sets the
// fee to NULL; it cannot be combined with PublicAccessFee.
type UpdateBusinessRequest struct {
	Name                 *string
	IsPublic             *bool
	PublicAccessFee      *float64
	ClearPublicAccessFee bool
}

// TransferOwnershipRequest names the new owner
type TransferOwnershipRequest struct {
	NewOwnerID string `json:"new_owner_id"`
}

// GrantRequest asks the target business to let the accessing business in
type GrantRequest struct {
	TargetBusinessID    string     `json:"target_business_id"`
	AccessingBusinessID string     `json:"accessing_business_id"`
	AccessType          string     `json:"access_type"`
	ExpiresAt           *time.Time `json:"expires_at"`
}

// SetUserBusinessRequest sets (or, with nil, clears) a user's affiliation
type SetUserBusinessRequest struct {
	BusinessID *string `json:"business_id"`
}
