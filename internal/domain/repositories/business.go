package repositories

import (
	"context"

	"tenantchat/internal/domain/models"
)

// BusinessRepository defines data access for tenants
type BusinessRepository interface {
	// Create inserts a business; ID, CreatedAt and UpdatedAt are filled in
	Create(ctx context.Context, business *models.Business) error

	// GetByID returns domain.ErrNotFound if the business does not exist
	GetByID(ctx context.Context, id string) (*models.Business, error)

	// ListByOwner returns every business owned by the user (empty slice if none)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Business, error)

	// GetForUpdate locks the row until the surrounding transaction ends.
	// It must be called inside TransactionManager.ExecTx.
	GetForUpdate(ctx context.Context, id string) (*models.Business, error)

	// Update persists name, visibility and fee. The owner is never written here;
	// business.OwnerID is refreshed from the stored row.
	Update(ctx context.Context, business *models.Business) error

	// SetOwner moves ownership; the new owner must exist
	SetOwner(ctx context.Context, id, ownerID string) error

	// Delete removes the business and applies the reference rules in the same statement set:
	// grants where it is either endpoint are deleted, conversations / rag chunks / rag queries /
	// user affiliations have their business reference set to NULL.
	// Callers run it inside a transaction.
	Delete(ctx context.Context, id string) error
}

// UserRepository defines data access for user accounts
type UserRepository interface {
	// Create inserts a user with a caller-provided ID (the identity provider subject)
	Create(ctx context.Context, user *models.User) error

	// GetByID returns domain.ErrNotFound if the user does not exist
	GetByID(ctx context.Context, id string) (*models.User, error)

	// SetBusiness sets or clears the user's business affiliation
	SetBusiness(ctx context.Context, userID string, businessID *string) error

	// Delete hard-deletes the user row
	Delete(ctx context.Context, id string) error
}
