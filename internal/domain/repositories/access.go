package repositories

import (
	"context"
	"time"

	"tenantchat/internal/domain/models"
)

// BusinessAccessRepository is the access grant store.
//
// Implementations must make Upsert a single atomic statement and IsActive a single
// read so that no decision observes a half-written grant. Lookup failures are
// returned wrapped in domain.ErrUnavailable; "no matching grant" is (false, nil).
type BusinessAccessRepository interface {
	// Upsert creates the grant or replaces the existing row for the same
	// (target, accessing, access type) triple. The stored row is written back into grant.
	Upsert(ctx context.Context, grant *models.BusinessAccess) error

	// GetByID returns domain.ErrNotFound if the grant does not exist
	GetByID(ctx context.Context, id string) (*models.BusinessAccess, error)

	// Revoke sets has_access = false without deleting the row
	Revoke(ctx context.Context, id string) (*models.BusinessAccess, error)

	// IsActive reports whether a matching grant has has_access and is unexpired at now
	IsActive(ctx context.Context, targetBusinessID, accessingBusinessID, accessType string, now time.Time) (bool, error)

	// ListForBusiness returns grants where the business is target or accessing, newest first
	ListForBusiness(ctx context.Context, businessID string) ([]models.BusinessAccess, error)
}
