package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
)

const grantColumns = "id, accessing_business_id, target_business_id, has_access, access_type, expires_at, created_at"

// PostgresBusinessAccessRepository is the grant store
type PostgresBusinessAccessRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewBusinessAccessRepository creates a new grant repository
func NewBusinessAccessRepository(config *RepositoryConfig) repositories.BusinessAccessRepository {
	return &PostgresBusinessAccessRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func scanGrant(row scanner) (*models.BusinessAccess, error) {
	var g models.BusinessAccess
	err := row.Scan(&g.ID, &g.AccessingBusinessID, &g.TargetBusinessID, &g.HasAccess, &g.AccessType, &g.ExpiresAt, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Upsert is a single INSERT ... ON CONFLICT on the (target, accessing, access_type) key
func (r *PostgresBusinessAccessRepository) Upsert(ctx context.Context, g *models.BusinessAccess) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (accessing_business_id, target_business_id, has_access, access_type, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (target_business_id, accessing_business_id, access_type)
		DO UPDATE SET has_access = EXCLUDED.has_access, expires_at = EXCLUDED.expires_at
		RETURNING %s
	`, r.tables.BusinessAccesses, grantColumns)

	stored, err := scanGrant(GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		g.AccessingBusinessID, g.TargetBusinessID, g.HasAccess, g.AccessType, g.ExpiresAt))
	if err != nil {
		return translateError(err, "upsert grant", "grant", g.TargetBusinessID+"/"+g.AccessingBusinessID)
	}
	*g = *stored
	return nil
}

// GetByID retrieves a grant by ID
func (r *PostgresBusinessAccessRepository) GetByID(ctx context.Context, id string) (*models.BusinessAccess, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, grantColumns, r.tables.BusinessAccesses)

	g, err := scanGrant(GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		return nil, translateError(err, "get grant", "grant", id)
	}
	return g, nil
}

// Revoke flips has_access off and keeps the row
func (r *PostgresBusinessAccessRepository) Revoke(ctx context.Context, id string) (*models.BusinessAccess, error) {
	query := fmt.Sprintf(`UPDATE %s SET has_access = false WHERE id = $1 RETURNING %s`, r.tables.BusinessAccesses, grantColumns)

	g, err := scanGrant(GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		return nil, translateError(err, "revoke grant", "grant", id)
	}
	return g, nil
}

// IsActive evaluates the grant in one read against the supplied instant.
// Any failure is reported as unavailable, never as "no grant".
func (r *PostgresBusinessAccessRepository) IsActive(ctx context.Context, targetBusinessID, accessingBusinessID, accessType string, now time.Time) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM %s
			WHERE target_business_id = $1
			  AND accessing_business_id = $2
			  AND access_type = $3
			  AND has_access
			  AND (expires_at IS NULL OR expires_at > $4)
		)
	`, r.tables.BusinessAccesses)

	var active bool
	if err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, targetBusinessID, accessingBusinessID, accessType, now).Scan(&active); err != nil {
		return false, &domain.UnavailableError{Op: "grant lookup", Err: err}
	}
	return active, nil
}

// ListForBusiness returns grants where the business is either endpoint, newest first
func (r *PostgresBusinessAccessRepository) ListForBusiness(ctx context.Context, businessID string) ([]models.BusinessAccess, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE target_business_id = $1 OR accessing_business_id = $1
		ORDER BY created_at DESC
	`, grantColumns, r.tables.BusinessAccesses)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	grants := []models.BusinessAccess{}
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}
