package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
)

const businessColumns = "id, owner_id, name, is_public, public_access_fee, created_at, updated_at"

// PostgresBusinessRepository implements repositories.BusinessRepository
type PostgresBusinessRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewBusinessRepository creates a new business repository
func NewBusinessRepository(config *RepositoryConfig) repositories.BusinessRepository {
	return &PostgresBusinessRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

func scanBusiness(row scanner) (*models.Business, error) {
	var b models.Business
	err := row.Scan(&b.ID, &b.OwnerID, &b.Name, &b.IsPublic, &b.PublicAccessFee, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts a business
func (r *PostgresBusinessRepository) Create(ctx context.Context, b *models.Business) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (owner_id, name, is_public, public_access_fee)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, r.tables.Businesses)

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, b.OwnerID, b.Name, b.IsPublic, b.PublicAccessFee).
		Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	return translateError(err, "create business", "business", b.Name)
}

// GetByID retrieves a business by ID
func (r *PostgresBusinessRepository) GetByID(ctx context.Context, id string) (*models.Business, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, businessColumns, r.tables.Businesses)

	b, err := scanBusiness(GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		return nil, translateError(err, "get business", "business", id)
	}
	return b, nil
}

// ListByOwner returns the user's businesses, oldest first
func (r *PostgresBusinessRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Business, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE owner_id = $1 ORDER BY created_at`, businessColumns, r.tables.Businesses)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	defer rows.Close()

	businesses := []models.Business{}
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}
		businesses = append(businesses, *b)
	}
	return businesses, rows.Err()
}

// GetForUpdate takes a row lock held until the surrounding transaction ends
func (r *PostgresBusinessRepository) GetForUpdate(ctx context.Context, id string) (*models.Business, error) {
	tx := repositories.GetTx(ctx)
	if tx == nil {
		return nil, errors.New("GetForUpdate requires a transaction")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 FOR UPDATE`, businessColumns, r.tables.Businesses)

	b, err := scanBusiness(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, translateError(err, "lock business", "business", id)
	}
	return b, nil
}

// Update persists name, visibility and fee; owner_id is only read back
func (r *PostgresBusinessRepository) Update(ctx context.Context, b *models.Business) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $2, is_public = $3, public_access_fee = $4, updated_at = now()
		WHERE id = $1
		RETURNING owner_id, created_at, updated_at
	`, r.tables.Businesses)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, b.ID, b.Name, b.IsPublic, b.PublicAccessFee).
		Scan(&b.OwnerID, &b.CreatedAt, &b.UpdatedAt)
	return translateError(err, "update business", "business", b.ID)
}

// SetOwner moves ownership; a missing user surfaces as a foreign key violation
func (r *PostgresBusinessRepository) SetOwner(ctx context.Context, id, ownerID string) error {
	query := fmt.Sprintf(`UPDATE %s SET owner_id = $2, updated_at = now() WHERE id = $1`, r.tables.Businesses)

	tag, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id, ownerID)
	if err != nil {
		return translateError(err, "transfer business", "business", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("business %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Delete relies on the foreign keys: business_accesses cascade, every other
// reference is ON DELETE SET NULL.
func (r *PostgresBusinessRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Businesses)

	tag, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return translateError(err, "delete business", "business", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("business %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
