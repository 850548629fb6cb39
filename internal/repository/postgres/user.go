package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
)

// PostgresUserRepository implements repositories.UserRepository
type PostgresUserRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewUserRepository creates a new user repository
func NewUserRepository(config *RepositoryConfig) repositories.UserRepository {
	return &PostgresUserRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Create inserts a user under the identity provider's subject id
func (r *PostgresUserRepository) Create(ctx context.Context, u *models.User) error {
	if u.Role == "" {
		u.Role = models.UserRoleMember
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, email, name, role, business_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, r.tables.Users)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, u.ID, u.Email, u.Name, u.Role, u.BusinessID).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	return translateError(err, "create user", "user", u.ID)
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT id, email, name, role, business_id, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, r.tables.Users)

	var u models.User
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &u.BusinessID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err, "get user", "user", id)
	}
	return &u, nil
}

// SetBusiness sets or clears the affiliation; a dangling id fails the foreign key
func (r *PostgresUserRepository) SetBusiness(ctx context.Context, userID string, businessID *string) error {
	query := fmt.Sprintf(`UPDATE %s SET business_id = $2, updated_at = now() WHERE id = $1`, r.tables.Users)

	tag, err := GetExecutor(ctx, r.pool).Exec(ctx, query, userID, businessID)
	if err != nil {
		return translateError(err, "set user business", "user", userID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return nil
}

// Delete fails with an integrity error while the user owns a business
func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Users)

	tag, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return translateError(err, "delete user", "user", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
