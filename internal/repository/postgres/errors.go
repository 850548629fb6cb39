package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tenantchat/internal/domain"
)

// IsPgDuplicateError checks if error is a unique constraint violation
func IsPgDuplicateError(err error) bool {
	return pgCode(err) == "23505"
}

// IsPgNoRowsError checks if error is a "no rows" error
func IsPgNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsPgForeignKeyError checks if error is a foreign key violation
func IsPgForeignKeyError(err error) bool {
	return pgCode(err) == "23503"
}

// IsPgCheckError checks if error is a check constraint violation
func IsPgCheckError(err error) bool {
	return pgCode(err) == "23514"
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// translateError maps driver errors onto the domain taxonomy.
// resource and id only shape the message.
func translateError(err error, op, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case IsPgNoRowsError(err):
		return fmt.Errorf("%s %s: %w", resource, id, domain.ErrNotFound)
	case IsPgDuplicateError(err):
		return &domain.ConflictError{
			Message:      fmt.Sprintf("%s already exists", resource),
			ResourceType: resource,
			ResourceID:   id,
		}
	case IsPgForeignKeyError(err), IsPgCheckError(err):
		var pgErr *pgconn.PgError
		errors.As(err, &pgErr)
		return &domain.IntegrityError{Message: fmt.Sprintf("%s: %s violates %s", op, resource, pgErr.ConstraintName)}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
