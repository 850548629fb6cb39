package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
)

// Resolver maps a session token to the Principal the authorization engine consumes.
// Users seen for the first time are provisioned as members without an affiliation.
type Resolver struct {
	verifier JWTVerifier
	users    repositories.UserRepository
	logger   *slog.Logger
}

// NewResolver creates an identity resolver
func NewResolver(verifier JWTVerifier, users repositories.UserRepository, logger *slog.Logger) *Resolver {
	return &Resolver{verifier: verifier, users: users, logger: logger}
}

// Resolve verifies the token and loads (or provisions) the user row.
// The business affiliation always comes from the user row, never from token claims.
func (r *Resolver) Resolve(ctx context.Context, token string) (*models.Principal, error) {
	claims, err := r.verifier.VerifyToken(strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}

	user, err := r.users.GetByID(ctx, claims.GetUserID())
	if errors.Is(err, domain.ErrNotFound) {
		user, err = r.provision(ctx, claims)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve user %s: %w", claims.GetUserID(), err)
	}

	p := user.Principal()
	return &p, nil
}

func (r *Resolver) provision(ctx context.Context, claims *models.SupabaseClaims) (*models.User, error) {
	user := &models.User{
		ID:    claims.GetUserID(),
		Email: claims.Email,
		Name:  claims.DisplayName(),
		Role:  models.UserRoleMember,
	}

	err := r.users.Create(ctx, user)
	if errors.Is(err, domain.ErrConflict) {
		// concurrent first request won the insert
		return r.users.GetByID(ctx, user.ID)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("user provisioned", "user_id", user.ID, "email", user.Email)
	return user, nil
}
