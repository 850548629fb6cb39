package services

import (
	"context"
	"time"

	"tenantchat/internal/domain/models"
)

// ResourceAuthorizer is the single decision point for tenant-scoped access.
//
// Design principle: services load the resource metadata, call the authorizer,
// and only touch the resource on Allow.
type ResourceAuthorizer interface {
	// Authorize evaluates the rules for one request at the given instant.
	// A denial is a normal Decision, not an error; the error return is reserved
	// for grant-store failures (domain.ErrUnavailable).
	Authorize(ctx context.Context, principal models.Principal, resource models.ResourceRef, op models.Operation, now time.Time) (models.Decision, error)

	// Decide is Authorize without the audit trail. Use it only where a denial
	// narrows the result instead of refusing the request.
	Decide(ctx context.Context, principal models.Principal, resource models.ResourceRef, op models.Operation, now time.Time) (models.Decision, error)

	// Require captures now once, authorizes, and converts a denial into *domain.DeniedError
	Require(ctx context.Context, principal models.Principal, resource models.ResourceRef, op models.Operation) error
}

// IdentityResolver turns a session token into the acting principal.
// Returns domain.ErrUnauthorized when the token is missing, invalid or expired.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*models.Principal, error)
}

// AuditSink receives authorization audit events
type AuditSink interface {
	Record(ctx context.Context, event models.AuditEvent) error
}

// AccessTypes maps a resource kind and operation to the access type tag
// grants are matched against.
type AccessTypes interface {
	For(kind models.ResourceKind, op models.Operation) string
	Known(accessType string) bool
}
