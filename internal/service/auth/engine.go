package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tenantchat/internal/domain"
	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
	"tenantchat/internal/domain/services"
)

// Engine is the single authorization decision point.
//
// Rules, first match wins:
//  1. the principal owns the resource                -> allow (owner_match)
//  2. read of a public resource                      -> allow (public_read)
//  3. resource has no owning business                -> deny  (no_owning_tenant)
//  4. principal operates as the owning business      -> allow (tenant_member)
//  5. principal has no business                      -> deny  (no_tenant_affiliation)
//  6. active grant owner -> principal for the tag    -> allow (grant_active) else deny (no_grant)
//
// The affiliation check runs before the grant lookup so no lookup is issued for a
// nil accessing business; the outcome equals evaluating it last.
type Engine struct {
	grants        repositories.BusinessAccessRepository
	audit         services.AuditSink
	lookupTimeout time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// NewEngine creates the authorization engine. audit may be nil.
func NewEngine(
	grants repositories.BusinessAccessRepository,
	audit services.AuditSink,
	lookupTimeout time.Duration,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		grants:        grants,
		audit:         audit,
		lookupTimeout: lookupTimeout,
		now:           time.Now,
		logger:        logger,
	}
}

// SetClock replaces the time source used by Require
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Authorize evaluates one request. It never mutates state; the only I/O is the
// grant lookup, and a failure there is returned as domain.ErrUnavailable.
func (e *Engine) Authorize(ctx context.Context, principal models.Principal, resource models.ResourceRef, op models.Operation, now time.Time) (models.Decision, error) {
	decision, err := e.Decide(ctx, principal, resource, op, now)
	if err != nil {
		return models.Decision{}, err
	}

	if !decision.Allow || decision.CrossTenant() {
		e.emit(ctx, principal, resource, op, decision, now)
	}
	return decision, nil
}

// Decide evaluates like Authorize but records nothing. It is for callers that
// branch on the outcome instead of refusing the request.
func (e *Engine) Decide(ctx context.Context, principal models.Principal, resource models.ResourceRef, op models.Operation, now time.Time) (models.Decision, error) {
	decision, err := e.decide(ctx, principal, resource, op, now)
	if err != nil {
		// infrastructure fault: not a denial, so no audit event
		e.logger.Warn("authorization unavailable",
			"user_id", principal.UserID,
			"resource_kind", resource.Kind,
			"resource_id", resource.ID,
			"error", err)
		return models.Decision{}, err
	}
	return decision, nil
}

// Require captures now once, authorizes, and turns a denial into *domain.DeniedError
func (e *Engine) Require(ctx context.Context, principal models.Principal, resource models.ResourceRef, op models.Operation) error {
	decision, err := e.Authorize(ctx, principal, resource, op, e.now())
	if err != nil {
		return err
	}
	if !decision.Allow {
		return &domain.DeniedError{
			Reason:     string(decision.Reason),
			Operation:  string(op),
			ResourceID: resource.ID,
		}
	}
	return nil
}

func (e *Engine) decide(ctx context.Context, p models.Principal, res models.ResourceRef, op models.Operation, now time.Time) (models.Decision, error) {
	if res.OwnerUserID != nil && !p.IsAnonymous() && *res.OwnerUserID == p.UserID {
		return allow(models.ReasonOwnerMatch), nil
	}

	if op == models.OperationRead && res.Visibility != nil && *res.Visibility == models.VisibilityPublic {
		return allow(models.ReasonPublicRead), nil
	}

	if res.OwnerBusinessID == nil {
		return deny(models.ReasonNoOwningTenant), nil
	}
	owner := *res.OwnerBusinessID

	if p.MemberOf(owner) {
		return allow(models.ReasonTenantMember), nil
	}

	if p.BusinessID == nil {
		return deny(models.ReasonNoTenantAffiliation), nil
	}

	active, err := e.lookup(ctx, owner, *p.BusinessID, res.AccessType, now)
	if err != nil {
		return models.Decision{}, err
	}
	if active {
		return allow(models.ReasonGrantActive), nil
	}
	return deny(models.ReasonNoGrant), nil
}

// lookup bounds the grant read with the configured timeout
func (e *Engine) lookup(ctx context.Context, target, accessing, accessType string, now time.Time) (bool, error) {
	if e.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.lookupTimeout)
		defer cancel()
	}

	active, err := e.grants.IsActive(ctx, target, accessing, accessType, now)
	if err != nil {
		if errors.Is(err, domain.ErrUnavailable) {
			return false, err
		}
		return false, &domain.UnavailableError{Op: "grant lookup", Err: err}
	}
	return active, nil
}

func (e *Engine) emit(ctx context.Context, p models.Principal, res models.ResourceRef, op models.Operation, d models.Decision, now time.Time) {
	if e.audit == nil {
		return
	}

	outcome := "deny"
	if d.Allow {
		outcome = "allow"
	}
	event := models.AuditEvent{
		PrincipalUserID:     p.UserID,
		PrincipalBusinessID: p.BusinessID,
		TargetBusinessID:    res.OwnerBusinessID,
		ResourceKind:        res.Kind,
		ResourceID:          res.ID,
		AccessType:          res.AccessType,
		Operation:           op,
		Decision:            outcome,
		Reason:              d.Reason,
		Timestamp:           now,
	}

	if err := e.audit.Record(ctx, event); err != nil {
		e.logger.Warn("audit record failed", "reason", d.Reason, "error", err)
	}
}

func allow(reason models.DecisionReason) models.Decision {
	return models.Decision{Allow: true, Reason: reason}
}

func deny(reason models.DecisionReason) models.Decision {
	return models.Decision{Allow: false, Reason: reason}
}

var _ services.ResourceAuthorizer = (*Engine)(nil)
