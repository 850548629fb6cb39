package models

import "time"

// Operation is the kind of access requested on a resource.
type Operation string

const (
	OperationRead  Operation = "read"
	OperationWrite Operation = "write"
)

// ResourceKind names the tenant-scoped resource types.
type ResourceKind string

const (
	ResourceConversation ResourceKind = "conversation"
	ResourceMessage      ResourceKind = "message"
	ResourceRagChunk     ResourceKind = "rag_chunk"
	ResourceRagQuery     ResourceKind = "rag_query"
)

// DecisionReason is part of the authorization contract: callers use it for
// both the user-facing message and the audit log.
type DecisionReason string

const (
	ReasonOwnerMatch          DecisionReason = "owner_match"
	ReasonPublicRead          DecisionReason = "public_read"
	ReasonTenantMember        DecisionReason = "tenant_member"
	ReasonGrantActive         DecisionReason = "grant_active"
	ReasonNoGrant             DecisionReason = "no_grant"
	ReasonNoOwningTenant      DecisionReason = "no_owning_tenant"
	ReasonNoTenantAffiliation DecisionReason = "no_tenant_affiliation"
)

// Decision is the outcome of a single authorization evaluation.
type Decision struct {
	Allow  bool           `json:"allow"`
	Reason DecisionReason `json:"reason"`
}

// CrossTenant reports whether the decision was granted through a delegated grant.
func (d Decision) CrossTenant() bool {
	return d.Allow && d.Reason == ReasonGrantActive
}

// ResourceRef carries the ownership metadata the engine decides on.
type ResourceRef struct {
	Kind            ResourceKind `json:"kind"`
	ID              string       `json:"id,omitempty"`
	OwnerBusinessID *string      `json:"owner_business_id,omitempty"`
	OwnerUserID     *string      `json:"owner_user_id,omitempty"`
	Visibility      *Visibility  `json:"visibility,omitempty"`
	AccessType      string       `json:"access_type"`
}

// AuditEvent is emitted on every denial and every cross-tenant allow.
type AuditEvent struct {
	PrincipalUserID     string         `json:"principal_user_id"`
	PrincipalBusinessID *string        `json:"principal_business_id,omitempty"`
	TargetBusinessID    *string        `json:"target_business_id,omitempty"`
	ResourceKind        ResourceKind   `json:"resource_kind"`
	ResourceID          string         `json:"resource_id,omitempty"`
	AccessType          string         `json:"access_type"`
	Operation           Operation      `json:"operation"`
	Decision            string         `json:"decision"` // "allow" or "deny"
	Reason              DecisionReason `json:"reason"`
	Timestamp           time.Time      `json:"timestamp"`
}
