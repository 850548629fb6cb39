package models

import "time"

// BusinessAccess is a directed grant: TargetBusinessID lets AccessingBusinessID
// access its resources under AccessType.
type BusinessAccess struct {
	ID                  string     `json:"id" db:"id"`
	AccessingBusinessID string     `json:"accessing_business_id" db:"accessing_business_id"`
	TargetBusinessID    string     `json:"target_business_id" db:"target_business_id"`
	HasAccess           bool       `json:"has_access" db:"has_access"`
	AccessType          string     `json:"access_type" db:"access_type"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}

// ActiveAt reports whether the grant is usable at now. Expiry is exclusive:
// a grant whose ExpiresAt equals now is already expired.
func (g *BusinessAccess) ActiveAt(now time.Time) bool {
	if !g.HasAccess {
		return false
	}
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}
