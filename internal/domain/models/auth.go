package models

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SupabaseClaims represents the JWT claims structure from Supabase Auth.
// See: https://supabase.com/docs/guides/auth/jwts
type SupabaseClaims struct {
	jwt.RegisteredClaims                        // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	Email                string                 `json:"email"`
	AppMetadata          map[string]interface{} `json:"app_metadata"`
	UserMetadata         map[string]interface{} `json:"user_metadata"`
	Role                 string                 `json:"role"` // "authenticated" or "anon"
	SessionID            string                 `json:"session_id"`
	IsAnonymous          bool                   `json:"is_anonymous"`
}

// GetUserID returns the user ID from the JWT subject claim.
func (c *SupabaseClaims) GetUserID() string {
	return c.Subject
}

// DisplayName picks user_metadata.name, then full_name, then the local part of the email.
func (c *SupabaseClaims) DisplayName() string {
	for _, key := range []string{"name", "full_name"} {
		if v, ok := c.UserMetadata[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if at := strings.Index(c.Email, "@"); at > 0 {
		return c.Email[:at]
	}
	return c.Email
}

// Principal is the resolved identity making a request.
// An anonymous principal has an empty UserID; it can only read public conversations.
type Principal struct {
	UserID     string   `json:"user_id"`
	BusinessID *string  `json:"business_id,omitempty"`
	Role       UserRole `json:"role"`
}

// IsAnonymous reports whether no user was resolved for the request.
func (p Principal) IsAnonymous() bool {
	return p.UserID == ""
}

// IsAdmin reports whether the principal may perform super-admin actions.
func (p Principal) IsAdmin() bool {
	return p.Role == UserRoleAdmin
}

// MemberOf reports whether the principal operates as the given business.
func (p Principal) MemberOf(businessID string) bool {
	return p.BusinessID != nil && *p.BusinessID == businessID
}
