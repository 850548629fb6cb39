package models

import "time"

// Business is a tenant: it owns conversations and RAG content.
type Business struct {
	ID              string    `json:"id" db:"id"`
	OwnerID         string    `json:"owner_id" db:"owner_id"`
	Name            string    `json:"name" db:"name"`
	IsPublic        bool      `json:"is_public" db:"is_public"`
	PublicAccessFee *float64  `json:"public_access_fee,omitempty" db:"public_access_fee"` // only meaningful when IsPublic
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// UserRole is the coarse role of a user account.
type UserRole string

const (
	UserRoleMember UserRole = "member"
	UserRoleAdmin  UserRole = "admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r == UserRoleMember || r == UserRoleAdmin
}

// User is a principal entity. BusinessID is the tenant the user operates as.
type User struct {
	ID         string    `json:"id" db:"id"`
	Email      string    `json:"email" db:"email"`
	Name       string    `json:"name" db:"name"`
	Role       UserRole  `json:"role" db:"role"`
	BusinessID *string   `json:"business_id,omitempty" db:"business_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Principal converts the user row into the identity the engine consumes.
func (u *User) Principal() Principal {
	return Principal{UserID: u.ID, BusinessID: u.BusinessID, Role: u.Role}
}
