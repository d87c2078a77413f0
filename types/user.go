package types

import (
	"strings"
	"time"
)

// Role is the authorization level of an account.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Roles lists every valid role in ascending privilege order.
var Roles = []Role{RoleUser, RoleModerator, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Privileged reports whether r may review reports it does not own.
func (r Role) Privileged() bool {
	return r == RoleModerator || r == RoleAdmin
}

// User represents an account in the system.
// It contains identity, role, and activation state.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the user's login address, stored trimmed and lower-cased.
	Email string `json:"email" db:"email"`

	// FullName is the user's display name.
	FullName string `json:"full_name" db:"full_name"`

	// Role indicates the user's authorization level. It is fixed at
	// creation time and only changed by administrative provisioning.
	Role Role `json:"role" db:"role"`

	// IsActive is false once an admin deactivates the account.
	IsActive bool `json:"is_active" db:"is_active"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Summary returns the public identity of the user.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
	}
}

// UserSummary is the identity attached to reports and notes.
type UserSummary struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role,omitempty"`
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
