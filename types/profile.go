package types

import "time"

// Role binds an identity to one portal of the system.
type Role string

// Supported roles.
const (
	RoleFieldWorker Role = "field_worker"
	RoleBuyer       Role = "buyer"
	RoleAdmin       Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleFieldWorker, RoleBuyer, RoleAdmin:
		return true
	default:
		return false
	}
}

// Profile is the application-level record binding an identity to a role.
// Exactly one profile may exist per identity.
type Profile struct {
	// UserID is the identity this profile belongs to.
	UserID string `json:"user_id" db:"user_id"`

	// Role decides which portal the identity may use.
	Role Role `json:"role" db:"role"`

	// FullName is the display name of the person behind the identity.
	FullName string `json:"full_name" db:"full_name"`

	// CreatedAt is the timestamp when the profile was provisioned.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the profile.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
