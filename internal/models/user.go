package models

import "time"

// Role is the workspace role a user acts in
type Role string

// Workspace roles
const (
	RoleAdmin     Role = "admin"
	RoleTherapist Role = "therapist"
	RoleCoach     Role = "coach"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTherapist, RoleCoach:
		return true
	}
	return false
}

// User represents an issuer or administrator account
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"` // Never expose password hash in JSON
	TOTPSecret     string    `json:"-"` // Never expose TOTP secret in JSON
	Role           Role      `json:"role"`
	Enabled        bool      `json:"enabled"`
	MaxCertsPerDay int       `json:"max_certs_per_day"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
