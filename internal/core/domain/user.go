package domain

import (
	"encoding/json"
	"time"
)

// Role IDs are fixed reference data seeded once at first boot.
const (
	RoleUser  = 1
	RoleAdmin = 2
)

// Role is a named permission tier. Users reference exactly one role.
type Role struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
}

// User models an authenticated actor in the system. The ID is a fixed-length
// generated code stored in canonical upper case, so lookups never need
// case-insensitive comparison. Accounts are never hard-deleted; deactivation
// flips IsActive.
type User struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	Username     string          `json:"username"`
	DisplayName  string          `json:"display_name"`
	PasswordHash string          `json:"-"`
	RoleID       int             `json:"role_id"`
	Role         Role            `json:"role"`
	IsActive     bool            `json:"is_active"`
	Settings     json.RawMessage `json:"settings,omitempty"`
	LastSeenAt   time.Time       `json:"last_seen_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IsAdmin reports whether the user's resolved role carries admin rights.
func (u *User) IsAdmin() bool {
	return u.Role.IsAdmin
}
