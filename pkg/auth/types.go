package auth

import (
	"fmt"
	"time"
)

// Role is a user's system-wide role
type Role string

const (
	RoleSuperAdmin   Role = "SUPER_ADMIN"
	RoleContentAdmin Role = "CONTENT_ADMIN"
	RoleUser         Role = "USER"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleContentAdmin, RoleUser:
		return true
	}
	return false
}

// IsAdmin reports whether r bypasses the group visibility filter
func (r Role) IsAdmin() bool {
	return r == RoleSuperAdmin || r == RoleContentAdmin
}

// ParseRole converts a string into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role: %q", s)
	}
	return r, nil
}

// User represents an account
type User struct {
	ID                 int64     `json:"id"`
	Username           string    `json:"username"`
	FullName           string    `json:"fullname"`
	Role               Role      `json:"role"`
	IsActive           bool      `json:"isActive"`
	MustChangePassword bool      `json:"mustChangePassword"`
	PasswordHash       string    `json:"-"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// AuthContext holds the authenticated caller
type AuthContext struct {
	User   *User
	Claims *Claims
}

// HasRole checks if the caller holds any of roles
func (ac *AuthContext) HasRole(roles ...Role) bool {
	if ac == nil || ac.User == nil {
		return false
	}
	for _, r := range roles {
		if ac.User.Role == r {
			return true
		}
	}
	return false
}
