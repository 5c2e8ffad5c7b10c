package users

import (
	"context"
	"fmt"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/auth"
)

// EnsureAdmin creates a SUPER_ADMIN account named username unless a user with
// that name already exists. It reports whether an account was created.
func (s *Store) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if err := ValidateUsername(username); err != nil {
		return false, fmt.Errorf("invalid admin username: %w", err)
	}
	if err := auth.ValidatePassword(password); err != nil {
		return false, fmt.Errorf("invalid admin password: %w", err)
	}

	_, err := s.GetByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !apperr.HasCode(err, apperr.CodeUserNotFound) {
		return false, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash admin password: %w", err)
	}

	_, err = s.Create(ctx, CreateInput{
		Username:           username,
		FullName:           "System Administrator",
		PasswordHash:       hash,
		Role:               auth.RoleSuperAdmin,
		MustChangePassword: true,
	})
	if apperr.HasCode(err, apperr.CodeUserExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
