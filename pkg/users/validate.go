package users

import (
	"regexp"
	"unicode/utf8"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/auth"
)

const minFullNameLength = 8

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9.@-]{4,}$`)
	fullNamePattern = regexp.MustCompile(`^[\p{L}\s]+$`)
)

// ValidateUsername checks the login name format
func ValidateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return apperr.BadRequest(apperr.CodeInvalidInput, "Invalid username")
	}
	return nil
}

// ValidateFullName requires at least 8 characters, letters and spaces only
func ValidateFullName(name string) error {
	if utf8.RuneCountInString(name) < minFullNameLength {
		return apperr.BadRequest(apperr.CodeInvalidInput, "Full name must be at least 8 characters")
	}
	if !fullNamePattern.MatchString(name) {
		return apperr.BadRequest(apperr.CodeInvalidInput, "Full name may only contain letters and spaces")
	}
	return nil
}

// ValidateRole rejects unknown roles
func ValidateRole(role string) (auth.Role, error) {
	r, err := auth.ParseRole(role)
	if err != nil {
		return "", apperr.BadRequest(apperr.CodeInvalidInput, "Invalid role")
	}
	return r, nil
}

// ValidateNewPassword applies the account password policy
func ValidateNewPassword(password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		return apperr.BadRequest(apperr.CodeInvalidInput, "Invalid password").WithDetail("%v", err)
	}
	return nil
}
