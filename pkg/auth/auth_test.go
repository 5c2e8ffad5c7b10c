package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole(t *testing.T) {
	assert.True(t, RoleSuperAdmin.Valid())
	assert.True(t, RoleUser.Valid())
	assert.False(t, Role("ADMIN").Valid())

	assert.True(t, RoleSuperAdmin.IsAdmin())
	assert.True(t, RoleContentAdmin.IsAdmin())
	assert.False(t, RoleUser.IsAdmin())

	r, err := ParseRole("CONTENT_ADMIN")
	require.NoError(t, err)
	assert.Equal(t, RoleContentAdmin, r)

	_, err = ParseRole("root")
	assert.Error(t, err)
}

func TestAuthContextHasRole(t *testing.T) {
	var nilCtx *AuthContext
	assert.False(t, nilCtx.HasRole(RoleUser))

	ac := &AuthContext{User: &User{ID: 1, Role: RoleContentAdmin}}
	assert.True(t, ac.HasRole(RoleSuperAdmin, RoleContentAdmin))
	assert.False(t, ac.HasRole(RoleSuperAdmin))
}

func TestTokenManager(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Minute)

	t.Run("round trip", func(t *testing.T) {
		token, expiresAt, err := tm.Issue(&User{ID: 42})
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 5*time.Second)

		claims, err := tm.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, int64(42), claims.UserID)
		assert.Equal(t, "42", claims.Subject)
	})

	t.Run("rejects missing user", func(t *testing.T) {
		_, _, err := tm.Issue(nil)
		assert.Error(t, err)
	})

	t.Run("rejects empty and garbage", func(t *testing.T) {
		_, err := tm.Validate("")
		assert.ErrorIs(t, err, ErrInvalidToken)

		_, err = tm.Validate("not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects other secret", func(t *testing.T) {
		other := NewTokenManager("other-secret", time.Minute)
		token, _, err := other.Issue(&User{ID: 1})
		require.NoError(t, err)

		_, err = tm.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects expired", func(t *testing.T) {
		past := NewTokenManager("test-secret", time.Minute)
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, _, err := past.Issue(&User{ID: 1})
		require.NoError(t, err)

		_, err = tm.Validate(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("rejects none algorithm", func(t *testing.T) {
		claims := &Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{Issuer: TokenIssuer}}
		token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = tm.Validate(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("default ttl", func(t *testing.T) {
		assert.Equal(t, DefaultTokenTTL, NewTokenManager("s", 0).TTL())
	})
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		want     error
	}{
		{"Sh0rt!", ErrPasswordTooShort},
		{"alllowercase1!", ErrPasswordWeak},
		{"NoDigitsHere!", ErrPasswordWeak},
		{"NoSymbols123", ErrPasswordWeak},
		{"Valid#Passw0rd", nil},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidatePassword(tt.password))
		})
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("Valid#Passw0rd")
	require.NoError(t, err)
	assert.NotEqual(t, "Valid#Passw0rd", hash)

	assert.True(t, CheckPassword(hash, "Valid#Passw0rd"))
	assert.False(t, CheckPassword(hash, "wrong"))
	assert.False(t, CheckPassword("not-a-hash", "Valid#Passw0rd"))
}
