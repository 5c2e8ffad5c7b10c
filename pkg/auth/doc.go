// Package auth provides the identity primitives of the document service:
// users and their roles, session tokens, and password hashing.
//
// # Roles
//
// Every user holds exactly one role:
//
//	auth.RoleSuperAdmin   // full administration, inheritance propagation
//	auth.RoleContentAdmin // folder, file and folder-grant management
//	auth.RoleUser         // read-only, restricted to what their groups were granted
//
// Administrative roles bypass the group visibility filter on reads.
//
// # Session tokens
//
// TokenManager issues HS256 JWTs carrying the user id:
//
//	tm := auth.NewTokenManager(secret, 30*time.Minute)
//	token, expiresAt, err := tm.Issue(user)
//	claims, err := tm.Validate(token)
//
// Tokens carry identity only. Role and active state are looked up on every
// request so that role changes and account disabling take effect immediately.
//
// # Passwords
//
// HashPassword and CheckPassword wrap bcrypt. ValidatePassword enforces the
// account password policy.
package auth
