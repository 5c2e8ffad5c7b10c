// Package users manages accounts, login sessions, and the identity resolver
// used by the authentication middleware.
package users
