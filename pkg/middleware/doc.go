// Package middleware provides request authentication and rate limiting.
//
// AuthMiddleware runs the identity and active-account stages of the
// authorization gate: it reads the session token (cookie or Bearer header),
// validates it, resolves the user, and rejects inactive accounts. Both stages
// answer 401 UNAUTHENTICATED. The role gate and visibility stages live in
// package rbac.
//
//	authn := middleware.NewAuthMiddleware(tokens, resolver, metrics)
//	protected := router.NewRoute().Subrouter()
//	protected.Use(authn.Handler)
//
// RateLimit throttles keyed requests. Two limiters are available:
//
//	middleware.NewRateLimiter(cfg)                            // in-process token bucket
//	middleware.NewDistributedRateLimiter(redis, cfg, "login") // shared fixed window
package middleware
