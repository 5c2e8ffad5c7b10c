// Package api assembles the folio HTTP REST API.
//
// # Overview
//
// Each domain package (users, groups, folders, files, grants, inheritance,
// audit) owns its handlers and registers them on a router handed out by
// Server. This package only decides which router a domain lands on and
// which middleware surrounds it.
//
// # Middleware
//
// Every request passes, outermost first, through:
//
//   - request id and request-scoped logger
//   - panic recovery
//   - access logging
//   - CORS
//   - request body limit
//   - audit logger and request metadata
//   - OpenTelemetry span
//
// Routes under the protected subrouter additionally pass the authentication
// middleware (identity and active check) before the per-route role gate.
// Prometheus request metrics are recorded after route matching so that the
// route template, not the raw path, becomes the label.
//
// # Routes
//
// Public:
//
//	POST   /auth/login
//	POST   /auth/logout
//
// Authenticated (role gate per route):
//
//	GET    /auth/me
//	/users/...                        SUPER_ADMIN
//	/groups/..., /user-groups/...     reads any, writes SUPER_ADMIN
//	/folders/...                      reads any, writes SUPER_ADMIN or CONTENT_ADMIN
//	/files/...                        reads any, writes SUPER_ADMIN or CONTENT_ADMIN
//	/group-folders/...                SUPER_ADMIN or CONTENT_ADMIN
//	/group-files/...                  SUPER_ADMIN
//	/folder-permissions/{folderId}    any, scoped
//	/file-permissions/{fileId}        any, scoped
//	/folder/{folderId}/group/{groupId}/inheritance  SUPER_ADMIN
//	GET    /audit-logs                SUPER_ADMIN
//
// # Usage
//
//	server := api.NewServer(api.Deps{
//		DB:     db,
//		Tokens: auth.NewTokenManager(secret, 30*time.Minute),
//		Blobs:  blobs,
//		Logger: logger,
//	})
//	http.ListenAndServe(":8080", server)
package api
