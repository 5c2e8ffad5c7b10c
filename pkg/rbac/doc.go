// Package rbac implements the role gate and visibility stages of the
// authorization gate.
//
// # Pipeline
//
// Every protected request passes four stages in order:
//
//  1. Identity (middleware.AuthMiddleware): a valid session token naming an existing user.
//  2. Active check (middleware.AuthMiddleware): disabled accounts are rejected with 401.
//  3. Role gate (Gate.RequireRole): the user's role must be in the route's set, else 403 FORBIDDEN_ROLE.
//  4. Visibility (Gate.Scope): read handlers filter results to the caller's Scope.
//
// # Roles
//
//	SUPER_ADMIN    full access
//	CONTENT_ADMIN  folders, files and folder grants
//	USER           read-only, limited to what their groups were granted
//
// # Usage
//
//	gate := rbac.NewGate(rbac.NewVisibility(groupStore, grantStore), metrics)
//	router.Handle("/folders", gate.Wrap(h.createFolder, rbac.Admins...)).Methods(http.MethodPost)
//	router.Handle("/folders/all", gate.Wrap(h.listFolders)).Methods(http.MethodGet)
//
// Inside a read handler:
//
//	scope, err := gate.Scope(r.Context())
//	if !scope.CanSeeFolder(folderID) {
//		// answer 404 FOLDER_NOT_FOUND
//	}
//
// Admin roles bypass visibility entirely. Mutating routes are role-gated
// only and never consult a scope.
package rbac
