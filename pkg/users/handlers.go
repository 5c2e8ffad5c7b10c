package users

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/rbac"
)

// Handlers serves user administration
type Handlers struct {
	store    *Store
	resolver *Resolver
	gate     *rbac.Gate
}

// NewHandlers creates user handlers
func NewHandlers(store *Store, resolver *Resolver, gate *rbac.Gate) *Handlers {
	return &Handlers{
		store:    store,
		resolver: resolver,
		gate:     gate,
	}
}

// RegisterRoutes registers user routes on an authenticated router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/users", h.gate.Wrap(h.listUsers, rbac.SuperAdminOnly...)).Methods(http.MethodGet)
	router.Handle("/users", h.gate.Wrap(h.createUser, rbac.SuperAdminOnly...)).Methods(http.MethodPost)
	router.Handle("/users/{userId}/update", h.gate.Wrap(h.updateUser, rbac.SuperAdminOnly...)).Methods(http.MethodPut)
	router.Handle("/users/{userId}/disable", h.gate.Wrap(h.disableUser, rbac.SuperAdminOnly...)).Methods(http.MethodPut)
	router.Handle("/users/{userId}/enable", h.gate.Wrap(h.enableUser, rbac.SuperAdminOnly...)).Methods(http.MethodPut)
	router.Handle("/users/{userId}/reset-password", h.gate.Wrap(h.resetPassword)).Methods(http.MethodPut)
	router.Handle("/users/{userId}", h.gate.Wrap(h.deleteUser, rbac.SuperAdminOnly...)).Methods(http.MethodDelete)
}

type userView struct {
	ID       int64     `json:"id"`
	FullName string    `json:"fullname"`
	Username string    `json:"username"`
	Role     auth.Role `json:"role"`
	IsActive bool      `json:"isActive"`
}

// listUsers handles GET /users
func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.List(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	views := make([]userView, len(users))
	for i, u := range users {
		views[i] = userView{ID: u.ID, FullName: u.FullName, Username: u.Username, Role: u.Role, IsActive: u.IsActive}
	}
	httputil.WriteSuccess(w, views)
}

type createUserRequest struct {
	Username string `json:"username"`
	FullName string `json:"fullname"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// createUser handles POST /users
func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	role, err := ValidateRole(req.Role)
	if err == nil {
		err = httputil.Validate(
			ValidateUsername(req.Username),
			ValidateFullName(req.FullName),
			ValidateNewPassword(req.Password),
		)
	}
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}

	user, err := h.store.Create(r.Context(), CreateInput{
		Username:     req.Username,
		FullName:     req.FullName,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	h.auditAdmin(r, audit.EventTypeAdminUserCreate, user.ID, "created user "+user.Username+" with role "+string(role))
	httputil.WriteCreated(w, "User created successfully")
}

type updateUserRequest struct {
	FullName string `json:"fullname"`
	Role     string `json:"role"`
}

// updateUser handles PUT /users/{userId}/update
func (h *Handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}

	var req updateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	role, err := ValidateRole(req.Role)
	if err == nil {
		err = ValidateFullName(req.FullName)
	}
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	if err := h.store.Update(r.Context(), userID, req.FullName, role); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	h.resolver.Invalidate(userID)

	h.auditAdmin(r, audit.EventTypeAdminUserUpdate, userID, "updated user profile, role "+string(role))
	httputil.WriteMessage(w, http.StatusOK, "User updated successfully")
}

// disableUser handles PUT /users/{userId}/disable
func (h *Handlers) disableUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// enableUser handles PUT /users/{userId}/enable
func (h *Handlers) enableUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handlers) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}

	if !active && isSelf(r, userID) {
		httputil.WriteError(w, r, apperr.BadRequest(apperr.CodeCannotDisableSelf, "You cannot disable your own account"))
		return
	}

	if err := h.store.SetActive(r.Context(), userID, active); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	h.resolver.Invalidate(userID)

	if active {
		h.auditAdmin(r, audit.EventTypeAdminUserActivate, userID, "enabled user")
		httputil.WriteMessage(w, http.StatusOK, "User enabled successfully")
		return
	}
	h.auditAdmin(r, audit.EventTypeAdminUserDeactivate, userID, "disabled user")
	httputil.WriteMessage(w, http.StatusOK, "User disabled successfully")
}

type resetPasswordRequest struct {
	Password           string `json:"password"`
	MustChangePassword *bool  `json:"mustChangePassword"`
}

// resetPassword handles PUT /users/{userId}/reset-password. A SUPER_ADMIN may
// reset any account; everyone else only their own.
func (h *Handlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}

	caller := middleware.CurrentUser(r.Context())
	self := caller.ID == userID
	if !self && caller.Role != auth.RoleSuperAdmin {
		httputil.WriteError(w, r, apperr.ForbiddenRole().WithDetail("user %s tried to reset password of user %d", caller.Username, userID))
		return
	}

	var req resetPasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Password) < auth.MinPasswordLength || len(req.Password) > auth.MaxPasswordLength {
		httputil.WriteError(w, r, apperr.BadRequest(apperr.CodeInvalidInput, "Password must be between 8 and 72 characters"))
		return
	}

	// Admin resets force a change at next login unless told otherwise;
	// a user choosing their own password does not.
	mustChange := !self
	if req.MustChangePassword != nil {
		mustChange = *req.MustChangePassword
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}

	if err := h.store.SetPassword(r.Context(), userID, hash, mustChange); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	h.resolver.Invalidate(userID)

	callerID := caller.ID
	_ = audit.FromContext(r.Context()).LogAuthentication(r.Context(), audit.EventTypeAuthPasswordReset, &callerID,
		caller.Username, audit.EventStatusSuccess, "password reset for user "+formatID(userID))
	httputil.WriteMessage(w, http.StatusOK, "Password reset successfully")
}

// deleteUser handles DELETE /users/{userId}
func (h *Handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}

	if isSelf(r, userID) {
		httputil.WriteError(w, r, apperr.BadRequest(apperr.CodeCannotDeleteSelf, "You cannot delete your own account"))
		return
	}

	if err := h.store.Delete(r.Context(), userID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	h.resolver.Invalidate(userID)

	h.auditAdmin(r, audit.EventTypeAdminUserDelete, userID, "deleted user")
	httputil.WriteMessage(w, http.StatusOK, "User deleted successfully")
}

func (h *Handlers) auditAdmin(r *http.Request, eventType audit.EventType, targetID int64, message string) {
	caller := middleware.CurrentUser(r.Context())
	callerID := caller.ID

	observability.FromContext(r.Context()).WithFields(map[string]interface{}{
		"actor":          caller.Username,
		"target_user_id": targetID,
		"event_type":     string(eventType),
	}).Info(message)

	if err := audit.FromContext(r.Context()).LogAdminAction(r.Context(), eventType, &callerID, &targetID, message); err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("failed to write audit event")
	}
}

func isSelf(r *http.Request, userID int64) bool {
	caller := middleware.CurrentUser(r.Context())
	return caller != nil && caller.ID == userID
}
