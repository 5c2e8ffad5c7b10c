package groups

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/rbac"
)

// Handlers serves group and membership administration
type Handlers struct {
	store *Store
	gate  *rbac.Gate
}

// NewHandlers creates group handlers
func NewHandlers(store *Store, gate *rbac.Gate) *Handlers {
	return &Handlers{store: store, gate: gate}
}

// RegisterRoutes registers group routes on an authenticated router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/groups", h.gate.Wrap(h.listGroups)).Methods(http.MethodGet)
	router.Handle("/groups", h.gate.Wrap(h.createGroup, rbac.SuperAdminOnly...)).Methods(http.MethodPost)
	router.Handle("/groups/{groupId}", h.gate.Wrap(h.updateGroup, rbac.SuperAdminOnly...)).Methods(http.MethodPut)
	router.Handle("/groups/{groupId}", h.gate.Wrap(h.deleteGroup, rbac.SuperAdminOnly...)).Methods(http.MethodDelete)

	router.Handle("/group-members/{groupId}", h.gate.Wrap(h.listMembers)).Methods(http.MethodGet)
	router.Handle("/user-groups", h.gate.Wrap(h.addMember, rbac.SuperAdminOnly...)).Methods(http.MethodPost)
	router.Handle("/user-groups/{groupId}/{userId}", h.gate.Wrap(h.removeMember, rbac.SuperAdminOnly...)).Methods(http.MethodDelete)
}

type groupRequest struct {
	Name string `json:"name"`
}

// listGroups handles GET /groups
func (h *Handlers) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.store.List(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, groups)
}

// createGroup handles POST /groups
func (h *Handlers) createGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	group, err := h.store.Create(r.Context(), req.Name)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	h.auditGroup(r, audit.EventTypeAdminGroupCreate, group.ID, nil, map[string]interface{}{"name": group.Name},
		"created group "+group.Name)
	httputil.WriteCreated(w, "Group created successfully")
}

// updateGroup handles PUT /groups/{groupId}
func (h *Handlers) updateGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := httputil.ParsePathInt64OrError(w, r, "groupId")
	if !ok {
		return
	}

	var req groupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	before, err := h.store.Get(r.Context(), groupID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.store.Update(r.Context(), groupID, req.Name); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	h.auditGroup(r, audit.EventTypeAdminGroupUpdate, groupID,
		map[string]interface{}{"name": before.Name}, map[string]interface{}{"name": req.Name},
		"renamed group "+before.Name)
	httputil.WriteMessage(w, http.StatusOK, "Group updated successfully")
}

// deleteGroup handles DELETE /groups/{groupId}
func (h *Handlers) deleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := httputil.ParsePathInt64OrError(w, r, "groupId")
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), groupID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	h.auditGroup(r, audit.EventTypeAdminGroupDelete, groupID, nil, nil, "deleted group")
	httputil.WriteMessage(w, http.StatusOK, "Group deleted successfully")
}

// listMembers handles GET /group-members/{groupId}
func (h *Handlers) listMembers(w http.ResponseWriter, r *http.Request) {
	groupID, ok := httputil.ParsePathInt64OrError(w, r, "groupId")
	if !ok {
		return
	}

	members, err := h.store.ListMembers(r.Context(), groupID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

type membershipRequest struct {
	UserID  int64 `json:"userId"`
	GroupID int64 `json:"groupId"`
}

// addMember handles POST /user-groups
func (h *Handlers) addMember(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := httputil.Validate(
		httputil.RequirePositive(req.UserID, "userId"),
		httputil.RequirePositive(req.GroupID, "groupId"),
	); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	if err := h.store.AddMember(r.Context(), req.UserID, req.GroupID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	h.auditMember(r, audit.EventTypeAdminGroupMemberAdd, req.UserID, req.GroupID, "added user to group ")
	httputil.WriteCreated(w, "User added to group successfully")
}

// removeMember handles DELETE /user-groups/{groupId}/{userId}
func (h *Handlers) removeMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := httputil.ParsePathInt64OrError(w, r, "groupId")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}

	if err := h.store.RemoveMember(r.Context(), userID, groupID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	h.auditMember(r, audit.EventTypeAdminGroupMemberRemove, userID, groupID, "removed user from group ")
	httputil.WriteMessage(w, http.StatusOK, "User removed from group successfully")
}

func (h *Handlers) auditGroup(r *http.Request, eventType audit.EventType, groupID int64, before, after map[string]interface{}, message string) {
	ctx := r.Context()
	caller := middleware.CurrentUser(ctx)
	callerID := caller.ID

	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"actor":      caller.Username,
		"group_id":   groupID,
		"event_type": string(eventType),
	}).Info(message)

	var changes *audit.ChangeDetails
	if before != nil || after != nil {
		changes = &audit.ChangeDetails{Before: before, After: after}
	}
	if err := audit.FromContext(ctx).LogDataMutation(ctx, eventType, &callerID, audit.ResourceTypeGroup,
		strconv.FormatInt(groupID, 10), changes, message); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to write audit event")
	}
}

func (h *Handlers) auditMember(r *http.Request, eventType audit.EventType, userID, groupID int64, message string) {
	ctx := r.Context()
	caller := middleware.CurrentUser(ctx)
	callerID := caller.ID
	message += strconv.FormatInt(groupID, 10)

	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"actor":          caller.Username,
		"target_user_id": userID,
		"group_id":       groupID,
	}).Info(message)

	if err := audit.FromContext(ctx).LogAdminAction(ctx, eventType, &callerID, &userID, message); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to write audit event")
	}
}
