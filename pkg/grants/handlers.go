package grants

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/rbac"
)

// Handlers serves the direct grant toggles and per-resource grant listings
type Handlers struct {
	store   *Store
	gate    *rbac.Gate
	metrics *observability.Metrics
}

// NewHandlers creates grant handlers. metrics may be nil.
func NewHandlers(store *Store, gate *rbac.Gate, metrics *observability.Metrics) *Handlers {
	return &Handlers{
		store:   store,
		gate:    gate,
		metrics: metrics,
	}
}

// RegisterRoutes registers grant routes on an authenticated router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/group-folders", h.gate.Wrap(h.grantFolder, rbac.Admins...)).Methods(http.MethodPost)
	router.Handle("/group-folders/{groupId}/{folderId}", h.gate.Wrap(h.revokeFolder, rbac.Admins...)).Methods(http.MethodDelete)
	router.Handle("/group-files", h.gate.Wrap(h.grantFile, rbac.SuperAdminOnly...)).Methods(http.MethodPost)
	router.Handle("/group-files/{groupId}/{fileId}", h.gate.Wrap(h.revokeFile, rbac.SuperAdminOnly...)).Methods(http.MethodDelete)

	router.Handle("/folder-permissions/{folderId}", h.gate.Wrap(h.listFolderGrants)).Methods(http.MethodGet)
	router.Handle("/file-permissions/{fileId}", h.gate.Wrap(h.listFileGrants)).Methods(http.MethodGet)
}

type folderGrantRequest struct {
	GroupID  int64 `json:"groupId"`
	FolderID int64 `json:"folderId"`
}

type fileGrantRequest struct {
	GroupID int64 `json:"groupId"`
	FileID  int64 `json:"fileId"`
}

// grantFolder handles POST /group-folders
func (h *Handlers) grantFolder(w http.ResponseWriter, r *http.Request) {
	var req folderGrantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := httputil.Validate(
		httputil.RequirePositive(req.GroupID, "groupId"),
		httputil.RequirePositive(req.FolderID, "folderId"),
	); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	err := h.store.GrantFolderStrict(r.Context(), req.GroupID, req.FolderID)
	h.record("folder", "grant", err)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	h.audit(r, audit.EventTypeAuthzFolderGrant, audit.ResourceTypeFolder, req.FolderID, req.GroupID)
	httputil.WriteCreated(w, "Group permission on folder added successfully")
}

// revokeFolder handles DELETE /group-folders/{groupId}/{folderId}
func (h *Handlers) revokeFolder(w http.ResponseWriter, r *http.Request) {
	groupID, folderID, ok := pathPair(w, r, "groupId", "folderId")
	if !ok {
		return
	}

	err := h.store.RevokeFolderStrict(r.Context(), groupID, folderID)
	h.record("folder", "revoke", err)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	h.audit(r, audit.EventTypeAuthzFolderRevoke, audit.ResourceTypeFolder, folderID, groupID)
	httputil.WriteMessage(w, http.StatusOK, "Group permission on folder removed successfully")
}

// grantFile handles POST /group-files
func (h *Handlers) grantFile(w http.ResponseWriter, r *http.Request) {
	var req fileGrantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := httputil.Validate(
		httputil.RequirePositive(req.GroupID, "groupId"),
		httputil.RequirePositive(req.FileID, "fileId"),
	); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	err := h.store.GrantFileStrict(r.Context(), req.GroupID, req.FileID)
	h.record("file", "grant", err)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	h.audit(r, audit.EventTypeAuthzFileGrant, audit.ResourceTypeFile, req.FileID, req.GroupID)
	httputil.WriteCreated(w, "Group permission on file added successfully")
}

// revokeFile handles DELETE /group-files/{groupId}/{fileId}
func (h *Handlers) revokeFile(w http.ResponseWriter, r *http.Request) {
	groupID, fileID, ok := pathPair(w, r, "groupId", "fileId")
	if !ok {
		return
	}

	err := h.store.RevokeFileStrict(r.Context(), groupID, fileID)
	h.record("file", "revoke", err)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	h.audit(r, audit.EventTypeAuthzFileRevoke, audit.ResourceTypeFile, fileID, groupID)
	httputil.WriteMessage(w, http.StatusOK, "Group permission on file removed successfully")
}

// listFolderGrants handles GET /folder-permissions/{folderId}
func (h *Handlers) listFolderGrants(w http.ResponseWriter, r *http.Request) {
	folderID, ok := httputil.ParsePathInt64OrError(w, r, "folderId")
	if !ok {
		return
	}

	if err := h.visibleFolder(r.Context(), folderID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	grants, err := h.store.ListFolderGrants(r.Context(), folderID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, grants)
}

// listFileGrants handles GET /file-permissions/{fileId}
func (h *Handlers) listFileGrants(w http.ResponseWriter, r *http.Request) {
	fileID, ok := httputil.ParsePathInt64OrError(w, r, "fileId")
	if !ok {
		return
	}

	if err := h.visibleFile(r.Context(), fileID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	grants, err := h.store.ListFileGrants(r.Context(), fileID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, grants)
}

// visibleFolder reports a folder outside the caller's scope as missing
func (h *Handlers) visibleFolder(ctx context.Context, folderID int64) error {
	scope, err := h.gate.Scope(ctx)
	if err != nil {
		return err
	}
	if !scope.CanSeeFolder(folderID) {
		return apperr.NotFound(apperr.CodeFolderNotFound, "Folder not found").WithDetail("folder %d outside caller scope", folderID)
	}
	return h.store.RequireFolder(ctx, folderID)
}

// visibleFile reports a file outside the caller's scope as missing
func (h *Handlers) visibleFile(ctx context.Context, fileID int64) error {
	scope, err := h.gate.Scope(ctx)
	if err != nil {
		return err
	}
	if !scope.CanSeeFile(fileID) {
		return apperr.NotFound(apperr.CodeFileNotFound, "File not found").WithDetail("file %d outside caller scope", fileID)
	}
	return h.store.RequireFile(ctx, fileID)
}

func (h *Handlers) record(resource, action string, err error) {
	if h.metrics == nil {
		return
	}
	status := observability.StatusLabel(err)
	if err != nil && apperr.StatusOf(err) < http.StatusInternalServerError {
		status = "rejected"
	}
	h.metrics.GrantChangesTotal.WithLabelValues(resource, action, status).Inc()
}

func (h *Handlers) audit(r *http.Request, eventType audit.EventType, resourceType audit.ResourceType, resourceID, groupID int64) {
	ctx := r.Context()
	caller := middleware.CurrentUser(ctx)
	callerID := caller.ID
	message := fmt.Sprintf("%s %s %d for group %d", eventType, resourceType, resourceID, groupID)

	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"actor":       caller.Username,
		"group_id":    groupID,
		"resource_id": resourceID,
		"event_type":  string(eventType),
	}).Info(message)

	if err := audit.FromContext(ctx).LogAuthorization(ctx, eventType, &callerID, resourceType,
		strconv.FormatInt(resourceID, 10), audit.EventStatusSuccess, message); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to write audit event")
	}
}

func pathPair(w http.ResponseWriter, r *http.Request, first, second string) (int64, int64, bool) {
	a, ok := httputil.ParsePathInt64OrError(w, r, first)
	if !ok {
		return 0, 0, false
	}
	b, ok := httputil.ParsePathInt64OrError(w, r, second)
	if !ok {
		return 0, 0, false
	}
	return a, b, true
}
