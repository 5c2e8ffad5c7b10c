package folders

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/blob"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/rbac"
)

// BlobKeyLister resolves the blob keys of stored files
type BlobKeyLister interface {
	BlobKeys(ctx context.Context, fileIDs []int64) ([]string, error)
}

// Handlers serves folder CRUD and the folder tree
type Handlers struct {
	store *Store
	gate  *rbac.Gate
	keys  BlobKeyLister
	blobs blob.Store
}

// NewHandlers creates folder handlers. keys and blobs are used to remove the
// payloads of files deleted along with a folder; either may be nil.
func NewHandlers(store *Store, gate *rbac.Gate, keys BlobKeyLister, blobs blob.Store) *Handlers {
	return &Handlers{
		store: store,
		gate:  gate,
		keys:  keys,
		blobs: blobs,
	}
}

// RegisterRoutes registers folder routes on an authenticated router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/folders", h.gate.Wrap(h.createFolder, rbac.Admins...)).Methods(http.MethodPost)
	router.Handle("/folders/all", h.gate.Wrap(h.listFolders)).Methods(http.MethodGet)
	router.Handle("/folders/{folderId}", h.gate.Wrap(h.renameFolder, rbac.Admins...)).Methods(http.MethodPut)
	router.Handle("/folders/{folderId}", h.gate.Wrap(h.deleteFolder, rbac.Admins...)).Methods(http.MethodDelete)
}

type createFolderRequest struct {
	FolderName string `json:"folderName"`
	ParentID   *int64 `json:"parentId"`
}

// createFolder handles POST /folders
func (h *Handlers) createFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := httputil.RequireNonEmpty(req.FolderName, "folderName"); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if req.ParentID != nil {
		if err := httputil.RequirePositive(*req.ParentID, "parentId"); err != nil {
			httputil.WriteError(w, r, err)
			return
		}
	}

	folder, err := h.store.Create(r.Context(), req.FolderName, req.ParentID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	after := map[string]interface{}{"folderName": folder.FolderName}
	if folder.ParentID != nil {
		after["parentId"] = *folder.ParentID
	}
	h.audit(r, audit.EventTypeDataFolderCreate, folder.ID, &audit.ChangeDetails{After: after}, "created folder "+folder.FolderName)
	httputil.WriteCreated(w, "Folder created successfully")
}

// listFolders handles GET /folders/all. USERs receive only the folders
// granted to their groups, nested where the parent is also visible.
func (h *Handlers) listFolders(w http.ResponseWriter, r *http.Request) {
	scope, err := h.gate.Scope(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	folders, err := h.store.List(r.Context(), scope.FolderIDs())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, BuildTree(folders))
}

type renameFolderRequest struct {
	FolderName string `json:"folderName"`
}

// renameFolder handles PUT /folders/{folderId}
func (h *Handlers) renameFolder(w http.ResponseWriter, r *http.Request) {
	folderID, ok := httputil.ParsePathInt64OrError(w, r, "folderId")
	if !ok {
		return
	}

	var req renameFolderRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := httputil.RequireNonEmpty(req.FolderName, "folderName"); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	before, err := h.store.Get(r.Context(), folderID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.store.Rename(r.Context(), folderID, req.FolderName); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	h.audit(r, audit.EventTypeDataFolderUpdate, folderID, &audit.ChangeDetails{
		Before: map[string]interface{}{"folderName": before.FolderName},
		After:  map[string]interface{}{"folderName": req.FolderName},
	}, "renamed folder "+before.FolderName)
	httputil.WriteMessage(w, http.StatusOK, "Folder renamed successfully")
}

// deleteFolder handles DELETE /folders/{folderId}. The subtree, its files and
// every grant on them go with it; file payloads are removed after the rows.
func (h *Handlers) deleteFolder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	folderID, ok := httputil.ParsePathInt64OrError(w, r, "folderId")
	if !ok {
		return
	}

	folder, err := h.store.Get(ctx, folderID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	folderIDs, err := h.store.Descendants(ctx, folderID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	fileIDs, err := h.store.DescendantFiles(ctx, folderIDs)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	var keys []string
	if h.keys != nil && len(fileIDs) > 0 {
		if keys, err = h.keys.BlobKeys(ctx, fileIDs); err != nil {
			httputil.WriteError(w, r, err)
			return
		}
	}

	if err := h.store.Delete(ctx, folderID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	if h.blobs != nil {
		for _, key := range keys {
			if err := h.blobs.Delete(ctx, key); err != nil {
				observability.FromContext(ctx).WithError(err).WithField("blob_key", key).Warn("failed to remove file payload")
			}
		}
	}

	h.audit(r, audit.EventTypeDataFolderDelete, folderID, &audit.ChangeDetails{
		Before: map[string]interface{}{
			"folderName": folder.FolderName,
			"folders":    len(folderIDs),
			"files":      len(fileIDs),
		},
	}, "deleted folder "+folder.FolderName)
	httputil.WriteMessage(w, http.StatusOK, "Folder deleted successfully")
}

func (h *Handlers) audit(r *http.Request, eventType audit.EventType, folderID int64, changes *audit.ChangeDetails, message string) {
	ctx := r.Context()
	caller := middleware.CurrentUser(ctx)
	callerID := caller.ID

	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"actor":      caller.Username,
		"folder_id":  folderID,
		"event_type": string(eventType),
	}).Info(message)

	if err := audit.FromContext(ctx).LogDataMutation(ctx, eventType, &callerID, audit.ResourceTypeFolder,
		strconv.FormatInt(folderID, 10), changes, message); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to write audit event")
	}
}
