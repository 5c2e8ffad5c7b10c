package inheritance

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/rbac"
)

// Handlers exposes the propagation engine over HTTP
type Handlers struct {
	engine *Engine
	gate   *rbac.Gate
}

// NewHandlers creates inheritance handlers
func NewHandlers(engine *Engine, gate *rbac.Gate) *Handlers {
	return &Handlers{
		engine: engine,
		gate:   gate,
	}
}

// RegisterRoutes registers the inheritance routes on an authenticated router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	path := "/folder/{folderId}/group/{groupId}/inheritance"
	router.Handle(path, h.gate.Wrap(h.apply, rbac.SuperAdminOnly...)).Methods(http.MethodPost)
	router.Handle(path, h.gate.Wrap(h.remove, rbac.SuperAdminOnly...)).Methods(http.MethodDelete)
}

// apply handles POST /folder/{folderId}/group/{groupId}/inheritance
func (h *Handlers) apply(w http.ResponseWriter, r *http.Request) {
	folderID, groupID, ok := parseTarget(w, r)
	if !ok {
		return
	}

	if _, err := h.engine.Apply(r.Context(), middleware.CurrentUser(r.Context()), folderID, groupID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteCreated(w, "Inheritance permissions applied successfully")
}

// remove handles DELETE /folder/{folderId}/group/{groupId}/inheritance
func (h *Handlers) remove(w http.ResponseWriter, r *http.Request) {
	folderID, groupID, ok := parseTarget(w, r)
	if !ok {
		return
	}

	if _, err := h.engine.Remove(r.Context(), middleware.CurrentUser(r.Context()), folderID, groupID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteCreated(w, "Inheritance permissions removed successfully")
}

func parseTarget(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	folderID, ok := httputil.ParsePathInt64OrError(w, r, "folderId")
	if !ok {
		return 0, 0, false
	}
	groupID, ok := httputil.ParsePathInt64OrError(w, r, "groupId")
	if !ok {
		return 0, 0, false
	}
	return folderID, groupID, true
}
