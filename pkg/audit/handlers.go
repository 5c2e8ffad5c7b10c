package audit

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/httputil"
)

const (
	defaultSearchLimit = 100
	maxSearchLimit     = 1000
)

// Handlers serves the audit trail over HTTP
type Handlers struct {
	store Store
}

// NewHandlers creates new audit handlers
func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers audit routes on router. Callers gate the router
// to super admins.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit-logs", h.listEvents).Methods(http.MethodGet)
}

// listEvents handles GET /audit-logs
func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	events, err := h.store.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, events)
}

func parseFilter(r *http.Request) (SearchFilter, error) {
	query := r.URL.Query()
	filter := SearchFilter{}

	for key, dest := range map[string]**time.Time{"start_time": &filter.StartTime, "end_time": &filter.EndTime} {
		raw := query.Get(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, apperr.BadRequest(apperr.CodeInvalidParam, "Invalid "+key+": expected RFC3339")
		}
		*dest = &t
	}

	userID, err := httputil.ParseQueryInt64(r, "user_id")
	if err != nil {
		return filter, err
	}
	filter.UserID = userID

	for _, et := range httputil.ParseCSV(query.Get("event_types")) {
		filter.EventTypes = append(filter.EventTypes, EventType(et))
	}

	if statusStr := query.Get("status"); statusStr != "" {
		status := EventStatus(statusStr)
		filter.Status = &status
	}

	filter.ResourceType = ResourceType(query.Get("resource_type"))
	filter.ResourceID = query.Get("resource_id")

	if filter.Limit, err = httputil.ParseQueryInt(r, "limit", defaultSearchLimit); err != nil {
		return filter, err
	}
	if filter.Limit <= 0 || filter.Limit > maxSearchLimit {
		filter.Limit = defaultSearchLimit
	}
	if filter.Offset, err = httputil.ParseQueryInt(r, "offset", 0); err != nil {
		return filter, err
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	return filter, nil
}
