package files

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/blob"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/rbac"
)

// multipartMemory is the part of an upload kept in memory before spilling
// to temporary files
const multipartMemory = 8 << 20

// Handlers serves file uploads, listings, edits and downloads
type Handlers struct {
	store *Store
	gate  *rbac.Gate
	blobs blob.Store
}

// NewHandlers creates file handlers
func NewHandlers(store *Store, gate *rbac.Gate, blobs blob.Store) *Handlers {
	return &Handlers{
		store: store,
		gate:  gate,
		blobs: blobs,
	}
}

// RegisterRoutes registers file routes on an authenticated router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/files", h.gate.Wrap(h.uploadFile, rbac.Admins...)).Methods(http.MethodPost)
	router.Handle("/files/all", h.gate.Wrap(h.listAll)).Methods(http.MethodGet)
	router.Handle("/files/type/{type}", h.gate.Wrap(h.listByType)).Methods(http.MethodGet)
	router.Handle("/files/folder/{folderId}", h.gate.Wrap(h.listByFolder)).Methods(http.MethodGet)
	router.Handle("/files/{documentId}", h.gate.Wrap(h.editFile, rbac.Admins...)).Methods(http.MethodPut)
	router.Handle("/files/{documentId}", h.gate.Wrap(h.deleteFile, rbac.Admins...)).Methods(http.MethodDelete)
	router.Handle("/files/{documentId}/download", h.gate.Wrap(h.downloadFile)).Methods(http.MethodGet)
}

type uploadForm struct {
	documentName string
	folderID     int64
	ticketNumber string
	version      string
}

func parseUploadForm(r *http.Request) (*uploadForm, error) {
	form := &uploadForm{
		documentName: strings.TrimSpace(r.FormValue("documentName")),
		ticketNumber: strings.TrimSpace(r.FormValue("ticketNumber")),
		version:      strings.TrimSpace(r.FormValue("version")),
	}

	folderID, err := strconv.ParseInt(r.FormValue("folderId"), 10, 64)
	if err != nil {
		return nil, apperr.BadRequest(apperr.CodeInvalidInput, "folderId must be a positive integer")
	}
	form.folderID = folderID

	return form, httputil.Validate(
		httputil.RequireNonEmpty(form.documentName, "documentName"),
		httputil.RequirePositive(form.folderID, "folderId"),
		httputil.RequireNonEmpty(form.ticketNumber, "ticketNumber"),
		validateVersion(form.version),
	)
}

func validateVersion(version string) error {
	if !versionPattern.MatchString(version) {
		return apperr.BadRequest(apperr.CodeInvalidInput, "version must look like 1, 1.2 or 1.2.3")
	}
	return nil
}

// uploadFile handles POST /files
func (h *Handlers) uploadFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		httputil.WriteError(w, r, apperr.BadRequest(apperr.CodeInvalidInput, "Request must be a multipart form").
			WithDetail("parse multipart: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	form, err := parseUploadForm(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	part, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		httputil.WriteError(w, r, apperr.BadRequest(apperr.CodeFileNotProvided, "No file was provided"))
		return
	}
	if err != nil {
		httputil.WriteError(w, r, apperr.BadRequest(apperr.CodeInvalidInput, "Invalid file part").WithDetail("form file: %v", err))
		return
	}
	defer part.Close()

	mimeType := header.Header.Get("Content-Type")
	if !Allowed(mimeType) {
		httputil.WriteError(w, r, apperr.BadRequest(apperr.CodeInvalidFileType,
			"Only PDF, image, Word, Excel and PowerPoint files are allowed").WithDetail("mime type %q", mimeType))
		return
	}

	key := blob.NewKey(header.Filename)
	if err := h.blobs.Put(ctx, key, part, mimeType); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	file, err := h.store.Create(ctx, &File{
		DocumentName: form.documentName,
		FileName:     key,
		Type:         Classify(mimeType),
		MimeType:     mimeType,
		Size:         header.Size,
		FolderID:     form.folderID,
		TicketNumber: form.ticketNumber,
		Version:      form.version,
	})
	if err != nil {
		h.removeBlob(ctx, key)
		httputil.WriteError(w, r, err)
		return
	}

	h.audit(r, audit.EventTypeDataFileUpload, file.ID, &audit.ChangeDetails{After: map[string]interface{}{
		"documentName": file.DocumentName,
		"folderId":     file.FolderID,
		"type":         string(file.Type),
		"size":         file.Size,
	}}, "uploaded file "+file.DocumentName)
	httputil.WriteCreated(w, "File uploaded successfully")
}

// listAll handles GET /files/all
func (h *Handlers) listAll(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, Filter{})
}

// listByType handles GET /files/type/{type}
func (h *Handlers) listByType(w http.ResponseWriter, r *http.Request) {
	fileType, ok := ParseType(mux.Vars(r)["type"])
	if !ok {
		httputil.WriteError(w, r, apperr.BadRequest(apperr.CodeInvalidParam, "Invalid file type"))
		return
	}
	h.list(w, r, Filter{Type: fileType})
}

// listByFolder handles GET /files/folder/{folderId}
func (h *Handlers) listByFolder(w http.ResponseWriter, r *http.Request) {
	folderID, ok := httputil.ParsePathInt64OrError(w, r, "folderId")
	if !ok {
		return
	}
	h.list(w, r, Filter{FolderID: folderID})
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request, filter Filter) {
	scope, err := h.gate.Scope(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	filter.IDs = scope.FileIDs()

	files, err := h.store.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, files)
}

type editFileRequest struct {
	DocumentName string `json:"documentName"`
	TicketNumber string `json:"ticketNumber"`
	Version      string `json:"version"`
}

// editFile handles PUT /files/{documentId}
func (h *Handlers) editFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := httputil.ParsePathInt64OrError(w, r, "documentId")
	if !ok {
		return
	}

	var req editFileRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.DocumentName = strings.TrimSpace(req.DocumentName)
	req.TicketNumber = strings.TrimSpace(req.TicketNumber)
	if err := httputil.Validate(
		httputil.RequireNonEmpty(req.DocumentName, "documentName"),
		httputil.RequireNonEmpty(req.TicketNumber, "ticketNumber"),
		validateVersion(req.Version),
	); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	before, err := h.store.Get(r.Context(), fileID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.store.Update(r.Context(), fileID, req.DocumentName, req.TicketNumber, req.Version); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	h.audit(r, audit.EventTypeDataFileUpdate, fileID, &audit.ChangeDetails{
		Before: map[string]interface{}{
			"documentName": before.DocumentName,
			"ticketNumber": before.TicketNumber,
			"version":      before.Version,
		},
		After: map[string]interface{}{
			"documentName": req.DocumentName,
			"ticketNumber": req.TicketNumber,
			"version":      req.Version,
		},
	}, "updated file "+before.DocumentName)
	httputil.WriteMessage(w, http.StatusOK, "File updated successfully")
}

// deleteFile handles DELETE /files/{documentId}
func (h *Handlers) deleteFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fileID, ok := httputil.ParsePathInt64OrError(w, r, "documentId")
	if !ok {
		return
	}

	file, err := h.store.Get(ctx, fileID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := h.store.Delete(ctx, fileID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	h.removeBlob(ctx, file.FileName)
	if file.PreviewFileName != nil {
		h.removeBlob(ctx, *file.PreviewFileName)
	}

	h.audit(r, audit.EventTypeDataFileDelete, fileID, &audit.ChangeDetails{Before: map[string]interface{}{
		"documentName": file.DocumentName,
		"folderId":     file.FolderID,
	}}, "deleted file "+file.DocumentName)
	httputil.WriteMessage(w, http.StatusOK, "File deleted successfully")
}

// downloadFile handles GET /files/{documentId}/download
func (h *Handlers) downloadFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fileID, ok := httputil.ParsePathInt64OrError(w, r, "documentId")
	if !ok {
		return
	}

	scope, err := h.gate.Scope(ctx)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if !scope.CanSeeFile(fileID) {
		httputil.WriteError(w, r, NotFound(fileID).WithDetail("file %d outside caller scope", fileID))
		return
	}

	file, err := h.store.Get(ctx, fileID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	content, err := h.blobs.Get(ctx, file.FileName)
	if errors.Is(err, blob.ErrNotFound) {
		httputil.WriteError(w, r, apperr.NotFound(apperr.CodeFileMissing, "The file is missing on the server").
			WithDetail("blob %s for file %d", file.FileName, fileID))
		return
	}
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": downloadName(file),
	}))
	if file.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content); err != nil {
		observability.FromContext(ctx).WithError(err).WithField("file_id", fileID).Warn("file download interrupted")
	}
}

// downloadName is the document name with the stored payload's extension
func downloadName(f *File) string {
	return f.DocumentName + filepath.Ext(f.FileName)
}

func (h *Handlers) removeBlob(ctx context.Context, key string) {
	if err := h.blobs.Delete(ctx, key); err != nil && !errors.Is(err, blob.ErrNotFound) {
		observability.FromContext(ctx).WithError(err).WithField("blob_key", key).Warn("failed to remove file payload")
	}
}

func (h *Handlers) audit(r *http.Request, eventType audit.EventType, fileID int64, changes *audit.ChangeDetails, message string) {
	ctx := r.Context()
	caller := middleware.CurrentUser(ctx)
	callerID := caller.ID

	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"actor":      caller.Username,
		"file_id":    fileID,
		"event_type": string(eventType),
	}).Info(message)

	if err := audit.FromContext(ctx).LogDataMutation(ctx, eventType, &callerID, audit.ResourceTypeFile,
		strconv.FormatInt(fileID, 10), changes, message); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to write audit event")
	}
}
