package files

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/blob"
	"github.com/platinummonkey/folio/pkg/contextkeys"
	"github.com/platinummonkey/folio/pkg/database/dbtest"
	"github.com/platinummonkey/folio/pkg/rbac"
)

type staticMemberships map[int64][]int64

func (m staticMemberships) GroupIDsForUser(_ context.Context, userID int64) ([]int64, error) {
	return m[userID], nil
}

type staticGrants struct {
	files []int64
}

func (g *staticGrants) ListGrantsForGroups(_ context.Context, groupIDs []int64) ([]int64, []int64, error) {
	if len(groupIDs) == 0 {
		return nil, nil, nil
	}
	return nil, g.files, nil
}

type fileFixture struct {
	db       *sql.DB
	store    *Store
	blobs    *blob.FilesystemStore
	blobRoot string
	router   *mux.Router
	grants   *staticGrants
	folder   int64
}

func newFileFixture(t *testing.T, role auth.Role) *fileFixture {
	t.Helper()
	db := dbtest.New(t)
	root := t.TempDir()
	blobs, err := blob.NewFilesystemStore(root)
	require.NoError(t, err)

	grants := &staticGrants{}
	visibility := rbac.NewVisibility(staticMemberships{1: {10}}, grants)
	caller := &auth.User{ID: 1, Username: "caller", Role: role, IsActive: true}

	router := mux.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(contextkeys.WithAuth(r.Context(), &auth.AuthContext{User: caller})))
		})
	})
	store := NewStore(db)
	NewHandlers(store, rbac.NewGate(visibility, nil), blobs).RegisterRoutes(router)

	return &fileFixture{
		db:       db,
		store:    store,
		blobs:    blobs,
		blobRoot: root,
		router:   router,
		grants:   grants,
		folder:   dbtest.InsertFolder(t, db, "Docs", 0),
	}
}

type upload struct {
	fields      map[string]string
	filename    string
	contentType string
	content     string
}

func (f *fileFixture) upload(t *testing.T, u upload) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range u.fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if u.filename != "" {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, u.filename))
		header.Set("Content-Type", u.contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = io.WriteString(part, u.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/files", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fileFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fileFixture) blobCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.blobRoot)
	require.NoError(t, err)
	return len(entries)
}

func (f *fileFixture) pdfUpload(name string) upload {
	return upload{
		fields: map[string]string{
			"documentName": name,
			"folderId":     strconv.FormatInt(f.folder, 10),
			"ticketNumber": "TCK-1",
			"version":      "1.0",
		},
		filename:    "scan.pdf",
		contentType: "application/pdf",
		content:     "%PDF-1.4 fake",
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func decodeFiles(t *testing.T, w *httptest.ResponseRecorder) []*File {
	t.Helper()
	var body struct {
		Error interface{} `json:"error"`
		Data  []*File     `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Nil(t, body.Error)
	return body.Data
}

func TestFileHandlers_Upload(t *testing.T) {
	f := newFileFixture(t, auth.RoleContentAdmin)

	w := f.upload(t, f.pdfUpload("Invoice"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"error":null,"message":"File uploaded successfully"}`, w.Body.String())
	assert.Equal(t, 1, f.blobCount(t))

	all, err := f.store.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Invoice", all[0].DocumentName)
	assert.Equal(t, TypePDF, all[0].Type)
	assert.Equal(t, int64(len("%PDF-1.4 fake")), all[0].Size)
	assert.True(t, strings.HasSuffix(all[0].FileName, ".pdf"))

	w = f.upload(t, f.pdfUpload("Invoice"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.CodeFileExists, errorCode(t, w))
	assert.Equal(t, 1, f.blobCount(t), "payload of the rejected duplicate is removed")
}

func TestFileHandlers_UploadRejections(t *testing.T) {
	f := newFileFixture(t, auth.RoleSuperAdmin)

	tests := []struct {
		name   string
		modify func(u *upload)
		code   string
	}{
		{"missing payload", func(u *upload) { u.filename = "" }, apperr.CodeFileNotProvided},
		{"disallowed type", func(u *upload) { u.contentType = "text/plain"; u.filename = "a.txt" }, apperr.CodeInvalidFileType},
		{"missing folder", func(u *upload) { u.fields["folderId"] = "999" }, apperr.CodeFolderNotFound},
		{"bad folder id", func(u *upload) { u.fields["folderId"] = "abc" }, apperr.CodeInvalidInput},
		{"empty name", func(u *upload) { u.fields["documentName"] = " " }, apperr.CodeInvalidInput},
		{"empty ticket", func(u *upload) { u.fields["ticketNumber"] = "" }, apperr.CodeInvalidInput},
		{"bad version", func(u *upload) { u.fields["version"] = "v2" }, apperr.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := f.pdfUpload("Doc")
			tt.modify(&u)
			w := f.upload(t, u)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, tt.code, errorCode(t, w))
			assert.Zero(t, f.blobCount(t))
		})
	}
}

func TestFileHandlers_ListVisibility(t *testing.T) {
	seed := func(t *testing.T, role auth.Role) (*fileFixture, map[string]int64) {
		f := newFileFixture(t, role)
		other := dbtest.InsertFolder(t, f.db, "Other", 0)
		ids := map[string]int64{}
		for _, spec := range []struct {
			name   string
			folder int64
			typ    Type
		}{
			{"charlie", f.folder, TypePDF},
			{"alpha", f.folder, TypeWord},
			{"bravo", other, TypePDF},
		} {
			file, err := f.store.Create(context.Background(), newFile(spec.name, spec.folder, spec.typ))
			require.NoError(t, err)
			ids[spec.name] = file.ID
		}
		return f, ids
	}
	names := func(files []*File) []string {
		out := []string{}
		for _, file := range files {
			out = append(out, file.DocumentName)
		}
		return out
	}

	t.Run("admin", func(t *testing.T) {
		f, _ := seed(t, auth.RoleContentAdmin)

		assert.Equal(t, []string{"alpha", "bravo", "charlie"}, names(decodeFiles(t, f.do(http.MethodGet, "/files/all", ""))))
		assert.Equal(t, []string{"bravo", "charlie"}, names(decodeFiles(t, f.do(http.MethodGet, "/files/type/pdf", ""))))
		assert.Equal(t, []string{"alpha", "charlie"},
			names(decodeFiles(t, f.do(http.MethodGet, fmt.Sprintf("/files/folder/%d", f.folder), ""))))

		w := f.do(http.MethodGet, "/files/type/spreadsheet", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperr.CodeInvalidParam, errorCode(t, w))
	})

	t.Run("user", func(t *testing.T) {
		f, ids := seed(t, auth.RoleUser)
		f.grants.files = []int64{ids["charlie"], ids["bravo"]}

		assert.Equal(t, []string{"bravo", "charlie"}, names(decodeFiles(t, f.do(http.MethodGet, "/files/all", ""))))
		assert.Equal(t, []string{"charlie"},
			names(decodeFiles(t, f.do(http.MethodGet, fmt.Sprintf("/files/folder/%d", f.folder), ""))))
		assert.Empty(t, decodeFiles(t, f.do(http.MethodGet, "/files/type/word", "")))
	})

	t.Run("user without grants", func(t *testing.T) {
		f, _ := seed(t, auth.RoleUser)
		w := f.do(http.MethodGet, "/files/all", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"error":null,"data":[]}`, w.Body.String())
	})
}

func TestFileHandlers_Download(t *testing.T) {
	f := newFileFixture(t, auth.RoleUser)
	ctx := context.Background()

	file, err := f.store.Create(ctx, &File{
		DocumentName: "Contract",
		FileName:     "abc.pdf",
		Type:         TypePDF,
		MimeType:     "application/pdf",
		Size:         5,
		FolderID:     f.folder,
		TicketNumber: "T",
		Version:      "1",
	})
	require.NoError(t, err)
	path := fmt.Sprintf("/files/%d/download", file.ID)

	w := f.do(http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code, "not granted")
	assert.Equal(t, apperr.CodeFileNotFound, errorCode(t, w))

	f.grants.files = []int64{file.ID}

	w = f.do(http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperr.CodeFileMissing, errorCode(t, w))

	require.NoError(t, f.blobs.Put(ctx, "abc.pdf", strings.NewReader("hello"), "application/pdf"))

	w = f.do(http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=Contract.pdf`, w.Header().Get("Content-Disposition"))
}

func TestFileHandlers_EditAndDelete(t *testing.T) {
	f := newFileFixture(t, auth.RoleContentAdmin)
	ctx := context.Background()

	require.Equal(t, http.StatusCreated, f.upload(t, f.pdfUpload("First")).Code)
	require.Equal(t, http.StatusCreated, f.upload(t, f.pdfUpload("Second")).Code)
	all, err := f.store.List(ctx, Filter{})
	require.NoError(t, err)
	first := all[0]
	path := fmt.Sprintf("/files/%d", first.ID)

	w := f.do(http.MethodPut, path, `{"documentName":"Renamed","ticketNumber":"TCK-2","version":"2.0"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"error":null,"message":"File updated successfully"}`, w.Body.String())

	w = f.do(http.MethodPut, path, `{"documentName":"Second","ticketNumber":"TCK-2","version":"2.0"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.CodeFileExists, errorCode(t, w))

	w = f.do(http.MethodPut, path, `{"documentName":"X","ticketNumber":"TCK-2","version":"two"}`)
	assert.Equal(t, apperr.CodeInvalidInput, errorCode(t, w))

	w = f.do(http.MethodPut, "/files/999", `{"documentName":"X","ticketNumber":"T","version":"1"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, 2, f.blobCount(t))
	w = f.do(http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, f.blobCount(t))

	w = f.do(http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperr.CodeFileNotFound, errorCode(t, w))
}

func TestFileHandlers_UserCannotMutate(t *testing.T) {
	f := newFileFixture(t, auth.RoleUser)

	w := f.upload(t, f.pdfUpload("Nope"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperr.CodeForbiddenRole, errorCode(t, w))

	for _, method := range []string{http.MethodPut, http.MethodDelete} {
		w := f.do(method, "/files/1", `{"documentName":"X","ticketNumber":"T","version":"1"}`)
		assert.Equal(t, http.StatusForbidden, w.Code, method)
	}
	assert.Zero(t, f.blobCount(t))
}
