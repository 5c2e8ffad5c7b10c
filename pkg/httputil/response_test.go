package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteJSON(w, http.StatusOK, map[string]string{"message": "success"})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "success")
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	WriteSuccess(w, []int{1, 2})

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Contains(t, body, "error")
	assert.Nil(t, body["error"])
	assert.Equal(t, []interface{}{float64(1), float64(2)}, body["data"])
}

func TestWriteSuccess_NilDataStillPresent(t *testing.T) {
	w := httptest.NewRecorder()

	WriteSuccess(w, nil)

	body := decodeBody(t, w)
	assert.Contains(t, body, "data")
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()

	WriteCreated(w, "Folder created successfully")

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Nil(t, body["error"])
	assert.Equal(t, "Folder created successfully", body["message"])
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "classified not found",
			err:         apperr.NotFound(apperr.CodeFolderNotFound, "Folder not found"),
			wantStatus:  http.StatusNotFound,
			wantCode:    apperr.CodeFolderNotFound,
			wantMessage: "Folder not found",
		},
		{
			name:        "wrapped classified error",
			err:         errors.Join(errors.New("ctx"), apperr.ForbiddenRole()),
			wantStatus:  http.StatusForbidden,
			wantCode:    apperr.CodeForbiddenRole,
			wantMessage: "You do not have permission to perform this action",
		},
		{
			name:        "unclassified error hides cause",
			err:         errors.New("pq: connection refused"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    apperr.CodeInternal,
			wantMessage: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/folders/1", nil)

			WriteError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tt.wantCode, body["error"])
			assert.Equal(t, tt.wantMessage, body["message"])
			assert.NotContains(t, w.Body.String(), "pq:")
		})
	}
}

func TestWriteInternalError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteInternalError(w, r, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperr.CodeInternal, decodeBody(t, w)["error"])
}
