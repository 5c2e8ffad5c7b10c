package groups

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/contextkeys"
	"github.com/platinummonkey/folio/pkg/database/dbtest"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/rbac"
)

type groupFixture struct {
	store    *Store
	router   *mux.Router
	caller   *auth.User
	auditBuf *bytes.Buffer
	userID   func(name string) int64
}

func newGroupFixture(t *testing.T, role auth.Role) *groupFixture {
	t.Helper()
	db := dbtest.New(t)
	store := NewStore(db)

	caller := &auth.User{ID: dbtest.InsertUser(t, db, "caller", string(role), true), Username: "caller", Role: role, IsActive: true}

	auditBuf := &bytes.Buffer{}
	auditLogger := audit.NewLogrusLogger(observability.NewLogger(observability.InfoLevel, auditBuf))

	router := mux.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := contextkeys.WithAuth(r.Context(), &auth.AuthContext{User: caller})
			ctx = audit.WithLogger(ctx, auditLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	NewHandlers(store, rbac.NewGate(nil, nil)).RegisterRoutes(router)

	return &groupFixture{
		store:    store,
		router:   router,
		caller:   caller,
		auditBuf: auditBuf,
		userID: func(name string) int64 {
			return dbtest.InsertUser(t, db, name, string(auth.RoleUser), true)
		},
	}
}

func (f *groupFixture) do(method, path, body string) *httptest.ResponseRecorder {
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

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func id(n int64) string { return strconv.FormatInt(n, 10) }

func TestGroupHandlers_Lifecycle(t *testing.T) {
	f := newGroupFixture(t, auth.RoleSuperAdmin)

	w := f.do(http.MethodPost, "/groups", `{"name":"Engineering"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"error":null,"message":"Group created successfully"}`, w.Body.String())
	assert.Contains(t, f.auditBuf.String(), string(audit.EventTypeAdminGroupCreate))

	w = f.do(http.MethodPost, "/groups", `{"name":"Engineering"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.CodeGroupExists, errorCode(t, w))

	w = f.do(http.MethodPost, "/groups", `{"name":"ab"}`)
	assert.Equal(t, apperr.CodeInvalidInput, errorCode(t, w))

	w = f.do(http.MethodPost, "/groups", `{"title":"Engineering"}`)
	assert.Equal(t, apperr.CodeInvalidInput, errorCode(t, w))

	w = f.do(http.MethodGet, "/groups", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Error interface{} `json:"error"`
		Data  []Group     `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	groupID := list.Data[0].ID

	w = f.do(http.MethodPut, "/groups/"+id(groupID), `{"name":"Platform"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	group, err := f.store.Get(context.Background(), groupID)
	require.NoError(t, err)
	assert.Equal(t, "Platform", group.Name)

	w = f.do(http.MethodPut, "/groups/999", `{"name":"Platform"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperr.CodeGroupNotFound, errorCode(t, w))

	w = f.do(http.MethodDelete, "/groups/"+id(groupID), "")
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodDelete, "/groups/"+id(groupID), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodDelete, "/groups/0", "")
	assert.Equal(t, apperr.CodeInvalidParam, errorCode(t, w))
}

func TestGroupHandlers_Membership(t *testing.T) {
	f := newGroupFixture(t, auth.RoleSuperAdmin)
	ctx := context.Background()

	group, err := f.store.Create(ctx, "Auditors")
	require.NoError(t, err)
	member := f.userID("member")

	body := `{"userId":` + id(member) + `,"groupId":` + id(group.ID) + `}`
	w := f.do(http.MethodPost, "/user-groups", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/user-groups", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.CodeUserAlreadyInGrp, errorCode(t, w))

	w = f.do(http.MethodPost, "/user-groups", `{"userId":999,"groupId":`+id(group.ID)+`}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperr.CodeUserNotFound, errorCode(t, w))

	w = f.do(http.MethodPost, "/user-groups", `{"userId":0,"groupId":1}`)
	assert.Equal(t, apperr.CodeInvalidInput, errorCode(t, w))

	w = f.do(http.MethodGet, "/group-members/"+id(group.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	var members struct {
		Data []Member `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &members))
	require.Len(t, members.Data, 1)
	assert.Equal(t, member, members.Data[0].UserID)
	assert.Equal(t, "member", members.Data[0].Username)

	w = f.do(http.MethodDelete, "/user-groups/"+id(group.ID)+"/"+id(member), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, f.auditBuf.String(), string(audit.EventTypeAdminGroupMemberRemove))

	w = f.do(http.MethodDelete, "/user-groups/"+id(group.ID)+"/"+id(member), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.CodeUserNotInGroup, errorCode(t, w))
}

func TestGroupHandlers_RoleGate(t *testing.T) {
	for _, role := range []auth.Role{auth.RoleContentAdmin, auth.RoleUser} {
		t.Run(string(role), func(t *testing.T) {
			f := newGroupFixture(t, role)

			for _, tc := range []struct{ method, path, body string }{
				{http.MethodPost, "/groups", `{"name":"Blocked"}`},
				{http.MethodPut, "/groups/1", `{"name":"Blocked"}`},
				{http.MethodDelete, "/groups/1", ""},
				{http.MethodPost, "/user-groups", `{"userId":1,"groupId":1}`},
				{http.MethodDelete, "/user-groups/1/1", ""},
			} {
				w := f.do(tc.method, tc.path, tc.body)
				assert.Equal(t, http.StatusForbidden, w.Code, tc.method+" "+tc.path)
				assert.Equal(t, apperr.CodeForbiddenRole, errorCode(t, w))
			}

			w := f.do(http.MethodGet, "/groups", "")
			assert.Equal(t, http.StatusOK, w.Code)
			w = f.do(http.MethodGet, "/group-members/1", "")
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}
