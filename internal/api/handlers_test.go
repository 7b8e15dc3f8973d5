package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khetumewada/WebChat/internal/models"
	"github.com/khetumewada/WebChat/internal/storage"
	"github.com/khetumewada/WebChat/internal/ws"
)

type fixture struct {
	store *storage.BboltStorage
	hub   *ws.Hub
	api   *API
	mux   *http.ServeMux
	ann   models.User
	bob   models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := storage.NewBboltStorage(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ann, err := store.AddUser(models.User{UserName: "ann", FullName: "Ann Lee"})
	require.NoError(t, err)
	bob, err := store.AddUser(models.User{UserName: "bob", ProfileImage: "/media/bob.png"})
	require.NoError(t, err)

	mock := clock.NewMock()
	mock.Set(time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC))
	hub := ws.NewHub(store, 50, ws.WithClock(mock))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	a := New(ctx, store, hub, Config{HistorySize: 50, SearchCacheTTL: time.Minute})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/search-users/", a.RequireUser(a.SearchUsersHandler))
	mux.HandleFunc("GET /api/chat/{id}/messages/", a.RequireUser(a.HistoryHandler))
	mux.HandleFunc("GET /start-chat/{id}/", a.RequireUser(a.StartChatHandler))
	mux.HandleFunc("POST /admin/users", NewAdminHandler(store, nil).AddUserHandler)

	return &fixture{store: store, hub: hub, api: a, mux: mux, ann: ann, bob: bob}
}

func (f *fixture) get(t *testing.T, path string, as models.UserID) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if as != "" {
		req.Header.Set(ws.UserHeader, string(as))
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) search(t *testing.T, q string, as models.UserID) []models.SearchUser {
	t.Helper()
	rec := f.get(t, "/api/search-users/?q="+q, as)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Users
}

func TestSearchUsers(t *testing.T) {
	f := newFixture(t)

	users := f.search(t, "LEE", f.bob.ID)
	require.Len(t, users, 1)
	assert.Equal(t, f.ann.ID, users[0].ID)
	assert.Equal(t, "Ann Lee", users[0].FullName)
	assert.Equal(t, "AL", users[0].Initials)
	assert.Nil(t, users[0].ProfileImage)

	users = f.search(t, "bo", f.ann.ID)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].FullName, "full name falls back to the username")
	assert.Equal(t, "BO", users[0].Initials)
	require.NotNil(t, users[0].ProfileImage)
	assert.Equal(t, "/media/bob.png", *users[0].ProfileImage)

	assert.Empty(t, f.search(t, "ann", f.ann.ID), "caller is excluded")
	assert.Empty(t, f.search(t, "", f.ann.ID))
}

func TestSearchUsers_RawBody(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/search-users/?q=ann", f.bob.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"users":[{"id":1,"username":"ann","full_name":"Ann Lee","initials":"AL","profile_image":null,"is_online":false}]}`,
		rec.Body.String())

	rec = f.get(t, "/api/search-users/?q=", f.bob.ID)
	assert.JSONEq(t, `{"users":[]}`, rec.Body.String())
}

func TestSearchUsers_CacheFollowsDirectoryVersion(t *testing.T) {
	f := newFixture(t)

	require.Len(t, f.search(t, "an", f.bob.ID), 1)

	_, err := f.store.AddUser(models.User{UserName: "annette"})
	require.NoError(t, err)

	assert.Len(t, f.search(t, "an", f.bob.ID), 2)
}

func TestSearchUsers_Unauthorized(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.get(t, "/api/search-users/?q=a", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.get(t, "/api/search-users/?q=a", "999").Code)

	// The query parameter works too.
	rec := f.get(t, "/api/search-users/?q=bob&user="+string(f.ann.ID), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	dm := ws.DMID(f.ann.ID, f.bob.ID)

	connID, _, err := f.hub.Join(dm, f.ann)
	require.NoError(t, err)
	f.hub.Dispatch(dm, connID, f.ann, models.ChatMessage{Message: "hi <b>bob</b>"})

	rec := f.get(t, "/api/chat/"+dm+"/messages/", f.bob.ID)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, models.HistoryMessage{
		ID:        1,
		Sender:    "ann",
		Content:   "hi <b>bob</b>",
		Timestamp: "03:04 PM",
		Own:       false,
	}, resp.Messages[0])

	rec = f.get(t, "/api/chat/"+dm+"/messages/", f.ann.ID)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Messages[0].Own)

	carol, err := f.store.AddUser(models.User{UserName: "carol"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, f.get(t, "/api/chat/"+dm+"/messages/", carol.ID).Code)

	rec = f.get(t, "/api/chat/lobby/messages/", carol.ID)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
}

func TestStartChat(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/start-chat/"+string(f.bob.ID)+"/", f.ann.ID)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/chat/dm_1_2/", rec.Header().Get("Location"))

	rec = f.get(t, "/start-chat/"+string(f.ann.ID)+"/", f.ann.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "You cannot chat with yourself.")

	assert.Equal(t, http.StatusNotFound, f.get(t, "/start-chat/404/", f.ann.ID).Code)
}

func TestAddUser(t *testing.T) {
	f := newFixture(t)

	post := func(body string) (*httptest.ResponseRecorder, AddUserResponse) {
		req := httptest.NewRequest(http.MethodPost, "/admin/users", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		f.mux.ServeHTTP(rec, req)
		var resp AddUserResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		return rec, resp
	}

	rec, resp := post(`{"username":"carol","full_name":"Carol King"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, models.UserID("3"), resp.ID)
	assert.Equal(t, "carol", resp.Username)

	u, err := f.store.GetUser("3")
	require.NoError(t, err)
	assert.Equal(t, "Carol King", u.FullName)

	rec, resp = post(`{"username":"carol"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, resp.Success)

	rec, _ = post(`{"username":"no spaces"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = post(`not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Invalid request body"))
}
