package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khetumewada/WebChat/internal/api"
	"github.com/khetumewada/WebChat/internal/models"
	"github.com/khetumewada/WebChat/internal/search"
	"github.com/khetumewada/WebChat/internal/view"
)

func TestAddUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/users", r.URL.Path)
		var req api.AddUserRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Username == "taken" {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(api.AddUserResponse{Message: "already exists"})
			return
		}
		_ = json.NewEncoder(w).Encode(api.AddUserResponse{Success: true, ID: "9", Username: req.Username})
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")

	var out bytes.Buffer
	require.NoError(t, AddUser(context.Background(), addr, api.AddUserRequest{Username: "dan"}, &out))
	assert.Contains(t, out.String(), "ID:                9")
	assert.Contains(t, out.String(), "Username:          dan")

	err := AddUser(context.Background(), addr, api.AddUserRequest{Username: "taken"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "[3:04 PM] > hi", formatMessage(view.Message{Text: "hi", Time: "3:04 PM", Direction: view.DirectionSent}))
	assert.Equal(t, "[3:04 PM] < <b>", formatMessage(view.Message{Text: "<b>", Time: "3:04 PM", Direction: view.DirectionReceived}))

	assert.Equal(t, "connected", formatStatus(view.Status{State: models.StateConnected}))
	assert.Equal(t, "disconnected", formatStatus(view.Status{State: models.StateDisconnected}))
	assert.Equal(t, "disconnected (type /reconnect to retry)", formatStatus(view.Status{State: models.StateDisconnected, CanRetry: true}))
}

type staticSearcher map[string][]models.SearchUser

func (s staticSearcher) SearchUsers(_ context.Context, q string) ([]models.SearchUser, error) {
	return s[q], nil
}

func TestHandleLine_UserResults(t *testing.T) {
	ctx := context.Background()
	dropdown := view.NewDropdown()
	var opened []string
	users := search.NewController(staticSearcher{"ann": {{ID: "3", UserName: "ann"}}}, dropdown,
		func(href string) { opened = append(opened, href) }, nil)

	var out bytes.Buffer
	con := &console{out: &out}
	room := view.NewRoom()

	require.False(t, handleLine(ctx, "/users ann", nil, room, users, dropdown, con))
	assert.Equal(t, "   1) /start-chat/3/\n", out.String())

	// An empty query hides the results: nothing to list or open.
	out.Reset()
	require.False(t, handleLine(ctx, "/users ", nil, room, users, dropdown, con))
	assert.Empty(t, out.String())

	require.False(t, handleLine(ctx, "/open 1", nil, room, users, dropdown, con))
	assert.Contains(t, out.String(), "no such result")
	assert.Empty(t, opened)

	require.False(t, handleLine(ctx, "/users ann", nil, room, users, dropdown, con))
	require.False(t, handleLine(ctx, "/open 1", nil, room, users, dropdown, con))
	assert.Equal(t, []string{"/start-chat/3/"}, opened)

	assert.True(t, handleLine(ctx, "/quit", nil, room, users, dropdown, con))
}
