// internal/api/client_test.go

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TuongNguyen09/web-chat/internal/chat"
)

func newTestAPI(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, zerolog.Nop())
}

func writeEnvelope(w http.ResponseWriter, code int, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    code,
		"message": "ok",
		"result":  result,
	})
}

func TestClientLoginInstallsToken(t *testing.T) {
	var sawBody map[string]string
	c := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/signin", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sawBody))
		writeEnvelope(w, 200, map[string]interface{}{
			"token": "jwt-abc",
			"user":  map[string]string{"id": "me", "fullName": "Me"},
		})
	})

	out, err := c.Login(context.Background(), "me@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt-abc", out.Token)
	assert.Equal(t, "me", out.User.ID)
	assert.Equal(t, map[string]string{"email": "me@example.com", "password": "secret"}, sawBody)
	assert.Equal(t, "jwt-abc", c.token)
}

func TestClientSendsBearerToken(t *testing.T) {
	c := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer jwt-abc", r.Header.Get("Authorization"))
		writeEnvelope(w, 200, chat.UserInfo{ID: "me"})
	})
	c.SetToken("jwt-abc")

	_, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
}

func TestClientFetchPage(t *testing.T) {
	c := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages/chat/c1", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("size"))
		writeEnvelope(w, 200, chat.PageResult{
			Data: []chat.Message{
				{ID: "m2", ChatID: "c1", Content: "newest"},
				{ID: "m1", ChatID: "c1", Content: "older"},
			},
			CurrentPage:   2,
			TotalPages:    3,
			PageSize:      20,
			TotalElements: 45,
		})
	})

	page, err := c.FetchPage(context.Background(), "c1", 2, 20)
	require.NoError(t, err)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "m2", page.Data[0].ID)
}

func TestClientMarkRead(t *testing.T) {
	var sawBody map[string]string
	c := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/unread/c1/read", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sawBody))
		writeEnvelope(w, 200, nil)
	})

	require.NoError(t, c.MarkRead(context.Background(), "c1", "m42"))
	assert.Equal(t, map[string]string{"lastMessageId": "m42"}, sawBody)
}

func TestClientChatsKeywordIsEscaped(t *testing.T) {
	c := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "anna n", r.URL.Query().Get("keyword"))
		writeEnvelope(w, 200, []chat.Chat{{ID: "c1"}})
	})

	chats, err := c.Chats(context.Background(), "anna n")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "c1", chats[0].ID)
}

func TestClientUnauthorized(t *testing.T) {
	c := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.CurrentUser(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClientEnvelopeErrorSurfaces(t *testing.T) {
	c := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code":    404,
			"message": "message not found",
		})
	})

	err := c.DeleteMessage(context.Background(), "nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Code)
	assert.Equal(t, "message not found", apiErr.Message)
}

func TestClientEnvelopeErrorWithOKStatus(t *testing.T) {
	// Some endpoints report failures in the envelope with HTTP 200.
	c := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, nil)
	})
	require.NoError(t, c.DeleteMessage(context.Background(), "m1"))

	c2 := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"code": 500, "message": "boom"})
	})
	err := c2.DeleteMessage(context.Background(), "m1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 500, apiErr.Code)
}

func TestClientPresenceSnapshot(t *testing.T) {
	c := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/presence/online", r.URL.Path)
		writeEnvelope(w, 200, map[string]int64{"u1": 1748772000000})
	})

	snap, err := c.PresenceSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1748772000000), snap["u1"])
}
