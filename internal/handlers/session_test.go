// internal/handlers/session_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardtable/uno-service/internal/auth"
	"github.com/cardtable/uno-service/internal/game"
	"github.com/cardtable/uno-service/internal/middleware"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	require.NoError(t, auth.Init("test-secret", time.Hour))
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewServer(log, time.Hour)
}

// do issues an authenticated JSON request against a handler.
func do(t *testing.T, h http.HandlerFunc, userID, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if userID != "" {
		token, err := auth.CreateJWT(userID)
		require.NoError(t, err)
		req.Header.Set("Cookie", "auth_token="+token)
	}
	w := httptest.NewRecorder()
	middleware.RequireAuth(h).ServeHTTP(w, req)
	return w
}

func TestTokenHandler(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest("POST", "/auth/token", bytes.NewBufferString(`{"user_id":"u1"}`))
	w := httptest.NewRecorder()
	TokenHandler(s).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["token"])

	userID, err := auth.AuthenticateJWT(resp["token"])
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "auth_token", cookies[0].Name)
}

func TestTokenHandlerRejectsEmptyUser(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("POST", "/auth/token", bytes.NewBufferString(`{"user_id":"  "}`))
	w := httptest.NewRecorder()
	TokenHandler(s).ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	w := do(t, CreateSessionHandler(s), "", "POST", "/session/create", `{"channel":"c1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest("POST", "/session/create", bytes.NewBufferString(`{"channel":"c1"}`))
	req.Header.Set("Cookie", "auth_token=garbage")
	w = httptest.NewRecorder()
	middleware.RequireAuth(CreateSessionHandler(s)).ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	w := do(t, CreateSessionHandler(s), "u1", "POST", "/session/create", `{"channel":"c1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ps game.PublicState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ps))
	assert.Equal(t, "u1", ps.HostID)
	assert.Equal(t, "c1", ps.ChannelKey)

	w = do(t, JoinSessionHandler(s), "u2", "POST", "/session/join", `{"host":"u1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, StartSessionHandler(s), "u1", "POST", "/session/start", `{}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ps))
	assert.True(t, ps.Started)
	assert.Equal(t, "u1", ps.CurrentPlayerID)

	w = do(t, SessionStateHandler(s), "u2", "GET", "/session/state?channel=c1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var state struct {
		State  game.PublicState `json:"state"`
		Roster string           `json:"roster"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.True(t, state.State.Started)
	assert.NotEmpty(t, state.Roster)

	w = do(t, HandHandler(s), "u1", "GET", "/game/hand?channel=c1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var hand handResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hand))
	assert.Len(t, hand.Hand, game.OpeningHandSize)

	w = do(t, DrawHandler(s), "u1", "POST", "/game/draw", `{"channel":"c1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hand))
	assert.Len(t, hand.Hand, game.OpeningHandSize+1)
	assert.Len(t, hand.Drawn, 1)
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t)

	// not-found class: no session in the channel
	w := do(t, SessionStateHandler(s), "u1", "GET", "/session/state?channel=nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, err := s.Registry.CreateSession("u1", "c1")
	require.NoError(t, err)

	// conflict class: channel already busy
	w = do(t, CreateSessionHandler(s), "u2", "POST", "/session/create", `{"channel":"c1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "channel_busy", body.Error)

	_, err = s.Registry.Join("u1", "u2")
	require.NoError(t, err)
	_, err = s.Registry.Start("u1", "u1")
	require.NoError(t, err)

	// validation class: playing out of turn
	w = do(t, DrawHandler(s), "u2", "POST", "/game/draw", `{"channel":"c1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_your_turn", body.Error)
}

func TestQuitAndCancel(t *testing.T) {
	s := newTestServer(t)

	_, err := s.Registry.CreateSession("u1", "c1")
	require.NoError(t, err)
	_, err = s.Registry.Join("u1", "u2")
	require.NoError(t, err)
	_, err = s.Registry.Join("u1", "u3")
	require.NoError(t, err)
	_, err = s.Registry.Start("u1", "u1")
	require.NoError(t, err)

	w := do(t, QuitHandler(s), "u3", "POST", "/game/quit", `{"channel":"c1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ps game.PublicState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ps))
	assert.Len(t, ps.Players, 2)

	w = do(t, CancelSessionHandler(s), "u2", "POST", "/session/cancel", `{"host":"u1"}`)
	assert.Equal(t, http.StatusConflict, w.Code, "only the host cancels")

	w = do(t, CancelSessionHandler(s), "u1", "POST", "/session/cancel", `{}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, SessionStateHandler(s), "u1", "GET", "/session/state?channel=c1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t)
	_, err := s.Registry.CreateSession("u1", "c1")
	require.NoError(t, err)
	_, err = s.Registry.CreateSession("u2", "c2")
	require.NoError(t, err)

	guard := middleware.RequireAdmin("sekrit")

	req := httptest.NewRequest("GET", "/admin/sessions", nil)
	w := httptest.NewRecorder()
	guard(AdminSessionsHandler(s)).ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code, "missing admin token")

	req = httptest.NewRequest("GET", "/admin/sessions", nil)
	req.Header.Set("X-Admin-Token", "sekrit")
	w = httptest.NewRecorder()
	guard(AdminSessionsHandler(s)).ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var sessions []game.PublicState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 2)

	req = httptest.NewRequest("POST", "/admin/reset", bytes.NewBufferString(`{"channel":"c1"}`))
	req.Header.Set("X-Admin-Token", "sekrit")
	w = httptest.NewRecorder()
	guard(AdminResetHandler(s)).ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	req = httptest.NewRequest("POST", "/admin/endall", nil)
	req.Header.Set("X-Admin-Token", "sekrit")
	w = httptest.NewRecorder()
	guard(AdminEndAllHandler(s)).ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var out map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, 1, out["ended"], "c1 was already reset, only c2 remained")
}
