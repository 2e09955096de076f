package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/manor-backend/internal/engine"
	"github.com/DoyleJ11/manor-backend/internal/hub"
	"github.com/DoyleJ11/manor-backend/internal/store"
	"github.com/DoyleJ11/manor-backend/pkg/types"
)

type fakeMatches struct {
	limit int
	err   error
}

func (f *fakeMatches) RecentMatches(_ context.Context, limit int) ([]store.MatchRecord, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []store.MatchRecord{{SessionID: "ABCD", Winner: "killers"}}, nil
}

func newTestRouter(t *testing.T, matches MatchLister) http.Handler {
	t.Helper()
	h := hub.NewHub(context.Background(), hub.Options{Rules: engine.DefaultRules(), Seed: 3})
	t.Cleanup(func() { h.Inbox() <- hub.ShutdownHub{} })
	return SetupRoutes(h, RouteOptions{APIPrefix: "/api", CORSOrigins: []string{"*"}, Matches: matches})
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createGame(t *testing.T, router http.Handler, role string, conspiracy bool) CreateGameResponse {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/game/create", CreateGameRequest{
		HostName:       "Host",
		Role:           role,
		ConspiracyMode: conspiracy,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[CreateGameResponse](t, rec)
}

func joinGame(t *testing.T, router http.Handler, sessionID, name, role string) JoinGameResponse {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/game/"+sessionID+"/join", JoinGameRequest{PlayerName: name, Role: role})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[JoinGameResponse](t, rec)
}

func TestCreateGame(t *testing.T) {
	router := newTestRouter(t, nil)

	res := createGame(t, router, "survivor", false)
	assert.Len(t, res.SessionID, 4)
	assert.NotEmpty(t, res.PlayerID)
	assert.Equal(t, "/join/"+res.SessionID, res.JoinLink)

	rec := do(t, router, http.MethodGet, "/api/game/"+res.SessionID+"/state?player_id="+res.PlayerID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[types.GameView](t, rec)
	assert.Equal(t, res.PlayerID, view.HostID)
	assert.Equal(t, "survivor", view.Players[res.PlayerID].Role)
}

func TestCreateGame_Validation(t *testing.T) {
	router := newTestRouter(t, nil)

	tests := []struct {
		name string
		body any
	}{
		{"missing name", CreateGameRequest{Role: "survivor"}},
		{"invalid role", CreateGameRequest{HostName: "Host", Role: "ghost"}},
		{"not json", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/game/create", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode[errorBody](t, rec).Detail)
		})
	}
}

func TestJoinGame_Errors(t *testing.T) {
	router := newTestRouter(t, nil)
	game := createGame(t, router, "survivor", false)

	rec := do(t, router, http.MethodPost, "/api/game/ZZZZ/join", JoinGameRequest{PlayerName: "Kim", Role: "killer"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, engine.ErrSessionNotFound.Error(), decode[errorBody](t, rec).Detail)

	for i := 0; i < engine.MaxPlayers-1; i++ {
		joinGame(t, router, game.SessionID, fmt.Sprintf("P%d", i), "killer")
	}
	rec = do(t, router, http.MethodPost, "/api/game/"+game.SessionID+"/join", JoinGameRequest{PlayerName: "Late", Role: "killer"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, engine.ErrSessionFull.Error(), decode[errorBody](t, rec).Detail)
}

func TestLobbyFlow(t *testing.T) {
	router := newTestRouter(t, nil)
	game := createGame(t, router, "survivor", false)
	// Share codes are case-insensitive.
	kim := joinGame(t, router, strings.ToLower(game.SessionID), "Kim", "survivor")
	assert.Equal(t, game.SessionID, kim.SessionID)

	base := "/api/game/" + game.SessionID

	rec := do(t, router, http.MethodPost, base+"/start", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "two survivors cannot start")

	rec = do(t, router, http.MethodPost, base+"/change_role?player_id="+kim.PlayerID+"&new_role=killer", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, statusResponse{Status: "success", NewRole: "killer"}, decode[statusResponse](t, rec))

	rec = do(t, router, http.MethodPost, base+"/update_player?player_id="+kim.PlayerID,
		JoinGameRequest{PlayerName: "Kimberly", PlayerAvatar: "🦇", Role: "killer"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, base+"/update_player?player_id=nobody", JoinGameRequest{PlayerName: "X", Role: "killer"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "started", decode[statusResponse](t, rec).Status)

	rec = do(t, router, http.MethodGet, base+"/state?player_id="+kim.PlayerID, nil)
	view := decode[types.GameView](t, rec)
	assert.Equal(t, string(engine.PhaseSurvivorSelection), view.Phase)
	assert.Equal(t, "Kimberly", view.Players[kim.PlayerID].Name)
	assert.Equal(t, 1, view.KeysNeeded)

	rec = do(t, router, http.MethodPost, base+"/join", JoinGameRequest{PlayerName: "Late", Role: "killer"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, router, http.MethodGet, base+"/state", nil)
	assert.Equal(t, "lobby", decode[types.GameView](t, rec).Phase)
}

func TestChangeRole_RejectedUnderConspiracy(t *testing.T) {
	router := newTestRouter(t, nil)
	game := createGame(t, router, "", true)

	rec := do(t, router, http.MethodPost,
		"/api/game/"+game.SessionID+"/change_role?player_id="+game.PlayerID+"&new_role=killer", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, engine.ErrConspiracyRole.Error(), decode[errorBody](t, rec).Detail)
}

func TestPowers(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := do(t, router, http.MethodGet, "/api/powers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	powers := decode[map[string]types.PowerDefinition](t, rec)
	assert.Len(t, powers, len(engine.PowerOrder))
	assert.Equal(t, 2, powers["barricade"].RoomsCount)
}

func TestJoinQR(t *testing.T) {
	router := newTestRouter(t, nil)
	game := createGame(t, router, "survivor", false)

	rec := do(t, router, http.MethodGet, "/api/game/"+game.SessionID+"/qr", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = do(t, router, http.MethodGet, "/api/game/ZZZZ/qr", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMatches(t *testing.T) {
	matches := &fakeMatches{}
	router := newTestRouter(t, matches)

	rec := do(t, router, http.MethodGet, "/api/matches?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, matches.limit)
	got := decode[[]store.MatchRecord](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "ABCD", got[0].SessionID)

	rec = do(t, router, http.MethodGet, "/api/matches?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	matches.err = errors.New("connection refused")
	rec = do(t, router, http.MethodGet, "/api/matches", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decode[errorBody](t, rec).Detail)
}

func TestListMatches_DisabledWithoutArchive(t *testing.T) {
	router := newTestRouter(t, nil)

	rec := do(t, router, http.MethodGet, "/api/matches", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthzAndCORS(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{engine.ErrSessionNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", engine.ErrPlayerNotFound), http.StatusNotFound},
		{engine.ErrRoomLocked, http.StatusBadRequest},
		{fmt.Errorf("join: %w", engine.ErrDuplicatePlayer), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestGameState_Viewers(t *testing.T) {
	router := newTestRouter(t, nil)
	game := createGame(t, router, "survivor", false)
	base := "/api/game/" + game.SessionID + "/state"

	tests := []struct {
		name     string
		query    string
		wantCode int
	}{
		{"player", "?player_id=" + game.PlayerID, http.StatusOK},
		{"public view", "", http.StatusOK},
		{"unknown player", "?player_id=nobody", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, base+tt.query, nil)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusNotFound {
				assert.Equal(t, engine.ErrPlayerNotFound.Error(), decode[errorBody](t, rec).Detail)
				return
			}
			assert.Equal(t, game.SessionID, decode[types.GameView](t, rec).SessionID)
		})
	}
}
