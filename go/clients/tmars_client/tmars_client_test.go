package tmars_client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/miou/go/clients"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *TMarsClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTMarsClient(srv.URL+"/", "abcd", 5*time.Second)
}

func TestGetGames(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, GamesEndpoint, r.URL.Path)
		assert.Equal(t, "abcd", r.URL.Query().Get(ServerIDParam))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"gameId": "game1", "participantIds": ["a"]}, {"gameId": "game2"}]`))
	})

	games, err := client.GetGames(context.Background())
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, "game1", games[0].GameID)
	assert.Equal(t, "game2", games[1].GameID)
}

func TestGetGameDetails(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, GameEndpoint, r.URL.Path)
		assert.Equal(t, "game1", r.URL.Query().Get(IDParam))
		_, _ = w.Write([]byte(`{"id": "game1", "phase": "research", "spectatorId": "specId", "players": [{"id": "playerId1", "color": "green", "name": "Alice"}, {"id": "playerId2", "color": "red", "name": "Bob"}]}`))
	})

	game, err := client.GetGameDetails(context.Background(), "game1")
	require.NoError(t, err)
	assert.Equal(t, "game1", game.ID)
	assert.Equal(t, "research", game.Phase)
	assert.Equal(t, "specId", game.SpectatorID)
	require.Len(t, game.Players, 2)
	assert.Equal(t, PlayerDetail{ID: "playerId1", Name: "Alice", Color: "green"}, game.Players[0])
	assert.Equal(t, PlayerDetail{ID: "playerId2", Name: "Bob", Color: "red"}, game.Players[1])
}

func TestGetWaitingFor(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, WaitingForEndpoint, r.URL.Path)
		assert.Equal(t, "specId", r.URL.Query().Get(IDParam))
		_, _ = w.Write([]byte(`{"waitingFor": ["green", "red"]}`))
	})

	colors, err := client.GetWaitingFor(context.Background(), "specId")
	require.NoError(t, err)
	assert.Equal(t, []string{"green", "red"}, colors)
}

func TestGetGames_StatusError(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})

	_, err := client.GetGames(context.Background())
	require.Error(t, err)

	var se *clients.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Contains(t, se.Body, "maintenance")
}

func TestGetGames_BadPayload(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})

	_, err := client.GetGames(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal games")
}

func TestPlayerURL(t *testing.T) {
	client := NewTMarsClient("http://tmars.server/", "server_id", 0)
	assert.Equal(t, "http://tmars.server/player?id=123", client.PlayerURL("123"))
}

func TestPlayerURL_PublicBase(t *testing.T) {
	client := NewTMarsClient("http://tmars:8080", "server_id", 0)
	client.SetPlayerBaseURL("https://mars.example.org/")
	assert.Equal(t, "https://mars.example.org/player?id=p1", client.PlayerURL("p1"))
}
