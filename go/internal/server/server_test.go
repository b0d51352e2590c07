package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/miou/go/internal/gamestate"
	"github.com/mcdev12/miou/go/internal/models"
	"github.com/mcdev12/miou/go/internal/polling"
	"github.com/mcdev12/miou/go/internal/scheduler"
)

type stubDeps struct {
	snap    gamestate.Snapshot
	hasSnap bool
	alerts  []models.Alert
	stats   polling.Stats
	pending []scheduler.PendingTimer
}

func (s *stubDeps) Snapshot() (gamestate.Snapshot, bool) { return s.snap, s.hasSnap }

func (s *stubDeps) ListAll() []models.Alert { return s.alerts }

func (s *stubDeps) ListByRoom(room string) []models.Alert {
	var out []models.Alert
	for _, a := range s.alerts {
		if a.RoomID == room {
			out = append(out, a)
		}
	}
	return out
}

func (s *stubDeps) Stats() polling.Stats { return s.stats }

func (s *stubDeps) Pending() []scheduler.PendingTimer { return s.pending }

func newTestServer(t *testing.T, stub *stubDeps) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(Routes(Deps{Snapshots: stub, Alerts: stub, Loop: stub, Scheduler: stub}))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubDeps{})
	resp := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGames(t *testing.T) {
	stub := &stubDeps{}
	srv := newTestServer(t, stub)

	resp := get(t, srv.URL+"/games")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	stub.snap = gamestate.NewSnapshot(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	stub.snap.Games["g2"] = models.Game{ID: "g2", Phase: models.PhaseAction}
	stub.snap.Games["g1"] = models.Game{ID: "g1", Phase: models.PhaseResearch}
	stub.snap.Unknown["g3"] = struct{}{}
	stub.hasSnap = true

	resp = get(t, srv.URL+"/games")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body gamesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Games, 2)
	assert.Equal(t, "g1", body.Games[0].ID)
	assert.Equal(t, []string{"g3"}, body.Unknown)
}

func TestAlerts(t *testing.T) {
	stub := &stubDeps{alerts: []models.Alert{
		{RoomID: "!a", GameID: "g1", PlayerName: "Alice", Delay: time.Minute},
		{RoomID: "!b", GameID: "g1", PlayerName: "Bob", Delay: 2 * time.Minute},
	}}
	srv := newTestServer(t, stub)

	var all []map[string]any
	require.NoError(t, json.NewDecoder(get(t, srv.URL+"/alerts").Body).Decode(&all))
	assert.Len(t, all, 2)

	var room []map[string]any
	require.NoError(t, json.NewDecoder(get(t, srv.URL+"/alerts?room=!b").Body).Decode(&room))
	require.Len(t, room, 1)
	assert.Equal(t, "Bob", room[0]["player"])
	assert.EqualValues(t, 2, room[0]["delay_minutes"])

	var none []map[string]any
	require.NoError(t, json.NewDecoder(get(t, srv.URL+"/alerts?room=!z").Body).Decode(&none))
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestStatus(t *testing.T) {
	fireAt := time.Date(2025, 1, 1, 0, 5, 0, 0, time.UTC)
	stub := &stubDeps{
		stats: polling.Stats{Polls: 3, HardStops: 1, State: "cooling_down"},
		pending: []scheduler.PendingTimer{
			{Key: models.AlertKey{RoomID: "!a", GameID: "g1"}, Player: "Alice", FireAt: fireAt},
		},
	}
	srv := newTestServer(t, stub)

	var body statusResponse
	require.NoError(t, json.NewDecoder(get(t, srv.URL+"/status").Body).Decode(&body))
	assert.Equal(t, int64(3), body.Polling.Polls)
	assert.Equal(t, "cooling_down", body.Polling.State)
	require.Len(t, body.Pending, 1)
	assert.True(t, fireAt.Equal(body.Pending[0].FireAt))
}

func TestNew_WrapsRoutes(t *testing.T) {
	srv := New(":0", Deps{Snapshots: &stubDeps{}, Alerts: &stubDeps{}, Loop: &stubDeps{}, Scheduler: &stubDeps{}})
	assert.Equal(t, ":0", srv.Addr)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "OK", rec.Body.String())
}
