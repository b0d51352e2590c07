package tmars

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/miou/go/clients"
	"github.com/mcdev12/miou/go/clients/tmars_client"
	"github.com/mcdev12/miou/go/internal/gamestate"
)

type fakeRequester struct {
	games      []tmars_client.GameSummary
	gamesErr   error
	details    map[string]*tmars_client.GameDetail
	detailErr  map[string]error
	waiting    map[string][]string
	waitingErr map[string]error
}

func (f *fakeRequester) GetGames(ctx context.Context) ([]tmars_client.GameSummary, error) {
	return f.games, f.gamesErr
}

func (f *fakeRequester) GetGameDetails(ctx context.Context, gameID string) (*tmars_client.GameDetail, error) {
	if err := f.detailErr[gameID]; err != nil {
		return nil, err
	}
	d, ok := f.details[gameID]
	if !ok {
		return nil, errors.New("not found")
	}
	return d, nil
}

func (f *fakeRequester) GetWaitingFor(ctx context.Context, spectatorID string) ([]string, error) {
	if err := f.waitingErr[spectatorID]; err != nil {
		return nil, err
	}
	return f.waiting[spectatorID], nil
}

func (f *fakeRequester) PlayerURL(playerID string) string {
	return "http://tmars/player?id=" + playerID
}

func twoPlayerGame(id, spectator string) *tmars_client.GameDetail {
	return &tmars_client.GameDetail{
		ID:          id,
		Phase:       "action",
		SpectatorID: spectator,
		Players: []tmars_client.PlayerDetail{
			{ID: id + "-p1", Name: "Alice", Color: "red"},
			{ID: id + "-p2", Name: "Bob", Color: "green"},
		},
	}
}

func TestFetchGames_MapsWaitedColorsToPlayers(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
	req := &fakeRequester{
		games:   []tmars_client.GameSummary{{GameID: "g1"}},
		details: map[string]*tmars_client.GameDetail{"g1": twoPlayerGame("g1", "s1")},
		waiting: map[string][]string{"s1": {"green"}},
	}

	snap, err := NewSource(req, clock).FetchGames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), snap.TakenAt)

	game, ok := snap.Game("g1")
	require.True(t, ok)
	require.Len(t, game.Players, 2)
	assert.False(t, game.Players[0].Turn)
	assert.True(t, game.Players[1].Turn)
	assert.Equal(t, "http://tmars/player?id=g1-p2", game.Players[1].URL)
	assert.Empty(t, snap.Unknown)
}

func TestFetchGames_DropsEndedGames(t *testing.T) {
	ended := twoPlayerGame("g2", "s2")
	ended.Phase = "end"
	req := &fakeRequester{
		games:   []tmars_client.GameSummary{{GameID: "g1"}, {GameID: "g2"}},
		details: map[string]*tmars_client.GameDetail{"g1": twoPlayerGame("g1", "s1"), "g2": ended},
	}

	snap, err := NewSource(req, nil).FetchGames(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Listed("g1"))
	assert.False(t, snap.Listed("g2"))
}

func TestFetchGames_PerGameFailuresAreUnknown(t *testing.T) {
	noSpectator := twoPlayerGame("g3", "")
	req := &fakeRequester{
		games: []tmars_client.GameSummary{{GameID: "g1"}, {GameID: "g2"}, {GameID: "g3"}},
		details: map[string]*tmars_client.GameDetail{
			"g1": twoPlayerGame("g1", "s1"),
			"g3": noSpectator,
		},
		detailErr:  map[string]error{"g2": errors.New("timeout")},
		waitingErr: map[string]error{"s1": errors.New("bad payload")},
	}

	snap, err := NewSource(req, nil).FetchGames(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Games)
	assert.True(t, snap.IsUnknown("g1"))
	assert.True(t, snap.IsUnknown("g2"))
	assert.True(t, snap.IsUnknown("g3"))
}

func TestFetchGames_MissingColorIsNeverTurn(t *testing.T) {
	detail := twoPlayerGame("g1", "s1")
	detail.Players[0].Color = ""
	req := &fakeRequester{
		games:   []tmars_client.GameSummary{{GameID: "g1"}},
		details: map[string]*tmars_client.GameDetail{"g1": detail},
		waiting: map[string][]string{"s1": {"", "green"}},
	}

	snap, err := NewSource(req, nil).FetchGames(context.Background())
	require.NoError(t, err)
	game := snap.Games["g1"]
	assert.False(t, game.Players[0].Turn)
	assert.True(t, game.Players[1].Turn)
}

func TestFetchGames_ClassifiesListErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want gamestate.Class
	}{
		{name: "service unavailable", err: &clients.StatusError{Code: http.StatusServiceUnavailable}, want: gamestate.ClassHardStop},
		{name: "not implemented", err: &clients.StatusError{Code: http.StatusNotImplemented}, want: gamestate.ClassHardStop},
		{name: "internal error", err: &clients.StatusError{Code: http.StatusInternalServerError}, want: gamestate.ClassTransient},
		{name: "connection", err: errors.New("connection refused"), want: gamestate.ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &fakeRequester{gamesErr: tt.err}
			_, err := NewSource(req, nil).FetchGames(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.want, gamestate.Classify(err))
		})
	}
}
