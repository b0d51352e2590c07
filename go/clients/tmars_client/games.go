package tmars_client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// GameSummary is one entry of /api/games. Participant ids are ignored since
// the game details carry them.
type GameSummary struct {
	GameID string `json:"gameId"`
}

// GameDetail is the payload of /api/game?id=.
type GameDetail struct {
	ID          string         `json:"id"`
	Phase       string         `json:"phase"`
	SpectatorID string         `json:"spectatorId"`
	Players     []PlayerDetail `json:"players"`
}

// PlayerDetail is a player as listed in the game details.
type PlayerDetail struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// WaitingForResponse is the payload of /api/waitingfor?id=<spectatorId>. The
// server identifies waited players by color.
type WaitingForResponse struct {
	WaitingFor []string `json:"waitingFor"`
}

func (c *TMarsClient) GetGames(ctx context.Context) ([]GameSummary, error) {
	body, err := c.Get(ctx, GamesEndpoint, url.Values{ServerIDParam: {c.serverID}})
	if err != nil {
		return nil, fmt.Errorf("failed to get games: %w", err)
	}

	var games []GameSummary
	if err := json.Unmarshal(body, &games); err != nil {
		return nil, fmt.Errorf("failed to unmarshal games: %w", err)
	}

	return games, nil
}

func (c *TMarsClient) GetGameDetails(ctx context.Context, gameID string) (*GameDetail, error) {
	body, err := c.Get(ctx, GameEndpoint, url.Values{IDParam: {gameID}})
	if err != nil {
		return nil, fmt.Errorf("failed to get game %s: %w", gameID, err)
	}

	var detail GameDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game %s: %w", gameID, err)
	}

	return &detail, nil
}

func (c *TMarsClient) GetWaitingFor(ctx context.Context, spectatorID string) ([]string, error) {
	body, err := c.Get(ctx, WaitingForEndpoint, url.Values{IDParam: {spectatorID}})
	if err != nil {
		return nil, fmt.Errorf("failed to get waited players: %w", err)
	}

	var response WaitingForResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal waited players: %w", err)
	}

	return response.WaitingFor, nil
}
