// Package tmars adapts the Terraforming Mars REST API to gamestate.Source.
package tmars

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/miou/go/clients"
	"github.com/mcdev12/miou/go/clients/tmars_client"
	"github.com/mcdev12/miou/go/internal/gamestate"
	"github.com/mcdev12/miou/go/internal/models"
)

// maxConcurrentRequests bounds the per-game fan-out of one poll.
const maxConcurrentRequests = 8

// Requester is what the adapter needs from the HTTP client.
type Requester interface {
	GetGames(ctx context.Context) ([]tmars_client.GameSummary, error)
	GetGameDetails(ctx context.Context, gameID string) (*tmars_client.GameDetail, error)
	GetWaitingFor(ctx context.Context, spectatorID string) ([]string, error)
	PlayerURL(playerID string) string
}

// Source builds snapshots from a Terraforming Mars server.
type Source struct {
	requester Requester
	clock     clockwork.Clock
}

var _ gamestate.Source = (*Source)(nil)

func NewSource(requester Requester, clock clockwork.Clock) *Source {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Source{requester: requester, clock: clock}
}

// FetchGames lists the games, then reads every game's details and waited
// players concurrently. Only the game list is essential: a game whose details
// cannot be read is reported as unknown instead of failing the whole poll.
func (s *Source) FetchGames(ctx context.Context) (gamestate.Snapshot, error) {
	summaries, err := s.requester.GetGames(ctx)
	if err != nil {
		return gamestate.Snapshot{}, classify("get games", err)
	}

	snapshot := gamestate.NewSnapshot(s.clock.Now())
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRequests)
	for _, summary := range summaries {
		gameID := summary.GameID
		if gameID == "" {
			log.Warn().Msg("ignoring game without id")
			continue
		}
		g.Go(func() error {
			game, ended, err := s.readGame(gctx, gameID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				log.Warn().Err(err).Str("game_id", gameID).Msg("game state unavailable this poll")
				snapshot.Unknown[gameID] = struct{}{}
			case ended:
				log.Debug().Str("game_id", gameID).Msg("ignoring ended game")
			default:
				snapshot.Games[gameID] = game
			}
			// Per-game failures never cancel the siblings.
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return gamestate.Snapshot{}, classify("fetch game details", err)
	}

	log.Debug().
		Int("games", len(snapshot.Games)).
		Int("unknown", len(snapshot.Unknown)).
		Msg("fetched games")

	return snapshot, nil
}

func (s *Source) readGame(ctx context.Context, gameID string) (models.Game, bool, error) {
	detail, err := s.requester.GetGameDetails(ctx, gameID)
	if err != nil {
		return models.Game{}, false, err
	}

	phase, known := models.ParsePhase(detail.Phase)
	if !known {
		log.Warn().Str("game_id", gameID).Str("phase", detail.Phase).Msg("unknown phase string")
	}
	if phase == models.PhaseEnd {
		return models.Game{}, true, nil
	}

	game := models.Game{
		ID:          gameID,
		Phase:       phase,
		SpectatorID: detail.SpectatorID,
		Players:     s.convertPlayers(detail.Players),
	}

	if detail.SpectatorID == "" {
		return models.Game{}, false, fmt.Errorf("game %s has no spectator id", gameID)
	}

	colors, err := s.requester.GetWaitingFor(ctx, detail.SpectatorID)
	if err != nil {
		return models.Game{}, false, err
	}

	waiting := make(map[string]struct{}, len(colors))
	for _, c := range colors {
		waiting[c] = struct{}{}
	}
	for i := range game.Players {
		if game.Players[i].Color == "" {
			continue
		}
		_, game.Players[i].Turn = waiting[game.Players[i].Color]
	}

	return game, false, nil
}

func (s *Source) convertPlayers(details []tmars_client.PlayerDetail) []models.Player {
	players := make([]models.Player, 0, len(details))
	for _, d := range details {
		p := models.Player{
			ID:    d.ID,
			Name:  d.Name,
			Color: d.Color,
		}
		if d.ID != "" {
			p.URL = s.requester.PlayerURL(d.ID)
		}
		players = append(players, p)
	}
	return players
}

func classify(op string, err error) error {
	var se *clients.StatusError
	if errors.As(err, &se) && gamestate.IsHardStopStatus(se.Code) {
		return fmt.Errorf("%s: %w", op, &gamestate.HardStopError{Status: se.Code})
	}
	return gamestate.Transient(op, err)
}
