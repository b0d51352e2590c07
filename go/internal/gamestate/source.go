// Package gamestate defines the contract between the polling loop and the
// remote game server: what a poll returns and how its failures are classified.
package gamestate

import (
	"context"
	"sort"
	"time"

	"github.com/mcdev12/miou/go/internal/models"
)

// Source fetches the current roster of games and whose turn it is.
type Source interface {
	FetchGames(ctx context.Context) (Snapshot, error)
}

// Snapshot is the immutable result of one successful poll.
type Snapshot struct {
	TakenAt time.Time
	Games   map[string]models.Game
	// Unknown holds ids of games listed by the server whose details could not
	// be read during this poll. Their previous state must be kept as is.
	Unknown map[string]struct{}
}

// NewSnapshot builds an empty snapshot taken at t.
func NewSnapshot(t time.Time) Snapshot {
	return Snapshot{
		TakenAt: t,
		Games:   make(map[string]models.Game),
		Unknown: make(map[string]struct{}),
	}
}

// Game returns the game with the given id, if it was read this poll.
func (s Snapshot) Game(id string) (models.Game, bool) {
	g, ok := s.Games[id]
	return g, ok
}

// IsUnknown reports whether the game was listed but could not be read.
func (s Snapshot) IsUnknown(id string) bool {
	_, ok := s.Unknown[id]
	return ok
}

// Listed reports whether the server still lists the game, read or not.
func (s Snapshot) Listed(id string) bool {
	_, ok := s.Games[id]
	return ok || s.IsUnknown(id)
}

// SortedGames returns the games ordered by id for deterministic display.
func (s Snapshot) SortedGames() []models.Game {
	games := make([]models.Game, 0, len(s.Games))
	for _, g := range s.Games {
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	return games
}
