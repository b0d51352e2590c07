// Package alerts owns the persisted turn-alert subscriptions.
package alerts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/miou/go/internal/models"
)

// Bounds limits the delay users may register.
type Bounds struct {
	Min time.Duration
	Max time.Duration
}

// DefaultBounds allows one minute up to one week.
func DefaultBounds() Bounds {
	return Bounds{Min: time.Minute, Max: 7 * 24 * time.Hour}
}

// ChangeType tells what happened to an alert.
type ChangeType int

const (
	ChangeRegistered ChangeType = iota
	ChangeUnregistered
)

func (t ChangeType) String() string {
	if t == ChangeRegistered {
		return "registered"
	}
	return "unregistered"
}

// Change describes one committed mutation. Previous is nil for a new alert,
// Current is nil for a removal.
type Change struct {
	Type     ChangeType
	Key      models.AlertKey
	Previous *models.Alert
	Current  *models.Alert
}

// Store is the single owner of the alert subscriptions. Writers are
// serialized and each mutation is durable before it becomes visible; reads
// are served from an in-memory copy.
type Store struct {
	repo   Repository
	bounds Bounds
	clock  clockwork.Clock

	writeMu sync.Mutex // serializes mutations, held across repository writes

	mu    sync.RWMutex
	cache map[models.AlertKey]models.Alert
	hooks []func(Change)
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for creation timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// NewStore loads every persisted alert. An error here means the persisted
// state could not be read and must not be ignored.
func NewStore(ctx context.Context, repo Repository, bounds Bounds, opts ...Option) (*Store, error) {
	s := &Store{
		repo:   repo,
		bounds: bounds,
		clock:  clockwork.NewRealClock(),
		cache:  make(map[models.AlertKey]models.Alert),
	}
	for _, opt := range opts {
		opt(s)
	}

	loaded, err := repo.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}
	for _, a := range loaded {
		s.cache[a.Key()] = a
	}

	log.Info().Int("alerts", len(s.cache)).Msg("alert store ready")
	return s, nil
}

// Bounds returns the configured delay bounds.
func (s *Store) Bounds() Bounds {
	return s.bounds
}

// OnChange registers a hook called after every committed mutation, in
// commit order. Hooks must not call back into the store's mutating methods.
func (s *Store) OnChange(fn func(Change)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Register stores the alert, replacing any alert for the same room and game.
func (s *Store) Register(ctx context.Context, alert models.Alert) (models.Alert, error) {
	if err := s.validate(alert); err != nil {
		return models.Alert{}, err
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = s.clock.Now().UTC()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.repo.Upsert(ctx, alert); err != nil {
		log.Error().Err(err).Str("room_id", alert.RoomID).Str("game_id", alert.GameID).Msg("failed to persist alert")
		return models.Alert{}, &PersistenceError{Op: "register", Err: err}
	}

	s.mu.Lock()
	prev, existed := s.cache[alert.Key()]
	s.cache[alert.Key()] = alert
	s.mu.Unlock()

	change := Change{Type: ChangeRegistered, Key: alert.Key(), Current: &alert}
	if existed {
		change.Previous = &prev
	}
	s.notify(change)

	log.Info().
		Str("room_id", alert.RoomID).
		Str("game_id", alert.GameID).
		Str("user_id", alert.UserID).
		Str("player", alert.PlayerName).
		Dur("delay", alert.Delay).
		Bool("replaced", existed).
		Msg("registered alert")

	return alert, nil
}

// Unregister removes the alert of a room for a game.
func (s *Store) Unregister(ctx context.Context, roomID, gameID string) error {
	key := models.AlertKey{RoomID: roomID, GameID: gameID}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	prev, ok := s.cache[key]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	if err := s.repo.Delete(ctx, key); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("game_id", gameID).Msg("failed to persist alert removal")
		return &PersistenceError{Op: "unregister", Err: err}
	}

	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	s.notify(Change{Type: ChangeUnregistered, Key: key, Previous: &prev})

	log.Info().Str("room_id", roomID).Str("game_id", gameID).Msg("unregistered alert")
	return nil
}

// RemoveGame drops every alert of a game and returns how many were removed.
func (s *Store) RemoveGame(ctx context.Context, gameID string) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var removed []models.Alert
	s.mu.RLock()
	for key, a := range s.cache {
		if key.GameID == gameID {
			removed = append(removed, a)
		}
	}
	s.mu.RUnlock()
	if len(removed) == 0 {
		return 0, nil
	}

	if err := s.repo.DeleteGame(ctx, gameID); err != nil {
		log.Error().Err(err).Str("game_id", gameID).Msg("failed to persist game alerts removal")
		return 0, &PersistenceError{Op: "remove game", Err: err}
	}

	s.mu.Lock()
	for _, a := range removed {
		delete(s.cache, a.Key())
	}
	s.mu.Unlock()

	for i := range removed {
		s.notify(Change{Type: ChangeUnregistered, Key: removed[i].Key(), Previous: &removed[i]})
	}

	log.Info().Str("game_id", gameID).Int("alerts", len(removed)).Msg("removed alerts for non-existing game")
	return len(removed), nil
}

// Get returns the alert of a room for a game.
func (s *Store) Get(roomID, gameID string) (models.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.cache[models.AlertKey{RoomID: roomID, GameID: gameID}]
	return a, ok
}

// ListByRoom returns the alerts of a room ordered by game id.
func (s *Store) ListByRoom(roomID string) []models.Alert {
	s.mu.RLock()
	var out []models.Alert
	for key, a := range s.cache {
		if key.RoomID == roomID {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out
}

// ListAll returns a copy of every alert ordered by game then room.
func (s *Store) ListAll() []models.Alert {
	s.mu.RLock()
	out := make([]models.Alert, 0, len(s.cache))
	for _, a := range s.cache {
		out = append(out, a)
	}
	s.mu.RUnlock()

	sortByGameThenRoom(out)
	return out
}

// Len returns the number of alerts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

func (s *Store) notify(c Change) {
	for _, fn := range s.hooks {
		fn(c)
	}
}

func (s *Store) validate(a models.Alert) error {
	switch {
	case strings.TrimSpace(a.RoomID) == "":
		return &ValidationError{Field: "room", Reason: "must not be empty"}
	case strings.TrimSpace(a.GameID) == "":
		return &ValidationError{Field: "game", Reason: "must not be empty"}
	case strings.TrimSpace(a.PlayerName) == "":
		return &ValidationError{Field: "player", Reason: "must not be empty"}
	case a.Delay%time.Minute != 0:
		return &ValidationError{Field: "delay", Reason: "must be a whole number of minutes"}
	case a.Delay < s.bounds.Min || a.Delay > s.bounds.Max:
		return &ValidationError{
			Field:  "delay",
			Reason: fmt.Sprintf("must be between %s and %s", formatMinutes(s.bounds.Min), formatMinutes(s.bounds.Max)),
		}
	}
	return nil
}

func formatMinutes(d time.Duration) string {
	m := int64(d / time.Minute)
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
