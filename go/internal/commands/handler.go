package commands

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/miou/go/internal/alerts"
	"github.com/mcdev12/miou/go/internal/models"
)

// Request is one chat message received in a room.
type Request struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
	Body   string `json:"body"`
}

// AlertStore is the part of alerts.Store the commands use.
type AlertStore interface {
	Register(ctx context.Context, alert models.Alert) (models.Alert, error)
	Unregister(ctx context.Context, roomID, gameID string) error
	ListByRoom(roomID string) []models.Alert
	Bounds() alerts.Bounds
}

// GameLookup exposes the games seen by the latest poll.
type GameLookup interface {
	Game(id string) (models.Game, bool)
	Games() []models.Game
}

// Handler answers parsed commands.
type Handler struct {
	store AlertStore
	games GameLookup
}

func NewHandler(store AlertStore, games GameLookup) *Handler {
	return &Handler{store: store, games: games}
}

// Handle returns the reply for req. ok is false when the message was not
// addressed to the bot and must be ignored.
func (h *Handler) Handle(ctx context.Context, req Request) (reply string, ok bool) {
	intent, err := Parse(req.Body)
	if errors.Is(err, ErrNotForBot) {
		return "", false
	}

	var perr *ParseError
	if errors.As(err, &perr) {
		log.Debug().Str("room_id", req.RoomID).Str("body", req.Body).Msg("invalid command")
		return perr.Reply, true
	}
	if err != nil {
		return UnknownCommand(), true
	}

	log.Debug().
		Str("room_id", req.RoomID).
		Str("user_id", req.UserID).
		Str("intent", intentName(intent)).
		Msg("handling command")

	switch in := intent.(type) {
	case Help:
		return HelpText(), true
	case Games:
		return GamesList(h.games.Games()), true
	case Alerts:
		return AlertsList(h.store.ListByRoom(req.RoomID)), true
	case Register:
		return h.register(ctx, req, in), true
	case Unregister:
		return h.unregister(ctx, req, in), true
	default:
		return UnknownCommand(), true
	}
}

func (h *Handler) register(ctx context.Context, req Request, in Register) string {
	bounds := h.store.Bounds()
	delay := time.Duration(in.DelayMinutes) * time.Minute
	if delay < bounds.Min || delay > bounds.Max {
		return InvalidDelay(bounds.Min, bounds.Max)
	}

	game, ok := h.games.Game(in.GameID)
	if !ok {
		return GameNotFound(in.GameID)
	}
	if _, ok := game.FindPlayer(in.Player); !ok {
		return PlayerNotFound(in.Player, in.GameID)
	}

	_, err := h.store.Register(ctx, models.Alert{
		RoomID:     req.RoomID,
		GameID:     in.GameID,
		UserID:     req.UserID,
		PlayerName: in.Player,
		Delay:      delay,
	})

	var verr *alerts.ValidationError
	switch {
	case err == nil:
		return RegisterSucceeded()
	case errors.As(err, &verr) && verr.Field == "delay":
		return InvalidDelay(bounds.Min, bounds.Max)
	case errors.As(err, &verr):
		return InvalidRegister()
	default:
		log.Error().Err(err).Str("room_id", req.RoomID).Str("game_id", in.GameID).Msg("failed to register alert")
		return StorageFailure()
	}
}

func (h *Handler) unregister(ctx context.Context, req Request, in Unregister) string {
	err := h.store.Unregister(ctx, req.RoomID, in.GameID)
	switch {
	case err == nil:
		return UnregisterSucceeded()
	case errors.Is(err, alerts.ErrNotFound):
		return AlertNotFound(in.GameID)
	default:
		log.Error().Err(err).Str("room_id", req.RoomID).Str("game_id", in.GameID).Msg("failed to unregister alert")
		return StorageFailure()
	}
}

func intentName(i Intent) string {
	switch i.(type) {
	case Help:
		return "help"
	case Games:
		return "games"
	case Alerts:
		return "alerts"
	case Register:
		return "register"
	case Unregister:
		return "unregister"
	default:
		return "unknown"
	}
}
