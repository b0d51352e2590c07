package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogSink writes notifications to the log. Used when no transport is
// configured and as an audit trail next to real sinks.
type LogSink struct{}

func (LogSink) Send(ctx context.Context, msg Message) error {
	log.Info().
		Str("notification_id", msg.ID.String()).
		Str("room_id", msg.RoomID).
		Str("game_id", msg.GameID).
		Str("player", msg.Player).
		Str("text", msg.Text).
		Msg("turn notification")
	return nil
}
