// Package notify delivers fired turn alerts to the rooms that asked for them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is one rendered notification for a room.
type Message struct {
	ID        uuid.UUID `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	GameID    string    `json:"game_id"`
	Player    string    `json:"player"`
	PlayerURL string    `json:"player_url"`
	Text      string    `json:"text"`
	FiredAt   time.Time `json:"fired_at"`
}

// Sink delivers a message to its room. Delivery is best effort; callers log
// failures and never retry.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, msg Message) error

func (f SinkFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// DeliveryError reports a failed send.
type DeliveryError struct {
	Room string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver notification to room %s: %v", e.Room, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// AsDeliveryError wraps err unless it already is a DeliveryError.
func AsDeliveryError(room string, err error) error {
	if err == nil {
		return nil
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return err
	}
	return &DeliveryError{Room: room, Err: err}
}

// TurnMessage renders the notification text sent to a room.
func TurnMessage(user, playerURL string) string {
	return fmt.Sprintf("%s: it's your turn to play: [%s](%s).", user, playerURL, playerURL)
}

// MultiSink sends every message to all of its sinks. It fails if any of them
// fails, after trying all.
type MultiSink []Sink

func (m MultiSink) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return AsDeliveryError(msg.RoomID, errors.Join(errs...))
}
