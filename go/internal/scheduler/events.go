package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/miou/go/internal/models"
	"github.com/mcdev12/miou/go/internal/notify"
)

// FireEvent is emitted once when an alert's delay elapses while the turn is
// still held by its player.
type FireEvent struct {
	ID          uuid.UUID
	Alert       models.Alert
	PlayerURL   string
	ActivatedAt time.Time
	FiredAt     time.Time
}

// Message renders the event for a notification sink.
func (e FireEvent) Message() notify.Message {
	return notify.Message{
		ID:        e.ID,
		RoomID:    e.Alert.RoomID,
		UserID:    e.Alert.UserID,
		GameID:    e.Alert.GameID,
		Player:    e.Alert.PlayerName,
		PlayerURL: e.PlayerURL,
		Text:      notify.TurnMessage(e.Alert.UserID, e.PlayerURL),
		FiredAt:   e.FiredAt,
	}
}

// PendingTimer describes an armed alert.
type PendingTimer struct {
	Key         models.AlertKey `json:"key"`
	Player      string          `json:"player"`
	PlayerURL   string          `json:"player_url"`
	ActivatedAt time.Time       `json:"activated_at"`
	FireAt      time.Time       `json:"fire_at"`
}
