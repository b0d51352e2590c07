package models

import (
	"time"
)

// AlertKey identifies a subscription. A room holds at most one alert per game.
type AlertKey struct {
	RoomID string `json:"room_id"`
	GameID string `json:"game_id"`
}

func (k AlertKey) String() string {
	return k.RoomID + "/" + k.GameID
}

// Alert is a room's request to be notified when a player's turn has been
// pending for Delay. See alert_json.go for the persisted form.
type Alert struct {
	RoomID     string
	GameID     string
	UserID     string
	PlayerName string
	Delay      time.Duration
	CreatedAt  time.Time
}

// Key returns the alert's composite key.
func (a Alert) Key() AlertKey {
	return AlertKey{RoomID: a.RoomID, GameID: a.GameID}
}

// DelayMinutes returns the delay in whole minutes, the unit users and
// persisted records use.
func (a Alert) DelayMinutes() int64 {
	return int64(a.Delay / time.Minute)
}
