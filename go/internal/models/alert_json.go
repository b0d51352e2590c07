package models

import (
	"encoding/json"
	"time"
)

type alertJSON struct {
	RoomID       string    `json:"room_id"`
	GameID       string    `json:"game_id"`
	UserID       string    `json:"user_id"`
	PlayerName   string    `json:"player"`
	DelayMinutes int64     `json:"delay_minutes"`
	CreatedAt    time.Time `json:"created_at"`
}

// MarshalJSON stores the delay as whole minutes.
func (a Alert) MarshalJSON() ([]byte, error) {
	return json.Marshal(alertJSON{
		RoomID:       a.RoomID,
		GameID:       a.GameID,
		UserID:       a.UserID,
		PlayerName:   a.PlayerName,
		DelayMinutes: a.DelayMinutes(),
		CreatedAt:    a.CreatedAt,
	})
}

func (a *Alert) UnmarshalJSON(data []byte) error {
	var raw alertJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Alert{
		RoomID:     raw.RoomID,
		GameID:     raw.GameID,
		UserID:     raw.UserID,
		PlayerName: raw.PlayerName,
		Delay:      time.Duration(raw.DelayMinutes) * time.Minute,
		CreatedAt:  raw.CreatedAt,
	}
	return nil
}
