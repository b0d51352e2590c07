package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGame_FindPlayer(t *testing.T) {
	g := Game{ID: "g1", Players: []Player{
		{ID: "p1", Name: "Alice"},
		{ID: "p2", Name: "alice"},
		{ID: "p3", Name: "Alice"},
	}}

	p, ok := g.FindPlayer("Alice")
	require.True(t, ok)
	assert.Equal(t, "p1", p.ID, "first exact match wins")

	p, ok = g.FindPlayer("alice")
	require.True(t, ok)
	assert.Equal(t, "p2", p.ID)

	_, ok = g.FindPlayer("ALICE")
	assert.False(t, ok, "matching is case-sensitive")
}

func TestGame_WaitingPlayers(t *testing.T) {
	g := Game{Players: []Player{
		{Name: "Alice", Turn: true},
		{Name: "Bob"},
		{Name: "Carol", Turn: true},
	}}

	waiting := g.WaitingPlayers()
	require.Len(t, waiting, 2)
	assert.Equal(t, "Alice", waiting[0].Name)
	assert.Equal(t, "Carol", waiting[1].Name)
}

func TestParsePhase(t *testing.T) {
	p, ok := ParsePhase("action")
	assert.True(t, ok)
	assert.Equal(t, PhaseAction, p)

	p, ok = ParsePhase("solarFlare")
	assert.False(t, ok)
	assert.Equal(t, Phase("solarFlare"), p)
}

func TestAlert_JSONStoresDelayInMinutes(t *testing.T) {
	a := Alert{
		RoomID:     "!room:example.org",
		GameID:     "g1",
		UserID:     "@alice:example.org",
		PlayerName: "Alice",
		Delay:      90 * time.Minute,
		CreatedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"delay_minutes":90`)
	assert.Contains(t, string(data), `"player":"Alice"`)

	var back Alert
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, a, back)
	assert.Equal(t, AlertKey{RoomID: "!room:example.org", GameID: "g1"}, back.Key())
}
