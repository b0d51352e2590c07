package models

// Player is a participant of a game.
type Player struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	// URL is the player's own view of the game on the server.
	URL string `json:"url,omitempty"`
	// Turn is true when the server is waiting for this player.
	Turn bool `json:"turn"`
}
