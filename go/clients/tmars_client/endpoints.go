package tmars_client

const (
	// API Endpoints
	GamesEndpoint      = "/api/games"
	GameEndpoint       = "/api/game"
	WaitingForEndpoint = "/api/waitingfor"

	// PlayerPath is the player's web view, not part of the JSON API.
	PlayerPath = "/player"

	// Query parameters
	ServerIDParam = "serverId"
	IDParam       = "id"
)
