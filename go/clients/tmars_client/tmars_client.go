package tmars_client

import (
	"net/url"
	"strings"
	"time"

	"github.com/mcdev12/miou/go/clients"
)

// TMarsClient talks to a Terraforming Mars server. The server id is the
// secret printed by the server at start up; it is required to list games.
type TMarsClient struct {
	*clients.BaseClient
	serverID      string
	playerBaseURL string
}

func NewTMarsClient(baseURL, serverID string, timeout time.Duration) *TMarsClient {
	client := &TMarsClient{
		BaseClient: clients.NewBaseClient(strings.TrimRight(baseURL, "/")),
		serverID:   serverID,
	}

	client.SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return client
}

// SetPlayerBaseURL points player links at a public address when the server
// is polled through an internal one.
func (c *TMarsClient) SetPlayerBaseURL(baseURL string) {
	c.playerBaseURL = strings.TrimRight(baseURL, "/")
}

// PlayerURL returns the link to a player's view of their game.
func (c *TMarsClient) PlayerURL(playerID string) string {
	base := c.playerBaseURL
	if base == "" {
		base = c.BaseURL()
	}
	return base + PlayerPath + "?" + url.Values{IDParam: {playerID}}.Encode()
}
