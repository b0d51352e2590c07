package commands

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/mcdev12/miou/go/internal/models"
)

const week = 7 * 24 * time.Hour

func HelpText() string {
	return "Commands:\n" +
		"- `games`: list all the ongoing games\n" +
		"- `alerts`: list your registered alerts\n" +
		"- `register <game_id> <player_name> <delay_in_minutes>`: register a new alert\n" +
		"- `unregister <game_id>`: unregister an alert\n" +
		"- `help`: show this help message\n\n" +
		"Alert sends a mention to the registered user when their turn to play arrives, following the delay set in the register argument.\n" +
		"> *miou* is a free open source terraforming mars bot. Source code is available on [Github](https://github.com/florianduros/miou)."
}

func UnknownCommand() string {
	return "Unknown command. Type `!miou help` for more information."
}

func InvalidRegister() string {
	return "Invalid register command. Usage: `!miou register <game_id> <player_name> <delay_in_minutes>`"
}

func InvalidUnregister() string {
	return "Invalid unregister command. Usage: `!miou unregister <game_id>`"
}

// InvalidDelay describes the accepted delay range.
func InvalidDelay(lo, hi time.Duration) string {
	return fmt.Sprintf("Invalid delay. Delay must be between %s and %s.", describeDelay(lo), describeDelay(hi))
}

func GameNotFound(gameID string) string {
	return fmt.Sprintf("Game with id '%s' not found.", gameID)
}

func PlayerNotFound(player, gameID string) string {
	return fmt.Sprintf("Player '%s' not found in game with id '%s'.", player, gameID)
}

func RegisterSucceeded() string {
	return "You have been registered successfully."
}

func UnregisterSucceeded() string {
	return "You have been unregistered successfully."
}

func AlertNotFound(gameID string) string {
	return fmt.Sprintf("No alert registered for game with id '%s'.", gameID)
}

func StorageFailure() string {
	return "Error: the alert could not be saved, please try again later."
}

// GamesList renders the ongoing games, marking players whose turn it is.
func GamesList(games []models.Game) string {
	if len(games) == 0 {
		return "No ongoing games found."
	}

	lines := make([]string, 0, len(games))
	for _, g := range games {
		players := make([]string, 0, len(g.Players))
		for _, p := range g.Players {
			if p.Turn {
				players = append(players, p.Name+"(⏳)")
			} else {
				players = append(players, p.Name)
			}
		}
		lines = append(lines, fmt.Sprintf("- **%s**(%s), **players**: %s", g.ID, phaseName(g.Phase), strings.Join(players, ", ")))
	}
	return "Games: \n\n " + strings.Join(lines, "\n")
}

// AlertsList renders a room's alerts.
func AlertsList(alerts []models.Alert) string {
	if len(alerts) == 0 {
		return "No alerts found."
	}

	lines := make([]string, 0, len(alerts))
	for _, a := range alerts {
		lines = append(lines, fmt.Sprintf("- %s: %s (%d min)", a.GameID, a.PlayerName, a.DelayMinutes()))
	}
	return "Registered alerts:\n\n " + strings.Join(lines, "\n")
}

func describeDelay(d time.Duration) string {
	if d == week {
		return "1 week"
	}
	return fmt.Sprintf("%d minutes", int64(d/time.Minute))
}

// phaseName capitalizes the phase, "initialDrafting" becomes "InitialDrafting".
func phaseName(p models.Phase) string {
	s := string(p)
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
