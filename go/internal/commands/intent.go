// Package commands parses chat messages addressed to the bot and answers
// them.
package commands

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

// Prefix addresses a message to the bot.
const Prefix = "!miou"

// ErrNotForBot is returned for messages that do not start with Prefix. They
// are ignored without a reply.
var ErrNotForBot = errors.New("message not addressed to the bot")

// ParseError carries the reply for a malformed command.
type ParseError struct {
	Reply string
}

func (e *ParseError) Error() string {
	return "invalid command: " + e.Reply
}

// Intent is one of Help, Games, Alerts, Register or Unregister.
type Intent interface {
	intent()
}

type Help struct{}

type Games struct{}

type Alerts struct{}

type Register struct {
	GameID       string
	Player       string
	DelayMinutes int64
}

type Unregister struct {
	GameID string
}

func (Help) intent()       {}
func (Games) intent()      {}
func (Alerts) intent()     {}
func (Register) intent()   {}
func (Unregister) intent() {}

// Parse turns a message body into an Intent. Arguments are separated by
// whitespace; double quotes group an argument containing spaces, so player
// names like "Red Planet" can be registered.
func Parse(body string) (Intent, error) {
	args := tokenize(body)
	if len(args) == 0 || args[0] != Prefix {
		return nil, ErrNotForBot
	}
	args = args[1:]

	if len(args) == 0 {
		return Help{}, nil
	}

	switch args[0] {
	case "help":
		return Help{}, nil
	case "games":
		return Games{}, nil
	case "alerts":
		return Alerts{}, nil
	case "register":
		return parseRegister(args[1:])
	case "unregister":
		if len(args) < 2 || args[1] == "" {
			return nil, &ParseError{Reply: InvalidUnregister()}
		}
		return Unregister{GameID: args[1]}, nil
	default:
		return nil, &ParseError{Reply: UnknownCommand()}
	}
}

func parseRegister(args []string) (Intent, error) {
	if len(args) < 3 || args[0] == "" || args[1] == "" {
		return nil, &ParseError{Reply: InvalidRegister()}
	}
	delay, err := strconv.ParseUint(args[2], 10, 32)
	if err != nil {
		return nil, &ParseError{Reply: InvalidRegister()}
	}
	return Register{GameID: args[0], Player: args[1], DelayMinutes: int64(delay)}, nil
}

// tokenize splits on whitespace, keeping double-quoted runs together. An
// unterminated quote runs to the end of the body.
func tokenize(body string) []string {
	var (
		args    []string
		current strings.Builder
		inQuote bool
		pending bool
	)
	for _, r := range body {
		switch {
		case r == '"':
			inQuote = !inQuote
			pending = true
		case unicode.IsSpace(r) && !inQuote:
			if pending {
				args = append(args, current.String())
				current.Reset()
				pending = false
			}
		default:
			current.WriteRune(r)
			pending = true
		}
	}
	if pending {
		args = append(args, current.String())
	}
	return args
}
