package models

// Phase is the phase a Terraforming Mars game is currently in.
type Phase string

const (
	PhaseInitialDrafting Phase = "initialDrafting"
	PhasePreludes        Phase = "preludes"
	PhaseCeos            Phase = "ceos"
	PhaseResearch        Phase = "research"
	PhaseDrafting        Phase = "drafting"
	PhaseAction          Phase = "action"
	PhaseProduction      Phase = "production"
	PhaseSolar           Phase = "solar"
	PhaseIntergeneration Phase = "intergeneration"
	PhaseEnd             Phase = "end"
)

var knownPhases = map[Phase]struct{}{
	PhaseInitialDrafting: {},
	PhasePreludes:        {},
	PhaseCeos:            {},
	PhaseResearch:        {},
	PhaseDrafting:        {},
	PhaseAction:          {},
	PhaseProduction:      {},
	PhaseSolar:           {},
	PhaseIntergeneration: {},
	PhaseEnd:             {},
}

// ParsePhase converts the server phase string. Unknown values are returned
// verbatim with ok=false so callers can log them without dropping the game.
func ParsePhase(s string) (Phase, bool) {
	p := Phase(s)
	_, ok := knownPhases[p]
	return p, ok
}

// Game is one ongoing match as seen by the last poll. Rebuilt on every poll.
type Game struct {
	ID          string   `json:"id"`
	Phase       Phase    `json:"phase"`
	SpectatorID string   `json:"spectator_id,omitempty"`
	Players     []Player `json:"players"`
}

// FindPlayer returns the first player whose name matches exactly.
func (g Game) FindPlayer(name string) (Player, bool) {
	for _, p := range g.Players {
		if p.Name == name {
			return p, true
		}
	}
	return Player{}, false
}

// WaitingPlayers returns the players currently holding the turn.
func (g Game) WaitingPlayers() []Player {
	var waiting []Player
	for _, p := range g.Players {
		if p.Turn {
			waiting = append(waiting, p)
		}
	}
	return waiting
}
