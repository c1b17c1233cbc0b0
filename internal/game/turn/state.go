// Package turn implements the 10,000 turn state machine: rolling, selecting,
// banking, busting and handing the dice to the next player.
package turn

import (
	"reflect"
	"slices"

	"github.com/cory-johannsen/tenthousand/internal/game/dice"
)

// WinningScore is the exact total a player must land on to win.
const WinningScore = 10000

// DefaultQualificationScore is the qualification threshold of a new game.
const DefaultQualificationScore = 1000

// QualificationOptions lists the qualification thresholds a game may use.
var QualificationOptions = []int{500, 750, 1000}

// ValidQualificationScore reports whether s is one of QualificationOptions.
func ValidQualificationScore(s int) bool {
	return slices.Contains(QualificationOptions, s)
}

// Phase is the coarse progress of a game.
type Phase string

const (
	PhaseQualification Phase = "QUALIFICATION"
	PhaseNormal        Phase = "NORMAL"
	PhaseEndGame       Phase = "END_GAME"
)

// Player is one participant.
//
// Invariant: Qualified never reverts to false within a game.
// Invariant: 0 <= TotalScore <= WinningScore.
type Player struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	TotalScore int    `json:"totalScore"`
	Qualified  bool   `json:"isQualified"`
	Computer   bool   `json:"isComputer"`
}

// GameState is the aggregate root of one game. Its JSON form is the record
// mirrored to the remote store.
type GameState struct {
	Players            []Player `json:"players"`
	CurrentPlayer      int      `json:"currentPlayer"`
	CurrentTurnScore   int      `json:"currentTurnScore"`
	PotentialScore     int      `json:"potentialScore"`
	LastRollScore      int      `json:"lastRollScore"`
	Dice               dice.Set `json:"dice"`
	GamePhase          Phase    `json:"gamePhase"`
	IsGameOver         bool     `json:"isGameOver"`
	IsFirstRoll        bool     `json:"isFirstRoll"`
	IsBust             bool     `json:"isBust"`
	BustMessage        string   `json:"bustMessage"`
	DiceHidden         bool     `json:"diceHidden"`
	QualificationScore int      `json:"qualificationScore"`
	WaitingForPlayer2  bool     `json:"waitingForPlayer2,omitempty"`
}

// PlayerSetup describes a seat at the start of a game.
type PlayerSetup struct {
	Name     string
	Computer bool
}

// NewGameState returns a fresh game for the given seats.
//
// Precondition: len(players) >= 1.
// Postcondition: every player has zero score and is unqualified; dice are
// hidden and it is player 0's first roll.
func NewGameState(players []PlayerSetup, qualificationScore int) GameState {
	gs := GameState{
		Players:            make([]Player, len(players)),
		Dice:               dice.NewSet(),
		GamePhase:          PhaseQualification,
		IsFirstRoll:        true,
		DiceHidden:         true,
		QualificationScore: qualificationScore,
	}
	for i, p := range players {
		gs.Players[i] = Player{ID: i, Name: p.Name, Computer: p.Computer}
	}
	return gs
}

// Clone returns a deep copy of gs.
func (gs GameState) Clone() GameState {
	gs.Players = slices.Clone(gs.Players)
	return gs
}

// Current returns the player whose turn it is.
//
// Precondition: len(gs.Players) > 0.
func (gs *GameState) Current() *Player {
	return &gs.Players[gs.CurrentPlayer]
}

// TurnTotal is the banked-this-turn score plus the value of the selection.
func (gs GameState) TurnTotal() int {
	return gs.CurrentTurnScore + gs.PotentialScore
}

// Equal reports whether two states are identical by value.
func (gs GameState) Equal(other GameState) bool {
	if !slices.Equal(gs.Players, other.Players) {
		return false
	}
	a, b := gs, other
	a.Players, b.Players = nil, nil
	return reflect.DeepEqual(a, b)
}

// State is the explicit turn-level state of a Machine.
type State int

const (
	// AwaitingFirstRoll: the current player has not rolled yet this turn.
	AwaitingFirstRoll State = iota
	// AwaitingSelection: dice were rolled and scored; the player may select,
	// roll again or keep.
	AwaitingSelection
	// Bust: the turn is lost and the handoff is pending.
	Bust
	// TurnEnd: the turn is being handed over. Only observable from inside
	// a change notification.
	TurnEnd
	// GameOver: a player reached exactly WinningScore.
	GameOver
)

func (s State) String() string {
	switch s {
	case AwaitingFirstRoll:
		return "awaiting-first-roll"
	case AwaitingSelection:
		return "awaiting-selection"
	case Bust:
		return "bust"
	case TurnEnd:
		return "turn-end"
	case GameOver:
		return "game-over"
	default:
		return "unknown"
	}
}

// deriveState recovers the explicit state from the flags of a record that
// arrived from elsewhere.
func deriveState(gs *GameState) State {
	switch {
	case gs.IsGameOver:
		return GameOver
	case gs.IsBust:
		return Bust
	case gs.IsFirstRoll:
		return AwaitingFirstRoll
	default:
		return AwaitingSelection
	}
}
