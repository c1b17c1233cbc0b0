package turn

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/tenthousand/internal/game/dice"
)

// The operations in this file back the developer commands. They bypass the
// turn guards but keep the state's own invariants.

// SetPlayerScore sets player i's total. Totals at or above the
// qualification threshold also qualify the player.
func (m *Machine) SetPlayerScore(i, score int) {
	if i < 0 || i >= len(m.gs.Players) || score < 0 || score > WinningScore {
		m.reject("set score")
		return
	}
	p := &m.gs.Players[i]
	p.TotalScore = score
	if score >= m.gs.QualificationScore {
		p.Qualified = true
	}
	m.logger.Debug("score overridden", zap.Int("player", i), zap.Int("score", score))
	m.notify(OpDebug, false, false)
}

// QualifyPlayer marks player i as qualified.
func (m *Machine) QualifyPlayer(i int) {
	if i < 0 || i >= len(m.gs.Players) {
		m.reject("qualify")
		return
	}
	m.gs.Players[i].Qualified = true
	m.notify(OpDebug, false, false)
}

// SetGameOver forces the game-over flag.
func (m *Machine) SetGameOver(over bool) {
	m.gs.IsGameOver = over
	m.tag = deriveState(&m.gs)
	m.notify(OpDebug, false, false)
}

// SetDieValue changes the face of die i and re-scores the current roll.
// A face change that leaves the roll without any scoring die is a bust.
func (m *Machine) SetDieValue(i, value int) {
	if m.tag != AwaitingSelection || i < 0 || i >= dice.Count || value < 1 || value > dice.Faces {
		m.reject("set die")
		return
	}
	m.gs.Dice[i].Value = value
	if !m.scoreRoll() {
		m.bust()
		m.notify(OpBust, false, false)
		return
	}
	m.recomputePotential()
	m.notify(OpDebug, false, false)
}
