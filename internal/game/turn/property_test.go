package turn_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tenthousand/internal/game/dice"
	"github.com/cory-johannsen/tenthousand/internal/game/turn"
	"github.com/cory-johannsen/tenthousand/internal/i18n"
	"github.com/cory-johannsen/tenthousand/internal/schedule"
)

func newSeededMachine(seed uint64) (*turn.Machine, *schedule.Manual) {
	sched := schedule.NewManual()
	loc := i18n.NewLocalizer(i18n.MustLoadEmbedded(), "en", nil)
	m := turn.NewMachine(dice.NewLoggedRoller(dice.NewSeededSource(seed), zap.NewNop()), sched, loc, zap.NewNop(), turn.DefaultConfig())
	m.NewGame(humans, 500)
	return m, sched
}

// TestProperty_ToggleTwiceIsIdentity verifies that toggling the same
// eligible die twice restores its selection and the potential score.
func TestProperty_ToggleTwiceIsIdentity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		m, _ := newSeededMachine(rapid.Uint64().Draw(rt, "seed"))
		m.Roll()
		if m.Tag() != turn.AwaitingSelection {
			return
		}
		i := rapid.IntRange(0, dice.Count-1).Draw(rt, "die")
		before := m.State()
		m.ToggleSelection(i)
		m.ToggleSelection(i)
		after := m.State()
		assert.Equal(rt, before.Dice[i].Selected, after.Dice[i].Selected)
		assert.Equal(rt, before.PotentialScore, after.PotentialScore)
	})
}

// TestProperty_RandomPlayKeepsInvariants drives random legal and illegal
// actions and checks the score and qualification invariants after each.
func TestProperty_RandomPlayKeepsInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		m, sched := newSeededMachine(rapid.Uint64().Draw(rt, "seed"))
		var changes []turn.Change
		m.Subscribe(func(c turn.Change) { changes = append(changes, c) })

		prev := m.State()
		steps := rapid.IntRange(1, 200).Draw(rt, "steps")
		for s := 0; s < steps; s++ {
			changes = changes[:0]
			switch rapid.IntRange(0, 3).Draw(rt, "action") {
			case 0:
				m.Roll()
			case 1:
				m.ToggleSelection(rapid.IntRange(0, dice.Count-1).Draw(rt, "die"))
			case 2:
				m.KeepScore()
			case 3:
				sched.Advance(2 * time.Second)
			}
			cur := m.State()

			banked := false
			for _, c := range changes {
				if c.Op == turn.OpKeep {
					banked = true
				}
			}
			for i := range cur.Players {
				p, q := prev.Players[i], cur.Players[i]
				assert.GreaterOrEqual(rt, q.TotalScore, 0)
				assert.LessOrEqual(rt, q.TotalScore, turn.WinningScore)
				if p.Qualified {
					assert.True(rt, q.Qualified, "qualification never reverts")
				}
				if q.TotalScore != p.TotalScore {
					assert.True(rt, banked, "totals change only when banking")
					assert.Equal(rt, prev.CurrentPlayer, i)
				}
			}
			for _, d := range cur.Dice {
				if d.Selected {
					assert.True(rt, d.ValidSelection)
				}
			}
			if cur.IsGameOver {
				assert.Equal(rt, turn.GameOver, m.Tag())
			}
			prev = cur
		}
	})
}
