package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/tenthousand/internal/frontend/telnet"
	"github.com/cory-johannsen/tenthousand/internal/game/dice"
	"github.com/cory-johannsen/tenthousand/internal/game/turn"
	"github.com/cory-johannsen/tenthousand/internal/i18n"
)

func english() *i18n.Localizer {
	return i18n.NewLocalizer(i18n.MustLoadEmbedded(), "en", zap.NewNop())
}

func TestRenderDie(t *testing.T) {
	assert.Equal(t, "[ ]", telnet.StripANSI(RenderDie(dice.Die{Value: 4}, true)))
	assert.Equal(t, "[4]", telnet.StripANSI(RenderDie(dice.Die{Value: 4}, false)))

	locked := RenderDie(dice.Die{Value: 1, Locked: true}, false)
	assert.Contains(t, locked, telnet.Dim)
	selected := RenderDie(dice.Die{Value: 1, Selected: true, ValidSelection: true}, false)
	assert.Contains(t, selected, telnet.Reverse)
}

func TestRenderDice_NumbersPositions(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var s dice.Set
		for i := range s {
			s[i].Value = rapid.IntRange(1, 6).Draw(rt, "face")
		}
		out := telnet.StripANSI(RenderDice(s, false))
		for i, d := range s {
			assert.Contains(rt, out, string(rune('1'+i))+":["+string(rune('0'+d.Value))+"]")
		}
	})
}

func TestRenderBoard(t *testing.T) {
	gs := turn.NewGameState([]turn.PlayerSetup{{Name: "Alice"}, {Name: "Computer", Computer: true}}, 750)
	gs.Players[0].TotalScore = 2350
	gs.Players[0].Qualified = true
	gs.CurrentTurnScore = 300

	out := telnet.StripANSI(RenderBoard(english(), gs))
	assert.Contains(t, out, "10,000 Dice Game")
	assert.Contains(t, out, "QUALIFICATION")
	assert.Contains(t, out, "Qualification Score: 750")
	assert.Contains(t, out, "> Alice")
	assert.Contains(t, out, "2,350")
	assert.Contains(t, out, "Qualified")
	assert.Contains(t, out, "Needs 750 points to qualify")
	assert.Contains(t, out, "1:[ ]")
	assert.Contains(t, out, "Banked Points: 300")
	assert.Contains(t, out, "Game Mode: vs Computer")
	assert.Contains(t, out, "[keep] Keep Score:")
	assert.NotContains(t, out, "won the game")
}

func TestRenderBoard_GameOver(t *testing.T) {
	gs := turn.NewGameState([]turn.PlayerSetup{{Name: "Alice"}, {Name: "Bob"}}, 500)
	gs.Players[1].TotalScore = turn.WinningScore
	gs.IsGameOver = true

	out := telnet.StripANSI(RenderBoard(english(), gs))
	assert.Contains(t, out, "Bob won the game!")
	assert.Contains(t, out, "Final Score:  Alice 0  Bob 10,000")
	assert.NotContains(t, out, "> ")
	assert.Contains(t, out, "Game Mode: vs Friend")
	assert.NotContains(t, out, "[roll]")
}

func TestRenderBoard_UnqualifiedKeepLabel(t *testing.T) {
	gs := turn.NewGameState([]turn.PlayerSetup{{Name: "Alice"}, {Name: "Bob"}}, 1000)

	out := telnet.StripANSI(RenderBoard(english(), gs))
	assert.Contains(t, out, "[roll] Roll Dice")
	assert.Contains(t, out, "[keep] Keep Score (Need 1,000): Bank your points and end your turn")
}

func TestRenderHelp_ListsKeys(t *testing.T) {
	out := telnet.StripANSI(RenderHelp(english(), []string{"help.roll", "help.quit"}))
	assert.Contains(t, out, "Commands:")
	assert.Contains(t, out, "roll the unlocked dice")
	assert.Contains(t, out, "disconnect")
}
