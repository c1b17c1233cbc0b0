package handlers

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/tenthousand/internal/frontend/telnet"
	"github.com/cory-johannsen/tenthousand/internal/game/dice"
	"github.com/cory-johannsen/tenthousand/internal/game/turn"
	"github.com/cory-johannsen/tenthousand/internal/i18n"
)

const nameWidth = 14

// RenderDie formats one die as "[v]": green when it may be selected,
// highlighted when selected, dim when locked.
func RenderDie(d dice.Die, hidden bool) string {
	if hidden {
		return telnet.Colorize(telnet.BrightBlack, "[ ]")
	}
	face := fmt.Sprintf("[%d]", d.Value)
	switch {
	case d.Locked:
		return telnet.Colorize(telnet.Dim, face)
	case d.Selected:
		return telnet.Colorize(telnet.Bold+telnet.Reverse+telnet.BrightYellow, face)
	case d.ValidSelection:
		return telnet.Colorize(telnet.BrightGreen, face)
	default:
		return telnet.Colorize(telnet.White, face)
	}
}

// RenderDice formats the five dice with their 1-based positions.
func RenderDice(s dice.Set, hidden bool) string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprintf("%d:%s", i+1, RenderDie(d, hidden))
	}
	return strings.Join(parts, "  ")
}

// RenderBoard formats the whole game: phase, scoreboard, dice and the
// current turn's tallies.
func RenderBoard(loc *i18n.Localizer, gs turn.GameState) string {
	var b strings.Builder

	b.WriteString(telnet.Colorize(telnet.Bold+telnet.BrightYellow, "=== "+loc.T("gameTitle")+" ==="))
	b.WriteString("\n")
	mode := "vsFriend"
	for _, p := range gs.Players {
		if p.Computer {
			mode = "vsComputer"
		}
	}
	fmt.Fprintf(&b, "%s %s    %s: %s    %s: %s\n",
		loc.T("currentPhase"),
		telnet.Colorize(telnet.Cyan, loc.T("phase."+string(gs.GamePhase))),
		loc.T("qualificationScore"),
		loc.Number(gs.QualificationScore),
		loc.T("gameModes"),
		loc.T(mode),
	)

	for i, p := range gs.Players {
		marker := "  "
		name := p.Name
		if i == gs.CurrentPlayer && !gs.IsGameOver {
			marker = telnet.Colorize(telnet.BrightCyan, "> ")
			name = telnet.Colorize(telnet.Bold, name)
		}
		status := telnet.Colorize(telnet.Green, loc.T("qualified"))
		if !p.Qualified {
			status = telnet.Colorize(telnet.Yellow, loc.T("needsQualification", gs.QualificationScore))
		}
		fmt.Fprintf(&b, "%s%s %s %s %s\n",
			marker,
			telnet.PadRight(name, nameWidth),
			loc.T("totalScore"),
			telnet.PadRight(telnet.Colorize(telnet.BrightWhite, loc.Number(p.TotalScore)), 7),
			status,
		)
	}

	b.WriteString(RenderDice(gs.Dice, gs.DiceHidden))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s   %s %s\n",
		loc.T("bankedPoints"), loc.Number(gs.CurrentTurnScore),
		loc.T("rollScore"), loc.Number(gs.LastRollScore),
		loc.T("selected"), loc.Number(gs.PotentialScore),
		loc.T("totalAvailable"), telnet.Colorize(telnet.BrightGreen, loc.Number(gs.TurnTotal())),
	)

	if !gs.IsGameOver {
		b.WriteString(renderActions(loc, gs))
	}
	if gs.IsBust && gs.BustMessage != "" {
		b.WriteString(telnet.Colorize(telnet.Bold+telnet.BrightRed, gs.BustMessage))
		b.WriteString("\n")
	}
	if gs.IsGameOver {
		b.WriteString(RenderGameOver(loc, gs))
	}
	return b.String()
}

// renderActions lists the roll and keep commands. The keep label carries
// the qualification requirement while the current player is unqualified.
func renderActions(loc *i18n.Localizer, gs turn.GameState) string {
	keep := loc.T("keepScore")
	if cur := gs.Players[gs.CurrentPlayer]; !cur.Qualified {
		keep += " " + loc.T("needPoints", gs.QualificationScore)
	}
	return fmt.Sprintf("%s %s    %s %s: %s\n",
		telnet.Colorize(telnet.BrightCyan, "[roll]"), loc.T("rollDice"),
		telnet.Colorize(telnet.BrightCyan, "[keep]"), keep, loc.T("bankPoints"),
	)
}

// RenderGameOver announces the winner and the final scores.
func RenderGameOver(loc *i18n.Localizer, gs turn.GameState) string {
	var b strings.Builder
	for _, p := range gs.Players {
		if p.TotalScore == turn.WinningScore {
			b.WriteString(telnet.Colorf(telnet.Bold+telnet.BrightGreen, "%s %s!", p.Name, loc.T("wonTheGame")))
			b.WriteString("\n")
		}
	}
	b.WriteString(loc.T("finalScore"))
	b.WriteString(":")
	for _, p := range gs.Players {
		fmt.Fprintf(&b, "  %s %s", p.Name, loc.Number(p.TotalScore))
	}
	b.WriteString("\n")
	return b.String()
}

// RenderRules lists the scoring combinations.
func RenderRules(loc i18n.Translator) string {
	var b strings.Builder
	b.WriteString(telnet.Colorize(telnet.Bold, loc.T("scoringRules")))
	b.WriteString("\n")
	for _, key := range []string{"singleOne", "singleFive", "threeOnes", "threeOfAKind", "fourOfAKind", "fiveOfAKind", "straight", "noScoringDice"} {
		b.WriteString("  ")
		b.WriteString(loc.T(key))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderHelp lists the session commands from their help message keys.
func RenderHelp(loc i18n.Translator, keys []string) string {
	var b strings.Builder
	b.WriteString(telnet.Colorize(telnet.Bold, loc.T("help.title")))
	b.WriteString("\n")
	for _, key := range keys {
		b.WriteString("  ")
		b.WriteString(loc.T(key))
		b.WriteString("\n")
	}
	return b.String()
}
