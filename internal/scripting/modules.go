package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tenthousand/internal/game/computer"
	"github.com/cory-johannsen/tenthousand/internal/game/scoring"
	"github.com/cory-johannsen/tenthousand/internal/game/turn"
)

// registerModule defines the tenk global table:
//
//	tenk.WINNING_SCORE, tenk.ENDGAME_THRESHOLD
//	tenk.score(v1, v2, ...)  points scored by a group of die faces
//	tenk.log(msg)            debug log line
func registerModule(L *lua.LState, logger *zap.Logger, script string) {
	mod := L.NewTable()
	L.SetField(mod, "WINNING_SCORE", lua.LNumber(turn.WinningScore))
	L.SetField(mod, "ENDGAME_THRESHOLD", lua.LNumber(computer.EndgameThreshold))
	L.SetField(mod, "score", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		values := make([]int, 0, n)
		for i := 1; i <= n; i++ {
			v := L.CheckInt(i)
			if v < 1 || v > 6 {
				L.ArgError(i, "die value must be 1-6")
				return 0
			}
			values = append(values, v)
		}
		L.Push(lua.LNumber(scoring.Points(values)))
		return 1
	}))
	L.SetField(mod, "log", L.NewFunction(func(L *lua.LState) int {
		logger.Debug("lua", zap.String("script", script), zap.String("msg", L.CheckString(1)))
		return 0
	}))
	L.SetGlobal("tenk", mod)
}

// viewTable converts a decision view into the table passed to decide.
func viewTable(L *lua.LState, v computer.View) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "total", lua.LNumber(v.TotalScore))
	L.SetField(t, "turn", lua.LNumber(v.TurnScore))
	L.SetField(t, "potential", lua.LNumber(v.PotentialScore))
	L.SetField(t, "available", lua.LNumber(v.Available))
	L.SetField(t, "projected", lua.LNumber(v.Projected))
	L.SetField(t, "qualified", lua.LBool(v.Qualified))
	L.SetField(t, "qualification", lua.LNumber(v.QualificationScore))
	L.SetField(t, "free_dice", lua.LNumber(v.FreeDice))
	L.SetField(t, "opponent", lua.LNumber(v.OpponentScore))
	return t
}
