package scripting_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/tenthousand/internal/game/computer"
	"github.com/cory-johannsen/tenthousand/internal/scripting"
)

// repoRoot walks up from the test's working directory to find the module root.
func repoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	root := wd
	for {
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err == nil {
			return root
		}
		parent := filepath.Dir(root)
		if parent == root {
			t.Fatalf("could not find repo root from %s", wd)
		}
		root = parent
	}
}

func newDecider(t *testing.T, src string) (*scripting.LuaDecider, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	d, err := scripting.NewDecider("test.lua", src, 0, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d, logs
}

func TestDecider_Answers(t *testing.T) {
	d, _ := newDecider(t, `
		function decide(view)
			if view.available >= 500 then return "keep" end
			if view.free_dice == 1 then return nil end
			return "reroll"
		end
	`)

	dec, ok := d.Decide(computer.View{Available: 600})
	assert.True(t, ok)
	assert.Equal(t, computer.Keep, dec)

	dec, ok = d.Decide(computer.View{Available: 100, FreeDice: 3})
	assert.True(t, ok)
	assert.Equal(t, computer.Reroll, dec)

	_, ok = d.Decide(computer.View{Available: 100, FreeDice: 1})
	assert.False(t, ok, "nil defers to the heuristic")
}

func TestDecider_ViewFields(t *testing.T) {
	d, _ := newDecider(t, `
		function decide(v)
			assert(v.total == 9000 and v.turn == 200 and v.potential == 100)
			assert(v.available == 300 and v.projected == 9300)
			assert(v.qualified == true and v.qualification == 750)
			assert(v.free_dice == 2 and v.opponent == 4000)
			return "keep"
		end
	`)
	_, ok := d.Decide(computer.View{
		TotalScore: 9000, TurnScore: 200, PotentialScore: 100, Available: 300,
		Projected: 9300, Qualified: true, QualificationScore: 750, FreeDice: 2,
		OpponentScore: 4000,
	})
	assert.True(t, ok)
}

func TestDecider_ScoreHelper(t *testing.T) {
	d, _ := newDecider(t, `
		function decide(v)
			assert(tenk.score(1, 1, 1) == 1000)
			assert(tenk.score(5, 1) == 150)
			assert(tenk.score(2, 3, 4, 5, 6) == 1500)
			assert(tenk.WINNING_SCORE == 10000)
			return "keep"
		end
	`)
	_, ok := d.Decide(computer.View{})
	assert.True(t, ok)
}

func TestDecider_RuntimeErrorsDefer(t *testing.T) {
	d, logs := newDecider(t, `function decide(v) error("boom") end`)
	_, ok := d.Decide(computer.View{})
	assert.False(t, ok)
	assert.Equal(t, 1, logs.FilterMessage("scripting: decide failed").Len())
}

func TestDecider_RunawayScriptDefersAndRecovers(t *testing.T) {
	d, _ := newDecider(t, `
		calls = 0
		function decide(v)
			calls = calls + 1
			if calls == 1 then while true do end end
			return "reroll"
		end
	`)
	_, ok := d.Decide(computer.View{})
	assert.False(t, ok)

	dec, ok := d.Decide(computer.View{})
	assert.True(t, ok)
	assert.Equal(t, computer.Reroll, dec)
}

func TestDecider_UnexpectedValue(t *testing.T) {
	d, logs := newDecider(t, `function decide(v) return "maybe" end`)
	_, ok := d.Decide(computer.View{})
	assert.False(t, ok)
	assert.Equal(t, 1, logs.FilterMessage("scripting: unexpected decision").Len())
}

func TestNewDecider_Errors(t *testing.T) {
	_, err := scripting.NewDecider("a.lua", `x = `, 0, zap.NewNop())
	assert.Error(t, err)

	_, err = scripting.NewDecider("b.lua", `x = 1`, 0, zap.NewNop())
	assert.ErrorContains(t, err, "decide")

	_, err = scripting.LoadDecider("/nonexistent/c.lua", 0, zap.NewNop())
	assert.Error(t, err)
}

func TestCautiousScript(t *testing.T) {
	d, err := scripting.LoadDecider(filepath.Join(repoRoot(t), "content", "scripts", "cautious.lua"), 0, zap.NewNop())
	require.NoError(t, err)
	defer d.Close()

	_, ok := d.Decide(computer.View{Qualified: false, Available: 300})
	assert.False(t, ok)

	dec, ok := d.Decide(computer.View{Qualified: true, TotalScore: 9800, Available: 200, Projected: 10000})
	require.True(t, ok)
	assert.Equal(t, computer.Keep, dec)

	dec, ok = d.Decide(computer.View{Qualified: true, TotalScore: 2000, Available: 300, Projected: 2300, OpponentScore: 9500, FreeDice: 3})
	require.True(t, ok)
	assert.Equal(t, computer.Reroll, dec)

	dec, ok = d.Decide(computer.View{Qualified: true, TotalScore: 2000, Available: 300, Projected: 2300, FreeDice: 3})
	require.True(t, ok)
	assert.Equal(t, computer.Keep, dec)
}
