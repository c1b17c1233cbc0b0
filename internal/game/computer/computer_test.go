package computer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/tenthousand/internal/game/computer"
	"github.com/cory-johannsen/tenthousand/internal/game/dice"
	"github.com/cory-johannsen/tenthousand/internal/game/turn"
	"github.com/cory-johannsen/tenthousand/internal/i18n"
	"github.com/cory-johannsen/tenthousand/internal/schedule"
)

type fixedChance float64

func (f fixedChance) Float64() float64 { return float64(f) }

type scriptedDecider struct {
	answers []computer.Decision
	calls   int
}

func (s *scriptedDecider) Decide(computer.View) (computer.Decision, bool) {
	s.calls++
	if len(s.answers) == 0 {
		return computer.Keep, false
	}
	d := s.answers[0]
	s.answers = s.answers[1:]
	return d, true
}

type rig struct {
	m     *turn.Machine
	p     *computer.Player
	src   *dice.FixedSource
	sched *schedule.Manual
}

var cpuFirst = []turn.PlayerSetup{{Name: "CPU", Computer: true}, {Name: "Alice"}}

func newRig(t *testing.T, logger *zap.Logger) *rig {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &rig{src: dice.NewFixedSource(), sched: schedule.NewManual()}
	loc := i18n.NewLocalizer(i18n.MustLoadEmbedded(), "en", nil)
	r.m = turn.NewMachine(dice.NewLoggedRoller(r.src, logger), r.sched, loc, logger, turn.DefaultConfig())
	r.p = computer.New(r.m, r.sched, logger, computer.DefaultConfig())
	r.p.SetChance(fixedChance(0.99))
	return r
}

func TestStandardSelection(t *testing.T) {
	cases := []struct {
		name   string
		values [5]int
		locked []int
		want   []int
	}{
		{"straight", [5]int{3, 1, 2, 5, 4}, nil, []int{0, 1, 2, 3, 4}},
		{"five of a kind", [5]int{2, 2, 2, 2, 2}, nil, []int{0, 1, 2, 3, 4}},
		{"four plus a one", [5]int{3, 3, 1, 3, 3}, nil, []int{0, 1, 3, 4, 2}},
		{"triplet plus a five", [5]int{6, 6, 6, 5, 2}, nil, []int{0, 1, 2, 3}},
		{"singles", [5]int{1, 5, 2, 3, 1}, nil, []int{0, 4, 1}},
		{"locked dice ignored", [5]int{1, 1, 1, 5, 2}, []int{0, 1, 2}, []int{3}},
		{"nothing", [5]int{2, 3, 4, 6, 6}, nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var s dice.Set
			for i, v := range tc.values {
				s[i].Value = v
			}
			for _, i := range tc.locked {
				s[i].Locked = true
			}
			assert.Equal(t, tc.want, computer.StandardSelection(s))
		})
	}
}

func TestEndgameSelection(t *testing.T) {
	set := func(values ...int) dice.Set {
		var s dice.Set
		for i, v := range values {
			s[i].Value = v
		}
		return s
	}
	assert.Equal(t, []int{0}, computer.EndgameSelection(set(1, 1, 5, 2, 3), 100))
	assert.Equal(t, []int{0, 2}, computer.EndgameSelection(set(1, 1, 5, 2, 3), 150))
	assert.Equal(t, []int{0, 1}, computer.EndgameSelection(set(1, 1, 5, 2, 3), 220), "best under target")
	assert.Nil(t, computer.EndgameSelection(set(1, 1, 5, 2, 3), 40))
	assert.Equal(t, []int{0, 1, 2}, computer.EndgameSelection(set(4, 4, 4, 1, 3), 400))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, computer.EndgameSelection(set(1, 2, 3, 4, 5), 2000))
	assert.Equal(t, []int{0, 4}, computer.EndgameSelection(set(1, 2, 3, 4, 5), 900), "straight too large")
}

func TestHeuristic(t *testing.T) {
	r := newRig(t, nil)
	cases := []struct {
		name   string
		view   computer.View
		chance float64
		want   computer.Decision
	}{
		{"unqualified short", computer.View{Available: 900, QualificationScore: 1000}, 0, computer.Reroll},
		{"unqualified enough", computer.View{Available: 1000, QualificationScore: 1000}, 0, computer.Keep},
		{"normal low", computer.View{Qualified: true, TotalScore: 2000, Available: 250, Projected: 2250}, 0, computer.Reroll},
		{"normal enough", computer.View{Qualified: true, TotalScore: 2000, Available: 300, Projected: 2300}, 0, computer.Keep},
		{"endgame exact", computer.View{Qualified: true, TotalScore: 9400, Available: 600, Projected: 10000}, 0, computer.Keep},
		{"endgame over", computer.View{Qualified: true, TotalScore: 9400, Available: 700, Projected: 10100}, 0, computer.Reroll},
		{"endgame close keeps", computer.View{Qualified: true, TotalScore: 9500, Available: 400, Projected: 9900, FreeDice: 2}, 0.6, computer.Keep},
		{"endgame close rerolls", computer.View{Qualified: true, TotalScore: 9500, Available: 400, Projected: 9900, FreeDice: 2}, 0.4, computer.Reroll},
		{"endgame far small", computer.View{Qualified: true, TotalScore: 9100, Available: 100, Projected: 9200}, 0, computer.Reroll},
		{"endgame far enough", computer.View{Qualified: true, TotalScore: 9100, Available: 300, Projected: 9400}, 0, computer.Keep},
		{"endgame nearly there", computer.View{Qualified: true, TotalScore: 9500, Available: 250, Projected: 9750}, 0, computer.Keep},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r.p.SetChance(fixedChance(tc.chance))
			assert.Equal(t, tc.want, r.p.Heuristic(tc.view))
		})
	}
}

func TestTurn_RollSelectKeep(t *testing.T) {
	r := newRig(t, nil)
	r.src.Push(1, 1, 1, 2, 3)
	r.m.NewGame(cpuFirst, 500)

	r.sched.Advance(2 * time.Second)
	gs := r.m.State()
	require.False(t, gs.DiceHidden, "computer rolled")
	assert.False(t, gs.Dice.AnySelected())

	r.sched.Advance(1500 * time.Millisecond)
	gs = r.m.State()
	assert.Equal(t, 1000, gs.PotentialScore)

	r.sched.Advance(1500 * time.Millisecond)
	gs = r.m.State()
	assert.Equal(t, 1000, gs.Players[0].TotalScore)
	assert.True(t, gs.Players[0].Qualified)
	assert.Equal(t, 1, gs.CurrentPlayer)
	assert.Equal(t, 0, r.sched.Pending())
}

func TestTurn_RerollsLowTotal(t *testing.T) {
	r := newRig(t, nil)
	r.m.NewGame(cpuFirst, 500)
	r.m.SetPlayerScore(0, 2000)
	r.src.Push(5, 2, 3, 2, 6, 1, 1, 1, 2)

	r.sched.Advance(5 * time.Second)
	gs := r.m.State()
	require.Equal(t, 0, gs.CurrentPlayer, "50 is not worth keeping")
	assert.Equal(t, 50, gs.CurrentTurnScore)
	assert.True(t, gs.Dice[0].Locked)

	r.sched.Advance(3 * time.Second)
	gs = r.m.State()
	assert.Equal(t, 3050, gs.Players[0].TotalScore)
	assert.Equal(t, 1, gs.CurrentPlayer)
}

func TestTurn_BustEndsCycle(t *testing.T) {
	r := newRig(t, nil)
	r.src.Push(2, 2, 4, 6, 6)
	r.m.NewGame(cpuFirst, 500)

	r.sched.Advance(2 * time.Second)
	require.True(t, r.m.State().IsBust)

	r.sched.Advance(10 * time.Second)
	gs := r.m.State()
	assert.Equal(t, 1, gs.CurrentPlayer)
	assert.Equal(t, 0, gs.Players[0].TotalScore)
	assert.Equal(t, 0, r.sched.Pending())
}

func TestTurn_StaleStepsAreDropped(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := newRig(t, zap.New(core))
	r.src.Push(1, 1, 1, 2, 3)
	r.m.NewGame(cpuFirst, 500)
	r.sched.Advance(2 * time.Second)

	r.m.NewGame([]turn.PlayerSetup{{Name: "Alice"}, {Name: "Bob"}}, 500)
	r.sched.Advance(10 * time.Second)

	gs := r.m.State()
	assert.False(t, gs.Dice.AnySelected())
	assert.Equal(t, 0, gs.CurrentPlayer)
	assert.Equal(t, 1, logs.FilterMessage("computer step dropped").Len())
}

func TestTurn_TakeTurnForHumanIsIgnored(t *testing.T) {
	r := newRig(t, nil)
	r.m.NewGame([]turn.PlayerSetup{{Name: "Alice"}, {Name: "CPU", Computer: true}}, 500)
	r.p.TakeTurn(1)
	assert.True(t, r.m.State().DiceHidden)
	assert.Equal(t, 0, r.sched.Pending())
}

func TestTurn_DeciderOverridesHeuristic(t *testing.T) {
	r := newRig(t, nil)
	dec := &scriptedDecider{answers: []computer.Decision{computer.Reroll}}
	r.p.SetDecider(dec)
	r.m.NewGame(cpuFirst, 500)
	r.m.SetPlayerScore(0, 2000)
	r.src.Push(1, 1, 1, 2, 3, 5, 2)

	r.sched.Advance(5 * time.Second)
	gs := r.m.State()
	require.Equal(t, 0, gs.CurrentPlayer, "decider asked for another roll")
	assert.Equal(t, 1000, gs.CurrentTurnScore)

	r.sched.Advance(3 * time.Second)
	gs = r.m.State()
	assert.Equal(t, 3050, gs.Players[0].TotalScore)
	assert.Equal(t, 2, dec.calls)
}

func TestTurn_RefusedKeepRollsAgain(t *testing.T) {
	r := newRig(t, nil)
	r.p.SetDecider(&scriptedDecider{answers: []computer.Decision{computer.Keep}})
	r.src.Push(5, 2, 3, 2, 6, 2, 2, 4, 6)
	r.m.NewGame(cpuFirst, 500)

	r.sched.Advance(5 * time.Second)
	gs := r.m.State()
	assert.True(t, gs.IsBust, "unqualified keep is refused and the computer rolls on")
	assert.Equal(t, 0, gs.Players[0].TotalScore)
}

func TestComputerVsComputer_GamesFinish(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		sched := schedule.NewManual()
		loc := i18n.NewLocalizer(i18n.MustLoadEmbedded(), "en", nil)
		src := dice.NewSeededSource(seed)
		m := turn.NewMachine(dice.NewLoggedRoller(src, zap.NewNop()), sched, loc, zap.NewNop(), turn.DefaultConfig())
		p := computer.New(m, sched, zap.NewNop(), computer.DefaultConfig())
		p.SetChance(src)
		m.NewGame([]turn.PlayerSetup{{Name: "A", Computer: true}, {Name: "B", Computer: true}}, 1000)

		sched.RunAll(500000)

		gs := m.State()
		require.True(t, gs.IsGameOver, "seed %d", seed)
		winners := 0
		for _, pl := range gs.Players {
			assert.LessOrEqual(t, pl.TotalScore, turn.WinningScore)
			if pl.TotalScore == turn.WinningScore {
				winners++
			}
		}
		assert.Equal(t, 1, winners, "seed %d", seed)
		assert.Equal(t, 0, sched.Pending())
	}
}
