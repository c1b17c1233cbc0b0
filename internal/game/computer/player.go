// Package computer implements the heuristic computer opponent.
package computer

import (
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tenthousand/internal/game/dice"
	"github.com/cory-johannsen/tenthousand/internal/game/turn"
	"github.com/cory-johannsen/tenthousand/internal/schedule"
)

// EndgameThreshold is the total above which the computer plays for the exact
// finish.
const EndgameThreshold = 9000

// Decision is the outcome of a keep-or-reroll evaluation.
type Decision int

const (
	Keep Decision = iota
	Reroll
)

func (d Decision) String() string {
	if d == Keep {
		return "keep"
	}
	return "reroll"
}

// View is the information a keep-or-reroll decision is made from.
type View struct {
	TotalScore         int
	TurnScore          int
	PotentialScore     int
	Available          int
	Projected          int
	Qualified          bool
	QualificationScore int
	FreeDice           int
	OpponentScore      int
}

// Decider may override the built-in keep-or-reroll heuristic. Returning
// ok == false defers to the heuristic.
type Decider interface {
	Decide(v View) (d Decision, ok bool)
}

// Chance yields uniform floats in [0, 1).
type Chance interface {
	Float64() float64
}

type globalChance struct{}

func (globalChance) Float64() float64 { return rand.Float64() }

// Tuning holds the heuristic constants of the strategy.
type Tuning struct {
	// KeepThreshold is the turn total the computer banks at in normal play.
	KeepThreshold int
	// CloseMargin is the distance to 10,000 under which the computer stops
	// rolling with a probability that depends on the dice left.
	CloseMargin int
	// RerollBands maps the number of free dice to the probability of
	// rolling again when within CloseMargin.
	RerollBands map[int]float64
}

// DefaultTuning returns the standard heuristic constants.
func DefaultTuning() Tuning {
	return Tuning{
		KeepThreshold: 300,
		CloseMargin:   150,
		RerollBands: map[int]float64{
			1: 0.25,
			2: 0.50,
			3: 0.30,
			4: 0.10,
			5: 0.10,
		},
	}
}

// Config configures a Player.
type Config struct {
	StepDelay time.Duration
	Tuning    Tuning
}

// DefaultConfig returns the standard pacing and tuning.
func DefaultConfig() Config {
	return Config{StepDelay: 1500 * time.Millisecond, Tuning: DefaultTuning()}
}

// Player drives every computer seat of one Machine. Each action cycle rolls,
// then after StepDelay selects dice, then after another StepDelay keeps or
// rolls again. Deferred steps are dropped when the turn they were scheduled
// for is over.
//
// Player runs on the Machine's scheduler and is not safe for concurrent use.
type Player struct {
	m       *turn.Machine
	sched   schedule.Scheduler
	logger  *zap.Logger
	cfg     Config
	chance  Chance
	decider Decider
}

// New creates a Player for m and installs it as m's Autoplayer.
//
// Precondition: m, sched and logger must be non-nil.
func New(m *turn.Machine, sched schedule.Scheduler, logger *zap.Logger, cfg Config) *Player {
	if cfg.Tuning.RerollBands == nil {
		cfg.Tuning = DefaultTuning()
	}
	p := &Player{m: m, sched: sched, logger: logger, cfg: cfg, chance: globalChance{}}
	m.SetAutoplayer(p)
	return p
}

// SetChance replaces the randomness used by the endgame reroll bands.
func (p *Player) SetChance(c Chance) {
	p.chance = c
}

// SetDecider installs a keep-or-reroll override. nil restores the heuristic.
func (p *Player) SetDecider(d Decider) {
	p.decider = d
}

// TakeTurn implements turn.Autoplayer.
func (p *Player) TakeTurn(player int) {
	t := task{p: p, player: player, id: p.m.TurnID()}
	if !t.live() {
		p.logger.Debug("computer turn cancelled", zap.Int("player", player))
		return
	}
	t.cycle()
}

// task is one computer turn; it carries what deferred steps re-check.
type task struct {
	p      *Player
	player int
	id     uint64
}

func (t task) live() bool {
	m := t.p.m
	if m.TurnID() != t.id {
		return false
	}
	gs := m.State()
	return gs.CurrentPlayer == t.player && gs.Players[t.player].Computer && !gs.IsGameOver
}

func (t task) later(step string, fn func()) {
	t.p.sched.After(t.p.cfg.StepDelay, func() {
		if !t.live() {
			t.p.logger.Debug("computer step dropped", zap.String("step", step), zap.Int("player", t.player))
			return
		}
		fn()
	})
}

func (t task) cycle() {
	t.p.m.Roll()
	if t.p.m.Tag() != turn.AwaitingSelection {
		return
	}
	t.later("select", func() {
		t.selectDice()
		t.later("decide", t.decide)
	})
}

func (t task) selectDice() {
	m := t.p.m
	if m.Tag() != turn.AwaitingSelection {
		return
	}
	gs := m.State()
	if gs.DiceHidden {
		return
	}
	var picked []int
	if cur := gs.Current(); cur.TotalScore > EndgameThreshold {
		target := turn.WinningScore - cur.TotalScore - gs.CurrentTurnScore
		picked = EndgameSelection(gs.Dice, target)
		if len(picked) == 0 {
			t.p.logger.Debug("no endgame selection fits", zap.Int("target", target))
		}
	}
	if len(picked) == 0 {
		picked = StandardSelection(gs.Dice)
	}
	m.SelectDice(picked)
}

func (t task) decide() {
	m := t.p.m
	if m.Tag() != turn.AwaitingSelection {
		return
	}
	v := t.view()
	d, source := t.p.Heuristic(v), "heuristic"
	if t.p.decider != nil {
		if override, ok := t.p.decider.Decide(v); ok {
			d, source = override, "decider"
		}
	}
	t.p.logger.Debug("computer decision",
		zap.Int("player", t.player),
		zap.Stringer("decision", d),
		zap.String("source", source),
		zap.Int("available", v.Available),
		zap.Int("total", v.TotalScore),
	)

	if d == Keep {
		m.KeepScore()
		if m.TurnID() != t.id {
			return
		}
		t.p.logger.Debug("keep refused, rolling again", zap.Int("player", t.player))
	}
	t.cycle()
}

func (t task) view() View {
	gs := t.p.m.State()
	cur := gs.Current()
	v := View{
		TotalScore:         cur.TotalScore,
		TurnScore:          gs.CurrentTurnScore,
		PotentialScore:     gs.PotentialScore,
		Available:          gs.TurnTotal(),
		Qualified:          cur.Qualified,
		QualificationScore: gs.QualificationScore,
		FreeDice:           len(gs.Dice.Free()),
	}
	v.Projected = v.TotalScore + v.Available
	for i, pl := range gs.Players {
		if i != gs.CurrentPlayer && pl.TotalScore > v.OpponentScore {
			v.OpponentScore = pl.TotalScore
		}
	}
	return v
}

// Heuristic is the built-in keep-or-reroll rule.
func (p *Player) Heuristic(v View) Decision {
	tn := p.cfg.Tuning
	switch {
	case !v.Qualified:
		if v.Available >= v.QualificationScore {
			return Keep
		}
		return Reroll

	case v.TotalScore > EndgameThreshold:
		if v.Projected == turn.WinningScore {
			return Keep
		}
		if v.Projected > turn.WinningScore {
			return Reroll
		}
		remaining := (turn.WinningScore - v.TotalScore) - v.Available
		if remaining <= tn.CloseMargin {
			if p.chance.Float64() < tn.RerollBands[v.FreeDice] {
				return Reroll
			}
			return Keep
		}
		if v.Available >= tn.KeepThreshold || (remaining < tn.KeepThreshold && v.Available > 0) {
			return Keep
		}
		return Reroll

	default:
		if v.Projected > turn.WinningScore {
			return Reroll
		}
		if v.Projected == turn.WinningScore || v.Available >= tn.KeepThreshold {
			return Keep
		}
		return Reroll
	}
}

var _ turn.Autoplayer = (*Player)(nil)
var _ Chance = (*dice.SeededSource)(nil)
