// Package simulate plays computer-versus-computer games to measure the
// strategy: game length, bust rate and the first player's advantage.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cory-johannsen/tenthousand/internal/game/computer"
	"github.com/cory-johannsen/tenthousand/internal/game/dice"
	"github.com/cory-johannsen/tenthousand/internal/game/turn"
	"github.com/cory-johannsen/tenthousand/internal/i18n"
	"github.com/cory-johannsen/tenthousand/internal/schedule"
)

// ErrStalled is returned when a game stops making progress before it ends.
var ErrStalled = errors.New("simulate: game stalled")

const defaultMaxTurns = 2000

var bundle = sync.OnceValue(i18n.MustLoadEmbedded)

// Config describes a simulation run.
type Config struct {
	Games int
	// Seed derives every game's dice; game i uses Seed+i.
	Seed               uint64
	QualificationScore int
	Tuning             computer.Tuning
	// Decider replaces the heuristic when set. It is shared by every worker
	// and must be safe for concurrent use.
	Decider computer.Decider
	// Workers is the number of games played in parallel; 0 uses GOMAXPROCS.
	Workers int
	// MaxTurns aborts a game that has not ended after this many turns.
	MaxTurns int
}

// GameResult is the outcome of one game.
type GameResult struct {
	Seed       uint64
	Winner     int
	Turns      int
	Rolls      int
	Busts      int
	LoserScore int
}

// Summary describes one measured quantity across games.
type Summary struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// Report aggregates a run.
type Report struct {
	Games           int     `json:"games"`
	FirstPlayerWins int     `json:"firstPlayerWins"`
	FirstPlayerRate float64 `json:"firstPlayerRate"`
	// RateLow and RateHigh bound FirstPlayerRate at 95% confidence.
	RateLow    float64 `json:"rateLow"`
	RateHigh   float64 `json:"rateHigh"`
	Turns      Summary `json:"turns"`
	Rolls      Summary `json:"rolls"`
	BustRate   Summary `json:"bustRate"`
	LoserScore Summary `json:"loserScore"`
}

// PlayGame plays one game between two computer seats to completion on a
// virtual clock.
func PlayGame(seed uint64, cfg Config, logger *zap.Logger) (GameResult, error) {
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	sched := schedule.NewManual()
	src := dice.NewSeededSource(seed)
	loc := i18n.NewLocalizer(bundle(), i18n.BaseLocale, logger)
	m := turn.NewMachine(dice.NewLoggedRoller(src, logger), sched, loc, logger, turn.Config{})

	tuning := cfg.Tuning
	if tuning.RerollBands == nil {
		tuning = computer.DefaultTuning()
	}
	cpu := computer.New(m, sched, logger, computer.Config{Tuning: tuning})
	cpu.SetChance(src)
	if cfg.Decider != nil {
		cpu.SetDecider(cfg.Decider)
	}

	res := GameResult{Seed: seed}
	m.SetRollHook(func([]int) { res.Rolls++ })
	cancel := m.Subscribe(func(c turn.Change) {
		switch c.Op {
		case turn.OpBust:
			res.Busts++
		case turn.OpKeep, turn.OpEndTurn:
			res.Turns++
		}
	})
	defer cancel()

	m.NewGame([]turn.PlayerSetup{
		{Name: "A", Computer: true},
		{Name: "B", Computer: true},
	}, cfg.QualificationScore)

	for !m.State().IsGameOver {
		if sched.Pending() == 0 {
			return res, fmt.Errorf("seed %d after %d turns: %w", seed, res.Turns, ErrStalled)
		}
		if res.Turns > maxTurns {
			return res, fmt.Errorf("seed %d: no winner after %d turns: %w", seed, maxTurns, ErrStalled)
		}
		sched.RunAll(64)
	}

	gs := m.State()
	res.Winner = -1
	for i, p := range gs.Players {
		if p.TotalScore == turn.WinningScore {
			res.Winner = i
		} else {
			res.LoserScore = p.TotalScore
		}
	}
	return res, nil
}

// Run plays cfg.Games games and summarizes them. progress, when non-nil,
// is called once per finished game from any worker.
func Run(ctx context.Context, cfg Config, logger *zap.Logger, progress func()) (Report, []GameResult, error) {
	if cfg.Games <= 0 {
		return Report{}, nil, fmt.Errorf("simulate: games must be positive, got %d", cfg.Games)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]GameResult, cfg.Games)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range cfg.Games {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := PlayGame(cfg.Seed+uint64(i), cfg, logger)
			if err != nil {
				return err
			}
			results[i] = r
			if progress != nil {
				progress()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, nil, err
	}
	logger.Info("simulation finished", zap.Int("games", cfg.Games), zap.Int("workers", workers))
	return Summarize(results), results, nil
}

// Summarize computes the report of a set of games.
//
// Precondition: len(results) > 0.
func Summarize(results []GameResult) Report {
	n := len(results)
	turns := make([]float64, n)
	rolls := make([]float64, n)
	bustRate := make([]float64, n)
	loser := make([]float64, n)
	wins := 0
	for i, r := range results {
		turns[i] = float64(r.Turns)
		rolls[i] = float64(r.Rolls)
		if r.Turns > 0 {
			bustRate[i] = float64(r.Busts) / float64(r.Turns)
		}
		loser[i] = float64(r.LoserScore)
		if r.Winner == 0 {
			wins++
		}
	}

	rate := float64(wins) / float64(n)
	low, high := wilson(wins, n, 0.95)
	return Report{
		Games:           n,
		FirstPlayerWins: wins,
		FirstPlayerRate: rate,
		RateLow:         low,
		RateHigh:        high,
		Turns:           summarize(turns),
		Rolls:           summarize(rolls),
		BustRate:        summarize(bustRate),
		LoserScore:      summarize(loser),
	}
}

func summarize(xs []float64) Summary {
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	mean, std := stat.MeanStdDev(sorted, nil)
	if len(sorted) < 2 {
		std = 0
	}
	return Summary{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(sorted),
		P50:    stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90:    stat.Quantile(0.9, stat.Empirical, sorted, nil),
		Max:    floats.Max(sorted),
	}
}

// wilson returns the Wilson score interval of k successes in n trials.
func wilson(k, n int, confidence float64) (float64, float64) {
	z := distuv.UnitNormal.Quantile(1 - (1-confidence)/2)
	p := float64(k) / float64(n)
	nf := float64(n)
	denom := 1 + z*z/nf
	center := (p + z*z/(2*nf)) / denom
	half := z * math.Sqrt(p*(1-p)/nf+z*z/(4*nf*nf)) / denom
	return math.Max(0, center-half), math.Min(1, center+half)
}
