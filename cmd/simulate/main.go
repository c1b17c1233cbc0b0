// Package main plays computer-versus-computer games and prints a report of
// the strategy's behaviour, for tuning the computer player.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/cheggaaa/pb/v3"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tenthousand/internal/config"
	"github.com/cory-johannsen/tenthousand/internal/frontend/handlers"
	"github.com/cory-johannsen/tenthousand/internal/observability"
	"github.com/cory-johannsen/tenthousand/internal/scripting"
	"github.com/cory-johannsen/tenthousand/internal/simulate"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	games := flag.Int("games", 1000, "number of games to play")
	seed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "seed of the first game")
	workers := flag.Int("workers", 0, "parallel games; 0 uses every CPU")
	qualification := flag.Int("qualification", 0, "qualification score; 0 uses the configured one")
	script := flag.String("decider", "", "Lua decider script; overrides the configured one")
	asJSON := flag.Bool("json", false, "print the report as JSON")
	quiet := flag.Bool("quiet", false, "hide the progress bar")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	cfg.Logging.Level = "warn"
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	sim := simulate.Config{
		Games:              *games,
		Seed:               *seed,
		QualificationScore: cfg.Game.QualificationScore,
		Tuning:             handlers.Tuning(cfg.Game),
		Workers:            *workers,
	}
	if *qualification > 0 {
		sim.QualificationScore = *qualification
	}
	if *script == "" {
		*script = cfg.Scripting.DeciderScript
	}
	if *script != "" {
		decider, err := scripting.LoadDecider(*script, cfg.Scripting.InstructionLimit, logger)
		if err != nil {
			logger.Fatal("loading decider script", zap.Error(err))
		}
		defer decider.Close()
		sim.Decider = decider
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bar := pb.StartNew(*games)
	if *quiet || *asJSON {
		bar.SetWriter(io.Discard)
	}
	report, _, err := simulate.Run(ctx, sim, logger, func() { bar.Increment() })
	used := time.Since(bar.StartTime())
	bar.Finish()
	if err != nil {
		logger.Fatal("simulation failed", zap.Error(err))
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatalf("encoding report: %v", err)
		}
		return
	}
	printReport(os.Stdout, sim, report, used)
}

func printReport(w io.Writer, sim simulate.Config, r simulate.Report, used time.Duration) {
	fmt.Fprintf(w, "games %d  seed %d  qualification %d  elapsed %s\n",
		r.Games, sim.Seed, sim.QualificationScore, used.Round(time.Millisecond))
	fmt.Fprintf(w, "first player wins %d (%.1f%%, 95%% CI %.1f%%-%.1f%%)\n\n",
		r.FirstPlayerWins, 100*r.FirstPlayerRate, 100*r.RateLow, 100*r.RateHigh)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tmean\tstddev\tmin\tp50\tp90\tmax\t")
	for _, row := range []struct {
		name string
		s    simulate.Summary
	}{
		{"turns", r.Turns},
		{"rolls", r.Rolls},
		{"bust rate", r.BustRate},
		{"loser score", r.LoserScore},
	} {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			row.name, row.s.Mean, row.s.StdDev, row.s.Min, row.s.P50, row.s.P90, row.s.Max)
	}
	tw.Flush()
}
