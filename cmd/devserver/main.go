// Package main provides the telnet play server. Each connection plays its
// own game; online rooms go through the configured record store.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tenthousand/internal/config"
	"github.com/cory-johannsen/tenthousand/internal/frontend/handlers"
	"github.com/cory-johannsen/tenthousand/internal/frontend/telnet"
	"github.com/cory-johannsen/tenthousand/internal/observability"
	"github.com/cory-johannsen/tenthousand/internal/scripting"
	"github.com/cory-johannsen/tenthousand/internal/server"
	"github.com/cory-johannsen/tenthousand/internal/storage"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	migrate := flag.Bool("migrate", true, "apply database migrations when the postgres backend is used")
	offline := flag.Bool("offline", false, "disable online rooms")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting 10,000 telnet server",
		zap.String("backend", cfg.Remote.Backend),
		zap.Int("qualification", cfg.Game.QualificationScore),
		zap.Bool("dev_commands", cfg.Game.DevCommands),
	)

	ctx := context.Background()
	deps := handlers.Deps{Config: cfg}

	if !*offline {
		backend, err := storage.Open(ctx, cfg, *migrate, logger)
		if err != nil {
			logger.Fatal("opening record store", zap.Error(err))
		}
		defer backend.Close()
		deps.Store = backend.Store
	}

	if path := cfg.Scripting.DeciderScript; path != "" {
		decider, err := scripting.LoadDecider(path, cfg.Scripting.InstructionLimit, logger)
		if err != nil {
			logger.Fatal("loading decider script", zap.Error(err))
		}
		defer decider.Close()
		deps.Decider = decider
		logger.Info("computer decider loaded", zap.String("script", path))
	}

	acceptor := telnet.NewAcceptor(cfg.Telnet, handlers.NewGameHandler(deps, logger), logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("telnet", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})

	logger.Info("server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("telnet_addr", cfg.Telnet.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
