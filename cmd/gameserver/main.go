// Package main provides the record store server: the gRPC RecordStore
// service that telnet servers share for online rooms, the admin HTTP API
// and the stale room pruner.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/tenthousand/internal/admin"
	"github.com/cory-johannsen/tenthousand/internal/config"
	"github.com/cory-johannsen/tenthousand/internal/observability"
	"github.com/cory-johannsen/tenthousand/internal/remote"
	"github.com/cory-johannsen/tenthousand/internal/remote/grpcstore"
	"github.com/cory-johannsen/tenthousand/internal/server"
	"github.com/cory-johannsen/tenthousand/internal/storage"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	backendName := flag.String("backend", "postgres", "backing store: memory or postgres")
	pruneEvery := flag.Duration("prune-every", time.Hour, "interval between stale room sweeps; 0 disables")
	pruneAge := flag.Duration("prune-age", 24*time.Hour, "rooms idle for longer than this are deleted")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *backendName == config.BackendGRPC {
		log.Fatalf("the record store server cannot use the grpc backend")
	}
	cfg.Remote.Backend = *backendName

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting record store server",
		zap.String("grpc_addr", cfg.Remote.Addr()),
		zap.String("admin_addr", cfg.Admin.Addr()),
		zap.String("backend", cfg.Remote.Backend),
	)

	ctx := context.Background()
	backend, err := storage.Open(ctx, cfg, true, logger)
	if err != nil {
		logger.Fatal("opening record store", zap.Error(err))
	}
	defer backend.Close()

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpcstore.Register(grpcServer, grpcstore.NewServer(backend.Store, logger))
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(grpcstore.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("grpc", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", cfg.Remote.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.Remote.Addr(), err)
			}
			logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
			return grpcServer.Serve(lis)
		},
		StopFn: func() {
			healthServer.Shutdown()
			grpcServer.GracefulStop()
		},
	})

	lifecycle.Add("admin", admin.NewServer(cfg.Admin, backend.Store, backend.Check, logger))

	if backend.Check != nil {
		lifecycle.Add("health", server.Periodic(logger, 30*time.Second, func(ctx context.Context) error {
			if err := backend.Check(ctx); err != nil {
				healthServer.SetServingStatus(grpcstore.ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
				return err
			}
			healthServer.SetServingStatus(grpcstore.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
			return nil
		}))
	}

	if *pruneEvery > 0 {
		lifecycle.Add("pruner", server.Periodic(logger, *pruneEvery, func(ctx context.Context) error {
			n, err := remote.PruneStale(ctx, backend.Store, time.Now().Add(-*pruneAge))
			if err != nil {
				return fmt.Errorf("pruning rooms: %w", err)
			}
			if n > 0 {
				logger.Info("pruned stale rooms", zap.Int64("deleted", n))
			}
			return nil
		}))
	}

	logger.Info("server initialized", zap.Duration("startup", time.Since(start)))

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
