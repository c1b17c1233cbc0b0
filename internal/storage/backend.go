// Package storage opens the configured backing store for online game
// records.
package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/tenthousand/internal/config"
	"github.com/cory-johannsen/tenthousand/internal/remote"
	"github.com/cory-johannsen/tenthousand/internal/remote/grpcstore"
	"github.com/cory-johannsen/tenthousand/internal/storage/postgres"
)

const healthTimeout = 5 * time.Second

// Backend is an open record store with its health probe and teardown.
type Backend struct {
	Name  string
	Store remote.Store
	// Check probes the store's dependency; nil for the in-memory store.
	Check func(ctx context.Context) error
	close []func()
}

// Close releases the backend's resources in reverse order of acquisition.
func (b *Backend) Close() {
	for i := len(b.close) - 1; i >= 0; i-- {
		b.close[i]()
	}
	b.close = nil
}

// Open connects to the backend named by cfg.Remote.Backend. The postgres
// backend applies pending migrations first when migrate is set.
//
// Postcondition: on success the caller must Close the Backend.
func Open(ctx context.Context, cfg config.Config, migrate bool, logger *zap.Logger) (*Backend, error) {
	b := &Backend{Name: cfg.Remote.Backend}
	switch cfg.Remote.Backend {
	case config.BackendMemory:
		b.Store = remote.NewMemoryStore()

	case config.BackendPostgres:
		if migrate {
			if err := postgres.MigrateUp(cfg.Database.DSN()); err != nil {
				return nil, err
			}
		}
		start := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Int("port", cfg.Database.Port),
			zap.String("database", cfg.Database.Name),
			zap.Duration("elapsed", time.Since(start)),
		)
		store := postgres.NewRecordStore(pool.DB(), logger)
		b.Store = store
		b.Check = func(ctx context.Context) error { return pool.Health(ctx, healthTimeout) }
		b.close = append(b.close, pool.Close, store.Close)

	case config.BackendGRPC:
		client, conn, err := grpcstore.Dial(cfg.Remote.Addr(), logger)
		if err != nil {
			return nil, err
		}
		health := grpc_health_v1.NewHealthClient(conn)
		b.Store = client
		b.Check = func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, healthTimeout)
			defer cancel()
			resp, err := health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: grpcstore.ServiceName})
			if err != nil {
				return fmt.Errorf("record store health: %w", err)
			}
			if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
				return fmt.Errorf("record store health: %s", resp.GetStatus())
			}
			return nil
		}
		b.close = append(b.close, func() { _ = conn.Close() })

	default:
		return nil, fmt.Errorf("unknown remote backend %q", cfg.Remote.Backend)
	}
	logger.Info("record store opened", zap.String("backend", b.Name))
	return b, nil
}
