package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/flightsaga/config"
	"github.com/Domenick1991/flightsaga/internal/inventory"
	"github.com/Domenick1991/flightsaga/internal/resilience"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const inventoryGateName = "inventory"

// GateSettings maps the gate section of the config onto the breaker settings.
func GateSettings(cfg config.GateConfig) resilience.Settings {
	return resilience.Settings{
		Name:                inventoryGateName,
		CallTimeout:         cfg.CallTimeout,
		Interval:            cfg.Interval,
		Cooldown:            cfg.Cooldown,
		FailureRatio:        cfg.FailureRatio,
		MinRequests:         cfg.MinRequests,
		HalfOpenMaxRequests: cfg.HalfOpenMaxRequests,
		Retries:             cfg.Retries,
	}
}

func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func OpenMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, client.Database(cfg.Database), nil
}

// RunReconciliation sweeps pending reconciliation items every interval until
// ctx is canceled.
func RunReconciliation(ctx context.Context, reconciler *inventory.Reconciler, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			resolved, err := reconciler.Sweep(ctx)
			if err != nil {
				logger.Error("reconciliation sweep failed", zap.Error(err))
				continue
			}
			if resolved > 0 {
				logger.Info("reconciled inventory restorations", zap.Int("resolved", resolved))
			}
		case <-ctx.Done():
			return
		}
	}
}
