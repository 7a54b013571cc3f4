package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/flightsaga/config"
	inventoryapi "github.com/Domenick1991/flightsaga/internal/api/inventory_service_api"
	"github.com/Domenick1991/flightsaga/internal/bootstrap"
	"github.com/Domenick1991/flightsaga/internal/cache"
	"github.com/Domenick1991/flightsaga/internal/inventory"
	"github.com/Domenick1991/flightsaga/internal/kafka"
	"github.com/Domenick1991/flightsaga/internal/logger"
	"github.com/Domenick1991/flightsaga/internal/notification"
	"github.com/Domenick1991/flightsaga/internal/observability"
	"github.com/Domenick1991/flightsaga/internal/repository"
	"github.com/Domenick1991/flightsaga/internal/resilience"
	"github.com/Domenick1991/flightsaga/internal/service/booking"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observability.Setup(ctx, cfg.Telemetry)
	if err != nil {
		log.Printf("telemetry setup: %v", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	logg, err := logger.New(cfg.Log, cfg.Telemetry)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	bookings, reconciliation, closeStores := openStores(ctx, cfg, logg)
	defer closeStores()

	client, conn, err := inventoryapi.Dial(cfg.Inventory.Address)
	if err != nil {
		logg.Fatal("dial inventory", zap.Error(err))
	}
	defer conn.Close()

	gate := resilience.NewGate(bootstrap.GateSettings(cfg.Gate), logg)
	gated := inventory.NewGated(client, gate, reconciliation, logg)

	loc, err := cfg.Cancellation.Loc()
	if err != nil {
		logg.Fatal("cancellation location", zap.Error(err))
	}
	policy := booking.NewCancellationPolicy(gated,
		booking.WithLocation(loc),
		booking.WithCutoffHours(cfg.Cancellation.CutoffHours),
	)

	opts := []booking.BookingServiceOption{booking.WithLogger(logg)}

	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.FlightsCacheTTL)
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		logg.Warn("redis unavailable, running without in-flight lock", zap.Error(err))
	} else {
		opts = append(opts, booking.WithInFlightLock(redisCache, cfg.Booking.InFlightLockTTL))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logg)
		defer producer.Close()
		dispatcher := notification.NewDispatcher(producer, cfg.Kafka.NotificationsTopic, cfg.Booking.NotificationQueue, logg)
		dispatcher.Start()
		defer dispatcher.Close()
		opts = append(opts, booking.WithNotifier(dispatcher))
	} else {
		opts = append(opts, booking.WithNotifier(notification.NewLogNotifier(logg)))
	}

	bookingService := booking.NewBookingService(bookings, gated, policy, opts...)

	// The worker cannot see an in-process queue, so sweep it here.
	if store, ok := reconciliation.(*repository.MemoryReconciliationRepository); ok {
		reconciler := inventory.NewReconciler(client, gate, store, cfg.Reconciliation.BatchSize, logg)
		go bootstrap.RunReconciliation(ctx, reconciler, cfg.Reconciliation.SweepInterval, logg)
	}

	if err := bootstrap.RunBookingAPI(ctx, cfg, bookingService, logg); err != nil {
		logg.Fatal("server error", zap.Error(err))
	}
}

// openStores picks the booking store by config. Reconciliation items live in
// Postgres unless everything runs in memory.
func openStores(ctx context.Context, cfg *config.Config, logg *zap.Logger) (repository.BookingRepository, repository.ReconciliationRepository, func()) {
	if cfg.Storage.Bookings == config.StorageMemory {
		return repository.NewMemoryBookingRepository(), repository.NewMemoryReconciliationRepository(), func() {}
	}

	pool, err := bootstrap.OpenPostgres(ctx, cfg.Database)
	if err != nil {
		logg.Fatal("open postgres", zap.Error(err))
	}
	reconciliation := repository.NewReconciliationRepository(pool)

	if cfg.Storage.Bookings != config.StorageMongo {
		return repository.NewBookingRepository(pool), reconciliation, pool.Close
	}

	client, db, err := bootstrap.OpenMongo(ctx, cfg.Mongo)
	if err != nil {
		logg.Fatal("open mongo", zap.Error(err))
	}
	bookings := repository.NewMongoBookingRepository(db)
	if err := bookings.EnsureIndexes(ctx); err != nil {
		logg.Fatal("mongo indexes", zap.Error(err))
	}
	return bookings, reconciliation, func() {
		_ = client.Disconnect(context.Background())
		pool.Close()
	}
}
