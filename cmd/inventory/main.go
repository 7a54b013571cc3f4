package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/flightsaga/config"
	"github.com/Domenick1991/flightsaga/internal/bootstrap"
	"github.com/Domenick1991/flightsaga/internal/cache"
	"github.com/Domenick1991/flightsaga/internal/logger"
	"github.com/Domenick1991/flightsaga/internal/observability"
	"github.com/Domenick1991/flightsaga/internal/repository"
	"github.com/Domenick1991/flightsaga/internal/service/flights"
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
	if cfg.Telemetry.ServiceName == "booking-service" {
		cfg.Telemetry.ServiceName = "inventory-service"
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

	var flightRepo repository.FlightRepository
	if cfg.Storage.Inventory == config.StorageMemory {
		flightRepo = repository.NewMemoryFlightRepository()
	} else {
		pool, err := bootstrap.OpenPostgres(ctx, cfg.Database)
		if err != nil {
			logg.Fatal("open postgres", zap.Error(err))
		}
		defer pool.Close()
		flightRepo = repository.NewFlightRepository(pool)
	}

	var flightCache flights.FlightCache
	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.FlightsCacheTTL)
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		logg.Warn("redis unavailable, serving flights uncached", zap.Error(err))
	} else {
		flightCache = redisCache
	}

	flightService := flights.NewFlightService(flightRepo, flightCache, logg)

	if err := bootstrap.RunInventory(ctx, cfg, flightService, logg); err != nil {
		logg.Fatal("server error", zap.Error(err))
	}
}
