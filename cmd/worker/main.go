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
	"github.com/Domenick1991/flightsaga/internal/email"
	"github.com/Domenick1991/flightsaga/internal/inventory"
	"github.com/Domenick1991/flightsaga/internal/kafka"
	"github.com/Domenick1991/flightsaga/internal/logger"
	"github.com/Domenick1991/flightsaga/internal/observability"
	"github.com/Domenick1991/flightsaga/internal/repository"
	"github.com/Domenick1991/flightsaga/internal/resilience"
	kafkaGo "github.com/segmentio/kafka-go"
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

	if cfg.Storage.Bookings != config.StorageMemory {
		pool, err := bootstrap.OpenPostgres(ctx, cfg.Database)
		if err != nil {
			logg.Fatal("open postgres", zap.Error(err))
		}
		defer pool.Close()

		client, conn, err := inventoryapi.Dial(cfg.Inventory.Address)
		if err != nil {
			logg.Fatal("dial inventory", zap.Error(err))
		}
		defer conn.Close()

		gate := resilience.NewGate(bootstrap.GateSettings(cfg.Gate), logg)
		reconciler := inventory.NewReconciler(client, gate, repository.NewReconciliationRepository(pool), cfg.Reconciliation.BatchSize, logg)
		go bootstrap.RunReconciliation(ctx, reconciler, cfg.Reconciliation.SweepInterval, logg)
	}

	if len(cfg.Kafka.Brokers) == 0 {
		logg.Warn("no kafka brokers configured, notifications are not consumed")
		<-ctx.Done()
		return
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logg)
	defer consumer.Close()

	emailSender := email.NewSender(cfg.SMTP, logg)

	logg.Info("worker started", zap.String("topic", cfg.Kafka.NotificationsTopic))
	err = consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
		event, err := kafka.DecodeNotification(msg)
		if err != nil {
			logg.Error("decode notification", zap.Error(err), zap.Int64("offset", msg.Offset))
			return nil
		}
		return emailSender.Send(ctx, event)
	})
	if err != nil {
		logg.Error("consumer stopped", zap.Error(err))
	}
	logg.Info("worker stopped")
}
