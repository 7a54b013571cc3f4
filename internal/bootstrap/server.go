package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/flightsaga/api"
	"github.com/Domenick1991/flightsaga/config"
	inventoryapi "github.com/Domenick1991/flightsaga/internal/api/inventory_service_api"
	"github.com/Domenick1991/flightsaga/internal/inventory"
	"github.com/Domenick1991/flightsaga/internal/service/booking"
	"github.com/Domenick1991/flightsaga/internal/service/flights"
	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const shutdownTimeout = 5 * time.Second

type Servers struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	logger     *zap.Logger
}

// InventoryAuthority is what the inventory process exposes over gRPC and HTTP.
type InventoryAuthority interface {
	inventory.Authority
	flights.FlightUseCase
}

// RunBookingAPI serves the booking HTTP surface and blocks until ctx is
// canceled or the server fails.
func RunBookingAPI(ctx context.Context, cfg *config.Config, bookingSvc booking.BookingUseCase, logger *zap.Logger) error {
	router := newRouter(logger)
	api.RegisterHealth(router, bookingSvc)
	api.NewBookingHandler(bookingSvc).Register(router.Group("/bookings"))
	registerDocs(router, cfg.HTTP.SwaggerDir, "bookings.swagger.json")

	s := &Servers{
		httpServer: &http.Server{Addr: cfg.HTTP.Address, Handler: router},
		logger:     logger,
	}
	return s.run(ctx, cfg)
}

// RunInventory serves the inventory authority over gRPC and its flight
// catalogue over HTTP.
func RunInventory(ctx context.Context, cfg *config.Config, authority InventoryAuthority, logger *zap.Logger) error {
	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(inventoryapi.LoggingInterceptor(logger)))
	inventoryapi.RegisterInventoryServer(grpcSrv, inventoryapi.NewServer(authority))

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(inventoryapi.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	router := newRouter(logger)
	api.RegisterHealth(router, nil)
	api.NewFlightHandler(authority).Register(router.Group("/flights"))
	registerDocs(router, cfg.HTTP.SwaggerDir, "flights.swagger.json")

	s := &Servers{
		grpcServer: grpcSrv,
		httpServer: &http.Server{Addr: cfg.HTTP.Address, Handler: router},
		logger:     logger,
	}
	return s.run(ctx, cfg)
}

func (s *Servers) run(ctx context.Context, cfg *config.Config) error {
	errCh := make(chan error, 2)

	if s.grpcServer != nil {
		lis, err := net.Listen("tcp", cfg.GRPC.Address)
		if err != nil {
			return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
		}
		s.logger.Info("gRPC server listening", zap.String("address", cfg.GRPC.Address))
		go func() { errCh <- s.grpcServer.Serve(lis) }()
	}

	s.logger.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if s.grpcServer != nil {
			s.grpcServer.GracefulStop()
		}
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		s.logger.Info("servers stopped")
		return nil
	}
}

func newRouter(logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	return router
}

// registerDocs serves the static OpenAPI document and a Swagger UI for it.
func registerDocs(router *gin.Engine, dir, file string) {
	if dir == "" {
		return
	}
	router.Static("/swagger", dir)
	router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/swagger/"+file))))
}
