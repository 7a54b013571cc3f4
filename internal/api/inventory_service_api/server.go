package inventory_service_api

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/flightsaga/internal/domain"
	"github.com/Domenick1991/flightsaga/internal/inventory"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server exposes an inventory.Authority over gRPC.
type Server struct {
	authority inventory.Authority
}

func NewServer(authority inventory.Authority) *Server {
	return &Server{authority: authority}
}

func (s *Server) LockSeats(ctx context.Context, req *SeatsRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.authority.LockSeats(ctx, req.FlightID, req.SeatNumbers, req.Holder))
}

func (s *Server) ReleaseSeats(ctx context.Context, req *SeatsRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.authority.ReleaseSeats(ctx, req.FlightID, req.SeatNumbers, req.Holder))
}

func (s *Server) ReduceAvailable(ctx context.Context, req *CountRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.authority.ReduceAvailable(ctx, req.FlightID, req.Count, req.Ref))
}

func (s *Server) IncreaseAvailable(ctx context.Context, req *CountRequest) (*Empty, error) {
	return &Empty{}, toStatus(s.authority.IncreaseAvailable(ctx, req.FlightID, req.Count, req.Ref))
}

func (s *Server) GetFlightMetadata(ctx context.Context, req *FlightRequest) (*domain.FlightMetadata, error) {
	meta, err := s.authority.GetFlightMetadata(ctx, req.FlightID)
	if err != nil {
		return nil, toStatus(err)
	}
	return meta, nil
}

func (s *Server) CheckFlight(ctx context.Context, req *FlightRequest) (*domain.Availability, error) {
	avail, err := s.authority.CheckFlight(ctx, req.FlightID)
	if err != nil {
		return nil, toStatus(err)
	}
	return avail, nil
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrSeatConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrInsufficientSeats):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, domain.ErrFlightNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrMalformedRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// LoggingInterceptor logs every call with its outcome code and latency.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("latency", time.Since(start)),
		}
		if code == codes.Internal || code == codes.Unknown {
			logger.Error("grpc call failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("grpc call", fields...)
		}
		return resp, err
	}
}

var _ InventoryServer = (*Server)(nil)
