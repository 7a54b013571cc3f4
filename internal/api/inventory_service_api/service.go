package inventory_service_api

import (
	"context"

	"github.com/Domenick1991/flightsaga/internal/domain"
	"google.golang.org/grpc"
)

const ServiceName = "inventory.v1.Inventory"

const (
	methodLockSeats         = "LockSeats"
	methodReleaseSeats      = "ReleaseSeats"
	methodReduceAvailable   = "ReduceAvailable"
	methodIncreaseAvailable = "IncreaseAvailable"
	methodFlightMetadata    = "GetFlightMetadata"
	methodCheckFlight       = "CheckFlight"
)

type SeatsRequest struct {
	FlightID    string   `json:"flight_id"`
	SeatNumbers []string `json:"seat_numbers"`
	Holder      string   `json:"holder"`
}

type CountRequest struct {
	FlightID string `json:"flight_id"`
	Count    int    `json:"count"`
	Ref      string `json:"ref"`
}

type FlightRequest struct {
	FlightID string `json:"flight_id"`
}

type Empty struct{}

// InventoryServer is what the gRPC service dispatches to.
type InventoryServer interface {
	LockSeats(ctx context.Context, req *SeatsRequest) (*Empty, error)
	ReleaseSeats(ctx context.Context, req *SeatsRequest) (*Empty, error)
	ReduceAvailable(ctx context.Context, req *CountRequest) (*Empty, error)
	IncreaseAvailable(ctx context.Context, req *CountRequest) (*Empty, error)
	GetFlightMetadata(ctx context.Context, req *FlightRequest) (*domain.FlightMetadata, error)
	CheckFlight(ctx context.Context, req *FlightRequest) (*domain.Availability, error)
}

func RegisterInventoryServer(s grpc.ServiceRegistrar, srv InventoryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary builds a method handler for request type Req.
func unary[Req any, Resp any](name string, call func(InventoryServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(InventoryServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(InventoryServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(methodLockSeats, InventoryServer.LockSeats),
		unary(methodReleaseSeats, InventoryServer.ReleaseSeats),
		unary(methodReduceAvailable, InventoryServer.ReduceAvailable),
		unary(methodIncreaseAvailable, InventoryServer.IncreaseAvailable),
		unary(methodFlightMetadata, InventoryServer.GetFlightMetadata),
		unary(methodCheckFlight, InventoryServer.CheckFlight),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "inventory/v1/inventory.json",
}
