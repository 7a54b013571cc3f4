package inventory_service_api

import (
	"context"
	"fmt"

	"github.com/Domenick1991/flightsaga/internal/domain"
	"github.com/Domenick1991/flightsaga/internal/inventory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// Client is the remote inventory.Authority used by the booking service.
type Client struct {
	conn grpc.ClientConnInterface
}

// Dial creates a lazily connecting client for address.
func Dial(address string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create inventory client for %s: %w", address, err)
	}
	return NewClient(conn), conn, nil
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	err := c.conn.Invoke(ctx, fullMethod(method), req, resp, grpc.CallContentSubtype(CodecName))
	return fromStatus(method, err)
}

func (c *Client) LockSeats(ctx context.Context, flightID string, seatNumbers []string, holder string) error {
	return c.invoke(ctx, methodLockSeats, &SeatsRequest{FlightID: flightID, SeatNumbers: seatNumbers, Holder: holder}, &Empty{})
}

func (c *Client) ReleaseSeats(ctx context.Context, flightID string, seatNumbers []string, holder string) error {
	return c.invoke(ctx, methodReleaseSeats, &SeatsRequest{FlightID: flightID, SeatNumbers: seatNumbers, Holder: holder}, &Empty{})
}

func (c *Client) ReduceAvailable(ctx context.Context, flightID string, count int, ref string) error {
	return c.invoke(ctx, methodReduceAvailable, &CountRequest{FlightID: flightID, Count: count, Ref: ref}, &Empty{})
}

func (c *Client) IncreaseAvailable(ctx context.Context, flightID string, count int, ref string) error {
	return c.invoke(ctx, methodIncreaseAvailable, &CountRequest{FlightID: flightID, Count: count, Ref: ref}, &Empty{})
}

func (c *Client) GetFlightMetadata(ctx context.Context, flightID string) (*domain.FlightMetadata, error) {
	var meta domain.FlightMetadata
	if err := c.invoke(ctx, methodFlightMetadata, &FlightRequest{FlightID: flightID}, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *Client) CheckFlight(ctx context.Context, flightID string) (*domain.Availability, error) {
	var avail domain.Availability
	if err := c.invoke(ctx, methodCheckFlight, &FlightRequest{FlightID: flightID}, &avail); err != nil {
		return nil, err
	}
	return &avail, nil
}

// fromStatus turns a gRPC status back into the domain error the authority
// returned. Every code without a business meaning becomes ErrInventoryUnavailable.
func fromStatus(method string, err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Aborted:
		return domain.RejectWrap(domain.ErrSeatConflict, err, "%s", st.Message())
	case codes.ResourceExhausted:
		return domain.RejectWrap(domain.ErrInsufficientSeats, err, "%s", st.Message())
	case codes.NotFound:
		return domain.RejectWrap(domain.ErrFlightNotFound, err, "%s", st.Message())
	case codes.InvalidArgument:
		return domain.RejectWrap(domain.ErrMalformedRequest, err, "%s", st.Message())
	default:
		return domain.RejectWrap(domain.ErrInventoryUnavailable, err, "%s", method)
	}
}

var _ inventory.Authority = (*Client)(nil)
