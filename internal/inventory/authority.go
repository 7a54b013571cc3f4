// Package inventory defines the contract of the remote inventory authority
// and the gated adapter the booking saga talks to.
package inventory

import (
	"context"

	"github.com/Domenick1991/flightsaga/internal/domain"
)

// Authority owns the Seat Ledger and the Inventory Aggregate. Implementations
// must make LockSeats all-or-nothing and ReduceAvailable conditional on the
// counter staying non-negative.
//
// Every mutation carries the booking reference. Seats are held by it and only
// released for it, and counter changes apply at most once per reference, so a
// late or replayed call cannot touch another booking's inventory.
type Authority interface {
	LockSeats(ctx context.Context, flightID string, seatNumbers []string, holder string) error
	ReleaseSeats(ctx context.Context, flightID string, seatNumbers []string, holder string) error
	ReduceAvailable(ctx context.Context, flightID string, count int, ref string) error
	IncreaseAvailable(ctx context.Context, flightID string, count int, ref string) error
	GetFlightMetadata(ctx context.Context, flightID string) (*domain.FlightMetadata, error)
	CheckFlight(ctx context.Context, flightID string) (*domain.Availability, error)
}
