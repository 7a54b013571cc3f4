package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/flightsaga/internal/domain"
)

// FlightRepository is the inventory authority's store: flights, their
// available-seat counter and the per-seat ledger.
type FlightRepository interface {
	List(ctx context.Context) ([]domain.Flight, error)
	Search(ctx context.Context, source, destination, date string) ([]domain.Flight, error)
	GetByID(ctx context.Context, id string) (*domain.Flight, error)
	Create(ctx context.Context, flight *domain.Flight) error
	Seats(ctx context.Context, flightID string) ([]domain.Seat, error)
	SeedSeats(ctx context.Context, flightID string, seatNumbers []string) error
	// LockSeats books every seat or none of them for holder. Seats the same
	// holder already has count as locked.
	LockSeats(ctx context.Context, flightID string, seatNumbers []string, holder string) error
	// ReleaseSeats frees only the seats still held by holder.
	ReleaseSeats(ctx context.Context, flightID string, seatNumbers []string, holder string) error
	// ReduceAvailable fails with ErrInsufficientSeats instead of going negative.
	// It applies at most once per ref.
	ReduceAvailable(ctx context.Context, flightID string, count int, ref string) error
	// IncreaseAvailable restores what ref reduced, at most once, and never
	// raises the counter above the flight's capacity.
	IncreaseAvailable(ctx context.Context, flightID string, count int, ref string) error
}

type BookingRepository interface {
	// Save inserts or updates the record. A second CONFIRMED booking for the
	// same flight and email fails with ErrDuplicateBooking.
	Save(ctx context.Context, booking *domain.Booking) error
	FindByID(ctx context.Context, id string) (*domain.Booking, error)
	FindByPNR(ctx context.Context, pnr string) (*domain.Booking, error)
	// FindActive returns nil, nil when no CONFIRMED booking exists.
	FindActive(ctx context.Context, flightID, email string) (*domain.Booking, error)
	ListByEmail(ctx context.Context, email string) ([]domain.Booking, error)
	List(ctx context.Context) ([]domain.Booking, error)
}

type ReconciliationRepository interface {
	Create(ctx context.Context, item *domain.ReconciliationItem) error
	ListPending(ctx context.Context, limit int) ([]domain.ReconciliationItem, error)
	MarkResolved(ctx context.Context, id string, at time.Time) error
	RecordAttempt(ctx context.Context, id string, reason string) error
}
