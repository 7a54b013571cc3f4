package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/flightsaga/internal/domain"
)

// MemoryFlightRepository keeps the inventory in process. Every method holds
// the mutex for its whole body, which gives the same all-or-nothing guarantees
// as the Postgres implementation.
type MemoryFlightRepository struct {
	mu      sync.Mutex
	flights map[string]*domain.Flight
	// seats maps flight -> seat -> holder; an empty holder is a free seat.
	seats       map[string]map[string]string
	adjustments map[string]map[string]*adjustment
}

// adjustment is one ref's decrement of a flight counter.
type adjustment struct {
	count    int
	restored bool
}

func NewMemoryFlightRepository() *MemoryFlightRepository {
	return &MemoryFlightRepository{
		flights:     make(map[string]*domain.Flight),
		seats:       make(map[string]map[string]string),
		adjustments: make(map[string]map[string]*adjustment),
	}
}

func (r *MemoryFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	flights := make([]domain.Flight, 0, len(r.flights))
	for _, f := range r.flights {
		flights = append(flights, *f)
	}
	sort.Slice(flights, func(i, j int) bool {
		if flights[i].Date != flights[j].Date {
			return flights[i].Date < flights[j].Date
		}
		return flights[i].ID < flights[j].ID
	})
	return flights, nil
}

func (r *MemoryFlightRepository) Search(ctx context.Context, source, destination, date string) ([]domain.Flight, error) {
	all, _ := r.List(ctx)
	flights := make([]domain.Flight, 0)
	for _, f := range all {
		if strings.EqualFold(f.Source, source) && strings.EqualFold(f.Destination, destination) && f.Date == date {
			flights = append(flights, f)
		}
	}
	return flights, nil
}

func (r *MemoryFlightRepository) GetByID(ctx context.Context, id string) (*domain.Flight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flights[id]
	if !ok {
		return nil, domain.ErrFlightNotFound
	}
	c := *f
	return &c, nil
}

func (r *MemoryFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.flights[flight.ID]; ok {
		return fmt.Errorf("flight %s already exists", flight.ID)
	}
	now := time.Now()
	flight.CreatedAt, flight.UpdatedAt = now, now
	c := *flight
	r.flights[flight.ID] = &c
	return nil
}

func (r *MemoryFlightRepository) Seats(ctx context.Context, flightID string) ([]domain.Seat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seats := make([]domain.Seat, 0, len(r.seats[flightID]))
	for number, holder := range r.seats[flightID] {
		seats = append(seats, domain.Seat{FlightID: flightID, SeatNumber: number, Booked: holder != ""})
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].SeatNumber < seats[j].SeatNumber })
	return seats, nil
}

func (r *MemoryFlightRepository) SeedSeats(ctx context.Context, flightID string, seatNumbers []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ledger, ok := r.seats[flightID]
	if !ok {
		ledger = make(map[string]string, len(seatNumbers))
		r.seats[flightID] = ledger
	}
	for _, n := range seatNumbers {
		if _, exists := ledger[n]; !exists {
			ledger[n] = ""
		}
	}
	return nil
}

func (r *MemoryFlightRepository) LockSeats(ctx context.Context, flightID string, seatNumbers []string, holder string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ledger := r.seats[flightID]
	for _, n := range seatNumbers {
		current, exists := ledger[n]
		if !exists || (current != "" && current != holder) {
			return fmt.Errorf("seat %s: %w", n, domain.ErrSeatConflict)
		}
	}
	for _, n := range seatNumbers {
		ledger[n] = holder
	}
	return nil
}

func (r *MemoryFlightRepository) ReleaseSeats(ctx context.Context, flightID string, seatNumbers []string, holder string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ledger := r.seats[flightID]
	for _, n := range seatNumbers {
		if current, exists := ledger[n]; exists && current == holder {
			ledger[n] = ""
		}
	}
	return nil
}

func (r *MemoryFlightRepository) ReduceAvailable(ctx context.Context, flightID string, count int, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flights[flightID]
	if !ok {
		return domain.ErrFlightNotFound
	}
	refs, ok := r.adjustments[flightID]
	if !ok {
		refs = make(map[string]*adjustment)
		r.adjustments[flightID] = refs
	}
	if _, applied := refs[ref]; applied {
		return nil
	}
	if f.AvailableSeats < count {
		return domain.ErrInsufficientSeats
	}
	f.AvailableSeats -= count
	f.UpdatedAt = time.Now()
	refs[ref] = &adjustment{count: count}
	return nil
}

// IncreaseAvailable ignores count and restores what ref actually reduced.
func (r *MemoryFlightRepository) IncreaseAvailable(ctx context.Context, flightID string, count int, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.flights[flightID]
	if !ok {
		return domain.ErrFlightNotFound
	}
	adj, ok := r.adjustments[flightID][ref]
	if !ok || adj.restored {
		return nil
	}
	adj.restored = true
	f.AvailableSeats = min(f.TotalSeats, f.AvailableSeats+adj.count)
	f.UpdatedAt = time.Now()
	return nil
}

var _ FlightRepository = (*MemoryFlightRepository)(nil)

// MemoryBookingRepository enforces the one-active-booking rule inside Save,
// mirroring the partial unique index of the SQL schema.
type MemoryBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking
}

func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{bookings: make(map[string]*domain.Booking)}
}

func (r *MemoryBookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, b := range r.bookings {
		if id == booking.ID {
			continue
		}
		if b.PNR == booking.PNR {
			return fmt.Errorf("pnr %s already in use", booking.PNR)
		}
		if booking.Status == domain.BookingStatusConfirmed && b.Status == domain.BookingStatusConfirmed &&
			b.FlightID == booking.FlightID && b.Email == booking.Email {
			return domain.ErrDuplicateBooking
		}
	}
	r.bookings[booking.ID] = booking.Clone()
	return nil
}

func (r *MemoryBookingRepository) FindByID(ctx context.Context, id string) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (r *MemoryBookingRepository) FindByPNR(ctx context.Context, pnr string) (*domain.Booking, error) {
	return r.findFirst(func(b *domain.Booking) bool { return b.PNR == pnr }, domain.ErrBookingNotFound)
}

func (r *MemoryBookingRepository) FindActive(ctx context.Context, flightID, email string) (*domain.Booking, error) {
	return r.findFirst(func(b *domain.Booking) bool {
		return b.FlightID == flightID && b.Email == email && b.Status == domain.BookingStatusConfirmed
	}, nil)
}

func (r *MemoryBookingRepository) findFirst(match func(*domain.Booking) bool, notFound error) (*domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.bookings {
		if match(b) {
			return b.Clone(), nil
		}
	}
	return nil, notFound
}

func (r *MemoryBookingRepository) ListByEmail(ctx context.Context, email string) ([]domain.Booking, error) {
	return r.filter(func(b *domain.Booking) bool { return b.Email == email }), nil
}

func (r *MemoryBookingRepository) List(ctx context.Context) ([]domain.Booking, error) {
	return r.filter(func(*domain.Booking) bool { return true }), nil
}

func (r *MemoryBookingRepository) filter(match func(*domain.Booking) bool) []domain.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()

	bookings := make([]domain.Booking, 0)
	for _, b := range r.bookings {
		if match(b) {
			bookings = append(bookings, *b.Clone())
		}
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].BookingDate.After(bookings[j].BookingDate) })
	return bookings
}

var _ BookingRepository = (*MemoryBookingRepository)(nil)

type MemoryReconciliationRepository struct {
	mu    sync.Mutex
	items []*domain.ReconciliationItem
}

func NewMemoryReconciliationRepository() *MemoryReconciliationRepository {
	return &MemoryReconciliationRepository{}
}

func (r *MemoryReconciliationRepository) Create(ctx context.Context, item *domain.ReconciliationItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *item
	c.SeatNumbers = append([]string(nil), item.SeatNumbers...)
	r.items = append(r.items, &c)
	return nil
}

func (r *MemoryReconciliationRepository) ListPending(ctx context.Context, limit int) ([]domain.ReconciliationItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []domain.ReconciliationItem
	for _, it := range r.items {
		if it.ResolvedAt == nil {
			pending = append(pending, *it)
		}
		if limit > 0 && len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (r *MemoryReconciliationRepository) MarkResolved(ctx context.Context, id string, at time.Time) error {
	return r.update(id, func(it *domain.ReconciliationItem) {
		it.Attempts++
		it.ResolvedAt = &at
	})
}

func (r *MemoryReconciliationRepository) RecordAttempt(ctx context.Context, id string, reason string) error {
	return r.update(id, func(it *domain.ReconciliationItem) {
		it.Attempts++
		it.Reason = reason
	})
}

func (r *MemoryReconciliationRepository) update(id string, fn func(*domain.ReconciliationItem)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, it := range r.items {
		if it.ID == id {
			fn(it)
			return nil
		}
	}
	return fmt.Errorf("reconciliation item %s not found", id)
}

var _ ReconciliationRepository = (*MemoryReconciliationRepository)(nil)
