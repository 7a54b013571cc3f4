package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/flightsaga/internal/domain"
	"github.com/Domenick1991/flightsaga/internal/inventory"
	"github.com/Domenick1991/flightsaga/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/Domenick1991/flightsaga/internal/service/booking"

type BookingUseCase interface {
	Reserve(ctx context.Context, input ReserveInput) (*domain.Booking, error)
	CancelByID(ctx context.Context, id string) (*domain.Booking, error)
	CancelByPNR(ctx context.Context, pnr string) (*domain.Booking, error)
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	GetByPNR(ctx context.Context, pnr string) (*domain.Booking, error)
	ListByEmail(ctx context.Context, email string) ([]domain.Booking, error)
	ListAll(ctx context.Context) ([]domain.Booking, error)
	InventoryOpen() bool
}

// Inventory is the gated view of the inventory authority. Transport failures
// have already been replaced by fallbacks when a method returns.
type Inventory interface {
	IsOpen() bool
	CheckFlight(ctx context.Context, flightID string) (*domain.Availability, bool)
	LockSeats(ctx context.Context, flightID string, seatNumbers []string, bookingRef string) error
	ReduceAvailable(ctx context.Context, flightID string, count int, bookingRef string) error
	ReleaseSeats(ctx context.Context, flightID string, seatNumbers []string, bookingRef string) error
	IncreaseAvailable(ctx context.Context, flightID string, count int, bookingRef string) error
	FlightMetadata(ctx context.Context, flightID string) (*domain.FlightMetadata, bool)
}

// InFlightLock marks a reservation for one identity as running. Release only
// removes the lock while it still carries the token Acquire returned.
type InFlightLock interface {
	AcquireInFlightLock(ctx context.Context, flightID, email string, ttl time.Duration) (token string, acquired bool, err error)
	ReleaseInFlightLock(ctx context.Context, flightID, email, token string) error
}

type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string)
}

type ReserveInput struct {
	FlightID       string   `json:"flight_id" validate:"required"`
	Email          string   `json:"email" validate:"required,email"`
	PassengerName  string   `json:"passenger_name"`
	PassengerCount int      `json:"passenger_count" validate:"gte=1"`
	SeatNumbers    []string `json:"seat_numbers" validate:"required,min=1,dive,required"`
}

type BookingService struct {
	bookings  repository.BookingRepository
	inventory Inventory
	policy    *CancellationPolicy
	lock      InFlightLock
	lockTTL   time.Duration
	notifier  Notifier
	validate  *validator.Validate
	tracer    trace.Tracer
	logger    *zap.Logger
	now       func() time.Time
}

type BookingServiceOption func(*BookingService)

func WithInFlightLock(lock InFlightLock, ttl time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.lock = lock
		s.lockTTL = ttl
	}
}

func WithNotifier(n Notifier) BookingServiceOption {
	return func(s *BookingService) {
		s.notifier = n
	}
}

func WithLogger(logger *zap.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.logger = logger
	}
}

func WithServiceClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	inv Inventory,
	policy *CancellationPolicy,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:  bookings,
		inventory: inv,
		policy:    policy,
		lockTTL:   30 * time.Second,
		validate:  validator.New(),
		tracer:    otel.Tracer(tracerName),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	if service.policy == nil {
		service.policy = NewCancellationPolicy(inv)
	}
	return service
}

func (s *BookingService) InventoryOpen() bool {
	return s.inventory.IsOpen()
}

// Reserve runs the booking saga: lock seats, decrement the counter, persist.
// A failed step compensates the completed ones. When the inventory cannot be
// reached the result is a persisted FAILED booking and a nil error.
func (s *BookingService) Reserve(ctx context.Context, input ReserveInput) (*domain.Booking, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := s.checkShape(input); err != nil {
		return nil, err
	}

	active, err := s.bookings.FindActive(ctx, input.FlightID, input.Email)
	if err != nil {
		return nil, fmt.Errorf("find active booking: %w", err)
	}
	if active != nil {
		return nil, domain.Reject(domain.ErrDuplicateBooking, "booking %s is already confirmed", active.PNR)
	}

	if s.lock != nil {
		token, acquired, err := s.lock.AcquireInFlightLock(ctx, input.FlightID, input.Email, s.lockTTL)
		switch {
		case err != nil:
			s.logger.Warn("in-flight lock unavailable, relying on storage constraint", zap.Error(err))
		case !acquired:
			return nil, domain.Reject(domain.ErrDuplicateBooking, "a booking for flight %s is already in progress", input.FlightID)
		default:
			defer func() {
				if err := s.lock.ReleaseInFlightLock(context.WithoutCancel(ctx), input.FlightID, input.Email, token); err != nil {
					s.logger.Warn("failed to release in-flight lock", zap.Error(err))
				}
			}()
		}
	}

	ctx, span := s.tracer.Start(ctx, "booking.reserve", trace.WithAttributes(
		attribute.String("flight.id", input.FlightID),
		attribute.Int("passenger.count", input.PassengerCount),
		attribute.StringSlice("seat.numbers", input.SeatNumbers),
	))
	defer span.End()

	booking, err := s.runSaga(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("booking.status", string(booking.Status)), attribute.String("booking.pnr", booking.PNR))
	if booking.Status == domain.BookingStatusFailed {
		span.SetStatus(codes.Error, booking.FailureReason)
	}
	return booking, nil
}

func (s *BookingService) checkShape(input ReserveInput) error {
	if err := s.validate.Struct(input); err != nil {
		return domain.RejectWrap(domain.ErrMalformedRequest, err, "invalid reservation")
	}
	if len(input.SeatNumbers) != input.PassengerCount {
		return domain.Reject(domain.ErrMalformedRequest,
			"%d seats requested for %d passengers", len(input.SeatNumbers), input.PassengerCount)
	}
	seen := make(map[string]struct{}, len(input.SeatNumbers))
	for _, seat := range input.SeatNumbers {
		if _, dup := seen[seat]; dup {
			return domain.Reject(domain.ErrMalformedRequest, "seat %s requested twice", seat)
		}
		seen[seat] = struct{}{}
	}
	return nil
}

func (s *BookingService) runSaga(ctx context.Context, input ReserveInput) (*domain.Booking, error) {
	logger := s.logger.With(zap.String("flight_id", input.FlightID), zap.Strings("seats", input.SeatNumbers))

	if s.inventory.IsOpen() {
		return s.degraded(ctx, input, "inventory circuit open"), nil
	}

	avail, ok := s.inventory.CheckFlight(ctx, input.FlightID)
	if !ok {
		return s.degraded(ctx, input, "flight existence unknown"), nil
	}
	if !avail.Exists {
		return nil, domain.Reject(domain.ErrFlightNotFound, "flight %s", input.FlightID)
	}

	// From the first remote effect on, the saga finishes even if the caller leaves.
	ctx = context.WithoutCancel(ctx)

	// The PNR owns the seat hold and the counter change, so a late or replayed
	// compensation can only undo this booking's effects.
	pnr := NewPNR()
	logger = logger.With(zap.String("pnr", pnr))

	if err := s.inventory.LockSeats(ctx, input.FlightID, input.SeatNumbers, pnr); err != nil {
		if errors.Is(err, domain.ErrSeatConflict) {
			return nil, err
		}
		// The lock may have been applied before the reply was lost.
		logger.Warn("seat lock failed, releasing any hold", zap.Error(err))
		s.compensate(ctx, input.FlightID, input.SeatNumbers, 0, pnr)
		return s.degradedWithPNR(ctx, input, pnr, "seat lock failed: "+err.Error()), nil
	}

	if err := s.inventory.ReduceAvailable(ctx, input.FlightID, input.PassengerCount, pnr); err != nil {
		logger.Warn("decrement failed, releasing seats", zap.Error(err))
		restore := input.PassengerCount
		if domain.IsBusinessOutcome(err) {
			restore = 0
		}
		s.compensate(ctx, input.FlightID, input.SeatNumbers, restore, pnr)
		return s.degradedWithPNR(ctx, input, pnr, "decrement failed: "+err.Error()), nil
	}

	now := s.now().UTC()
	booking := &domain.Booking{
		ID:             uuid.NewString(),
		PNR:            pnr,
		FlightID:       input.FlightID,
		Email:          input.Email,
		PassengerName:  input.PassengerName,
		PassengerCount: input.PassengerCount,
		SeatNumbers:    append([]string(nil), input.SeatNumbers...),
		Status:         domain.BookingStatusConfirmed,
		BookingDate:    now,
		UpdatedAt:      now,
	}
	if err := s.bookings.Save(ctx, booking); err != nil {
		logger.Error("failed to persist booking, compensating", zap.Error(err))
		s.compensate(ctx, input.FlightID, input.SeatNumbers, input.PassengerCount, pnr)
		if errors.Is(err, domain.ErrDuplicateBooking) {
			return nil, domain.RejectWrap(domain.ErrDuplicateBooking, err, "flight %s", input.FlightID)
		}
		return nil, fmt.Errorf("save booking: %w", err)
	}

	logger.Info("booking confirmed", zap.String("booking_id", booking.ID))
	s.notify(ctx, booking.Email, "Booking Confirmed",
		fmt.Sprintf("Your booking %s on flight %s is confirmed. Seats: %s.", pnr, booking.FlightID, strings.Join(booking.SeatNumbers, ", ")))
	return booking, nil
}

// compensate releases the seats ref holds and, when count > 0, restores what
// ref took from the counter. The authority ignores both for anything ref does
// not own, so a compensation for a step that never applied is harmless.
// Each call goes through the gate once; a failure is left to reconciliation.
func (s *BookingService) compensate(ctx context.Context, flightID string, seats []string, count int, ref string) {
	ctx, span := s.tracer.Start(ctx, "booking.compensate", trace.WithAttributes(
		attribute.String("flight.id", flightID),
		attribute.String("booking.pnr", ref),
	))
	defer span.End()

	if err := s.inventory.ReleaseSeats(ctx, flightID, seats, ref); err != nil {
		s.compensationFailed(span, "release_seats", flightID, ref, err)
	}
	if count > 0 {
		if err := s.inventory.IncreaseAvailable(ctx, flightID, count, ref); err != nil {
			s.compensationFailed(span, "increase_available", flightID, ref, err)
		}
	}
}

func (s *BookingService) compensationFailed(span trace.Span, step, flightID, ref string, err error) {
	failure := fmt.Errorf("%w: %s: %w", domain.ErrCompensationFailure, step, err)
	span.RecordError(failure)
	span.SetStatus(codes.Error, failure.Error())
	s.logger.Error("compensation failed",
		zap.String("step", step),
		zap.String("flight_id", flightID),
		zap.String("booking_ref", ref),
		zap.Bool("reconciliation_queued", errors.Is(err, inventory.ErrDeferred)),
		zap.Error(failure),
	)
}

func (s *BookingService) degraded(ctx context.Context, input ReserveInput, reason string) *domain.Booking {
	return s.degradedWithPNR(ctx, input, NewPNR(), reason)
}

// degradedWithPNR records a FAILED booking for audit. A persistence failure is
// logged and the record is returned anyway.
func (s *BookingService) degradedWithPNR(ctx context.Context, input ReserveInput, pnr, reason string) *domain.Booking {
	now := s.now().UTC()
	booking := &domain.Booking{
		ID:             uuid.NewString(),
		PNR:            pnr,
		FlightID:       input.FlightID,
		Email:          input.Email,
		PassengerName:  input.PassengerName,
		PassengerCount: input.PassengerCount,
		SeatNumbers:    append([]string(nil), input.SeatNumbers...),
		Status:         domain.BookingStatusFailed,
		FailureReason:  reason,
		BookingDate:    now,
		UpdatedAt:      now,
	}
	if err := s.bookings.Save(context.WithoutCancel(ctx), booking); err != nil {
		s.logger.Error("failed to persist degraded booking", zap.String("pnr", pnr), zap.Error(err))
	}
	s.logger.Warn("degraded booking", zap.String("pnr", pnr), zap.String("flight_id", input.FlightID), zap.String("reason", reason))
	return booking
}

// CancelByID cancels without the departure cutoff. It is meant for administrators.
func (s *BookingService) CancelByID(ctx context.Context, id string) (*domain.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, booking, false)
}

// CancelByPNR cancels on behalf of the passenger and enforces the cutoff.
func (s *BookingService) CancelByPNR(ctx context.Context, pnr string) (*domain.Booking, error) {
	booking, err := s.bookings.FindByPNR(ctx, pnr)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, booking, true)
}

func (s *BookingService) cancel(ctx context.Context, booking *domain.Booking, enforceCutoff bool) (*domain.Booking, error) {
	switch booking.Status {
	case domain.BookingStatusCancelled:
		return booking, nil
	case domain.BookingStatusFailed:
		return nil, domain.Reject(domain.ErrNotCancellable, "booking %s failed and holds no seats", booking.PNR)
	}

	ctx, span := s.tracer.Start(ctx, "booking.cancel", trace.WithAttributes(
		attribute.String("booking.pnr", booking.PNR),
		attribute.String("flight.id", booking.FlightID),
		attribute.Bool("cutoff.enforced", enforceCutoff),
	))
	defer span.End()

	if enforceCutoff {
		if err := s.policy.Check(ctx, booking.FlightID); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	ctx = context.WithoutCancel(ctx)
	logger := s.logger.With(zap.String("pnr", booking.PNR), zap.String("flight_id", booking.FlightID))

	if err := s.inventory.ReleaseSeats(ctx, booking.FlightID, booking.SeatNumbers, booking.PNR); err != nil {
		logger.Warn("seat release deferred", zap.Error(err))
	}
	if err := s.inventory.IncreaseAvailable(ctx, booking.FlightID, booking.PassengerCount, booking.PNR); err != nil {
		logger.Warn("counter restore deferred", zap.Error(err))
	}

	booking.Status = domain.BookingStatusCancelled
	booking.UpdatedAt = s.now().UTC()
	if err := s.bookings.Save(ctx, booking); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("save cancelled booking: %w", err)
	}

	logger.Info("booking cancelled")
	s.notify(ctx, booking.Email, "Booking Cancelled",
		fmt.Sprintf("Your booking %s on flight %s has been cancelled.", booking.PNR, booking.FlightID))
	return booking, nil
}

func (s *BookingService) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	return s.bookings.FindByID(ctx, id)
}

func (s *BookingService) GetByPNR(ctx context.Context, pnr string) (*domain.Booking, error) {
	return s.bookings.FindByPNR(ctx, pnr)
}

func (s *BookingService) ListByEmail(ctx context.Context, email string) ([]domain.Booking, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, domain.Reject(domain.ErrMalformedRequest, "email is required")
	}
	return s.bookings.ListByEmail(ctx, email)
}

func (s *BookingService) ListAll(ctx context.Context) ([]domain.Booking, error) {
	return s.bookings.List(ctx)
}

func (s *BookingService) notify(ctx context.Context, recipient, subject, body string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, recipient, subject, body)
}

var _ BookingUseCase = (*BookingService)(nil)
