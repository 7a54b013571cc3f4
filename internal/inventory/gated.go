package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/flightsaga/internal/domain"
	"github.com/Domenick1991/flightsaga/internal/resilience"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	OpLockSeats         = "lock_seats"
	OpReleaseSeats      = "release_seats"
	OpReduceAvailable   = "reduce_available"
	OpIncreaseAvailable = "increase_available"
	OpFlightMetadata    = "flight_metadata"
	OpCheckFlight       = "check_flight"
)

// ErrDeferred reports that a restoring call did not reach the authority and
// was queued for reconciliation instead.
var ErrDeferred = errors.New("deferred to reconciliation")

type Recorder interface {
	Create(ctx context.Context, item *domain.ReconciliationItem) error
}

// Gated routes every call through the resilience gate and replaces transport
// failures with the named fallback of each operation.
type Gated struct {
	remote   Authority
	gate     *resilience.Gate
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewGated(remote Authority, gate *resilience.Gate, recorder Recorder, logger *zap.Logger) *Gated {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gated{
		remote:   remote,
		gate:     gate,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

func (g *Gated) IsOpen() bool {
	return g.gate.IsOpen()
}

func (g *Gated) Gate() *resilience.Gate {
	return g.gate
}

// LockSeats returns nil, ErrSeatConflict, or the lock fallback
// (ErrInventoryUnavailable).
func (g *Gated) LockSeats(ctx context.Context, flightID string, seatNumbers []string, bookingRef string) error {
	err := g.gate.Do(ctx, OpLockSeats, func(ctx context.Context) error {
		return g.remote.LockSeats(ctx, flightID, seatNumbers, bookingRef)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrSeatConflict) || errors.Is(err, domain.ErrFlightNotFound) {
		return domain.RejectWrap(domain.ErrSeatConflict, err, "flight %s", flightID)
	}
	return g.failed(OpLockSeats, flightID, err)
}

// ReduceAvailable returns nil, ErrInsufficientSeats, ErrFlightNotFound, or the
// decrement fallback (ErrInventoryUnavailable).
func (g *Gated) ReduceAvailable(ctx context.Context, flightID string, count int, bookingRef string) error {
	err := g.gate.Do(ctx, OpReduceAvailable, func(ctx context.Context) error {
		return g.remote.ReduceAvailable(ctx, flightID, count, bookingRef)
	})
	if err == nil || domain.IsBusinessOutcome(err) {
		return err
	}
	return g.failed(OpReduceAvailable, flightID, err)
}

// ReleaseSeats is safe to repeat and is retried by the gate. When it still
// fails the release is recorded for reconciliation and ErrDeferred is returned.
func (g *Gated) ReleaseSeats(ctx context.Context, flightID string, seatNumbers []string, bookingRef string) error {
	err := g.gate.DoIdempotent(ctx, OpReleaseSeats, func(ctx context.Context) error {
		return g.remote.ReleaseSeats(ctx, flightID, seatNumbers, bookingRef)
	})
	if err == nil {
		return nil
	}
	return g.deferToReconciliation(ctx, &domain.ReconciliationItem{
		Kind:        domain.ReconcileReleaseSeats,
		FlightID:    flightID,
		SeatNumbers: append([]string(nil), seatNumbers...),
		BookingRef:  bookingRef,
		Reason:      err.Error(),
	}, err)
}

// IncreaseAvailable is never retried inline; a failure is recorded for
// reconciliation and ErrDeferred is returned.
func (g *Gated) IncreaseAvailable(ctx context.Context, flightID string, count int, bookingRef string) error {
	err := g.gate.Do(ctx, OpIncreaseAvailable, func(ctx context.Context) error {
		return g.remote.IncreaseAvailable(ctx, flightID, count, bookingRef)
	})
	if err == nil {
		return nil
	}
	return g.deferToReconciliation(ctx, &domain.ReconciliationItem{
		Kind:       domain.ReconcileIncreaseAvailable,
		FlightID:   flightID,
		Count:      count,
		BookingRef: bookingRef,
		Reason:     err.Error(),
	}, err)
}

// FlightMetadata reports ok=false when the schedule is unknown, which covers
// an open circuit, a transport failure and an unknown flight.
func (g *Gated) FlightMetadata(ctx context.Context, flightID string) (*domain.FlightMetadata, bool) {
	var meta *domain.FlightMetadata
	err := g.gate.DoIdempotent(ctx, OpFlightMetadata, func(ctx context.Context) error {
		m, err := g.remote.GetFlightMetadata(ctx, flightID)
		if err != nil {
			return err
		}
		meta = m
		return nil
	})
	if err != nil || meta == nil {
		g.logger.Warn("flight metadata unknown",
			zap.String("flight_id", flightID),
			zap.Error(err),
		)
		return nil, false
	}
	return meta, true
}

// CheckFlight reports ok=false when the authority could not answer.
func (g *Gated) CheckFlight(ctx context.Context, flightID string) (*domain.Availability, bool) {
	var avail *domain.Availability
	err := g.gate.DoIdempotent(ctx, OpCheckFlight, func(ctx context.Context) error {
		a, err := g.remote.CheckFlight(ctx, flightID)
		if err != nil {
			return err
		}
		avail = a
		return nil
	})
	if errors.Is(err, domain.ErrFlightNotFound) {
		return &domain.Availability{Exists: false}, true
	}
	if err != nil || avail == nil {
		g.logger.Warn("flight existence unknown",
			zap.String("flight_id", flightID),
			zap.Error(err),
		)
		return nil, false
	}
	return avail, true
}

func (g *Gated) failed(op, flightID string, err error) error {
	g.logger.Warn("inventory call failed, using fallback",
		zap.String("op", op),
		zap.String("flight_id", flightID),
		zap.Error(err),
	)
	return domain.RejectWrap(domain.ErrInventoryUnavailable, err, "%s", op)
}

func (g *Gated) deferToReconciliation(ctx context.Context, item *domain.ReconciliationItem, cause error) error {
	item.ID = uuid.NewString()
	item.CreatedAt = g.now()

	logger := g.logger.With(
		zap.String("kind", string(item.Kind)),
		zap.String("flight_id", item.FlightID),
		zap.String("booking_ref", item.BookingRef),
		zap.Error(cause),
	)
	if g.recorder == nil {
		logger.Error("reconciliation gap: no recorder configured")
		return ErrDeferred
	}
	// The caller may already be cancelled; the gap must still be recorded.
	if err := g.recorder.Create(context.WithoutCancel(ctx), item); err != nil {
		logger.Error("reconciliation gap: failed to record item", zap.NamedError("record_error", err))
		return ErrDeferred
	}
	logger.Warn("reconciliation item recorded", zap.String("item_id", item.ID))
	return ErrDeferred
}
