package inventory

import (
	"context"
	"time"

	"github.com/Domenick1991/flightsaga/internal/domain"
	"github.com/Domenick1991/flightsaga/internal/resilience"
	"go.uber.org/zap"
)

type ReconciliationStore interface {
	ListPending(ctx context.Context, limit int) ([]domain.ReconciliationItem, error)
	MarkResolved(ctx context.Context, id string, at time.Time) error
	RecordAttempt(ctx context.Context, id string, reason string) error
}

// Reconciler replays restorations that a fallback absorbed.
type Reconciler struct {
	remote Authority
	gate   *resilience.Gate
	store  ReconciliationStore
	logger *zap.Logger
	batch  int
}

func NewReconciler(remote Authority, gate *resilience.Gate, store ReconciliationStore, batch int, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batch <= 0 {
		batch = 50
	}
	return &Reconciler{remote: remote, gate: gate, store: store, batch: batch, logger: logger}
}

// Sweep applies pending items and returns how many were resolved. It stops
// early when the circuit is open.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	items, err := r.store.ListPending(ctx, r.batch)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, item := range items {
		if r.gate.IsOpen() {
			r.logger.Info("circuit open, postponing reconciliation", zap.Int("pending", len(items)-resolved))
			break
		}
		if err := r.apply(ctx, item); err != nil {
			r.logger.Warn("reconciliation attempt failed",
				zap.String("item_id", item.ID),
				zap.String("kind", string(item.Kind)),
				zap.Error(err),
			)
			if err := r.store.RecordAttempt(ctx, item.ID, err.Error()); err != nil {
				return resolved, err
			}
			continue
		}
		if err := r.store.MarkResolved(ctx, item.ID, time.Now()); err != nil {
			return resolved, err
		}
		resolved++
	}
	return resolved, nil
}

func (r *Reconciler) apply(ctx context.Context, item domain.ReconciliationItem) error {
	switch item.Kind {
	case domain.ReconcileReleaseSeats:
		return r.gate.DoIdempotent(ctx, OpReleaseSeats, func(ctx context.Context) error {
			return r.remote.ReleaseSeats(ctx, item.FlightID, item.SeatNumbers, item.BookingRef)
		})
	case domain.ReconcileIncreaseAvailable:
		return r.gate.Do(ctx, OpIncreaseAvailable, func(ctx context.Context) error {
			return r.remote.IncreaseAvailable(ctx, item.FlightID, item.Count, item.BookingRef)
		})
	default:
		return domain.Reject(domain.ErrMalformedRequest, "unknown reconciliation kind %q", item.Kind)
	}
}
