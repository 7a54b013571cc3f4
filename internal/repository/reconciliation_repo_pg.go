package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/flightsaga/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGReconciliationRepository struct {
	db *pgxpool.Pool
}

func NewReconciliationRepository(db *pgxpool.Pool) ReconciliationRepository {
	return &PGReconciliationRepository{db: db}
}

func (r *PGReconciliationRepository) Create(ctx context.Context, item *domain.ReconciliationItem) error {
	seats := item.SeatNumbers
	if seats == nil {
		seats = []string{}
	}
	_, err := r.db.Exec(ctx, `INSERT INTO reconciliation_items (id, kind, flight_id, seat_numbers, count, booking_ref, reason, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.Kind, item.FlightID, seats, item.Count, item.BookingRef, item.Reason, item.Attempts, item.CreatedAt)
	return err
}

func (r *PGReconciliationRepository) ListPending(ctx context.Context, limit int) ([]domain.ReconciliationItem, error) {
	rows, err := r.db.Query(ctx, `SELECT id, kind, flight_id, seat_numbers, count, booking_ref, reason, attempts, created_at, resolved_at
		FROM reconciliation_items WHERE resolved_at IS NULL ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.ReconciliationItem
	for rows.Next() {
		var it domain.ReconciliationItem
		if err := rows.Scan(&it.ID, &it.Kind, &it.FlightID, &it.SeatNumbers, &it.Count, &it.BookingRef, &it.Reason, &it.Attempts, &it.CreatedAt, &it.ResolvedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PGReconciliationRepository) MarkResolved(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE reconciliation_items SET resolved_at=$2, attempts = attempts + 1 WHERE id=$1`, id, at)
	return err
}

func (r *PGReconciliationRepository) RecordAttempt(ctx context.Context, id string, reason string) error {
	_, err := r.db.Exec(ctx, `UPDATE reconciliation_items SET attempts = attempts + 1, reason=$2 WHERE id=$1`, id, reason)
	return err
}

var _ ReconciliationRepository = (*PGReconciliationRepository)(nil)
