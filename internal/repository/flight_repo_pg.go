package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/flightsaga/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{db: db}
}

const flightColumns = `id, flight_number, airline, source, destination, date, total_seats, available_seats, created_at, updated_at`

func scanFlight(row pgx.Row) (*domain.Flight, error) {
	var f domain.Flight
	if err := row.Scan(&f.ID, &f.FlightNumber, &f.Airline, &f.Source, &f.Destination, &f.Date, &f.TotalSeats, &f.AvailableSeats, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	return r.query(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY date, id`)
}

func (r *PGFlightRepository) Search(ctx context.Context, source, destination, date string) ([]domain.Flight, error) {
	return r.query(ctx, `SELECT `+flightColumns+` FROM flights
		WHERE upper(source) = upper($1) AND upper(destination) = upper($2) AND date = $3
		ORDER BY id`, source, destination, date)
}

func (r *PGFlightRepository) query(ctx context.Context, sql string, args ...any) ([]domain.Flight, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id string) (*domain.Flight, error) {
	f, err := scanFlight(r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrFlightNotFound
	}
	return f, err
}

func (r *PGFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	return r.db.QueryRow(ctx, `INSERT INTO flights (id, flight_number, airline, source, destination, date, total_seats, available_seats)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		flight.ID, flight.FlightNumber, flight.Airline, flight.Source, flight.Destination, flight.Date, flight.TotalSeats, flight.AvailableSeats).
		Scan(&flight.CreatedAt, &flight.UpdatedAt)
}

func (r *PGFlightRepository) Seats(ctx context.Context, flightID string) ([]domain.Seat, error) {
	rows, err := r.db.Query(ctx, `SELECT flight_id, seat_number, booked FROM seats WHERE flight_id=$1 ORDER BY seat_number`, flightID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make([]domain.Seat, 0)
	for rows.Next() {
		var s domain.Seat
		if err := rows.Scan(&s.FlightID, &s.SeatNumber, &s.Booked); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

func (r *PGFlightRepository) SeedSeats(ctx context.Context, flightID string, seatNumbers []string) error {
	_, err := r.db.Exec(ctx, `INSERT INTO seats (flight_id, seat_number, booked)
		SELECT $1, unnest($2::text[]), false
		ON CONFLICT (flight_id, seat_number) DO NOTHING`, flightID, seatNumbers)
	return err
}

func (r *PGFlightRepository) LockSeats(ctx context.Context, flightID string, seatNumbers []string, holder string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Row locks are taken in seat order so that overlapping batches cannot deadlock.
	if _, err := tx.Exec(ctx, `SELECT 1 FROM seats
		WHERE flight_id=$1 AND seat_number = ANY($2)
		ORDER BY seat_number FOR UPDATE`, flightID, seatNumbers); err != nil {
		return err
	}

	res, err := tx.Exec(ctx, `UPDATE seats SET booked = true, held_by = $3, updated_at = now()
		WHERE flight_id=$1 AND seat_number = ANY($2) AND (NOT booked OR held_by = $3)`, flightID, seatNumbers, holder)
	if err != nil {
		return err
	}
	if res.RowsAffected() != int64(len(seatNumbers)) {
		return fmt.Errorf("lock %d of %d seats: %w", res.RowsAffected(), len(seatNumbers), domain.ErrSeatConflict)
	}

	return tx.Commit(ctx)
}

func (r *PGFlightRepository) ReleaseSeats(ctx context.Context, flightID string, seatNumbers []string, holder string) error {
	_, err := r.db.Exec(ctx, `UPDATE seats SET booked = false, held_by = NULL, updated_at = now()
		WHERE flight_id=$1 AND seat_number = ANY($2) AND held_by = $3`, flightID, seatNumbers, holder)
	return err
}

func (r *PGFlightRepository) ReduceAvailable(ctx context.Context, flightID string, count int, ref string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockFlight(ctx, tx, flightID); err != nil {
		return err
	}

	res, err := tx.Exec(ctx, `INSERT INTO inventory_adjustments (flight_id, ref, count)
		VALUES ($1, $2, $3)
		ON CONFLICT (flight_id, ref) DO NOTHING`, flightID, ref, count)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return tx.Commit(ctx)
	}

	res, err = tx.Exec(ctx, `UPDATE flights SET available_seats = available_seats - $2, updated_at = now()
		WHERE id=$1 AND available_seats >= $2`, flightID, count)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return domain.ErrInsufficientSeats
	}
	return tx.Commit(ctx)
}

// IncreaseAvailable ignores count and restores what ref actually reduced.
func (r *PGFlightRepository) IncreaseAvailable(ctx context.Context, flightID string, count int, ref string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockFlight(ctx, tx, flightID); err != nil {
		return err
	}

	var reduced int
	err = tx.QueryRow(ctx, `UPDATE inventory_adjustments SET restored_at = now()
		WHERE flight_id=$1 AND ref=$2 AND restored_at IS NULL
		RETURNING count`, flightID, ref).Scan(&reduced)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `UPDATE flights SET available_seats = LEAST(total_seats, available_seats + $2), updated_at = now()
		WHERE id=$1`, flightID, reduced); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// lockFlight row-locks the flight so adjustments for it serialize.
func lockFlight(ctx context.Context, tx pgx.Tx, flightID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM flights WHERE id=$1 FOR UPDATE`, flightID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrFlightNotFound
	}
	return err
}

var _ FlightRepository = (*PGFlightRepository)(nil)
