package domain

import "time"

type ReconciliationKind string

const (
	ReconcileReleaseSeats      ReconciliationKind = "RELEASE_SEATS"
	ReconcileIncreaseAvailable ReconciliationKind = "INCREASE_AVAILABLE"
)

// ReconciliationItem is an inventory restoration that a fallback absorbed and
// that still has to be applied to the authority.
type ReconciliationItem struct {
	ID          string             `json:"id"`
	Kind        ReconciliationKind `json:"kind"`
	FlightID    string             `json:"flight_id"`
	SeatNumbers []string           `json:"seat_numbers,omitempty"`
	Count       int                `json:"count,omitempty"`
	BookingRef  string             `json:"booking_ref,omitempty"`
	Reason      string             `json:"reason"`
	Attempts    int                `json:"attempts"`
	CreatedAt   time.Time          `json:"created_at"`
	ResolvedAt  *time.Time         `json:"resolved_at,omitempty"`
}
