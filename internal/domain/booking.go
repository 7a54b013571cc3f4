package domain

import "time"

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusFailed    BookingStatus = "FAILED"
)

type Booking struct {
	ID             string        `json:"id" bson:"_id"`
	PNR            string        `json:"pnr" bson:"pnr"`
	FlightID       string        `json:"flight_id" bson:"flight_id"`
	Email          string        `json:"email" bson:"email"`
	PassengerName  string        `json:"passenger_name,omitempty" bson:"passenger_name,omitempty"`
	PassengerCount int           `json:"passenger_count" bson:"passenger_count"`
	SeatNumbers    []string      `json:"seat_numbers" bson:"seat_numbers"`
	Status         BookingStatus `json:"status" bson:"status"`
	FailureReason  string        `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	BookingDate    time.Time     `json:"booking_date" bson:"booking_date"`
	UpdatedAt      time.Time     `json:"updated_at" bson:"updated_at"`
}

// Clone returns a deep copy so callers can mutate status without touching a shared record.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	c.SeatNumbers = append([]string(nil), b.SeatNumbers...)
	return &c
}
