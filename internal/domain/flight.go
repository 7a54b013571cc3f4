package domain

import "time"

// DateLayout is the departure date format shared with the inventory authority.
const DateLayout = "2006-01-02"

type Flight struct {
	ID             string    `json:"id"`
	FlightNumber   string    `json:"flight_number"`
	Airline        string    `json:"airline"`
	Source         string    `json:"source"`
	Destination    string    `json:"destination"`
	Date           string    `json:"date"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Seat struct {
	FlightID   string `json:"flight_id"`
	SeatNumber string `json:"seat_number"`
	Booked     bool   `json:"booked"`
}

// FlightMetadata is the schedule data the cancellation cutoff depends on.
type FlightMetadata struct {
	FlightID    string `json:"flight_id"`
	Date        string `json:"date"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// Availability is the answer of the existence check.
type Availability struct {
	Exists         bool `json:"exists"`
	AvailableSeats int  `json:"available_seats"`
}
