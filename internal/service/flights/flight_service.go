package flights

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
	"go.uber.org/zap"
)

const seatsPerRow = 6

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.Flight, error)
	Search(ctx context.Context, source, destination, date string) ([]domain.Flight, error)
	GetByID(ctx context.Context, id string) (*domain.Flight, error)
	AddFlight(ctx context.Context, input AddFlightInput) (*domain.Flight, error)
	SeatMap(ctx context.Context, flightID string) ([]domain.Seat, error)
}

type FlightCache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
	InvalidateFlights(ctx context.Context) error
	GetMetadata(ctx context.Context, flightID string) (*domain.FlightMetadata, error)
	SetMetadata(ctx context.Context, meta *domain.FlightMetadata) error
}

type AddFlightInput struct {
	ID           string `json:"id" validate:"omitempty,max=64"`
	FlightNumber string `json:"flight_number" validate:"required"`
	Airline      string `json:"airline"`
	Source       string `json:"source" validate:"required"`
	Destination  string `json:"destination" validate:"required"`
	Date         string `json:"date" validate:"required"`
	TotalSeats   int    `json:"total_seats" validate:"gte=1,lte=600"`
}

// FlightService is the inventory authority: it owns the flight catalogue,
// the seat ledger and the available-seat counter.
type FlightService struct {
	repo     repository.FlightRepository
	cache    FlightCache
	validate *validator.Validate
	logger   *zap.Logger
}

func NewFlightService(repo repository.FlightRepository, cache FlightCache, logger *zap.Logger) *FlightService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlightService{repo: repo, cache: cache, validate: validator.New(), logger: logger}
}

func (s *FlightService) List(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	flights, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetFlights(ctx, flights); err != nil {
			s.logger.Warn("failed to cache flights", zap.Error(err))
		}
	}
	return flights, nil
}

func (s *FlightService) Search(ctx context.Context, source, destination, date string) ([]domain.Flight, error) {
	if source == "" || destination == "" || date == "" {
		return nil, domain.Reject(domain.ErrMalformedRequest, "source, destination and date are required")
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return nil, domain.RejectWrap(domain.ErrMalformedRequest, err, "date must be %s", domain.DateLayout)
	}
	return s.repo.Search(ctx, strings.ToUpper(source), strings.ToUpper(destination), date)
}

func (s *FlightService) GetByID(ctx context.Context, id string) (*domain.Flight, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *FlightService) AddFlight(ctx context.Context, input AddFlightInput) (*domain.Flight, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, domain.RejectWrap(domain.ErrMalformedRequest, err, "invalid flight")
	}
	source, destination := strings.ToUpper(input.Source), strings.ToUpper(input.Destination)
	if source == destination {
		return nil, domain.Reject(domain.ErrMalformedRequest, "source and destination must differ")
	}
	if _, err := time.Parse(domain.DateLayout, input.Date); err != nil {
		return nil, domain.RejectWrap(domain.ErrMalformedRequest, err, "date must be %s", domain.DateLayout)
	}

	flight := &domain.Flight{
		ID:             input.ID,
		FlightNumber:   input.FlightNumber,
		Airline:        input.Airline,
		Source:         source,
		Destination:    destination,
		Date:           input.Date,
		TotalSeats:     input.TotalSeats,
		AvailableSeats: input.TotalSeats,
	}
	if flight.ID == "" {
		flight.ID = uuid.NewString()
	}

	if err := s.repo.Create(ctx, flight); err != nil {
		return nil, fmt.Errorf("create flight: %w", err)
	}
	if err := s.repo.SeedSeats(ctx, flight.ID, SeatNumbers(flight.TotalSeats)); err != nil {
		return nil, fmt.Errorf("seed seats: %w", err)
	}
	s.invalidate(ctx)

	s.logger.Info("flight added",
		zap.String("flight_id", flight.ID),
		zap.String("flight_number", flight.FlightNumber),
		zap.Int("seats", flight.TotalSeats),
	)
	return flight, nil
}

// SeatMap returns every seat of the flight, seeding the ledger first when the
// flight was created without one.
func (s *FlightService) SeatMap(ctx context.Context, flightID string) ([]domain.Seat, error) {
	flight, err := s.repo.GetByID(ctx, flightID)
	if err != nil {
		return nil, err
	}
	return s.ensureSeats(ctx, flight)
}

func (s *FlightService) ensureSeats(ctx context.Context, flight *domain.Flight) ([]domain.Seat, error) {
	seats, err := s.repo.Seats(ctx, flight.ID)
	if err != nil {
		return nil, err
	}
	if len(seats) > 0 {
		return seats, nil
	}
	if err := s.repo.SeedSeats(ctx, flight.ID, SeatNumbers(flight.TotalSeats)); err != nil {
		return nil, fmt.Errorf("seed seats: %w", err)
	}
	return s.repo.Seats(ctx, flight.ID)
}

func (s *FlightService) LockSeats(ctx context.Context, flightID string, seatNumbers []string, holder string) error {
	if err := checkSeatNumbers(seatNumbers); err != nil {
		return err
	}
	if err := checkRef(holder); err != nil {
		return err
	}
	flight, err := s.repo.GetByID(ctx, flightID)
	if err != nil {
		return err
	}
	if _, err := s.ensureSeats(ctx, flight); err != nil {
		return err
	}
	if err := s.repo.LockSeats(ctx, flightID, seatNumbers, holder); err != nil {
		return err
	}
	s.logger.Debug("seats locked", zap.String("flight_id", flightID), zap.Strings("seats", seatNumbers), zap.String("holder", holder))
	return nil
}

func (s *FlightService) ReleaseSeats(ctx context.Context, flightID string, seatNumbers []string, holder string) error {
	if err := checkSeatNumbers(seatNumbers); err != nil {
		return err
	}
	if err := checkRef(holder); err != nil {
		return err
	}
	return s.repo.ReleaseSeats(ctx, flightID, seatNumbers, holder)
}

func (s *FlightService) ReduceAvailable(ctx context.Context, flightID string, count int, ref string) error {
	if count <= 0 {
		return domain.Reject(domain.ErrMalformedRequest, "count must be positive")
	}
	if err := checkRef(ref); err != nil {
		return err
	}
	if err := s.repo.ReduceAvailable(ctx, flightID, count, ref); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *FlightService) IncreaseAvailable(ctx context.Context, flightID string, count int, ref string) error {
	if count <= 0 {
		return domain.Reject(domain.ErrMalformedRequest, "count must be positive")
	}
	if err := checkRef(ref); err != nil {
		return err
	}
	if err := s.repo.IncreaseAvailable(ctx, flightID, count, ref); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *FlightService) GetFlightMetadata(ctx context.Context, flightID string) (*domain.FlightMetadata, error) {
	if s.cache != nil {
		if meta, err := s.cache.GetMetadata(ctx, flightID); err == nil && meta != nil {
			return meta, nil
		}
	}

	flight, err := s.repo.GetByID(ctx, flightID)
	if err != nil {
		return nil, err
	}
	meta := &domain.FlightMetadata{
		FlightID:    flight.ID,
		Date:        flight.Date,
		Source:      flight.Source,
		Destination: flight.Destination,
	}
	if s.cache != nil {
		if err := s.cache.SetMetadata(ctx, meta); err != nil {
			s.logger.Warn("failed to cache flight metadata", zap.String("flight_id", flightID), zap.Error(err))
		}
	}
	return meta, nil
}

// CheckFlight answers Exists=false for an unknown flight instead of an error.
func (s *FlightService) CheckFlight(ctx context.Context, flightID string) (*domain.Availability, error) {
	flight, err := s.repo.GetByID(ctx, flightID)
	if err != nil {
		if errors.Is(err, domain.ErrFlightNotFound) {
			return &domain.Availability{Exists: false}, nil
		}
		return nil, err
	}
	return &domain.Availability{Exists: true, AvailableSeats: flight.AvailableSeats}, nil
}

func (s *FlightService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		s.logger.Warn("failed to invalidate flights cache", zap.Error(err))
	}
}

// SeatNumbers lays out total seats in rows of six lettered A, B, and so on:
// A1..A6, B1..B6. Rows past Z continue as AA, AB.
func SeatNumbers(total int) []string {
	seats := make([]string, 0, total)
	for i := 0; i < total; i++ {
		seats = append(seats, fmt.Sprintf("%s%d", rowLabel(i/seatsPerRow), i%seatsPerRow+1))
	}
	return seats
}

func rowLabel(row int) string {
	label := ""
	for row >= 0 {
		label = string(rune('A'+row%26)) + label
		row = row/26 - 1
	}
	return label
}

func checkSeatNumbers(seatNumbers []string) error {
	if len(seatNumbers) == 0 {
		return domain.Reject(domain.ErrMalformedRequest, "at least one seat is required")
	}
	seen := make(map[string]struct{}, len(seatNumbers))
	for _, n := range seatNumbers {
		if n == "" {
			return domain.Reject(domain.ErrMalformedRequest, "seat number must not be empty")
		}
		if _, dup := seen[n]; dup {
			return domain.Reject(domain.ErrMalformedRequest, "seat %s requested twice", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// checkRef requires the booking reference that owns a seat hold or a counter change.
func checkRef(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return domain.Reject(domain.ErrMalformedRequest, "booking reference is required")
	}
	return nil
}

var (
	_ FlightUseCase       = (*FlightService)(nil)
	_ inventory.Authority = (*FlightService)(nil)
)
