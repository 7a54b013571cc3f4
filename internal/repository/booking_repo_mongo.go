package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/flightsaga/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	BookingsCollection = "bookings"

	mongoTimeout = 5 * time.Second
)

type MongoBookingRepository struct {
	collection *mongo.Collection
}

func NewMongoBookingRepository(db *mongo.Database) *MongoBookingRepository {
	return &MongoBookingRepository{collection: db.Collection(BookingsCollection)}
}

// EnsureIndexes creates the PNR index and the partial index that allows one
// CONFIRMED booking per flight and email.
func (r *MongoBookingRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pnr", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("bookings_pnr_idx"),
		},
		{
			Keys: bson.D{{Key: "flight_id", Value: 1}, {Key: "email", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("bookings_active_identity_idx").
				SetPartialFilterExpression(bson.M{"status": string(domain.BookingStatusConfirmed)}),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "booking_date", Value: -1}},
			Options: options.Index().SetName("bookings_email_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create booking indexes: %w", err)
	}
	return nil
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < mongoTimeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, mongoTimeout)
}

func (r *MongoBookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if booking.BookingDate.IsZero() {
		booking.BookingDate = time.Now().UTC().Truncate(time.Millisecond)
	}
	booking.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": booking.ID}, booking, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: flight %s", domain.ErrDuplicateBooking, booking.FlightID)
		}
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

func (r *MongoBookingRepository) FindByID(ctx context.Context, id string) (*domain.Booking, error) {
	return r.findOne(ctx, bson.M{"_id": id}, domain.ErrBookingNotFound)
}

func (r *MongoBookingRepository) FindByPNR(ctx context.Context, pnr string) (*domain.Booking, error) {
	return r.findOne(ctx, bson.M{"pnr": pnr}, domain.ErrBookingNotFound)
}

func (r *MongoBookingRepository) FindActive(ctx context.Context, flightID, email string) (*domain.Booking, error) {
	return r.findOne(ctx, bson.M{
		"flight_id": flightID,
		"email":     email,
		"status":    string(domain.BookingStatusConfirmed),
	}, nil)
}

func (r *MongoBookingRepository) findOne(ctx context.Context, filter bson.M, notFound error) (*domain.Booking, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var b domain.Booking
	if err := r.collection.FindOne(ctx, filter).Decode(&b); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &b, nil
}

func (r *MongoBookingRepository) ListByEmail(ctx context.Context, email string) ([]domain.Booking, error) {
	return r.find(ctx, bson.M{"email": email})
}

func (r *MongoBookingRepository) List(ctx context.Context) ([]domain.Booking, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoBookingRepository) find(ctx context.Context, filter bson.M) ([]domain.Booking, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "booking_date", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer cursor.Close(ctx)

	bookings := make([]domain.Booking, 0)
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

var _ BookingRepository = (*MongoBookingRepository)(nil)
