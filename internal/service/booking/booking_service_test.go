package booking

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Domenick1991/flightsaga/internal/domain"
	"github.com/Domenick1991/flightsaga/internal/inventory"
	"github.com/Domenick1991/flightsaga/internal/repository"
	"github.com/Domenick1991/flightsaga/internal/resilience"
	"github.com/Domenick1991/flightsaga/internal/service/flights"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errTransport = errors.New("connection refused")

// countingAuthority counts every call that reaches the authority and can
// replace individual operations with a transport failure. The lostReply
// variants apply the call first and then fail, like a reply lost in transit.
type countingAuthority struct {
	inventory.Authority
	calls atomic.Int32

	failLock     error
	failReduce   error
	failRelease  error
	failIncrease error
	failMetadata error

	lostLockReply    error
	lostReleaseReply error
}

func (a *countingAuthority) LockSeats(ctx context.Context, flightID string, seats []string, holder string) error {
	a.calls.Add(1)
	if a.failLock != nil {
		return a.failLock
	}
	if err := a.Authority.LockSeats(ctx, flightID, seats, holder); err != nil {
		return err
	}
	return a.lostLockReply
}

func (a *countingAuthority) ReleaseSeats(ctx context.Context, flightID string, seats []string, holder string) error {
	a.calls.Add(1)
	if a.failRelease != nil {
		return a.failRelease
	}
	if err := a.Authority.ReleaseSeats(ctx, flightID, seats, holder); err != nil {
		return err
	}
	return a.lostReleaseReply
}

func (a *countingAuthority) ReduceAvailable(ctx context.Context, flightID string, count int, ref string) error {
	a.calls.Add(1)
	if a.failReduce != nil {
		return a.failReduce
	}
	return a.Authority.ReduceAvailable(ctx, flightID, count, ref)
}

func (a *countingAuthority) IncreaseAvailable(ctx context.Context, flightID string, count int, ref string) error {
	a.calls.Add(1)
	if a.failIncrease != nil {
		return a.failIncrease
	}
	return a.Authority.IncreaseAvailable(ctx, flightID, count, ref)
}

func (a *countingAuthority) GetFlightMetadata(ctx context.Context, flightID string) (*domain.FlightMetadata, error) {
	a.calls.Add(1)
	if a.failMetadata != nil {
		return nil, a.failMetadata
	}
	return a.Authority.GetFlightMetadata(ctx, flightID)
}

func (a *countingAuthority) CheckFlight(ctx context.Context, flightID string) (*domain.Availability, error) {
	a.calls.Add(1)
	return a.Authority.CheckFlight(ctx, flightID)
}

type recordingNotifier struct {
	mu       sync.Mutex
	subjects []string
}

func (n *recordingNotifier) Notify(ctx context.Context, recipient, subject, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subjects = append(n.subjects, recipient+": "+subject)
}

type harness struct {
	flights   *repository.MemoryFlightRepository
	authority *countingAuthority
	gate      *resilience.Gate
	recon     *repository.MemoryReconciliationRepository
	bookings  *repository.MemoryBookingRepository
	notifier  *recordingNotifier
	service   *BookingService
	now       time.Time
}

// departure of FL1 is 2030-01-10T00:00:00Z
func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	h := &harness{
		flights:  repository.NewMemoryFlightRepository(),
		recon:    repository.NewMemoryReconciliationRepository(),
		bookings: repository.NewMemoryBookingRepository(),
		notifier: &recordingNotifier{},
		now:      time.Date(2030, 1, 8, 0, 0, 0, 0, time.UTC),
	}
	authority := flights.NewFlightService(h.flights, nil, nil)
	_, err := authority.AddFlight(ctx, flights.AddFlightInput{
		ID: "FL1", FlightNumber: "AI101", Source: "DEL", Destination: "BOM", Date: "2030-01-10", TotalSeats: 6,
	})
	require.NoError(t, err)

	h.authority = &countingAuthority{Authority: authority}
	h.gate = resilience.NewGate(resilience.Settings{
		Name:                "inventory",
		CallTimeout:         time.Second,
		Interval:            time.Minute,
		Cooldown:            time.Minute,
		FailureRatio:        0.5,
		MinRequests:         100,
		HalfOpenMaxRequests: 1,
	}, zap.NewNop())
	gated := inventory.NewGated(h.authority, h.gate, h.recon, zap.NewNop())
	policy := NewCancellationPolicy(gated,
		WithClock(func() time.Time { return h.now }),
		WithLocation(time.UTC),
	)
	h.service = NewBookingService(h.bookings, gated, policy, WithNotifier(h.notifier))
	return h
}

func (h *harness) available(t *testing.T) int {
	t.Helper()
	f, err := h.flights.GetByID(context.Background(), "FL1")
	require.NoError(t, err)
	return f.AvailableSeats
}

func (h *harness) booked(t *testing.T) map[string]bool {
	t.Helper()
	seats, err := h.flights.Seats(context.Background(), "FL1")
	require.NoError(t, err)
	out := make(map[string]bool, len(seats))
	for _, s := range seats {
		out[s.SeatNumber] = s.Booked
	}
	return out
}

func reserveInput(email string, seats ...string) ReserveInput {
	return ReserveInput{FlightID: "FL1", Email: email, PassengerCount: len(seats), SeatNumbers: seats}
}

var pnrPattern = regexp.MustCompile(`^PNR-[0-9A-F]{8}$`)

func TestReserve_ConfirmsTwoSeats(t *testing.T) {
	h := newHarness(t)

	b, err := h.service.Reserve(context.Background(), ReserveInput{
		FlightID: "FL1", Email: "a@x.io", PassengerName: "Asha", PassengerCount: 2, SeatNumbers: []string{"A1", "A2"},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
	assert.Regexp(t, pnrPattern, b.PNR)
	assert.Equal(t, []string{"A1", "A2"}, b.SeatNumbers)
	assert.Equal(t, 4, h.available(t))
	assert.True(t, h.booked(t)["A1"])
	assert.True(t, h.booked(t)["A2"])
	assert.Equal(t, []string{"a@x.io: Booking Confirmed"}, h.notifier.subjects)

	stored, err := h.bookings.FindByPNR(context.Background(), b.PNR)
	require.NoError(t, err)
	assert.Equal(t, b.ID, stored.ID)
}

func TestReserve_MalformedRequests(t *testing.T) {
	tests := []struct {
		name  string
		input ReserveInput
	}{
		{"count mismatch", ReserveInput{FlightID: "FL1", Email: "a@x.io", PassengerCount: 3, SeatNumbers: []string{"A1", "A2"}}},
		{"duplicate seats", ReserveInput{FlightID: "FL1", Email: "a@x.io", PassengerCount: 2, SeatNumbers: []string{"A1", "A1"}}},
		{"bad email", ReserveInput{FlightID: "FL1", Email: "not-an-email", PassengerCount: 1, SeatNumbers: []string{"A1"}}},
		{"no seats", ReserveInput{FlightID: "FL1", Email: "a@x.io", PassengerCount: 0}},
		{"empty seat", ReserveInput{FlightID: "FL1", Email: "a@x.io", PassengerCount: 1, SeatNumbers: []string{""}}},
		{"no flight", ReserveInput{Email: "a@x.io", PassengerCount: 1, SeatNumbers: []string{"A1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.service.Reserve(context.Background(), tt.input)
			assert.ErrorIs(t, err, domain.ErrMalformedRequest)
			assert.Zero(t, h.authority.calls.Load())
		})
	}
}

func TestReserve_DuplicateIdentity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Reserve(ctx, reserveInput("a@x.io", "A1"))
	require.NoError(t, err)
	calls := h.authority.calls.Load()

	_, err = h.service.Reserve(ctx, reserveInput("a@x.io", "B1"))
	assert.ErrorIs(t, err, domain.ErrDuplicateBooking)
	assert.Equal(t, calls, h.authority.calls.Load())
}

func TestReserve_EmailIsCaseInsensitive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.service.Reserve(ctx, reserveInput(" A@x.io", "A1"))
	require.NoError(t, err)
	assert.Equal(t, "a@x.io", first.Email)

	_, err = h.service.Reserve(ctx, reserveInput("a@X.IO", "B1"))
	assert.ErrorIs(t, err, domain.ErrDuplicateBooking)

	mine, err := h.service.ListByEmail(ctx, "A@X.io")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestReserve_SeatConflictLeavesNothingLocked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.service.Reserve(ctx, reserveInput("a@x.io", "A1", "A2"))
	require.NoError(t, err)

	_, err = h.service.Reserve(ctx, reserveInput("b@x.io", "A3", "A2"))
	assert.ErrorIs(t, err, domain.ErrSeatConflict)
	assert.False(t, h.booked(t)["A3"])
	assert.Equal(t, 4, h.available(t))
}

func TestReserve_UnknownFlight(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.Reserve(context.Background(), ReserveInput{
		FlightID: "FL404", Email: "a@x.io", PassengerCount: 1, SeatNumbers: []string{"A1"},
	})
	assert.ErrorIs(t, err, domain.ErrFlightNotFound)
}

func TestReserve_SeatsStayDisjointAndCounterBounded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	holders := map[string]string{}
	for i, seats := range [][]string{{"A1", "A2"}, {"A3"}, {"A2", "A4"}, {"A4", "A5", "A6"}, {"A6"}} {
		email := fmt.Sprintf("p%d@x.io", i)
		b, err := h.service.Reserve(ctx, reserveInput(email, seats...))
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrSeatConflict)
			continue
		}
		require.Equal(t, domain.BookingStatusConfirmed, b.Status)
		for _, s := range b.SeatNumbers {
			_, taken := holders[s]
			assert.False(t, taken, "seat %s held twice", s)
			holders[s] = b.PNR
		}
		avail := h.available(t)
		assert.GreaterOrEqual(t, avail, 0)
		assert.LessOrEqual(t, avail, 6)
	}
	assert.Equal(t, 6-len(holders), h.available(t))
}

func TestReserve_InsufficientCounterCompensates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.flights.ReduceAvailable(ctx, "FL1", 5, "PNR-SEED"))

	b, err := h.service.Reserve(ctx, reserveInput("a@x.io", "A1", "A2"))

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusFailed, b.Status)
	assert.Contains(t, b.FailureReason, "decrement failed")
	assert.False(t, h.booked(t)["A1"])
	assert.False(t, h.booked(t)["A2"])
	assert.Equal(t, 1, h.available(t))
}

func TestReserve_ReserveCancelReserve(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.service.Reserve(ctx, reserveInput("a@x.io", "A1"))
	require.NoError(t, err)

	cancelled, err := h.service.CancelByPNR(ctx, first.PNR)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, cancelled.Status)
	assert.Equal(t, 6, h.available(t))
	assert.False(t, h.booked(t)["A1"])

	second, err := h.service.Reserve(ctx, reserveInput("a@x.io", "A1"))
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, second.Status)
	assert.NotEqual(t, first.PNR, second.PNR)
}

func TestReserve_ConcurrentSameSeat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var confirmed, conflicts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := h.service.Reserve(ctx, reserveInput(fmt.Sprintf("p%d@x.io", i), "A1"))
			switch {
			case err == nil && b.Status == domain.BookingStatusConfirmed:
				confirmed.Add(1)
			case errors.Is(err, domain.ErrSeatConflict):
				conflicts.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, confirmed.Load())
	assert.EqualValues(t, 19, conflicts.Load())
	assert.Equal(t, 5, h.available(t))
}

func TestReserve_ForcedOpenGateDegrades(t *testing.T) {
	h := newHarness(t)
	h.gate.ForceOpen(true)

	b, err := h.service.Reserve(context.Background(), reserveInput("a@x.io", "A1", "A2"))

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusFailed, b.Status)
	assert.Regexp(t, pnrPattern, b.PNR)
	assert.Equal(t, []string{"A1", "A2"}, b.SeatNumbers)
	assert.NotEmpty(t, b.FailureReason)
	assert.Zero(t, h.authority.calls.Load())
	assert.Equal(t, 6, h.available(t))

	stored, err := h.bookings.FindByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusFailed, stored.Status)
	assert.Empty(t, h.notifier.subjects)
}

func TestReserve_LockUnreachableReleasesOwnHold(t *testing.T) {
	h := newHarness(t)
	h.authority.failLock = errTransport

	b, err := h.service.Reserve(context.Background(), reserveInput("a@x.io", "A1"))

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusFailed, b.Status)
	assert.EqualValues(t, 3, h.authority.calls.Load(), "existence check, lock and its release")
	assert.Equal(t, 6, h.available(t))
	assert.False(t, h.booked(t)["A1"])
}

func TestReserve_LockReplyLostFreesSeats(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.authority.lostLockReply = context.DeadlineExceeded

	b, err := h.service.Reserve(ctx, reserveInput("a@x.io", "A1"))
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusFailed, b.Status)
	assert.False(t, h.booked(t)["A1"], "the applied lock must be released")

	h.authority.lostLockReply = nil
	again, err := h.service.Reserve(ctx, reserveInput("b@x.io", "A1"))
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, again.Status)
}

func TestReserve_LateReleaseCannotResellSeat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// The first reservation fails after locking A1. Its release reaches the
	// authority but the reply is lost, so the release is also queued.
	h.authority.failReduce = errTransport
	h.authority.lostReleaseReply = context.DeadlineExceeded
	failed, err := h.service.Reserve(ctx, reserveInput("a@x.io", "A1"))
	require.NoError(t, err)
	require.Equal(t, domain.BookingStatusFailed, failed.Status)

	pending, err := h.recon.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, failed.PNR, pending[0].BookingRef)

	h.authority.failReduce = nil
	h.authority.lostReleaseReply = nil
	second, err := h.service.Reserve(ctx, reserveInput("b@x.io", "A1"))
	require.NoError(t, err)
	require.Equal(t, domain.BookingStatusConfirmed, second.Status)

	// Replaying the stale release must leave the second booking's seat alone.
	reconciler := inventory.NewReconciler(h.authority, h.gate, h.recon, 10, zap.NewNop())
	resolved, err := reconciler.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	assert.True(t, h.booked(t)["A1"])

	_, err = h.service.Reserve(ctx, reserveInput("c@x.io", "A1"))
	assert.ErrorIs(t, err, domain.ErrSeatConflict)

	all, err := h.bookings.List(ctx)
	require.NoError(t, err)
	var holders []string
	for _, b := range all {
		if b.Status == domain.BookingStatusConfirmed && b.FlightID == "FL1" && slices.Contains(b.SeatNumbers, "A1") {
			holders = append(holders, b.PNR)
		}
	}
	assert.Equal(t, []string{second.PNR}, holders)
	assert.Equal(t, 5, h.available(t))
}

func TestReserve_DecrementReplyLostRestoresCounter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	var reduced atomic.Bool
	h.authority.Authority = &lostReduceReply{Authority: h.authority.Authority, applied: &reduced}

	b, err := h.service.Reserve(ctx, reserveInput("a@x.io", "A1", "A2"))

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusFailed, b.Status)
	assert.True(t, reduced.Load())
	assert.Equal(t, 6, h.available(t))
	assert.False(t, h.booked(t)["A1"])
}

// lostReduceReply applies the decrement and then reports a timeout.
type lostReduceReply struct {
	inventory.Authority
	applied *atomic.Bool
}

func (a *lostReduceReply) ReduceAvailable(ctx context.Context, flightID string, count int, ref string) error {
	if err := a.Authority.ReduceAvailable(ctx, flightID, count, ref); err != nil {
		return err
	}
	a.applied.Store(true)
	return context.DeadlineExceeded
}

func TestReserve_FailedCompensationIsQueued(t *testing.T) {
	h := newHarness(t)
	h.authority.failReduce = errTransport
	h.authority.failRelease = errTransport
	ctx := context.Background()

	b, err := h.service.Reserve(ctx, reserveInput("a@x.io", "A1"))

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusFailed, b.Status)

	pending, err := h.recon.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.ReconcileReleaseSeats, pending[0].Kind)
	assert.Equal(t, []string{"A1"}, pending[0].SeatNumbers)
	assert.Equal(t, b.PNR, pending[0].BookingRef)
}

func TestCancelByPNR_Cutoff(t *testing.T) {
	departure := time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		before  time.Duration
		wantErr error
	}{
		{"23 hours", 23 * time.Hour, domain.ErrCancellationWindowClosed},
		{"just under 24 hours", 24*time.Hour - time.Minute, domain.ErrCancellationWindowClosed},
		{"exactly 24 hours", 24 * time.Hour, nil},
		{"48 hours", 48 * time.Hour, nil},
		{"after departure", -time.Hour, domain.ErrCancellationWindowClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			b, err := h.service.Reserve(ctx, reserveInput("a@x.io", "A1"))
			require.NoError(t, err)

			h.now = departure.Add(-tt.before)
			got, err := h.service.CancelByPNR(ctx, b.PNR)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				stored, _ := h.bookings.FindByID(ctx, b.ID)
				assert.Equal(t, domain.BookingStatusConfirmed, stored.Status)
				assert.Equal(t, 5, h.available(t))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.BookingStatusCancelled, got.Status)
			assert.Equal(t, 6, h.available(t))
		})
	}
}

func TestCancel_AlreadyCancelledMakesNoCalls(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b, err := h.service.Reserve(ctx, reserveInput("a@x.io", "A1"))
	require.NoError(t, err)
	_, err = h.service.CancelByPNR(ctx, b.PNR)
	require.NoError(t, err)

	h.authority.calls.Store(0)
	again, err := h.service.CancelByPNR(ctx, b.PNR)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, again.Status)

	again, err = h.service.CancelByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, again.Status)

	assert.Zero(t, h.authority.calls.Load())
	assert.Equal(t, 6, h.available(t))
}

func TestCancel_FailedAndMissing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.gate.ForceOpen(true)
	failed, err := h.service.Reserve(ctx, reserveInput("a@x.io", "A1"))
	require.NoError(t, err)
	h.gate.ForceOpen(false)

	_, err = h.service.CancelByID(ctx, failed.ID)
	assert.ErrorIs(t, err, domain.ErrNotCancellable)

	_, err = h.service.CancelByPNR(ctx, "PNR-00000000")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestCancelByID_SkipsCutoff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b, err := h.service.Reserve(ctx, reserveInput("a@x.io", "A1"))
	require.NoError(t, err)

	h.now = time.Date(2030, 1, 9, 23, 0, 0, 0, time.UTC)
	got, err := h.service.CancelByID(ctx, b.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, got.Status)
	assert.Contains(t, h.notifier.subjects, "a@x.io: Booking Cancelled")
}

func TestCancelByPNR_MetadataUnknown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b, err := h.service.Reserve(ctx, reserveInput("a@x.io", "A1"))
	require.NoError(t, err)

	h.authority.failMetadata = errTransport
	_, err = h.service.CancelByPNR(ctx, b.PNR)

	assert.ErrorIs(t, err, domain.ErrInventoryUnreachable)
	assert.Equal(t, 5, h.available(t))
}

func TestCancel_RestoreFailureIsQueued(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b, err := h.service.Reserve(ctx, reserveInput("a@x.io", "A1", "A2"))
	require.NoError(t, err)

	h.authority.failIncrease = errTransport
	got, err := h.service.CancelByID(ctx, b.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, got.Status)
	pending, err := h.recon.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.ReconcileIncreaseAvailable, pending[0].Kind)
	assert.Equal(t, 2, pending[0].Count)
}

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Save(ctx context.Context, booking *domain.Booking) error {
	return m.Called(ctx, booking).Error(0)
}

func (m *MockBookingRepository) FindByID(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) FindByPNR(ctx context.Context, pnr string) (*domain.Booking, error) {
	args := m.Called(ctx, pnr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) FindActive(ctx context.Context, flightID, email string) (*domain.Booking, error) {
	args := m.Called(ctx, flightID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListByEmail(ctx context.Context, email string) ([]domain.Booking, error) {
	args := m.Called(ctx, email)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) List(ctx context.Context) ([]domain.Booking, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

type MockLock struct {
	mock.Mock
}

func (m *MockLock) AcquireInFlightLock(ctx context.Context, flightID, email string, ttl time.Duration) (string, bool, error) {
	args := m.Called(ctx, flightID, email, ttl)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockLock) ReleaseInFlightLock(ctx context.Context, flightID, email, token string) error {
	return m.Called(ctx, flightID, email, token).Error(0)
}

func TestReserve_SaveConflictCompensatesBothSteps(t *testing.T) {
	h := newHarness(t)
	repo := &MockBookingRepository{}
	repo.On("FindActive", mock.Anything, "FL1", "a@x.io").Return(nil, nil).Once()
	repo.On("Save", mock.Anything, mock.MatchedBy(func(b *domain.Booking) bool {
		return b.Status == domain.BookingStatusConfirmed
	})).Return(domain.ErrDuplicateBooking).Once()

	gated := inventory.NewGated(h.authority, h.gate, h.recon, zap.NewNop())
	service := NewBookingService(repo, gated, nil)

	_, err := service.Reserve(context.Background(), reserveInput("a@x.io", "A1", "A2"))

	assert.ErrorIs(t, err, domain.ErrDuplicateBooking)
	assert.Equal(t, 6, h.available(t))
	assert.False(t, h.booked(t)["A1"])
	repo.AssertExpectations(t)
}

func TestReserve_InFlightLock(t *testing.T) {
	h := newHarness(t)
	lock := &MockLock{}
	lock.On("AcquireInFlightLock", mock.Anything, "FL1", "a@x.io", 10*time.Second).Return("", false, nil).Once()
	lock.On("AcquireInFlightLock", mock.Anything, "FL1", "b@x.io", 10*time.Second).Return("tok-b", true, nil).Once()
	lock.On("ReleaseInFlightLock", mock.Anything, "FL1", "b@x.io", "tok-b").Return(nil).Once()

	gated := inventory.NewGated(h.authority, h.gate, h.recon, zap.NewNop())
	service := NewBookingService(h.bookings, gated, nil, WithInFlightLock(lock, 10*time.Second))

	_, err := service.Reserve(context.Background(), reserveInput("a@x.io", "A1"))
	assert.ErrorIs(t, err, domain.ErrDuplicateBooking)
	assert.Zero(t, h.authority.calls.Load())

	b, err := service.Reserve(context.Background(), reserveInput("b@x.io", "A1"))
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
	lock.AssertExpectations(t)
}

func TestReads(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b, err := h.service.Reserve(ctx, reserveInput("a@x.io", "A1"))
	require.NoError(t, err)
	_, err = h.service.Reserve(ctx, reserveInput("b@x.io", "A2"))
	require.NoError(t, err)

	got, err := h.service.GetByPNR(ctx, b.PNR)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	mine, err := h.service.ListByEmail(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := h.service.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = h.service.ListByEmail(ctx, "")
	assert.ErrorIs(t, err, domain.ErrMalformedRequest)
}
