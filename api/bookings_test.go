package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/flightsaga/internal/domain"
	"github.com/Domenick1991/flightsaga/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockBookingUseCase is a mock implementation of booking.BookingUseCase
type MockBookingUseCase struct {
	mock.Mock
}

func (m *MockBookingUseCase) bookingResult(args mock.Arguments) (*domain.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) Reserve(ctx context.Context, input booking.ReserveInput) (*domain.Booking, error) {
	return m.bookingResult(m.Called(ctx, input))
}

func (m *MockBookingUseCase) CancelByID(ctx context.Context, id string) (*domain.Booking, error) {
	return m.bookingResult(m.Called(ctx, id))
}

func (m *MockBookingUseCase) CancelByPNR(ctx context.Context, pnr string) (*domain.Booking, error) {
	return m.bookingResult(m.Called(ctx, pnr))
}

func (m *MockBookingUseCase) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	return m.bookingResult(m.Called(ctx, id))
}

func (m *MockBookingUseCase) GetByPNR(ctx context.Context, pnr string) (*domain.Booking, error) {
	return m.bookingResult(m.Called(ctx, pnr))
}

func (m *MockBookingUseCase) ListByEmail(ctx context.Context, email string) ([]domain.Booking, error) {
	args := m.Called(ctx, email)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) ListAll(ctx context.Context) ([]domain.Booking, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingUseCase) InventoryOpen() bool {
	return m.Called().Bool(0)
}

func newBookingRouter(service booking.BookingUseCase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewBookingHandler(service).Register(r.Group("/bookings"))
	RegisterHealth(r, service)
	return r
}

func doRequest(r http.Handler, method, path, email, roles string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		req.Header.Set(HeaderUserEmail, email)
	}
	if roles != "" {
		req.Header.Set(HeaderUserRoles, roles)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleBooking(status domain.BookingStatus) *domain.Booking {
	return &domain.Booking{
		ID:             "b-1",
		PNR:            "PNR-ABCDEF12",
		FlightID:       "FL1",
		Email:          "test@example.com",
		PassengerCount: 2,
		SeatNumbers:    []string{"A1", "A2"},
		Status:         status,
		BookingDate:    time.Now(),
		UpdatedAt:      time.Now(),
	}
}

func TestBookingHandler_create(t *testing.T) {
	mockService := &MockBookingUseCase{}
	handler := NewBookingHandler(mockService)

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body, _ := json.Marshal(createBookingRequest{FlightID: "FL1", PassengerCount: 2, SeatNumbers: []string{"A1", "A2"}})
	c.Request = httptest.NewRequest("POST", "/bookings", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(identityKey, Identity{Email: "test@example.com"})

	input := booking.ReserveInput{FlightID: "FL1", Email: "test@example.com", PassengerCount: 2, SeatNumbers: []string{"A1", "A2"}}
	mockService.On("Reserve", c.Request.Context(), input).Return(sampleBooking(domain.BookingStatusConfirmed), nil)

	handler.create(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response bookingResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "PNR-ABCDEF12", response.PNR)
	assert.Equal(t, string(domain.BookingStatusConfirmed), response.Status)

	mockService.AssertExpectations(t)
}

func TestBookingHandler_createDegraded(t *testing.T) {
	mockService := &MockBookingUseCase{}
	r := newBookingRouter(mockService)

	failed := sampleBooking(domain.BookingStatusFailed)
	failed.FailureReason = "inventory circuit open"
	mockService.On("Reserve", mock.Anything, mock.Anything).Return(failed, nil)

	w := doRequest(r, "POST", "/bookings", "test@example.com", "", createBookingRequest{FlightID: "FL1", PassengerCount: 2, SeatNumbers: []string{"A1", "A2"}})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var response bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "FAILED", response.Status)
	assert.Equal(t, "inventory circuit open", response.FailureReason)
}

func TestBookingHandler_createErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"malformed", domain.Reject(domain.ErrMalformedRequest, "x"), http.StatusBadRequest},
		{"duplicate", domain.ErrDuplicateBooking, http.StatusConflict},
		{"seat conflict", domain.Reject(domain.ErrSeatConflict, "A1"), http.StatusConflict},
		{"flight not found", domain.ErrFlightNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockBookingUseCase{}
			r := newBookingRouter(mockService)
			mockService.On("Reserve", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := doRequest(r, "POST", "/bookings", "test@example.com", "", createBookingRequest{FlightID: "FL1", PassengerCount: 1, SeatNumbers: []string{"A1"}})

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestBookingHandler_requiresIdentity(t *testing.T) {
	mockService := &MockBookingUseCase{}
	r := newBookingRouter(mockService)

	w := doRequest(r, "POST", "/bookings", "", "", createBookingRequest{FlightID: "FL1"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockService.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
}

func TestBookingHandler_getByPNR(t *testing.T) {
	mockService := &MockBookingUseCase{}
	r := newBookingRouter(mockService)
	mockService.On("GetByPNR", mock.Anything, "PNR-ABCDEF12").Return(sampleBooking(domain.BookingStatusConfirmed), nil)

	assert.Equal(t, http.StatusOK, doRequest(r, "GET", "/bookings/pnr/PNR-ABCDEF12", "test@example.com", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(r, "GET", "/bookings/pnr/PNR-ABCDEF12", "other@example.com", "", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, "GET", "/bookings/pnr/PNR-ABCDEF12", "admin@example.com", "ROLE_USER, ROLE_ADMIN", nil).Code)
}

func TestBookingHandler_get(t *testing.T) {
	mockService := &MockBookingUseCase{}
	r := newBookingRouter(mockService)
	mockService.On("GetByID", mock.Anything, "b-1").Return(sampleBooking(domain.BookingStatusConfirmed), nil)
	mockService.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrBookingNotFound)

	assert.Equal(t, http.StatusOK, doRequest(r, "GET", "/bookings/b-1", "test@example.com", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(r, "GET", "/bookings/missing", "test@example.com", "", nil).Code)
}

func TestBookingHandler_cancelByPNR(t *testing.T) {
	mockService := &MockBookingUseCase{}
	r := newBookingRouter(mockService)
	mockService.On("GetByPNR", mock.Anything, "PNR-ABCDEF12").Return(sampleBooking(domain.BookingStatusConfirmed), nil)
	mockService.On("CancelByPNR", mock.Anything, "PNR-ABCDEF12").Return(sampleBooking(domain.BookingStatusCancelled), nil).Once()

	w := doRequest(r, "PUT", "/bookings/pnr/PNR-ABCDEF12/cancel", "test@example.com", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var response bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "CANCELLED", response.Status)

	w = doRequest(r, "PUT", "/bookings/pnr/PNR-ABCDEF12/cancel", "other@example.com", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	mockService.AssertNumberOfCalls(t, "CancelByPNR", 1)
}

func TestBookingHandler_cancelByPNRWindowClosed(t *testing.T) {
	mockService := &MockBookingUseCase{}
	r := newBookingRouter(mockService)
	mockService.On("GetByPNR", mock.Anything, "PNR-ABCDEF12").Return(sampleBooking(domain.BookingStatusConfirmed), nil)
	mockService.On("CancelByPNR", mock.Anything, "PNR-ABCDEF12").Return(nil, domain.Reject(domain.ErrCancellationWindowClosed, "23 hours"))

	w := doRequest(r, "PUT", "/bookings/pnr/PNR-ABCDEF12/cancel", "test@example.com", "", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var response errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "CANCELLATION_WINDOW_CLOSED", response.Code)
}

func TestBookingHandler_cancelByIDAdminOnly(t *testing.T) {
	mockService := &MockBookingUseCase{}
	r := newBookingRouter(mockService)
	mockService.On("CancelByID", mock.Anything, "b-1").Return(sampleBooking(domain.BookingStatusCancelled), nil).Once()

	assert.Equal(t, http.StatusForbidden, doRequest(r, "PUT", "/bookings/b-1/cancel", "test@example.com", "", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, "PUT", "/bookings/b-1/cancel", "admin@example.com", "ROLE_ADMIN", nil).Code)
	mockService.AssertExpectations(t)
}

func TestBookingHandler_history(t *testing.T) {
	mockService := &MockBookingUseCase{}
	r := newBookingRouter(mockService)
	mine := []domain.Booking{*sampleBooking(domain.BookingStatusConfirmed)}
	mockService.On("ListByEmail", mock.Anything, "test@example.com").Return(mine, nil)
	mockService.On("ListAll", mock.Anything).Return(append(mine, *sampleBooking(domain.BookingStatusCancelled)), nil)

	w := doRequest(r, "GET", "/bookings/history", "test@example.com", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var response []bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response, 1)

	assert.Equal(t, http.StatusForbidden, doRequest(r, "GET", "/bookings/history?email=x@example.com", "test@example.com", "", nil).Code)

	w = doRequest(r, "GET", "/bookings/history", "admin@example.com", "ROLE_ADMIN", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response, 2)

	assert.Equal(t, http.StatusOK, doRequest(r, "GET", "/bookings/history?email=test@example.com", "admin@example.com", "ROLE_ADMIN", nil).Code)
}

func TestHealth(t *testing.T) {
	mockService := &MockBookingUseCase{}
	r := newBookingRouter(mockService)
	mockService.On("InventoryOpen").Return(true).Once()

	w := doRequest(r, "GET", "/health", "", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"inventory_circuit":"OPEN"`)
}
