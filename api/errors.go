package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/flightsaga/internal/domain"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMalformedRequest):
		return http.StatusBadRequest, "MALFORMED_REQUEST"
	case errors.Is(err, domain.ErrDuplicateBooking):
		return http.StatusConflict, "DUPLICATE_BOOKING"
	case errors.Is(err, domain.ErrSeatConflict):
		return http.StatusConflict, "SEAT_CONFLICT"
	case errors.Is(err, domain.ErrInsufficientSeats):
		return http.StatusConflict, "INSUFFICIENT_SEATS"
	case errors.Is(err, domain.ErrFlightNotFound):
		return http.StatusNotFound, "FLIGHT_NOT_FOUND"
	case errors.Is(err, domain.ErrBookingNotFound):
		return http.StatusNotFound, "BOOKING_NOT_FOUND"
	case errors.Is(err, domain.ErrCancellationWindowClosed):
		return http.StatusUnprocessableEntity, "CANCELLATION_WINDOW_CLOSED"
	case errors.Is(err, domain.ErrNotCancellable):
		return http.StatusUnprocessableEntity, "NOT_CANCELLABLE"
	case errors.Is(err, domain.ErrInventoryUnreachable), errors.Is(err, domain.ErrInventoryUnavailable):
		return http.StatusServiceUnavailable, "INVENTORY_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, ""
	}
}

func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.JSON(status, errorResponse{Error: msg, Code: code})
}
