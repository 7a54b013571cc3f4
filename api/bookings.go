package api

import (
	"net/http"
	"time"

	"github.com/Domenick1991/flightsaga/internal/domain"
	"github.com/Domenick1991/flightsaga/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	FlightID       string   `json:"flight_id"`
	PassengerName  string   `json:"passenger_name"`
	PassengerCount int      `json:"passenger_count"`
	SeatNumbers    []string `json:"seat_numbers"`
}

type bookingResponse struct {
	ID             string   `json:"id"`
	PNR            string   `json:"pnr"`
	FlightID       string   `json:"flight_id"`
	Email          string   `json:"email"`
	PassengerName  string   `json:"passenger_name,omitempty"`
	PassengerCount int      `json:"passenger_count"`
	SeatNumbers    []string `json:"seat_numbers"`
	Status         string   `json:"status"`
	FailureReason  string   `json:"failure_reason,omitempty"`
	BookingDate    string   `json:"booking_date"`
	UpdatedAt      string   `json:"updated_at"`
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		ID:             b.ID,
		PNR:            b.PNR,
		FlightID:       b.FlightID,
		Email:          b.Email,
		PassengerName:  b.PassengerName,
		PassengerCount: b.PassengerCount,
		SeatNumbers:    b.SeatNumbers,
		Status:         string(b.Status),
		FailureReason:  b.FailureReason,
		BookingDate:    b.BookingDate.Format(time.RFC3339),
		UpdatedAt:      b.UpdatedAt.Format(time.RFC3339),
	}
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.Use(RequireIdentity())
	router.POST("", h.create)
	router.GET("/history", h.history)
	router.GET("/pnr/:pnr", h.getByPNR)
	router.PUT("/pnr/:pnr/cancel", h.cancelByPNR)
	router.GET("/:id", h.get)
	router.PUT("/:id/cancel", RequireAdmin(), h.cancelByID)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "MALFORMED_REQUEST"})
		return
	}

	b, err := h.service.Reserve(c.Request.Context(), booking.ReserveInput{
		FlightID:       req.FlightID,
		Email:          identityFrom(c).Email,
		PassengerName:  req.PassengerName,
		PassengerCount: req.PassengerCount,
		SeatNumbers:    req.SeatNumbers,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if b.Status == domain.BookingStatusFailed {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, toBookingResponse(b))
}

func (h *BookingHandler) get(c *gin.Context) {
	b, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !identityFrom(c).Owns(b.Email) {
		forbidden(c)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) getByPNR(c *gin.Context) {
	b, err := h.service.GetByPNR(c.Request.Context(), c.Param("pnr"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !identityFrom(c).Owns(b.Email) {
		forbidden(c)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

// history lists the caller's bookings. Admins may pass ?email= or omit it to
// list everything.
func (h *BookingHandler) history(c *gin.Context) {
	id := identityFrom(c)
	email := c.Query("email")

	var (
		bookings []domain.Booking
		err      error
	)
	switch {
	case id.Admin && email == "":
		bookings, err = h.service.ListAll(c.Request.Context())
	case email == "":
		bookings, err = h.service.ListByEmail(c.Request.Context(), id.Email)
	case !id.Owns(email):
		forbidden(c)
		return
	default:
		bookings, err = h.service.ListByEmail(c.Request.Context(), email)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		resp = append(resp, toBookingResponse(&bookings[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) cancelByPNR(c *gin.Context) {
	pnr := c.Param("pnr")
	current, err := h.service.GetByPNR(c.Request.Context(), pnr)
	if err != nil {
		writeError(c, err)
		return
	}
	if !identityFrom(c).Owns(current.Email) {
		forbidden(c)
		return
	}

	b, err := h.service.CancelByPNR(c.Request.Context(), pnr)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h *BookingHandler) cancelByID(c *gin.Context) {
	b, err := h.service.CancelByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}
