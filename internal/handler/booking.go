package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/repository"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

// BookingHandler converts held seats into bookings and settles them on
// payment outcomes.
type BookingHandler struct {
	Orchestrator *service.BookingOrchestrator
	Showtimes    *repository.ShowtimeRepo
}

// NewBookingHandler constructs a BookingHandler.  Both dependencies
// must be non-nil.
func NewBookingHandler(orchestrator *service.BookingOrchestrator, showtimes *repository.ShowtimeRepo) *BookingHandler {
	if orchestrator == nil || showtimes == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Orchestrator: orchestrator, Showtimes: showtimes}
}

// CreateBooking handles POST /v1/showtimes/:id/bookings.  The caller
// must already hold every requested seat; the orchestrator flips the
// seats to booked and requests a charge.  The response carries the
// pending booking.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Showtimes.Get(ctx, showtimeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "showtime not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	var body struct {
		SeatLabels []string `json:"seat_labels"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.SeatLabels) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_labels is required"})
	}
	booking, err := h.Orchestrator.CreateBooking(ctx, userID, showtimeID, body.SeatLabels)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id":         booking.ID,
		"status":             booking.Status,
		"total_amount_cents": booking.TotalAmountCents,
	})
}

// FinalizeBooking handles POST /v1/bookings/:id/finalize.  It is the
// HTTP callback of the payment bridge; the same settlement also arrives
// over the payment.outcomes queue.  Finalizing an already settled
// booking reports the settled state without touching it.
func (h *BookingHandler) FinalizeBooking(c echo.Context) error {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body struct {
		Outcome string `json:"outcome"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	var success bool
	switch strings.ToLower(body.Outcome) {
	case "success":
		success = true
	case "failure":
		success = false
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "outcome must be success or failure"})
	}
	booking, err := h.Orchestrator.FinalizeBooking(c.Request().Context(), bookingID, success)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking_id": booking.ID,
		"status":     booking.Status,
	})
}

// ListMyBookings handles GET /v1/my-bookings.  It returns all bookings
// of the current user, newest first.  When none exist it returns an
// empty array.
func (h *BookingHandler) ListMyBookings(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Orchestrator.ListBookings(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": itemsOrEmpty(items)})
}

// GetBooking handles GET /v1/bookings/:id.  It returns one booking of
// the current user together with its seats; bookings of other users
// answer 404.
func (h *BookingHandler) GetBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	booking, seats, err := h.Orchestrator.GetBooking(c.Request().Context(), bookingID, userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	labels := make([]string, 0, len(seats))
	for _, s := range seats {
		labels = append(labels, s.SeatLabel)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"item": echo.Map{
			"booking_id":         booking.ID,
			"showtime_id":        booking.ShowtimeID,
			"status":             booking.Status,
			"total_amount_cents": booking.TotalAmountCents,
			"seat_labels":        labels,
			"created_at":         booking.CreatedAt,
		},
	})
}
