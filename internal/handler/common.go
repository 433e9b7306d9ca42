// Package handler defines the HTTP handlers for the reservation core.
// Handlers bind and validate requests, call into the service layer and
// translate its error kinds into HTTP responses; they never touch the
// seat store directly.
package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/service"
)

// getUserID extracts the authenticated user from the echo context. The
// identity middleware stores it as uint64; any other shape means the
// route was registered without authentication.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// itemsOrEmpty guards list payloads against a nil slice, which would
// serialize as null instead of [].
func itemsOrEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// writeServiceError maps a service error kind onto an HTTP response.
// Conflicts name the seats involved so clients can adjust their
// selection; unexpected errors are logged and reported as 500 without
// leaking storage details.
func writeServiceError(c echo.Context, err error) error {
	var (
		unavailable *service.SeatUnavailableError
		notHeld     *service.NotHeldByCallerError
		failed      *service.BookingFailedError
		ineligible  *service.CouponNotEligibleError
	)
	switch {
	case errors.As(err, &unavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "some seats are unavailable", "seats": unavailable.Seats})
	case errors.As(err, &notHeld):
		return c.JSON(http.StatusConflict, echo.Map{"error": "seats not held by caller", "seats": notHeld.Seats})
	case errors.As(err, &failed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking failed", "seats": failed.Seats})
	case errors.As(err, &ineligible):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "coupon not eligible", "reason": ineligible.Reason})
	case errors.Is(err, service.ErrCouponAlreadyApplied):
		return c.JSON(http.StatusConflict, echo.Map{"error": "coupon already applied"})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, service.ErrNoSeats):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_labels is required"})
	default:
		log.Printf("handler: internal error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
