package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticketing/internal/clock"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

// ReservationHandler serves the seat map and the hold lifecycle:
// acquiring, releasing and extending holds.  All seat reads run the
// expiration sweep first so stale holds never appear as occupied.
type ReservationHandler struct {
	Showtimes *repository.ShowtimeRepo
	Seats     service.SeatStore
	Manager   *service.ReservationManager
	Sweeper   *service.Sweeper
	Clock     clock.Clock
}

// NewReservationHandler constructs a ReservationHandler with the
// provided dependencies.  All of them must be non-nil.
func NewReservationHandler(showtimes *repository.ShowtimeRepo, seats service.SeatStore, manager *service.ReservationManager, sweeper *service.Sweeper, clk clock.Clock) *ReservationHandler {
	if showtimes == nil || seats == nil || manager == nil || sweeper == nil || clk == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{
		Showtimes: showtimes,
		Seats:     seats,
		Manager:   manager,
		Sweeper:   sweeper,
		Clock:     clk,
	}
}

// seatView is the wire representation of one seat in the public map.
type seatView struct {
	SeatLabel  string  `json:"seat_label"`
	Status     string  `json:"status"`
	PriceCents uint32  `json:"price_cents"`
	HeldByMe   bool    `json:"held_by_me,omitempty"`
	HeldUntil  *string `json:"held_until,omitempty"`
}

// ListShowtimes handles GET /v1/showtimes.  It returns the upcoming
// showtime catalog; responses are cache-eligible.
func (h *ReservationHandler) ListShowtimes(c echo.Context) error {
	items, err := h.Showtimes.ListUpcoming(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load showtimes"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": itemsOrEmpty(items)})
}

// ListSeats handles GET /v1/showtimes/:id/seats.  It reclaims expired
// holds inline, then returns every seat with its effective status at
// read time.  The endpoint is public; held_by is never exposed.
func (h *ReservationHandler) ListSeats(c echo.Context) error {
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
	// Lazy reclamation before serving the read; conflicts are ignored.
	if _, err := h.Sweeper.Sweep(ctx, showtimeID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reclaim expired holds"})
	}
	seats, err := h.Seats.ListByShowtime(ctx, showtimeID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seats"})
	}
	now := h.Clock.Now()
	views := make([]seatView, 0, len(seats))
	for i := range seats {
		s := &seats[i]
		v := seatView{
			SeatLabel:  s.SeatLabel,
			Status:     s.EffectiveStatus(now),
			PriceCents: s.PriceCents,
		}
		if s.HeldAndLive(now) {
			t := s.HeldUntil.UTC().Format(time.RFC3339)
			v.HeldUntil = &t
		}
		views = append(views, v)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": views})
}

// holdRequest is the body shared by hold, release and extend calls.
type holdRequest struct {
	SeatLabels []string `json:"seat_labels"`
	TTLSeconds int64    `json:"ttl_seconds,omitempty"`
}

// HoldSeats handles POST /v1/showtimes/:id/hold.  It places a
// short-lived exclusive hold on each requested seat for the current
// user.  Holds are all-or-nothing: when any seat is taken the call
// fails with the conflicting seats and nothing stays held.
func (h *ReservationHandler) HoldSeats(c echo.Context) error {
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
	var body holdRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.SeatLabels) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_labels is required"})
	}
	ttl := time.Duration(body.TTLSeconds) * time.Second

	until, err := h.Manager.Hold(ctx, showtimeID, body.SeatLabels, userID, ttl)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"expires_at":  until.UTC().Format(time.RFC3339),
		"seat_labels": body.SeatLabels,
	})
}

// ReleaseSeats handles DELETE /v1/showtimes/:id/hold.  It releases the
// caller's holds on the named seats.  Releasing seats the caller does
// not hold is a no-op, so retries and stale clients are harmless.
func (h *ReservationHandler) ReleaseSeats(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var body holdRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.SeatLabels) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_labels is required"})
	}
	if err := h.Manager.Release(c.Request().Context(), showtimeID, body.SeatLabels, userID); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": body.SeatLabels})
}

// ExtendHolds handles PATCH /v1/showtimes/:id/hold.  It pushes the
// expiry of the caller's live holds forward by ttl_seconds from now.
// Expired holds are not resurrected.
func (h *ReservationHandler) ExtendHolds(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	showtimeID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid showtime id"})
	}
	var body holdRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.SeatLabels) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_labels is required"})
	}
	if body.TTLSeconds <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ttl_seconds must be positive"})
	}
	newUntil := h.Clock.Now().Add(time.Duration(body.TTLSeconds) * time.Second)
	if err := h.Manager.Extend(c.Request().Context(), showtimeID, body.SeatLabels, userID, newUntil); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"expires_at":  newUntil.UTC().Format(time.RFC3339),
		"seat_labels": body.SeatLabels,
	})
}
