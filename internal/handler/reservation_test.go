package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticketing/internal/clock"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

// memSeats is a minimal in-memory service.SeatStore for exercising the
// HTTP layer without a database.
type memSeats struct {
	mu    sync.Mutex
	seats map[model.SeatKey]*model.Seat
}

func newMemSeats(showtimeID uint64, labels ...string) *memSeats {
	m := &memSeats{seats: make(map[model.SeatKey]*model.Seat)}
	for _, l := range labels {
		m.seats[model.SeatKey{ShowtimeID: showtimeID, SeatLabel: l}] = &model.Seat{
			ShowtimeID: showtimeID,
			SeatLabel:  l,
			Status:     model.SeatStatusAvailable,
			PriceCents: 1500,
		}
	}
	return m
}

func (m *memSeats) ListByShowtime(_ context.Context, showtimeID uint64) ([]model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Seat
	for _, s := range m.seats {
		if s.ShowtimeID == showtimeID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memSeats) Get(_ context.Context, key model.SeatKey) (*model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.seats[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSeats) CompareAndSet(_ context.Context, key model.SeatKey, expect model.SeatExpect, next model.SeatChange) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.seats[key]
	if !ok || s.Status != expect.Status {
		return false, nil
	}
	if expect.HeldBy != nil && (s.HeldBy == nil || *s.HeldBy != *expect.HeldBy) {
		return false, nil
	}
	if expect.ExpiredAtOrBefore != nil && (s.HeldUntil == nil || s.HeldUntil.After(*expect.ExpiredAtOrBefore)) {
		return false, nil
	}
	if expect.LiveAt != nil && (s.HeldUntil == nil || !s.HeldUntil.After(*expect.LiveAt)) {
		return false, nil
	}
	if expect.BookingID != nil && (s.BookingID == nil || *s.BookingID != *expect.BookingID) {
		return false, nil
	}
	s.Status = next.Status
	s.HeldBy = next.HeldBy
	s.HeldUntil = next.HeldUntil
	s.BookingID = next.BookingID
	return true, nil
}

func newHandlerFixture(t *testing.T) (*ReservationHandler, *memSeats, *clock.Fixed) {
	t.Helper()
	seats := newMemSeats(42, "A1", "A2")
	clk := clock.NewFixed(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))
	manager := service.NewReservationManager(seats, clk)
	sweeper := service.NewSweeper(seats, clk)
	h := NewReservationHandler(repository.NewShowtimeRepo(nil), seats, manager, sweeper, clk)
	return h, seats, clk
}

// doJSON invokes an echo handler directly with an authenticated request.
func doJSON(t *testing.T, h echo.HandlerFunc, method, body string, userID uint64) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("42")
	if userID != 0 {
		c.Set("user_id", userID)
	}
	require.NoError(t, h(c))
	return rec
}

func TestReleaseSeatsEndpoint(t *testing.T) {
	h, seats, _ := newHandlerFixture(t)
	_, err := h.Manager.Hold(context.Background(), 42, []string{"A1"}, 7, 0)
	require.NoError(t, err)

	rec := doJSON(t, h.ReleaseSeats, http.MethodDelete, `{"seat_labels":["A1"]}`, 7)
	assert.Equal(t, http.StatusOK, rec.Code)

	seat, err := seats.Get(context.Background(), model.SeatKey{ShowtimeID: 42, SeatLabel: "A1"})
	require.NoError(t, err)
	assert.Equal(t, model.SeatStatusAvailable, seat.Status)
}

func TestReleaseSeatsRequiresAuth(t *testing.T) {
	h, _, _ := newHandlerFixture(t)
	rec := doJSON(t, h.ReleaseSeats, http.MethodDelete, `{"seat_labels":["A1"]}`, 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReleaseSeatsValidatesBody(t *testing.T) {
	h, _, _ := newHandlerFixture(t)
	rec := doJSON(t, h.ReleaseSeats, http.MethodDelete, `{"seat_labels":[]}`, 7)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtendHoldsEndpoint(t *testing.T) {
	h, seats, clk := newHandlerFixture(t)
	_, err := h.Manager.Hold(context.Background(), 42, []string{"A1"}, 7, 5*time.Minute)
	require.NoError(t, err)

	rec := doJSON(t, h.ExtendHolds, http.MethodPatch, `{"seat_labels":["A1"],"ttl_seconds":600}`, 7)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), clk.Now().Add(10*time.Minute).UTC().Format(time.RFC3339))

	seat, err := seats.Get(context.Background(), model.SeatKey{ShowtimeID: 42, SeatLabel: "A1"})
	require.NoError(t, err)
	require.NotNil(t, seat.HeldUntil)
	assert.Equal(t, clk.Now().Add(10*time.Minute), *seat.HeldUntil)
}

func TestExtendHoldsConflictIs409(t *testing.T) {
	h, _, _ := newHandlerFixture(t)
	_, err := h.Manager.Hold(context.Background(), 42, []string{"A1"}, 1, 0)
	require.NoError(t, err)

	rec := doJSON(t, h.ExtendHolds, http.MethodPatch, `{"seat_labels":["A1"],"ttl_seconds":600}`, 2)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "A1")
}

func TestExtendHoldsValidatesTTL(t *testing.T) {
	h, _, _ := newHandlerFixture(t)
	rec := doJSON(t, h.ExtendHolds, http.MethodPatch, `{"seat_labels":["A1"],"ttl_seconds":0}`, 7)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
