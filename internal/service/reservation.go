package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/clock"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

const defaultHoldTTL = 5 * time.Minute

// ReservationManager acquires, releases and extends seat holds on top
// of the seat store's compare-and-set primitive. Holds are
// all-or-nothing per request: when any requested seat cannot be held,
// every seat already acquired by the same call is released again before
// the error is returned.
type ReservationManager struct {
	seats   SeatStore
	sweeper *Sweeper
	clk     clock.Clock
	holdTTL time.Duration
}

// ReservationOption customises a ReservationManager.
type ReservationOption func(*ReservationManager)

// WithHoldTTL overrides the default TTL applied when a hold request
// does not specify one.
func WithHoldTTL(d time.Duration) ReservationOption {
	return func(m *ReservationManager) {
		if d > 0 {
			m.holdTTL = d
		}
	}
}

// NewReservationManager constructs a ReservationManager. All
// dependencies must be non-nil.
func NewReservationManager(seats SeatStore, clk clock.Clock, opts ...ReservationOption) *ReservationManager {
	if seats == nil || clk == nil {
		panic("nil dependency passed to NewReservationManager")
	}
	m := &ReservationManager{
		seats:   seats,
		sweeper: NewSweeper(seats, clk),
		clk:     clk,
		holdTTL: defaultHoldTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// dedupeLabels drops empty and repeated seat labels while preserving
// order.
func dedupeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// Hold places a time-bounded exclusive claim on each requested seat for
// the given user and returns the shared expiry. A ttl of zero applies
// the manager's default. Among concurrent calls targeting the same seat
// at most one succeeds; the rest receive SeatUnavailableError naming
// every conflicting seat, and none of their seats stay held.
func (m *ReservationManager) Hold(ctx context.Context, showtimeID uint64, seatLabels []string, userID uint64, ttl time.Duration) (time.Time, error) {
	labels := dedupeLabels(seatLabels)
	if len(labels) == 0 {
		return time.Time{}, ErrNoSeats
	}
	if ttl <= 0 {
		ttl = m.holdTTL
	}
	// Reclaim stale holds first so an expired claim never blocks us.
	if _, err := m.sweeper.Sweep(ctx, showtimeID); err != nil {
		return time.Time{}, err
	}

	now := m.clk.Now()
	until := now.Add(ttl)
	var acquired []string
	var unavailable []string
	for _, label := range labels {
		key := model.SeatKey{ShowtimeID: showtimeID, SeatLabel: label}
		ok, err := m.seats.CompareAndSet(ctx, key,
			model.SeatExpect{Status: model.SeatStatusAvailable},
			model.SeatChange{Status: model.SeatStatusHeld, HeldBy: &userID, HeldUntil: &until},
		)
		if err != nil {
			m.releaseAcquired(ctx, showtimeID, acquired, userID)
			return time.Time{}, err
		}
		if !ok {
			if _, gerr := m.seats.Get(ctx, key); errors.Is(gerr, repository.ErrNotFound) {
				m.releaseAcquired(ctx, showtimeID, acquired, userID)
				return time.Time{}, ErrNotFound
			}
			unavailable = append(unavailable, label)
			continue
		}
		acquired = append(acquired, label)
	}
	if len(unavailable) > 0 {
		m.releaseAcquired(ctx, showtimeID, acquired, userID)
		return time.Time{}, &SeatUnavailableError{Seats: unavailable}
	}
	return until, nil
}

// Release gives up the caller's holds on the given seats. Releasing a
// seat the caller does not hold, or one that does not exist, is a
// no-op: the operation is idempotent and never disturbs another
// caller's hold.
func (m *ReservationManager) Release(ctx context.Context, showtimeID uint64, seatLabels []string, userID uint64) error {
	for _, label := range dedupeLabels(seatLabels) {
		key := model.SeatKey{ShowtimeID: showtimeID, SeatLabel: label}
		if _, err := m.seats.CompareAndSet(ctx, key,
			model.SeatExpect{Status: model.SeatStatusHeld, HeldBy: &userID},
			model.SeatChange{Status: model.SeatStatusAvailable},
		); err != nil {
			return err
		}
	}
	return nil
}

// Extend moves the expiry of the caller's live holds to newUntil. A
// seat whose hold expired or belongs to someone else fails with
// NotHeldByCallerError naming every such seat; an expired hold is never
// resurrected. Seats extended before a failure keep their new expiry.
func (m *ReservationManager) Extend(ctx context.Context, showtimeID uint64, seatLabels []string, userID uint64, newUntil time.Time) error {
	labels := dedupeLabels(seatLabels)
	if len(labels) == 0 {
		return ErrNoSeats
	}
	now := m.clk.Now()
	var notHeld []string
	for _, label := range labels {
		key := model.SeatKey{ShowtimeID: showtimeID, SeatLabel: label}
		ok, err := m.seats.CompareAndSet(ctx, key,
			model.SeatExpect{Status: model.SeatStatusHeld, HeldBy: &userID, LiveAt: &now},
			model.SeatChange{Status: model.SeatStatusHeld, HeldBy: &userID, HeldUntil: &newUntil},
		)
		if err != nil {
			return err
		}
		if !ok {
			if _, gerr := m.seats.Get(ctx, key); errors.Is(gerr, repository.ErrNotFound) {
				return ErrNotFound
			}
			notHeld = append(notHeld, label)
		}
	}
	if len(notHeld) > 0 {
		return &NotHeldByCallerError{Seats: notHeld}
	}
	return nil
}

// releaseAcquired is the compensating rollback of a partially
// successful hold request. Conflicts are ignored: a seat that already
// expired or was reclaimed needs no release.
func (m *ReservationManager) releaseAcquired(ctx context.Context, showtimeID uint64, labels []string, userID uint64) {
	for _, label := range labels {
		key := model.SeatKey{ShowtimeID: showtimeID, SeatLabel: label}
		_, _ = m.seats.CompareAndSet(ctx, key,
			model.SeatExpect{Status: model.SeatStatusHeld, HeldBy: &userID},
			model.SeatChange{Status: model.SeatStatusAvailable},
		)
	}
}
