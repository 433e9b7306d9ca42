package service

import (
	"context"

	"github.com/iliyamo/cinema-ticketing/internal/clock"
	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// Sweeper reclaims expired seat holds. It is not a background process:
// readers invoke it inline before listing seats or attempting holds, so
// a stale hold can never block a new reservation even without a
// scheduler. Reclamation goes through the same compare-and-set as every
// other transition, and a lost race simply means another sweep or hold
// got there first.
type Sweeper struct {
	seats SeatStore
	clk   clock.Clock
}

// NewSweeper constructs a Sweeper over the given seat store and clock.
func NewSweeper(seats SeatStore, clk clock.Clock) *Sweeper {
	return &Sweeper{seats: seats, clk: clk}
}

// Sweep transitions every expired hold of the showtime back to
// AVAILABLE and returns the number of seats it reclaimed. Conflicts are
// ignored; storage errors abort the sweep.
func (s *Sweeper) Sweep(ctx context.Context, showtimeID uint64) (int, error) {
	now := s.clk.Now()
	seats, err := s.seats.ListByShowtime(ctx, showtimeID)
	if err != nil {
		return 0, err
	}
	reclaimed := 0
	for i := range seats {
		seat := &seats[i]
		if seat.Status != model.SeatStatusHeld || seat.HeldAndLive(now) {
			continue
		}
		ok, err := s.seats.CompareAndSet(ctx, seat.Key(),
			model.SeatExpect{Status: model.SeatStatusHeld, ExpiredAtOrBefore: &now},
			model.SeatChange{Status: model.SeatStatusAvailable},
		)
		if err != nil {
			return reclaimed, err
		}
		if ok {
			reclaimed++
		}
	}
	return reclaimed, nil
}
