package model

import "time"

// Seat status values as stored in the seats.status column.  A seat whose
// status is HELD but whose held_until has passed is logically available;
// readers must treat it as such even before a sweep rewrites the row.
const (
	SeatStatusAvailable = "AVAILABLE" // no active hold or booking
	SeatStatusHeld      = "HELD"      // temporarily claimed by one user
	SeatStatusBooked    = "BOOKED"    // attached to a booking
)

// SeatKey identifies a single physical seat within one showtime.  Seats
// exist only in the context of a showtime's inventory.
type SeatKey struct {
	ShowtimeID uint64 // seats.showtime_id
	SeatLabel  string // seats.seat_label (e.g. "A1")
}

// Seat represents the reservation state of one seat for one showtime.
// HeldBy and HeldUntil are both nil exactly when the seat is available;
// a HELD seat always carries both.  BookingID is set only for BOOKED
// seats.
//
// Fields:
//  ShowtimeID – showtime whose inventory owns this seat.
//  SeatLabel  – seat label unique within the showtime.
//  Status     – AVAILABLE, HELD or BOOKED.
//  PriceCents – price of this seat in cents.
//  HeldBy     – user holding the seat (nullable).
//  HeldUntil  – expiry of the hold (nullable).
//  BookingID  – booking the seat belongs to (nullable).
type Seat struct {
	ShowtimeID uint64     // seats.showtime_id
	SeatLabel  string     // seats.seat_label
	Status     string     // seats.status
	PriceCents uint32     // seats.price_cents
	HeldBy     *uint64    // seats.held_by (nullable)
	HeldUntil  *time.Time // seats.held_until (nullable)
	BookingID  *uint64    // seats.booking_id (nullable)
	CreatedAt  time.Time  // seats.created_at
	UpdatedAt  time.Time  // seats.updated_at
}

// Key returns the identity of the seat within its showtime.
func (s *Seat) Key() SeatKey {
	return SeatKey{ShowtimeID: s.ShowtimeID, SeatLabel: s.SeatLabel}
}

// HeldAndLive reports whether the seat carries a hold that has not yet
// expired at the supplied instant.
func (s *Seat) HeldAndLive(now time.Time) bool {
	return s.Status == SeatStatusHeld && s.HeldUntil != nil && s.HeldUntil.After(now)
}

// EffectiveStatus returns the status a reader should observe at the
// supplied instant: an expired hold is reported as AVAILABLE even if the
// stored row has not been swept yet.
func (s *Seat) EffectiveStatus(now time.Time) string {
	if s.Status == SeatStatusHeld && !s.HeldAndLive(now) {
		return SeatStatusAvailable
	}
	return s.Status
}
