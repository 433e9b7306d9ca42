package model

import "time"

// SeatExpect is the precondition of a seat compare-and-set.  The update
// applies only to a row matching every set field; otherwise the store
// reports a conflict without mutating anything.
//
// Fields:
//  Status           – required current status.
//  HeldBy           – when non-nil, held_by must equal this user.
//  ExpiredAtOrBefore – when non-nil, held_until must be at or before this
//                      instant (used by the expiration sweep).
//  LiveAt           – when non-nil, held_until must be after this instant
//                     (used when extending a hold must not resurrect an
//                     expired one).
//  BookingID        – when non-nil, booking_id must equal this booking
//                     (used when rolling a booked seat back).
type SeatExpect struct {
	Status            string
	HeldBy            *uint64
	ExpiredAtOrBefore *time.Time
	LiveAt            *time.Time
	BookingID         *uint64
}

// SeatChange is the state written when a compare-and-set succeeds.  Nil
// pointer fields are written as NULL, which is how holds and booking
// references are cleared.
type SeatChange struct {
	Status    string
	HeldBy    *uint64
	HeldUntil *time.Time
	BookingID *uint64
}
