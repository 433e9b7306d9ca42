package model

import "time"

// Booking status values.  PENDING may transition to CONFIRMED or
// CANCELLED exactly once; both of those states are terminal.
const (
	BookingStatusPending   = "PENDING"   // created, awaiting payment outcome
	BookingStatusConfirmed = "CONFIRMED" // payment succeeded (terminal)
	BookingStatusCancelled = "CANCELLED" // payment failed or rolled back (terminal)
)

// Booking records a user's purchase of one or more seats for a showtime.
// It is created only from seats the user already holds and stays PENDING
// until the payment bridge reports an outcome.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – user who owns the booking.
//  ShowtimeID       – showtime being booked.
//  Status           – PENDING, CONFIRMED or CANCELLED.
//  TotalAmountCents – total price in cents across all seats.
//  PaymentRef       – reference passed to the payment bridge (nullable).
//  ReservedUntil    – soft deadline while awaiting payment (nullable).
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Booking struct {
	ID               uint64     // bookings.id
	UserID           uint64     // bookings.user_id
	ShowtimeID       uint64     // bookings.showtime_id
	Status           string     // bookings.status
	TotalAmountCents uint32     // bookings.total_amount_cents
	PaymentRef       *string    // bookings.payment_ref (nullable)
	ReservedUntil    *time.Time // bookings.reserved_until (nullable)
	CreatedAt        time.Time  // bookings.created_at
	UpdatedAt        time.Time  // bookings.updated_at
}

// Terminal reports whether the booking has reached a final state.
func (b *Booking) Terminal() bool {
	return b.Status == BookingStatusConfirmed || b.Status == BookingStatusCancelled
}

// BookingSeat links a booking to one seat of its showtime.  Rows are
// written only after every seat of the booking passed the booked
// transition and are removed when the booking is cancelled; they never
// outlive their booking.
//
// Fields:
//  ID         – primary key identifier.
//  BookingID  – owning booking.
//  ShowtimeID – showtime of the seat.
//  SeatLabel  – label of the booked seat.
//  PriceCents – price paid for this seat in cents.
//  CreatedAt  – creation timestamp.
type BookingSeat struct {
	ID         uint64    // booking_seats.id
	BookingID  uint64    // booking_seats.booking_id
	ShowtimeID uint64    // booking_seats.showtime_id
	SeatLabel  string    // booking_seats.seat_label
	PriceCents uint32    // booking_seats.price_cents
	CreatedAt  time.Time // booking_seats.created_at
}
