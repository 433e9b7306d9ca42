// Package service implements the reservation and booking components on
// top of the repository layer: hold management, lazy hold expiration,
// the booking saga and the coupon ledger. Every failure a caller can
// act on is one of the error kinds defined in this file; raw storage
// errors never cross the service boundary for conditional-update
// conflicts.
package service

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound reports an unknown seat, showtime, booking or coupon
// identity.
var ErrNotFound = errors.New("not found")

// ErrNoSeats reports a request that named no valid seat labels.
var ErrNoSeats = errors.New("no seats requested")

// ErrCouponAlreadyApplied reports a second application of the same
// coupon to the same booking. Exactly one booking_coupons row exists
// after the first application; the duplicate attempt is rejected
// without mutation.
var ErrCouponAlreadyApplied = errors.New("coupon already applied to this booking")

// SeatUnavailableError reports seats that could not be held because
// another user holds or booked them. The caller may pick different
// seats or retry later; no seat of the failed request stays held.
type SeatUnavailableError struct {
	Seats []string
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seats unavailable: %s", strings.Join(e.Seats, ", "))
}

// NotHeldByCallerError reports an attempt to release, extend or book
// seats the caller does not currently hold. It usually indicates stale
// client state, such as a hold that expired before the request arrived.
type NotHeldByCallerError struct {
	Seats []string
}

func (e *NotHeldByCallerError) Error() string {
	return fmt.Sprintf("seats not held by caller: %s", strings.Join(e.Seats, ", "))
}

// BookingFailedError reports a booking whose booked-transition lost a
// race mid-flight. The pending booking row and any partial seat
// transitions were rolled back before this error was returned; the
// caller should retry the whole reservation flow.
type BookingFailedError struct {
	Seats []string
}

func (e *BookingFailedError) Error() string {
	return fmt.Sprintf("booking failed, conflicting seats: %s", strings.Join(e.Seats, ", "))
}

// Coupon ineligibility reasons surfaced to the user.
const (
	CouponReasonInactive       = "coupon is inactive"
	CouponReasonNotStarted     = "coupon is not valid yet"
	CouponReasonExpired        = "coupon has expired"
	CouponReasonBelowMinimum   = "booking total is below the minimum purchase"
	CouponReasonLimitExhausted = "coupon usage limit exhausted"
	CouponReasonNotHeld        = "user does not hold this coupon"
	CouponReasonAlreadyUsed    = "coupon already used"
	CouponReasonBookingClosed  = "booking is already finalized"
)

// CouponNotEligibleError reports a coupon validation failure. It is
// terminal for the attempt; no mutation occurred.
type CouponNotEligibleError struct {
	Reason string
}

func (e *CouponNotEligibleError) Error() string {
	return fmt.Sprintf("coupon not eligible: %s", e.Reason)
}
