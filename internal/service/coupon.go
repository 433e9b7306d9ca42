package service

import (
	"context"
	"errors"
	"log"

	"github.com/iliyamo/cinema-ticketing/internal/clock"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// CouponLedger attaches coupons to bookings and keeps the redemption
// bookkeeping consistent: per application exactly one booking_coupons
// row is written, the user's coupon instance flips to used exactly
// once, and the coupon's global usage counter moves with it. The
// counter is an analytics aggregate and does not need to be
// linearizable with concurrent redemptions of the same coupon by other
// users; the uniqueness and the instance flip are what must never
// double-fire.
type CouponLedger struct {
	coupons  CouponStore
	bookings BookingStore
	clk      clock.Clock
}

// NewCouponLedger constructs a CouponLedger. All dependencies must be
// non-nil.
func NewCouponLedger(coupons CouponStore, bookings BookingStore, clk clock.Clock) *CouponLedger {
	if coupons == nil || bookings == nil || clk == nil {
		panic("nil dependency passed to NewCouponLedger")
	}
	return &CouponLedger{coupons: coupons, bookings: bookings, clk: clk}
}

// Apply attaches the coupon to the user's booking. Validation failures
// return CouponNotEligibleError with the specific reason and leave no
// mutation behind; a repeated application of the same coupon to the
// same booking fails with ErrCouponAlreadyApplied.
func (l *CouponLedger) Apply(ctx context.Context, bookingID, userID, couponID uint64) (*model.BookingCoupon, error) {
	booking, err := l.bookings.Get(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, ErrNotFound
	}
	if booking.Terminal() {
		return nil, &CouponNotEligibleError{Reason: CouponReasonBookingClosed}
	}

	coupon, err := l.coupons.GetCoupon(ctx, couponID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	now := l.clk.Now()
	switch {
	case coupon.Status != model.CouponStatusActive:
		return nil, &CouponNotEligibleError{Reason: CouponReasonInactive}
	case now.Before(coupon.StartDate):
		return nil, &CouponNotEligibleError{Reason: CouponReasonNotStarted}
	case now.After(coupon.EndDate):
		return nil, &CouponNotEligibleError{Reason: CouponReasonExpired}
	case booking.TotalAmountCents < coupon.MinPurchaseCents:
		return nil, &CouponNotEligibleError{Reason: CouponReasonBelowMinimum}
	case coupon.UsedCount >= coupon.UsageLimit:
		return nil, &CouponNotEligibleError{Reason: CouponReasonLimitExhausted}
	}
	uc, err := l.coupons.GetUserCoupon(ctx, userID, couponID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &CouponNotEligibleError{Reason: CouponReasonNotHeld}
	}
	if err != nil {
		return nil, err
	}
	if uc.IsUsed {
		return nil, &CouponNotEligibleError{Reason: CouponReasonAlreadyUsed}
	}

	// The booking_coupons row is the source of truth for "applied";
	// its unique key is what rejects a concurrent double application.
	bc := &model.BookingCoupon{
		BookingID:     bookingID,
		CouponID:      couponID,
		DiscountCents: coupon.DiscountCents(booking.TotalAmountCents),
	}
	if err := l.coupons.CreateBookingCoupon(ctx, bc); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrCouponAlreadyApplied
		}
		return nil, err
	}

	used, err := l.coupons.MarkUserCouponUsed(ctx, userID, couponID, now)
	if err != nil {
		l.compensateApply(ctx, bookingID, couponID, userID, false)
		return nil, err
	}
	if !used {
		// Lost a race against another redemption of the same instance.
		l.compensateApply(ctx, bookingID, couponID, userID, false)
		return nil, &CouponNotEligibleError{Reason: CouponReasonAlreadyUsed}
	}

	bumped, err := l.coupons.IncrementUsedCount(ctx, couponID)
	if err != nil {
		l.compensateApply(ctx, bookingID, couponID, userID, true)
		return nil, err
	}
	if !bumped {
		l.compensateApply(ctx, bookingID, couponID, userID, true)
		return nil, &CouponNotEligibleError{Reason: CouponReasonLimitExhausted}
	}
	return bc, nil
}

// compensateApply rolls back a partially executed Apply.
func (l *CouponLedger) compensateApply(ctx context.Context, bookingID, couponID, userID uint64, resetInstance bool) {
	if resetInstance {
		if _, err := l.coupons.ResetUserCoupon(ctx, userID, couponID); err != nil {
			log.Printf("booking %d: coupon %d instance reset failed: %v", bookingID, couponID, err)
		}
	}
	if _, err := l.coupons.DeleteBookingCoupon(ctx, bookingID, couponID); err != nil {
		log.Printf("booking %d: coupon %d application cleanup failed: %v", bookingID, couponID, err)
	}
}

// Revoke reverses a coupon application, typically because the booking
// was cancelled: the booking_coupons row is removed, the user's
// instance becomes redeemable again and the usage counter is restored
// without ever dropping below zero. Revoking an application that was
// already reverted is a no-op. Like Apply, a booking belonging to a
// different user is reported as ErrNotFound before anything is touched.
func (l *CouponLedger) Revoke(ctx context.Context, bookingID, couponID, userID uint64) error {
	booking, err := l.bookings.Get(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if booking.UserID != userID {
		return ErrNotFound
	}
	removed, err := l.coupons.DeleteBookingCoupon(ctx, bookingID, couponID)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	if _, err := l.coupons.ResetUserCoupon(ctx, userID, couponID); err != nil {
		return err
	}
	return l.coupons.DecrementUsedCount(ctx, couponID)
}

// RevokeAttached reverses whatever coupon is attached to the booking,
// if any. It is invoked by the orchestrator on cancellation.
func (l *CouponLedger) RevokeAttached(ctx context.Context, bookingID, userID uint64) error {
	bc, err := l.coupons.FindBookingCoupon(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return l.Revoke(ctx, bookingID, bc.CouponID, userID)
}

// ResolveCode maps a customer-facing coupon code to its coupon.
func (l *CouponLedger) ResolveCode(ctx context.Context, code string) (*model.Coupon, error) {
	coupon, err := l.coupons.GetCouponByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return coupon, nil
}

// ListUnused returns the caller's redeemable coupons: active, inside
// their validity window and with an unused instance held by the user.
func (l *CouponLedger) ListUnused(ctx context.Context, userID uint64) ([]model.Coupon, error) {
	return l.coupons.ListUnusedByUser(ctx, userID, l.clk.Now())
}
