package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// activeCoupon builds a 10% coupon valid around the given instant.
func activeCoupon(now time.Time) model.Coupon {
	return model.Coupon{
		ID:            100,
		Code:          "SPRING10",
		DiscountType:  model.DiscountTypePercent,
		DiscountValue: 10,
		StartDate:     now.Add(-24 * time.Hour),
		EndDate:       now.Add(24 * time.Hour),
		UsageLimit:    50,
		Status:        model.CouponStatusActive,
	}
}

// newAppliedFixture creates a pending booking for user 7 with two
// booked seats and a granted, unapplied coupon.
func newAppliedFixture(t *testing.T) (*bookingFixture, *model.Booking, model.Coupon) {
	t.Helper()
	f := newBookingFixture(t, "A1", "A2")
	f.hold(t, 7, "A1", "A2")
	booking, err := f.orch.CreateBooking(context.Background(), 7, showtimeID, []string{"A1", "A2"})
	require.NoError(t, err)

	coupon := activeCoupon(f.clk.Now())
	f.coupons.addCoupon(coupon)
	f.coupons.grant(7, coupon.ID)
	return f, booking, coupon
}

func TestApplyGrantsDiscount(t *testing.T) {
	f, booking, coupon := newAppliedFixture(t)

	applied, err := f.ledger.Apply(context.Background(), booking.ID, 7, coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(300), applied.DiscountCents) // 10% of 3000

	assert.Equal(t, 1, f.coupons.appliedCount())
	inst := f.coupons.instance(7, coupon.ID)
	assert.True(t, inst.IsUsed)
	require.NotNil(t, inst.UsedDate)
	assert.Equal(t, uint32(1), f.coupons.coupon(coupon.ID).UsedCount)
}

func TestApplyCapsFixedDiscountAtTotal(t *testing.T) {
	f, booking, _ := newAppliedFixture(t)
	big := model.Coupon{
		ID:            200,
		Code:          "ALLIN",
		DiscountType:  model.DiscountTypeFixed,
		DiscountValue: 99999,
		StartDate:     f.clk.Now().Add(-time.Hour),
		EndDate:       f.clk.Now().Add(time.Hour),
		UsageLimit:    1,
		Status:        model.CouponStatusActive,
	}
	f.coupons.addCoupon(big)
	f.coupons.grant(7, big.ID)

	applied, err := f.ledger.Apply(context.Background(), booking.ID, 7, big.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.TotalAmountCents, applied.DiscountCents)
}

func TestApplyEligibilityReasons(t *testing.T) {
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		mutate func(*model.Coupon)
		reason string
	}{
		{"inactive", func(c *model.Coupon) { c.Status = model.CouponStatusInactive }, CouponReasonInactive},
		{"not started", func(c *model.Coupon) { c.StartDate = now.Add(time.Hour) }, CouponReasonNotStarted},
		{"expired", func(c *model.Coupon) { c.EndDate = now.Add(-time.Hour) }, CouponReasonExpired},
		{"below minimum", func(c *model.Coupon) { c.MinPurchaseCents = 5000 }, CouponReasonBelowMinimum},
		{"limit exhausted", func(c *model.Coupon) { c.UsedCount = c.UsageLimit }, CouponReasonLimitExhausted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, booking, coupon := newAppliedFixture(t)
			tc.mutate(&coupon)
			f.coupons.addCoupon(coupon) // overwrite with the mutated variant

			_, err := f.ledger.Apply(context.Background(), booking.ID, 7, coupon.ID)
			var ineligible *CouponNotEligibleError
			require.ErrorAs(t, err, &ineligible)
			assert.Equal(t, tc.reason, ineligible.Reason)
			assert.Zero(t, f.coupons.appliedCount())
		})
	}
}

func TestApplyToForeignBookingIsHidden(t *testing.T) {
	f, booking, coupon := newAppliedFixture(t)

	_, err := f.ledger.Apply(context.Background(), booking.ID, 8, coupon.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.coupons.appliedCount())
}

func TestApplyWithoutInstanceFails(t *testing.T) {
	f, booking, coupon := newAppliedFixture(t)
	other := coupon
	other.ID = 300
	other.Code = "OTHER"
	f.coupons.addCoupon(other) // exists but was never granted to user 7

	_, err := f.ledger.Apply(context.Background(), booking.ID, 7, other.ID)
	var ineligible *CouponNotEligibleError
	require.ErrorAs(t, err, &ineligible)
	assert.Equal(t, CouponReasonNotHeld, ineligible.Reason)
}

func TestApplyUsedInstanceFails(t *testing.T) {
	f, booking, coupon := newAppliedFixture(t)
	_, err := f.ledger.Apply(context.Background(), booking.ID, 7, coupon.ID)
	require.NoError(t, err)

	_, err = f.ledger.Apply(context.Background(), booking.ID, 7, coupon.ID)
	var ineligible *CouponNotEligibleError
	require.ErrorAs(t, err, &ineligible)
	assert.Equal(t, CouponReasonAlreadyUsed, ineligible.Reason)
	assert.Equal(t, 1, f.coupons.appliedCount())
	assert.Equal(t, uint32(1), f.coupons.coupon(coupon.ID).UsedCount)
}

func TestApplyDuplicateRowRejected(t *testing.T) {
	f, booking, coupon := newAppliedFixture(t)
	_, err := f.ledger.Apply(context.Background(), booking.ID, 7, coupon.ID)
	require.NoError(t, err)

	// Simulate the interleaving where the instance was reset while the
	// booking_coupons row survived; the unique key must still reject a
	// second application.
	_, err = f.coupons.ResetUserCoupon(context.Background(), 7, coupon.ID)
	require.NoError(t, err)

	_, err = f.ledger.Apply(context.Background(), booking.ID, 7, coupon.ID)
	assert.ErrorIs(t, err, ErrCouponAlreadyApplied)
	assert.Equal(t, 1, f.coupons.appliedCount())
}

func TestApplyToClosedBookingFails(t *testing.T) {
	f, booking, coupon := newAppliedFixture(t)
	_, err := f.orch.FinalizeBooking(context.Background(), booking.ID, true)
	require.NoError(t, err)

	_, err = f.ledger.Apply(context.Background(), booking.ID, 7, coupon.ID)
	var ineligible *CouponNotEligibleError
	require.ErrorAs(t, err, &ineligible)
	assert.Equal(t, CouponReasonBookingClosed, ineligible.Reason)
}

func TestRevokeRestoresEverything(t *testing.T) {
	f, booking, coupon := newAppliedFixture(t)
	_, err := f.ledger.Apply(context.Background(), booking.ID, 7, coupon.ID)
	require.NoError(t, err)

	require.NoError(t, f.ledger.Revoke(context.Background(), booking.ID, coupon.ID, 7))

	assert.Zero(t, f.coupons.appliedCount())
	assert.False(t, f.coupons.instance(7, coupon.ID).IsUsed)
	assert.Zero(t, f.coupons.coupon(coupon.ID).UsedCount)
}

func TestRevokeForeignBookingIsHidden(t *testing.T) {
	f, booking, coupon := newAppliedFixture(t)
	_, err := f.ledger.Apply(context.Background(), booking.ID, 7, coupon.ID)
	require.NoError(t, err)

	// User 99 names user 7's booking; the ledger must stay untouched.
	err = f.ledger.Revoke(context.Background(), booking.ID, coupon.ID, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 1, f.coupons.appliedCount())
	assert.True(t, f.coupons.instance(7, coupon.ID).IsUsed)
	assert.Equal(t, uint32(1), f.coupons.coupon(coupon.ID).UsedCount)
}

func TestRevokeUnknownBooking(t *testing.T) {
	f, _, coupon := newAppliedFixture(t)
	err := f.ledger.Revoke(context.Background(), 999, coupon.ID, 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeIsIdempotent(t *testing.T) {
	f, booking, coupon := newAppliedFixture(t)
	_, err := f.ledger.Apply(context.Background(), booking.ID, 7, coupon.ID)
	require.NoError(t, err)

	require.NoError(t, f.ledger.Revoke(context.Background(), booking.ID, coupon.ID, 7))
	// The second revoke finds nothing to remove and must not touch the
	// counter again.
	require.NoError(t, f.ledger.Revoke(context.Background(), booking.ID, coupon.ID, 7))
	assert.Zero(t, f.coupons.coupon(coupon.ID).UsedCount)
}

func TestResolveCode(t *testing.T) {
	f, _, coupon := newAppliedFixture(t)

	got, err := f.ledger.ResolveCode(context.Background(), coupon.Code)
	require.NoError(t, err)
	assert.Equal(t, coupon.ID, got.ID)

	_, err = f.ledger.ResolveCode(context.Background(), "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListUnusedFiltersRedeemable(t *testing.T) {
	f, booking, coupon := newAppliedFixture(t)

	expired := activeCoupon(f.clk.Now())
	expired.ID = 101
	expired.Code = "OLD"
	expired.EndDate = f.clk.Now().Add(-time.Hour)
	f.coupons.addCoupon(expired)
	f.coupons.grant(7, expired.ID)

	items, err := f.ledger.ListUnused(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, coupon.ID, items[0].ID)

	// Once redeemed the coupon disappears from the list.
	_, err = f.ledger.Apply(context.Background(), booking.ID, 7, coupon.ID)
	require.NoError(t, err)
	items, err = f.ledger.ListUnused(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, items)
}
