package model

import "time"

// Coupon discount types.
const (
	DiscountTypePercent = "PERCENT" // DiscountValue is a percentage of the total
	DiscountTypeFixed   = "FIXED"   // DiscountValue is an amount in cents
)

// Coupon status values.
const (
	CouponStatusActive   = "ACTIVE"
	CouponStatusInactive = "INACTIVE"
)

// Coupon defines a discount rule customers can redeem against a booking.
// UsedCount never exceeds UsageLimit; the counter is an aggregate across
// all users and is not required to be exactly linearizable with
// concurrent redemptions.
//
// Fields:
//  ID               – primary key identifier.
//  Code             – human-facing coupon code (unique).
//  DiscountType     – PERCENT or FIXED.
//  DiscountValue    – percent (0–100) or amount in cents.
//  MinPurchaseCents – minimum booking total for eligibility.
//  StartDate        – first instant the coupon is valid.
//  EndDate          – last instant the coupon is valid.
//  UsageLimit       – maximum number of global redemptions.
//  UsedCount        – redemptions so far.
//  Status           – ACTIVE or INACTIVE.
type Coupon struct {
	ID               uint64    // coupons.id
	Code             string    // coupons.code
	DiscountType     string    // coupons.discount_type
	DiscountValue    uint32    // coupons.discount_value
	MinPurchaseCents uint32    // coupons.min_purchase_cents
	StartDate        time.Time // coupons.start_date
	EndDate          time.Time // coupons.end_date
	UsageLimit       uint32    // coupons.usage_limit
	UsedCount        uint32    // coupons.used_count
	Status           string    // coupons.status
	CreatedAt        time.Time // coupons.created_at
}

// DiscountCents computes the discount this coupon grants against the
// given booking total.  The result never exceeds the total itself.
func (c *Coupon) DiscountCents(totalCents uint32) uint32 {
	var d uint32
	switch c.DiscountType {
	case DiscountTypePercent:
		d = uint32(uint64(totalCents) * uint64(c.DiscountValue) / 100)
	case DiscountTypeFixed:
		d = c.DiscountValue
	}
	if d > totalCents {
		d = totalCents
	}
	return d
}

// UserCoupon is a user's redeemable instance of a coupon.  IsUsed flips
// false→true exactly once when the coupon is applied to a booking and is
// reset only by the administrative revoke that also restores the global
// counter.
//
// Fields:
//  ID       – primary key identifier.
//  UserID   – owner of this instance.
//  CouponID – coupon being referenced (lookup only, no lifecycle ownership).
//  IsUsed   – whether the instance has been consumed.
//  UsedDate – when it was consumed (nullable).
type UserCoupon struct {
	ID       uint64     // user_coupons.id
	UserID   uint64     // user_coupons.user_id
	CouponID uint64     // user_coupons.coupon_id
	IsUsed   bool       // user_coupons.is_used
	UsedDate *time.Time // user_coupons.used_date (nullable)
}

// BookingCoupon records the application of a coupon to a booking along
// with the discount granted.  The (BookingID, CouponID) pair is unique;
// the row is the single source of truth for "coupon was applied here".
//
// Fields:
//  BookingID      – booking the coupon was applied to.
//  CouponID       – coupon that was applied.
//  DiscountCents  – discount granted in cents.
//  CreatedAt      – creation timestamp.
type BookingCoupon struct {
	BookingID     uint64    // booking_coupons.booking_id
	CouponID      uint64    // booking_coupons.coupon_id
	DiscountCents uint32    // booking_coupons.discount_cents
	CreatedAt     time.Time // booking_coupons.created_at
}
