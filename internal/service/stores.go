package service

import (
	"context"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// SeatStore is the seat inventory the reservation components operate
// on. CompareAndSet must be atomic: it mutates the seat only when the
// current state matches the expectation and reports false otherwise,
// so that among concurrent attempts on one seat at most one succeeds.
// Implementations signal an unknown seat from Get with
// repository.ErrNotFound.
type SeatStore interface {
	ListByShowtime(ctx context.Context, showtimeID uint64) ([]model.Seat, error)
	Get(ctx context.Context, key model.SeatKey) (*model.Seat, error)
	CompareAndSet(ctx context.Context, key model.SeatKey, expect model.SeatExpect, next model.SeatChange) (bool, error)
}

// BookingStore persists bookings and their seat join rows.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	Get(ctx context.Context, id uint64) (*model.Booking, error)
	Delete(ctx context.Context, id uint64) error
	UpdateStatusIfPending(ctx context.Context, id uint64, status string) (bool, error)
	SetPaymentRef(ctx context.Context, id uint64, ref string) error
	CreateSeats(ctx context.Context, seats []model.BookingSeat) error
	DeleteSeats(ctx context.Context, bookingID uint64) error
	ListSeats(ctx context.Context, bookingID uint64) ([]model.BookingSeat, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
}

// CouponStore persists coupons, per-user coupon instances and the
// booking_coupons applications.
type CouponStore interface {
	GetCoupon(ctx context.Context, id uint64) (*model.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error)
	GetUserCoupon(ctx context.Context, userID, couponID uint64) (*model.UserCoupon, error)
	MarkUserCouponUsed(ctx context.Context, userID, couponID uint64, usedAt time.Time) (bool, error)
	ResetUserCoupon(ctx context.Context, userID, couponID uint64) (bool, error)
	CreateBookingCoupon(ctx context.Context, bc *model.BookingCoupon) error
	FindBookingCoupon(ctx context.Context, bookingID uint64) (*model.BookingCoupon, error)
	DeleteBookingCoupon(ctx context.Context, bookingID, couponID uint64) (bool, error)
	IncrementUsedCount(ctx context.Context, couponID uint64) (bool, error)
	DecrementUsedCount(ctx context.Context, couponID uint64) error
	ListUnusedByUser(ctx context.Context, userID uint64, now time.Time) ([]model.Coupon, error)
}

// PaymentBridge is the external payment collaborator. The orchestrator
// only requests a charge; the outcome arrives later through
// FinalizeBooking and the bridge owns any retries against the provider.
type PaymentBridge interface {
	RequestCharge(ctx context.Context, b *model.Booking, seats []model.BookingSeat) (paymentRef string, err error)
}

// ConfirmedNotifier receives successfully confirmed bookings, e.g. to
// publish a message for downstream consumers. Failures are logged by
// the orchestrator and never fail the finalization.
type ConfirmedNotifier interface {
	BookingConfirmed(ctx context.Context, b *model.Booking, seats []model.BookingSeat) error
}
