package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// mysqlDuplicateEntry is the MySQL error number for a unique key
// violation (ER_DUP_ENTRY).
const mysqlDuplicateEntry = 1062

// CouponRepo provides data access to the coupons, user_coupons and
// booking_coupons tables.  The unique key on (booking_id, coupon_id) in
// booking_coupons is what makes coupon application to a booking happen
// at most once; a violated insert surfaces as ErrDuplicate.
type CouponRepo struct {
	db *sql.DB
}

// NewCouponRepo returns a new CouponRepo bound to the provided database.
func NewCouponRepo(db *sql.DB) *CouponRepo { return &CouponRepo{db: db} }

const couponColumns = `id, code, discount_type, discount_value, min_purchase_cents, start_date, end_date, usage_limit, used_count, status, created_at`

func scanCoupon(row interface{ Scan(...any) error }) (*model.Coupon, error) {
	var c model.Coupon
	if err := row.Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MinPurchaseCents,
		&c.StartDate, &c.EndDate, &c.UsageLimit, &c.UsedCount, &c.Status, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCoupon returns a coupon by ID.
func (r *CouponRepo) GetCoupon(ctx context.Context, id uint64) (*model.Coupon, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = ?`, id)
	c, err := scanCoupon(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetCouponByCode returns a coupon by its customer-facing code.
func (r *CouponRepo) GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = ?`, code)
	c, err := scanCoupon(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetUserCoupon returns the user's instance of a coupon.
func (r *CouponRepo) GetUserCoupon(ctx context.Context, userID, couponID uint64) (*model.UserCoupon, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, coupon_id, is_used, used_date FROM user_coupons WHERE user_id = ? AND coupon_id = ?`,
		userID, couponID)
	var uc model.UserCoupon
	err := row.Scan(&uc.ID, &uc.UserID, &uc.CouponID, &uc.IsUsed, &uc.UsedDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &uc, nil
}

// MarkUserCouponUsed consumes the user's coupon instance in one
// conditional update.  It returns false when the instance was already
// used (or does not exist), so the false→true transition happens exactly
// once.
func (r *CouponRepo) MarkUserCouponUsed(ctx context.Context, userID, couponID uint64, usedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE user_coupons SET is_used = TRUE, used_date = ? WHERE user_id = ? AND coupon_id = ? AND is_used = FALSE`,
		usedAt.UTC(), userID, couponID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ResetUserCoupon reverses a consumed coupon instance.  It returns false
// when the instance was not marked used, making the reversal idempotent.
func (r *CouponRepo) ResetUserCoupon(ctx context.Context, userID, couponID uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE user_coupons SET is_used = FALSE, used_date = NULL WHERE user_id = ? AND coupon_id = ? AND is_used = TRUE`,
		userID, couponID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CreateBookingCoupon records that a coupon was applied to a booking.
// ErrDuplicate is returned when the (booking, coupon) pair already has a
// row, which is how double application is rejected.
func (r *CouponRepo) CreateBookingCoupon(ctx context.Context, bc *model.BookingCoupon) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO booking_coupons (booking_id, coupon_id, discount_cents) VALUES (?, ?, ?)`,
		bc.BookingID, bc.CouponID, bc.DiscountCents)
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return ErrDuplicate
	}
	return err
}

// FindBookingCoupon returns the coupon application attached to a
// booking, if any.  ErrNotFound is returned when the booking has none.
func (r *CouponRepo) FindBookingCoupon(ctx context.Context, bookingID uint64) (*model.BookingCoupon, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT booking_id, coupon_id, discount_cents, created_at FROM booking_coupons WHERE booking_id = ?`,
		bookingID)
	var bc model.BookingCoupon
	err := row.Scan(&bc.BookingID, &bc.CouponID, &bc.DiscountCents, &bc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bc, nil
}

// DeleteBookingCoupon removes a coupon application.  It returns false
// when no row existed, so reversal stays idempotent.
func (r *CouponRepo) DeleteBookingCoupon(ctx context.Context, bookingID, couponID uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM booking_coupons WHERE booking_id = ? AND coupon_id = ?`, bookingID, couponID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IncrementUsedCount bumps a coupon's global usage counter, refusing to
// pass usage_limit.  It returns false when the limit was already
// reached.
func (r *CouponRepo) IncrementUsedCount(ctx context.Context, couponID uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE coupons SET used_count = used_count + 1 WHERE id = ? AND used_count < usage_limit`, couponID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DecrementUsedCount restores a coupon's usage counter after a reversal,
// never taking it below zero.
func (r *CouponRepo) DecrementUsedCount(ctx context.Context, couponID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE coupons SET used_count = used_count - 1 WHERE id = ? AND used_count > 0`, couponID)
	return err
}

// ListUnusedByUser returns the active, in-window coupons for which the
// user still holds an unused instance.
func (r *CouponRepo) ListUnusedByUser(ctx context.Context, userID uint64, now time.Time) ([]model.Coupon, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.code, c.discount_type, c.discount_value, c.min_purchase_cents,
		        c.start_date, c.end_date, c.usage_limit, c.used_count, c.status, c.created_at
		 FROM coupons c
		 JOIN user_coupons uc ON uc.coupon_id = c.id
		 WHERE uc.user_id = ? AND uc.is_used = FALSE
		   AND c.status = ? AND c.start_date <= ? AND c.end_date >= ?
		 ORDER BY c.end_date`,
		userID, model.CouponStatusActive, now.UTC(), now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
