package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// BookingRepo provides data access to the bookings and booking_seats
// tables.  Booking creation and the seat booked-transition are not
// wrapped in one cross-table transaction; the orchestrator drives them
// step by step and compensates on partial failure, so every method here
// is an independent statement.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, user_id, showtime_id, status, total_amount_cents, payment_ref, reserved_until, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*model.Booking, error) {
	var b model.Booking
	if err := row.Scan(&b.ID, &b.UserID, &b.ShowtimeID, &b.Status, &b.TotalAmountCents,
		&b.PaymentRef, &b.ReservedUntil, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts a booking row and populates its ID.  Status must be set
// by the caller; the orchestrator always inserts PENDING.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO bookings (user_id, showtime_id, status, total_amount_cents, payment_ref, reserved_until)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		b.UserID, b.ShowtimeID, b.Status, b.TotalAmountCents, b.PaymentRef, nullTime(b.ReservedUntil),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// Get returns a booking by ID.  ErrNotFound is returned when the booking
// does not exist.
func (r *BookingRepo) Get(ctx context.Context, id uint64) (*model.Booking, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Delete removes a booking row.  It is the compensation for a booking
// whose seat transition could not complete; booking_seats rows cascade.
func (r *BookingRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	return err
}

// UpdateStatusIfPending moves a booking out of PENDING in one conditional
// update.  It returns false when the booking was already terminal (or
// does not exist), which keeps finalization idempotent under concurrent
// outcome deliveries.
func (r *BookingRepo) UpdateStatusIfPending(ctx context.Context, id uint64, status string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`,
		status, id, model.BookingStatusPending,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetPaymentRef stores the reference under which the charge was
// requested from the payment bridge.
func (r *BookingRepo) SetPaymentRef(ctx context.Context, id uint64, ref string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET payment_ref = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`, ref, id)
	return err
}

// CreateSeats inserts the booking_seats join rows for a booking.  It is
// called only after every seat of the booking passed the booked
// transition.  Passing an empty slice has no effect and returns nil.
func (r *BookingRepo) CreateSeats(ctx context.Context, seats []model.BookingSeat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO booking_seats (booking_id, showtime_id, seat_label, price_cents) VALUES `
	args := make([]any, 0, len(seats)*4)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, s.BookingID, s.ShowtimeID, s.SeatLabel, s.PriceCents)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// DeleteSeats removes all booking_seats rows of a booking.  Used when a
// cancelled booking's inventory is rolled back.
func (r *BookingRepo) DeleteSeats(ctx context.Context, bookingID uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM booking_seats WHERE booking_id = ?`, bookingID)
	return err
}

// ListSeats returns the booking_seats rows of a booking ordered by label.
func (r *BookingRepo) ListSeats(ctx context.Context, bookingID uint64) ([]model.BookingSeat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, booking_id, showtime_id, seat_label, price_cents, created_at
		 FROM booking_seats WHERE booking_id = ? ORDER BY seat_label`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.BookingSeat
	for rows.Next() {
		var s model.BookingSeat
		if err := rows.Scan(&s.ID, &s.BookingID, &s.ShowtimeID, &s.SeatLabel, &s.PriceCents, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns all bookings of a user, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
