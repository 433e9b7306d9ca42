package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// SeatRepo provides data access to the seats table, which carries the
// per-showtime seat inventory.  CompareAndSet is the single atomic
// primitive every higher component builds on: it is issued as one
// conditional UPDATE so that among concurrent attempts on the same seat
// at most one can succeed.  No caller above this layer may decide a
// mutation from a separate read.
//
// The MySQL connection must be opened with clientFoundRows=true so that
// RowsAffected reports matched rows; without it an update that leaves
// column values unchanged would be indistinguishable from a conflict.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a new SeatRepo bound to the provided database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

const seatColumns = `showtime_id, seat_label, status, price_cents, held_by, held_until, booking_id, created_at, updated_at`

func scanSeat(row interface{ Scan(...any) error }) (*model.Seat, error) {
	var s model.Seat
	if err := row.Scan(&s.ShowtimeID, &s.SeatLabel, &s.Status, &s.PriceCents,
		&s.HeldBy, &s.HeldUntil, &s.BookingID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListByShowtime returns every seat of the given showtime ordered by
// label.  Stored statuses are returned as-is; interpreting expired holds
// as available is the reader's concern.
func (r *SeatRepo) ListByShowtime(ctx context.Context, showtimeID uint64) ([]model.Seat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE showtime_id = ? ORDER BY seat_label`,
		showtimeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// Get returns a single seat by its showtime and label.  ErrNotFound is
// returned when no such seat exists.
func (r *SeatRepo) Get(ctx context.Context, key model.SeatKey) (*model.Seat, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE showtime_id = ? AND seat_label = ?`,
		key.ShowtimeID, key.SeatLabel,
	)
	s, err := scanSeat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CompareAndSet transitions a seat from the expected state to the next
// state in one conditional UPDATE.  It returns false when the seat did
// not match the precondition (including when the row does not exist);
// in that case nothing was mutated.  Timestamps in the precondition are
// compared in UTC.
func (r *SeatRepo) CompareAndSet(ctx context.Context, key model.SeatKey, expect model.SeatExpect, next model.SeatChange) (bool, error) {
	query := `UPDATE seats
	          SET status = ?, held_by = ?, held_until = ?, booking_id = ?, updated_at = UTC_TIMESTAMP()
	          WHERE showtime_id = ? AND seat_label = ? AND status = ?`
	args := []any{
		next.Status, next.HeldBy, nullTime(next.HeldUntil), next.BookingID,
		key.ShowtimeID, key.SeatLabel, expect.Status,
	}
	if expect.HeldBy != nil {
		query += ` AND held_by = ?`
		args = append(args, *expect.HeldBy)
	}
	if expect.ExpiredAtOrBefore != nil {
		query += ` AND held_until <= ?`
		args = append(args, expect.ExpiredAtOrBefore.UTC())
	}
	if expect.LiveAt != nil {
		query += ` AND held_until > ?`
		args = append(args, expect.LiveAt.UTC())
	}
	if expect.BookingID != nil {
		query += ` AND booking_id = ?`
		args = append(args, *expect.BookingID)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// CreateBulk inserts seat rows for a showtime.  It is used when a
// showtime's inventory is provisioned; all seats start AVAILABLE.
func (r *SeatRepo) CreateBulk(ctx context.Context, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO seats (showtime_id, seat_label, status, price_cents) VALUES `
	args := make([]any, 0, len(seats)*4)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, s.ShowtimeID, s.SeatLabel, model.SeatStatusAvailable, s.PriceCents)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// nullTime converts an optional timestamp into a driver-friendly value,
// normalising to UTC so that comparisons against UTC_TIMESTAMP() hold.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
