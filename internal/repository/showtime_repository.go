package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// ShowtimeRepo encapsulates read access to the showtimes table.  For the
// reservation core showtimes are immutable reference data; creation and
// editing belong to the administrative surface outside this service.
type ShowtimeRepo struct {
	db *sql.DB
}

// NewShowtimeRepo constructs a ShowtimeRepo given a DB handle.
func NewShowtimeRepo(db *sql.DB) *ShowtimeRepo {
	return &ShowtimeRepo{db: db}
}

// Get returns a showtime by ID.  ErrNotFound is returned when the
// showtime does not exist.
func (r *ShowtimeRepo) Get(ctx context.Context, id uint64) (*model.Showtime, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, movie_title, hall_name, starts_at, created_at FROM showtimes WHERE id = ?`, id)
	var st model.Showtime
	err := row.Scan(&st.ID, &st.MovieTitle, &st.HallName, &st.StartsAt, &st.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ListUpcoming returns showtimes that have not started yet, soonest
// first.  It backs the public catalog endpoint.
func (r *ShowtimeRepo) ListUpcoming(ctx context.Context) ([]model.Showtime, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, movie_title, hall_name, starts_at, created_at
		 FROM showtimes WHERE starts_at > UTC_TIMESTAMP() ORDER BY starts_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Showtime
	for rows.Next() {
		var st model.Showtime
		if err := rows.Scan(&st.ID, &st.MovieTitle, &st.HallName, &st.StartsAt, &st.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
