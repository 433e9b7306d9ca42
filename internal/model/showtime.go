package model

import "time"

// Showtime is a scheduled screening whose seat inventory this core
// manages.  For the purposes of the reservation core a showtime is
// immutable reference data; creation and editing happen elsewhere.
//
// Fields:
//  ID         – primary key identifier.
//  MovieTitle – title shown to customers.
//  HallName   – name of the hall the screening runs in.
//  StartsAt   – scheduled start time (UTC).
//  CreatedAt  – creation timestamp.
type Showtime struct {
	ID         uint64    // showtimes.id
	MovieTitle string    // showtimes.movie_title
	HallName   string    // showtimes.hall_name
	StartsAt   time.Time // showtimes.starts_at
	CreatedAt  time.Time // showtimes.created_at
}
