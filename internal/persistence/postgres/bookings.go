package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/venue-booking/internal/persistence"
)

const bookingColumns = `id, venue_id, artist_name, description, ticket_url, local_date, start_at, end_at, created_at, updated_at`

// BookingRepository implements persistence.BookingRepository. Each write
// takes pg_advisory_xact_lock on the venue id before touching the table;
// the bookings_no_overlap exclusion constraint is the final guard.
type BookingRepository struct {
	pool *pgxpool.Pool
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func lockVenue(ctx context.Context, tx pgx.Tx, venueID string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, venueID)
	return err
}

func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || !booking.End.After(booking.Start) {
		return persistence.ErrConstraintViolation
	}
	const stmt = `
INSERT INTO bookings (` + bookingColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := lockVenue(ctx, tx, booking.VenueID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, stmt,
			booking.ID, booking.VenueID, booking.ArtistName, booking.Description, booking.TicketURL,
			booking.LocalDate, booking.Start.UTC(), booking.End.UTC(),
			timestampOrNow(booking.CreatedAt), timestampOrNow(booking.UpdatedAt),
		)
		return err
	})
	return mapError("create booking", err)
}

func (r *BookingRepository) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	if !booking.End.After(booking.Start) {
		return persistence.ErrConstraintViolation
	}
	const stmt = `
UPDATE bookings
SET venue_id = $2, artist_name = $3, description = $4, ticket_url = $5, local_date = $6,
    start_at = $7, end_at = $8, updated_at = $9
WHERE id = $1`
	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := lockVenue(ctx, tx, booking.VenueID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, stmt,
			booking.ID, booking.VenueID, booking.ArtistName, booking.Description, booking.TicketURL,
			booking.LocalDate, booking.Start.UTC(), booking.End.UTC(), timestampOrNow(booking.UpdatedAt),
		)
		if err != nil {
			return err
		}
		return requireAffected(tag)
	})
	if err == persistence.ErrNotFound {
		return err
	}
	return mapError("update booking", err)
}

func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	booking, err := scanBooking(row)
	if err != nil {
		return persistence.Booking{}, mapError("get booking", err)
	}
	return booking, nil
}

func (r *BookingRepository) DeleteBooking(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return mapError("delete booking", err)
	}
	return requireAffected(tag)
}

func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var clauses []string
	var args []any
	if filter.VenueID != "" {
		args = append(args, filter.VenueID)
		clauses = append(clauses, "venue_id = $"+itoa(len(args)))
	}
	if filter.EndsAfter != nil {
		args = append(args, filter.EndsAfter.UTC())
		clauses = append(clauses, "end_at > $"+itoa(len(args)))
	}
	if filter.EndsBefore != nil {
		args = append(args, filter.EndsBefore.UTC())
		clauses = append(clauses, "end_at < $"+itoa(len(args)))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY start_at, id`
	return r.queryBookings(ctx, "list bookings", query, args...)
}

func (r *BookingRepository) FindOverlapping(ctx context.Context, q persistence.OverlapQuery) ([]persistence.Booking, error) {
	const query = `
SELECT ` + bookingColumns + `
FROM bookings
WHERE venue_id = $1 AND start_at < $3 AND $2 < end_at AND id <> $4
ORDER BY start_at, id`
	return r.queryBookings(ctx, "find overlapping bookings", query, q.VenueID, q.Start.UTC(), q.End.UTC(), q.ExcludeID)
}

func (r *BookingRepository) CountBookings(ctx context.Context, venueID string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE venue_id = $1`, venueID).Scan(&count); err != nil {
		return 0, mapError("count bookings", err)
	}
	return count, nil
}

func (r *BookingRepository) queryBookings(ctx context.Context, op, query string, args ...any) ([]persistence.Booking, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	bookings := make([]persistence.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return bookings, nil
}

func scanBooking(row pgx.Row) (persistence.Booking, error) {
	var b persistence.Booking
	if err := row.Scan(&b.ID, &b.VenueID, &b.ArtistName, &b.Description, &b.TicketURL, &b.LocalDate,
		&b.Start, &b.End, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return persistence.Booking{}, err
	}
	b.Start = b.Start.UTC()
	b.End = b.End.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}
