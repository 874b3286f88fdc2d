package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/venue-booking/internal/persistence"
)

const bookingColumns = `id, venue_id, artist_name, description, ticket_url, local_date, start_at, end_at, created_at, updated_at`

// BookingRepository implements persistence.BookingRepository using SQLite.
// Overlap is enforced by triggers, so concurrent writers on separate
// connections still cannot double-book a venue.
type BookingRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewBookingRepository creates a new SQLite booking repository
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// CreateBooking inserts a booking, returning persistence.ErrOverlap when the
// venue is already occupied during any part of the interval.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" || !booking.End.After(booking.Start) {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, query,
			booking.ID,
			booking.VenueID,
			booking.ArtistName,
			booking.Description,
			booking.TicketURL,
			booking.LocalDate,
			formatTime(booking.Start),
			formatTime(booking.End),
			formatTime(timestampOrNow(booking.CreatedAt)),
			formatTime(timestampOrNow(booking.UpdatedAt)),
		)
		return err
	})
}

// UpdateBooking rewrites a booking; the update trigger ignores the booking's
// own current interval.
func (r *BookingRepository) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	if !booking.End.After(booking.Start) {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE bookings
		SET venue_id = ?, artist_name = ?, description = ?, ticket_url = ?,
			local_date = ?, start_at = ?, end_at = ?, updated_at = ?
		WHERE id = ?
	`
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, query,
			booking.VenueID,
			booking.ArtistName,
			booking.Description,
			booking.TicketURL,
			booking.LocalDate,
			formatTime(booking.Start),
			formatTime(booking.End),
			formatTime(timestampOrNow(booking.UpdatedAt)),
			booking.ID,
		)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

// GetBooking retrieves a booking by ID
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	booking, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return booking, err
}

// DeleteBooking removes a booking. Import rows pointing at it are unlinked
// by the foreign key.
func (r *BookingRepository) DeleteBooking(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

// ListBookings returns bookings matching the filter ordered by start then ID
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var clauses []string
	var args []any
	if filter.VenueID != "" {
		clauses = append(clauses, "venue_id = ?")
		args = append(args, filter.VenueID)
	}
	if filter.EndsAfter != nil {
		clauses = append(clauses, "end_at > ?")
		args = append(args, formatTime(*filter.EndsAfter))
	}
	if filter.EndsBefore != nil {
		clauses = append(clauses, "end_at < ?")
		args = append(args, formatTime(*filter.EndsBefore))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY start_at, id"

	return r.query(ctx, query, args...)
}

// FindOverlapping returns bookings at the venue overlapping [Start, End)
func (r *BookingRepository) FindOverlapping(ctx context.Context, q persistence.OverlapQuery) ([]persistence.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE venue_id = ? AND start_at < ? AND ? < end_at AND id <> ?
		ORDER BY start_at, id
	`
	return r.query(ctx, query, q.VenueID, formatTime(q.End), formatTime(q.Start), q.ExcludeID)
}

// CountBookings returns the number of bookings at a venue
func (r *BookingRepository) CountBookings(ctx context.Context, venueID string) (int, error) {
	var count int
	err := r.pool.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE venue_id = ?`, venueID).Scan(&count)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

func (r *BookingRepository) query(ctx context.Context, query string, args ...any) ([]persistence.Booking, error) {
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	bookings := make([]persistence.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate bookings: %w", err)
	}
	return bookings, nil
}

func scanBooking(row rowScanner) (persistence.Booking, error) {
	var booking persistence.Booking
	var start, end, createdAt, updatedAt string

	if err := row.Scan(
		&booking.ID,
		&booking.VenueID,
		&booking.ArtistName,
		&booking.Description,
		&booking.TicketURL,
		&booking.LocalDate,
		&start,
		&end,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Booking{}, err
	}

	var err error
	if booking.Start, err = parseTime(start); err != nil {
		return persistence.Booking{}, err
	}
	if booking.End, err = parseTime(end); err != nil {
		return persistence.Booking{}, err
	}
	if booking.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Booking{}, err
	}
	if booking.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Booking{}, err
	}
	return booking, nil
}
