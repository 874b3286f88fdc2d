package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/venue-booking/internal/persistence"
)

const venueColumns = `id, name, slug, time_zone, latitude, longitude, address, website, created_at, updated_at`

// VenueRepository implements persistence.VenueRepository using SQLite
type VenueRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewVenueRepository creates a new SQLite venue repository
func NewVenueRepository(pool *ConnectionPool) *VenueRepository {
	return &VenueRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
	}
}

// CreateVenue inserts a new venue into the database
func (r *VenueRepository) CreateVenue(ctx context.Context, venue persistence.Venue) error {
	if venue.ID == "" || venue.Slug == "" {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO venues (` + venueColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.pool.DB().ExecContext(ctx, query,
		venue.ID,
		venue.Name,
		venue.Slug,
		venue.TimeZone,
		nullableFloat(venue.Latitude),
		nullableFloat(venue.Longitude),
		venue.Address,
		venue.Website,
		formatTime(timestampOrNow(venue.CreatedAt)),
		formatTime(timestampOrNow(venue.UpdatedAt)),
	)
	return r.mapper.MapError(err)
}

// UpdateVenue updates an existing venue in the database
func (r *VenueRepository) UpdateVenue(ctx context.Context, venue persistence.Venue) error {
	query := `
		UPDATE venues
		SET name = ?, slug = ?, time_zone = ?, latitude = ?, longitude = ?,
			address = ?, website = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.pool.DB().ExecContext(ctx, query,
		venue.Name,
		venue.Slug,
		venue.TimeZone,
		nullableFloat(venue.Latitude),
		nullableFloat(venue.Longitude),
		venue.Address,
		venue.Website,
		formatTime(timestampOrNow(venue.UpdatedAt)),
		venue.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetVenue retrieves a venue by ID
func (r *VenueRepository) GetVenue(ctx context.Context, id string) (persistence.Venue, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+venueColumns+` FROM venues WHERE id = ?`, id)
	return r.scanOne(row)
}

// GetVenueBySlug retrieves a venue by its URL slug
func (r *VenueRepository) GetVenueBySlug(ctx context.Context, slug string) (persistence.Venue, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+venueColumns+` FROM venues WHERE slug = ?`, slug)
	return r.scanOne(row)
}

// ListVenues returns all venues ordered by name
func (r *VenueRepository) ListVenues(ctx context.Context) ([]persistence.Venue, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `SELECT `+venueColumns+` FROM venues ORDER BY name, id`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	venues := make([]persistence.Venue, 0)
	for rows.Next() {
		venue, err := scanVenue(rows)
		if err != nil {
			return nil, err
		}
		venues = append(venues, venue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate venues: %w", err)
	}
	return venues, nil
}

func (r *VenueRepository) scanOne(row *sql.Row) (persistence.Venue, error) {
	venue, err := scanVenue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Venue{}, persistence.ErrNotFound
	}
	return venue, err
}

func scanVenue(row rowScanner) (persistence.Venue, error) {
	var venue persistence.Venue
	var latitude, longitude sql.NullFloat64
	var createdAt, updatedAt string

	if err := row.Scan(
		&venue.ID,
		&venue.Name,
		&venue.Slug,
		&venue.TimeZone,
		&latitude,
		&longitude,
		&venue.Address,
		&venue.Website,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Venue{}, err
	}

	venue.Latitude = floatPointer(latitude)
	venue.Longitude = floatPointer(longitude)

	var err error
	if venue.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Venue{}, err
	}
	if venue.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Venue{}, err
	}
	return venue, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
