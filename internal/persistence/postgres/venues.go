package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/venue-booking/internal/persistence"
)

const venueColumns = `id, name, slug, time_zone, latitude, longitude, address, website, created_at, updated_at`

// VenueRepository implements persistence.VenueRepository.
type VenueRepository struct {
	pool *pgxpool.Pool
}

// NewVenueRepository constructs a VenueRepository.
func NewVenueRepository(pool *pgxpool.Pool) *VenueRepository {
	return &VenueRepository{pool: pool}
}

func (r *VenueRepository) CreateVenue(ctx context.Context, venue persistence.Venue) error {
	if venue.ID == "" || venue.Slug == "" {
		return persistence.ErrConstraintViolation
	}
	const stmt = `
INSERT INTO venues (` + venueColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.pool.Exec(ctx, stmt,
		venue.ID, venue.Name, venue.Slug, venue.TimeZone, venue.Latitude, venue.Longitude,
		venue.Address, venue.Website, timestampOrNow(venue.CreatedAt), timestampOrNow(venue.UpdatedAt),
	)
	return mapError("create venue", err)
}

func (r *VenueRepository) UpdateVenue(ctx context.Context, venue persistence.Venue) error {
	const stmt = `
UPDATE venues
SET name = $2, slug = $3, time_zone = $4, latitude = $5, longitude = $6,
    address = $7, website = $8, updated_at = $9
WHERE id = $1`
	tag, err := r.pool.Exec(ctx, stmt,
		venue.ID, venue.Name, venue.Slug, venue.TimeZone, venue.Latitude, venue.Longitude,
		venue.Address, venue.Website, timestampOrNow(venue.UpdatedAt),
	)
	if err != nil {
		return mapError("update venue", err)
	}
	return requireAffected(tag)
}

func (r *VenueRepository) GetVenue(ctx context.Context, id string) (persistence.Venue, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+venueColumns+` FROM venues WHERE id = $1`, id)
	venue, err := scanVenue(row)
	if err != nil {
		return persistence.Venue{}, mapError("get venue", err)
	}
	return venue, nil
}

func (r *VenueRepository) GetVenueBySlug(ctx context.Context, slug string) (persistence.Venue, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+venueColumns+` FROM venues WHERE slug = $1`, slug)
	venue, err := scanVenue(row)
	if err != nil {
		return persistence.Venue{}, mapError("get venue by slug", err)
	}
	return venue, nil
}

func (r *VenueRepository) ListVenues(ctx context.Context) ([]persistence.Venue, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+venueColumns+` FROM venues ORDER BY name, id`)
	if err != nil {
		return nil, mapError("list venues", err)
	}
	defer rows.Close()

	venues := make([]persistence.Venue, 0)
	for rows.Next() {
		venue, err := scanVenue(rows)
		if err != nil {
			return nil, mapError("scan venue", err)
		}
		venues = append(venues, venue)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate venues", err)
	}
	return venues, nil
}

func scanVenue(row pgx.Row) (persistence.Venue, error) {
	var v persistence.Venue
	if err := row.Scan(&v.ID, &v.Name, &v.Slug, &v.TimeZone, &v.Latitude, &v.Longitude,
		&v.Address, &v.Website, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return persistence.Venue{}, err
	}
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()
	return v, nil
}
