package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/venue-booking/internal/persistence"
)

const importRowColumns = `id, batch_id, venue_id, artist_name, date, start_time, end_time, start_utc, end_utc,
	status, source_url, raw_data, booking_id, rejection_reason, created_at, updated_at`

// ImportRepository implements persistence.ImportRepository using SQLite
type ImportRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewImportRepository creates a new SQLite import repository
func NewImportRepository(pool *ConnectionPool) *ImportRepository {
	return &ImportRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
	}
}

// CreateBatch inserts a batch and all of its rows in one transaction
func (r *ImportRepository) CreateBatch(ctx context.Context, batch persistence.ImportBatch, rows []persistence.ImportRow) error {
	if batch.ID == "" {
		return persistence.ErrConstraintViolation
	}
	for _, row := range rows {
		if row.ID == "" {
			return persistence.ErrConstraintViolation
		}
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO import_batches (id, venue_id, source_name, created_at) VALUES (?, ?, ?, ?)`,
			batch.ID, batch.VenueID, batch.SourceName, formatTime(timestampOrNow(batch.CreatedAt)),
		); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO import_rows (`+importRowColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, row := range rows {
			row.BatchID = batch.ID
			if row.Status == "" {
				row.Status = persistence.ImportRowProposed
			}
			if _, err := stmt.ExecContext(ctx, rowArgs(row)...); err != nil {
				return err
			}
		}
		return nil
	})
	return r.mapper.MapError(err)
}

// GetBatch retrieves a batch by ID
func (r *ImportRepository) GetBatch(ctx context.Context, id string) (persistence.ImportBatch, error) {
	row := r.pool.DB().QueryRowContext(ctx,
		`SELECT id, venue_id, source_name, created_at FROM import_batches WHERE id = ?`, id)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ImportBatch{}, persistence.ErrNotFound
	}
	return batch, err
}

// ListRows returns a batch's rows ordered by date, start time, then ID
func (r *ImportRepository) ListRows(ctx context.Context, batchID string) ([]persistence.ImportRow, error) {
	if _, err := r.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}

	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT `+importRowColumns+`
		FROM import_rows
		WHERE batch_id = ?
		ORDER BY date, start_time, id
	`, batchID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	result := make([]persistence.ImportRow, 0)
	for rows.Next() {
		row, err := scanImportRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate import rows: %w", err)
	}
	return result, nil
}

// UpdateRow rewrites the mutable fields of a row; its batch never changes
func (r *ImportRepository) UpdateRow(ctx context.Context, row persistence.ImportRow) error {
	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE import_rows
		SET artist_name = ?, date = ?, start_time = ?, end_time = ?, start_utc = ?, end_utc = ?,
			status = ?, source_url = ?, raw_data = ?, booking_id = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ?
	`,
		row.ArtistName,
		row.Date,
		row.StartTime,
		row.EndTime,
		nullableTime(row.StartUTC),
		nullableTime(row.EndUTC),
		string(row.Status),
		row.SourceURL,
		row.RawData,
		nullableString(row.BookingID),
		row.RejectionReason,
		formatTime(timestampOrNow(row.UpdatedAt)),
		row.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// DeleteRow removes one row
func (r *ImportRepository) DeleteRow(ctx context.Context, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM import_rows WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// DeleteBatch removes a batch; its rows go with it
func (r *ImportRepository) DeleteBatch(ctx context.Context, id string) error {
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM import_rows WHERE batch_id = ?`, id); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM import_batches WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
	return r.mapper.MapError(err)
}

// ListBatchesCreatedBefore returns batches older than cutoff, oldest first
func (r *ImportRepository) ListBatchesCreatedBefore(ctx context.Context, cutoff time.Time) ([]persistence.ImportBatch, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, venue_id, source_name, created_at
		FROM import_batches
		WHERE created_at < ?
		ORDER BY created_at, id
	`, formatTime(cutoff))
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	batches := make([]persistence.ImportBatch, 0)
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate import batches: %w", err)
	}
	return batches, nil
}

func rowArgs(row persistence.ImportRow) []any {
	return []any{
		row.ID,
		row.BatchID,
		row.VenueID,
		row.ArtistName,
		row.Date,
		row.StartTime,
		row.EndTime,
		nullableTime(row.StartUTC),
		nullableTime(row.EndUTC),
		string(row.Status),
		row.SourceURL,
		row.RawData,
		nullableString(row.BookingID),
		row.RejectionReason,
		formatTime(timestampOrNow(row.CreatedAt)),
		formatTime(timestampOrNow(row.UpdatedAt)),
	}
}

func scanBatch(row rowScanner) (persistence.ImportBatch, error) {
	var batch persistence.ImportBatch
	var createdAt string
	if err := row.Scan(&batch.ID, &batch.VenueID, &batch.SourceName, &createdAt); err != nil {
		return persistence.ImportBatch{}, err
	}
	var err error
	if batch.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.ImportBatch{}, err
	}
	return batch, nil
}

func scanImportRow(row rowScanner) (persistence.ImportRow, error) {
	var result persistence.ImportRow
	var status, createdAt, updatedAt string
	var startUTC, endUTC, bookingID sql.NullString

	if err := row.Scan(
		&result.ID,
		&result.BatchID,
		&result.VenueID,
		&result.ArtistName,
		&result.Date,
		&result.StartTime,
		&result.EndTime,
		&startUTC,
		&endUTC,
		&status,
		&result.SourceURL,
		&result.RawData,
		&bookingID,
		&result.RejectionReason,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.ImportRow{}, err
	}

	result.Status = persistence.ImportRowStatus(status)
	result.BookingID = stringPointer(bookingID)

	var err error
	if result.StartUTC, err = parseNullableTime(startUTC); err != nil {
		return persistence.ImportRow{}, err
	}
	if result.EndUTC, err = parseNullableTime(endUTC); err != nil {
		return persistence.ImportRow{}, err
	}
	if result.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.ImportRow{}, err
	}
	if result.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.ImportRow{}, err
	}
	return result, nil
}
