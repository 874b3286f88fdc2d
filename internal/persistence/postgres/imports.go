package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/venue-booking/internal/persistence"
)

const importRowColumns = `id, batch_id, venue_id, artist_name, local_date, start_time, end_time, start_utc, end_utc,
	status, source_url, raw_data, booking_id, rejection_reason, created_at, updated_at`

// ImportRepository implements persistence.ImportRepository.
type ImportRepository struct {
	pool *pgxpool.Pool
}

// NewImportRepository constructs an ImportRepository.
func NewImportRepository(pool *pgxpool.Pool) *ImportRepository {
	return &ImportRepository{pool: pool}
}

func (r *ImportRepository) CreateBatch(ctx context.Context, batch persistence.ImportBatch, rows []persistence.ImportRow) error {
	if batch.ID == "" {
		return persistence.ErrConstraintViolation
	}
	for _, row := range rows {
		if row.ID == "" {
			return persistence.ErrConstraintViolation
		}
	}

	const insertRow = `
INSERT INTO import_rows (` + importRowColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO import_batches (id, venue_id, source_name, created_at) VALUES ($1, $2, $3, $4)`,
			batch.ID, batch.VenueID, batch.SourceName, timestampOrNow(batch.CreatedAt),
		); err != nil {
			return err
		}

		queued := &pgx.Batch{}
		for _, row := range rows {
			row.BatchID = batch.ID
			if row.Status == "" {
				row.Status = persistence.ImportRowProposed
			}
			queued.Queue(insertRow, rowArgs(row)...)
		}
		if queued.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, queued).Close()
	})
	return mapError("create import batch", err)
}

func (r *ImportRepository) GetBatch(ctx context.Context, id string) (persistence.ImportBatch, error) {
	var b persistence.ImportBatch
	err := r.pool.QueryRow(ctx,
		`SELECT id, venue_id, source_name, created_at FROM import_batches WHERE id = $1`, id,
	).Scan(&b.ID, &b.VenueID, &b.SourceName, &b.CreatedAt)
	if err != nil {
		return persistence.ImportBatch{}, mapError("get import batch", err)
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}

func (r *ImportRepository) ListRows(ctx context.Context, batchID string) ([]persistence.ImportRow, error) {
	if _, err := r.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+importRowColumns+` FROM import_rows WHERE batch_id = $1 ORDER BY local_date, start_time, id`, batchID)
	if err != nil {
		return nil, mapError("list import rows", err)
	}
	defer rows.Close()

	out := make([]persistence.ImportRow, 0)
	for rows.Next() {
		row, err := scanImportRow(rows)
		if err != nil {
			return nil, mapError("scan import row", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate import rows", err)
	}
	return out, nil
}

func (r *ImportRepository) UpdateRow(ctx context.Context, row persistence.ImportRow) error {
	const stmt = `
UPDATE import_rows
SET artist_name = $2, local_date = $3, start_time = $4, end_time = $5, start_utc = $6, end_utc = $7,
    status = $8, source_url = $9, raw_data = $10, booking_id = $11, rejection_reason = $12, updated_at = $13
WHERE id = $1`
	tag, err := r.pool.Exec(ctx, stmt,
		row.ID, row.ArtistName, row.Date, row.StartTime, row.EndTime, utcPointer(row.StartUTC), utcPointer(row.EndUTC),
		string(row.Status), row.SourceURL, row.RawData, row.BookingID, row.RejectionReason, timestampOrNow(row.UpdatedAt),
	)
	if err != nil {
		return mapError("update import row", err)
	}
	return requireAffected(tag)
}

func (r *ImportRepository) DeleteRow(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM import_rows WHERE id = $1`, id)
	if err != nil {
		return mapError("delete import row", err)
	}
	return requireAffected(tag)
}

func (r *ImportRepository) DeleteBatch(ctx context.Context, id string) error {
	err := withTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM import_rows WHERE batch_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM import_batches WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return requireAffected(tag)
	})
	if err == persistence.ErrNotFound {
		return err
	}
	return mapError("delete import batch", err)
}

func (r *ImportRepository) ListBatchesCreatedBefore(ctx context.Context, cutoff time.Time) ([]persistence.ImportBatch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, venue_id, source_name, created_at FROM import_batches WHERE created_at < $1 ORDER BY created_at, id`,
		cutoff.UTC())
	if err != nil {
		return nil, mapError("list import batches", err)
	}
	defer rows.Close()

	batches := make([]persistence.ImportBatch, 0)
	for rows.Next() {
		var b persistence.ImportBatch
		if err := rows.Scan(&b.ID, &b.VenueID, &b.SourceName, &b.CreatedAt); err != nil {
			return nil, mapError("scan import batch", err)
		}
		b.CreatedAt = b.CreatedAt.UTC()
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate import batches", err)
	}
	return batches, nil
}

func rowArgs(row persistence.ImportRow) []any {
	return []any{
		row.ID, row.BatchID, row.VenueID, row.ArtistName, row.Date, row.StartTime, row.EndTime,
		utcPointer(row.StartUTC), utcPointer(row.EndUTC), string(row.Status), row.SourceURL, row.RawData,
		row.BookingID, row.RejectionReason, timestampOrNow(row.CreatedAt), timestampOrNow(row.UpdatedAt),
	}
}

func scanImportRow(row pgx.Row) (persistence.ImportRow, error) {
	var r persistence.ImportRow
	var status string
	if err := row.Scan(&r.ID, &r.BatchID, &r.VenueID, &r.ArtistName, &r.Date, &r.StartTime, &r.EndTime,
		&r.StartUTC, &r.EndUTC, &status, &r.SourceURL, &r.RawData, &r.BookingID, &r.RejectionReason,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return persistence.ImportRow{}, err
	}
	r.Status = persistence.ImportRowStatus(status)
	r.StartUTC = utcPointer(r.StartUTC)
	r.EndUTC = utcPointer(r.EndUTC)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
