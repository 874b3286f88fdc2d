package postgres

import "context"

var MapError = mapError

// Truncate empties every table between tests.
func (s *Storage) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE import_rows, import_batches, bookings, venues`)
	return err
}
