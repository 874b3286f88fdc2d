package migration

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

const venuesSQL = `-- Description: create venues
CREATE TABLE venues (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL
);
`

const bookingsSQL = `CREATE TABLE bookings (
	id TEXT PRIMARY KEY,
	venue_id TEXT NOT NULL REFERENCES venues(id),
	start_at TEXT NOT NULL,
	end_at TEXT NOT NULL
);

-- reject overlapping rows
CREATE TRIGGER bookings_no_overlap
BEFORE INSERT ON bookings
FOR EACH ROW
WHEN EXISTS (SELECT 1 FROM bookings b WHERE b.venue_id = NEW.venue_id AND b.start_at < NEW.end_at AND NEW.start_at < b.end_at)
BEGIN
	SELECT RAISE(ABORT, 'booking_overlap');
END;

CREATE INDEX idx_bookings_venue ON bookings(venue_id, start_at);
`

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migration.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestManager(db *sql.DB, files fstest.MapFS) *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMigrationManager(NewFileScanner(files), NewSQLiteExecutor(db), "migrations", logger)
}

func TestSplitStatementsKeepsTriggerBodies(t *testing.T) {
	t.Parallel()

	statements := SplitStatements(bookingsSQL)
	if len(statements) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(statements), statements)
	}
	if got := statements[1]; got[len(got)-3:] != "END" {
		t.Fatalf("expected trigger statement to end with END, got %q", got)
	}
}

func TestScanMigrations(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{
		"migrations/002_bookings.sql": {Data: []byte(bookingsSQL)},
		"migrations/001_venues.sql":   {Data: []byte(venuesSQL)},
		"migrations/README.md":        {Data: []byte("ignored")},
	}

	migrations, err := NewFileScanner(files).ScanMigrations("migrations")
	if err != nil {
		t.Fatalf("ScanMigrations returned error: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != "001" || migrations[1].Version != "002" {
		t.Fatalf("unexpected order: %s, %s", migrations[0].Version, migrations[1].Version)
	}
	if migrations[0].Description != "create venues" {
		t.Fatalf("expected description from header, got %q", migrations[0].Description)
	}
	if migrations[1].Description != "bookings" {
		t.Fatalf("expected description from filename, got %q", migrations[1].Description)
	}
	if migrations[0].Checksum == "" {
		t.Fatal("expected checksum to be populated")
	}
}

func TestScanMigrationsRejectsInvalidFiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files fstest.MapFS
		want  error
	}{
		{
			name:  "bad name",
			files: fstest.MapFS{"migrations/venues.sql": {Data: []byte(venuesSQL)}},
			want:  ErrInvalidMigrationFile,
		},
		{
			name: "duplicate version",
			files: fstest.MapFS{
				"migrations/001_venues.sql": {Data: []byte(venuesSQL)},
				"migrations/001_other.sql":  {Data: []byte(venuesSQL)},
			},
			want: ErrDuplicateVersion,
		},
		{
			name:  "unbalanced parentheses",
			files: fstest.MapFS{"migrations/001_venues.sql": {Data: []byte("CREATE TABLE venues (id TEXT;")}},
			want:  ErrInvalidMigrationFile,
		},
		{
			name:  "comments only",
			files: fstest.MapFS{"migrations/001_venues.sql": {Data: []byte("-- nothing here\n")}},
			want:  ErrInvalidMigrationFile,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewFileScanner(tt.files).ScanMigrations("migrations")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRunMigrationsAppliesPendingOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	files := fstest.MapFS{
		"migrations/001_venues.sql":   {Data: []byte(venuesSQL)},
		"migrations/002_bookings.sql": {Data: []byte(bookingsSQL)},
	}
	manager := newTestManager(db, files)

	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if err := manager.RunMigrations(ctx); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.CurrentVersion != "002" || status.PendingCount != 0 || len(status.AppliedMigrations) != 2 {
		t.Fatalf("unexpected status: %+v", status)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO venues (id, name) VALUES ('v1', 'Hall')`); err != nil {
		t.Fatalf("insert venue: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO bookings VALUES ('b1', 'v1', '2024-06-01T20:00:00Z', '2024-06-01T23:00:00Z')`); err != nil {
		t.Fatalf("insert booking: %v", err)
	}
	_, err = db.ExecContext(ctx, `INSERT INTO bookings VALUES ('b2', 'v1', '2024-06-01T22:00:00Z', '2024-06-02T01:00:00Z')`)
	if err == nil {
		t.Fatal("expected trigger to reject overlapping booking")
	}
}

func TestRunMigrationsRollsBackFailedMigration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	files := fstest.MapFS{
		"migrations/001_venues.sql": {Data: []byte(venuesSQL)},
		"migrations/002_broken.sql": {Data: []byte("CREATE TABLE ok_table (id TEXT);\nINSERT INTO missing_table VALUES ('x');\n")},
	}
	manager := newTestManager(db, files)

	err := manager.RunMigrations(ctx)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name = 'ok_table'`).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if count != 0 {
		t.Fatal("expected failed migration to be rolled back")
	}

	pending, err := manager.PendingMigrations(ctx)
	if err != nil {
		t.Fatalf("PendingMigrations returned error: %v", err)
	}
	if len(pending) != 1 || pending[0].Version != "002" {
		t.Fatalf("expected only 002 pending, got %+v", pending)
	}
}

func TestPendingMigrationsDetectsProblems(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("gap in sequence", func(t *testing.T) {
		t.Parallel()
		manager := newTestManager(openTestDB(t), fstest.MapFS{
			"migrations/001_venues.sql":   {Data: []byte(venuesSQL)},
			"migrations/003_bookings.sql": {Data: []byte(bookingsSQL)},
		})
		if _, err := manager.PendingMigrations(ctx); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})

	t.Run("edited after apply", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)
		if err := newTestManager(db, fstest.MapFS{
			"migrations/001_venues.sql": {Data: []byte(venuesSQL)},
		}).RunMigrations(ctx); err != nil {
			t.Fatalf("RunMigrations failed: %v", err)
		}

		edited := newTestManager(db, fstest.MapFS{
			"migrations/001_venues.sql": {Data: []byte(venuesSQL + "\n-- tweak\n")},
		})
		if _, err := edited.PendingMigrations(ctx); !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("expected ErrChecksumMismatch, got %v", err)
		}
	})

	t.Run("applied file removed", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)
		if err := newTestManager(db, fstest.MapFS{
			"migrations/001_venues.sql": {Data: []byte(venuesSQL)},
		}).RunMigrations(ctx); err != nil {
			t.Fatalf("RunMigrations failed: %v", err)
		}

		emptied := newTestManager(db, fstest.MapFS{
			"migrations/002_bookings.sql": {Data: []byte(bookingsSQL)},
		})
		if _, err := emptied.PendingMigrations(ctx); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})
}
