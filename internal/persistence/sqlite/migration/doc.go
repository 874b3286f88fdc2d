// Package migration applies versioned SQL migrations to a SQLite database.
//
// Migration files follow the naming convention {version}_{description}.sql
// (e.g. "001_venues_and_bookings.sql") and are read from an fs.FS, normally an
// embedded directory. Applied versions are tracked in a schema_migrations
// table; each migration runs and is recorded inside one transaction.
//
// Statements are split on semicolons, except inside CREATE TRIGGER bodies,
// which run until their closing END.
//
// Example usage:
//
//	manager := NewMigrationManager(NewFileScanner(files), NewSQLiteExecutor(db), "migrations", logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
