package migration

import (
	"context"
	"time"
)

// Migration represents a database migration with its metadata and SQL content
type Migration struct {
	Version     string // Version identifier (e.g., "001", "002")
	Description string // Human-readable description of the migration
	SQL         string // SQL statements to execute
	FilePath    string // Path of the migration file inside the source filesystem
	Checksum    string // SHA-256 of the SQL content
}

// AppliedMigration represents a migration that has been successfully applied
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// MigrationStatus provides information about the current migration state
type MigrationStatus struct {
	CurrentVersion    string
	PendingCount      int
	AppliedMigrations []AppliedMigration
	PendingMigrations []Migration
}

// FileScanner finds and parses migration files
type FileScanner interface {
	ScanMigrations(migrationDir string) ([]Migration, error)
	ValidateFileName(filename string) error
}

// Executor runs migrations against the database
type Executor interface {
	// InitializeVersionTable creates the schema_migrations table if it doesn't exist
	InitializeVersionTable(ctx context.Context) error

	// ExecuteMigration runs a migration and records it in one transaction
	ExecuteMigration(ctx context.Context, migration Migration) (time.Duration, error)

	// GetAppliedVersions returns all applied migration versions in version order
	GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error)
}
