package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Manager coordinates scanning, validation and execution of migrations
type Manager struct {
	scanner      FileScanner
	executor     Executor
	migrationDir string
	logger       *slog.Logger
}

// NewMigrationManager creates a new migration Manager
func NewMigrationManager(scanner FileScanner, executor Executor, migrationDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scanner:      scanner,
		executor:     executor,
		migrationDir: migrationDir,
		logger:       logger.With(slog.String("component", "migration")),
	}
}

// RunMigrations executes all pending migrations in sequential order
func (m *Manager) RunMigrations(ctx context.Context) error {
	startTime := time.Now()

	pending, err := m.PendingMigrations(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to determine pending migrations", slog.Any("error", err))
		return err
	}

	if len(pending) == 0 {
		m.logger.InfoContext(ctx, "database schema up to date")
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations", slog.Int("pending", len(pending)))

	for i, migration := range pending {
		elapsed, err := m.executor.ExecuteMigration(ctx, migration)
		if err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				slog.String("version", migration.Version),
				slog.String("file", migration.FilePath),
				slog.Any("error", err),
			)
			return NewMigrationError(migration.Version, migration.FilePath,
				"execute migration", fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}

		m.logger.InfoContext(ctx, "migration applied",
			slog.String("version", migration.Version),
			slog.String("description", migration.Description),
			slog.Int("position", i+1),
			slog.Duration("elapsed", elapsed),
		)
	}

	m.logger.InfoContext(ctx, "migrations completed",
		slog.Int("applied", len(pending)),
		slog.Duration("elapsed", time.Since(startTime)),
	)
	return nil
}

// PendingMigrations returns the migrations that still need to be applied,
// after checking the sequence and checksums of those already applied.
func (m *Manager) PendingMigrations(ctx context.Context) ([]Migration, error) {
	available, err := m.scanner.ScanMigrations(m.migrationDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	if err := validateMigrationSequence(available, applied); err != nil {
		return nil, fmt.Errorf("migration sequence validation failed: %w", err)
	}

	appliedMap := make(map[string]AppliedMigration, len(applied))
	for _, a := range applied {
		appliedMap[a.Version] = a
	}

	var pending []Migration
	for _, migration := range available {
		a, ok := appliedMap[migration.Version]
		if !ok {
			pending = append(pending, migration)
			continue
		}
		if a.Checksum != "" && a.Checksum != migration.Checksum {
			return nil, NewMigrationError(migration.Version, migration.FilePath, "verify checksum",
				fmt.Errorf("%w: recorded %s, file %s", ErrChecksumMismatch, a.Checksum, migration.Checksum))
		}
	}
	return pending, nil
}

// Status returns status information about migrations
func (m *Manager) Status(ctx context.Context) (*MigrationStatus, error) {
	pending, err := m.PendingMigrations(ctx)
	if err != nil {
		return nil, err
	}
	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	current := ""
	highest := -1
	for _, a := range applied {
		if v, err := strconv.Atoi(a.Version); err == nil && v > highest {
			highest = v
			current = a.Version
		}
	}

	return &MigrationStatus{
		CurrentVersion:    current,
		PendingCount:      len(pending),
		AppliedMigrations: applied,
		PendingMigrations: pending,
	}, nil
}

func (m *Manager) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}
	return applied, nil
}

// validateMigrationSequence ensures there are no gaps in the available
// versions and that every applied version still has a file.
func validateMigrationSequence(available []Migration, applied []AppliedMigration) error {
	versions := make(map[int]bool, len(available))
	minVersion, maxVersion := 0, 0
	for i, migration := range available {
		v, err := strconv.Atoi(migration.Version)
		if err != nil {
			return NewMigrationError(migration.Version, migration.FilePath, "validate sequence",
				fmt.Errorf("%w: version '%s' is not numeric", ErrInvalidVersion, migration.Version))
		}
		versions[v] = true
		if i == 0 || v < minVersion {
			minVersion = v
		}
		if v > maxVersion {
			maxVersion = v
		}
	}

	if len(available) > 0 {
		for v := minVersion; v <= maxVersion; v++ {
			if !versions[v] {
				return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, v)
			}
		}
	}

	for _, a := range applied {
		v, err := strconv.Atoi(a.Version)
		if err != nil {
			return fmt.Errorf("%w: applied version '%s' is not numeric", ErrInvalidVersion, a.Version)
		}
		if !versions[v] {
			return fmt.Errorf("%w: applied migration %03d not found in available migrations", ErrVersionConflict, v)
		}
	}
	return nil
}
