package sqlite

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config describes how to open the SQLite database file.
type Config struct {
	Path            string
	BusyTimeout     time.Duration
	JournalMode     string
	Synchronous     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns production settings for the database at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		BusyTimeout:     5 * time.Second,
		JournalMode:     "WAL",
		Synchronous:     "NORMAL",
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}
}

// TestConfig returns settings for a throwaway database. A single connection
// keeps writes serialised so tests never see SQLITE_BUSY.
func TestConfig(path string) Config {
	cfg := DefaultConfig(path)
	cfg.JournalMode = "DELETE"
	cfg.Synchronous = "OFF"
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1
	return cfg
}

// Validate reports configuration problems before any file is touched.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("sqlite: database path is required")
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy timeout must not be negative")
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("sqlite: connection limits must not be negative")
	}
	return nil
}

// DSN builds a modernc.org/sqlite connection string. Pragmas are passed as
// _pragma parameters so every pooled connection gets them, not just the first.
func (c Config) DSN() string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	if c.JournalMode != "" {
		params.Add("_pragma", fmt.Sprintf("journal_mode(%s)", c.JournalMode))
	}
	if c.Synchronous != "" {
		params.Add("_pragma", fmt.Sprintf("synchronous(%s)", c.Synchronous))
	}
	params.Set("_txlock", "immediate")
	return "file:" + c.Path + "?" + params.Encode()
}

// ensureDirectory creates the parent directory of the database file.
func (c Config) ensureDirectory() error {
	if c.Path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(c.Path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sqlite: create database directory: %w", err)
	}
	return nil
}
