// Package config loads service settings from VENUEBOOK_* environment
// variables and an optional venuebook.yaml file.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "VENUEBOOK"

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPPort              int
	StorageDriver         string
	SQLitePath            string
	PostgresURL           string
	DefaultTimeZone       string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AdminTokenHash        string
	PublicBaseURL         string
	ConflictCacheTTL      time.Duration
	ConflictRatePerMinute int
	ImportRetention       time.Duration
	ImportPurgeSchedule   string
	LogLevel              string
}

var defaults = map[string]any{
	"HTTP_PORT":                8080,
	"STORAGE_DRIVER":           DriverSQLite,
	"SQLITE_PATH":              "venuebook.db",
	"POSTGRES_URL":             "",
	"DEFAULT_TIME_ZONE":        "America/Chicago",
	"REDIS_ADDR":               "",
	"REDIS_PASSWORD":           "",
	"REDIS_DB":                 0,
	"ADMIN_TOKEN_HASH":         "",
	"PUBLIC_BASE_URL":          "",
	"CONFLICT_CACHE_TTL":       "2s",
	"CONFLICT_RATE_PER_MINUTE": 120,
	"IMPORT_RETENTION":         "720h",
	"IMPORT_PURGE_SCHEDULE":    "@hourly",
	"LOG_LEVEL":                "info",
}

// Load reads configuration from the environment and, when present, a config
// file. An empty path searches for venuebook.yaml in the working directory
// and ./config; a missing file is not an error unless path was given.
//
// Defaults apply to optional keys. Every missing or invalid key is reported
// in a single error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("venuebook")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		StorageDriver:       strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_DRIVER"))),
		SQLitePath:          strings.TrimSpace(v.GetString("SQLITE_PATH")),
		PostgresURL:         strings.TrimSpace(v.GetString("POSTGRES_URL")),
		DefaultTimeZone:     strings.TrimSpace(v.GetString("DEFAULT_TIME_ZONE")),
		RedisAddr:           strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:       v.GetString("REDIS_PASSWORD"),
		AdminTokenHash:      strings.TrimSpace(v.GetString("ADMIN_TOKEN_HASH")),
		PublicBaseURL:       strings.TrimRight(strings.TrimSpace(v.GetString("PUBLIC_BASE_URL")), "/"),
		ImportPurgeSchedule: strings.TrimSpace(v.GetString("IMPORT_PURGE_SCHEDULE")),
		LogLevel:            strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)
	key := func(name string) string { return EnvPrefix + "_" + name }

	positiveInt := func(name string, dst *int, allowZero bool) {
		n, err := strconv.Atoi(strings.TrimSpace(v.GetString(name)))
		if err != nil || n < 0 || (n == 0 && !allowZero) {
			invalid = append(invalid, key(name))
			return
		}
		*dst = n
	}
	positiveDuration := func(name string, dst *time.Duration) {
		d, err := time.ParseDuration(strings.TrimSpace(v.GetString(name)))
		if err != nil || d <= 0 {
			invalid = append(invalid, key(name))
			return
		}
		*dst = d
	}

	positiveInt("HTTP_PORT", &cfg.HTTPPort, false)
	positiveInt("REDIS_DB", &cfg.RedisDB, true)
	positiveInt("CONFLICT_RATE_PER_MINUTE", &cfg.ConflictRatePerMinute, false)
	positiveDuration("CONFLICT_CACHE_TTL", &cfg.ConflictCacheTTL)
	positiveDuration("IMPORT_RETENTION", &cfg.ImportRetention)

	switch cfg.StorageDriver {
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			missing = append(missing, key("SQLITE_PATH"))
		}
	case DriverPostgres:
		if cfg.PostgresURL == "" {
			missing = append(missing, key("POSTGRES_URL"))
		}
	case DriverMemory:
	default:
		invalid = append(invalid, key("STORAGE_DRIVER"))
	}

	if cfg.AdminTokenHash == "" {
		missing = append(missing, key("ADMIN_TOKEN_HASH"))
	} else if !strings.HasPrefix(cfg.AdminTokenHash, "$2") && !strings.HasPrefix(cfg.AdminTokenHash, "$argon2id$") {
		invalid = append(invalid, key("ADMIN_TOKEN_HASH"))
	}

	if cfg.DefaultTimeZone == "" {
		missing = append(missing, key("DEFAULT_TIME_ZONE"))
	} else if _, err := time.LoadLocation(cfg.DefaultTimeZone); err != nil {
		invalid = append(invalid, key("DEFAULT_TIME_ZONE"))
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, key("LOG_LEVEL"))
	}

	if cfg.ImportPurgeSchedule == "" {
		missing = append(missing, key("IMPORT_PURGE_SCHEDULE"))
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// UsesRedis reports whether venue locks should go through Redis.
func (c Config) UsesRedis() bool {
	return c.RedisAddr != ""
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.HTTPPort)
}
