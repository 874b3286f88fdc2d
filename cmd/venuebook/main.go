package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/example/venue-booking/internal/application"
	"github.com/example/venue-booking/internal/config"
	httptransport "github.com/example/venue-booking/internal/http"
	"github.com/example/venue-booking/internal/jobs"
	"github.com/example/venue-booking/internal/locking"
	"github.com/example/venue-booking/internal/logging"
	"github.com/example/venue-booking/internal/persistence"
	"github.com/example/venue-booking/internal/persistence/memory"
	"github.com/example/venue-booking/internal/persistence/postgres"
	"github.com/example/venue-booking/internal/persistence/sqlite"
	"github.com/example/venue-booking/internal/scheduler"
	"github.com/example/venue-booking/internal/timezone"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) > 0 && args[0] == "hash-token" {
		return hashToken(args[1:], stdout)
	}

	flags := flag.NewFlagSet("venuebook", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to a configuration file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger := logging.New(stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return err
	}
	defer app.Close()

	app.jobs.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.jobs.Stop(stopCtx); err != nil {
			logger.Error("failed to stop jobs", "error", err)
		}
	}()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("venuebook API listening", "addr", server.Addr, "storage_driver", cfg.StorageDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		return err
	}
	return nil
}

// hashToken prints a hash suitable for VENUEBOOK_ADMIN_TOKEN_HASH.
func hashToken(args []string, stdout io.Writer) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return errors.New("usage: venuebook hash-token <token>")
	}
	hashed, err := application.HashAdminToken(args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, hashed)
	return err
}

type storage interface {
	persistence.Store
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
}

// memoryStorage gives the in-process store the lifecycle of the SQL backends.
type memoryStorage struct {
	*memory.Storage
}

func (memoryStorage) Migrate(context.Context) error { return nil }

func (memoryStorage) Ping(context.Context) error { return nil }

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		return sqlite.Open(sqlite.DefaultConfig(cfg.SQLitePath), logger)
	case config.DriverPostgres:
		return postgres.Open(ctx, postgres.DefaultConfig(cfg.PostgresURL), logger)
	case config.DriverMemory:
		return memoryStorage{Storage: memory.New()}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func newLocker(ctx context.Context, cfg config.Config, logger *slog.Logger) (locking.Locker, func() error, error) {
	if !cfg.UsesRedis() {
		return locking.NewMutexLocker(), func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	return locking.NewRedisLocker(client, logger), client.Close, nil
}

type app struct {
	handler http.Handler
	jobs    *jobs.Scheduler
	closers []func() error
	logger  *slog.Logger
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to release resource", "error", err)
		}
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	if err := store.Migrate(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	dataset, err := timezone.DefaultDataset()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load time zone dataset: %w", err)
	}
	zones, err := timezone.NewResolver(cfg.DefaultTimeZone, dataset)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("time zone resolver: %w", err)
	}

	locker, closeLocker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeLocker)

	idGenerator := uuid.NewString
	now := time.Now

	venueRepo := newVenueRepositoryAdapter(store)
	bookingRepo := newBookingRepositoryAdapter(store)
	importRepo := newImportRepositoryAdapter(store)
	detector := scheduler.NewDetector(overlapFinderAdapter{repo: store})

	venueService := application.NewVenueServiceWithLogger(venueRepo, bookingRepo, zones, idGenerator, now, logger)
	bookingService := application.NewBookingServiceWithLogger(bookingRepo, venueRepo, detector, zones, locker, idGenerator, now, logger)
	conflictService := application.NewConflictQueryServiceWithLogger(venueRepo, detector, zones, application.ConflictQueryOptions{
		CacheTTL: cfg.ConflictCacheTTL,
	}, logger)
	bookingService.OnChange(conflictService.Invalidate)
	slotService := application.NewSlotOptionsService(venueRepo, zones, now)
	importService := application.NewImportServiceWithLogger(importRepo, venueRepo, bookingService, detector, zones, idGenerator, now, logger)

	a.jobs = jobs.NewScheduler(logger)
	if err := a.jobs.Add(cfg.ImportPurgeSchedule, jobs.NewImportPurgeJob(importService, cfg.ImportRetention, time.Minute, logger)); err != nil {
		a.Close()
		return nil, fmt.Errorf("schedule import purge: %w", err)
	}

	a.handler = httptransport.NewRouter(httptransport.RouterConfig{
		Venues:                httptransport.NewVenueHandler(venueService, bookingService, cfg.PublicBaseURL, logger),
		Bookings:              httptransport.NewBookingHandler(bookingService, logger),
		Conflicts:             httptransport.NewConflictHandler(conflictService, slotService, logger),
		Imports:               httptransport.NewImportHandler(importService, venueService, logger),
		Health:                store.Ping,
		Admin:                 httptransport.AdminTokenHash(cfg.AdminTokenHash),
		ConflictRatePerMinute: cfg.ConflictRatePerMinute,
		Logger:                logger,
	})
	return a, nil
}
