package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/example/venue-booking/internal/persistence"
	"github.com/example/venue-booking/internal/persistence/persistencetest"
	"github.com/example/venue-booking/internal/persistence/postgres"
)

const testURLEnv = "VENUEBOOK_TEST_POSTGRES_URL"

// newTestStorage connects to the database named by VENUEBOOK_TEST_POSTGRES_URL
// and empties every table. Tests using it must not run in parallel.
func newTestStorage(t *testing.T) persistence.Store {
	t.Helper()

	url := os.Getenv(testURLEnv)
	if url == "" {
		t.Skipf("%s not set", testURLEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := postgres.DefaultConfig(url)
	cfg.ConnectAttempts = 1
	storage, err := postgres.Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		t.Fatalf("migrate: %v", err)
	}
	if err := storage.Truncate(ctx); err != nil {
		_ = storage.Close()
		t.Fatalf("truncate: %v", err)
	}
	return storage
}

func TestPostgresStoreContract(t *testing.T) {
	persistencetest.Run(t, newTestStorage)
}

func TestOpenRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := postgres.Open(context.Background(), postgres.Config{}, nil); err == nil {
		t.Fatal("expected an error for an empty url")
	}
}

func TestMapErrorTranslatesSQLState(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code string
		want error
	}{
		{code: "23P01", want: persistence.ErrOverlap},
		{code: "23505", want: persistence.ErrDuplicate},
		{code: "23503", want: persistence.ErrForeignKeyViolation},
		{code: "23514", want: persistence.ErrConstraintViolation},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.code, func(t *testing.T) {
			t.Parallel()
			err := postgres.MapError("op", &pgconn.PgError{Code: tc.code, Message: "boom"})
			if !errors.Is(err, tc.want) {
				t.Fatalf("MapError(%s) = %v, want %v", tc.code, err, tc.want)
			}
		})
	}
}
