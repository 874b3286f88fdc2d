package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/venue-booking/internal/persistence"
)

type txKey struct{}

func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if tx := txFromContext(ctx); tx != nil {
		return fn(ctx, tx)
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// SQLSTATE codes the stores translate.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
	codeExclusionViolation  = "23P01"
)

// mapError converts driver errors into persistence sentinels, keeping the
// original message for logs.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeExclusionViolation:
			return fmt.Errorf("%s: %w: %v", op, persistence.ErrOverlap, err)
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w: %v", op, persistence.ErrDuplicate, err)
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w: %v", op, persistence.ErrForeignKeyViolation, err)
		case codeCheckViolation, codeNotNullViolation:
			return fmt.Errorf("%s: %w: %v", op, persistence.ErrConstraintViolation, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireAffected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
