package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExpectRows wraps the result of an UPDATE or DELETE by primary key: a
// failure is wrapped with op and a command that touched no row yields
// notFound.
func ExpectRows(tag pgconn.CommandTag, err error, notFound error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique constraint failure
// (SQLSTATE 23505). With constraints given, the violated constraint must be
// one of them.
func IsUniqueViolation(err error, constraints ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	for _, c := range constraints {
		if pgErr.ConstraintName == c {
			return true
		}
	}
	return false
}

// SendBatch sends b on the transaction in ctx, or on the pool when there is none.
func SendBatch(ctx context.Context, pool *pgxpool.Pool, b *pgx.Batch) pgx.BatchResults {
	if tx := TxFromContext(ctx); tx != nil {
		return tx.SendBatch(ctx, b)
	}
	return pool.SendBatch(ctx, b)
}
