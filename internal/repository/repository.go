package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the slice of *pgxpool.Pool the repositories use. Tests substitute an
// in-memory implementation that enforces the same unique constraints the
// schema declares.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// reconcileAttempts bounds the create-then-reconcile loops. Two passes are
// enough in practice (lose the insert race once, then read the winner); the
// third absorbs a concurrent delete between conflict and re-read.
const reconcileAttempts = 3

// isUniqueViolation reports whether err is a Postgres unique-constraint
// rejection (23505). The repositories treat it as "someone else created the
// row first", never as a request failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
