package store

import (
	"context"
	"database/sql"
	"time"

	dErrors "idstatus/pkg/domain-errors"
	pkgstrings "idstatus/pkg/platform/strings"
	"idstatus/pkg/platform/tx"
)

// PostgresLocker serialises work per identity key across service instances
// with transaction-scoped advisory locks. Stores called inside fn join the
// same transaction through the context.
type PostgresLocker struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresLocker creates a locker; timeout bounds the whole locked section.
func NewPostgresLocker(db *sql.DB, timeout time.Duration) *PostgresLocker {
	return &PostgresLocker{db: db, timeout: timeout}
}

// WithKeyLock takes pg_advisory_xact_lock(hashtext(key)) for every key in
// sorted order, runs fn, and commits. Database failures around fn carry
// CodeUnavailable; fn's own error is returned as is.
func (l *PostgresLocker) WithKeyLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	sorted := pkgstrings.SortedUnique(keys)

	return tx.Run(ctx, l.db, l.timeout, func(ctx context.Context, sqlTx *sql.Tx) error {
		for _, key := range sorted {
			if _, err := sqlTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "acquire advisory lock")
			}
		}
		return fn(ctx)
	})
}
