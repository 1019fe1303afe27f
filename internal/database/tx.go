package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"tessera/internal/apperrors"
)

const (
	txMaxAttempts  = 3
	txRetryBackoff = 50 * time.Millisecond
)

// RunInTx executes fn inside a transaction, committing on success and
// rolling back on any error. Serialization failures and deadlocks are
// retried a bounded number of times before surfacing as ErrConflict, so
// callers holding row locks on hot ticket rows don't have to care about
// transient lock contention.
func (db *DB) RunInTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= txMaxAttempts; attempt++ {
		err := db.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsSerializationFailure(err) {
			return err
		}
		lastErr = err
		if attempt < txMaxAttempts {
			slog.Warn("Transaction conflict, retrying",
				"attempt", attempt, "max_attempts", txMaxAttempts, "error", err)
			time.Sleep(time.Duration(attempt) * txRetryBackoff)
		}
	}
	return fmt.Errorf("transaction failed after %d attempts (%v): %w",
		txMaxAttempts, lastErr, apperrors.ErrConflict)
}

func (db *DB) runOnce(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// IsSerializationFailure reports whether err is a Postgres serialization
// failure (40001) or deadlock (40P01), the two retryable lock-conflict
// classes.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// IsForeignKeyViolation reports whether err is a Postgres foreign key
// violation (23503).
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}
