package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"ryxel/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	// Postgres SQLSTATE codes surfaced on write conflicts under
	// serializable isolation.
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// txRunner implements TxRunner on a pgx connection pool.
type txRunner struct {
	pool        *pgxpool.Pool
	maxAttempts int
	retryDelay  time.Duration
	logger      zerolog.Logger
}

// NewTxRunner creates a transaction runner with bounded conflict retry.
// maxAttempts <= 0 falls back to 3 attempts.
func NewTxRunner(pool *pgxpool.Pool, maxAttempts int, logger zerolog.Logger) TxRunner {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &txRunner{
		pool:        pool,
		maxAttempts: maxAttempts,
		retryDelay:  25 * time.Millisecond,
		logger:      logger.With().Str("component", "tx-runner").Logger(),
	}
}

// RunSerializable runs fn inside a serializable transaction. Write
// conflicts (40001/40P01) are retried with short randomized backoff up
// to the configured bound, after which model.ErrTransactionConflict is
// returned. Any other error aborts immediately and rolls back.
func (r *txRunner) RunSerializable(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := r.runOnce(ctx, fn)
		if err == nil {
			return nil
		}

		if !isWriteConflict(err) {
			return err
		}

		lastErr = err
		r.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", r.maxAttempts).
			Msg("transaction write conflict, retrying")

		if attempt < r.maxAttempts {
			select {
			case <-time.After(r.backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	r.logger.Error().
		Err(lastErr).
		Int("attempts", r.maxAttempts).
		Msg("transaction aborted after repeated write conflicts")

	return fmt.Errorf("%w: %v", model.ErrTransactionConflict, lastErr)
}

func (r *txRunner) runOnce(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				r.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// backoff returns a short delay that grows with the attempt number and
// carries random jitter so contending checkouts do not retry in lockstep.
func (r *txRunner) backoff(attempt int) time.Duration {
	base := r.retryDelay * time.Duration(attempt)
	jitter := time.Duration(rand.Int63n(int64(r.retryDelay)))
	return base + jitter
}

// isWriteConflict reports whether err is a retryable conflict raised by
// the database's concurrency control.
func isWriteConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

// IsUniqueViolation reports whether err is a unique-constraint
// violation on the named constraint. Used to detect order-code
// collisions, which callers resolve by regenerating the code.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == constraint
}
