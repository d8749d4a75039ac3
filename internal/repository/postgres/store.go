// Package postgres provides the remote, multi-user repository backend on
// PostgreSQL. Every write is an upsert on the entity's natural key, so calls
// are retried on transient failures without creating duplicates.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"duo-checkin-backend/internal/apperr"
	"duo-checkin-backend/internal/repository"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultCallTimeout = 5 * time.Second
	defaultMaxRetries  = 3
)

// Options tunes remote call behaviour
type Options struct {
	// CallTimeout bounds each attempt of a remote call.
	CallTimeout time.Duration
	// MaxRetries is the number of extra attempts after a transient failure.
	MaxRetries int
}

// Store handles database operations for every entity
type Store struct {
	db          *pgxpool.Pool
	callTimeout time.Duration
	maxRetries  int
	events      *repository.Broadcaster

	listenOnce sync.Once
	stop       context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a store over an open pool
func New(db *pgxpool.Pool, opts Options) *Store {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Store{
		db:          db,
		callTimeout: opts.CallTimeout,
		maxRetries:  opts.MaxRetries,
		events:      repository.NewBroadcaster(),
	}
}

// Close stops the message listener and closes the pool
func (s *Store) Close() error {
	if s.stop != nil {
		s.stop()
	}
	s.wg.Wait()
	s.db.Close()
	return nil
}

// retry runs fn with a per-attempt timeout, retrying transient failures with
// exponential backoff until the budget or ctx runs out.
func retry[T any](ctx context.Context, s *Store, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	return backoff.Retry(ctx, func() (T, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		defer cancel()

		result, err := fn(callCtx)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return result, backoff.Permanent(ctx.Err())
		}
		err = classify(op, err)
		if apperr.IsTransient(err) {
			return result, err
		}
		return result, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(s.maxRetries+1)))
}

// exec is retry for calls without a result
func exec(ctx context.Context, s *Store, op string, fn func(ctx context.Context) error) error {
	_, err := retry(ctx, s, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// classify tags a driver error with the application taxonomy
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505" && pgErr.ConstraintName == "users_invite_code_key":
			return apperr.ErrInviteCodeConflict.With(err)
		case pgErr.Code == "23505" && pgErr.ConstraintName == "partner_bindings_partner_key",
			pgErr.Code == "23505" && pgErr.ConstraintName == "partner_bindings_pkey":
			return apperr.ErrAlreadyBound.With(err)
		case pgErr.Code == "23505":
			return &apperr.Error{Kind: apperr.KindConflict, Code: "unique_violation", Message: op, Err: err}
		case pgErr.Code == "23503":
			return apperr.ErrNotFound.Withf("%s: referenced row does not exist", op)
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01",
			len(pgErr.Code) == 5 && pgErr.Code[:2] == "08":
			return apperr.Transient(op, err)
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return apperr.Transient(op, err)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return apperr.Transient(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperr.Transient(op, err)
	}
	if errors.Is(err, pgx.ErrTxClosed) {
		return apperr.Transient(op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

var _ repository.Store = (*Store)(nil)
