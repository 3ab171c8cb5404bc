package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	txDefaultAttempts = 5
	txDefaultTimeout  = 15 * time.Second
)

// TxFunc runs inside a Firestore transaction. Reads and writes issued
// through tx are committed atomically or retried as one unit.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption adjusts retry and deadline behaviour of a single transaction.
type TxOption func(*txSettings)

type txSettings struct {
	attempts int
	timeout  time.Duration
}

// WithTxAttempts caps how many times the transaction is retried on
// contention.
func WithTxAttempts(attempts int) TxOption {
	return func(s *txSettings) {
		if attempts > 0 {
			s.attempts = attempts
		}
	}
}

// WithTxTimeout bounds the wall time of the whole transaction including
// retries.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(s *txSettings) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// RunTransaction executes fn transactionally against client.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	if client == nil {
		return WrapError("transaction", errors.New("firestore: client is nil"))
	}
	if fn == nil {
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}

	settings := txSettings{attempts: txDefaultAttempts, timeout: txDefaultTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	// Only tighten the deadline; a caller-supplied shorter one wins.
	txCtx := ctx
	if settings.timeout > 0 {
		if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > settings.timeout {
			var cancel context.CancelFunc
			txCtx, cancel = context.WithTimeout(ctx, settings.timeout)
			defer cancel()
		}
	}

	err := client.RunTransaction(txCtx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, tx)
	}, firestore.MaxAttempts(settings.attempts))
	return WrapError("transaction", err)
}
