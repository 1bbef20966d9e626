package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/arunvm123/ticketinventory/metrics"
	"github.com/arunvm123/ticketinventory/model"
	zlog "github.com/rs/zerolog/log"
)

// runTx runs fn in one store transaction per attempt. model.ErrConflict is
// retried up to maxAttempts; anything else is returned as is.
func (e *Engine) runTx(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err = e.attempt(ctx, fn)
		if !errors.Is(err, model.ErrConflict) {
			return err
		}
		if attempt == e.maxAttempts {
			break
		}

		metrics.RecordBookingRetry(op)
		wait := e.backoff(attempt)
		zlog.Debug().Err(err).Str("op", op).Int("attempt", attempt).Dur("backoff", wait).Msg("retrying transaction")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", model.ErrTimeout, ctx.Err())
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %v", model.ErrConcurrentModification, op, e.maxAttempts, err)
}

func (e *Engine) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	txCtx, cancel := context.WithTimeout(ctx, e.txTimeout)
	defer cancel()

	err := e.store.RunInTransaction(txCtx, fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, model.ErrStoreUnavailable) && errors.Is(txCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", model.ErrTimeout, err)
	case model.IsKnown(err):
		return err
	default:
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
}

// backoff grows exponentially from baseBackoff with the upper half jittered.
func (e *Engine) backoff(attempt int) time.Duration {
	if e.baseBackoff <= 0 {
		return 0
	}
	d := e.baseBackoff << (attempt - 1)
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
