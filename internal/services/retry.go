package services

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	log "github.com/sirupsen/logrus"

	apperrors "task-timer.com/task-timer/internal/errors"
)

const (
	retryBaseDelay = 50 * time.Millisecond
	retryMaxDelay  = time.Second
)

// retryPolicy retries storage faults and lost version races with
// exponential backoff. Domain errors are returned on the first attempt.
type retryPolicy struct {
	attempts uint
}

func newRetryPolicy(attempts int) retryPolicy {
	if attempts < 1 {
		attempts = 1
	}
	return retryPolicy{attempts: uint(attempts)}
}

func (p retryPolicy) do(ctx context.Context, op string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(retryBaseDelay),
		retry.MaxDelay(retryMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(apperrors.Retryable),
		retry.OnRetry(func(n uint, err error) {
			log.WithFields(log.Fields{"op": op, "attempt": n + 1}).WithError(err).Warn("retrying storage operation")
		}),
	)
}
