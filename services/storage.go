package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"peerlearn_server/apperrors"
)

const (
	defaultStorageTimeout = 5 * time.Second
	storageRetryDelay     = 50 * time.Millisecond
)

// callWithTimeout bounds one storage call.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		timeout = defaultStorageTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}

func isTransient(err error) bool {
	return errors.Is(err, apperrors.ErrStorageUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

// retryOnce runs an idempotent storage call, retrying a transient failure
// once. A failure that survives the retry is reported under code.
func retryOnce[T any](ctx context.Context, timeout time.Duration, code apperrors.Code, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	attempt := func() error {
		v, err := callWithTimeout(ctx, timeout, fn)
		if err != nil {
			if !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = v
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(storageRetryDelay), 1), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		var zero T
		if isTransient(err) {
			return zero, apperrors.Wrap(code, op+" failed", err)
		}
		return zero, err
	}
	return out, nil
}

// retryRegistry retries a registry write once and reports a lasting
// failure as RegistryUnavailable.
func retryRegistry(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	_, err := retryOnce(ctx, timeout, apperrors.CodeRegistryUnavailable, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// readStorage retries an idempotent read or upsert once and reports a
// lasting failure as StorageUnavailable.
func readStorage[T any](ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	return retryOnce(ctx, timeout, apperrors.CodeStorageUnavailable, op, fn)
}
