// Package scoped runs a call inside an acquired remote session and always
// releases the session afterwards, whether or not the call succeeded.
package scoped

import (
	"context"

	"go.uber.org/zap"
)

// Session acquires and releases credentials for a remote system.
type Session[T any] interface {
	Acquire(ctx context.Context) (T, error)
	Release(ctx context.Context, cred T) error
}

// Do runs fn with freshly acquired credentials. Release failures are logged
// and never replace the result of fn.
func Do[T any](ctx context.Context, s Session[T], log *zap.Logger, fn func(context.Context, T) error) error {
	_, err := Value(ctx, s, log, func(ctx context.Context, cred T) (struct{}, error) {
		return struct{}{}, fn(ctx, cred)
	})
	return err
}

// Value is Do for calls that produce a result.
func Value[T, R any](ctx context.Context, s Session[T], log *zap.Logger, fn func(context.Context, T) (R, error)) (R, error) {
	var zero R
	cred, err := s.Acquire(ctx)
	if err != nil {
		return zero, err
	}
	defer func() {
		if rerr := s.Release(context.WithoutCancel(ctx), cred); rerr != nil && log != nil {
			log.Warn("failed to release remote session", zap.Error(rerr))
		}
	}()
	return fn(ctx, cred)
}
