// Copyright (c) 2023 BVK Chaitanya

package ctxutil

import (
	"context"
	"time"
)

// Sleep blocks the caller for given timeout duration. Returns early if the
// input context is canceled.
func Sleep(ctx context.Context, d time.Duration) {
	sctx, scancel := context.WithTimeout(ctx, d)
	<-sctx.Done()
	scancel()
}

// Retry runs the input function till it succeeds or till the input context is
// canceled. Returns nil if the input function is successful or last non-nil
// error from the function after the context has expired.
func Retry(ctx context.Context, interval time.Duration, f func() error) (err error) {
	for err = f(); err != nil && context.Cause(ctx) == nil; err = f() {
		Sleep(ctx, interval)
	}
	return
}

// RetryTimeout is similar to Retry, but gives up after the timeout.
func RetryTimeout(ctx context.Context, interval, timeout time.Duration, f func() error) error {
	sctx, scancel := context.WithTimeout(ctx, timeout)
	defer scancel()
	return Retry(sctx, interval, f)
}

// Periodic runs the input function once every interval till the context is
// canceled. Next invocation is scheduled only after the previous invocation
// returns, so invocations never overlap. When an invocation takes longer than
// the interval, next one starts immediately.
func Periodic(ctx context.Context, interval time.Duration, f func(context.Context)) error {
	for {
		start := time.Now()
		f(ctx)

		if d := interval - time.Since(start); d > 0 {
			Sleep(ctx, d)
		}
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
	}
}
