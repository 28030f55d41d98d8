package resilience

import "context"

// RetryOnce runs fn, and if it fails with an error that retryable classifies
// as transient, runs it exactly once more. The second result is returned
// as-is; there is no backoff loop, callers that need one should not be on a
// live phone call.
func RetryOnce[R any](ctx context.Context, retryable func(error) bool, fn func(context.Context) (R, error)) (R, error) {
	result, err := fn(ctx)
	if err == nil || !retryable(err) {
		return result, err
	}
	if ctx.Err() != nil {
		return result, err
	}
	return fn(ctx)
}
