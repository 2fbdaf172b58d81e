package remote

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// withRetry runs op up to attempts times, waiting a fixed delay between tries. Errors wrapped with
// backoff.Permanent end the loop immediately; the last error is returned unchanged.
func withRetry[T any](ctx context.Context, what string, attempts int, wait time.Duration, op func() (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(wait), uint64(attempts-1)),
		ctx)

	try := 0
	return backoff.RetryNotifyWithData(func() (T, error) {
		try++
		return op()
	}, policy, func(err error, next time.Duration) {
		log.Warn().
			Err(err).
			Str("request", what).
			Int("attempt", try).
			Int("attempts", attempts).
			Dur("retryIn", next).
			Msg("transient request failure, retrying")
	})
}
