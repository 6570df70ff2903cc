package pipeline

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/wikipub/internal/wiki"
)

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *wiki.RetryableError
	return errors.As(err, &retryErr)
}

// retryDelay honours a server-requested delay, capped like Backoff, and falls
// back to Backoff otherwise.
func retryDelay(err error, attempt int, backoff func(int) time.Duration) time.Duration {
	var retryErr *wiki.RetryableError
	if errors.As(err, &retryErr) && retryErr.RetryAfter > 0 {
		return min(retryErr.RetryAfter, maxBackoff)
	}
	return backoff(attempt)
}

const maxBackoff = 30 * time.Second

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	base = min(base, maxBackoff)
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// MaxRetries bounds both transient-error retries and version-conflict restarts.
const MaxRetries = 3
