// Package retry provides bounded retry with exponential backoff for
// transient failures. The index core never retries internally; callers in
// the sync loop use this package around store and source operations.
package retry

import (
	"context"
	"time"

	"github.com/bsv-blockchain/coinstatsindex/ulogger"
)

// Retry calls f until it succeeds, the retry count is exhausted, or the
// context is cancelled. The backoff doubles after each attempt starting
// from backoff.
func Retry[T any](ctx context.Context, logger ulogger.Logger, f func() (T, error), retryCount int, backoff time.Duration, retryMessage string) (T, error) {
	var (
		result T
		err    error
	)

	for i := 0; i < retryCount; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
			result, err = f()
			if err == nil {
				return result, nil
			}

			if i < retryCount-1 {
				logger.Warnf("%s failed, retrying in %s (attempt %d/%d): %v", retryMessage, backoff, i+1, retryCount, err)

				select {
				case <-ctx.Done():
					return result, ctx.Err()
				case <-time.After(backoff):
				}

				backoff *= 2
			}
		}
	}

	return result, err
}
