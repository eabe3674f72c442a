package errors

import (
	"context"
)

// IsRetryableError determines if an error is transient and the operation
// should be retried. Corruption, invariant violations and parent mismatches
// are terminal and must never be retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if Is(err, context.Canceled) || Is(err, context.DeadlineExceeded) {
		return false
	}

	if IsTerminalError(err) {
		return false
	}

	for e := err; e != nil; e = Unwrap(e) {
		if tErr, ok := e.(*Error); ok {
			switch tErr.Code() {
			case ERR_STORAGE_ERROR,
				ERR_STORAGE_UNAVAILABLE,
				ERR_SERVICE_UNAVAILABLE:
				return true
			}
		}
	}

	return false
}

// IsTerminalError reports whether the error means the index state can no
// longer be trusted and the service must be quarantined.
func IsTerminalError(err error) bool {
	if err == nil {
		return false
	}

	for e := err; e != nil; e = Unwrap(e) {
		if tErr, ok := e.(*Error); ok {
			switch tErr.Code() {
			case ERR_CORRUPT,
				ERR_INVARIANT,
				ERR_BLOCK_PARENT_MISMATCH:
				return true
			}
		}
	}

	return false
}
