package retry

import (
	"context"
	"testing"
	"time"

	"github.com/bsv-blockchain/coinstatsindex/errors"
	"github.com/bsv-blockchain/coinstatsindex/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0

	result, err := Retry(context.Background(), ulogger.TestLogger{}, func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.NewStorageError("transient")
		}

		return 42, nil
	}, 5, time.Millisecond, "op")

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhausted(t *testing.T) {
	attempts := 0

	_, err := Retry(context.Background(), ulogger.TestLogger{}, func() (int, error) {
		attempts++
		return 0, errors.NewStorageError("always")
	}, 3, time.Millisecond, "op")

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Retry(ctx, ulogger.TestLogger{}, func() (int, error) {
		return 0, errors.NewStorageError("never called")
	}, 3, time.Millisecond, "op")

	require.ErrorIs(t, err, context.Canceled)
}
