package memory

import (
	"context"
	"testing"

	"github.com/bsv-blockchain/coinstatsindex/errors"
	"github.com/bsv-blockchain/coinstatsindex/stores/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMissVsExists(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, []byte("missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	found, err := s.Exists(ctx, []byte("missing"))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, []byte("k"), []byte("v")))

	found, err = s.Exists(ctx, []byte("k"))
	require.NoError(t, err)
	assert.True(t, found)

	v, err := s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Set(ctx, []byte("k"), []byte("v1")))

	v, err := s.Get(ctx, []byte("k"))
	require.NoError(t, err)

	v[0] = 'x'

	again, err := s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), again)
}

func TestWriteBatch(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.WriteBatch(ctx, []kv.BatchOp{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	})
	require.NoError(t, err)

	v, err := s.Get(ctx, []byte("b"))
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), v)
}

func TestWriteBatchFailureIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := New()

	s.WriteErr = errors.NewStorageError("disk full")

	err := s.WriteBatch(ctx, []kv.BatchOp{{Key: []byte("a"), Value: []byte("1")}})
	require.Error(t, err)

	s.WriteErr = nil

	_, err = s.Get(ctx, []byte("a"))
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestIterateOrderedPrefix(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Set(ctx, []byte{'t', 0, 0, 0, 2}, []byte("two")))
	require.NoError(t, s.Set(ctx, []byte{'t', 0, 0, 0, 0}, []byte("zero")))
	require.NoError(t, s.Set(ctx, []byte{'t', 0, 0, 0, 1}, []byte("one")))
	require.NoError(t, s.Set(ctx, []byte{'s', 0xff}, []byte("other")))

	it, err := s.Iterate(ctx, []byte{'t'})
	require.NoError(t, err)
	defer it.Release()

	var values []string
	for it.Next() {
		assert.Equal(t, byte('t'), it.Key()[0])
		values = append(values, string(it.Value()))
	}

	require.NoError(t, it.Err())
	assert.Equal(t, []string{"zero", "one", "two"}, values)
}

func TestEstimateSize(t *testing.T) {
	ctx := context.Background()
	s := New()

	size, err := s.EstimateSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), size)

	require.NoError(t, s.Set(ctx, []byte("ab"), []byte("cdef")))

	size, err = s.EstimateSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), size)
}

func TestInjectedErrors(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Set(ctx, []byte("k"), []byte("v")))

	s.GetErr = errors.NewStorageError("read failed")
	_, err := s.Get(ctx, []byte("k"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, errors.ErrNotFound))

	s.ExistsErr = errors.NewStorageError("read failed")
	_, err = s.Exists(ctx, []byte("k"))
	require.Error(t, err)
}
