package leveldb

import (
	"context"
	"testing"

	"github.com/bsv-blockchain/coinstatsindex/errors"
	"github.com/bsv-blockchain/coinstatsindex/stores/kv"
	"github.com/bsv-blockchain/coinstatsindex/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	s, err := New(ulogger.TestLogger{}, t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close(context.Background())
	})

	return s
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

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

func TestWriteBatchAndIterate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.WriteBatch(ctx, []kv.BatchOp{
		{Key: []byte{'t', 0, 0, 0, 1}, Value: []byte("one")},
		{Key: []byte{'t', 0, 0, 0, 0}, Value: []byte("zero")},
		{Key: []byte{'s', 1}, Value: []byte("hash")},
	})
	require.NoError(t, err)

	it, err := s.Iterate(ctx, []byte{'t'})
	require.NoError(t, err)
	defer it.Release()

	var values []string
	for it.Next() {
		values = append(values, string(it.Value()))
	}

	require.NoError(t, it.Err())
	assert.Equal(t, []string{"zero", "one"}, values)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := New(ulogger.TestLogger{}, dir)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, []byte("k"), []byte("v")))
	require.NoError(t, s.Close(ctx))

	s, err = New(ulogger.TestLogger{}, dir)
	require.NoError(t, err)

	defer func() {
		_ = s.Close(ctx)
	}()

	v, err := s.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), v)
}

func TestEstimateSize(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.EstimateSize(ctx)
	require.NoError(t, err)
}
