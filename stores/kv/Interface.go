// Package kv defines the key-value store contract the coin stats index
// persists through: point reads with a miss/exists distinction, atomic
// batch writes, and ordered prefix iteration.
package kv

import (
	"context"
)

// BatchOp is a single write inside an atomic batch.
type BatchOp struct {
	Key   []byte
	Value []byte
}

// Iterator walks keys sharing a prefix in ascending byte order. Iterators
// are scoped to a single operation: Release must be called on every exit
// path, and no iterator may outlive a batch commit.
type Iterator interface {
	// Next advances and reports whether a pair is available.
	Next() bool

	// Key returns the current key. Only valid after Next returns true; the
	// slice is reused between calls.
	Key() []byte

	// Value returns the current value. Same validity rules as Key.
	Value() []byte

	// Err returns the first error hit while iterating.
	Err() error

	// Release frees the iterator.
	Release()
}

// Store is the persistence contract. A read miss is reported as an error
// with code ERR_NOT_FOUND; any other error from Get means the read failed
// and says nothing about the key's existence - callers that need the
// distinction must use Exists.
type Store interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Exists(ctx context.Context, key []byte) (bool, error)
	Set(ctx context.Context, key, value []byte) error

	// WriteBatch applies all ops atomically: either every op is visible
	// afterwards or none is.
	WriteBatch(ctx context.Context, ops []BatchOp) error

	// Iterate returns an iterator over all keys beginning with prefix.
	Iterate(ctx context.Context, prefix []byte) (Iterator, error)

	// EstimateSize reports the approximate on-disk size of the store.
	EstimateSize(ctx context.Context) (uint64, error)

	Health(ctx context.Context, checkLiveness bool) (int, string, error)

	Close(ctx context.Context) error
}
