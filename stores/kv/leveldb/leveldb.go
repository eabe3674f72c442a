// Package leveldb backs the kv.Store contract with goleveldb. Batches map
// to native leveldb write batches, which are atomic and crash-consistent,
// and prefix iteration uses the bounded range iterator.
package leveldb

import (
	"context"

	"github.com/bsv-blockchain/coinstatsindex/errors"
	"github.com/bsv-blockchain/coinstatsindex/stores/kv"
	"github.com/bsv-blockchain/coinstatsindex/ulogger"
	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/iterator"
	ldbutil "github.com/btcsuite/goleveldb/leveldb/util"
)

type Store struct {
	logger ulogger.Logger
	db     *leveldb.DB
	path   string
}

func New(logger ulogger.Logger, path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.NewStorageError("failed to open leveldb at %s", path, err)
	}

	return &Store{
		logger: logger,
		db:     db,
		path:   path,
	}, nil
}

func (s *Store) Get(_ context.Context, key []byte) ([]byte, error) {
	value, err := s.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, errors.NewNotFoundError("key not found", err)
		}

		return nil, errors.NewStorageError("failed to read key", err)
	}

	return value, nil
}

func (s *Store) Exists(_ context.Context, key []byte) (bool, error) {
	found, err := s.db.Has(key, nil)
	if err != nil {
		return false, errors.NewStorageError("failed to check key", err)
	}

	return found, nil
}

func (s *Store) Set(_ context.Context, key, value []byte) error {
	if err := s.db.Put(key, value, nil); err != nil {
		return errors.NewStorageError("failed to write key", err)
	}

	return nil
}

func (s *Store) WriteBatch(_ context.Context, ops []kv.BatchOp) error {
	batch := new(leveldb.Batch)
	for _, op := range ops {
		batch.Put(op.Key, op.Value)
	}

	if err := s.db.Write(batch, nil); err != nil {
		return errors.NewStorageError("failed to write batch of %d ops", len(ops), err)
	}

	return nil
}

func (s *Store) Iterate(_ context.Context, prefix []byte) (kv.Iterator, error) {
	it := s.db.NewIterator(ldbutil.BytesPrefix(prefix), nil)

	return &ldbIterator{it: it}, nil
}

func (s *Store) EstimateSize(_ context.Context) (uint64, error) {
	sizes, err := s.db.SizeOf([]ldbutil.Range{{Start: nil, Limit: nil}})
	if err != nil {
		return 0, errors.NewStorageError("failed to estimate size", err)
	}

	return uint64(sizes.Sum()), nil
}

func (s *Store) Health(_ context.Context, _ bool) (int, string, error) {
	return 200, "OK", nil
}

func (s *Store) Close(_ context.Context) error {
	if err := s.db.Close(); err != nil {
		return errors.NewStorageError("failed to close leveldb", err)
	}

	return nil
}

type ldbIterator struct {
	it iterator.Iterator
}

func (i *ldbIterator) Next() bool    { return i.it.Next() }
func (i *ldbIterator) Key() []byte   { return i.it.Key() }
func (i *ldbIterator) Value() []byte { return i.it.Value() }
func (i *ldbIterator) Release()      { i.it.Release() }

func (i *ldbIterator) Err() error {
	if err := i.it.Error(); err != nil {
		return errors.NewStorageError("iterator error", err)
	}

	return nil
}
