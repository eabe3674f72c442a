// Package memory is an in-process kv.Store used by tests and ephemeral
// runs. Writes are atomic under a single mutex, iteration is over a sorted
// snapshot of the keys, and the error fields let tests inject failures on
// specific operations.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/bsv-blockchain/coinstatsindex/errors"
	"github.com/bsv-blockchain/coinstatsindex/stores/kv"
)

type Store struct {
	mu   sync.RWMutex
	data map[string][]byte

	// Fault injection for tests. When set, the corresponding operation
	// fails with the given error instead of touching the map.
	GetErr    error
	ExistsErr error
	WriteErr  error
}

func New() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

func (s *Store) Get(_ context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.GetErr != nil {
		return nil, s.GetErr
	}

	value, ok := s.data[string(key)]
	if !ok {
		return nil, errors.NewNotFoundError("key not found")
	}

	out := make([]byte, len(value))
	copy(out, value)

	return out, nil
}

func (s *Store) Exists(_ context.Context, key []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.ExistsErr != nil {
		return false, s.ExistsErr
	}

	_, ok := s.data[string(key)]

	return ok, nil
}

func (s *Store) Set(_ context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.WriteErr != nil {
		return s.WriteErr
	}

	s.put(key, value)

	return nil
}

func (s *Store) WriteBatch(_ context.Context, ops []kv.BatchOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.WriteErr != nil {
		return s.WriteErr
	}

	for _, op := range ops {
		s.put(op.Key, op.Value)
	}

	return nil
}

func (s *Store) put(key, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	s.data[string(key)] = v
}

func (s *Store) Iterate(_ context.Context, prefix []byte) (kv.Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))

	for k := range s.data {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}

	sort.Strings(keys)

	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = s.data[k]
	}

	return &memIterator{keys: keys, values: values, pos: -1}, nil
}

func (s *Store) EstimateSize(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var size uint64
	for k, v := range s.data {
		size += uint64(len(k) + len(v))
	}

	return size, nil
}

func (s *Store) Health(_ context.Context, _ bool) (int, string, error) {
	return 200, "OK", nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

type memIterator struct {
	keys   []string
	values [][]byte
	pos    int
}

func (i *memIterator) Next() bool {
	i.pos++
	return i.pos < len(i.keys)
}

func (i *memIterator) Key() []byte   { return []byte(i.keys[i.pos]) }
func (i *memIterator) Value() []byte { return i.values[i.pos] }
func (i *memIterator) Err() error    { return nil }
func (i *memIterator) Release()      {}
