package store

import (
	"sort"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
)

//////////////////////////////////////////////
// Empty KVStore

// EmptyKVStore never holds any data, used as a base layer to test caching.
type EmptyKVStore struct{}

var _ weft.KVStore = EmptyKVStore{}

// Get always returns nil.
func (e EmptyKVStore) Get(key []byte) ([]byte, error) { return nil, nil }

// Has always returns false.
func (e EmptyKVStore) Has(key []byte) (bool, error) { return false, nil }

// Set is a noop.
func (e EmptyKVStore) Set(key, value []byte) error { return nil }

// Delete is a noop.
func (e EmptyKVStore) Delete(key []byte) error { return nil }

// Iterator is always empty.
func (e EmptyKVStore) Iterator(start, end []byte) (weft.Iterator, error) {
	return newSliceIterator(nil, nil, false), nil
}

// ReverseIterator is always empty.
func (e EmptyKVStore) ReverseIterator(start, end []byte) (weft.Iterator, error) {
	return newSliceIterator(nil, nil, true), nil
}

// NewBatch returns a batch that can write to this (no-op) store.
func (e EmptyKVStore) NewBatch() weft.Batch { return NewNonAtomicBatch(e) }

////////////////////////////////////////////////
// Non-atomic batch (dummy implementation)

type opKind int32

const (
	setKind opKind = iota + 1
	delKind
)

// op is either set or delete
type op struct {
	kind  opKind
	key   []byte
	value []byte // only for set
}

func (o op) apply(out weft.SetDeleter) error {
	switch o.kind {
	case setKind:
		return out.Set(o.key, o.value)
	case delKind:
		return out.Delete(o.key)
	default:
		return errors.Wrapf(errors.ErrDatabase, "unknown op kind %d", o.kind)
	}
}

// NonAtomicBatch just piles up ops and executes them later on the
// underlying store. Can be used when there is no better option (for in
// memory stores).
type NonAtomicBatch struct {
	out weft.SetDeleter
	ops []op
}

var _ weft.Batch = (*NonAtomicBatch)(nil)

// NewNonAtomicBatch creates an empty batch to be later written to the
// KVStore.
func NewNonAtomicBatch(out weft.SetDeleter) *NonAtomicBatch {
	return &NonAtomicBatch{
		out: out,
	}
}

// Set adds a set operation to the batch.
func (b *NonAtomicBatch) Set(key, value []byte) error {
	set := op{
		kind:  setKind,
		key:   key,
		value: value,
	}
	b.ops = append(b.ops, set)
	return nil
}

// Delete adds a delete operation to the batch.
func (b *NonAtomicBatch) Delete(key []byte) error {
	del := op{
		kind: delKind,
		key:  key,
	}
	b.ops = append(b.ops, del)
	return nil
}

// Write writes all the ops to the underlying store and resets.
func (b *NonAtomicBatch) Write() error {
	for _, o := range b.ops {
		if err := o.apply(b.out); err != nil {
			return err
		}
	}
	b.ops = nil
	return nil
}

///////////////////////////////////////////////
// Slice iterator

// sliceIterator wraps an in-memory, already resolved view of a key range.
type sliceIterator struct {
	keys   []string
	data   map[string][]byte
	cursor int
}

var _ weft.Iterator = (*sliceIterator)(nil)

// NewSliceIterator returns an iterator over an already materialized view.
// Keys present in order but missing from data are skipped, the rest is
// returned sorted (descending when reverse is set).
func NewSliceIterator(data map[string][]byte, order [][]byte, reverse bool) weft.Iterator {
	return newSliceIterator(data, order, reverse)
}

func newSliceIterator(data map[string][]byte, order [][]byte, reverse bool) *sliceIterator {
	keys := make([]string, 0, len(data))
	for _, key := range order {
		// deleted keys were dropped from the data view
		if _, ok := data[string(key)]; ok {
			keys = append(keys, string(key))
		}
	}
	sort.Strings(keys)
	if reverse {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}
	return &sliceIterator{
		keys: keys,
		data: data,
	}
}

func (s *sliceIterator) Next() ([]byte, []byte, error) {
	if s.cursor >= len(s.keys) {
		return nil, nil, errors.ErrIteratorDone
	}
	key := s.keys[s.cursor]
	s.cursor++
	return []byte(key), s.data[key], nil
}

func (s *sliceIterator) Release() {
	s.cursor = len(s.keys)
}
