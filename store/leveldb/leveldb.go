// Package leveldb provides a CommitKVStore backed by a goleveldb
// database. All the writes performed between two Commit calls are held in
// memory and flushed to disk as a single atomic leveldb batch, together
// with a version marker. A crash between commits therefore always leaves
// the last committed state intact.
package leveldb

import (
	"encoding/binary"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	dberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/store"
)

// versionKey is where the latest committed version number is stored. The
// 0x00 prefix keeps it outside of any bucket key space, which always
// starts with a lowercase bucket name.
var versionKey = []byte{0, 'v', 'e', 'r', 's', 'i', 'o', 'n'}

// CommitStore is a CommitKVStore implementation storing all data in a
// single leveldb database.
type CommitStore struct {
	mu      sync.Mutex
	db      *leveldb.DB
	pending *leveldb.Batch
	// overlay holds not yet committed writes so reads observe them.
	// nil value means a pending delete.
	overlay map[string][]byte
	version int64
}

var _ weft.CommitKVStore = (*CommitStore)(nil)

// NewCommitStore opens (or creates) a leveldb database under the given
// path.
func NewCommitStore(path string) (*CommitStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "open leveldb: %s", err)
	}
	return &CommitStore{
		db:      db,
		pending: new(leveldb.Batch),
		overlay: make(map[string][]byte),
	}, nil
}

// LoadLatestVersion loads the version marker of the last commit. A fresh
// database starts at version zero.
func (s *CommitStore) LoadLatestVersion() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.db.Get(versionKey, nil)
	switch {
	case err == dberrors.ErrNotFound:
		s.version = 0
		return nil
	case err != nil:
		return errors.Wrapf(errors.ErrDatabase, "load version: %s", err)
	}
	s.version = int64(binary.BigEndian.Uint64(raw))
	return nil
}

// LatestVersion returns info on the latest version saved to disk.
func (s *CommitStore) LatestVersion() (weft.CommitID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return weft.CommitID{Version: s.version}, nil
}

// Commit atomically flushes all pending writes together with the bumped
// version marker.
func (s *CommitStore) Commit() (weft.CommitID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, uint64(s.version))
	s.pending.Put(versionKey, raw)

	if err := s.db.Write(s.pending, nil); err != nil {
		s.version--
		return weft.CommitID{}, errors.Wrapf(errors.ErrDatabase, "commit: %s", err)
	}
	s.pending = new(leveldb.Batch)
	s.overlay = make(map[string][]byte)
	return weft.CommitID{Version: s.version}, nil
}

// CacheWrap branches off the current (committed plus pending) state.
func (s *CommitStore) CacheWrap() weft.KVCacheWrap {
	return store.NewBTreeCacheWrap(s, s.NewBatch(), nil)
}

// Close releases the underlying database handle.
func (s *CommitStore) Close() error {
	return s.db.Close()
}

// NewBatch returns a batch accumulating writes into the pending commit.
func (s *CommitStore) NewBatch() weft.Batch {
	return store.NewNonAtomicBatch(s)
}

// Get returns the not yet committed value when present, otherwise reads
// from disk.
func (s *CommitStore) Get(key []byte) ([]byte, error) {
	s.mu.Lock()
	if value, ok := s.overlay[string(key)]; ok {
		s.mu.Unlock()
		return value, nil
	}
	s.mu.Unlock()

	value, err := s.db.Get(key, nil)
	switch {
	case err == dberrors.ErrNotFound:
		return nil, nil
	case err != nil:
		return nil, errors.Wrapf(errors.ErrDatabase, "get: %s", err)
	}
	return value, nil
}

// Has checks existence in the pending overlay, then on disk.
func (s *CommitStore) Has(key []byte) (bool, error) {
	value, err := s.Get(key)
	return value != nil, err
}

// Set queues the write for the next commit.
func (s *CommitStore) Set(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.Put(key, value)
	s.overlay[string(key)] = value
	return nil
}

// Delete queues the removal for the next commit.
func (s *CommitStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.Delete(key)
	s.overlay[string(key)] = nil
	return nil
}

// Iterator walks the committed state merged with the pending overlay.
func (s *CommitStore) Iterator(start, end []byte) (weft.Iterator, error) {
	return s.iterator(start, end, false)
}

// ReverseIterator walks the same range in descending order.
func (s *CommitStore) ReverseIterator(start, end []byte) (weft.Iterator, error) {
	return s.iterator(start, end, true)
}

func (s *CommitStore) iterator(start, end []byte, reverse bool) (weft.Iterator, error) {
	data := make(map[string][]byte)
	order := make([][]byte, 0)

	it := s.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)
	for it.Next() {
		key := append([]byte{}, it.Key()...)
		value := append([]byte{}, it.Value()...)
		data[string(key)] = value
		order = append(order, key)
	}
	it.Release()
	if err := it.Error(); err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "iterate: %s", err)
	}

	s.mu.Lock()
	for key, value := range s.overlay {
		if !inRange([]byte(key), start, end) {
			continue
		}
		if value == nil {
			delete(data, key)
			continue
		}
		if _, ok := data[key]; !ok {
			order = append(order, []byte(key))
		}
		data[key] = value
	}
	s.mu.Unlock()

	return store.NewSliceIterator(data, order, reverse), nil
}

func inRange(key, start, end []byte) bool {
	if start != nil && string(key) < string(start) {
		return false
	}
	if end != nil && string(key) >= string(end) {
		return false
	}
	return true
}
