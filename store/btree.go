package store

import (
	"bytes"

	"github.com/google/btree"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
)

const (
	// DefaultFreeListSize is the size we hold for free nodes in btree
	DefaultFreeListSize = btree.DefaultFreeListSize

	// degree is the branching factor of the cache btree
	degree = 2
)

// BTreeCacheable adds a simple btree-based CacheWrap strategy to a
// KVStore.
type BTreeCacheable struct {
	weft.KVStore
}

var _ weft.CacheableKVStore = BTreeCacheable{}

// CacheWrap returns a BTreeCacheWrap that can be later written to this
// store, or rolled back.
func (b BTreeCacheable) CacheWrap() weft.KVCacheWrap {
	return NewBTreeCacheWrap(b.KVStore, b.NewBatch(), nil)
}

// MemStore returns a simple implementation useful for tests. There is no
// persistence here.
func MemStore() weft.CacheableKVStore {
	e := EmptyKVStore{}
	return NewBTreeCacheWrap(e, e.NewBatch(), nil)
}

///////////////////////////////////////////////
// Actual CacheWrap implementation

// BTreeCacheWrap places a btree cache over a KVStore.
type BTreeCacheWrap struct {
	bt    *btree.BTree
	free  *btree.FreeList
	back  weft.ReadOnlyKVStore
	batch weft.Batch
}

var _ weft.KVCacheWrap = BTreeCacheWrap{}

// NewBTreeCacheWrap initializes a BTree to cache around this kv store.
// Use ReadOnlyKVStore to emphasize that all writes must go through the
// Batch.
//
// free may be nil, but set to an existing list to reuse it for memory
// savings.
func NewBTreeCacheWrap(kv weft.ReadOnlyKVStore, batch weft.Batch, free *btree.FreeList) BTreeCacheWrap {
	if free == nil {
		free = btree.NewFreeList(DefaultFreeListSize)
	}
	return BTreeCacheWrap{
		bt:    btree.NewWithFreeList(degree, free),
		free:  free,
		back:  kv,
		batch: batch,
	}
}

// CacheWrap layers another cache on top of this one. It is allowed to
// write to the BTreeCacheWrap, as it is only backed by a batch.
func (b BTreeCacheWrap) CacheWrap() weft.KVCacheWrap {
	// We need to be able to read from the original store, through all
	// pending changes, so the parent of the new wrap is this wrap.
	return NewBTreeCacheWrap(b, b.NewBatch(), b.free)
}

// NewBatch returns a non-atomic batch that eventually may write to our
// cachewrap.
func (b BTreeCacheWrap) NewBatch() weft.Batch {
	return NewNonAtomicBatch(b)
}

// Write syncs with the underlying store.
func (b BTreeCacheWrap) Write() error {
	err := b.batch.Write()
	b.Discard()
	return err
}

// Discard invalidates this CacheWrap and releases all data.
func (b BTreeCacheWrap) Discard() {
	for stop := false; !stop; {
		item := b.bt.DeleteMin()
		stop = item == nil
	}
}

// Set writes to the BTree and to the batch.
func (b BTreeCacheWrap) Set(key, value []byte) error {
	b.bt.ReplaceOrInsert(newSetItem(key, value))
	return b.batch.Set(key, value)
}

// Delete deletes from the BTree and to the batch.
func (b BTreeCacheWrap) Delete(key []byte) error {
	b.bt.ReplaceOrInsert(newDeletedItem(key))
	return b.batch.Delete(key)
}

// Get reads from the BTree if there, else backing store.
func (b BTreeCacheWrap) Get(key []byte) ([]byte, error) {
	res := b.bt.Get(bkey{key})
	if res != nil {
		switch t := res.(type) {
		case setItem:
			return t.value, nil
		case deletedItem:
			return nil, nil
		default:
			return nil, errors.Wrapf(errors.ErrDatabase, "unknown cache item type %T", t)
		}
	}
	return b.back.Get(key)
}

// Has reads from the BTree if there, else backing store.
func (b BTreeCacheWrap) Has(key []byte) (bool, error) {
	res := b.bt.Get(bkey{key})
	if res != nil {
		switch t := res.(type) {
		case setItem:
			return true, nil
		case deletedItem:
			return false, nil
		default:
			return false, errors.Wrapf(errors.ErrDatabase, "unknown cache item type %T", t)
		}
	}
	return b.back.Has(key)
}

// Iterator over a domain of keys in ascending order.
// Combines results from btree and backing store.
func (b BTreeCacheWrap) Iterator(start, end []byte) (weft.Iterator, error) {
	parent, err := b.back.Iterator(start, end)
	if err != nil {
		return nil, err
	}
	return b.mergedIterator(parent, start, end, false)
}

// ReverseIterator over a domain of keys in descending order.
// Combines results from btree and backing store.
func (b BTreeCacheWrap) ReverseIterator(start, end []byte) (weft.Iterator, error) {
	parent, err := b.back.ReverseIterator(start, end)
	if err != nil {
		return nil, err
	}
	return b.mergedIterator(parent, start, end, true)
}

// mergedIterator materializes both the backing iterator and the cache
// overlay into a single ordered view. Iteration domains in this codebase
// are bucket or index ranges, which are expected to be of modest size.
func (b BTreeCacheWrap) mergedIterator(parent weft.Iterator, start, end []byte, reverse bool) (weft.Iterator, error) {
	defer parent.Release()

	merged := make(map[string][]byte)
	order := make([][]byte, 0)

	for {
		key, value, err := parent.Next()
		if err != nil {
			if errors.ErrIteratorDone.Is(err) {
				break
			}
			return nil, err
		}
		if _, ok := merged[string(key)]; !ok {
			order = append(order, key)
		}
		merged[string(key)] = value
	}

	ascend := func(item btree.Item) bool {
		switch t := item.(type) {
		case setItem:
			if _, ok := merged[string(t.key)]; !ok {
				order = append(order, t.key)
			}
			merged[string(t.key)] = t.value
		case deletedItem:
			delete(merged, string(t.key))
		}
		return true
	}
	if start == nil && end == nil {
		b.bt.Ascend(ascend)
	} else if start == nil {
		b.bt.AscendLessThan(bkey{end}, ascend)
	} else if end == nil {
		b.bt.AscendGreaterOrEqual(bkey{start}, ascend)
	} else {
		b.bt.AscendRange(bkey{start}, bkey{end}, ascend)
	}

	return newSliceIterator(merged, order, reverse), nil
}

/////////////////////////////////////////////////////////
// Items to write to btree

// bkey implements btree.Item with ordering over raw bytes.
type bkey struct {
	key []byte
}

func (k bkey) Less(item btree.Item) bool {
	cmp := item.(keyer).Key()
	return bytes.Compare(k.key, cmp) < 0
}

func (k bkey) Key() []byte {
	return k.key
}

type keyer interface {
	Key() []byte
}

// setItem is a cache entry that masks the backing store value.
type setItem struct {
	bkey
	value []byte
}

func newSetItem(key, value []byte) setItem {
	return setItem{bkey{key}, value}
}

// deletedItem is a tombstone masking a backing store entry.
type deletedItem struct {
	bkey
}

func newDeletedItem(key []byte) deletedItem {
	return deletedItem{bkey{key}}
}
