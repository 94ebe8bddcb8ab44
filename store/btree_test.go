package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
)

func TestBTreeCacheGetSet(t *testing.T) {
	base := MemStore()

	k, v := []byte("french"), []byte("fry")
	err := base.Set(k, v)
	require.NoError(t, err)

	cache := base.CacheWrap()
	got, err := cache.Get(k)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	// a write in the cache must not leak into the parent
	k2, v2 := []byte("LA"), []byte("Dodgers")
	require.NoError(t, cache.Set(k2, v2))
	got, err = base.Get(k2)
	require.NoError(t, err)
	assert.Nil(t, got)

	// a delete in the cache masks the parent value
	require.NoError(t, cache.Delete(k))
	has, err := cache.Has(k)
	require.NoError(t, err)
	assert.False(t, has)
	has, err = base.Has(k)
	require.NoError(t, err)
	assert.True(t, has)

	// writing applies all changes to the parent
	require.NoError(t, cache.Write())
	got, err = base.Get(k2)
	require.NoError(t, err)
	assert.Equal(t, v2, got)
	has, err = base.Has(k)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestBTreeCacheDiscard(t *testing.T) {
	base := MemStore()
	require.NoError(t, base.Set([]byte("a"), []byte("1")))

	cache := base.CacheWrap()
	require.NoError(t, cache.Set([]byte("b"), []byte("2")))
	require.NoError(t, cache.Delete([]byte("a")))
	cache.Discard()

	got, err := base.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)
	got, err = base.Get([]byte("b"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBTreeCacheIterator(t *testing.T) {
	base := MemStore()
	require.NoError(t, base.Set([]byte("a"), []byte("1")))
	require.NoError(t, base.Set([]byte("c"), []byte("3")))
	require.NoError(t, base.Set([]byte("e"), []byte("5")))

	cache := base.CacheWrap().(BTreeCacheWrap)
	require.NoError(t, cache.Set([]byte("b"), []byte("2")))
	require.NoError(t, cache.Set([]byte("c"), []byte("33")))
	require.NoError(t, cache.Delete([]byte("e")))

	it, err := cache.Iterator(nil, nil)
	require.NoError(t, err)
	assertIterator(t, it, [][]byte{
		[]byte("a"), []byte("b"), []byte("c"),
	}, [][]byte{
		[]byte("1"), []byte("2"), []byte("33"),
	})

	rit, err := cache.ReverseIterator([]byte("b"), nil)
	require.NoError(t, err)
	assertIterator(t, rit, [][]byte{
		[]byte("c"), []byte("b"),
	}, [][]byte{
		[]byte("33"), []byte("2"),
	})
}

func assertIterator(t *testing.T, it weft.Iterator, keys, values [][]byte) {
	t.Helper()
	for i := range keys {
		key, value, err := it.Next()
		require.NoError(t, err)
		assert.Equal(t, keys[i], key)
		assert.Equal(t, values[i], value)
	}
	_, _, err := it.Next()
	assert.True(t, errors.ErrIteratorDone.Is(err))
	it.Release()
}

func TestMeter(t *testing.T) {
	db := MemStore()
	require.NoError(t, db.Set([]byte("old"), []byte("xxxx")))

	m := NewMeter(db)
	require.NoError(t, m.Set([]byte("abc"), []byte("defgh")))
	assert.Equal(t, int64(8), m.Delta())

	// overwriting accounts only for the value size difference
	require.NoError(t, m.Set([]byte("old"), []byte("xx")))
	assert.Equal(t, int64(6), m.Delta())

	// deleting releases key and value bytes
	require.NoError(t, m.Delete([]byte("abc")))
	assert.Equal(t, int64(-2), m.Delta())

	// deleting a missing key changes nothing
	require.NoError(t, m.Delete([]byte("nope")))
	assert.Equal(t, int64(-2), m.Delta())
}
