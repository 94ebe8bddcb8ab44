package orm

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/store"
)

type cntr struct {
	Count int64  `cbor:"1,keyasint"`
	Group string `cbor:"2,keyasint,omitempty"`
}

func (c *cntr) Marshal() ([]byte, error)   { return cbor.Marshal(c) }
func (c *cntr) Unmarshal(raw []byte) error { return cbor.Unmarshal(raw, c) }

func (c *cntr) Validate() error {
	if c.Count < 0 {
		return errors.Wrap(errors.ErrState, "negative count")
	}
	return nil
}

func TestModelBucket(t *testing.T) {
	db := store.MemStore()
	b := NewModelBucket("cnts", &cntr{})

	key, err := b.Put(db, []byte("c1"), &cntr{Count: 1})
	require.NoError(t, err)
	assert.Equal(t, []byte("c1"), key)

	var c cntr
	require.NoError(t, b.One(db, []byte("c1"), &c))
	assert.Equal(t, int64(1), c.Count)

	err = b.One(db, []byte("unknown"), &c)
	assert.True(t, errors.ErrNotFound.Is(err))

	assert.NoError(t, b.Has(db, []byte("c1")))
	assert.True(t, errors.ErrNotFound.Is(b.Has(db, []byte("unknown"))))
	assert.True(t, errors.ErrNotFound.Is(b.Has(db, nil)))

	require.NoError(t, b.Delete(db, []byte("c1")))
	assert.True(t, errors.ErrNotFound.Is(b.Has(db, []byte("c1"))))
	assert.True(t, errors.ErrNotFound.Is(b.Delete(db, []byte("c1"))))
}

func TestModelBucketPutSequence(t *testing.T) {
	db := store.MemStore()
	b := NewModelBucket("cnts", &cntr{}, WithIDSequence(NewSequence("cnts", "id")))

	k1, err := b.Put(db, nil, &cntr{Count: 1})
	require.NoError(t, err)
	k2, err := b.Put(db, nil, &cntr{Count: 2})
	require.NoError(t, err)

	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, k1)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 2}, k2)
}

func TestModelBucketPutValidates(t *testing.T) {
	db := store.MemStore()
	b := NewModelBucket("cnts", &cntr{})

	_, err := b.Put(db, []byte("bad"), &cntr{Count: -1})
	assert.True(t, errors.ErrState.Is(err))
}

func TestModelBucketByIndex(t *testing.T) {
	groupIndexer := func(key []byte, m Model) ([]byte, error) {
		c, ok := m.(*cntr)
		if !ok {
			return nil, errors.Wrapf(errors.ErrType, "%T", m)
		}
		if c.Group == "" {
			return nil, nil
		}
		return []byte(c.Group), nil
	}

	db := store.MemStore()
	b := NewModelBucket("cnts", &cntr{}, WithIndex("group", groupIndexer, false))

	_, err := b.Put(db, []byte("a"), &cntr{Count: 1, Group: "odd"})
	require.NoError(t, err)
	_, err = b.Put(db, []byte("b"), &cntr{Count: 2, Group: "even"})
	require.NoError(t, err)
	_, err = b.Put(db, []byte("c"), &cntr{Count: 3, Group: "odd"})
	require.NoError(t, err)

	var odd []cntr
	keys, err := b.ByIndex(db, "group", []byte("odd"), &odd)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.Equal(t, []cntr{{Count: 1, Group: "odd"}, {Count: 3, Group: "odd"}}, odd)

	// nil destination collects only the keys
	keys, err = b.ByIndex(db, "group", []byte("even"), nil)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("b")}, keys)

	// moving an entity between index values updates both sets
	_, err = b.Put(db, []byte("c"), &cntr{Count: 4, Group: "even"})
	require.NoError(t, err)
	keys, err = b.ByIndex(db, "group", []byte("odd"), nil)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a")}, keys)

	// deleting the last entity of a value removes the index entry
	require.NoError(t, b.Delete(db, []byte("a")))
	keys, err = b.ByIndex(db, "group", []byte("odd"), nil)
	require.NoError(t, err)
	assert.Nil(t, keys)

	_, err = b.ByIndex(db, "nope", []byte("odd"), nil)
	assert.Error(t, err)
}

func TestModelBucketUniqueIndex(t *testing.T) {
	one := func(key []byte, m Model) ([]byte, error) {
		return []byte(m.(*cntr).Group), nil
	}

	db := store.MemStore()
	b := NewModelBucket("cnts", &cntr{}, WithIndex("group", one, true))

	_, err := b.Put(db, []byte("a"), &cntr{Count: 1, Group: "x"})
	require.NoError(t, err)
	_, err = b.Put(db, []byte("b"), &cntr{Count: 2, Group: "x"})
	assert.True(t, errors.ErrDuplicate.Is(err))
}

func TestSequence(t *testing.T) {
	db := store.MemStore()
	s := NewSequence("cash", "id")

	latest, _, err := s.Latest(db)
	require.NoError(t, err)
	assert.Equal(t, int64(0), latest)

	for i := int64(1); i < 10; i++ {
		n, err := s.NextInt(db)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	latest, raw, err := s.Latest(db)
	require.NoError(t, err)
	assert.Equal(t, int64(9), latest)
	assert.Equal(t, int64(9), DecodeSequence(raw))
}
