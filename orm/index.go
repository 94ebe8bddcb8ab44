package orm

import (
	"bytes"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
)

const indexPrefix = "_i."

// Indexer calculates the secondary index key for a given entity. Returning
// a nil key excludes the entity from the index.
type Indexer func(key []byte, value Model) ([]byte, error)

// MultiKeyIndexer calculates the secondary index keys for a given entity.
type MultiKeyIndexer func(key []byte, value Model) ([][]byte, error)

func asMultiKeyIndexer(indexer Indexer) MultiKeyIndexer {
	return func(key []byte, value Model) ([][]byte, error) {
		k, err := indexer(key, value)
		switch {
		case err != nil:
			return nil, err
		case k == nil:
			return nil, nil
		}
		return [][]byte{k}, nil
	}
}

// index is a secondary index on bucket entities. All primary keys indexed
// under the same value are stored as a set under a single database key.
// This layout works well for the small index collections this codebase
// maintains (tokens per owner, listings per collection).
type index struct {
	name    string
	id      []byte
	unique  bool
	indexer MultiKeyIndexer
}

func newIndex(name string, indexer MultiKeyIndexer, unique bool) *index {
	return &index{
		name:    name,
		id:      []byte(indexPrefix + name + ":"),
		unique:  unique,
		indexer: indexer,
	}
}

// indexKey is the full key we store in the db, including the prefix. We
// copy into a new array rather than use append, as we don't want
// consecutive calls to overwrite the same byte array.
func (i *index) indexKey(key []byte) []byte {
	l := len(i.id)
	out := make([]byte, l+len(key))
	copy(out, i.id)
	copy(out[l:], key)
	return out
}

// update refreshes the references to the entity in the index.
//
// prev == nil means insert
// next == nil means delete
// both == nil is an error
func (i *index) update(db weft.KVStore, key []byte, prev, next Model) error {
	type s struct{ a, b bool }
	sw := s{prev == nil, next == nil}
	switch sw {
	case s{true, true}:
		return errors.Wrap(errors.ErrHuman, "update requires at least one non-nil entity")
	case s{true, false}:
		keys, err := i.indexer(key, next)
		if err != nil {
			return err
		}
		for _, ik := range keys {
			if err := i.insert(db, ik, key); err != nil {
				return err
			}
		}
		return nil
	case s{false, true}:
		keys, err := i.indexer(key, prev)
		if err != nil {
			return err
		}
		for _, ik := range keys {
			if err := i.remove(db, ik, key); err != nil {
				return err
			}
		}
		return nil
	case s{false, false}:
		return i.move(db, key, prev, next)
	}
	return errors.Wrap(errors.ErrHuman, "you have violated the rules of boolean logic")
}

func (i *index) move(db weft.KVStore, key []byte, prev, next Model) error {
	oldKeys, err := i.indexer(key, prev)
	if err != nil {
		return err
	}
	newKeys, err := i.indexer(key, next)
	if err != nil {
		return err
	}
	keysToAdd := subtract(newKeys, oldKeys)
	keysToRemove := subtract(oldKeys, newKeys)

	for _, ik := range keysToAdd {
		if i.unique {
			val, err := db.Get(i.indexKey(ik))
			if err != nil {
				return err
			}
			if val != nil {
				return errors.Wrap(errors.ErrDuplicate, i.name)
			}
		}
	}

	for _, ik := range keysToRemove {
		if err := i.remove(db, ik, key); err != nil {
			return err
		}
	}
	for _, ik := range keysToAdd {
		if err := i.insert(db, ik, key); err != nil {
			return err
		}
	}
	return nil
}

// subtract returns all elements of minuend that are not in subtrahend.
func subtract(minuend, subtrahend [][]byte) [][]byte {
	if minuend == nil {
		return nil
	}
	r := make([][]byte, 0)
OUTER:
	for _, m := range minuend {
		for _, s := range subtrahend {
			if bytes.Equal(m, s) {
				continue OUTER
			}
		}
		r = append(r, m)
	}
	return r
}

// keys returns all entity primary keys indexed under given value.
func (i *index) keys(db weft.ReadOnlyKVStore, value []byte) ([][]byte, error) {
	raw, err := db.Get(i.indexKey(value))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	if i.unique {
		return [][]byte{raw}, nil
	}
	var data MultiRef
	if err := data.Unmarshal(raw); err != nil {
		return nil, errors.Wrapf(errors.ErrModel, "unmarshal index set: %s", err)
	}
	return data.Refs, nil
}

func (i *index) remove(db weft.KVStore, ik []byte, pk []byte) error {
	// don't deal with empty keys
	if len(ik) == 0 {
		return nil
	}

	key := i.indexKey(ik)
	cur, err := db.Get(key)
	if err != nil {
		return err
	}
	if cur == nil {
		return errors.Wrap(errors.ErrNotFound, "cannot remove index from nothing")
	}
	if i.unique {
		if !bytes.Equal(cur, pk) {
			return errors.Wrap(errors.ErrNotFound, "cannot remove index from invalid entity")
		}
		return db.Delete(key)
	}

	var data MultiRef
	if err := data.Unmarshal(cur); err != nil {
		return errors.Wrapf(errors.ErrModel, "unmarshal index set: %s", err)
	}
	if err := data.Remove(pk); err != nil {
		return err
	}
	// nothing left, delete this key
	if data.Size() == 0 {
		return db.Delete(key)
	}
	save, err := data.Marshal()
	if err != nil {
		return err
	}
	return db.Set(key, save)
}

func (i *index) insert(db weft.KVStore, ik []byte, pk []byte) error {
	// don't deal with empty keys
	if len(ik) == 0 {
		return nil
	}

	key := i.indexKey(ik)
	cur, err := db.Get(key)
	if err != nil {
		return err
	}

	if i.unique {
		if cur != nil {
			return errors.Wrap(errors.ErrDuplicate, i.name)
		}
		return db.Set(key, pk)
	}

	var data MultiRef
	if cur != nil {
		if err := data.Unmarshal(cur); err != nil {
			return errors.Wrapf(errors.ErrModel, "unmarshal index set: %s", err)
		}
	}
	if err := data.Add(pk); err != nil {
		return err
	}
	save, err := data.Marshal()
	if err != nil {
		return err
	}
	return db.Set(key, save)
}
