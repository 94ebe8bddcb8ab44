package orm

import (
	"fmt"
	"reflect"
	"regexp"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/errors"
)

var isBucketName = regexp.MustCompile(`^[a-z_]{3,10}$`).MatchString

// Model is implemented by any entity that can be stored using ModelBucket.
type Model interface {
	weft.Persistent
	Validate() error
}

// ModelSlicePtr represents a pointer to a slice of models. Think of it as
// *[]Model. Because of Go type system, using []Model would not work for
// us. Instead we use a placeholder type and the validation is done during
// the runtime.
type ModelSlicePtr interface{}

// ModelBucket is implemented by buckets that operate on Models rather
// than raw bytes.
type ModelBucket interface {
	// One queries the database for a single model instance. Lookup is
	// done by the primary key. The result is loaded into the given
	// destination model. This method returns ErrNotFound if the entity
	// does not exist in the database.
	One(db weft.ReadOnlyKVStore, key []byte, dest Model) error

	// ByIndex returns all objects that secondary index with given name
	// and given key points to. A nil destination collects only the
	// primary keys. Returns the primary keys of the matched entities.
	ByIndex(db weft.ReadOnlyKVStore, indexName string, key []byte, dest ModelSlicePtr) ([][]byte, error)

	// Put saves given model in the database. Before inserting into the
	// database, the model is validated using its Validate method. If the
	// key is nil and the bucket has an ID sequence, a key is generated.
	// Returns the key used.
	Put(db weft.KVStore, key []byte, m Model) ([]byte, error)

	// Delete removes an entity with given primary key from the database.
	// It returns ErrNotFound if an entity with given key does not exist.
	Delete(db weft.KVStore, key []byte) error

	// Has returns nil if an entity with given primary key exists, and
	// ErrNotFound otherwise.
	Has(db weft.ReadOnlyKVStore, key []byte) error
}

// ModelBucketOption configures a model bucket during creation.
type ModelBucketOption func(mb *modelBucket)

// WithIndex configures a secondary index on the bucket. Indexed values
// can be queried with the ByIndex method.
func WithIndex(name string, indexer Indexer, unique bool) ModelBucketOption {
	return WithMultiKeyIndex(name, asMultiKeyIndexer(indexer), unique)
}

// WithMultiKeyIndex configures a secondary index where a single entity can
// be indexed under many values.
func WithMultiKeyIndex(name string, indexer MultiKeyIndexer, unique bool) ModelBucketOption {
	return func(mb *modelBucket) {
		if _, ok := mb.indexes[name]; ok {
			panic(fmt.Sprintf("index %q registered twice", name))
		}
		mb.indexes[name] = newIndex(mb.name+"_"+name, indexer, unique)
	}
}

// WithIDSequence configures the bucket to generate missing primary keys
// from the given sequence.
func WithIDSequence(s Sequence) ModelBucketOption {
	return func(mb *modelBucket) {
		mb.idSeq = &s
	}
}

// NewModelBucket returns a ModelBucket instance storing entities of the
// same type as the given model under a key space prefixed with the bucket
// name.
func NewModelBucket(name string, m Model, opts ...ModelBucketOption) ModelBucket {
	if !isBucketName(name) {
		panic(fmt.Sprintf("illegal bucket name: %q", name))
	}

	tp := reflect.TypeOf(m)
	if tp.Kind() == reflect.Ptr {
		tp = tp.Elem()
	}

	mb := &modelBucket{
		name:    name,
		prefix:  append([]byte(name), ':'),
		model:   tp,
		indexes: make(map[string]*index),
	}
	for _, opt := range opts {
		opt(mb)
	}
	return mb
}

type modelBucket struct {
	name    string
	prefix  []byte
	model   reflect.Type
	idSeq   *Sequence
	indexes map[string]*index
}

var _ ModelBucket = (*modelBucket)(nil)

// dbKey is the full key we store in the db, including the prefix. We copy
// into a new array rather than use append, as we don't want consecutive
// calls to overwrite the same byte array.
func (mb *modelBucket) dbKey(key []byte) []byte {
	l := len(mb.prefix)
	out := make([]byte, l+len(key))
	copy(out, mb.prefix)
	copy(out[l:], key)
	return out
}

func (mb *modelBucket) One(db weft.ReadOnlyKVStore, key []byte, dest Model) error {
	raw, err := db.Get(mb.dbKey(key))
	if err != nil {
		return err
	}
	if raw == nil {
		return errors.Wrapf(errors.ErrNotFound, "%T not in the store", dest)
	}
	if err := dest.Unmarshal(raw); err != nil {
		return errors.Wrapf(errors.ErrModel, "unmarshal into %T: %s", dest, err)
	}
	return nil
}

func (mb *modelBucket) ByIndex(db weft.ReadOnlyKVStore, indexName string, key []byte, dest ModelSlicePtr) ([][]byte, error) {
	idx, ok := mb.indexes[indexName]
	if !ok {
		return nil, errors.Wrapf(errors.ErrDatabase, "no index with name %q", indexName)
	}
	keys, err := idx.keys(db, key)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	if dest == nil {
		return keys, nil
	}

	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.Elem().Kind() != reflect.Slice {
		return nil, errors.Wrapf(errors.ErrType, "%T is not a pointer to a slice", dest)
	}
	slice := dv.Elem()

	for _, pk := range keys {
		raw, err := db.Get(mb.dbKey(pk))
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, errors.Wrapf(errors.ErrDatabase, "index %q points to a missing entity", indexName)
		}
		item := reflect.New(mb.model)
		if err := item.Interface().(Model).Unmarshal(raw); err != nil {
			return nil, errors.Wrapf(errors.ErrModel, "unmarshal into %s: %s", mb.model, err)
		}
		switch slice.Type().Elem().Kind() {
		case reflect.Ptr:
			slice = reflect.Append(slice, item)
		default:
			slice = reflect.Append(slice, item.Elem())
		}
	}
	dv.Elem().Set(slice)
	return keys, nil
}

func (mb *modelBucket) Put(db weft.KVStore, key []byte, m Model) ([]byte, error) {
	mtp := reflect.TypeOf(m)
	if mtp.Kind() == reflect.Ptr {
		mtp = mtp.Elem()
	}
	if mtp != mb.model {
		return nil, errors.Wrapf(errors.ErrType, "cannot store %T in %s bucket", m, mb.name)
	}

	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid model")
	}

	if len(key) == 0 {
		if mb.idSeq == nil {
			return nil, errors.Wrap(errors.ErrInput, "missing primary key")
		}
		var err error
		key, err = mb.idSeq.NextVal(db)
		if err != nil {
			return nil, errors.Wrap(err, "ID sequence")
		}
	}

	raw, err := m.Marshal()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrModel, "marshal %T: %s", m, err)
	}

	if err := mb.updateIndexes(db, key, m); err != nil {
		return nil, err
	}
	if err := db.Set(mb.dbKey(key), raw); err != nil {
		return nil, err
	}
	return key, nil
}

func (mb *modelBucket) Delete(db weft.KVStore, key []byte) error {
	if err := mb.Has(db, key); err != nil {
		return err
	}
	if err := mb.updateIndexes(db, key, nil); err != nil {
		return err
	}
	return db.Delete(mb.dbKey(key))
}

func (mb *modelBucket) Has(db weft.ReadOnlyKVStore, key []byte) error {
	if key == nil {
		// nil key is a special case that would match the whole bucket
		// prefix key
		return errors.ErrNotFound
	}
	ok, err := db.Has(mb.dbKey(key))
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrNotFound
	}
	return nil
}

func (mb *modelBucket) updateIndexes(db weft.KVStore, key []byte, m Model) error {
	if len(mb.indexes) == 0 {
		return nil
	}

	var prev Model
	raw, err := db.Get(mb.dbKey(key))
	if err != nil {
		return err
	}
	if raw != nil {
		prev = reflect.New(mb.model).Interface().(Model)
		if err := prev.Unmarshal(raw); err != nil {
			return errors.Wrapf(errors.ErrModel, "unmarshal %s: %s", mb.model, err)
		}
	}
	if prev == nil && m == nil {
		return nil
	}

	for _, idx := range mb.indexes {
		if err := idx.update(db, key, prev, m); err != nil {
			return errors.Wrapf(err, "index %s", idx.name)
		}
	}
	return nil
}
