/*
Package orm provides an easy to use db wrapper.

Break state space into prefixed sections called Buckets. Each bucket
contains only one type of object and offers typed access on top of the raw
key-value store. Stuff is done compile-time static, even if it is a bit of
boilerplate; no reflection magic beyond cloning prototypes.
*/
package orm

import (
	"fmt"
	"regexp"

	"github.com/iov-one/canal"
	"github.com/iov-one/canal/errors"
)

var isBucketName = regexp.MustCompile(`^[a-z_]{3,10}$`).MatchString

// Bucket is a generic holder that stores data as well as references to
// sequences.
//
// This is a generic building block that should generally be embedded in a
// type-safe wrapper to ensure all data is the same type. Bucket is a
// prefixed subspace of the DB. proto defines the default Model, all elements
// of this type.
type Bucket struct {
	name   string
	prefix []byte
	proto  Cloneable
}

// NewBucket creates a bucket to store data.
func NewBucket(name string, proto Cloneable) Bucket {
	if !isBucketName(name) {
		panic(fmt.Sprintf("Illegal bucket: %s", name))
	}

	return Bucket{
		name:   name,
		prefix: append([]byte(name), ':'),
		proto:  proto,
	}
}

// Name returns the name of the bucket.
func (b Bucket) Name() string {
	return b.name
}

// DBKey is the full key we store in the db, including prefix. We copy into a
// new array rather than use append, as we don't want consecutive calls to
// overwrite the same byte array.
func (b Bucket) DBKey(key []byte) []byte {
	l := len(b.prefix)
	out := make([]byte, l+len(key))
	copy(out, b.prefix)
	copy(out[l:], key)
	return out
}

// Get one element.
func (b Bucket) Get(db canal.ReadOnlyKVStore, key []byte) (Object, error) {
	dbkey := b.DBKey(key)
	bz := db.Get(dbkey)
	if bz == nil {
		return nil, nil
	}
	return b.Parse(key, bz)
}

// Has returns true if the given key is present in the bucket.
func (b Bucket) Has(db canal.ReadOnlyKVStore, key []byte) bool {
	return db.Has(b.DBKey(key))
}

// Parse takes a key and value data and reconstructs the data this Bucket
// would return.
//
// Used internally as part of Get. It is exposed mainly as a test helper, but
// can work for any code that wants to parse.
func (b Bucket) Parse(key, value []byte) (Object, error) {
	obj := b.proto.Clone()
	if err := obj.Value().Unmarshal(value); err != nil {
		return nil, errors.Wrap(err, "parse")
	}
	obj.SetKey(key)
	return obj, nil
}

// Save will write a model, it must be of the same type as proto.
func (b Bucket) Save(db canal.KVStore, model Object) error {
	if err := model.Validate(); err != nil {
		return errors.Wrap(err, "invalid object")
	}

	bz, err := model.Value().Marshal()
	if err != nil {
		return errors.Wrap(err, "marshal object")
	}
	db.Set(b.DBKey(model.Key()), bz)
	return nil
}

// Delete will remove the value at a key.
func (b Bucket) Delete(db canal.KVStore, key []byte) error {
	db.Delete(b.DBKey(key))
	return nil
}

// Sequence returns a Sequence by name, scoped to this bucket.
func (b Bucket) Sequence(name string) Sequence {
	return NewSequence(b.name, name)
}

// All returns models of every object stored in this bucket, in ascending key
// order. Keys are returned with the bucket prefix stripped.
func (b Bucket) All(db canal.ReadOnlyKVStore) []canal.Model {
	start, end := prefixRange(b.prefix)
	models := ConsumeIterator(db.Iterator(start, end))
	for i := range models {
		models[i].Key = models[i].Key[len(b.prefix):]
	}
	return models
}
