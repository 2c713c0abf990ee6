// nolint
package store

import "github.com/iov-one/canal"

// Move references for all storage types into this package
// for shorter names everywhere

type KVStore = canal.KVStore
type ReadOnlyKVStore = canal.ReadOnlyKVStore
type SetDeleter = canal.SetDeleter
type Batch = canal.Batch
type Iterator = canal.Iterator
type Model = canal.Model
type CacheableKVStore = canal.CacheableKVStore
type KVCacheWrap = canal.KVCacheWrap
