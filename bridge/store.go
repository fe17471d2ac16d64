package bridge

import (
	"bytes"
	"errors"

	"github.com/google/btree"
)

const defaultTreeDegree = 16

var ErrReadOnlyStore = errors.New("read only store")

// Store is the key/value surface the bridge keeps all of its state in.
// Get returns nil without error for absent keys.
type Store interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
}

type kv struct {
	key   []byte
	value []byte
	// deleted marks a buffered removal in a CacheStore.
	deleted bool
}

func kvLess(a, b kv) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// MemStore is an ordered in-memory Store.
type MemStore struct {
	tree *btree.BTreeG[kv]
}

func NewMemStore() *MemStore {
	return &MemStore{tree: btree.NewG(defaultTreeDegree, kvLess)}
}

func (s *MemStore) Get(key []byte) ([]byte, error) {
	item, ok := s.tree.Get(kv{key: key})
	if !ok {
		return nil, nil
	}
	return item.value, nil
}

func (s *MemStore) Set(key, value []byte) error {
	s.tree.ReplaceOrInsert(kv{key: bytes.Clone(key), value: bytes.Clone(value)})
	return nil
}

func (s *MemStore) Delete(key []byte) error {
	s.tree.Delete(kv{key: key})
	return nil
}

func (s *MemStore) Len() int {
	return s.tree.Len()
}

// CacheStore buffers writes on top of a parent Store until Write is
// called. Dropping a CacheStore discards everything written to it.
type CacheStore struct {
	parent Store
	dirty  *btree.BTreeG[kv]
}

func NewCacheStore(parent Store) *CacheStore {
	return &CacheStore{
		parent: parent,
		dirty:  btree.NewG(defaultTreeDegree, kvLess),
	}
}

func (s *CacheStore) Get(key []byte) ([]byte, error) {
	if item, ok := s.dirty.Get(kv{key: key}); ok {
		if item.deleted {
			return nil, nil
		}
		return item.value, nil
	}
	return s.parent.Get(key)
}

func (s *CacheStore) Set(key, value []byte) error {
	s.dirty.ReplaceOrInsert(kv{key: bytes.Clone(key), value: bytes.Clone(value)})
	return nil
}

func (s *CacheStore) Delete(key []byte) error {
	s.dirty.ReplaceOrInsert(kv{key: bytes.Clone(key), deleted: true})
	return nil
}

// Write flushes buffered writes to the parent in key order and resets the
// buffer.
func (s *CacheStore) Write() (err error) {
	s.dirty.Ascend(func(item kv) bool {
		if item.deleted {
			err = s.parent.Delete(item.key)
		} else {
			err = s.parent.Set(item.key, item.value)
		}
		return err == nil
	})
	if err != nil {
		return err
	}
	s.dirty.Clear(false)
	return nil
}

// Dirty reports the number of buffered writes.
func (s *CacheStore) Dirty() int {
	return s.dirty.Len()
}
