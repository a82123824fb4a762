// Package kvstore wraps an embedded on-disk key-value store (goleveldb)
// behind the small surface the indexers and annotators need: open, put, get,
// iterate, close, destroy. Handles are safe for concurrent use; the write
// phase of indexing is single-threaded by construction, and leveldb
// serializes the population annotator's visitation write-backs internally.
package kvstore

import (
	"os"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/Aman-CERP/varannot/internal/errors"
)

// Store is an open embedded store rooted at a directory on disk.
type Store struct {
	path     string
	db       *leveldb.DB
	readOnly bool
}

// Open opens (or creates) the store directory at path. readOnly opens an
// existing store for lookups only; maxOpenFiles > 0 bounds the file handle
// cache. A corrupt or lock-held directory yields a fatal store-open error.
func Open(path string, readOnly bool, maxOpenFiles int) (*Store, error) {
	o := &opt.Options{ReadOnly: readOnly}
	if maxOpenFiles > 0 {
		o.OpenFilesCacheCapacity = maxOpenFiles
	}
	db, err := leveldb.OpenFile(path, o)
	if err != nil {
		return nil, errors.StoreOpenError("opening store at "+path, err)
	}
	return &Store{path: path, db: db, readOnly: readOnly}, nil
}

// Path returns the on-disk location of the store.
func (s *Store) Path() string { return s.path }

// ReadOnly reports whether the store was opened for lookups only.
func (s *Store) ReadOnly() bool { return s.readOnly }

// Put writes one entry. Writes go through the write-ahead log and are
// durable once the store is closed cleanly; no explicit flush is needed.
func (s *Store) Put(key string, value []byte) error {
	if err := s.db.Put([]byte(key), value, nil); err != nil {
		return errors.StoreIOError("writing key "+key, err)
	}
	return nil
}

// Get reads one entry. The second return value is false when the key is
// absent; any other failure is a fatal store I/O error.
func (s *Store) Get(key string) ([]byte, bool, error) {
	value, err := s.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.StoreIOError("reading key "+key, err)
	}
	return value, true, nil
}

// Iter returns a fresh iterator positioned before the first entry. Each call
// produces an independent iterator; iterating while mutating the store is
// not supported.
func (s *Store) Iter() *Iterator {
	return &Iterator{it: s.db.NewIterator(nil, nil)}
}

// Close releases native resources. It must be called exactly once;
// double-close is a caller error.
func (s *Store) Close() error {
	return s.db.Close()
}

// Destroy closes the store and removes its directory. Used for transient
// indices that must never be reused across runs.
func (s *Store) Destroy() error {
	if err := s.db.Close(); err != nil {
		return err
	}
	return os.RemoveAll(s.path)
}

// Iterator walks store entries lazily in key order.
type Iterator struct {
	it iterator.Iterator
}

// Next advances to the next entry, returning false once exhausted.
func (i *Iterator) Next() bool { return i.it.Next() }

// Key returns the current key. Valid only after a true Next.
func (i *Iterator) Key() string { return string(i.it.Key()) }

// Value returns a copy of the current value. Valid only after a true Next.
func (i *Iterator) Value() []byte {
	v := i.it.Value()
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

// Release frees the iterator. Err reports any failure seen while iterating.
func (i *Iterator) Release() { i.it.Release() }

// Err returns the first error encountered during iteration, if any.
func (i *Iterator) Err() error { return i.it.Error() }
