package db

import (
	"path/filepath"

	"github.com/pkg/errors"
)

// KVStore is the durable object store. Writes become durable on Flush,
// Get observes unflushed writes.
type KVStore interface {
	Get(key []byte) ([]byte, bool, error)
	Set(key, value []byte) error
	Erase(key []byte) error
	Flush() error
	Close() error
}

const (
	BackendLevelDB = "leveldb"
	BackendBadger  = "badger"
	BackendMemory  = "memory"
)

// Open opens the store called name under dir with the given backend
func Open(backend, dir, name string) (KVStore, error) {
	path := filepath.Join(dir, name)
	switch backend {
	case BackendLevelDB, "":
		return NewLevelDB(path)
	case BackendBadger:
		return NewBadgerDB(path)
	case BackendMemory:
		return NewMemLevelDB()
	}
	return nil, errors.Errorf("unknown storage backend %q", backend)
}
