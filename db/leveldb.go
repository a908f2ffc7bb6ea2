package db

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDB wraps the actual LevelDB connection
type LevelDB struct {
	conn   *leveldb.DB
	buffer *writeBuffer
}

// NewLevelDB opens (or creates) a LevelDB instance at the given path
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %s", path)
	}
	return &LevelDB{conn: db, buffer: newWriteBuffer()}, nil
}

// NewMemLevelDB opens a LevelDB instance kept in memory
func NewMemLevelDB() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening in-memory leveldb")
	}
	return &LevelDB{conn: db, buffer: newWriteBuffer()}, nil
}

// Close flushes and closes the LevelDB connection
func (l *LevelDB) Close() error {
	if err := l.Flush(); err != nil {
		return err
	}
	return l.conn.Close()
}

// Get retrieves the value for a given key
func (l *LevelDB) Get(key []byte) ([]byte, bool, error) {
	if v, found, buffered := l.buffer.lookup(key); buffered {
		return v, found, nil
	}
	v, err := l.conn.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Set inserts or updates a key-value pair
func (l *LevelDB) Set(key, value []byte) error {
	l.buffer.set(key, value)
	return nil
}

func (l *LevelDB) Erase(key []byte) error {
	l.buffer.erase(key)
	return nil
}

// Flush writes buffered changes in one synced batch
func (l *LevelDB) Flush() error {
	return l.buffer.drain(func(pending map[string][]byte) error {
		batch := new(leveldb.Batch)
		for k, v := range pending {
			if v == nil {
				batch.Delete([]byte(k))
			} else {
				batch.Put([]byte(k), v)
			}
		}
		return l.conn.Write(batch, &opt.WriteOptions{Sync: true})
	})
}
