package db

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// BadgerDB is a KVStore on top of badger
type BadgerDB struct {
	conn     *badger.DB
	buffer   *writeBuffer
	inMemory bool
}

func NewBadgerDB(path string) (*BadgerDB, error) {
	return openBadger(badger.DefaultOptions(path).WithLogger(nil))
}

func NewMemBadgerDB() (*BadgerDB, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func openBadger(opts badger.Options) (*BadgerDB, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening badger at %q", opts.Dir)
	}
	return &BadgerDB{conn: db, buffer: newWriteBuffer(), inMemory: opts.InMemory}, nil
}

func (b *BadgerDB) Get(key []byte) ([]byte, bool, error) {
	if v, found, buffered := b.buffer.lookup(key); buffered {
		return v, found, nil
	}
	var ret []byte
	err := b.conn.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		ret, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ret, true, nil
}

func (b *BadgerDB) Set(key, value []byte) error {
	b.buffer.set(key, value)
	return nil
}

func (b *BadgerDB) Erase(key []byte) error {
	b.buffer.erase(key)
	return nil
}

func (b *BadgerDB) Flush() error {
	return b.buffer.drain(func(pending map[string][]byte) error {
		wb := b.conn.NewWriteBatch()
		for k, v := range pending {
			var err error
			if v == nil {
				err = wb.Delete([]byte(k))
			} else {
				err = wb.Set([]byte(k), v)
			}
			if err != nil {
				wb.Cancel()
				return err
			}
		}
		if err := wb.Flush(); err != nil {
			return err
		}
		if b.inMemory {
			return nil
		}
		return b.conn.Sync()
	})
}

func (b *BadgerDB) Close() error {
	if err := b.Flush(); err != nil {
		return err
	}
	return b.conn.Close()
}
