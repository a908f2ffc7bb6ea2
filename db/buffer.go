package db

import "sync"

// writeBuffer holds writes not yet flushed to the backend. A nil value marks an erase.
type writeBuffer struct {
	mu      sync.RWMutex
	pending map[string][]byte
}

func newWriteBuffer() *writeBuffer {
	return &writeBuffer{pending: make(map[string][]byte)}
}

// lookup returns (value, found, buffered)
func (b *writeBuffer) lookup(key []byte) ([]byte, bool, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, buffered := b.pending[string(key)]
	if !buffered {
		return nil, false, false
	}
	if v == nil {
		return nil, false, true
	}
	return append([]byte(nil), v...), true, true
}

func (b *writeBuffer) set(key, value []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending[string(key)] = append(make([]byte, 0, len(value)), value...)
}

func (b *writeBuffer) erase(key []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending[string(key)] = nil
}

// drain hands the buffered writes to apply and clears them if it succeeds
func (b *writeBuffer) drain(apply func(pending map[string][]byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 {
		return nil
	}
	if err := apply(b.pending); err != nil {
		return err
	}
	b.pending = make(map[string][]byte)
	return nil
}
