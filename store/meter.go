package store

import (
	weft "github.com/tokenvault/weft"
)

// Meter wraps a KVStore and keeps track of the net number of stored bytes
// the wrapped calls produced. Collateral accounting takes a delta of the
// consumed storage for a call by routing all the mutations of that call
// through one Meter.
//
// A stored entry accounts for len(key)+len(value) bytes. The delta is
// negative when the call released more bytes than it wrote.
type Meter struct {
	weft.KVStore
	delta int64
}

// NewMeter wraps the given store with a byte usage meter. All reads and
// writes pass through to the underlying store.
func NewMeter(db weft.KVStore) *Meter {
	return &Meter{KVStore: db}
}

// Delta returns the net stored-byte change observed so far.
func (m *Meter) Delta() int64 {
	return m.delta
}

func (m *Meter) Set(key, value []byte) error {
	old, err := m.KVStore.Get(key)
	if err != nil {
		return err
	}
	if old == nil {
		m.delta += int64(len(key) + len(value))
	} else {
		m.delta += int64(len(value)) - int64(len(old))
	}
	return m.KVStore.Set(key, value)
}

func (m *Meter) Delete(key []byte) error {
	old, err := m.KVStore.Get(key)
	if err != nil {
		return err
	}
	if old != nil {
		m.delta -= int64(len(key) + len(old))
	}
	return m.KVStore.Delete(key)
}
