// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import (
	"sync"

	"github.com/pkg/errors"
)

var errNotFound = errors.New("kv: not found")

// MemDB is an in-memory kv store, safe for concurrent use.
// It serves tests and the solo mode of the daemon.
type MemDB struct {
	lock sync.RWMutex
	data map[string][]byte
}

var _ GetPutCloser = (*MemDB)(nil)

// NewMemDB creates an empty in-memory store.
func NewMemDB() *MemDB {
	return &MemDB{data: make(map[string][]byte)}
}

func (m *MemDB) Get(key []byte) ([]byte, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	val, ok := m.data[string(key)]
	if !ok {
		return nil, errNotFound
	}
	cpy := make([]byte, len(val))
	copy(cpy, val)
	return cpy, nil
}

func (m *MemDB) Has(key []byte) (bool, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *MemDB) IsNotFound(err error) bool {
	return errors.Cause(err) == errNotFound
}

func (m *MemDB) Put(key, val []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	cpy := make([]byte, len(val))
	copy(cpy, val)
	m.data[string(key)] = cpy
	return nil
}

func (m *MemDB) Delete(key []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	delete(m.data, string(key))
	return nil
}

func (m *MemDB) NewBatch() Batch {
	return &memBatch{db: m}
}

func (m *MemDB) Close() error { return nil }

type memOp struct {
	key    string
	val    []byte
	delete bool
}

type memBatch struct {
	db  *MemDB
	ops []memOp
}

func (b *memBatch) Put(key, val []byte) error {
	cpy := make([]byte, len(val))
	copy(cpy, val)
	b.ops = append(b.ops, memOp{key: string(key), val: cpy})
	return nil
}

func (b *memBatch) Delete(key []byte) error {
	b.ops = append(b.ops, memOp{key: string(key), delete: true})
	return nil
}

func (b *memBatch) Len() int { return len(b.ops) }

func (b *memBatch) Write() error {
	b.db.lock.Lock()
	defer b.db.lock.Unlock()

	for _, op := range b.ops {
		if op.delete {
			delete(b.db.data, op.key)
		} else {
			b.db.data[op.key] = op.val
		}
	}
	return nil
}
