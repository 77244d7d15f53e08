// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/multifarmlabs/multifarm/kv"
	"github.com/multifarmlabs/multifarm/multifarm"
	"github.com/multifarmlabs/multifarm/stackedmap"
)

// storeKeyPrefix distinguishes storage records in the backing kv store.
const storeKeyPrefix = "s"

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

// storageKey is the unique identifier of a storage record.
type storageKey struct {
	addr multifarm.Address
	key  multifarm.Bytes32
}

// State manages engine state with a save-restore/snapshot-revert manner.
// All changes are journaled in memory until Commit flushes them to the
// backing store atomically.
type State struct {
	store kv.GetPutter
	sm    *stackedmap.StackedMap
}

// New create a state object backed by the given store.
func New(store kv.GetPutter) *State {
	state := State{store: store}
	state.sm = stackedmap.New(func(key any) (any, bool, error) {
		return state.storeGetter(key)
	})
	// base level holding uncommitted changes
	state.sm.Push()
	return &state
}

// storeGetter implements stackedmap.MapGetter.
func (s *State) storeGetter(key any) (value any, exist bool, err error) {
	sk := key.(storageKey)
	raw, err := s.store.Get(composeKey(sk))
	if err != nil {
		if s.store.IsNotFound(err) {
			return rlp.RawValue(nil), true, nil
		}
		return nil, false, err
	}
	return rlp.RawValue(raw), true, nil
}

func composeKey(sk storageKey) []byte {
	k := make([]byte, 0, len(storeKeyPrefix)+multifarm.AddressLength+32)
	k = append(k, storeKeyPrefix...)
	k = append(k, sk.addr.Bytes()...)
	k = append(k, sk.key.Bytes()...)
	return k
}

// GetRawStorage returns storage value in rlp raw for given address and key.
func (s *State) GetRawStorage(addr multifarm.Address, key multifarm.Bytes32) (rlp.RawValue, error) {
	data, _, err := s.sm.Get(storageKey{addr, key})
	if err != nil {
		return nil, &Error{err}
	}
	return data.(rlp.RawValue), nil
}

// SetRawStorage set storage value in rlp raw.
// Empty raw marks the record for deletion.
func (s *State) SetRawStorage(addr multifarm.Address, key multifarm.Bytes32, raw rlp.RawValue) {
	s.sm.Put(storageKey{addr, key}, raw)
}

// GetStorage returns word-sized storage value for the given address and key.
func (s *State) GetStorage(addr multifarm.Address, key multifarm.Bytes32) (multifarm.Bytes32, error) {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return multifarm.Bytes32{}, err
	}
	if len(raw) == 0 {
		return multifarm.Bytes32{}, nil
	}
	kind, content, _, err := rlp.Split(raw)
	if err != nil {
		return multifarm.Bytes32{}, &Error{err}
	}
	if kind == rlp.List {
		// customized storage value, return hash of raw data
		return multifarm.Blake2b(raw), nil
	}
	return multifarm.BytesToBytes32(content), nil
}

// SetStorage set word-sized storage value for the given address and key.
func (s *State) SetStorage(addr multifarm.Address, key, value multifarm.Bytes32) {
	if value.IsZero() {
		s.SetRawStorage(addr, key, nil)
		return
	}
	v, _ := rlp.EncodeToBytes(bytes.TrimLeft(value[:], "\x00"))
	s.SetRawStorage(addr, key, v)
}

// EncodeStorage set storage value encoded by given enc method.
func (s *State) EncodeStorage(addr multifarm.Address, key multifarm.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return &Error{err}
	}
	s.SetRawStorage(addr, key, raw)
	return nil
}

// DecodeStorage get and decode storage value.
func (s *State) DecodeStorage(addr multifarm.Address, key multifarm.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return err
	}
	if err := dec(raw); err != nil {
		return &Error{err}
	}
	return nil
}

// NewCheckpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo revert to checkpoint specified by revision.
func (s *State) RevertTo(revision int) {
	s.sm.PopTo(revision)
}

// Commit flushes all journaled changes to the backing store in one batch and
// resets the journal. Open checkpoints are discarded.
func (s *State) Commit() error {
	changes := make(map[storageKey]rlp.RawValue)
	s.sm.Journal(func(key, value any) bool {
		changes[key.(storageKey)] = value.(rlp.RawValue)
		return true
	})

	batch := s.store.NewBatch()
	for sk, raw := range changes {
		if len(raw) == 0 {
			if err := batch.Delete(composeKey(sk)); err != nil {
				return &Error{err}
			}
		} else if err := batch.Put(composeKey(sk), raw); err != nil {
			return &Error{err}
		}
	}
	if err := batch.Write(); err != nil {
		return &Error{err}
	}

	s.sm.PopTo(0)
	s.sm.Push()
	return nil
}
