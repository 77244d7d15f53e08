// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/multifarmlabs/multifarm/multifarm"
)

// AddressList is a storage wrapper for a small ordered set of addresses held
// in one record. Membership checks scan the list; the engine keeps these sets
// small by design (reward sources per asset, registry of reward sources).
type AddressList struct {
	context *Context
	pos     multifarm.Bytes32
}

// NewAddressList creates an address list at the given slot.
func NewAddressList(context *Context, slot multifarm.Bytes32) *AddressList {
	return &AddressList{context: context, pos: slot}
}

// All returns the list content in insertion order.
func (l *AddressList) All() (list []multifarm.Address, err error) {
	err = l.context.state.DecodeStorage(l.context.address, l.pos, func(raw []byte) error {
		if len(raw) == 0 {
			return nil
		}
		return rlp.DecodeBytes(raw, &list)
	})
	return
}

func (l *AddressList) set(list []multifarm.Address) error {
	return l.context.state.EncodeStorage(l.context.address, l.pos, func() ([]byte, error) {
		if len(list) == 0 {
			return nil, nil
		}
		return rlp.EncodeToBytes(list)
	})
}

// Contains reports membership.
func (l *AddressList) Contains(addr multifarm.Address) (bool, error) {
	list, err := l.All()
	if err != nil {
		return false, err
	}
	for _, item := range list {
		if item == addr {
			return true, nil
		}
	}
	return false, nil
}

// Add appends addr if absent.
func (l *AddressList) Add(addr multifarm.Address) error {
	list, err := l.All()
	if err != nil {
		return err
	}
	for _, item := range list {
		if item == addr {
			return nil
		}
	}
	return l.set(append(list, addr))
}

// Remove deletes addr if present, keeping order of the rest.
func (l *AddressList) Remove(addr multifarm.Address) error {
	list, err := l.All()
	if err != nil {
		return err
	}
	for i, item := range list {
		if item == addr {
			return l.set(append(list[:i:i], list[i+1:]...))
		}
	}
	return nil
}
