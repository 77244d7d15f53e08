// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/multifarmlabs/multifarm/farm/reverts"
	"github.com/multifarmlabs/multifarm/multifarm"
)

// Cell is a storage wrapper for a single 256-bit unsigned integer, similar to
// an uint256 state variable in a smart contract. Arithmetic fails closed on
// overflow or underflow.
type Cell struct {
	context *Context
	pos     multifarm.Bytes32
}

// NewCell creates a cell at the given slot.
func NewCell(context *Context, slot multifarm.Bytes32) *Cell {
	return &Cell{context: context, pos: slot}
}

// Get returns the cell value, zero when never written.
func (c *Cell) Get() (*uint256.Int, error) {
	word, err := c.context.state.GetStorage(c.context.address, c.pos)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(word.Bytes()), nil
}

// Set overwrites the cell value.
func (c *Cell) Set(value *uint256.Int) {
	b32 := value.Bytes32()
	c.context.state.SetStorage(c.context.address, c.pos, multifarm.Bytes32(b32))
}

// Add increases the cell value, failing closed on overflow.
func (c *Cell) Add(value *uint256.Int) error {
	stored, err := c.Get()
	if err != nil {
		return err
	}
	sum, overflow := new(uint256.Int).AddOverflow(stored, value)
	if overflow {
		return errors.WithMessage(reverts.ErrOverflow, "cell add")
	}
	c.Set(sum)
	return nil
}

// Sub decreases the cell value, failing closed on underflow.
func (c *Cell) Sub(value *uint256.Int) error {
	stored, err := c.Get()
	if err != nil {
		return err
	}
	diff, underflow := new(uint256.Int).SubOverflow(stored, value)
	if underflow {
		return errors.WithMessage(reverts.ErrOverflow, "cell sub")
	}
	c.Set(diff)
	return nil
}
