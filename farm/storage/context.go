// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"github.com/multifarmlabs/multifarm/multifarm"
	"github.com/multifarmlabs/multifarm/state"
)

// Context scopes typed storage accessors to the engine's own address within a state.
type Context struct {
	address multifarm.Address
	state   *state.State
}

// NewContext creates a storage context.
func NewContext(address multifarm.Address, state *state.State) *Context {
	return &Context{
		address: address,
		state:   state,
	}
}

// Address returns the owning address of all records under this context.
func (c *Context) Address() multifarm.Address {
	return c.address
}

// State returns the underlying state.
func (c *Context) State() *state.State {
	return c.state
}
