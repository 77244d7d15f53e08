// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package token provides the fungible-asset transfer collaborator: the
// interface the engine moves staking assets and reward payouts through, and a
// state-backed implementation of it.
package token

import (
	"github.com/holiman/uint256"

	"github.com/multifarmlabs/multifarm/multifarm"
)

// Token is the transfer surface of one fungible asset. All movements are
// fallible; a failed movement aborts the enclosing engine operation.
type Token interface {
	// BalanceOf returns the holder's balance.
	BalanceOf(holder multifarm.Address) (*uint256.Int, error)
	// Transfer moves amount from the caller's own balance.
	Transfer(from, to multifarm.Address, amount *uint256.Int) error
	// TransferFrom moves amount out of from's balance using spender's
	// allowance.
	TransferFrom(spender, from, to multifarm.Address, amount *uint256.Int) error
}

// Registry resolves asset identifiers to their transfer surface.
type Registry interface {
	Token(asset multifarm.Address) Token
}
