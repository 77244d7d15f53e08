// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package distributor defines the emission-schedule collaborator of one
// reward source and two implementations of it: a manually queued schedule and
// a time-based drip.
package distributor

import (
	"github.com/holiman/uint256"

	"github.com/multifarmlabs/multifarm/multifarm"
)

// Distributor controls the emission schedule of one reward source. Pending
// grows monotonically until Distribute consumes it.
type Distributor interface {
	// Farm returns the engine address this distributor emits to. The engine
	// only trusts distributors that designate it.
	Farm() multifarm.Address
	// Pending returns the amount ready to move into farm custody.
	Pending() (*uint256.Int, error)
	// Distribute moves the pending amount into farm custody, resets it, and
	// returns the moved amount. A zero pending amount is a no-op, not an
	// error.
	Distribute() (*uint256.Int, error)
}
