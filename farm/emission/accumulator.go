// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package emission

import (
	"github.com/holiman/uint256"
)

// Accumulator is the farm-level accumulator record of one reward source.
//
// The record layout is versioned and evolves additively only: new fields are
// appended with the rlp "optional" tag so records written by older versions
// still decode.
type Accumulator struct {
	Version uint32
	// CumulativePerShare is the running total of reward units distributed per
	// unit of total weight, scaled by multifarm.Scale. Never decreases.
	CumulativePerShare *uint256.Int
	// LastObserved is the reward balance (custody plus historical claimed)
	// seen by the last refresh.
	LastObserved *uint256.Int
	// Undistributed retains reward that arrived while the source's total
	// weight was zero, plus the sub-weight rounding remainder of each refresh.
	// It is folded back into the next distributing refresh, so no value is
	// created or lost.
	Undistributed *uint256.Int `rlp:"optional"`
	// Claimed is the total reward ever paid out for this source. Keeping it
	// here makes the observed balance monotonic across payouts.
	Claimed *uint256.Int `rlp:"optional"`
}

// normalize fills nil fields of records decoded from older layouts.
func (a *Accumulator) normalize() *Accumulator {
	if a.CumulativePerShare == nil {
		a.CumulativePerShare = new(uint256.Int)
	}
	if a.LastObserved == nil {
		a.LastObserved = new(uint256.Int)
	}
	if a.Undistributed == nil {
		a.Undistributed = new(uint256.Int)
	}
	if a.Claimed == nil {
		a.Claimed = new(uint256.Int)
	}
	return a
}
