// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accrual

import (
	"github.com/holiman/uint256"
)

// AssetAccumulator is the accumulator record of one (reward source, staking
// asset) pair.
//
// The record layout is versioned and evolves additively only: new fields are
// appended with the rlp "optional" tag so records written by older versions
// still decode.
type AssetAccumulator struct {
	Version uint32
	// CumulativePerUnit is the running total of reward units distributed per
	// unit of the asset's staked amount, scaled by multifarm.Scale. Never
	// decreases.
	CumulativePerUnit *uint256.Int
	// PrevFarmCumulative is the farm-level cumulative-per-share last applied
	// to this asset.
	PrevFarmCumulative *uint256.Int
	// Banked retains reward attributed to this asset while nothing was
	// staked, plus the sub-unit rounding remainder of each refresh. It is
	// folded back per-unit once staking resumes, never silently dropped.
	Banked *uint256.Int `rlp:"optional"`
}

func (a *AssetAccumulator) normalize() *AssetAccumulator {
	if a.CumulativePerUnit == nil {
		a.CumulativePerUnit = new(uint256.Int)
	}
	if a.PrevFarmCumulative == nil {
		a.PrevFarmCumulative = new(uint256.Int)
	}
	if a.Banked == nil {
		a.Banked = new(uint256.Int)
	}
	return a
}

// StakerAccumulator is the accumulator record of one account within one
// (reward source, staking asset) pair.
type StakerAccumulator struct {
	Version uint32
	// PrevAssetCumulative is the asset-level cumulative-per-unit last applied
	// to this account.
	PrevAssetCumulative *uint256.Int
	// Banked is the account's accrued-but-unpaid reward. It survives the
	// account reducing its stake to zero.
	Banked *uint256.Int `rlp:"optional"`
}

func (a *StakerAccumulator) normalize() *StakerAccumulator {
	if a.PrevAssetCumulative == nil {
		a.PrevAssetCumulative = new(uint256.Int)
	}
	if a.Banked == nil {
		a.Banked = new(uint256.Int)
	}
	return a
}
