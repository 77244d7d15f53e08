// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package accrual maintains the asset-level and staker-level accumulators:
// per (reward source, staking asset) the cumulative reward per staked unit,
// and per account within such a pair the banked reward balance.
package accrual

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/multifarmlabs/multifarm/farm/reverts"
	"github.com/multifarmlabs/multifarm/farm/storage"
	"github.com/multifarmlabs/multifarm/multifarm"
)

var (
	slotAssets  = multifarm.BytesToBytes32([]byte("asset-accumulators"))
	slotStakers = multifarm.BytesToBytes32([]byte("staker-accumulators"))
)

// pairKey identifies one (reward source, staking asset) accumulator.
type pairKey struct {
	source multifarm.Address
	asset  multifarm.Address
}

func (k pairKey) Bytes() []byte {
	return append(k.source.Bytes(), k.asset.Bytes()...)
}

// stakerKey identifies one account within a (reward source, staking asset)
// pair.
type stakerKey struct {
	source  multifarm.Address
	asset   multifarm.Address
	account multifarm.Address
}

func (k stakerKey) Bytes() []byte {
	b := append(k.source.Bytes(), k.asset.Bytes()...)
	return append(b, k.account.Bytes()...)
}

// Service manages asset-level and staker-level accumulators.
type Service struct {
	assets  *storage.Mapping[pairKey, *AssetAccumulator]
	stakers *storage.Mapping[stakerKey, *StakerAccumulator]
}

// New creates the service over the given context.
func New(sctx *storage.Context) *Service {
	return &Service{
		assets:  storage.NewMapping[pairKey, *AssetAccumulator](sctx, slotAssets),
		stakers: storage.NewMapping[stakerKey, *StakerAccumulator](sctx, slotStakers),
	}
}

// Asset returns the pair's accumulator, a zero-valued one if never touched.
func (s *Service) Asset(source, asset multifarm.Address) (*AssetAccumulator, error) {
	acc, err := s.assets.Get(pairKey{source, asset})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get asset accumulator")
	}
	return acc.normalize(), nil
}

func (s *Service) setAsset(source, asset multifarm.Address, acc *AssetAccumulator) error {
	acc.Version = multifarm.SchemaVersion
	return errors.Wrap(s.assets.Set(pairKey{source, asset}, acc), "failed to set asset accumulator")
}

// Staker returns the account's accumulator, a zero-valued one if never
// touched.
func (s *Service) Staker(source, asset, account multifarm.Address) (*StakerAccumulator, error) {
	acc, err := s.stakers.Get(stakerKey{source, asset, account})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get staker accumulator")
	}
	return acc.normalize(), nil
}

func (s *Service) setStaker(source, asset, account multifarm.Address, acc *StakerAccumulator) error {
	acc.Version = multifarm.SchemaVersion
	return errors.Wrap(s.stakers.Set(stakerKey{source, asset, account}, acc), "failed to set staker accumulator")
}

// assetShare computes the reward attributed to the asset since its last
// refresh: its weight times the farm-level cumulative growth.
func assetShare(acc *AssetAccumulator, farmPerShare, weight *uint256.Int) (*uint256.Int, error) {
	growth, underflow := new(uint256.Int).SubOverflow(farmPerShare, acc.PrevFarmCumulative)
	if underflow {
		return nil, errors.WithMessage(reverts.ErrOverflow, "farm cumulative regressed")
	}
	share, overflow := new(uint256.Int).MulDivOverflow(weight, growth, multifarm.Scale())
	if overflow {
		return nil, errors.WithMessage(reverts.ErrOverflow, "asset share")
	}
	amount, overflow := new(uint256.Int).AddOverflow(share, acc.Banked)
	if overflow {
		return nil, errors.WithMessage(reverts.ErrOverflow, "banked asset reward")
	}
	return amount, nil
}

// AccrueAsset advances the pair's cumulative-per-unit with the asset's share
// of farm-level growth since the last refresh, using the CURRENT weight and
// total staked amount. Callers must invoke it before mutating either. While
// nothing is staked the attributed amount is banked and folded back later.
func (s *Service) AccrueAsset(source, asset multifarm.Address, farmPerShare, weight, totalStaked *uint256.Int) error {
	acc, err := s.Asset(source, asset)
	if err != nil {
		return err
	}

	amount, err := assetShare(acc, farmPerShare, weight)
	if err != nil {
		return err
	}

	if !totalStaked.IsZero() && !amount.IsZero() {
		inc, overflow := new(uint256.Int).MulDivOverflow(amount, multifarm.Scale(), totalStaked)
		if overflow {
			return errors.WithMessage(reverts.ErrOverflow, "cumulative per unit")
		}
		cpu, overflow := new(uint256.Int).AddOverflow(acc.CumulativePerUnit, inc)
		if overflow {
			return errors.WithMessage(reverts.ErrOverflow, "cumulative per unit")
		}
		// the sub-unit remainder stays banked and is re-fed next refresh
		attributed, _ := new(uint256.Int).MulDivOverflow(inc, totalStaked, multifarm.Scale())
		acc.CumulativePerUnit = cpu
		acc.Banked = new(uint256.Int).Sub(amount, attributed)
	} else {
		acc.Banked = amount
	}
	acc.PrevFarmCumulative = farmPerShare

	return s.setAsset(source, asset, acc)
}

// PreviewPerUnit returns the cumulative-per-unit a refresh with the given
// farm-level cumulative, weight and total staked amount would produce,
// without mutating state. It mirrors AccrueAsset exactly.
func (s *Service) PreviewPerUnit(source, asset multifarm.Address, farmPerShare, weight, totalStaked *uint256.Int) (*uint256.Int, error) {
	acc, err := s.Asset(source, asset)
	if err != nil {
		return nil, err
	}

	amount, err := assetShare(acc, farmPerShare, weight)
	if err != nil {
		return nil, err
	}
	if totalStaked.IsZero() || amount.IsZero() {
		return acc.CumulativePerUnit, nil
	}

	inc, overflow := new(uint256.Int).MulDivOverflow(amount, multifarm.Scale(), totalStaked)
	if overflow {
		return nil, errors.WithMessage(reverts.ErrOverflow, "cumulative per unit")
	}
	cpu, overflow := new(uint256.Int).AddOverflow(acc.CumulativePerUnit, inc)
	if overflow {
		return nil, errors.WithMessage(reverts.ErrOverflow, "cumulative per unit")
	}
	return cpu, nil
}

// stakerGain computes the reward accrued to the account since its last
// refresh: its stake times the asset-level cumulative growth.
func stakerGain(acc *StakerAccumulator, assetPerUnit, stake *uint256.Int) (*uint256.Int, error) {
	growth, underflow := new(uint256.Int).SubOverflow(assetPerUnit, acc.PrevAssetCumulative)
	if underflow {
		return nil, errors.WithMessage(reverts.ErrOverflow, "asset cumulative regressed")
	}
	if stake.IsZero() {
		return new(uint256.Int), nil
	}
	gain, overflow := new(uint256.Int).MulDivOverflow(stake, growth, multifarm.Scale())
	if overflow {
		return nil, errors.WithMessage(reverts.ErrOverflow, "staker gain")
	}
	return gain, nil
}

// AccrueStaker banks the account's share of asset-level growth since its
// last refresh, using the CURRENT stake. Callers must invoke it before
// mutating that stake.
func (s *Service) AccrueStaker(source, asset, account multifarm.Address, assetPerUnit, stake *uint256.Int) error {
	acc, err := s.Staker(source, asset, account)
	if err != nil {
		return err
	}

	gain, err := stakerGain(acc, assetPerUnit, stake)
	if err != nil {
		return err
	}
	banked, overflow := new(uint256.Int).AddOverflow(acc.Banked, gain)
	if overflow {
		return errors.WithMessage(reverts.ErrOverflow, "banked staker reward")
	}
	acc.Banked = banked
	acc.PrevAssetCumulative = assetPerUnit

	return s.setStaker(source, asset, account, acc)
}

// PreviewBanked returns the banked balance a refresh with the given
// asset-level cumulative and stake would leave, without mutating state. It
// mirrors AccrueStaker exactly.
func (s *Service) PreviewBanked(source, asset, account multifarm.Address, assetPerUnit, stake *uint256.Int) (*uint256.Int, error) {
	acc, err := s.Staker(source, asset, account)
	if err != nil {
		return nil, err
	}

	gain, err := stakerGain(acc, assetPerUnit, stake)
	if err != nil {
		return nil, err
	}
	banked, overflow := new(uint256.Int).AddOverflow(acc.Banked, gain)
	if overflow {
		return nil, errors.WithMessage(reverts.ErrOverflow, "banked staker reward")
	}
	return banked, nil
}

// TakeBanked zeroes and returns the account's banked balance.
func (s *Service) TakeBanked(source, asset, account multifarm.Address) (*uint256.Int, error) {
	acc, err := s.Staker(source, asset, account)
	if err != nil {
		return nil, err
	}
	amount := acc.Banked
	if amount.IsZero() {
		return amount, nil
	}
	acc.Banked = new(uint256.Int)
	return amount, s.setStaker(source, asset, account, acc)
}
