// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package shares maintains the per (reward source, staking asset) weight
// table and, per staking asset, the index of reward sources currently carrying
// nonzero weight. The index is the sole iteration surface for stake-touching
// operations; they never scan the full reward-source registry.
package shares

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/multifarmlabs/multifarm/farm/reverts"
	"github.com/multifarmlabs/multifarm/farm/storage"
	"github.com/multifarmlabs/multifarm/multifarm"
)

var (
	slotWeights   = multifarm.BytesToBytes32([]byte("share-weights"))
	slotTotals    = multifarm.BytesToBytes32([]byte("share-weights-total"))
	slotAvailable = multifarm.BytesToBytes32([]byte("available-rewards"))
)

// pairKey identifies one (reward source, staking asset) weight entry.
type pairKey struct {
	source multifarm.Address
	asset  multifarm.Address
}

func (k pairKey) Bytes() []byte {
	return append(k.source.Bytes(), k.asset.Bytes()...)
}

// Service is the share table.
type Service struct {
	sctx    *storage.Context
	weights *storage.Mapping[pairKey, *uint256.Int]
	totals  *storage.Mapping[multifarm.Address, *uint256.Int]
}

// New creates the share table over the given context.
func New(sctx *storage.Context) *Service {
	return &Service{
		sctx:    sctx,
		weights: storage.NewMapping[pairKey, *uint256.Int](sctx, slotWeights),
		totals:  storage.NewMapping[multifarm.Address, *uint256.Int](sctx, slotTotals),
	}
}

// Weight returns the share weight of asset within the reward source.
func (s *Service) Weight(source, asset multifarm.Address) (*uint256.Int, error) {
	w, err := s.weights.Get(pairKey{source, asset})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get weight")
	}
	return w, nil
}

// TotalWeight returns the sum of all asset weights of the reward source.
func (s *Service) TotalWeight(source multifarm.Address) (*uint256.Int, error) {
	total, err := s.totals.Get(source)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get total weight")
	}
	return total, nil
}

func (s *Service) available(asset multifarm.Address) *storage.AddressList {
	return storage.NewAddressList(s.sctx, multifarm.Blake2b(asset.Bytes(), slotAvailable.Bytes()))
}

// Available returns the reward sources currently carrying nonzero weight for
// the asset.
func (s *Service) Available(asset multifarm.Address) ([]multifarm.Address, error) {
	list, err := s.available(asset).All()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get available rewards")
	}
	return list, nil
}

// SetWeight sets the asset's weight within the reward source and adjusts the
// source's total and the asset's available-rewards index. The returned flags
// report a 0→nonzero respectively nonzero→0 transition.
func (s *Service) SetWeight(source, asset multifarm.Address, weight *uint256.Int) (turnedOn, turnedOff bool, err error) {
	old, err := s.Weight(source, asset)
	if err != nil {
		return false, false, err
	}

	total, err := s.TotalWeight(source)
	if err != nil {
		return false, false, err
	}
	reduced, underflow := new(uint256.Int).SubOverflow(total, old)
	if underflow {
		return false, false, errors.WithMessage(reverts.ErrOverflow, "total weight")
	}
	newTotal, overflow := new(uint256.Int).AddOverflow(reduced, weight)
	if overflow {
		return false, false, errors.WithMessage(reverts.ErrOverflow, "total weight")
	}

	if err := s.weights.Set(pairKey{source, asset}, weight); err != nil {
		return false, false, errors.Wrap(err, "failed to set weight")
	}
	if err := s.totals.Set(source, newTotal); err != nil {
		return false, false, errors.Wrap(err, "failed to set total weight")
	}

	switch {
	case old.IsZero() && !weight.IsZero():
		if err := s.available(asset).Add(source); err != nil {
			return false, false, errors.Wrap(err, "failed to index reward source")
		}
		return true, false, nil
	case !old.IsZero() && weight.IsZero():
		if err := s.available(asset).Remove(source); err != nil {
			return false, false, errors.Wrap(err, "failed to unindex reward source")
		}
		return false, true, nil
	}
	return false, false, nil
}
