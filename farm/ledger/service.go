// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package ledger tracks per staking-asset balances and totals.
// The invariant Σ_account stake(asset,·) == totalStaked(asset) holds after
// every successful mutation.
package ledger

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/multifarmlabs/multifarm/farm/reverts"
	"github.com/multifarmlabs/multifarm/farm/storage"
	"github.com/multifarmlabs/multifarm/multifarm"
)

var (
	slotStakes = multifarm.BytesToBytes32([]byte("stakes"))
	slotTotals = multifarm.BytesToBytes32([]byte("stakes-total"))
)

// entryKey identifies one (asset, account) stake entry.
type entryKey struct {
	asset   multifarm.Address
	account multifarm.Address
}

func (k entryKey) Bytes() []byte {
	return append(k.asset.Bytes(), k.account.Bytes()...)
}

// Service is the stake ledger.
type Service struct {
	stakes *storage.Mapping[entryKey, *uint256.Int]
	totals *storage.Mapping[multifarm.Address, *uint256.Int]
}

// New creates the stake ledger over the given context.
func New(sctx *storage.Context) *Service {
	return &Service{
		stakes: storage.NewMapping[entryKey, *uint256.Int](sctx, slotStakes),
		totals: storage.NewMapping[multifarm.Address, *uint256.Int](sctx, slotTotals),
	}
}

// Get returns the account's stake in the given asset.
func (s *Service) Get(asset, account multifarm.Address) (*uint256.Int, error) {
	stake, err := s.stakes.Get(entryKey{asset, account})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get stake")
	}
	return stake, nil
}

// TotalStaked returns the total amount staked in the given asset.
func (s *Service) TotalStaked(asset multifarm.Address) (*uint256.Int, error) {
	total, err := s.totals.Get(asset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get total staked")
	}
	return total, nil
}

// Deposit increases the account's stake and the asset total.
func (s *Service) Deposit(asset, account multifarm.Address, amount *uint256.Int) error {
	stake, err := s.Get(asset, account)
	if err != nil {
		return err
	}
	newStake, overflow := new(uint256.Int).AddOverflow(stake, amount)
	if overflow {
		return errors.WithMessage(reverts.ErrOverflow, "stake")
	}

	total, err := s.TotalStaked(asset)
	if err != nil {
		return err
	}
	newTotal, overflow := new(uint256.Int).AddOverflow(total, amount)
	if overflow {
		return errors.WithMessage(reverts.ErrOverflow, "total staked")
	}

	if err := s.stakes.Set(entryKey{asset, account}, newStake); err != nil {
		return errors.Wrap(err, "failed to set stake")
	}
	if err := s.totals.Set(asset, newTotal); err != nil {
		return errors.Wrap(err, "failed to set total staked")
	}
	return nil
}

// Withdraw decreases the account's stake and the asset total.
// It fails with ErrInvalidAmount if the account's stake is insufficient.
func (s *Service) Withdraw(asset, account multifarm.Address, amount *uint256.Int) error {
	stake, err := s.Get(asset, account)
	if err != nil {
		return err
	}
	if stake.Lt(amount) {
		return errors.WithMessage(reverts.ErrInvalidAmount, "withdraw exceeds stake")
	}
	newStake := new(uint256.Int).Sub(stake, amount)

	total, err := s.TotalStaked(asset)
	if err != nil {
		return err
	}
	newTotal, underflow := new(uint256.Int).SubOverflow(total, amount)
	if underflow {
		return errors.WithMessage(reverts.ErrOverflow, "total staked")
	}

	if err := s.stakes.Set(entryKey{asset, account}, newStake); err != nil {
		return errors.Wrap(err, "failed to set stake")
	}
	if err := s.totals.Set(asset, newTotal); err != nil {
		return errors.Wrap(err, "failed to set total staked")
	}
	return nil
}
