// Copyright (c) 2026 The multifarm developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package emission maintains the farm-level accumulator of each reward
// source: the cumulative reward distributed per unit of total weight, and the
// bookkeeping of the last observed reward balance.
package emission

import (
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/multifarmlabs/multifarm/farm/reverts"
	"github.com/multifarmlabs/multifarm/farm/storage"
	"github.com/multifarmlabs/multifarm/multifarm"
)

var (
	logger = log.New("pkg", "emission")

	slotAccumulators = multifarm.BytesToBytes32([]byte("farm-accumulators"))
	slotRegistry     = multifarm.BytesToBytes32([]byte("reward-sources"))
)

// Service manages farm-level accumulators and the reward-source registry.
type Service struct {
	accumulators *storage.Mapping[multifarm.Address, *Accumulator]
	registry     *storage.AddressList
}

// New creates the service over the given context.
func New(sctx *storage.Context) *Service {
	return &Service{
		accumulators: storage.NewMapping[multifarm.Address, *Accumulator](sctx, slotAccumulators),
		registry:     storage.NewAddressList(sctx, slotRegistry),
	}
}

// Register adds the reward source to the registry. Idempotent.
func (s *Service) Register(source multifarm.Address) error {
	return errors.Wrap(s.registry.Add(source), "failed to register reward source")
}

// Registered returns all reward sources ever registered.
func (s *Service) Registered() ([]multifarm.Address, error) {
	list, err := s.registry.All()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list reward sources")
	}
	return list, nil
}

// IsRegistered reports whether the reward source is in the registry.
func (s *Service) IsRegistered(source multifarm.Address) (bool, error) {
	return s.registry.Contains(source)
}

// Get returns the source's accumulator, a zero-valued one if never touched.
func (s *Service) Get(source multifarm.Address) (*Accumulator, error) {
	acc, err := s.accumulators.Get(source)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get farm accumulator")
	}
	return acc.normalize(), nil
}

func (s *Service) set(source multifarm.Address, acc *Accumulator) error {
	acc.Version = multifarm.SchemaVersion
	return errors.Wrap(s.accumulators.Set(source, acc), "failed to set farm accumulator")
}

// observedDelta computes the newly arrived reward since the last refresh.
// current is custody + claimed; it can only shrink if custody was drained
// outside the engine, in which case the delta clamps to zero and the
// watermark resyncs.
func observedDelta(acc *Accumulator, current *uint256.Int) *uint256.Int {
	if current.Lt(acc.LastObserved) {
		logger.Warn("observed reward balance decreased, resyncing",
			"last", acc.LastObserved.Dec(), "current", current.Dec())
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(current, acc.LastObserved)
}

// Accrue advances the source's cumulative-per-share with the reward that
// arrived since the last refresh, using the CURRENT total weight. Callers
// must invoke it before any mutation of that weight. While total weight is
// zero the arrived amount is retained undistributed and folded back later.
// It returns the newly observed delta.
func (s *Service) Accrue(source multifarm.Address, custody, totalWeight *uint256.Int) (*uint256.Int, error) {
	acc, err := s.Get(source)
	if err != nil {
		return nil, err
	}

	current, overflow := new(uint256.Int).AddOverflow(custody, acc.Claimed)
	if overflow {
		return nil, errors.WithMessage(reverts.ErrOverflow, "observed reward balance")
	}
	delta := observedDelta(acc, current)

	amount, overflow := new(uint256.Int).AddOverflow(delta, acc.Undistributed)
	if overflow {
		return nil, errors.WithMessage(reverts.ErrOverflow, "undistributed reward")
	}

	if !totalWeight.IsZero() && !amount.IsZero() {
		inc, overflow := new(uint256.Int).MulDivOverflow(amount, multifarm.Scale(), totalWeight)
		if overflow {
			return nil, errors.WithMessage(reverts.ErrOverflow, "cumulative per share")
		}
		cps, overflow := new(uint256.Int).AddOverflow(acc.CumulativePerShare, inc)
		if overflow {
			return nil, errors.WithMessage(reverts.ErrOverflow, "cumulative per share")
		}
		// the sub-weight remainder stays behind and is re-fed next refresh
		attributed, _ := new(uint256.Int).MulDivOverflow(inc, totalWeight, multifarm.Scale())
		acc.CumulativePerShare = cps
		acc.Undistributed = new(uint256.Int).Sub(amount, attributed)
	} else {
		acc.Undistributed = amount
	}
	acc.LastObserved = current

	return delta, s.set(source, acc)
}

// PreviewPerShare returns the cumulative-per-share a refresh with the given
// custody balance and total weight would produce, without mutating state.
// It mirrors Accrue exactly.
func (s *Service) PreviewPerShare(source multifarm.Address, custody, totalWeight *uint256.Int) (*uint256.Int, error) {
	acc, err := s.Get(source)
	if err != nil {
		return nil, err
	}

	current, overflow := new(uint256.Int).AddOverflow(custody, acc.Claimed)
	if overflow {
		return nil, errors.WithMessage(reverts.ErrOverflow, "observed reward balance")
	}
	delta := observedDelta(acc, current)

	amount, overflow := new(uint256.Int).AddOverflow(delta, acc.Undistributed)
	if overflow {
		return nil, errors.WithMessage(reverts.ErrOverflow, "undistributed reward")
	}
	if totalWeight.IsZero() || amount.IsZero() {
		return acc.CumulativePerShare, nil
	}

	inc, overflow := new(uint256.Int).MulDivOverflow(amount, multifarm.Scale(), totalWeight)
	if overflow {
		return nil, errors.WithMessage(reverts.ErrOverflow, "cumulative per share")
	}
	cps, overflow := new(uint256.Int).AddOverflow(acc.CumulativePerShare, inc)
	if overflow {
		return nil, errors.WithMessage(reverts.ErrOverflow, "cumulative per share")
	}
	return cps, nil
}

// AddClaimed records a payout of the source's reward, keeping the observed
// balance watermark stable across the transfer out of custody.
func (s *Service) AddClaimed(source multifarm.Address, amount *uint256.Int) error {
	acc, err := s.Get(source)
	if err != nil {
		return err
	}
	claimed, overflow := new(uint256.Int).AddOverflow(acc.Claimed, amount)
	if overflow {
		return errors.WithMessage(reverts.ErrOverflow, "claimed total")
	}
	// the watermark already includes this amount; only the composition of
	// custody vs claimed changes
	acc.Claimed = claimed
	return s.set(source, acc)
}
